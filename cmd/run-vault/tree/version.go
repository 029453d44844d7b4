package tree

import (
	"github.com/spf13/cobra"

	"github.com/cloudboss/runvault/pkg/constants"
)

var (
	VersionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show the version of run-vault",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(constants.Version)
		},
	}
)
