package main

import (
	"log/slog"
	"os"

	"github.com/cloudboss/runvault/cmd/run-vault/tree"
)

func main() {
	if err := tree.Execute(); err != nil {
		slog.Error("Failed to configure Vault", "error", err)
		os.Exit(1)
	}
}
