package supervisor

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cloudboss/runvault/pkg/constants"
	"github.com/cloudboss/runvault/pkg/files"
	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
)

const (
	programName = "vault"
	stopSignal  = "INT"
)

// Program is a supervisord [program:x] section.
type Program struct {
	Name          string `ini:"-"`
	Command       string `ini:"command"`
	StdoutLogfile string `ini:"stdout_logfile"`
	StderrLogfile string `ini:"stderr_logfile"`
	NumProcs      int    `ini:"numprocs"`
	AutoStart     bool   `ini:"autostart"`
	AutoRestart   bool   `ini:"autorestart"`
	StopSignal    string `ini:"stopsignal"`
	User          string `ini:"user"`
}

// NewProgram returns the program that runs the Vault server from binDir
// with its configuration read from configDir.
func NewProgram(configDir, binDir, logDir, logLevel, user string) *Program {
	vault := filepath.Join(binDir, constants.FileVaultBin)
	return &Program{
		Name:          programName,
		Command:       fmt.Sprintf("%s server -config %s -log-level=%s", vault, configDir, logLevel),
		StdoutLogfile: filepath.Join(logDir, "vault-stdout.log"),
		StderrLogfile: filepath.Join(logDir, "vault-error.log"),
		NumProcs:      1,
		AutoStart:     true,
		AutoRestart:   true,
		StopSignal:    stopSignal,
		User:          user,
	}
}

func (p *Program) SectionName() string {
	return "program:" + p.Name
}

func (p *Program) Render() ([]byte, error) {
	// supervisord has no quoting, so values containing # or ; are
	// written as is instead of in go-ini's backticks.
	cfg := ini.Empty(ini.LoadOptions{IgnoreInlineComment: true})
	section, err := cfg.NewSection(p.SectionName())
	if err != nil {
		return nil, fmt.Errorf("unable to create section %s: %w", p.SectionName(), err)
	}
	err = section.ReflectFrom(p)
	if err != nil {
		return nil, fmt.Errorf("unable to encode program %s: %w", p.Name, err)
	}

	var buf bytes.Buffer
	_, err = cfg.WriteTo(&buf)
	if err != nil {
		return nil, fmt.Errorf("unable to render program %s: %w", p.Name, err)
	}
	return buf.Bytes(), nil
}

// Generate writes the program descriptor to path, replacing anything
// already there. Missing parent directories are created.
func Generate(fs afero.Fs, path string, p *Program) error {
	content, err := p.Render()
	if err != nil {
		return err
	}

	slog.Debug("Writing supervisor configuration", "path", path, "program", p.Name)

	err = files.Mkdirs(fs, filepath.Dir(path), constants.ModeDir)
	if err != nil {
		return err
	}

	return files.Write(fs, path, content, constants.ModeConfig)
}
