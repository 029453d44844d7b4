package vaultconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/cloudboss/runvault/pkg/constants"
	"github.com/cloudboss/runvault/pkg/files"
	"github.com/cloudboss/runvault/pkg/params"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
)

const (
	backendGCS     = "gcs"
	backendConsul  = "consul"
	sealGCPCKMS    = "gcpckms"
	listenerTCP    = "tcp"
	addrAll        = "0.0.0.0"
	consulAddress  = "127.0.0.1:8500"
	consulPath     = "vault/"
	consulService  = "vault"
	schemeInstance = "https://"
)

type ServerConfig struct {
	Storage     Storage   `hcl:"storage,block"`
	HAStorage   HAStorage `hcl:"ha_storage,block"`
	Seal        *Seal     `hcl:"seal,block"`
	ClusterAddr string    `hcl:"cluster_addr"`
	APIAddr     string    `hcl:"api_addr"`
	UI          bool      `hcl:"ui"`
	Listener    Listener  `hcl:"listener,block"`
}

type Storage struct {
	Backend         string  `hcl:"backend,label"`
	Bucket          string  `hcl:"bucket"`
	CredentialsFile *string `hcl:"credentials_file,optional"`
}

type HAStorage struct {
	Backend string `hcl:"backend,label"`
	Address string `hcl:"address"`
	Path    string `hcl:"path"`
	Service string `hcl:"service"`
}

type Seal struct {
	Type      string `hcl:"type,label"`
	Project   string `hcl:"project"`
	Region    string `hcl:"region"`
	KeyRing   string `hcl:"key_ring"`
	CryptoKey string `hcl:"crypto_key"`
}

type Listener struct {
	Type           string `hcl:"type,label"`
	Address        string `hcl:"address"`
	ClusterAddress string `hcl:"cluster_address"`
	TLSCertFile    string `hcl:"tls_cert_file"`
	TLSKeyFile     string `hcl:"tls_key_file"`
}

// NewServerConfig builds the server configuration for p. The seal block is
// present if and only if auto-unseal is enabled.
func NewServerConfig(p *params.Parameters, instanceAddress string) *ServerConfig {
	port := strconv.Itoa(p.Port)
	clusterPort := strconv.Itoa(p.ClusterPort)

	config := &ServerConfig{
		Storage: Storage{
			Backend: backendGCS,
			Bucket:  p.GCSBucket,
		},
		HAStorage: HAStorage{
			Backend: backendConsul,
			Address: consulAddress,
			Path:    consulPath,
			Service: consulService,
		},
		ClusterAddr: schemeInstance + net.JoinHostPort(instanceAddress, clusterPort),
		APIAddr:     schemeInstance + net.JoinHostPort(instanceAddress, port),
		UI:          p.EnableUI,
		Listener: Listener{
			Type:           listenerTCP,
			Address:        net.JoinHostPort(addrAll, port),
			ClusterAddress: net.JoinHostPort(addrAll, clusterPort),
			TLSCertFile:    p.TLSCertFile,
			TLSKeyFile:     p.TLSKeyFile,
		},
	}

	if len(p.GCPCredsFile) > 0 {
		credsFile := p.GCPCredsFile
		config.Storage.CredentialsFile = &credsFile
	}

	if p.AutoUnseal != nil {
		config.Seal = &Seal{
			Type:      sealGCPCKMS,
			Project:   p.AutoUnseal.ProjectID,
			Region:    p.AutoUnseal.Region,
			KeyRing:   p.AutoUnseal.KeyRing,
			CryptoKey: p.AutoUnseal.CryptoKeyName,
		}
	}

	return config
}

// Render returns the configuration as formatted HCL. Top level blocks and
// the address attributes are separated by one blank line whether or not
// the seal block is present.
func (c *ServerConfig) Render() []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	appendBlock := func(val any, blockType string) {
		body.AppendBlock(gohcl.EncodeAsBlock(val, blockType))
		body.AppendNewline()
	}
	appendBlock(c.Storage, "storage")
	appendBlock(c.HAStorage, "ha_storage")
	if c.Seal != nil {
		appendBlock(c.Seal, "seal")
	}

	body.SetAttributeValue("cluster_addr", cty.StringVal(c.ClusterAddr))
	body.SetAttributeValue("api_addr", cty.StringVal(c.APIAddr))
	body.SetAttributeValue("ui", cty.BoolVal(c.UI))
	body.AppendNewline()

	body.AppendBlock(gohcl.EncodeAsBlock(c.Listener, "listener"))

	return bytes.TrimLeft(hclwrite.Format(f.Bytes()), "\n")
}

// Generate writes the server configuration to path, replacing anything
// already there, and then gives it to the user p.User and the group of the
// same name. If ownership cannot be set the file is left written.
func Generate(fs afero.Fs, path string, p *params.Parameters, instanceAddress string) error {
	config := NewServerConfig(p, instanceAddress)

	slog.Debug("Writing Vault configuration", "path", path, "auto-unseal", config.Seal != nil)

	err := files.Write(fs, path, config.Render(), constants.ModeConfig)
	if err != nil {
		return err
	}

	err = files.Chown(fs, constants.FileEtcPasswd, constants.FileEtcGroup, path, p.User, p.User)
	if err != nil {
		return fmt.Errorf("unable to set ownership of Vault configuration: %w", err)
	}

	return nil
}
