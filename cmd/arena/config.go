package main

import (
	"encoding/hex"
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Config is the on-disk configuration of the node.
type Config struct {
	// Instance is the hexadecimal identifier of the ledger instance.
	// Handles and grants are bound to it.
	Instance string `yaml:"instance"`

	// InputMax is the exclusive upper bound attested by the input proofs.
	InputMax uint32 `yaml:"inputMax"`

	// DB is the path of the ledger database.
	DB string `yaml:"db"`
}

// loadConfig reads the configuration from the yaml file, or returns the
// default configuration when no path is provided.
func loadConfig(path string, db string) (Config, error) {
	cfg := Config{
		Instance: hex.EncodeToString([]byte("go.dedis.ch/arena#demo")),
		InputMax: 100,
		DB:       db,
	}

	if path == "" {
		return cfg, nil
	}

	buffer, err := os.ReadFile(path)
	if err != nil {
		return cfg, xerrors.Errorf("failed to read file: %v", err)
	}

	err = yaml.Unmarshal(buffer, &cfg)
	if err != nil {
		return cfg, xerrors.Errorf("failed to unmarshal yaml: %v", err)
	}

	if cfg.DB == "" {
		cfg.DB = db
	}

	return cfg, nil
}

// GetInstance returns the decoded instance identifier.
func (cfg Config) GetInstance() []byte {
	instance, err := hex.DecodeString(cfg.Instance)
	if err != nil {
		// An invalid hexadecimal string still identifies the instance, only
		// less compactly.
		return []byte(cfg.Instance)
	}

	return instance
}
