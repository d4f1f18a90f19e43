package encryption

import (
	"fmt"

	"scanlog-go/internal/config"
	"scanlog-go/internal/scanlog"
)

// NewEncryptorFromConfig selects the snapshot encryptor.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (scanlog.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test", "none":
		return NewPlainEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
