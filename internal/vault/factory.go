package vault

import (
	"context"
	"fmt"

	"scanlog-go/internal/config"
	"scanlog-go/internal/scanlog"
)

// NewVaultFromConfig creates the Vault described by cfg.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (scanlog.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		return NewS3Vault(ctx, cfg)
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
