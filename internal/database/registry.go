package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"scanlog-go/internal/scanlog"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Dir is the directory holding store files.
	Dir string
	// StoreName, when set, is used for every partition instead of the
	// "{host}.{device}.db" name.
	StoreName string
	// DefaultName is used when both host and device are empty.
	// Defaults to scanlog.DefaultStoreName.
	DefaultName string
	// Create makes Get create missing store files.
	Create       bool
	StrictStatus bool
	Logger       scanlog.Logger
}

// Registry opens one store per (host, device) partition on first use and
// caches it. Safe for concurrent use.
type Registry struct {
	cfg    RegistryConfig
	mu     sync.Mutex
	stores map[scanlog.Partition]*SQLiteStore
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.DefaultName == "" {
		cfg.DefaultName = scanlog.DefaultStoreName
	}
	if cfg.Logger == nil {
		cfg.Logger = scanlog.NewNopLogger()
	}
	return &Registry{
		cfg:    cfg,
		stores: make(map[scanlog.Partition]*SQLiteStore),
	}
}

// StorePath resolves the store file for a partition.
func (r *Registry) StorePath(host, deviceID string) string {
	name := r.cfg.StoreName
	if name == "" {
		name = scanlog.Partition{Host: host, DeviceID: deviceID}.StoreName(r.cfg.DefaultName)
	}
	return filepath.Join(r.cfg.Dir, name)
}

// Get returns the cached store for the partition, opening it on first use.
// A missing store file is created when the registry was configured with
// Create, otherwise Get fails with *scanlog.StoreNotFoundError.
func (r *Registry) Get(ctx context.Context, host, deviceID string) (*SQLiteStore, error) {
	key := scanlog.Partition{Host: host, DeviceID: deviceID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[key]; ok {
		return s, nil
	}

	path := r.StorePath(host, deviceID)
	if r.cfg.Create {
		created, err := EnsureStore(path)
		if err != nil {
			return nil, err
		}
		if created {
			r.cfg.Logger.Info("store created", "path", path)
		}
	} else if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &scanlog.StoreNotFoundError{Path: path}
		}
		return nil, &scanlog.StoreError{Op: "stat store", Err: err}
	}

	s, err := NewSQLiteStore(path, Options{StrictStatus: r.cfg.StrictStatus, Logger: r.cfg.Logger})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.Close()
		return nil, err
	}

	r.cfg.Logger.Debug("store opened", "path", path, "host", host, "device_id", deviceID)
	r.stores[key] = s
	return s, nil
}

// Partitions returns the partitions with an open store, sorted.
func (r *Registry) Partitions() []scanlog.Partition {
	r.mu.Lock()
	defer r.mu.Unlock()

	parts := make([]scanlog.Partition, 0, len(r.stores))
	for p := range r.stores {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].Host != parts[j].Host {
			return parts[i].Host < parts[j].Host
		}
		return parts[i].DeviceID < parts[j].DeviceID
	})
	return parts
}

// Close closes every cached store. The registry is empty afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for p, s := range r.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store for %s/%s: %w", p.Host, p.DeviceID, err))
		}
		delete(r.stores, p)
	}
	return errors.Join(errs...)
}
