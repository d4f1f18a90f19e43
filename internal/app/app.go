package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"scanlog-go/internal/config"
	"scanlog-go/internal/database"
	"scanlog-go/internal/encryption"
	localfs "scanlog-go/internal/fs"
	"scanlog-go/internal/scanlog"
	"scanlog-go/internal/vault"
)

// Options tune a ScanlogApp for one CLI invocation.
type Options struct {
	// Host and DeviceID override the configured partition.
	Host     string
	DeviceID string

	Operation string
	Args      string

	// Create makes the store file for the partition if it is missing.
	Create bool

	// Console receives a copy of every log line. Nil logs to file only.
	Console io.Writer

	Clock scanlog.Clock
	IDGen scanlog.IDGenerator
}

// ScanlogApp sits between the CLI and the store. It resolves the partition
// from config and flags, opens its store on demand and owns the logger.
type ScanlogApp struct {
	cfg      *config.Config
	host     string
	deviceID string
	registry *database.Registry
	logger   scanlog.Logger
	logFile  io.Closer
	clock    scanlog.Clock
	idgen    scanlog.IDGenerator
	op       *Operation
}

// NewScanlogApp wires the application from cfg. The caller must call Close.
func NewScanlogApp(cfg *config.Config, opts Options) (*ScanlogApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	host := cfg.Host
	if opts.Host != "" {
		host = opts.Host
	}
	if host == "" {
		return nil, &scanlog.PreconditionError{Field: "host"}
	}
	deviceID := cfg.DeviceID
	if opts.DeviceID != "" {
		deviceID = opts.DeviceID
	}

	clock := opts.Clock
	if clock == nil {
		clock = scanlog.RealClock{}
	}
	idgen := opts.IDGen
	if idgen == nil {
		idgen = scanlog.UUIDGenerator{}
	}

	op := NewOperation(opts.Operation, opts.Args, clock.Now())
	slogger, logFile, err := newLogger(cfg.LogDir, op.RunID, cfg.LogLevel, opts.Console)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	registry := database.NewRegistry(database.RegistryConfig{
		Dir:          cfg.CacheDir,
		StoreName:    cfg.StoreName,
		Create:       opts.Create,
		StrictStatus: cfg.StrictStatus,
		Logger:       logger,
	})

	logger.Debug("operation started", "op", op.Name, "args", op.Args, "host", host, "device_id", deviceID)

	return &ScanlogApp{
		cfg:      cfg,
		host:     host,
		deviceID: deviceID,
		registry: registry,
		logger:   logger,
		logFile:  logFile,
		clock:    clock,
		idgen:    idgen,
		op:       op,
	}, nil
}

// Host returns the resolved host.
func (a *ScanlogApp) Host() string { return a.host }

// DeviceID returns the resolved device, possibly empty.
func (a *ScanlogApp) DeviceID() string { return a.deviceID }

// StorePath returns the store file of the current partition.
func (a *ScanlogApp) StorePath() string {
	return a.registry.StorePath(a.host, a.deviceID)
}

func (a *ScanlogApp) store(ctx context.Context) (*database.SQLiteStore, error) {
	s, err := a.registry.Get(ctx, a.host, a.deviceID)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

// Init creates the store for the partition if needed and checks its schema.
func (a *ScanlogApp) Init(ctx context.Context) (string, error) {
	s, err := a.store(ctx)
	if err != nil {
		return "", a.op.Track(err)
	}
	if err := s.CheckMigrations(); err != nil {
		a.logger.Warn("store schema is not versioned", "path", s.Path(), "error", err)
	}
	return s.Path(), nil
}

// AddFolder queues the folder at rawPath for crawling.
func (a *ScanlogApp) AddFolder(ctx context.Context, rawPath string) (string, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return "", a.op.Track(fmt.Errorf("resolving path: %w", err))
	}
	folder, err := scanlog.NormalizeFolder(abs)
	if err != nil {
		return "", a.op.Track(err)
	}

	s, err := a.store(ctx)
	if err != nil {
		return "", a.op.Track(err)
	}
	if err := s.InsertFolderRecord(ctx, a.host, folder, a.deviceID); err != nil {
		return "", a.op.Track(err)
	}
	a.logger.Info("folder added", "folder", folder)
	return folder, nil
}

// AddFile records the local file at rawPath with its current stat data.
func (a *ScanlogApp) AddFile(ctx context.Context, rawPath string) (string, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return "", a.op.Track(fmt.Errorf("resolving path: %w", err))
	}
	st, err := localfs.Stat(abs)
	if err != nil {
		return "", a.op.Track(fmt.Errorf("stat %s: %w", abs, err))
	}
	folder, filename, err := scanlog.SplitPath(abs)
	if err != nil {
		return "", a.op.Track(err)
	}

	s, err := a.store(ctx)
	if err != nil {
		return "", a.op.Track(err)
	}
	err = s.InsertFileRecord(ctx, scanlog.FileInput{
		Host:     a.host,
		DeviceID: a.deviceID,
		Folder:   folder,
		Filename: filename,
		Stat:     &st,
	})
	if err != nil {
		return "", a.op.Track(err)
	}
	a.logger.Info("file added", "path", abs, "size", st.Size)
	return abs, nil
}

// CrawlOptions controls a crawl.
type CrawlOptions struct {
	// Root is seeded into the queue before crawling. Empty resumes the
	// existing queue.
	Root string
	// Rescan resets every folder to pending first.
	Rescan     bool
	MaxFolders int
}

// Crawl drains the pending-folder queue of the partition over the local
// filesystem. Ignore rules come from the tree each folder was seeded under,
// so resuming with an empty Root lists exactly as the seeding run did.
func (a *ScanlogApp) Crawl(ctx context.Context, opts CrawlOptions) (*scanlog.CrawlStats, error) {
	s, err := a.store(ctx)
	if err != nil {
		return nil, a.op.Track(err)
	}

	lister := newTreeLister(s, a.host, a.deviceID, a.cfg.Filesystem.Ignore, a.logger)

	if opts.Rescan {
		if _, err := s.ResetFolders(ctx, a.host, a.deviceID); err != nil {
			return nil, a.op.Track(err)
		}
	}

	c := scanlog.NewCrawler(s, lister, a.host, a.deviceID, a.logger, a.clock, a.idgen)
	c.MaxFolders = opts.MaxFolders
	if opts.Root != "" {
		root, err := filepath.Abs(opts.Root)
		if err != nil {
			return nil, a.op.Track(fmt.Errorf("resolving crawl root: %w", err))
		}
		if err := c.Seed(ctx, root); err != nil {
			return nil, a.op.Track(err)
		}
	}

	stats, err := c.Run(ctx)
	return stats, a.op.Track(err)
}

// NextFolder returns the next pending folder, if any.
func (a *ScanlogApp) NextFolder(ctx context.Context) (string, bool, error) {
	s, err := a.store(ctx)
	if err != nil {
		return "", false, a.op.Track(err)
	}
	folder, ok, err := s.NextPendingFolder(ctx, a.host, a.deviceID)
	return folder, ok, a.op.Track(err)
}

// FilesByStatus lists the file records of the host with the given status.
// Filtering is host-wide; device-scoped filtering is not supported.
func (a *ScanlogApp) FilesByStatus(ctx context.Context, status scanlog.Status) ([]*scanlog.Record, error) {
	s, err := a.store(ctx)
	if err != nil {
		return nil, a.op.Track(err)
	}
	records, err := s.FilterFilesByStatus(ctx, status, a.host, "")
	return records, a.op.Track(err)
}

// StatusCounts returns the number of records per status.
func (a *ScanlogApp) StatusCounts(ctx context.Context) (map[scanlog.Status]int64, error) {
	s, err := a.store(ctx)
	if err != nil {
		return nil, a.op.Track(err)
	}
	counts, err := s.CountByStatus(ctx, a.host, a.deviceID)
	return counts, a.op.Track(err)
}

// FolderSize returns the recorded size of a folder and whether it is known.
func (a *ScanlogApp) FolderSize(ctx context.Context, rawPath string) (int64, bool, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return 0, false, a.op.Track(fmt.Errorf("resolving path: %w", err))
	}
	s, err := a.store(ctx)
	if err != nil {
		return 0, false, a.op.Track(err)
	}
	size, found, err := s.FolderSize(ctx, a.host, abs, a.deviceID)
	return size, found, a.op.Track(err)
}

// Devices lists the device ids recorded for each host in the store.
func (a *ScanlogApp) Devices(ctx context.Context) (map[string][]string, error) {
	s, err := a.store(ctx)
	if err != nil {
		return nil, a.op.Track(err)
	}
	devices, err := s.ListDeviceIDsByHost(ctx)
	return devices, a.op.Track(err)
}

// MarkFolder sets the status of a folder record. It reports false when no
// such folder is recorded.
func (a *ScanlogApp) MarkFolder(ctx context.Context, rawPath string, status scanlog.Status) (bool, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return false, a.op.Track(fmt.Errorf("resolving path: %w", err))
	}
	s, err := a.store(ctx)
	if err != nil {
		return false, a.op.Track(err)
	}
	ok, err := s.UpdateFolderStatus(ctx, a.host, abs, a.deviceID, status)
	if err != nil {
		return false, a.op.Track(err)
	}
	if ok {
		a.logger.Info("folder status set", "folder", abs, "status", status.String())
	}
	return ok, nil
}

// SetupKeys generates the snapshot encryption keys.
func (a *ScanlogApp) SetupKeys(passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return a.op.Track(err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return a.op.Track(fmt.Errorf("setting up keys: %w", err))
	}
	a.logger.Info("encryption keys created", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// SnapshotInfo describes a published snapshot.
type SnapshotInfo struct {
	Vault   string
	Name    string
	Size    int64
	Version int64
}

func (a *ScanlogApp) openVault(ctx context.Context, name string) (scanlog.Vault, config.VaultConfig, error) {
	vc, err := a.cfg.Vault(name)
	if err != nil {
		return nil, config.VaultConfig{}, err
	}
	v, err := vault.NewVaultFromConfig(ctx, vc)
	if err != nil {
		return nil, config.VaultConfig{}, fmt.Errorf("creating vault %s: %w", vc.Name, err)
	}
	return v, vc, nil
}

// ValidateVault checks that the named vault is reachable and writable.
func (a *ScanlogApp) ValidateVault(ctx context.Context, name string) (string, error) {
	v, vc, err := a.openVault(ctx, name)
	if err != nil {
		return "", a.op.Track(err)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		return "", a.op.Track(fmt.Errorf("vault %s: %w", vc.Name, err))
	}
	return vc.Name, nil
}

// PushSnapshot publishes an encrypted copy of the partition's store to the
// named vault (the first vault when empty). The snapshot version is the
// push time in Unix seconds; a vault holding a newer snapshot is refused.
func (a *ScanlogApp) PushSnapshot(ctx context.Context, vaultName string) (*SnapshotInfo, error) {
	info, err := a.pushSnapshot(ctx, vaultName)
	return info, a.op.Track(err)
}

func (a *ScanlogApp) pushSnapshot(ctx context.Context, vaultName string) (*SnapshotInfo, error) {
	v, vc, err := a.openVault(ctx, vaultName)
	if err != nil {
		return nil, err
	}
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, err
	}
	if !enc.IsConfigured() {
		return nil, errors.New("encryption keys not found: run 'scanlog keys init'")
	}
	s, err := a.store(ctx)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(a.StorePath())
	version := a.clock.Now().Unix()
	remote, err := v.SnapshotVersion(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking remote snapshot version: %w", err)
	}
	if remote > version {
		return nil, fmt.Errorf("vault %s holds a newer snapshot of %s (remote=%d, local=%d)", vc.Name, name, remote, version)
	}

	tmpDir, err := os.MkdirTemp(a.cfg.CacheDir, ".snapshot-")
	if err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	rawPath := filepath.Join(tmpDir, "raw.db")
	if err := s.BackupTo(ctx, rawPath); err != nil {
		return nil, err
	}
	sealedPath := filepath.Join(tmpDir, "sealed")
	if err := transformFile(rawPath, sealedPath, enc.Encrypt); err != nil {
		return nil, fmt.Errorf("encrypting snapshot: %w", err)
	}

	f, err := os.Open(sealedPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	if err := v.PutSnapshot(ctx, name, f, st.Size(), version); err != nil {
		return nil, fmt.Errorf("uploading snapshot: %w", err)
	}

	a.logger.Info("snapshot pushed", "vault", vc.Name, "name", name, "size", st.Size(), "version", version)
	return &SnapshotInfo{Vault: vc.Name, Name: name, Size: st.Size(), Version: version}, nil
}

// PullSnapshot restores the partition's store from a vault snapshot. It
// refuses to overwrite an existing store file.
func (a *ScanlogApp) PullSnapshot(ctx context.Context, vaultName, passphrase string) (string, error) {
	path, err := a.pullSnapshot(ctx, vaultName, passphrase)
	return path, a.op.Track(err)
}

func (a *ScanlogApp) pullSnapshot(ctx context.Context, vaultName, passphrase string) (string, error) {
	dest := a.StorePath()
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("store already exists at %s", dest)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	v, vc, err := a.openVault(ctx, vaultName)
	if err != nil {
		return "", err
	}
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return "", err
	}
	dec, err := enc.Unlock(passphrase)
	if err != nil {
		return "", fmt.Errorf("unlocking private key: %w", err)
	}

	if err := os.MkdirAll(a.cfg.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}
	tmpDir, err := os.MkdirTemp(a.cfg.CacheDir, ".snapshot-")
	if err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	name := filepath.Base(dest)
	sealedPath := filepath.Join(tmpDir, "sealed")
	sealed, err := os.Create(sealedPath)
	if err != nil {
		return "", err
	}
	if err := v.GetSnapshot(ctx, name, sealed); err != nil {
		sealed.Close()
		return "", fmt.Errorf("downloading snapshot: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return "", err
	}

	rawPath := filepath.Join(tmpDir, "raw.db")
	if err := transformFile(sealedPath, rawPath, dec.Decrypt); err != nil {
		return "", fmt.Errorf("decrypting snapshot: %w", err)
	}
	if err := verifyStore(rawPath); err != nil {
		return "", err
	}

	if err := os.Link(rawPath, dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("store already exists at %s", dest)
		}
		return "", fmt.Errorf("installing snapshot: %w", err)
	}

	a.logger.Info("snapshot pulled", "vault", vc.Name, "name", name, "path", dest)
	return dest, nil
}

// verifyStore opens a downloaded store and checks its schema.
func verifyStore(path string) error {
	s, err := database.NewSQLiteStore(path, database.Options{})
	if err != nil {
		return fmt.Errorf("snapshot is not a store: %w", err)
	}
	defer s.Close()
	if err := s.CheckMigrations(); err != nil {
		return fmt.Errorf("snapshot schema: %w", err)
	}
	return nil
}

// transformFile streams src through fn into a new file at dst.
func transformFile(src, dst string, fn func(io.Reader, io.Writer) error) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if err := fn(in, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Close closes every open store and the log file.
func (a *ScanlogApp) Close() error {
	err := a.registry.Close()
	if err != nil {
		a.op.Track(err)
	}

	elapsed := a.clock.Now().Sub(a.op.Started).Round(time.Millisecond)
	if a.op.Failed() {
		a.logger.Warn("operation failed", "op", a.op.Name, "elapsed", elapsed)
	} else {
		a.logger.Debug("operation finished", "op", a.op.Name, "elapsed", elapsed)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}
