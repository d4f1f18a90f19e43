package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanlog-go/internal/config"
	"scanlog-go/internal/scanlog"
	"scanlog-go/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig("laptop", filepath.Join(t.TempDir(), "cache"))
	cfg.Encryption.Type = "test"
	cfg.Vaults = []config.VaultConfig{{
		Type:        "filesystem",
		Name:        "local",
		FSVaultRoot: filepath.Join(t.TempDir(), "vault"),
	}}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts Options) *ScanlogApp {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = testutil.FixedClock()
	}
	if opts.IDGen == nil {
		opts.IDGen = testutil.NewStubIDGenerator()
	}
	a, err := NewScanlogApp(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewScanlogApp_Partition(t *testing.T) {
	cfg := testConfig(t)
	cfg.DeviceID = "d1"

	a := newTestApp(t, cfg, Options{})
	assert.Equal(t, "laptop", a.Host())
	assert.Equal(t, "d1", a.DeviceID())
	assert.Equal(t, filepath.Join(cfg.CacheDir, "laptop.d1.db"), a.StorePath())

	b := newTestApp(t, cfg, Options{Host: "server", DeviceID: "d2"})
	assert.Equal(t, "server", b.Host())
	assert.Equal(t, filepath.Join(cfg.CacheDir, "server.d2.db"), b.StorePath())
}

func TestNewScanlogApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogLevel = "loud"

	_, err := NewScanlogApp(cfg, Options{})
	assert.Error(t, err)
}

func TestScanlogApp_StoreMissingWithoutCreate(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{})

	_, _, err := a.NextFolder(context.Background())
	assert.ErrorIs(t, err, scanlog.ErrStoreNotFound)
	assert.NoFileExists(t, a.StorePath())
	assert.True(t, a.op.Failed())
}

func TestScanlogApp_InitAndAdd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{Create: true})

	path, err := a.Init(ctx)
	require.NoError(t, err)
	assert.FileExists(t, path)

	dataDir := t.TempDir()
	writeFile(t, filepath.Join(dataDir, "a.txt"), "hello")

	folder, err := a.AddFolder(ctx, dataDir)
	require.NoError(t, err)
	assert.Equal(t, dataDir+"/", folder)

	added, err := a.AddFile(ctx, filepath.Join(dataDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "a.txt"), added)

	next, ok, err := a.NextFolder(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, folder, next)

	files, err := a.FilesByStatus(ctx, scanlog.StatusDefault)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].Filename)
	assert.Equal(t, int64(5), files[0].Size)

	_, err = a.AddFile(ctx, filepath.Join(dataDir, "missing.txt"))
	assert.Error(t, err)
}

func TestScanlogApp_Crawl(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Filesystem.Ignore = []string{"*.tmp"}
	a := newTestApp(t, cfg, Options{Create: true})

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "0123456789")
	writeFile(t, filepath.Join(root, "skip.tmp"), "ignored")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "abc")

	stats, err := a.Crawl(ctx, CrawlOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, "run-1", stats.RunID)
	assert.Equal(t, 2, stats.Folders)
	assert.Equal(t, 2, stats.Files)

	_, ok, err := a.NextFolder(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "queue should be drained")

	size, found, err := a.FolderSize(ctx, root)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(10), size)

	size, found, err = a.FolderSize(ctx, filepath.Join(root, "sub"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(3), size)

	counts, err := a.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[scanlog.StatusScanned])

	// Rescan requeues every folder.
	stats, err = a.Crawl(ctx, CrawlOptions{Rescan: true})
	require.NoError(t, err)
	assert.Equal(t, "run-2", stats.RunID)
	assert.Equal(t, 2, stats.Folders)
}

func TestScanlogApp_CrawlMaxFolders(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{Create: true})

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "abc")

	stats, err := a.Crawl(ctx, CrawlOptions{Root: root, MaxFolders: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Folders)

	next, ok, err := a.NextFolder(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "sub")+"/", next)
}

func TestScanlogApp_MarkFolder(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{Create: true})

	dir := t.TempDir()
	_, err := a.AddFolder(ctx, dir)
	require.NoError(t, err)

	ok, err := a.MarkFolder(ctx, dir, scanlog.StatusScanned)
	require.NoError(t, err)
	assert.True(t, ok)

	_, pending, err := a.NextFolder(ctx)
	require.NoError(t, err)
	assert.False(t, pending)

	ok, err = a.MarkFolder(ctx, filepath.Join(dir, "nope"), scanlog.StatusScanned)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScanlogApp_Devices(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.StoreName = "shared.db"

	a := newTestApp(t, cfg, Options{Create: true, DeviceID: "d1"})
	_, err := a.AddFolder(ctx, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b := newTestApp(t, cfg, Options{Create: true, Host: "server", DeviceID: "d2"})
	_, err = b.AddFolder(ctx, t.TempDir())
	require.NoError(t, err)

	devices, err := b.Devices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, devices["laptop"])
	assert.Equal(t, []string{"d2"}, devices["server"])
}

func TestScanlogApp_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a := newTestApp(t, cfg, Options{Create: true})
	dir := t.TempDir()
	folder, err := a.AddFolder(ctx, dir)
	require.NoError(t, err)

	info, err := a.PushSnapshot(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "local", info.Vault)
	assert.Equal(t, "laptop.db", info.Name)
	assert.Equal(t, testutil.FixedClock().Now().Unix(), info.Version)
	assert.Positive(t, info.Size)

	// Pulling over an existing store is refused.
	_, err = a.PullSnapshot(ctx, "local", "")
	assert.ErrorContains(t, err, "already exists")
	require.NoError(t, a.Close())

	// Restore into a fresh cache that shares the vault.
	restoreCfg := testConfig(t)
	restoreCfg.Vaults = cfg.Vaults
	b := newTestApp(t, restoreCfg, Options{})

	path, err := b.PullSnapshot(ctx, "local", "")
	require.NoError(t, err)
	assert.Equal(t, b.StorePath(), path)

	next, ok, err := b.NextFolder(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, folder, next)
}

func TestScanlogApp_PushRefusesNewerRemote(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	clock := testutil.FixedClock()
	clock.Advance(3600e9)
	newer := newTestApp(t, cfg, Options{Create: true, Clock: clock})
	_, err := newer.PushSnapshot(ctx, "local")
	require.NoError(t, err)
	require.NoError(t, newer.Close())

	older := newTestApp(t, cfg, Options{Create: true})
	_, err = older.PushSnapshot(ctx, "local")
	assert.ErrorContains(t, err, "newer snapshot")
}

func TestScanlogApp_PullMissingSnapshot(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{})

	_, err := a.PullSnapshot(context.Background(), "local", "")
	assert.True(t, errors.Is(err, scanlog.ErrSnapshotNotFound), "got %v", err)
	assert.NoFileExists(t, a.StorePath())
}

func TestScanlogApp_UnknownVault(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{Create: true})

	_, err := a.PushSnapshot(context.Background(), "offsite")
	assert.ErrorContains(t, err, "not configured")
}

func TestScanlogApp_SetupKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Encryption.Type = "age"
	a := newTestApp(t, cfg, Options{})

	require.NoError(t, a.SetupKeys("correct horse"))
	assert.FileExists(t, cfg.Encryption.PublicKeyPath)
	assert.FileExists(t, cfg.Encryption.PrivateKeyPath)

	assert.Error(t, a.SetupKeys("again"), "existing keys must not be overwritten")
}

func TestScanlogApp_ConsoleLogging(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	var console bytes.Buffer
	a := newTestApp(t, cfg, Options{Create: true, Operation: "add-folder", Console: &console})

	_, err := a.AddFolder(ctx, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, a.Close())

	assert.Contains(t, console.String(), "folder added")

	logged, err := os.ReadFile(filepath.Join(cfg.LogDir, LogFileName))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(logged), "20240115T103000Z"), "log lines carry the run id")
}

func TestScanlogApp_ValidateVault(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{})

	name, err := a.ValidateVault(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "local", name)
}

func folderFileNames(t *testing.T, a *ScanlogApp, folder string) []string {
	t.Helper()
	s, err := a.store(context.Background())
	require.NoError(t, err)
	records, err := s.ListFolderFiles(context.Background(), a.Host(), folder, a.DeviceID())
	require.NoError(t, err)
	var names []string
	for _, r := range records {
		names = append(names, r.Filename)
	}
	return names
}

func TestScanlogApp_CrawlResumeKeepsIgnoreRules(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{Create: true})

	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".scanlogignore"), "*.tmp\nsub/skip/\n")
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "keep.txt"), "keep")
	writeFile(t, filepath.Join(root, "sub", "junk.tmp"), "junk")
	writeFile(t, filepath.Join(root, "sub", "skip", "x.txt"), "x")

	stats, err := a.Crawl(ctx, CrawlOptions{Root: root, MaxFolders: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Folders)

	// Resume without a root.
	stats, err = a.Crawl(ctx, CrawlOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Folders, "only sub/ remains; sub/skip/ is ignored")

	sub := filepath.Join(root, "sub") + "/"
	assert.Equal(t, []string{"keep.txt"}, folderFileNames(t, a, sub))

	s, err := a.store(ctx)
	require.NoError(t, err)
	skipped, err := s.HasFolder(ctx, a.Host(), sub+"skip/", a.DeviceID())
	require.NoError(t, err)
	assert.False(t, skipped, "anchored pattern applies relative to the seeded root")

	// A rescan from the queue alone lists the same way.
	_, err = a.Crawl(ctx, CrawlOptions{Rescan: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, folderFileNames(t, a, sub))
}

func TestScanlogApp_CrawlSeparateTrees(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{Create: true})

	withIgnore := t.TempDir()
	writeFile(t, filepath.Join(withIgnore, ".scanlogignore"), "*.tmp\n")
	writeFile(t, filepath.Join(withIgnore, "x.tmp"), "x")
	plain := t.TempDir()
	writeFile(t, filepath.Join(plain, "x.tmp"), "x")

	_, err := a.AddFolder(ctx, withIgnore)
	require.NoError(t, err)
	_, err = a.AddFolder(ctx, plain)
	require.NoError(t, err)

	stats, err := a.Crawl(ctx, CrawlOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Folders)

	assert.Empty(t, folderFileNames(t, a, withIgnore+"/"))
	assert.Equal(t, []string{"x.tmp"}, folderFileNames(t, a, plain+"/"))
}

func TestParentFolder(t *testing.T) {
	tests := map[string]string{
		"/":          "/",
		"/data/":     "/",
		"/data/sub/": "/data/",
	}
	for in, want := range tests {
		assert.Equal(t, want, parentFolder(in), "parentFolder(%q)", in)
	}
}
