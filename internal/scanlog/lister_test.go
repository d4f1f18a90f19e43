package scanlog_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanlog-go/internal/scanlog"
)

func TestStaticLister(t *testing.T) {
	ctx := context.Background()
	l := scanlog.NewStaticLister()
	require.NoError(t, l.AddFile("/data/docs/b.txt", scanlog.RemoteStat(5, 100)))
	require.NoError(t, l.AddFile("/data/a.txt", scanlog.RemoteStat(10, 1000)))
	require.NoError(t, l.AddDir("/data/empty"))

	entries, err := l.List(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, scanlog.Entry{Name: "data", IsDir: true, Stat: scanlog.RemoteStat(scanlog.Unknown, scanlog.Unknown)}, entries[0])

	entries, err = l.List(ctx, "/data/")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, int64(10), entries[0].Stat.Size)
	assert.Equal(t, "docs", entries[1].Name)
	assert.True(t, entries[1].IsDir)
	assert.Equal(t, "empty", entries[2].Name)

	entries, err = l.List(ctx, "/data/empty/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStaticLister_Errors(t *testing.T) {
	l := scanlog.NewStaticLister()
	assert.ErrorIs(t, l.AddFile("rel/a.txt", scanlog.StatInfo{}), scanlog.ErrInvalidPath)
	assert.ErrorIs(t, l.AddDir("rel"), scanlog.ErrInvalidPath)

	_, err := l.List(context.Background(), "/missing/")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.List(ctx, "/")
	assert.ErrorIs(t, err, context.Canceled)
}
