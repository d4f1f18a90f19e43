package scanlog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanlog-go/internal/scanlog"
)

func TestStatusCodes(t *testing.T) {
	// Persisted values.
	assert.Equal(t, int64(-1), int64(scanlog.StatusDefault))
	assert.Equal(t, int64(-2), int64(scanlog.StatusError))
	assert.Equal(t, int64(0), int64(scanlog.StatusScanned))
	assert.Equal(t, int64(1), int64(scanlog.StatusDirty))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "default", scanlog.StatusDefault.String())
	assert.Equal(t, "dirty", scanlog.StatusDirty.String())
	assert.Equal(t, "status(7)", scanlog.Status(7).String())
	assert.False(t, scanlog.Status(7).Valid())
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want scanlog.Status
	}{
		{"scanned", scanlog.StatusScanned},
		{"DIRTY", scanlog.StatusDirty},
		{" error ", scanlog.StatusError},
		{"-1", scanlog.StatusDefault},
		{"1", scanlog.StatusDirty},
	}
	for _, tt := range tests {
		got, err := scanlog.ParseStatus(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := scanlog.ParseStatus("done")
	assert.Error(t, err)
}

func TestCanTransitionTo(t *testing.T) {
	all := []scanlog.Status{scanlog.StatusDefault, scanlog.StatusError, scanlog.StatusScanned, scanlog.StatusDirty}
	for _, from := range all {
		for _, to := range all {
			assert.True(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
		assert.False(t, from.CanTransitionTo(scanlog.Status(9)), "%s -> invalid", from)
	}
}
