package encryption

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanlog-go/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "scanlog.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "scanlog.key"),
	})
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	assert.False(t, e.IsConfigured())

	require.NoError(t, e.Setup("test-passphrase"))
	assert.True(t, e.IsConfigured())
}

func TestAgeEncryptor_SetupRefusesOverwrite(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	require.NoError(t, e.Setup("first"))

	err := e.Setup("second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// The original passphrase still unlocks.
	_, err = e.Unlock("first")
	assert.NoError(t, err)
}

func TestAgeEncryptor_SetupEmptyPassphrase(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	assert.Error(t, e.Setup(""))
	assert.False(t, e.IsConfigured())
}

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "large", input: bytes.Repeat([]byte("SQLite format 3\x00"), 8192)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestAgeEncryptor(t)
			require.NoError(t, e.Setup("pw"))

			var sealed bytes.Buffer
			require.NoError(t, e.Encrypt(bytes.NewReader(tt.input), &sealed))
			if len(tt.input) > 0 {
				assert.NotEqual(t, tt.input, sealed.Bytes())
			}

			dec, err := e.Unlock("pw")
			require.NoError(t, err)

			var plain bytes.Buffer
			require.NoError(t, dec.Decrypt(&sealed, &plain))
			assert.Equal(t, len(tt.input), plain.Len())
			assert.True(t, bytes.Equal(tt.input, plain.Bytes()))
		})
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	require.NoError(t, e.Setup("correct"))

	_, err := e.Unlock("wrong")
	assert.Error(t, err)
}

func TestAgeEncryptor_BeforeSetup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	var buf bytes.Buffer
	assert.Error(t, e.Encrypt(bytes.NewReader([]byte("data")), &buf))

	_, err := e.Unlock("pw")
	assert.Error(t, err)
}
