package encryption

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()
	e := NewPlainEncryptor()
	input := []byte("SQLite format 3\x00 payload")

	var framed bytes.Buffer
	require.NoError(t, e.Encrypt(bytes.NewReader(input), &framed))
	assert.NotEqual(t, input, framed.Bytes())

	dec, err := e.Unlock("ignored")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, dec.Decrypt(&framed, &out))
	assert.Equal(t, input, out.Bytes())
}

func TestPlainEncryptor_RejectsUnframed(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	err := NewPlainEncryptor().Decrypt(bytes.NewReader([]byte("SQLite format 3\x00")), &out)
	assert.Error(t, err)
}
