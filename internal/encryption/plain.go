package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"scanlog-go/internal/scanlog"
)

var plainHeader = []byte("SCANLOG\x00")

// PlainEncryptor frames data with a fixed header instead of encrypting it.
// Selected with encryption type "test"; use it in tests and for local
// vaults that need no confidentiality.
type PlainEncryptor struct{}

var _ scanlog.Encryptor = PlainEncryptor{}

func NewPlainEncryptor() PlainEncryptor { return PlainEncryptor{} }

func (PlainEncryptor) Setup(string) error { return nil }

func (PlainEncryptor) IsConfigured() bool { return true }

func (PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(plainHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (PlainEncryptor) Unlock(string) (scanlog.Decrypter, error) {
	return PlainEncryptor{}, nil
}

// Decrypt strips the header written by Encrypt.
func (PlainEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(plainHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, plainHeader) {
		return errors.New("missing plain snapshot header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
