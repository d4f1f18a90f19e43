package scanlog

import "io"

// Encryptor encrypts snapshots before they leave the host. Encryption needs
// only the public key; decryption needs a passphrase to unlock the private
// key.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with
	// passphrase.
	Setup(passphrase string) error

	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. It fails if the passphrase is wrong.
	Unlock(passphrase string) (Decrypter, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// Decrypter holds an unlocked private key in memory.
type Decrypter interface {
	Decrypt(r io.Reader, w io.Writer) error
}
