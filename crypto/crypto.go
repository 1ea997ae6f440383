// Package crypto defines the field-level encryption collaborator
// boundary: a symmetric encryption primitive supplied by the host
// application, invoked by the query builders around plaintext values
// that cross the wire to and from specific columns.
package crypto

import "context"

// FieldEncryptor is the external collaborator interface every field
// encryption backend must satisfy. dbbridge never implements a cipher
// itself; callers wire in their own (AES-GCM, envelope encryption, a
// KMS client, …) via an implementation of this interface.
type FieldEncryptor interface {
	// EncryptField encrypts plaintext for storage under column.
	EncryptField(ctx context.Context, column string, plaintext string) (ciphertext string, err error)

	// DecryptField decrypts a value read back from column. A failed
	// decryption (wrong key, corrupt payload, legacy unencrypted row) is
	// reported via err so the caller can decide whether to suppress it.
	DecryptField(ctx context.Context, column string, ciphertext string) (plaintext string, err error)
}

// NoopEncryptor passes values through unchanged. It exists so the query
// builders always have a valid FieldEncryptor to call, and is what New*
// builders default to when none is configured.
type NoopEncryptor struct{}

func (NoopEncryptor) EncryptField(_ context.Context, _ string, plaintext string) (string, error) {
	return plaintext, nil
}

func (NoopEncryptor) DecryptField(_ context.Context, _ string, ciphertext string) (string, error) {
	return ciphertext, nil
}
