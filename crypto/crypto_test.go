package crypto_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkeerdo/dbbridge/crypto"
)

func TestNoopEncryptorRoundTrips(t *testing.T) {
	var enc crypto.FieldEncryptor = crypto.NoopEncryptor{}
	ctx := context.Background()

	ciphertext, err := enc.EncryptField(ctx, "ssn", "123-45-6789")
	require.NoError(t, err)
	assert.Equal(t, "123-45-6789", ciphertext)

	plaintext, err := enc.DecryptField(ctx, "ssn", ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "123-45-6789", plaintext)
}

func TestNoopEncryptorIgnoresColumn(t *testing.T) {
	enc := crypto.NoopEncryptor{}
	ctx := context.Background()

	got, err := enc.EncryptField(ctx, "", "value")
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

// fakeEncryptor is a minimal stand-in for a real cipher, used to confirm
// the builders call through FieldEncryptor rather than assuming Noop.
type fakeEncryptor struct {
	prefix string
}

func (f fakeEncryptor) EncryptField(_ context.Context, _ string, plaintext string) (string, error) {
	return f.prefix + plaintext, nil
}

func (f fakeEncryptor) DecryptField(_ context.Context, _ string, ciphertext string) (string, error) {
	return ciphertext[len(f.prefix):], nil
}

func TestFieldEncryptorImplementationsSatisfyInterface(t *testing.T) {
	var _ crypto.FieldEncryptor = crypto.NoopEncryptor{}
	var _ crypto.FieldEncryptor = fakeEncryptor{}

	enc := fakeEncryptor{prefix: "enc:"}
	ctx := context.Background()

	ciphertext, err := enc.EncryptField(ctx, "email", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "enc:ada@example.com", ciphertext)

	plaintext, err := enc.DecryptField(ctx, "email", ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", plaintext)
}
