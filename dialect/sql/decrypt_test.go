package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/berkeerdo/dbbridge/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// reverseEncryptor "encrypts" by reversing the string and fails to
// decrypt any value not produced that way, exercising the
// suppress-on-failure contract.
type reverseEncryptor struct{}

func (reverseEncryptor) EncryptField(_ context.Context, _ string, plaintext string) (string, error) {
	return reverse(plaintext), nil
}

func (reverseEncryptor) DecryptField(_ context.Context, _ string, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", errors.New("empty ciphertext")
	}
	return reverse(ciphertext), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func TestSelectorDecryptOnGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)
	d, err := New(dialect.Postgres)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "id", "ssn" FROM "users"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "ssn"}).AddRow(1, reverse("123-45-6789")),
	)

	var rows []map[string]any
	sel := Select(d, drv, "id", "ssn").From("users").
		WithEncryptor(reverseEncryptor{}).
		Decrypt("ssn")
	require.NoError(t, sel.Get(context.Background(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "123-45-6789", rows[0]["ssn"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectorDecryptFailureKeepsOriginal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)
	d, err := New(dialect.Postgres)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "id", "ssn" FROM "users"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "ssn"}).AddRow(1, ""),
	)

	var rows []map[string]any
	sel := Select(d, drv, "id", "ssn").From("users").
		WithEncryptor(reverseEncryptor{}).
		Decrypt("ssn")
	require.NoError(t, sel.Get(context.Background(), &rows))
	require.Equal(t, "", rows[0]["ssn"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectorDecryptOnFirstStructDest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)
	d, err := New(dialect.Postgres)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "id", "ssn" FROM "users"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "ssn"}).AddRow(1, reverse("999-00-1111")),
	)

	var dest struct {
		ID  int
		SSN string
	}
	sel := Select(d, drv, "id", "ssn").From("users").
		WithEncryptor(reverseEncryptor{}).
		Decrypt("ssn")
	require.NoError(t, sel.First(context.Background(), &dest))
	require.Equal(t, "999-00-1111", dest.SSN)
	require.NoError(t, mock.ExpectationsWereMet())
}
