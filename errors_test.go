package dbbridge_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkeerdo/dbbridge"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := dbbridge.NewNotFoundError("User")
		assert.Equal(t, "dbbridge: User not found", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := dbbridge.NewNotFoundError("Post")
		assert.True(t, errors.Is(err, dbbridge.ErrNotFound))
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := dbbridge.NewNotFoundError("Comment")
		assert.True(t, dbbridge.IsNotFound(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, dbbridge.IsNotFound(wrapped))

		// Sentinel error
		assert.True(t, dbbridge.IsNotFound(dbbridge.ErrNotFound))

		// Non-matching error
		assert.False(t, dbbridge.IsNotFound(errors.New("other error")))
		assert.False(t, dbbridge.IsNotFound(nil))
	})
}

func TestNotSingularError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := dbbridge.NewNotSingularError("User")
		assert.Equal(t, "dbbridge: User not singular", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := dbbridge.NewNotSingularError("Post")
		assert.True(t, errors.Is(err, dbbridge.ErrNotSingular))
	})

	t.Run("IsNotSingular", func(t *testing.T) {
		err := dbbridge.NewNotSingularError("Comment")
		assert.True(t, dbbridge.IsNotSingular(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, dbbridge.IsNotSingular(wrapped))

		// Sentinel error
		assert.True(t, dbbridge.IsNotSingular(dbbridge.ErrNotSingular))

		// Non-matching error
		assert.False(t, dbbridge.IsNotSingular(errors.New("other error")))
		assert.False(t, dbbridge.IsNotSingular(nil))
	})
}

func TestNotLoadedError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := dbbridge.NewNotLoadedError("posts")
		assert.Equal(t, `dbbridge: edge "posts" was not loaded`, err.Error())
	})

	t.Run("IsNotLoaded", func(t *testing.T) {
		err := dbbridge.NewNotLoadedError("comments")
		assert.True(t, dbbridge.IsNotLoaded(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, dbbridge.IsNotLoaded(wrapped))

		// Non-matching error
		assert.False(t, dbbridge.IsNotLoaded(errors.New("other error")))
		assert.False(t, dbbridge.IsNotLoaded(nil))
	})
}

func TestConstraintError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := dbbridge.NewConstraintError("UNIQUE constraint failed", nil)
		assert.Equal(t, "dbbridge: constraint failed: UNIQUE constraint failed", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("db error")
		err := dbbridge.NewConstraintError("constraint violated", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsConstraintError", func(t *testing.T) {
		err := dbbridge.NewConstraintError("check failed", nil)
		assert.True(t, dbbridge.IsConstraintError(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, dbbridge.IsConstraintError(wrapped))

		// Non-matching error
		assert.False(t, dbbridge.IsConstraintError(errors.New("other error")))
		assert.False(t, dbbridge.IsConstraintError(nil))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := dbbridge.NewValidationError("email", errors.New("invalid format"))
		assert.Equal(t, `dbbridge: validator failed for field "email": invalid format`, err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("too short")
		err := dbbridge.NewValidationError("name", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsValidationError", func(t *testing.T) {
		err := dbbridge.NewValidationError("age", errors.New("must be positive"))
		assert.True(t, dbbridge.IsValidationError(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, dbbridge.IsValidationError(wrapped))

		// Non-matching error
		assert.False(t, dbbridge.IsValidationError(errors.New("other error")))
		assert.False(t, dbbridge.IsValidationError(nil))
	})
}

func TestRollbackError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := &dbbridge.RollbackError{Err: errors.New("connection lost")}
		assert.Equal(t, "dbbridge: rollback failed: connection lost", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("timeout")
		err := &dbbridge.RollbackError{Err: underlying}
		assert.True(t, errors.Is(err, underlying))
	})
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		err := dbbridge.NewAggregateError()
		assert.Nil(t, err)
	})

	t.Run("NilErrors", func(t *testing.T) {
		err := dbbridge.NewAggregateError(nil, nil, nil)
		assert.Nil(t, err)
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		err := dbbridge.NewAggregateError(single)
		assert.Equal(t, single, err)
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err2 := errors.New("error 2")
		err := dbbridge.NewAggregateError(err1, err2)

		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "error 1")
		assert.Contains(t, err.Error(), "error 2")
	})

	t.Run("MixedNilAndErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err := dbbridge.NewAggregateError(nil, err1, nil)

		require.NotNil(t, err)
		assert.Equal(t, err1, err) // Single non-nil error returned directly
	})
}

func TestQueryError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := dbbridge.NewQueryError("users", "select", errors.New("connection refused"))
		assert.Equal(t, "dbbridge: querying users (select): connection refused", err.Error())
	})

	t.Run("ErrorWithSQL", func(t *testing.T) {
		err := dbbridge.NewQueryErrorWithSQL("users", "select", "SELECT * FROM users WHERE id = $1", []any{7}, errors.New("timeout"))
		assert.Contains(t, err.Error(), "SELECT * FROM users")
		assert.Contains(t, err.Error(), "[7]")
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("driver rejected SQL")
		err := dbbridge.NewQueryError("posts", "insert", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsQueryError", func(t *testing.T) {
		err := dbbridge.NewQueryError("posts", "delete", errors.New("boom"))
		assert.True(t, dbbridge.IsQueryError(err))
		assert.False(t, dbbridge.IsQueryError(errors.New("other")))
		assert.False(t, dbbridge.IsQueryError(nil))
	})
}

func TestMutationError(t *testing.T) {
	err := dbbridge.NewMutationError("users", "create", errors.New("duplicate key"))
	assert.Equal(t, "dbbridge: create users: duplicate key", err.Error())
	assert.True(t, dbbridge.IsMutationError(err))
	assert.False(t, dbbridge.IsMutationError(nil))
}

func TestTxStateError(t *testing.T) {
	err := dbbridge.NewTxStateError("tx-1", "committed", "savepoint")
	assert.Equal(t, "dbbridge: transaction tx-1 is committed: cannot savepoint", err.Error())
	assert.True(t, dbbridge.IsTxStateError(err))
	assert.False(t, dbbridge.IsTxStateError(nil))
}

func TestIdentifierValidationHelpers(t *testing.T) {
	t.Run("InvalidIdentifier", func(t *testing.T) {
		err := dbbridge.NewInvalidIdentifierError("1bad-name")
		assert.True(t, dbbridge.IsValidationError(err))
		assert.Contains(t, err.Error(), "1bad-name")
	})

	t.Run("UnsafeDelete", func(t *testing.T) {
		err := dbbridge.NewUnsafeDeleteError("users")
		assert.True(t, dbbridge.IsValidationError(err))
		assert.Contains(t, err.Error(), "force")
	})

	t.Run("DuplicateSavepoint", func(t *testing.T) {
		err := dbbridge.NewDuplicateSavepointError("sp1")
		assert.True(t, dbbridge.IsValidationError(err))
		assert.Contains(t, err.Error(), "sp1")
	})
}

func TestSentinelErrors(t *testing.T) {
	t.Run("ErrNotFound", func(t *testing.T) {
		assert.Error(t, dbbridge.ErrNotFound)
		assert.Contains(t, dbbridge.ErrNotFound.Error(), "not found")
	})

	t.Run("ErrNotSingular", func(t *testing.T) {
		assert.Error(t, dbbridge.ErrNotSingular)
		assert.Contains(t, dbbridge.ErrNotSingular.Error(), "not singular")
	})

	t.Run("ErrTxStarted", func(t *testing.T) {
		assert.Error(t, dbbridge.ErrTxStarted)
		assert.Contains(t, dbbridge.ErrTxStarted.Error(), "transaction")
	})
}

// BenchmarkErrors benchmarks error creation and checking.
func BenchmarkErrors(b *testing.B) {
	b.Run("NewNotFoundError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = dbbridge.NewNotFoundError("User")
		}
	})

	b.Run("IsNotFound", func(b *testing.B) {
		err := dbbridge.NewNotFoundError("User")
		for i := 0; i < b.N; i++ {
			_ = dbbridge.IsNotFound(err)
		}
	})

	b.Run("NewConstraintError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = dbbridge.NewConstraintError("unique", nil)
		}
	})

	b.Run("IsConstraintError", func(b *testing.B) {
		err := dbbridge.NewConstraintError("unique", nil)
		for i := 0; i < b.N; i++ {
			_ = dbbridge.IsConstraintError(err)
		}
	})

	b.Run("NewValidationError", func(b *testing.B) {
		underlying := errors.New("invalid")
		for i := 0; i < b.N; i++ {
			_ = dbbridge.NewValidationError("field", underlying)
		}
	})

	b.Run("NewAggregateError_multiple", func(b *testing.B) {
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		err3 := errors.New("err3")
		for i := 0; i < b.N; i++ {
			_ = dbbridge.NewAggregateError(err1, err2, err3)
		}
	})
}
