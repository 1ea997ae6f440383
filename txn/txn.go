// Package txn implements the transaction coordinator: a state machine
// around dialect.Tx with named savepoints and a commit/rollback hook
// middleware chain (Committer/CommitHook and Rollbacker/RollbackHook),
// hand-written rather than generated since this module has no code
// generator.
package txn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/berkeerdo/dbbridge"
	"github.com/berkeerdo/dbbridge/dialect"
	sqldialect "github.com/berkeerdo/dbbridge/dialect/sql"
)

// State is the transaction's lifecycle state.
type State int

const (
	StateNew State = iota
	StateActive
	StateCommitted
	StateRolledBack
	StateFailedBegin
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateActive:
		return "ACTIVE"
	case StateCommitted:
		return "COMMITTED"
	case StateRolledBack:
		return "ROLLED_BACK"
	case StateFailedBegin:
		return "FAILED_BEGIN"
	default:
		return "UNKNOWN"
	}
}

// IsolationLevel names a standard SQL isolation level understood by both
// MySQL and PostgreSQL.
type IsolationLevel int

const (
	LevelDefault IsolationLevel = iota
	LevelReadUncommitted
	LevelReadCommitted
	LevelRepeatableRead
	LevelSerializable
)

// ParseIsolationLevel maps the lower-case, underscore-separated names
// used by config.go's TxConfig.Isolation field onto an IsolationLevel.
// An empty string maps to LevelDefault.
func ParseIsolationLevel(name string) (IsolationLevel, error) {
	switch name {
	case "":
		return LevelDefault, nil
	case "read_uncommitted":
		return LevelReadUncommitted, nil
	case "read_committed":
		return LevelReadCommitted, nil
	case "repeatable_read":
		return LevelRepeatableRead, nil
	case "serializable":
		return LevelSerializable, nil
	default:
		return LevelDefault, fmt.Errorf("dbbridge/txn: unknown isolation level %q", name)
	}
}

func (l IsolationLevel) sqlLevel() sql.IsolationLevel {
	switch l {
	case LevelReadUncommitted:
		return sql.LevelReadUncommitted
	case LevelReadCommitted:
		return sql.LevelReadCommitted
	case LevelRepeatableRead:
		return sql.LevelRepeatableRead
	case LevelSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// Options configures a new transaction.
type Options struct {
	Isolation  IsolationLevel
	ReadOnly   bool
	Deferrable bool // PostgreSQL-only; executes SET CONSTRAINTS ALL DEFERRED right after BEGIN.
}

// Committer is the interface wrapping the final Commit action.
type Committer interface {
	Commit(ctx context.Context, tx *Tx) error
}

// CommitFunc adapts an ordinary function into a Committer.
type CommitFunc func(ctx context.Context, tx *Tx) error

func (f CommitFunc) Commit(ctx context.Context, tx *Tx) error { return f(ctx, tx) }

// CommitHook is commit middleware: it receives the next Committer in the
// chain and returns a Committer that wraps it.
type CommitHook func(Committer) Committer

// Rollbacker is the interface wrapping the final Rollback action.
type Rollbacker interface {
	Rollback(ctx context.Context, tx *Tx) error
}

// RollbackFunc adapts an ordinary function into a Rollbacker.
type RollbackFunc func(ctx context.Context, tx *Tx) error

func (f RollbackFunc) Rollback(ctx context.Context, tx *Tx) error { return f(ctx, tx) }

// RollbackHook is rollback middleware, mirroring CommitHook.
type RollbackHook func(Rollbacker) Rollbacker

// Tx is a transactional handle: a state machine wrapping a dialect.Tx
// with named savepoints and commit/rollback hook chains.
type Tx struct {
	mu sync.Mutex

	id    string
	state State
	dtx   dialect.Tx
	ctx   context.Context

	savepoints []string

	onCommit   []CommitHook
	onRollback []RollbackHook
}

// Begin starts a new transaction against driver with the given options,
// assigning it a fresh UUID identity.
func Begin(ctx context.Context, driver *sqldialect.Driver, opts Options) (*Tx, error) {
	txOpts := &sqldialect.TxOptions{
		Isolation: opts.Isolation.sqlLevel(),
		ReadOnly:  opts.ReadOnly,
	}
	dtx, err := driver.BeginTx(ctx, txOpts)
	if err != nil {
		return &Tx{id: uuid.NewString(), state: StateFailedBegin}, fmt.Errorf("dbbridge/txn: begin: %w", err)
	}
	t := &Tx{
		id:    uuid.NewString(),
		state: StateActive,
		dtx:   dtx,
		ctx:   ctx,
	}
	if opts.Deferrable {
		if err := dtx.Exec(ctx, "SET CONSTRAINTS ALL DEFERRED", []any{}, nil); err != nil {
			_ = dtx.Rollback()
			t.state = StateFailedBegin
			return t, fmt.Errorf("dbbridge/txn: set deferrable: %w", err)
		}
	}
	return t, nil
}

// ID returns the transaction's UUID identity.
func (t *Tx) ID() string { return t.id }

// State reports the current lifecycle state.
func (t *Tx) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Driver returns the underlying dialect.Tx for issuing statements
// through the query builders (sql.Select(d, tx.Driver(), ...), …).
func (t *Tx) Driver() dialect.Tx { return t.dtx }

// Context returns the context the transaction was started with.
func (t *Tx) Context() context.Context { return t.ctx }

func (t *Tx) requireActive(op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return dbbridge.NewTxStateError(t.id, t.state.String(), op)
	}
	return nil
}

// Savepoint creates a named savepoint. Duplicate names are rejected: the ordering invariant
// assumes each name appears at most once on the stack at a time.
func (t *Tx) Savepoint(ctx context.Context, name string) error {
	if err := t.requireActive("savepoint"); err != nil {
		return err
	}
	if !sqldialect.IsValidIdentifier(name) {
		return dbbridge.NewInvalidIdentifierError(name)
	}
	t.mu.Lock()
	for _, sp := range t.savepoints {
		if sp == name {
			t.mu.Unlock()
			return dbbridge.NewDuplicateSavepointError(name)
		}
	}
	t.mu.Unlock()

	if err := t.dtx.Exec(ctx, "SAVEPOINT "+quoteSavepoint(name), []any{}, nil); err != nil {
		return fmt.Errorf("dbbridge/txn: savepoint %s: %w", name, err)
	}
	t.mu.Lock()
	t.savepoints = append(t.savepoints, name)
	t.mu.Unlock()
	return nil
}

// RollbackTo rolls back to a named savepoint and truncates every
// savepoint created after it.
func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	if err := t.requireActive("rollback to savepoint"); err != nil {
		return err
	}
	if !sqldialect.IsValidIdentifier(name) {
		return dbbridge.NewInvalidIdentifierError(name)
	}
	t.mu.Lock()
	idx := -1
	for i, sp := range t.savepoints {
		if sp == name {
			idx = i
			break
		}
	}
	t.mu.Unlock()
	if idx == -1 {
		return fmt.Errorf("dbbridge/txn: unknown savepoint %q", name)
	}

	if err := t.dtx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+quoteSavepoint(name), []any{}, nil); err != nil {
		return fmt.Errorf("dbbridge/txn: rollback to savepoint %s: %w", name, err)
	}
	t.mu.Lock()
	t.savepoints = t.savepoints[:idx+1]
	t.mu.Unlock()
	return nil
}

// ReleaseSavepoint releases a named savepoint without rolling back,
// removing it (and nothing else) from the ordered stack.
func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	if err := t.requireActive("release savepoint"); err != nil {
		return err
	}
	if !sqldialect.IsValidIdentifier(name) {
		return dbbridge.NewInvalidIdentifierError(name)
	}
	if err := t.dtx.Exec(ctx, "RELEASE SAVEPOINT "+quoteSavepoint(name), []any{}, nil); err != nil {
		return fmt.Errorf("dbbridge/txn: release savepoint %s: %w", name, err)
	}
	t.mu.Lock()
	for i, sp := range t.savepoints {
		if sp == name {
			t.savepoints = append(t.savepoints[:i], t.savepoints[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	return nil
}

func quoteSavepoint(name string) string {
	return strings.ReplaceAll(name, `"`, `""`)
}

// OnCommit registers a commit hook. Hooks run in registration order,
// each wrapping the next.
func (t *Tx) OnCommit(hook CommitHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCommit = append(t.onCommit, hook)
}

// OnRollback registers a rollback hook, mirroring OnCommit.
func (t *Tx) OnRollback(hook RollbackHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRollback = append(t.onRollback, hook)
}

// Commit commits the transaction, wrapping every registered CommitHook
// around the base commit action in reverse registration order, so the
// first-registered hook ends up outermost and runs first.
func (t *Tx) Commit() error {
	t.mu.Lock()
	if t.state != StateActive {
		err := dbbridge.NewTxStateError(t.id, t.state.String(), "commit")
		t.mu.Unlock()
		return err
	}
	hooks := append([]CommitHook(nil), t.onCommit...)
	t.mu.Unlock()

	var fn Committer = CommitFunc(func(_ context.Context, tx *Tx) error {
		return tx.dtx.Commit()
	})
	for i := len(hooks) - 1; i >= 0; i-- {
		fn = hooks[i](fn)
	}
	err := fn.Commit(t.ctx, t)

	t.mu.Lock()
	if err == nil {
		t.state = StateCommitted
	}
	t.mu.Unlock()
	return err
}

// Rollback rolls back the transaction, running every registered
// RollbackHook around the base rollback action, mirroring Commit.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	if t.state != StateActive {
		err := dbbridge.NewTxStateError(t.id, t.state.String(), "rollback")
		t.mu.Unlock()
		return err
	}
	hooks := append([]RollbackHook(nil), t.onRollback...)
	t.mu.Unlock()

	var fn Rollbacker = RollbackFunc(func(_ context.Context, tx *Tx) error {
		return tx.dtx.Rollback()
	})
	for i := len(hooks) - 1; i >= 0; i-- {
		fn = hooks[i](fn)
	}
	err := fn.Rollback(t.ctx, t)

	t.mu.Lock()
	if err == nil {
		t.state = StateRolledBack
	}
	t.mu.Unlock()
	return err
}

// WithTx runs fn within a transaction begun against driver: on error or
// panic it rolls back (re-panicking after rollback), otherwise it
// commits.
func WithTx(ctx context.Context, driver *sqldialect.Driver, opts Options, fn func(tx *Tx) error) error {
	tx, err := Begin(ctx, driver, opts)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("rolling back transaction: %w", rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
