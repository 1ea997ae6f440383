package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berkeerdo/dbbridge/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestStatsDriverRecordsQueriesAndExecs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)
	stats := NewStatsDriver(drv)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	var rows Rows
	require.NoError(t, stats.Query(context.Background(), "SELECT 1", []any{}, &rows))
	require.NoError(t, rows.Close())

	mock.ExpectExec("INSERT INTO users DEFAULT VALUES").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, stats.Exec(context.Background(), "INSERT INTO users DEFAULT VALUES", []any{}, nil))

	snap := stats.QueryStats().Stats()
	require.Equal(t, int64(1), snap.TotalQueries)
	require.Equal(t, int64(1), snap.TotalExecs)
	require.Zero(t, snap.Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsDriverCountsErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)
	stats := NewStatsDriver(drv)

	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("boom"))
	var rows Rows
	require.Error(t, stats.Query(context.Background(), "SELECT 1", []any{}, &rows))

	require.Equal(t, int64(1), stats.QueryStats().Stats().Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsDriverSlowQueryHook(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)

	var hookCalled bool
	stats := NewStatsDriver(drv,
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			hookCalled = true
			require.Equal(t, "SELECT 1", query)
		}),
	)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	var rows Rows
	require.NoError(t, stats.Query(context.Background(), "SELECT 1", []any{}, &rows))
	require.NoError(t, rows.Close())

	require.True(t, hookCalled)
	require.Equal(t, int64(1), stats.QueryStats().Stats().SlowQueries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebugDriverLogsQueriesAndExecs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)

	var logged []string
	debug := NewDebugDriver(drv, DebugWithLog(func(_ context.Context, v ...any) {
		for _, x := range v {
			if s, ok := x.(string); ok {
				logged = append(logged, s)
			}
		}
	}))

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	var rows Rows
	require.NoError(t, debug.Query(context.Background(), "SELECT 1", []any{}, &rows))
	require.NoError(t, rows.Close())
	require.NotEmpty(t, logged)
	require.NoError(t, mock.ExpectationsWereMet())
}
