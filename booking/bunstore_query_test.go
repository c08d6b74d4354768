package booking

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func newMockBunStore(t *testing.T) (*BunStore, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return NewBunStore(db, WithStatementTimeout(2*time.Second)), mock
}

func TestBunStoreQueryReadOnlyCapsRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockBunStore(t)
	gateway, err := NewQueryGateway(store, 2)
	if err != nil {
		t.Fatalf("NewQueryGateway() error = %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET TRANSACTION READ ONLY")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL statement_timeout = 2000")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, rating FROM restaurants ORDER BY rating DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "rating"}).
			AddRow("Sakura Sushi", 4.8).
			AddRow("Pasta Place", 4.5).
			AddRow("Curry House", 4.4))
	mock.ExpectCommit()

	res, err := gateway.Execute(context.Background(), "SELECT name, rating FROM restaurants ORDER BY rating DESC;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "name" {
		t.Fatalf("unexpected columns %v", res.Columns)
	}
	if len(res.Rows) != 2 || !res.Truncated {
		t.Fatalf("expected 2 rows and truncation, got %d rows truncated=%v", len(res.Rows), res.Truncated)
	}
	if res.Rows[0][0] != "Sakura Sushi" {
		t.Fatalf("unexpected first row %v", res.Rows[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBunStoreQueryReadOnlyRollsBackOnError(t *testing.T) {
	t.Parallel()

	store, mock := newMockBunStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET TRANSACTION READ ONLY")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL statement_timeout")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM missing_table")).
		WillReturnError(errors.New(`relation "missing_table" does not exist`))
	mock.ExpectRollback()

	_, err := store.QueryReadOnly(context.Background(), "SELECT * FROM missing_table", 10)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQueryGatewayRejectsBeforeTouchingDatabase(t *testing.T) {
	t.Parallel()

	store, mock := newMockBunStore(t)
	gateway, err := NewQueryGateway(store, 10)
	if err != nil {
		t.Fatalf("NewQueryGateway() error = %v", err)
	}
	if _, err := gateway.Execute(context.Background(), "DELETE FROM reservations"); !errors.Is(err, ErrUnsafeQuery) {
		t.Fatalf("expected ErrUnsafeQuery, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database calls: %v", err)
	}
}
