package booking

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRunner struct {
	queries []string
	maxRows int
	result  *QueryResult
	err     error
}

func (f *fakeRunner) QueryReadOnly(ctx context.Context, query string, maxRows int) (*QueryResult, error) {
	f.queries = append(f.queries, query)
	f.maxRows = maxRows
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestCheckReadOnlyAccepts(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"SELECT name FROM restaurants;":                                    "SELECT name FROM restaurants",
		"  select * from reservations where party_size > 2  ":              "select * from reservations where party_size > 2",
		"WITH t AS (SELECT 1 AS n) SELECT n FROM t":                        "WITH t AS (SELECT 1 AS n) SELECT n FROM t",
		"SELECT updated_at, created_at FROM reservations":                  "SELECT updated_at, created_at FROM reservations",
		"SELECT name FROM restaurants ORDER BY rating DESC LIMIT 3":        "SELECT name FROM restaurants ORDER BY rating DESC LIMIT 3",
		"SELECT r.id FROM reservations r JOIN restaurants rest ON true;  ": "SELECT r.id FROM reservations r JOIN restaurants rest ON true",
		"SELECT * FROM restaurants WHERE name = 'Do Re Mi'":                "SELECT * FROM restaurants WHERE name = 'Do Re Mi'",
		"SELECT * FROM restaurants WHERE cuisine = 'Set Menu';":            "SELECT * FROM restaurants WHERE cuisine = 'Set Menu'",
		"SELECT id FROM reservations WHERE customer_name = 'O''Brien'":     "SELECT id FROM reservations WHERE customer_name = 'O''Brien'",
		"SELECT id FROM restaurants WHERE name = 'Fish; Chips -- Grill'":   "SELECT id FROM restaurants WHERE name = 'Fish; Chips -- Grill'",
	}
	for in, want := range cases {
		got, err := CheckReadOnly(in)
		if err != nil {
			t.Fatalf("CheckReadOnly(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("CheckReadOnly(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckReadOnlyRejects(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		" ; ",
		"DELETE FROM reservations",
		"UPDATE restaurants SET current_booking = 0",
		"SELECT 1; DROP TABLE restaurants",
		"SELECT * FROM restaurants -- sneaky",
		"SELECT /* hi */ 1",
		"WITH x AS (DELETE FROM reservations RETURNING *) SELECT * FROM x",
		"SELECT * INTO backup FROM reservations",
		"EXPLAIN ANALYZE SELECT 1",
		"SET statement_timeout = 0",
		"SELECT 'Set Menu'; DELETE FROM reservations",
		"SELECT name FROM restaurants WHERE name = 'Do Re Mi' UNION SELECT 1 INTO x",
		"SELECT 'unterminated FROM restaurants",
		"SELECT 'O''Brien' ; DROP TABLE restaurants",
		"SELECT E'\\'' ; DELETE FROM reservations; SELECT ''",
		"SELECT $$x$$",
	}
	for _, in := range cases {
		if _, err := CheckReadOnly(in); !errors.Is(err, ErrUnsafeQuery) {
			t.Fatalf("CheckReadOnly(%q) error = %v, want ErrUnsafeQuery", in, err)
		}
	}
}

func TestQueryGatewayExecute(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: &QueryResult{
		Columns: []string{"name", "rating"},
		Rows:    [][]any{{"Sakura Sushi", 4.8}, {"Le Petit Bistro", 4.6}},
	}}
	g, err := NewQueryGateway(runner, 0)
	if err != nil {
		t.Fatalf("NewQueryGateway() error = %v", err)
	}

	result, err := g.Execute(context.Background(), "SELECT name, rating FROM restaurants;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if runner.maxRows != defaultMaxRows {
		t.Fatalf("maxRows = %d, want %d", runner.maxRows, defaultMaxRows)
	}
	if len(runner.queries) != 1 || runner.queries[0] != "SELECT name, rating FROM restaurants" {
		t.Fatalf("unexpected queries: %#v", runner.queries)
	}

	want := "name | rating\nSakura Sushi | 4.8\nLe Petit Bistro | 4.6"
	if got := result.FormatRows(); got != want {
		t.Fatalf("FormatRows() = %q, want %q", got, want)
	}
}

func TestQueryGatewayRejectsBeforeRunning(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: &QueryResult{}}
	g, _ := NewQueryGateway(runner, 10)

	if _, err := g.Execute(context.Background(), "DROP TABLE reservations"); !errors.Is(err, ErrUnsafeQuery) {
		t.Fatalf("expected ErrUnsafeQuery, got %v", err)
	}
	if len(runner.queries) != 0 {
		t.Fatalf("runner called for rejected query: %#v", runner.queries)
	}
}

func TestQueryGatewayPropagatesRunnerError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: ErrStorage}
	g, _ := NewQueryGateway(runner, 10)

	if _, err := g.Execute(context.Background(), "SELECT 1"); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestFormatRowsEmptyAndTruncated(t *testing.T) {
	t.Parallel()

	if got := (&QueryResult{Columns: []string{"id"}}).FormatRows(); got != "No results found." {
		t.Fatalf("FormatRows() = %q", got)
	}
	var nilResult *QueryResult
	if got := nilResult.FormatRows(); got != "No results found." {
		t.Fatalf("FormatRows() on nil = %q", got)
	}

	r := &QueryResult{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}, Truncated: true}
	if got := r.FormatRows(); !strings.HasSuffix(got, "(results truncated)") {
		t.Fatalf("FormatRows() = %q, want truncation note", got)
	}
}

func TestNewQueryGatewayRequiresRunner(t *testing.T) {
	t.Parallel()

	if _, err := NewQueryGateway(nil, 10); err == nil {
		t.Fatal("expected error for nil runner")
	}
}
