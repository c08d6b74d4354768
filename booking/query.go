package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

const defaultMaxRows = 50

var (
	sqlWordPattern = regexp.MustCompile(`[a-z_]+`)

	// Words that only appear in statements that write, change schema or
	// escape the session.
	deniedSQLWords = map[string]struct{}{
		"insert": {}, "update": {}, "delete": {}, "drop": {}, "alter": {},
		"create": {}, "truncate": {}, "grant": {}, "revoke": {}, "merge": {},
		"copy": {}, "call": {}, "do": {}, "execute": {}, "vacuum": {},
		"reindex": {}, "cluster": {}, "lock": {}, "comment": {}, "set": {},
		"reset": {}, "listen": {}, "notify": {}, "prepare": {}, "into": {},
	}
)

// QueryGateway runs ad-hoc read-only lookups. CheckReadOnly is a best-effort
// denylist; the runner's READ ONLY transaction is what actually prevents
// writes.
type QueryGateway struct {
	runner  ReadOnlyRunner
	maxRows int
}

func NewQueryGateway(runner ReadOnlyRunner, maxRows int) (*QueryGateway, error) {
	if runner == nil {
		return nil, errors.New("read-only runner is required")
	}
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &QueryGateway{runner: runner, maxRows: maxRows}, nil
}

func (g *QueryGateway) Execute(ctx context.Context, query string) (*QueryResult, error) {
	stmt, err := CheckReadOnly(query)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("query rejected")
		return nil, err
	}
	result, err := g.runner.QueryReadOnly(ctx, stmt, g.maxRows)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CheckReadOnly returns the statement without its trailing semicolon when it
// is lexically a single SELECT (or WITH ... SELECT) statement. Quoted string
// literals are blanked before the checks so values such as 'Set Menu' pass.
func CheckReadOnly(query string) (string, error) {
	stmt := strings.TrimSpace(query)
	stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	if stmt == "" {
		return "", fmt.Errorf("%w: empty query", ErrUnsafeQuery)
	}
	code, err := blankStringLiterals(stmt)
	if err != nil {
		return "", err
	}
	if strings.Contains(code, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrUnsafeQuery)
	}
	if strings.Contains(code, "--") || strings.Contains(code, "/*") {
		return "", fmt.Errorf("%w: comments are not allowed", ErrUnsafeQuery)
	}
	if strings.Contains(code, "$") {
		return "", fmt.Errorf("%w: dollar quoting is not allowed", ErrUnsafeQuery)
	}

	words := sqlWordPattern.FindAllString(strings.ToLower(code), -1)
	if len(words) == 0 || (words[0] != "select" && words[0] != "with") {
		return "", fmt.Errorf("%w: must start with SELECT", ErrUnsafeQuery)
	}
	for _, w := range words {
		if _, denied := deniedSQLWords[w]; denied {
			return "", fmt.Errorf("%w: keyword %q is not allowed", ErrUnsafeQuery, w)
		}
	}
	return stmt, nil
}

// blankStringLiterals replaces every '...' literal with an empty one. A
// doubled quote inside a literal is an escaped quote. Backslashes inside
// literals are refused since E'' strings give them escape meaning.
func blankStringLiterals(stmt string) (string, error) {
	var b strings.Builder
	b.Grow(len(stmt))
	inLiteral := false
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		if !inLiteral {
			if c == '\'' {
				inLiteral = true
			}
			b.WriteByte(c)
			continue
		}
		switch c {
		case '\\':
			return "", fmt.Errorf("%w: backslash in string literal", ErrUnsafeQuery)
		case '\'':
			if i+1 < len(stmt) && stmt[i+1] == '\'' {
				i++
				continue
			}
			inLiteral = false
			b.WriteByte(c)
		}
	}
	if inLiteral {
		return "", fmt.Errorf("%w: unterminated string literal", ErrUnsafeQuery)
	}
	return b.String(), nil
}

// FormatRows renders a result the way the chat surfaces it: one row per line.
func (r *QueryResult) FormatRows() string {
	if r == nil || len(r.Rows) == 0 {
		return "No results found."
	}
	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	for _, row := range r.Rows {
		b.WriteByte('\n')
		for i, v := range row {
			if i > 0 {
				b.WriteString(" | ")
			}
			fmt.Fprint(&b, v)
		}
	}
	if r.Truncated {
		b.WriteString("\n(results truncated)")
	}
	return b.String()
}
