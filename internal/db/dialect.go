package db

import (
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Dialect covers the SQL differences between engines that the verifier and
// the graph store care about: placeholders and identifier quoting.
type Dialect struct {
	driver Driver
}

// Driver returns the engine this dialect belongs to
func (d Dialect) Driver() Driver {
	return d.driver
}

// Rebind rewrites ? placeholders into the engine's native form. Queries
// passed here never contain ? inside literals.
func (d Dialect) Rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Quote quotes an identifier for use in a statement
func (d Dialect) Quote(ident string) string {
	switch d.driver {
	case DriverPostgres:
		return pgx.Identifier{ident}.Sanitize()
	case DriverMySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}
