// Package sqlxrepos implements the repositories on PostgreSQL with sqlx, building queries with squirrel.
package sqlxrepos

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/MC-tan/school-database-app/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func orderBy(ordering []core.DBOrdering) []string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		clauses = append(clauses, ord.String())
	}
	return clauses
}

// validIDs drops the values that are not UUIDs, postgres would reject the whole query otherwise.
func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func ilike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
