package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/MC-tan/school-database-app/core"
)

var orderingParam = "ordering"

// Ordering binds the `ordering` query param, e.g. `?ordering=grade,-created_at`.
// The param may be repeated; only the first occurrence of a field counts.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	seen := make(map[string]bool)
	for _, val := range ctx.QueryParams()[orderingParam] {
		for _, field := range strings.Split(val, ",") {
			field = strings.TrimSpace(field)
			ascending := !strings.HasPrefix(field, "-")
			field = strings.TrimPrefix(field, "-")
			if field == "" || seen[field] {
				continue
			}
			seen[field] = true
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: ascending})
		}
	}
}
