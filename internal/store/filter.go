package store

import (
	"fmt"
	"strings"
)

// Filters accumulates WHERE conditions with positional arguments. It keeps
// the dynamic filter building that repositories would otherwise repeat
// inline (equality, range, pattern and set matches) in one place.
type Filters struct {
	clauses []string
	args    []any
}

// NewFilters returns an empty filter set.
func NewFilters() *Filters { return &Filters{} }

// Eq adds an equality condition.
func (f *Filters) Eq(column string, value any) *Filters {
	return f.add(column+" = %s", value)
}

// Neq adds an inequality condition.
func (f *Filters) Neq(column string, value any) *Filters {
	return f.add(column+" <> %s", value)
}

// Gte adds a lower-bound condition.
func (f *Filters) Gte(column string, value any) *Filters {
	return f.add(column+" >= %s", value)
}

// Lte adds an upper-bound condition.
func (f *Filters) Lte(column string, value any) *Filters {
	return f.add(column+" <= %s", value)
}

// Like adds a case-insensitive pattern condition.
func (f *Filters) Like(column, pattern string) *Filters {
	return f.add(column+" ILIKE %s", pattern)
}

// In adds a set-membership condition. An empty set matches nothing.
func (f *Filters) In(column string, values []any) *Filters {
	if len(values) == 0 {
		f.clauses = append(f.clauses, "FALSE")
		return f
	}
	f.clauses = append(f.clauses, column+" = ANY(%s)")
	f.args = append(f.args, values)
	return f
}

func (f *Filters) add(tmpl string, value any) *Filters {
	f.clauses = append(f.clauses, tmpl)
	f.args = append(f.args, value)
	return f
}

// Empty reports whether no conditions were added.
func (f *Filters) Empty() bool { return len(f.clauses) == 0 }

// SQL renders the accumulated conditions as a " WHERE ..." fragment with
// placeholders numbered from first, and returns the matching arguments.
// Returns an empty fragment when no conditions were added.
func (f *Filters) SQL(first int) (string, []any) {
	if len(f.clauses) == 0 {
		return "", nil
	}

	rendered := make([]string, 0, len(f.clauses))
	n := first
	for _, c := range f.clauses {
		if strings.Contains(c, "%s") {
			rendered = append(rendered, fmt.Sprintf(c, fmt.Sprintf("$%d", n)))
			n++
		} else {
			rendered = append(rendered, c)
		}
	}

	return " WHERE " + strings.Join(rendered, " AND "), f.args
}

// Page renders a LIMIT/OFFSET fragment with placeholders numbered from
// first, returning the fragment and its arguments.
func Page(first, limit, offset int) (string, []any) {
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", first, first+1), []any{limit, offset}
}
