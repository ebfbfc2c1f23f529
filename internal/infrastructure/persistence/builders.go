package persistence

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	appErrors "commerce-backend/pkg/errors"
)

// SQLQuery is a built statement with its positional parameters.
type SQLQuery struct {
	Query  string
	Params []any
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// shiftPlaceholders renumbers every $n in query upward by offset, so
// independently built statements can be combined into one.
func shiftPlaceholders(query string, offset int) string {
	if offset == 0 {
		return query
	}
	return placeholderRe.ReplaceAllStringFunc(query, func(m string) string {
		var n int
		fmt.Sscanf(m, "$%d", &n)
		return fmt.Sprintf("$%d", n+offset)
	})
}

// placeholders renders "$start, $start+1, ..." for count values.
func placeholders(start, count int) string {
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

// BatchSelect builds a WHERE IN lookup over one table. Empty ids yield
// a query guaranteed to return no rows without touching the database
// driver's empty-IN corner case.
func BatchSelect(table string, ids []any, columns ...string) SQLQuery {
	cols := "*"
	if len(columns) > 0 {
		cols = strings.Join(columns, ", ")
	}
	if len(ids) == 0 {
		return SQLQuery{Query: fmt.Sprintf("SELECT %s FROM %s WHERE 1 = 0", cols, table)}
	}
	return SQLQuery{
		Query: fmt.Sprintf("SELECT %s FROM %s WHERE id IN (%s)",
			cols, table, placeholders(1, len(ids))),
		Params: ids,
	}
}

// Relation describes one LEFT JOIN in a RelatedDataQuery.
type Relation struct {
	Table      string
	ForeignKey string   // column on the related table pointing at the base table
	Columns    []string // columns to project from the related table
}

// RelatedDataQuery builds a base-table select LEFT JOINed to any number
// of related tables. Related tables are aliased r0..rN in declaration
// order and their columns are projected as <table>_<column> to keep the
// result row keys unambiguous.
func RelatedDataQuery(base string, ids []any, relations []Relation) SQLQuery {
	sel := []string{base + ".*"}
	joins := make([]string, 0, len(relations))
	for i, rel := range relations {
		alias := fmt.Sprintf("r%d", i)
		for _, col := range rel.Columns {
			sel = append(sel, fmt.Sprintf("%s.%s AS %s_%s", alias, col, rel.Table, col))
		}
		joins = append(joins, fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.id",
			rel.Table, alias, alias, rel.ForeignKey, base))
	}

	var where string
	var params []any
	if len(ids) == 0 {
		where = "WHERE 1 = 0"
	} else {
		where = fmt.Sprintf("WHERE %s.id IN (%s)", base, placeholders(1, len(ids)))
		params = ids
	}

	query := fmt.Sprintf("SELECT %s FROM %s %s %s",
		strings.Join(sel, ", "), base, strings.Join(joins, " "), where)
	return SQLQuery{Query: strings.Join(strings.Fields(query), " "), Params: params}
}

// CountSpec names one COUNT to run: rows of table matching an optional
// condition.
type CountSpec struct {
	ID        string
	Table     string
	Condition string // optional WHERE clause body with $1.. placeholders
	Params    []any
}

// BatchCount runs every count concurrently through the batcher and
// returns an ID-keyed map. A failed count reports 0; the error stays in
// the batcher's logs rather than aborting the siblings.
func BatchCount(ctx context.Context, b *Batcher, specs []CountSpec) map[string]int64 {
	for _, s := range specs {
		query := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", s.Table)
		if s.Condition != "" {
			query += " WHERE " + s.Condition
		}
		b.Add(s.ID, query, s.Params...)
	}

	results := b.Execute(ctx)
	out := make(map[string]int64, len(specs))
	for _, s := range specs {
		out[s.ID] = scalarInt(results[s.ID], "count")
	}
	return out
}

var aggregateOps = map[string]bool{
	"SUM": true, "AVG": true, "MIN": true, "MAX": true, "COUNT": true,
}

// AggregateSpec names one aggregate to run over a table column.
type AggregateSpec struct {
	ID        string
	Table     string
	Op        string // SUM, AVG, MIN, MAX or COUNT
	Column    string
	Condition string
	Params    []any
}

// BatchAggregates runs every aggregate concurrently and returns an
// ID-keyed map. Unknown operations are rejected up front; a failed
// aggregate reports 0.
func BatchAggregates(ctx context.Context, b *Batcher, specs []AggregateSpec) (map[string]float64, error) {
	for _, s := range specs {
		op := strings.ToUpper(s.Op)
		if !aggregateOps[op] {
			return nil, appErrors.NewValidation(fmt.Sprintf("unsupported aggregate operation %q", s.Op))
		}
		query := fmt.Sprintf("SELECT COALESCE(%s(%s), 0) AS value FROM %s", op, s.Column, s.Table)
		if s.Condition != "" {
			query += " WHERE " + s.Condition
		}
		b.Add(s.ID, query, s.Params...)
	}

	results := b.Execute(ctx)
	out := make(map[string]float64, len(specs))
	for _, s := range specs {
		out[s.ID] = scalarFloat(results[s.ID], "value")
	}
	return out, nil
}

// UnionQuery combines independently built selects with UNION ALL,
// renumbering each branch's placeholders so the combined parameter list
// stays positional. orderBy and limit, when set, apply to the combined
// result by wrapping the union in a subquery.
func UnionQuery(queries []SQLQuery, orderBy string, limit int) SQLQuery {
	if len(queries) == 0 {
		return SQLQuery{}
	}

	branches := make([]string, len(queries))
	var params []any
	for i, q := range queries {
		branches[i] = shiftPlaceholders(q.Query, len(params))
		params = append(params, q.Params...)
	}

	combined := strings.Join(branches, " UNION ALL ")
	if orderBy != "" || limit > 0 {
		combined = fmt.Sprintf("SELECT * FROM (%s) AS combined", combined)
		if orderBy != "" {
			combined += " ORDER BY " + orderBy
		}
		if limit > 0 {
			combined += fmt.Sprintf(" LIMIT %d", limit)
		}
	}
	return SQLQuery{Query: combined, Params: params}
}

// UpdateSpec is one row's pending changes for BatchUpdate.
type UpdateSpec struct {
	ID      any
	Changes map[string]any
}

// BatchUpdate collapses many single-row updates into as few statements
// as possible: rows changing the same set of columns are grouped into one
// CASE-based UPDATE. The result is one statement per distinct column set,
// in deterministic (sorted) group order, meant for ExecuteInTransaction.
func BatchUpdate(table string, updates []UpdateSpec) []SQLQuery {
	if len(updates) == 0 {
		return nil
	}

	// Group rows by the sorted set of columns they change.
	groups := make(map[string][]UpdateSpec)
	for _, u := range updates {
		if len(u.Changes) == 0 {
			continue
		}
		cols := make([]string, 0, len(u.Changes))
		for col := range u.Changes {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		key := strings.Join(cols, ",")
		groups[key] = append(groups[key], u)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]SQLQuery, 0, len(groups))
	for _, key := range keys {
		rows := groups[key]
		cols := strings.Split(key, ",")

		var params []any
		next := func(v any) string {
			params = append(params, v)
			return fmt.Sprintf("$%d", len(params))
		}

		sets := make([]string, len(cols))
		for i, col := range cols {
			var sb strings.Builder
			sb.WriteString(col + " = CASE id")
			for _, row := range rows {
				idPh := next(row.ID)
				valPh := next(row.Changes[col])
				sb.WriteString(fmt.Sprintf(" WHEN %s THEN %s", idPh, valPh))
			}
			sb.WriteString(" END")
			sets[i] = sb.String()
		}

		idPhs := make([]string, len(rows))
		for i, row := range rows {
			idPhs[i] = next(row.ID)
		}

		out = append(out, SQLQuery{
			Query: fmt.Sprintf("UPDATE %s SET %s WHERE id IN (%s)",
				table, strings.Join(sets, ", "), strings.Join(idPhs, ", ")),
			Params: params,
		})
	}
	return out
}

func scalarInt(r Result, column string) int64 {
	if r.Err != nil || len(r.Rows) == 0 {
		return 0
	}
	switch v := r.Rows[0][column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func scalarFloat(r Result, column string) float64 {
	if r.Err != nil || len(r.Rows) == 0 {
		return 0
	}
	switch v := r.Rows[0][column].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}
