package postgres

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/linegrid/linegrid/pkg/store/document"
)

// collectionTables whitelists the collections this store knows how to
// address, each backed by its own JSONB table with generated, indexed
// columns for the fields filters/sorts actually need (see migrations/).
var collectionTables = map[string]bool{
	"files":          true,
	"jobs":           true,
	"parsed_records": true,
}

func tableName(collection string) (string, error) {
	if !collectionTables[collection] {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return collection, nil
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func quoteIdent(field string) (string, error) {
	if !identPattern.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return field, nil
}

// buildWhere renders a Filter as a SQL boolean expression referencing the
// generated, indexed columns each table exposes, starting parameter
// numbering at argStart. It returns "TRUE" (no args) for a zero Filter.
func buildWhere(f document.Filter, argStart int) (string, []any, int, error) {
	var args []any
	next := argStart

	andClauses, err := renderConds(f.All, &args, &next)
	if err != nil {
		return "", nil, 0, err
	}

	var orGroup string
	if len(f.Any) > 0 {
		parts := make([]string, 0, len(f.Any))
		for _, sub := range f.Any {
			clause, subArgs, n, err := buildWhere(sub, next)
			if err != nil {
				return "", nil, 0, err
			}
			args = append(args, subArgs...)
			next = n
			parts = append(parts, "("+clause+")")
		}
		orGroup = "(" + strings.Join(parts, " OR ") + ")"
	}

	clauses := make([]string, 0, 2)
	if andClauses != "" {
		clauses = append(clauses, andClauses)
	}
	if orGroup != "" {
		clauses = append(clauses, orGroup)
	}
	if len(clauses) == 0 {
		return "TRUE", args, next, nil
	}
	return strings.Join(clauses, " AND "), args, next, nil
}

func renderConds(conds []document.Cond, args *[]any, next *int) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		field, err := quoteIdent(c.Field)
		if err != nil {
			return "", err
		}
		op := string(c.Op)
		switch c.Op {
		case document.OpEq, document.OpNe, document.OpLt, document.OpLte, document.OpGt, document.OpGte:
		default:
			return "", fmt.Errorf("unsupported operator %q", c.Op)
		}
		if c.Value == nil {
			if c.Op == document.OpEq {
				parts = append(parts, fmt.Sprintf("%s IS NULL", field))
			} else {
				parts = append(parts, fmt.Sprintf("%s IS NOT NULL", field))
			}
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s $%d", field, op, *next))
		*args = append(*args, c.Value)
		*next++
	}
	return strings.Join(parts, " AND "), nil
}

func buildOrderBy(sort document.Sort) (string, error) {
	if len(sort) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(sort))
	for _, key := range sort {
		field, err := quoteIdent(key.Field)
		if err != nil {
			return "", err
		}
		dir := "DESC"
		if key.Ascending {
			dir = "ASC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", field, dir))
	}
	return "ORDER BY " + strings.Join(parts, ", "), nil
}

// buildSetExpr renders an Update as a single jsonb-valued SQL expression
// built from the bare column "doc", starting parameter numbering at
// argStart. Set is applied as a shallow merge; Inc adds a numeric delta to
// a top-level field; PushCapped appends to a top-level array field,
// evicting the oldest element once it reaches Cap entries.
func buildSetExpr(u document.Update, argStart int) (string, []any, int, error) {
	expr := "doc"
	var args []any
	next := argStart

	if len(u.Set) > 0 {
		patch := make(map[string]any, len(u.Set))
		for k, v := range u.Set {
			patch[k] = v
		}
		expr = fmt.Sprintf("(%s || $%d::jsonb)", expr, next)
		args = append(args, patch)
		next++
	}

	for field, delta := range u.Inc {
		ident, err := quoteIdent(field)
		if err != nil {
			return "", nil, 0, err
		}
		expr = fmt.Sprintf(
			"jsonb_set(%s, '{%s}', to_jsonb(COALESCE((%s->>'%s')::numeric, 0) + $%d::numeric), true)",
			expr, ident, expr, ident, next,
		)
		args = append(args, delta)
		next++
	}

	if u.PushCapped != nil {
		field, err := quoteIdent(u.PushCapped.Field)
		if err != nil {
			return "", nil, 0, err
		}
		valueArg := next
		capArg := next + 1
		arrPath := fmt.Sprintf("COALESCE(%s->'%s', '[]'::jsonb)", expr, field)
		expr = fmt.Sprintf(
			`jsonb_set(%s, '{%s}', CASE WHEN jsonb_array_length(%s) >= $%d::int THEN (%s - 0) || jsonb_build_array($%d::jsonb) ELSE %s || jsonb_build_array($%d::jsonb) END, true)`,
			expr, field, arrPath, capArg, arrPath, valueArg, arrPath, valueArg,
		)
		args = append(args, u.PushCapped.Value, u.PushCapped.Cap)
		next += 2
	}

	return expr, args, next, nil
}
