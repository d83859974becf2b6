package docstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	pgx "github.com/jackc/pgx/v4"
)

const rowAlias = "t"

type sqlArgs struct {
	values []any
}

func (a *sqlArgs) add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

// tableName joins prefix and collection into a quoted identifier.
func tableName(prefix, collection string) (string, error) {
	if !segmentPattern.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	name := collection
	if prefix != "" {
		if !segmentPattern.MatchString(prefix) {
			return "", fmt.Errorf("invalid collection prefix %q", prefix)
		}
		name = prefix + "_" + collection
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// containment builds the JSON document that doc @> must hold for p.
func containment(p Predicate) (string, error) {
	segments, err := splitPath(p.path)
	if err != nil {
		return "", err
	}
	var leaf any = p.value
	if p.kind == predicateContains {
		leaf = []any{p.value}
	}
	for i := len(segments) - 1; i >= 0; i-- {
		leaf = map[string]any{segments[i]: leaf}
	}
	raw, err := json.Marshal(leaf)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter value for %s: %w", p.path, err)
	}
	return string(raw), nil
}

func compileFilterSQL(f Filter, args *sqlArgs) (string, error) {
	if f.IsEmpty() {
		return "TRUE", nil
	}
	conds := make([]string, 0, len(f.predicates))
	for _, p := range f.predicates {
		doc, err := containment(p)
		if err != nil {
			return "", err
		}
		conds = append(conds, fmt.Sprintf("%s.doc @> %s::jsonb", rowAlias, args.add(doc)))
	}
	return strings.Join(conds, " AND "), nil
}

// compileUpdateSQL chains one LATERAL step per document transformation and
// returns the joins and the expression holding the final document.
func compileUpdateSQL(u Update, args *sqlArgs) (string, string, error) {
	if u.IsEmpty() {
		return "", "", ErrEmptyUpdate
	}

	var steps []func(prev string) string
	for _, op := range u.ops {
		segments, err := splitPath(op.path)
		if err != nil {
			return "", "", err
		}

		if op.kind != opUnset && op.kind != opPull {
			for j := 1; j < len(segments); j++ {
				parent := args.add(segments[:j])
				steps = append(steps, func(prev string) string {
					return fmt.Sprintf("CASE WHEN jsonb_typeof(%[1]s #> %[2]s::text[]) = 'object' THEN %[1]s ELSE jsonb_set(%[1]s, %[2]s::text[], '{}'::jsonb, true) END", prev, parent)
				})
			}
		}

		path := args.add(segments)
		var value string
		if op.kind != opUnset {
			raw, err := json.Marshal(op.value)
			if err != nil {
				return "", "", fmt.Errorf("failed to encode update value for %s: %w", op.path, err)
			}
			value = args.add(string(raw))
		}

		switch op.kind {
		case opSet:
			steps = append(steps, func(prev string) string {
				return fmt.Sprintf("jsonb_set(%s, %s::text[], %s::jsonb, true)", prev, path, value)
			})
		case opUnset:
			steps = append(steps, func(prev string) string {
				return fmt.Sprintf("(%s #- %s::text[])", prev, path)
			})
		case opAddToSet:
			steps = append(steps, func(prev string) string {
				arr := fmt.Sprintf("(CASE WHEN jsonb_typeof(%[1]s #> %[2]s::text[]) = 'array' THEN %[1]s #> %[2]s::text[] ELSE '[]'::jsonb END)", prev, path)
				return fmt.Sprintf("CASE WHEN %[2]s @> jsonb_build_array(%[4]s::jsonb) THEN %[1]s ELSE jsonb_set(%[1]s, %[3]s::text[], %[2]s || jsonb_build_array(%[4]s::jsonb), true) END", prev, arr, path, value)
			})
		case opPull:
			steps = append(steps, func(prev string) string {
				kept := fmt.Sprintf("COALESCE((SELECT jsonb_agg(e.value ORDER BY e.ord) FROM jsonb_array_elements(%[1]s #> %[2]s::text[]) WITH ORDINALITY AS e(value, ord) WHERE e.value <> %[3]s::jsonb), '[]'::jsonb)", prev, path, value)
				return fmt.Sprintf("CASE WHEN jsonb_typeof(%[1]s #> %[2]s::text[]) = 'array' THEN jsonb_set(%[1]s, %[2]s::text[], %[3]s, false) ELSE %[1]s END", prev, path, kept)
			})
		}
	}

	var joins strings.Builder
	prev := rowAlias + ".doc"
	for i, step := range steps {
		alias := "s" + strconv.Itoa(i+1)
		fmt.Fprintf(&joins, "\n\tCROSS JOIN LATERAL (SELECT %s AS doc) %s", step(prev), alias)
		prev = alias + ".doc"
	}
	return joins.String(), prev, nil
}

func buildFindSQL(table string, f Filter, limit int) (string, []any, error) {
	args := &sqlArgs{}
	where, err := compileFilterSQL(f, args)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf("SELECT %[2]s.doc FROM %[1]s %[2]s WHERE %[3]s ORDER BY %[2]s.seq", table, rowAlias, where)
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}
	return query, args.values, nil
}

func buildCountSQL(table string, f Filter) (string, []any, error) {
	args := &sqlArgs{}
	where, err := compileFilterSQL(f, args)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT count(*) FROM %[1]s %[2]s WHERE %[3]s", table, rowAlias, where), args.values, nil
}

func buildInsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)", table)
}

func buildDeleteSQL(table string, f Filter) (string, []any, error) {
	args := &sqlArgs{}
	where, err := compileFilterSQL(f, args)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf(`DELETE FROM %[1]s WHERE id = (
	SELECT %[2]s.id FROM %[1]s %[2]s WHERE %[3]s ORDER BY %[2]s.seq LIMIT 1
)`, table, rowAlias, where)
	return query, args.values, nil
}

// buildUpdateSQL locks the matching rows, computes each new document and
// writes only rows whose document changed. The statement returns the matched
// and modified counts.
func buildUpdateSQL(table string, f Filter, u Update, many bool) (string, []any, error) {
	args := &sqlArgs{}
	joins, newDoc, err := compileUpdateSQL(u, args)
	if err != nil {
		return "", nil, err
	}
	where, err := compileFilterSQL(f, args)
	if err != nil {
		return "", nil, err
	}
	limit := ""
	if !many {
		limit = "\n\tLIMIT 1"
	}
	query := fmt.Sprintf(`WITH matched AS (
	SELECT %[2]s.id, %[2]s.doc AS old_doc, %[3]s AS new_doc
	FROM %[1]s %[2]s%[4]s
	WHERE %[5]s
	ORDER BY %[2]s.seq%[6]s
	FOR UPDATE OF %[2]s
), updated AS (
	UPDATE %[1]s u SET doc = m.new_doc
	FROM matched m
	WHERE u.id = m.id AND m.new_doc IS DISTINCT FROM m.old_doc
	RETURNING u.id
)
SELECT (SELECT count(*) FROM matched), (SELECT count(*) FROM updated)`, table, rowAlias, newDoc, joins, where, limit)
	return query, args.values, nil
}
