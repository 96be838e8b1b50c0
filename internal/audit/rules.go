package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
)

// SelectStarRule detects SELECT *.
type SelectStarRule struct{}

func (r *SelectStarRule) Name() string { return "select_star" }

func (r *SelectStarRule) Check(sql string, node ast.StmtNode, _ *Schema) []Issue {
	stmt, ok := node.(*ast.SelectStmt)
	if !ok || stmt.Fields == nil {
		return nil
	}
	for _, field := range stmt.Fields.Fields {
		if field.WildCard != nil {
			return []Issue{{
				Rule:       r.Name(),
				Type:       "SELECT_STAR",
				Level:      LevelSuggestion,
				Message:    "SELECT * reads every column",
				Suggestion: "List the columns the caller needs.",
				SQL:        sql,
			}}
		}
	}
	return nil
}

// NoWhereRule detects UPDATE and DELETE without WHERE.
type NoWhereRule struct{}

func (r *NoWhereRule) Name() string { return "no_where_clause" }

func (r *NoWhereRule) Check(sql string, node ast.StmtNode, _ *Schema) []Issue {
	switch stmt := node.(type) {
	case *ast.UpdateStmt:
		if stmt.Where == nil {
			return []Issue{{
				Rule:       r.Name(),
				Type:       "UNSAFE_UPDATE",
				Level:      LevelFatal,
				Message:    "UPDATE without WHERE rewrites the whole table",
				Suggestion: "Add a WHERE clause to limit the scope of the update.",
				SQL:        sql,
			}}
		}
	case *ast.DeleteStmt:
		if stmt.Where == nil {
			return []Issue{{
				Rule:       r.Name(),
				Type:       "UNSAFE_DELETE",
				Level:      LevelFatal,
				Message:    "DELETE without WHERE empties the whole table",
				Suggestion: "Add a WHERE clause to limit the scope of the delete.",
				SQL:        sql,
			}}
		}
	}
	return nil
}

// UnboundedSelectRule detects reads of a whole table: no WHERE and no LIMIT.
type UnboundedSelectRule struct{}

func (r *UnboundedSelectRule) Name() string { return "unbounded_select" }

func (r *UnboundedSelectRule) Check(sql string, node ast.StmtNode, _ *Schema) []Issue {
	stmt, ok := node.(*ast.SelectStmt)
	if !ok || stmt.From == nil || stmt.Where != nil || stmt.Limit != nil {
		return nil
	}
	if isAggregate(stmt) {
		return nil
	}
	return []Issue{{
		Rule:       r.Name(),
		Type:       "UNBOUNDED_SELECT",
		Level:      LevelWarning,
		Message:    "SELECT without WHERE or LIMIT fetches the entire table",
		Suggestion: "Push filtering and pagination (LIMIT/OFFSET or keyset) down to the database.",
		SQL:        sql,
	}}
}

// IndexMissRule checks that WHERE filters lead with an indexed column.
type IndexMissRule struct{}

func (r *IndexMissRule) Name() string { return "index_miss" }

func (r *IndexMissRule) Check(sql string, node ast.StmtNode, schema *Schema) []Issue {
	if schema == nil {
		return nil
	}

	var (
		tableName string
		where     ast.ExprNode
	)
	switch stmt := node.(type) {
	case *ast.SelectStmt:
		if stmt.From != nil {
			tableName = firstTable(stmt.From.TableRefs)
		}
		where = stmt.Where
	case *ast.UpdateStmt:
		if stmt.TableRefs != nil {
			tableName = firstTable(stmt.TableRefs.TableRefs)
		}
		where = stmt.Where
	case *ast.DeleteStmt:
		if stmt.TableRefs != nil {
			tableName = firstTable(stmt.TableRefs.TableRefs)
		}
		where = stmt.Where
	}
	if tableName == "" || where == nil {
		return nil
	}

	table, ok := schema.Tables[tableName]
	if !ok {
		return nil
	}

	cols := make(map[string]bool)
	where.Accept(&columnVisitor{cols: cols})
	if len(cols) == 0 || table.HasIndexPrefix(cols) {
		return nil
	}

	return []Issue{{
		Rule:       r.Name(),
		Type:       "INDEX_MISS",
		Level:      LevelWarning,
		Message:    fmt.Sprintf("filter on %s(%s) hits no index; every call scans the table", tableName, strings.Join(sortedKeys(cols), ", ")),
		Suggestion: "Add an index whose leading column is the filtered column.",
		SQL:        sql,
	}}
}

// RepeatedStatementRule flags statement shapes run more than Threshold
// times: repeated reads are N+1 lookups, repeated writes are unbatched.
type RepeatedStatementRule struct {
	Threshold int
}

func (r *RepeatedStatementRule) Name() string { return "repeated_statement" }

func (r *RepeatedStatementRule) CheckSequence(statements []string) []Issue {
	threshold := r.Threshold
	if threshold <= 0 {
		threshold = 1
	}

	type shape struct {
		first string
		count int
	}
	var order []string
	shapes := make(map[string]*shape)
	for _, sql := range statements {
		digest := parser.Normalize(sql)
		s, ok := shapes[digest]
		if !ok {
			s = &shape{first: sql}
			shapes[digest] = s
			order = append(order, digest)
		}
		s.count++
	}

	var issues []Issue
	for _, digest := range order {
		s := shapes[digest]
		if s.count <= threshold {
			continue
		}
		if strings.HasPrefix(digest, "select") {
			issues = append(issues, Issue{
				Rule:       r.Name(),
				Type:       "N_PLUS_ONE",
				Level:      LevelWarning,
				Message:    fmt.Sprintf("the same lookup ran %d times", s.count),
				Suggestion: "Load the rows together with a JOIN or a single IN (...) query.",
				SQL:        s.first,
				Count:      s.count,
			})
			continue
		}
		issues = append(issues, Issue{
			Rule:       r.Name(),
			Type:       "UNBATCHED_WRITE",
			Level:      LevelWarning,
			Message:    fmt.Sprintf("the same write ran %d times", s.count),
			Suggestion: "Issue one statement for all rows, e.g. UPDATE ... WHERE id IN (...).",
			SQL:        s.first,
			Count:      s.count,
		})
	}
	return issues
}

func firstTable(join *ast.Join) string {
	if join == nil {
		return ""
	}
	switch left := join.Left.(type) {
	case *ast.TableSource:
		if tn, ok := left.Source.(*ast.TableName); ok {
			return tn.Name.L
		}
	case *ast.Join:
		return firstTable(left)
	}
	return ""
}

func isAggregate(stmt *ast.SelectStmt) bool {
	if stmt.Fields == nil || len(stmt.Fields.Fields) == 0 {
		return false
	}
	for _, f := range stmt.Fields.Fields {
		if _, ok := f.Expr.(*ast.AggregateFuncExpr); !ok {
			return false
		}
	}
	return true
}

type columnVisitor struct {
	cols map[string]bool
}

func (v *columnVisitor) Enter(in ast.Node) (ast.Node, bool) {
	if col, ok := in.(*ast.ColumnName); ok {
		v.cols[col.Name.L] = true
	}
	return in, false
}

func (v *columnVisitor) Leave(in ast.Node) (ast.Node, bool) {
	return in, true
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
