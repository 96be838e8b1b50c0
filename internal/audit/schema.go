package audit

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
)

const gooseDown = "-- +goose Down"

// LoadSchema builds a Schema from the Up sections of every .sql migration
// in dir, read in file name order.
func LoadSchema(fsys fs.FS, dir string) (*Schema, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	schema := &Schema{Tables: make(map[string]*Table)}
	p := newParser()
	for _, name := range names {
		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		up := string(content)
		if i := strings.Index(up, gooseDown); i >= 0 {
			up = up[:i]
		}
		if err := applyDDL(p, schema, up); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}
	return schema, nil
}

func applyDDL(p *parser.Parser, schema *Schema, ddl string) error {
	stmts, _, err := p.Parse(ddl, "", "")
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		switch node := stmt.(type) {
		case *ast.CreateTableStmt:
			t := parseCreateTable(node)
			schema.Tables[t.Name] = t
		case *ast.CreateIndexStmt:
			t, ok := schema.Tables[node.Table.Name.L]
			if !ok {
				continue
			}
			idx := Index{
				Name:   node.IndexName,
				Unique: node.KeyType == ast.IndexKeyTypeUnique,
			}
			for _, part := range node.IndexPartSpecifications {
				if part.Column != nil {
					idx.Columns = append(idx.Columns, part.Column.Name.L)
				}
			}
			t.Indexes = append(t.Indexes, idx)
		}
	}
	return nil
}

func parseCreateTable(node *ast.CreateTableStmt) *Table {
	t := &Table{
		Name:    node.Table.Name.L,
		Columns: make(map[string]string),
	}

	for _, col := range node.Cols {
		name := col.Name.Name.L
		t.Columns[name] = col.Tp.String()
		for _, opt := range col.Options {
			switch opt.Tp {
			case ast.ColumnOptionPrimaryKey:
				t.Indexes = append(t.Indexes, Index{Name: "PRIMARY", Columns: []string{name}, Unique: true})
			case ast.ColumnOptionUniqKey:
				t.Indexes = append(t.Indexes, Index{Name: name, Columns: []string{name}, Unique: true})
			}
		}
	}

	for _, cons := range node.Constraints {
		switch cons.Tp {
		case ast.ConstraintPrimaryKey, ast.ConstraintKey, ast.ConstraintIndex, ast.ConstraintUniq, ast.ConstraintUniqKey, ast.ConstraintUniqIndex:
			idx := Index{
				Name:   cons.Name,
				Unique: cons.Tp != ast.ConstraintKey && cons.Tp != ast.ConstraintIndex,
			}
			if idx.Name == "" && cons.Tp == ast.ConstraintPrimaryKey {
				idx.Name = "PRIMARY"
			}
			for _, key := range cons.Keys {
				if key.Column != nil {
					idx.Columns = append(idx.Columns, key.Column.Name.L)
				}
			}
			t.Indexes = append(t.Indexes, idx)
		}
	}

	return t
}
