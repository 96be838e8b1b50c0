package audit

import (
	"errors"
	"sync"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/mysql"
	_ "github.com/pingcap/tidb/parser/test_driver"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/migration"
)

var errEmptyStatement = errors.New("no statement found")

// Rule checks a single parsed statement.
type Rule interface {
	Name() string
	Check(sql string, node ast.StmtNode, schema *Schema) []Issue
}

// SequenceRule checks the ordered list of statements a scenario issued.
type SequenceRule interface {
	Name() string
	CheckSequence(statements []string) []Issue
}

// Module provides the auditor to Fx.
var Module = fx.Provide(New)

// Auditor runs rules over recorded statements. Safe for concurrent use.
type Auditor struct {
	mu       sync.Mutex
	parser   *parser.Parser
	schema   *Schema
	rules    []Rule
	sequence []SequenceRule
	logger   *zap.Logger
}

// New loads the schema from the embedded MySQL migrations and registers
// the default rules.
func New(cfg config.Config, logger *zap.Logger) (*Auditor, error) {
	schema, err := LoadSchema(migration.Files, migration.Dir("mysql"))
	if err != nil {
		return nil, err
	}
	a := NewAuditor(schema, logger)
	a.Register(
		&SelectStarRule{},
		&NoWhereRule{},
		&UnboundedSelectRule{},
		&IndexMissRule{},
	)
	a.RegisterSequence(&RepeatedStatementRule{Threshold: cfg.Audit.RepeatThreshold})
	return a, nil
}

// NewAuditor builds an Auditor with no rules.
func NewAuditor(schema *Schema, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schema == nil {
		schema = &Schema{Tables: map[string]*Table{}}
	}
	return &Auditor{
		parser: newParser(),
		schema: schema,
		logger: logger,
	}
}

// Register adds statement rules.
func (a *Auditor) Register(rules ...Rule) {
	a.rules = append(a.rules, rules...)
}

// RegisterSequence adds sequence rules.
func (a *Auditor) RegisterSequence(rules ...SequenceRule) {
	a.sequence = append(a.sequence, rules...)
}

// Schema returns the schema rules are checked against.
func (a *Auditor) Schema() *Schema {
	return a.schema
}

// Audit checks every statement, then the sequence as a whole. Statements
// that do not parse are skipped.
func (a *Auditor) Audit(statements []string) []Issue {
	var issues []Issue

	a.mu.Lock()
	for _, sql := range statements {
		stmt, err := a.parse(sql)
		if err != nil {
			a.logger.Debug("audit skipped unparsable statement", zap.String("sql", sql), zap.Error(err))
			continue
		}
		for _, rule := range a.rules {
			issues = append(issues, rule.Check(sql, stmt, a.schema)...)
		}
	}
	a.mu.Unlock()

	for _, rule := range a.sequence {
		issues = append(issues, rule.CheckSequence(statements)...)
	}
	return dedupe(issues)
}

func (a *Auditor) parse(sql string) (ast.StmtNode, error) {
	stmts, _, err := a.parser.Parse(sql, "", "")
	if err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, errEmptyStatement
	}
	return stmts[0], nil
}

// dedupe keeps the first issue per rule, type and statement shape, so a
// per-row lookup repeated N times is reported once by each statement rule.
func dedupe(issues []Issue) []Issue {
	type key struct{ rule, typ, sql string }
	seen := make(map[key]struct{}, len(issues))
	out := issues[:0]
	for _, issue := range issues {
		k := key{issue.Rule, issue.Type, parser.Normalize(issue.SQL)}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, issue)
	}
	return out
}

func newParser() *parser.Parser {
	p := parser.New()
	// bun quotes identifiers with double quotes for sqlite and postgres.
	p.SetSQLMode(mysql.ModeANSIQuotes)
	return p
}
