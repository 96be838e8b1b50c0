package audit

// Level is the severity of an audit finding.
type Level string

const (
	LevelFatal      Level = "FATAL"
	LevelWarning    Level = "WARNING"
	LevelSuggestion Level = "SUGGESTION"
)

// Issue is a single finding about one statement or a run of statements.
type Issue struct {
	Rule       string `json:"rule"`
	Type       string `json:"type"`
	Level      Level  `json:"level"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
	SQL        string `json:"sql"`
	// Count is how many times the statement shape ran, for sequence findings.
	Count int `json:"count,omitempty"`
}

// Schema is the table and index layout statements are checked against.
type Schema struct {
	Tables map[string]*Table
}

// Table describes one table.
type Table struct {
	Name    string
	Columns map[string]string
	Indexes []Index
}

// Index lists indexed columns in key order.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// HasIndexPrefix reports whether any index on the table leads with one of cols.
func (t *Table) HasIndexPrefix(cols map[string]bool) bool {
	for _, idx := range t.Indexes {
		if len(idx.Columns) > 0 && cols[idx.Columns[0]] {
			return true
		}
	}
	return false
}
