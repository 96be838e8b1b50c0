package store

import (
	"context"
	"sync"
	"time"
)

// Statement is one recorded round trip.
type Statement struct {
	SQL       string        `json:"sql"`
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
	Failed    bool          `json:"failed,omitempty"`
}

// Tally collects the statements issued under a context. Safe for concurrent use.
// A Tally opened under another one forwards what it records to its parent.
type Tally struct {
	mu         sync.Mutex
	statements []Statement
	parent     *Tally
}

type tallyKey struct{}

// WithTally returns a context whose round trips are recorded into a fresh Tally.
func WithTally(ctx context.Context) (context.Context, *Tally) {
	t := &Tally{parent: TallyFrom(ctx)}
	return context.WithValue(ctx, tallyKey{}, t), t
}

// TallyFrom returns the Tally attached to ctx, if any.
func TallyFrom(ctx context.Context) *Tally {
	t, _ := ctx.Value(tallyKey{}).(*Tally)
	return t
}

// Record appends a statement.
func (t *Tally) Record(s Statement) {
	t.mu.Lock()
	t.statements = append(t.statements, s)
	t.mu.Unlock()
	if t.parent != nil {
		t.parent.Record(s)
	}
}

// Calls reports the number of round trips recorded so far.
func (t *Tally) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.statements)
}

// Statements returns a copy of the recorded statements in issue order.
func (t *Tally) Statements() []Statement {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Statement, len(t.statements))
	copy(out, t.statements)
	return out
}

// SQL returns the recorded statement texts in issue order.
func (t *Tally) SQL() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.statements))
	for i, s := range t.statements {
		out[i] = s.SQL
	}
	return out
}

// Reset discards everything recorded so far.
func (t *Tally) Reset() {
	t.mu.Lock()
	t.statements = nil
	t.mu.Unlock()
}
