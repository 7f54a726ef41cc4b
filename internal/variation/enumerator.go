package variation

import (
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/scope"
	"github.com/oxhq/archc/internal/script"
	"github.com/oxhq/archc/internal/value"
)

// defaultProgressEvery is the combination count (working-set rows times the
// table's rows) past which the merger reports per-table progress, so a host
// can watch (and cancel) very large enumerations.
const defaultProgressEvery = 1 << 20

// Enumerator produces every legal input configuration of an initialized
// script tree.
type Enumerator struct {
	root          *node.Node
	declared      expr.Lookup
	log           *logrus.Entry
	progressEvery int
}

// New returns an enumerator over the tree. declared supplies preset and
// variable values that pin inputs.
func New(root *node.Node, declared expr.Lookup, log *logrus.Entry) *Enumerator {
	return &Enumerator{root: root, declared: declared, log: log, progressEvery: defaultProgressEvery}
}

// SetProgressEvery overrides the combination count that triggers progress
// reporting.
func (e *Enumerator) SetProgressEvery(n int) {
	if n > 0 {
		e.progressEvery = n
	}
}

// Enumerate merges all input tables under their guards, drops combinations
// matched by any exclusion filter, and normalizes the survivors through
// simulated execution. The result is sorted by signature.
func (e *Enumerator) Enumerate(filters []*expr.Expression) ([]map[string]string, error) {
	tables := collectTables(e.root, e.declared)
	rows := e.merge(tables, filters)
	return e.normalize(tables, rows), nil
}

// merge folds each table into the working set: rows whose accumulated
// variation satisfies the table's guard cross-combine with the table's own
// rows, the rest pass through untouched.
func (e *Enumerator) merge(tables []*Table, filters []*expr.Expression) []*BitSet {
	working := []*BitSet{NewBitSet()}
	for ti, t := range tables {
		if len(working)*len(t.Rows) > e.progressEvery {
			e.log.WithFields(logrus.Fields{
				"table":   ti + 1,
				"tables":  len(tables),
				"input":   t.Key,
				"working": len(working),
			}).Info("variation merge progress")
		}
		next := make([]*BitSet, 0, len(working))
		seen := map[string]bool{}
		add := func(row *BitSet) {
			key := row.Key()
			if !seen[key] {
				seen[key] = true
				next = append(next, row)
			}
		}
		for _, row := range working {
			if e.guardHolds(t.Guard, tables[:ti], row) {
				for _, trow := range t.Rows {
					add(row.Or(t.shifted(trow)))
				}
			} else {
				add(row)
			}
		}
		working = next
	}

	if len(filters) == 0 {
		return working
	}
	kept := working[:0]
	for _, row := range working {
		if !e.excluded(filters, tables, row) {
			kept = append(kept, row)
		}
	}
	return kept
}

// guardHolds evaluates a table guard under the values the row has picked so
// far; references the row cannot satisfy yet read as not-held.
func (e *Enumerator) guardHolds(guard *expr.Expression, prior []*Table, row *BitSet) bool {
	if guard.IsTrue() {
		return true
	}
	ok, err := guard.Eval(e.rowLookup(prior, row))
	return err == nil && ok
}

func (e *Enumerator) excluded(filters []*expr.Expression, tables []*Table, row *BitSet) bool {
	for _, f := range filters {
		ok, err := f.Eval(e.rowLookup(tables, row))
		if err == nil && ok {
			return true
		}
	}
	return false
}

// rowLookup resolves variables from the row's assignments, falling back to
// declared values.
func (e *Enumerator) rowLookup(tables []*Table, row *BitSet) expr.Lookup {
	return func(name string) (value.Value, bool) {
		for _, t := range tables {
			if t.Key != name {
				continue
			}
			raw, ok := t.assignment(row)
			if !ok {
				continue
			}
			v, err := script.CoerceInput(t.Node, raw)
			if err != nil {
				return value.Empty, false
			}
			return v, true
		}
		return e.declared(name)
	}
}

// assignmentsOf materializes the raw key→value map a row denotes.
func assignmentsOf(tables []*Table, row *BitSet) map[string]string {
	out := map[string]string{}
	for _, t := range tables {
		if raw, ok := t.assignment(row); ok {
			out[t.Key] = raw
		}
	}
	return out
}

// normalize replays each row through the script invoker; the recorded user
// and auto-created default values form the variation. Infeasible rows drop
// silently, any other execution failure is logged and dropped. Duplicate
// signatures collapse to the occurrence carrying the most values.
func (e *Enumerator) normalize(tables []*Table, rows []*BitSet) []map[string]string {
	type candidate struct {
		values map[string]string
	}
	bySignature := map[string]candidate{}

	for _, row := range rows {
		resolver := script.NewBatchResolver(assignmentsOf(tables, row))
		ctx := scope.NewContext("")
		if err := script.NewInvoker(ctx, resolver, nil).Invoke(e.root); err != nil {
			if !errors.Is(err, script.ErrInvalidInput) {
				e.log.WithError(err).Debug("variation dropped")
			}
			continue
		}

		values := map[string]string{}
		var sig []string
		for _, rec := range resolver.Records() {
			s, err := rec.Value.AsString()
			if err != nil {
				continue
			}
			values[rec.Key] = s
			if rec.User {
				sig = append(sig, rec.Key+"="+s)
			}
		}
		sort.Strings(sig)
		signature := strings.Join(sig, " ")
		if prev, ok := bySignature[signature]; ok && len(prev.values) >= len(values) {
			continue
		}
		bySignature[signature] = candidate{values: values}
	}

	signatures := make([]string, 0, len(bySignature))
	for sig := range bySignature {
		signatures = append(signatures, sig)
	}
	sort.Strings(signatures)
	out := make([]map[string]string, 0, len(signatures))
	for _, sig := range signatures {
		out = append(out, bySignature[sig].values)
	}
	return out
}
