// Package accum holds the stage outputs of a run in memory, keyed by
// entity and dataset kind. A stored nil is meaningful: the stage ran
// and produced nothing, which is different from the stage never having
// run.
package accum

import "fmt"

// Dataset kinds a pipeline stage may store.
const (
	KindLedgerExport   = "ledger_export"
	KindItems          = "items"
	KindItemsNoCase    = "items_no_case"
	KindCaseExport     = "case_export"
	KindCases          = "cases"
	KindConsolidated   = "consolidated"
	KindEvaluated      = "evaluated"
	KindClearingInput  = "clearing_input"
	KindClearingResult = "clearing_result"
)

type key struct {
	entity string
	kind   string
}

// Store is the per-run result accumulator. Entries are write-once; a
// deliberate overwrite must be forced.
type Store struct {
	data map[key]any
}

func New() *Store {
	return &Store{data: make(map[key]any)}
}

// Put stores a dataset. Writing a key that already exists is a
// programming error and is rejected; use Force for the resume path,
// which legitimately repopulates completed stages from their dumps.
func (s *Store) Put(entity, kind string, dataset any) error {
	k := key{entity, kind}
	if _, exists := s.data[k]; exists {
		return fmt.Errorf("dataset %q for entity %q already stored", kind, entity)
	}
	s.data[k] = dataset
	return nil
}

// Force stores a dataset, replacing any existing entry.
func (s *Store) Force(entity, kind string, dataset any) {
	s.data[key{entity, kind}] = dataset
}

// Get returns the stored dataset and whether the key was ever written.
// A (nil, true) result means the stage ran and had no data.
func (s *Store) Get(entity, kind string) (any, bool) {
	v, ok := s.data[key{entity, kind}]
	return v, ok
}
