// Package checkpoint persists per-entity pipeline progress so a crashed
// run can resume exactly where it stopped. The state is one small JSON
// document, read wholesale at startup and rewritten wholesale after
// every mutation.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Stage names, in pipeline order. A stage runs only while its flag is
// false; the flag flips to true once the stage's output is safely in
// the accumulator.
const (
	StageItemsExported          = "items_exported"
	StageItemsConverted         = "items_converted"
	StageItemsNoCase            = "items_no_case"
	StageCasesExported          = "cases_exported"
	StageCasesConverted         = "cases_converted"
	StageDataConsolidated       = "data_consolidated"
	StageDataEvaluated          = "data_evaluated"
	StageClearingInput          = "clearing_input_generated"
	StageItemsCleared           = "items_cleared"
	StageCasesProcessed         = "cases_processed"
	StageNotificationsProcessed = "notifications_processed"
)

// Stages lists every stage in execution order.
var Stages = []string{
	StageItemsExported,
	StageItemsConverted,
	StageItemsNoCase,
	StageCasesExported,
	StageCasesConverted,
	StageDataConsolidated,
	StageDataEvaluated,
	StageClearingInput,
	StageItemsCleared,
	StageCasesProcessed,
	StageNotificationsProcessed,
}

// EntityState holds the stage flags of one entity.
type EntityState map[string]bool

// Store is the durable checkpoint document. Not safe for concurrent
// use; the pipeline is single-threaded.
type Store struct {
	path     string
	log      zerolog.Logger
	entities map[string]EntityState
}

// Open loads the checkpoint document at path. A missing or empty file
// means no prior interrupted run.
func Open(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{
		path:     path,
		log:      log.With().Str("module", "checkpoint").Logger(),
		entities: make(map[string]EntityState),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(data, &s.entities); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint file: %w", err)
	}

	s.log.Info().Int("entities", len(s.entities)).Msg("Resuming from existing checkpoint")
	return s, nil
}

// Resumed reports whether the store carries state from a prior run.
func (s *Store) Resumed() bool {
	return len(s.entities) > 0
}

// Reset replaces the document with a fresh all-false state for the
// given entities and persists it.
func (s *Store) Reset(entities []string) error {
	s.entities = make(map[string]EntityState, len(entities))
	for _, ent := range entities {
		state := make(EntityState, len(Stages))
		for _, stage := range Stages {
			state[stage] = false
		}
		s.entities[ent] = state
	}
	return s.persist()
}

// Get returns the flag for (entity, stage). Unknown entities and stages
// read as false.
func (s *Store) Get(entity, stage string) bool {
	state, ok := s.entities[entity]
	if !ok {
		return false
	}
	return state[stage]
}

// Set updates one flag and persists the whole document before
// returning.
func (s *Store) Set(entity, stage string, done bool) error {
	state, ok := s.entities[entity]
	if !ok {
		state = make(EntityState)
		s.entities[entity] = state
	}
	state[stage] = done
	return s.persist()
}

// Clear removes the document; called after a fully successful run so
// the next run starts from scratch.
func (s *Store) Clear() error {
	s.entities = make(map[string]EntityState)
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint file: %w", err)
	}
	return nil
}

func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(s.entities, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	return nil
}
