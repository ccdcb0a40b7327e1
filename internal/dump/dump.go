// Package dump persists stage outputs to disk so a resumed run can
// reload datasets whose checkpoint flag is already true. Raw exports
// are stored as plain text, record sets as msgpack, and the clearing
// instruction as a JSON document.
package dump

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/receivia/arclear/internal/clearing"
	"github.com/receivia/arclear/internal/domain"
)

// Store writes and reads per-entity stage dumps under a base directory.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(entity, kind, ext string) string {
	return filepath.Join(s.dir, entity+"_"+kind+"."+ext)
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	return nil
}

// WriteText stores a raw export verbatim.
func (s *Store) WriteText(entity, kind, text string) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(s.path(entity, kind, "txt"), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s dump: %w", kind, err)
	}
	return nil
}

// ReadText loads a raw export dump.
func (s *Store) ReadText(entity, kind string) (string, error) {
	data, err := os.ReadFile(s.path(entity, kind, "txt"))
	if err != nil {
		return "", fmt.Errorf("failed to read %s dump: %w", kind, err)
	}
	return string(data), nil
}

// WriteItems stores an item record set as msgpack. Amounts pass through
// portable transfer structs so the on-disk format does not depend on
// the in-memory layout of the decimal type.
func (s *Store) WriteItems(entity, kind string, items []domain.ItemRecord) error {
	transfer := make([]itemTransfer, len(items))
	for i, it := range items {
		transfer[i] = toItemTransfer(it)
	}
	return s.writeRecords(entity, kind, transfer)
}

// ReadItems loads an item record dump.
func (s *Store) ReadItems(entity, kind string) ([]domain.ItemRecord, error) {
	var transfer []itemTransfer
	if err := s.readRecords(entity, kind, &transfer); err != nil {
		return nil, err
	}

	items := make([]domain.ItemRecord, len(transfer))
	for i, tr := range transfer {
		it, err := tr.record()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s dump: %w", kind, err)
		}
		items[i] = it
	}
	return items, nil
}

// WriteCases stores a case record set as msgpack.
func (s *Store) WriteCases(entity, kind string, cases []domain.CaseRecord) error {
	return s.writeRecords(entity, kind, cases)
}

// ReadCases loads a case record dump.
func (s *Store) ReadCases(entity, kind string) ([]domain.CaseRecord, error) {
	var cases []domain.CaseRecord
	if err := s.readRecords(entity, kind, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// WriteConsolidated stores a consolidated record set as msgpack.
func (s *Store) WriteConsolidated(entity, kind string, recs []domain.ConsolidatedRecord) error {
	transfer := make([]consolidatedTransfer, len(recs))
	for i, rec := range recs {
		transfer[i] = consolidatedTransfer{
			Item:         toItemTransfer(rec.ItemRecord),
			Case:         rec.Case,
			CustomerName: rec.CustomerName,
			Channel:      rec.Channel,
		}
	}
	return s.writeRecords(entity, kind, transfer)
}

// ReadConsolidated loads a consolidated record dump.
func (s *Store) ReadConsolidated(entity, kind string) ([]domain.ConsolidatedRecord, error) {
	var transfer []consolidatedTransfer
	if err := s.readRecords(entity, kind, &transfer); err != nil {
		return nil, err
	}

	recs := make([]domain.ConsolidatedRecord, len(transfer))
	for i, tr := range transfer {
		item, err := tr.Item.record()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s dump: %w", kind, err)
		}
		recs[i] = domain.ConsolidatedRecord{
			ItemRecord:   item,
			Case:         tr.Case,
			CustomerName: tr.CustomerName,
			Channel:      tr.Channel,
		}
	}
	return recs, nil
}

func (s *Store) writeRecords(entity, kind string, transfer any) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	data, err := msgpack.Marshal(transfer)
	if err != nil {
		return fmt.Errorf("failed to encode %s dump: %w", kind, err)
	}
	if err := os.WriteFile(s.path(entity, kind, "bin"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s dump: %w", kind, err)
	}
	return nil
}

func (s *Store) readRecords(entity, kind string, dst any) error {
	data, err := os.ReadFile(s.path(entity, kind, "bin"))
	if err != nil {
		return fmt.Errorf("failed to read %s dump: %w", kind, err)
	}
	if err := msgpack.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s dump: %w", kind, err)
	}
	return nil
}

// WriteInstruction stores the clearing instruction of one entity as a
// JSON document. A nil instruction writes an empty document, which on
// read round-trips to an empty instruction rather than an error.
func (s *Store) WriteInstruction(entity string, in clearing.Instruction) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	if in == nil {
		in = clearing.Instruction{}
	}
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode clearing instruction: %w", err)
	}
	if err := os.WriteFile(s.path(entity, "clearing_input", "json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write clearing instruction: %w", err)
	}
	return nil
}

// ReadInstruction loads the stored clearing instruction of one entity.
func (s *Store) ReadInstruction(entity string) (clearing.Instruction, error) {
	data, err := os.ReadFile(s.path(entity, "clearing_input", "json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read clearing instruction: %w", err)
	}

	in := clearing.Instruction{}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to decode clearing instruction: %w", err)
	}
	return in, nil
}

// HasInstruction reports whether an instruction dump exists for the
// entity.
func (s *Store) HasInstruction(entity string) bool {
	_, err := os.Stat(s.path(entity, "clearing_input", "json"))
	return err == nil
}
