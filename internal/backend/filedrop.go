package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileDrop is a Backend over a drop directory. Exports are read from
// files placed there by an external automation agent, and write
// operations are journaled instead of executed. It doubles as the
// dry-run mode: the full pipeline runs, nothing reaches the ERP.
type FileDrop struct {
	dir         string
	log         zerolog.Logger
	nextPosting int64
}

// NewFileDrop creates a file-drop backend rooted at dir.
func NewFileDrop(dir string, log zerolog.Logger) *FileDrop {
	return &FileDrop{
		dir:         dir,
		log:         log.With().Str("module", "backend").Logger(),
		nextPosting: 1400000001,
	}
}

func (f *FileDrop) ExportLedgerItems(_ context.Context, entity EntityRef) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, entity.Name+"_items.txt"))
	if os.IsNotExist(err) {
		return "", ErrNoOpenItems
	}
	if err != nil {
		return "", fmt.Errorf("failed to read item drop file: %w", err)
	}
	return string(data), nil
}

func (f *FileDrop) ExportCaseRecords(_ context.Context, entity EntityRef, _ []int64) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, entity.Name+"_cases.txt"))
	if os.IsNotExist(err) {
		return "", ErrNoCasesFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read case drop file: %w", err)
	}
	return string(data), nil
}

func (f *FileDrop) LoadAccountItems(_ context.Context, headOffice int64, documents []int64) error {
	f.log.Debug().Int64("head_office", headOffice).Ints64("documents", documents).
		Msg("Would select open items")
	return nil
}

func (f *FileDrop) PostClearing(_ context.Context, req ClearingRequest) (int64, error) {
	posting := f.nextPosting
	f.nextPosting++

	entry := map[string]any{"posting": posting, "request": req}
	if err := f.journal("postings.jsonl", entry); err != nil {
		return 0, err
	}
	f.log.Info().Int64("posting", posting).Str("currency", req.Currency).
		Msg("Journaled clearing posting")
	return posting, nil
}

func (f *FileDrop) CloseCase(_ context.Context, caseID int64, statusText, rootCause string) error {
	return f.journal("cases.jsonl", map[string]any{
		"case_id": caseID, "status_text": statusText, "root_cause": rootCause,
	})
}

func (f *FileDrop) CloseNotification(_ context.Context, notification int64) error {
	return f.journal("notifications.jsonl", map[string]any{"notification": notification})
}

func (f *FileDrop) Close() error {
	return nil
}

func (f *FileDrop) journal(name string, entry any) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	fh, err := os.OpenFile(filepath.Join(f.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal %s: %w", name, err)
	}
	defer fh.Close()

	if _, err := fh.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append to journal %s: %w", name, err)
	}
	return nil
}
