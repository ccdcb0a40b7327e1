// Package pipeline orchestrates the per-entity clearing run: export,
// conversion, consolidation, evaluation, posting and closing, each
// stage individually checkpoint-gated so an interrupted run resumes
// where it stopped.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/receivia/arclear/internal/accum"
	"github.com/receivia/arclear/internal/backend"
	"github.com/receivia/arclear/internal/checkpoint"
	"github.com/receivia/arclear/internal/clearing"
	"github.com/receivia/arclear/internal/domain"
	"github.com/receivia/arclear/internal/dump"
	"github.com/receivia/arclear/internal/parse"
	"github.com/receivia/arclear/internal/report"
	"github.com/receivia/arclear/internal/rules"
	"github.com/receivia/arclear/internal/runlog"
)

// Pipeline drives the clearing run. Single-threaded: entities are
// processed strictly in sequence.
type Pipeline struct {
	backend   backend.Backend
	rules     rules.Rules
	cp        *checkpoint.Store
	acc       *accum.Store
	dumps     *dump.Store
	history   *runlog.Repository
	customers map[int64]domain.Customer
	reportDir string
	log       zerolog.Logger
}

// Options carries the optional collaborators of a pipeline.
type Options struct {
	// Customers enables enrichment and trade/retail categorization.
	Customers map[int64]domain.Customer
	// History records run and stage outcomes when set.
	History *runlog.Repository
	// ReportDir receives the per-entity report workbooks. Empty disables
	// report generation.
	ReportDir string
}

func New(
	b backend.Backend,
	r rules.Rules,
	cp *checkpoint.Store,
	dumps *dump.Store,
	opts Options,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		backend:   b,
		rules:     r,
		cp:        cp,
		acc:       accum.New(),
		dumps:     dumps,
		history:   opts.History,
		customers: opts.Customers,
		reportDir: opts.ReportDir,
		log:       log.With().Str("module", "pipeline").Logger(),
	}
}

// entityRun threads one entity's datasets through the stages.
type entityRun struct {
	name    string
	ref     backend.EntityRef
	jur     *rules.Jurisdiction
	ent     *rules.Entity
	pattern *parse.CaseIDPattern

	items        []domain.ItemRecord
	noCase       []domain.ItemRecord
	cases        []domain.CaseRecord
	consolidated []domain.ConsolidatedRecord
	evaluated    []domain.ConsolidatedRecord
	matched      []domain.ConsolidatedRecord
	instruction  clearing.Instruction
}

// Run executes the pipeline for every active entity, or for the single
// named entity when userEntity is non-empty. Entity-scoped failures are
// recorded and the run continues; a rules invariant violation or an
// empty entity selection aborts the run.
func (p *Pipeline) Run(ctx context.Context, userEntity string) ([]report.Summary, error) {
	selected := p.rules.ActiveEntities(userEntity)
	if len(selected) == 0 {
		return nil, fmt.Errorf("no active entities selected (entity filter %q)", userEntity)
	}

	names := make([]string, len(selected))
	for i, ae := range selected {
		names[i] = ae.Name
	}

	// A scheduled pipeline reuses this instance across runs. Each run
	// starts from a fresh accumulator; completed stages of a resumed run
	// repopulate it from their dumps.
	p.acc = accum.New()

	if p.cp.Resumed() {
		p.log.Info().Msg("Checkpoint found, resuming interrupted run")
	} else {
		if err := p.cp.Reset(names); err != nil {
			return nil, fmt.Errorf("failed to initialize checkpoints: %w", err)
		}
	}

	var runID int64
	if p.history != nil {
		var err error
		runID, err = p.history.StartRun(joinNames(names))
		if err != nil {
			return nil, fmt.Errorf("failed to record run start: %w", err)
		}
	}

	var summaries []report.Summary
	for _, ae := range selected {
		summary, err := p.runEntity(ctx, runID, ae)
		summaries = append(summaries, summary)
		if err != nil {
			// Invariant violations make automatic posting unsafe for
			// everyone; the run halts here.
			p.finishRun(runID, runlog.RunFailed)
			return summaries, err
		}
	}

	if err := p.cp.Clear(); err != nil {
		p.finishRun(runID, runlog.RunFailed)
		return summaries, fmt.Errorf("failed to clear checkpoints: %w", err)
	}

	p.finishRun(runID, runlog.RunFinished)
	return summaries, nil
}

func (p *Pipeline) runEntity(ctx context.Context, runID int64, ae rules.ActiveEntity) (report.Summary, error) {
	summary := report.Summary{Entity: ae.Name}
	log := p.log.With().Str("entity", ae.Name).Logger()

	jur := p.rules[ae.CompanyCode]
	ent := jur.Entities[ae.Name]

	pattern, err := parse.CompileCaseIDPattern(jur.CaseIDPattern)
	if err != nil {
		// Validation compiles the pattern at load time; reaching this
		// point means the rules changed underneath the run.
		return summary, domain.Invariantf("case ID pattern no longer compiles: %v", err)
	}

	er := &entityRun{
		name:    ae.Name,
		ref:     backend.EntityRef{Name: ae.Name, Kind: ent.Kind, Code: ae.CompanyCode},
		jur:     jur,
		ent:     ent,
		pattern: pattern,
	}

	stages := []struct {
		name string
		run  func(context.Context, *entityRun) (domain.EntityOutcome, error)
	}{
		{checkpoint.StageItemsExported, p.stageExportItems},
		{checkpoint.StageItemsConverted, p.stageConvertItems},
		{checkpoint.StageItemsNoCase, p.stageSplitNoCase},
		{checkpoint.StageCasesExported, p.stageExportCases},
		{checkpoint.StageCasesConverted, p.stageConvertCases},
		{checkpoint.StageDataConsolidated, p.stageConsolidate},
		{checkpoint.StageDataEvaluated, p.stageEvaluate},
		{checkpoint.StageClearingInput, p.stageBuildInput},
		{checkpoint.StageItemsCleared, p.stagePostClearing},
		{checkpoint.StageCasesProcessed, p.stageCloseCases},
		{checkpoint.StageNotificationsProcessed, p.stageCloseNotifications},
	}

	var halt error
	for _, st := range stages {
		outcome, err := p.runStage(ctx, runID, er, st.name, st.run)
		if err != nil {
			// Rules invariant violation; automatic posting is unsafe for
			// everyone, so the whole run halts.
			log.Error().Err(err).Str("stage", st.name).Msg("Invariant violation, halting run")
			summary.Skipped = true
			summary.Reason = err.Error()
			halt = err
			break
		}

		if outcome.Status == domain.EntitySkipped {
			log.Warn().Str("stage", st.name).Str("reason", outcome.Reason).Msg("Entity skipped")
			summary.Skipped = true
			summary.Reason = outcome.Reason
			break
		}
		if outcome.Status == domain.EntityFatal {
			log.Error().Str("stage", st.name).Str("reason", outcome.Reason).Msg("Entity failed")
			summary.Skipped = true
			summary.Reason = outcome.Reason
			break
		}
	}

	summary.ItemCount = len(er.consolidated)
	summary.MatchedCount = len(er.matched)
	summary.ClearedCount = clearedCount(er.instruction)

	if p.reportDir != "" && halt == nil {
		if _, err := report.Write(p.reportDir, er.name, er.evaluatedOrConsolidated(), er.instruction); err != nil {
			log.Error().Err(err).Msg("Failed to write report workbook")
		}
	}

	return summary, halt
}

// runStage executes one stage unless its checkpoint says it already
// completed, in which case the stage's dataset is reloaded from its
// dump instead.
func (p *Pipeline) runStage(
	ctx context.Context,
	runID int64,
	er *entityRun,
	stage string,
	fn func(context.Context, *entityRun) (domain.EntityOutcome, error),
) (domain.EntityOutcome, error) {
	if p.cp.Get(er.name, stage) {
		p.reload(er, stage)
		p.record(runID, er.name, stage, runlog.StatusSkipped, "already completed")
		return domain.Continue(), nil
	}

	outcome, err := fn(ctx, er)
	if err != nil {
		p.record(runID, er.name, stage, runlog.StatusFailed, err.Error())
		return outcome, err
	}

	switch outcome.Status {
	case domain.EntityContinue:
		if cerr := p.cp.Set(er.name, stage, true); cerr != nil {
			return domain.Fatal("failed to persist checkpoint: %v", cerr), nil
		}
		status := runlog.StatusOK
		if outcome.Empty {
			status = runlog.StatusNoData
		}
		p.record(runID, er.name, stage, status, "")
	case domain.EntitySkipped:
		p.record(runID, er.name, stage, runlog.StatusSkipped, outcome.Reason)
	case domain.EntityFatal:
		p.record(runID, er.name, stage, runlog.StatusFailed, outcome.Reason)
	}
	return outcome, nil
}

func (p *Pipeline) record(runID int64, entity, stage, status, detail string) {
	if p.history != nil {
		p.history.RecordStage(runID, entity, stage, status, detail)
	}
}

func (p *Pipeline) finishRun(runID int64, status string) {
	if p.history == nil {
		return
	}
	if err := p.history.FinishRun(runID, status); err != nil {
		p.log.Error().Err(err).Msg("Failed to record run end")
	}
}

func (er *entityRun) evaluatedOrConsolidated() []domain.ConsolidatedRecord {
	if er.evaluated != nil {
		return er.evaluated
	}
	return er.consolidated
}

func clearedCount(in clearing.Instruction) int {
	n := 0
	for _, curr := range in.Currencies() {
		if in[curr].Cleared {
			n += len(in[curr].Clearable())
		}
	}
	return n
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}
