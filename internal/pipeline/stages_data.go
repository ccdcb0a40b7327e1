package pipeline

import (
	"context"
	"errors"

	"github.com/receivia/arclear/internal/accum"
	"github.com/receivia/arclear/internal/backend"
	"github.com/receivia/arclear/internal/checkpoint"
	"github.com/receivia/arclear/internal/domain"
	"github.com/receivia/arclear/internal/parse"
	"github.com/receivia/arclear/internal/recon"
)

// stageExportItems runs the ledger open-item export. A dropped
// connection gets exactly one immediate retry here; no other stage
// retries. No open items is the ordinary quiet-day outcome, recorded as
// a nil dataset.
func (p *Pipeline) stageExportItems(ctx context.Context, er *entityRun) (domain.EntityOutcome, error) {
	text, err := p.backend.ExportLedgerItems(ctx, er.ref)
	if errors.Is(err, backend.ErrConnectionLost) {
		p.log.Warn().Str("entity", er.name).Msg("Connection lost during ledger export, retrying once")
		text, err = p.backend.ExportLedgerItems(ctx, er.ref)
	}

	if errors.Is(err, backend.ErrNoOpenItems) {
		if perr := p.acc.Put(er.name, accum.KindLedgerExport, nil); perr != nil {
			return domain.Fatal("%v", perr), nil
		}
		return domain.NoData(), nil
	}
	if err != nil {
		return domain.Fatal("ledger export failed: %v", err), nil
	}

	if err := p.dumps.WriteText(er.name, accum.KindLedgerExport, text); err != nil {
		return domain.Fatal("failed to persist ledger export: %v", err), nil
	}
	if err := p.acc.Put(er.name, accum.KindLedgerExport, text); err != nil {
		return domain.Fatal("%v", err), nil
	}
	return domain.Continue(), nil
}

// stageConvertItems compacts and parses the raw ledger export.
func (p *Pipeline) stageConvertItems(_ context.Context, er *entityRun) (domain.EntityOutcome, error) {
	raw, ok := p.acc.Get(er.name, accum.KindLedgerExport)
	if !ok || raw == nil {
		if err := p.acc.Put(er.name, accum.KindItems, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	items, err := parse.ParseLedgerItems(parse.CompactLedgerExport(raw.(string)), er.pattern)
	if err != nil {
		return domain.Fatal("ledger conversion failed: %v", err), nil
	}
	if len(items) == 0 {
		if err := p.acc.Put(er.name, accum.KindItems, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	if err := p.dumps.WriteItems(er.name, accum.KindItems, items); err != nil {
		return domain.Fatal("failed to persist converted items: %v", err), nil
	}
	er.items = items
	if err := p.acc.Put(er.name, accum.KindItems, items); err != nil {
		return domain.Fatal("%v", err), nil
	}
	return domain.Continue(), nil
}

// stageSplitNoCase separates items whose text references no dispute
// case. They stay out of the clearing flow but appear in the report.
func (p *Pipeline) stageSplitNoCase(_ context.Context, er *entityRun) (domain.EntityOutcome, error) {
	if er.items == nil {
		if err := p.acc.Put(er.name, accum.KindItemsNoCase, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	var withCase, noCase []domain.ItemRecord
	for _, it := range er.items {
		if len(er.pattern.Extract(it.Text)) == 0 {
			noCase = append(noCase, it)
		} else {
			withCase = append(withCase, it)
		}
	}

	er.items = withCase
	er.noCase = noCase
	if noCase == nil {
		if err := p.acc.Put(er.name, accum.KindItemsNoCase, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	if err := p.dumps.WriteItems(er.name, accum.KindItemsNoCase, noCase); err != nil {
		return domain.Fatal("failed to persist caseless items: %v", err), nil
	}
	if err := p.acc.Put(er.name, accum.KindItemsNoCase, noCase); err != nil {
		return domain.Fatal("%v", err), nil
	}
	return domain.Continue(), nil
}

// stageExportCases exports the dispute cases referenced by the items.
func (p *Pipeline) stageExportCases(ctx context.Context, er *entityRun) (domain.EntityOutcome, error) {
	ids := referencedCaseIDs(er)
	if len(ids) == 0 {
		if err := p.acc.Put(er.name, accum.KindCaseExport, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	text, err := p.backend.ExportCaseRecords(ctx, er.ref, ids)
	if errors.Is(err, backend.ErrNoCasesFound) {
		if perr := p.acc.Put(er.name, accum.KindCaseExport, nil); perr != nil {
			return domain.Fatal("%v", perr), nil
		}
		return domain.NoData(), nil
	}
	if err != nil {
		return domain.Fatal("case export failed: %v", err), nil
	}

	if err := p.dumps.WriteText(er.name, accum.KindCaseExport, text); err != nil {
		return domain.Fatal("failed to persist case export: %v", err), nil
	}
	if err := p.acc.Put(er.name, accum.KindCaseExport, text); err != nil {
		return domain.Fatal("%v", err), nil
	}
	return domain.Continue(), nil
}

// stageConvertCases parses the raw case export.
func (p *Pipeline) stageConvertCases(_ context.Context, er *entityRun) (domain.EntityOutcome, error) {
	raw, ok := p.acc.Get(er.name, accum.KindCaseExport)
	if !ok || raw == nil {
		if err := p.acc.Put(er.name, accum.KindCases, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	cases, err := parse.ParseCaseRecords(parse.CompactCaseExport(raw.(string)))
	if err != nil {
		return domain.Fatal("case conversion failed: %v", err), nil
	}
	if len(cases) == 0 {
		if err := p.acc.Put(er.name, accum.KindCases, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	if err := p.dumps.WriteCases(er.name, accum.KindCases, cases); err != nil {
		return domain.Fatal("failed to persist converted cases: %v", err), nil
	}
	er.cases = cases
	if err := p.acc.Put(er.name, accum.KindCases, cases); err != nil {
		return domain.Fatal("%v", err), nil
	}
	return domain.Continue(), nil
}

// stageConsolidate left-joins items to cases and enriches the result.
// An incomplete customer enrichment skips the entity with a nil dataset;
// an empty merge is an entity failure.
func (p *Pipeline) stageConsolidate(_ context.Context, er *entityRun) (domain.EntityOutcome, error) {
	if er.items == nil {
		if err := p.acc.Put(er.name, accum.KindConsolidated, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	consolidated, err := recon.Consolidate(er.items, er.cases, p.customers, er.pattern, er.ent.ValidTaxes)
	if errors.Is(err, recon.ErrEnrichmentIncomplete) {
		if perr := p.acc.Put(er.name, accum.KindConsolidated, nil); perr != nil {
			return domain.Fatal("%v", perr), nil
		}
		return domain.Skip("customer enrichment incomplete"), nil
	}
	if err != nil {
		return domain.Fatal("consolidation failed: %v", err), nil
	}

	if err := p.dumps.WriteConsolidated(er.name, accum.KindConsolidated, consolidated); err != nil {
		return domain.Fatal("failed to persist consolidated data: %v", err), nil
	}
	er.consolidated = consolidated
	if err := p.acc.Put(er.name, accum.KindConsolidated, consolidated); err != nil {
		return domain.Fatal("%v", err), nil
	}
	return domain.Continue(), nil
}

// stageEvaluate marks the match flags on the consolidated set.
func (p *Pipeline) stageEvaluate(_ context.Context, er *entityRun) (domain.EntityOutcome, error) {
	if er.consolidated == nil {
		if err := p.acc.Put(er.name, accum.KindEvaluated, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	evaluated := recon.EvaluateItems(
		er.consolidated,
		er.jur.BaseThresholdAmount(),
		er.jur.TaxThresholdAmounts(),
	)

	if err := p.dumps.WriteConsolidated(er.name, accum.KindEvaluated, evaluated); err != nil {
		return domain.Fatal("failed to persist evaluated data: %v", err), nil
	}
	er.evaluated = evaluated
	er.matched = recon.MatchedItems(evaluated)
	if err := p.acc.Put(er.name, accum.KindEvaluated, evaluated); err != nil {
		return domain.Fatal("%v", err), nil
	}
	return domain.Continue(), nil
}

func referencedCaseIDs(er *entityRun) []int64 {
	var out []int64
	seen := make(map[int64]struct{})
	for _, it := range er.items {
		for _, id := range er.pattern.Extract(it.Text) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// reload restores a completed stage's dataset from its dump so a
// resumed run can feed the later stages. A missing dump means the stage
// legitimately produced nothing. Force is correct here: the resume path
// repopulates entries the accumulator's write-once rule would reject.
func (p *Pipeline) reload(er *entityRun, stage string) {
	switch stage {
	case checkpoint.StageItemsExported:
		if text, err := p.dumps.ReadText(er.name, accum.KindLedgerExport); err == nil {
			p.acc.Force(er.name, accum.KindLedgerExport, text)
		} else {
			p.acc.Force(er.name, accum.KindLedgerExport, nil)
		}
	case checkpoint.StageItemsConverted:
		if items, err := p.dumps.ReadItems(er.name, accum.KindItems); err == nil {
			er.items = items
		}
	case checkpoint.StageItemsNoCase:
		if noCase, err := p.dumps.ReadItems(er.name, accum.KindItemsNoCase); err == nil {
			er.noCase = noCase
			er.items = withoutCaseless(er.items, noCase)
		}
	case checkpoint.StageCasesExported:
		if text, err := p.dumps.ReadText(er.name, accum.KindCaseExport); err == nil {
			p.acc.Force(er.name, accum.KindCaseExport, text)
		} else {
			p.acc.Force(er.name, accum.KindCaseExport, nil)
		}
	case checkpoint.StageCasesConverted:
		if cases, err := p.dumps.ReadCases(er.name, accum.KindCases); err == nil {
			er.cases = cases
		}
	case checkpoint.StageDataConsolidated:
		if recs, err := p.dumps.ReadConsolidated(er.name, accum.KindConsolidated); err == nil {
			er.consolidated = recs
		}
	case checkpoint.StageDataEvaluated:
		if recs, err := p.dumps.ReadConsolidated(er.name, accum.KindEvaluated); err == nil {
			er.evaluated = recs
			er.matched = recon.MatchedItems(recs)
		}
	case checkpoint.StageClearingInput:
		if in, err := p.dumps.ReadInstruction(er.name); err == nil {
			er.instruction = in
		}
	case checkpoint.StageItemsCleared, checkpoint.StageCasesProcessed, checkpoint.StageNotificationsProcessed:
		// The instruction dump carries the statuses of these stages; the
		// clearing-input reload already restored it. Refresh to pick up
		// statuses written after the input was first generated.
		if in, err := p.dumps.ReadInstruction(er.name); err == nil {
			er.instruction = in
		}
	}
}

func withoutCaseless(items, noCase []domain.ItemRecord) []domain.ItemRecord {
	if len(noCase) == 0 {
		return items
	}
	caseless := make(map[int64]struct{}, len(noCase))
	for _, it := range noCase {
		caseless[it.DocumentNumber] = struct{}{}
	}
	var out []domain.ItemRecord
	for _, it := range items {
		if _, ok := caseless[it.DocumentNumber]; !ok {
			out = append(out, it)
		}
	}
	return out
}
