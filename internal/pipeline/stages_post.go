package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/receivia/arclear/internal/accum"
	"github.com/receivia/arclear/internal/backend"
	"github.com/receivia/arclear/internal/clearing"
	"github.com/receivia/arclear/internal/domain"
)

// stageBuildInput turns the matched set into the clearing instruction.
// A rules invariant violation surfaces as a run-halting error.
func (p *Pipeline) stageBuildInput(_ context.Context, er *entityRun) (domain.EntityOutcome, error) {
	if len(er.matched) == 0 {
		er.instruction = clearing.Instruction{}
		if err := p.dumps.WriteInstruction(er.name, nil); err != nil {
			return domain.Fatal("failed to persist clearing input: %v", err), nil
		}
		if err := p.acc.Put(er.name, accum.KindClearingInput, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	in, err := clearing.BuildInput(er.matched, er.jur, er.ent, p.customers)
	var inv *domain.InvariantError
	if errors.As(err, &inv) {
		return domain.Fatal("%v", err), err
	}
	if err != nil {
		return domain.Fatal("clearing input generation failed: %v", err), nil
	}

	if err := p.dumps.WriteInstruction(er.name, in); err != nil {
		return domain.Fatal("failed to persist clearing input: %v", err), nil
	}
	er.instruction = in
	if err := p.acc.Put(er.name, accum.KindClearingInput, in); err != nil {
		return domain.Fatal("%v", err), nil
	}
	return domain.Continue(), nil
}

// stagePostClearing books one clearing transaction per currency.
// Posting is all-or-nothing within a currency; a failed currency is
// recorded on its bucket and the remaining currencies still post.
func (p *Pipeline) stagePostClearing(ctx context.Context, er *entityRun) (domain.EntityOutcome, error) {
	if len(er.instruction) == 0 {
		if err := p.acc.Put(er.name, accum.KindClearingResult, nil); err != nil {
			return domain.Fatal("%v", err), nil
		}
		return domain.NoData(), nil
	}

	for _, curr := range er.instruction.Currencies() {
		bucket := er.instruction[curr]

		clearable := bucket.Clearable()
		if len(clearable) == 0 {
			bucket.ClearingStatus = "nothing to clear"
			continue
		}

		if err := p.loadAccounts(ctx, bucket); err != nil {
			bucket.ClearingStatus = fmt.Sprintf("item selection failed: %v", err)
			continue
		}

		req := backend.ClearingRequest{
			Currency:       curr,
			HeadOfficeDocs: bucket.HeadOfficeDocs,
			Lines:          differenceLines(bucket, clearable),
		}
		posting, err := p.backend.PostClearing(ctx, req)
		if err != nil {
			bucket.ClearingStatus = fmt.Sprintf("posting failed: %v", err)
			continue
		}

		bucket.PostingNumber = &posting
		bucket.Cleared = true
		bucket.ClearingStatus = "cleared"
		for _, id := range clearable {
			bucket.Records[id].ClearingStatus = "cleared with document " + strconv.FormatInt(posting, 10)
		}
		for _, id := range bucket.GroupIDs() {
			if rec := bucket.Records[id]; rec.Skipped {
				rec.ClearingStatus = rec.Message
			}
		}
	}

	if err := p.dumps.WriteInstruction(er.name, er.instruction); err != nil {
		return domain.Fatal("failed to persist clearing statuses: %v", err), nil
	}
	if err := p.acc.Put(er.name, accum.KindClearingResult, er.instruction); err != nil {
		return domain.Fatal("%v", err), nil
	}
	return domain.Continue(), nil
}

func (p *Pipeline) loadAccounts(ctx context.Context, bucket *clearing.CurrencyBucket) error {
	offices := make([]int64, 0, len(bucket.HeadOfficeDocs))
	for ho := range bucket.HeadOfficeDocs {
		offices = append(offices, ho)
	}
	sort.Slice(offices, func(i, j int) bool { return offices[i] < offices[j] })

	for _, ho := range offices {
		if err := p.backend.LoadAccountItems(ctx, ho, bucket.HeadOfficeDocs[ho]); err != nil {
			return err
		}
	}
	return nil
}

// differenceLines builds the write-off posting lines. Groups whose rest
// amount is zero clear without a difference line.
func differenceLines(bucket *clearing.CurrencyBucket, clearable []int64) []backend.LineItem {
	var lines []backend.LineItem
	for _, id := range clearable {
		rec := bucket.Records[id]
		if rec.RestAmount.IsZero() {
			continue
		}
		lines = append(lines, backend.LineItem{
			GLAccount:   rec.GLAccount,
			CostCenter:  rec.CostCenter,
			TaxCode:     rec.TaxCode,
			Amount:      rec.RestAmount,
			PostingText: rec.PostingText,
			Assignment:  rec.Assignment,
		})
	}
	return lines
}

// stageCloseCases confirms the dispute cases of every cleared bucket:
// appends the posting number to the bounded status text and sets the
// root cause. Failures are recorded per group; siblings continue.
func (p *Pipeline) stageCloseCases(ctx context.Context, er *entityRun) (domain.EntityOutcome, error) {
	if len(er.instruction) == 0 {
		return domain.NoData(), nil
	}

	for _, curr := range er.instruction.Currencies() {
		bucket := er.instruction[curr]
		if !bucket.Cleared || bucket.PostingNumber == nil {
			continue
		}

		for _, id := range bucket.Clearable() {
			rec := bucket.Records[id]

			var failures []string
			for _, caseID := range rec.CaseIDs {
				statusText := clearing.NextStatusText(er.matched, caseID, *bucket.PostingNumber)
				if err := p.backend.CloseCase(ctx, caseID, statusText, rec.RootCause); err != nil {
					failures = append(failures, fmt.Sprintf("case %d: %v", caseID, err))
				}
			}

			if len(failures) == 0 {
				rec.CaseClosingStatus = "closed"
			} else {
				rec.CaseClosingStatus = strings.Join(failures, "; ")
			}
		}
	}

	if err := p.dumps.WriteInstruction(er.name, er.instruction); err != nil {
		return domain.Fatal("failed to persist case statuses: %v", err), nil
	}
	return domain.Continue(), nil
}

// stageCloseNotifications completes the quality notifications of
// cleared groups. Notifications with the 301 prefix are a type that
// cannot be completed here, and credit-note groups (L06) stay open for
// manual handling.
func (p *Pipeline) stageCloseNotifications(ctx context.Context, er *entityRun) (domain.EntityOutcome, error) {
	if len(er.instruction) == 0 {
		return domain.NoData(), nil
	}

	for _, curr := range er.instruction.Currencies() {
		bucket := er.instruction[curr]
		if !bucket.Cleared {
			continue
		}

		for _, id := range bucket.Clearable() {
			rec := bucket.Records[id]

			switch {
			case rec.Notification == 0:
				rec.NotificationClosingStatus = "no notification"
			case strings.HasPrefix(strconv.FormatInt(rec.Notification, 10), "301"):
				rec.NotificationClosingStatus = "invalid notification type, skipped"
			case rec.RootCause == clearing.RootCauseCreditNote:
				rec.NotificationClosingStatus = "credit note, manual closing expected"
			default:
				err := p.backend.CloseNotification(ctx, rec.Notification)
				switch {
				case errors.Is(err, backend.ErrNotificationClosed):
					rec.NotificationClosingStatus = "already closed"
				case err != nil:
					rec.NotificationClosingStatus = fmt.Sprintf("closing failed: %v", err)
				default:
					rec.NotificationClosingStatus = "closed"
				}
			}
		}
	}

	if err := p.dumps.WriteInstruction(er.name, er.instruction); err != nil {
		return domain.Fatal("failed to persist notification statuses: %v", err), nil
	}
	return domain.Continue(), nil
}
