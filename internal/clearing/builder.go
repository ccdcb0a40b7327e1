package clearing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/receivia/arclear/internal/domain"
	"github.com/receivia/arclear/internal/rules"
	"github.com/shopspring/decimal"
)

// Root-cause codes a cleared case may close with. Anything else is a
// rules invariant violation.
const (
	RootCausePayment    = "L01"
	RootCauseCreditNote = "L06"
)

// penaltyCategories selects the penalty GL account over the write-off
// accounts.
var penaltyCategories = map[string]struct{}{
	"010": {}, "011": {}, "012": {},
}

const (
	skipNoTaxCode = "No tax code used! A valid tax code was searched for, but no suitable accounting rule was found."
	skipTaxListed = "Clearing skipped based on tax exclusion criteria defined in accounting rules."
)

// BuildInput transforms the matched items into clearing instructions,
// grouped by currency and then by group identifier. Entity-scoped data
// problems (an account missing from the customer directory) come back
// as plain errors; rule gaps that would make posting unsafe come back
// as domain.InvariantError.
func BuildInput(
	matched []domain.ConsolidatedRecord,
	jur *rules.Jurisdiction,
	ent *rules.Entity,
	customers map[int64]domain.Customer,
) (Instruction, error) {
	out := make(Instruction)

	for _, curr := range currencies(matched) {
		var currItems []domain.ConsolidatedRecord
		for _, rec := range matched {
			if rec.Currency == curr {
				currItems = append(currItems, rec)
			}
		}

		bucket := &CurrencyBucket{
			Records:        make(map[int64]*GroupRecord),
			HeadOfficeDocs: make(map[int64][]int64),
			MatchedCount:   len(currItems),
		}
		out[curr] = bucket

		for _, id := range groupIDs(currItems) {
			group := members(currItems, id)

			rec, err := buildGroup(id, curr, group, jur, ent, customers)
			if err != nil {
				return nil, err
			}

			accumulateHeadOfficeDocs(bucket, group)
			bucket.CaseIDs = append(bucket.CaseIDs, rec.CaseIDs...)
			bucket.Records[id] = rec
		}
	}

	return out, nil
}

func buildGroup(
	id int64,
	curr string,
	group []domain.ConsolidatedRecord,
	jur *rules.Jurisdiction,
	ent *rules.Entity,
	customers map[int64]domain.Customer,
) (*GroupRecord, error) {
	headOffice := group[0].HeadOffice
	restAmount := sumAmounts(group).Round(2)
	category := firstCategory(group)

	rec := &GroupRecord{
		Currency:     curr,
		HeadOffice:   headOffice,
		RestAmount:   restAmount,
		CaseIDs:      groupCaseIDs(id, group),
		Notification: firstNotification(group),
		Assignment:   assignment(jur, id),
	}

	rec.TaxCode = resolveTaxCode(curr, group, jur, ent, headOffice, category)
	if rec.TaxCode == "" {
		rec.Skipped = true
		rec.Message = skipNoTaxCode
	}

	rootCause, err := resolveRootCause(group)
	if err != nil {
		return nil, err
	}
	rec.RootCause = rootCause

	if err := resolveGLAccount(rec, ent, category, customers, group[0].Branch); err != nil {
		return nil, err
	}

	if taxListed(rec.TaxCode, jur, ent) {
		rec.Skipped = true
		rec.Message += skipTaxListed
	}

	rec.PostingText = postingText(restAmount, jur, firstCustomerName(group), rec.CaseIDs)

	return rec, nil
}

// resolveTaxCode determines the posting tax code. Resolution order: the
// jurisdiction's forced universal code, any non-empty code already on
// the group, the currency-specific code, the head-office-specific code,
// the category-specific code, the jurisdiction default. An empty result
// after all fallbacks is reported by the caller as a skipped group, not
// silently dropped.
func resolveTaxCode(
	curr string,
	group []domain.ConsolidatedRecord,
	jur *rules.Jurisdiction,
	ent *rules.Entity,
	headOffice int64,
	category string,
) string {
	taxCode := strings.Join(distinctTaxCodes(group), "")

	if jur.UniversalTaxCode != "" {
		taxCode = jur.UniversalTaxCode
	}
	if taxCode != "" {
		return taxCode
	}

	if code, ok := jur.CurrencyTaxes[curr]; ok {
		return code
	}
	if code, ok := ent.HeadOfficeTaxes[headOffice]; ok {
		return code
	}
	if code, ok := jur.CategoryTaxes[category]; ok {
		return code
	}
	return jur.UnusedTaxCode
}

// resolveRootCause keeps an already-assigned L01/L06 (sticky), otherwise
// derives the code from the document types present in the group.
func resolveRootCause(group []domain.ConsolidatedRecord) (string, error) {
	prev := firstRootCause(group)
	if prev == RootCausePayment || prev == RootCauseCreditNote {
		return prev, nil
	}

	types := make(map[string]struct{})
	for _, rec := range group {
		types[rec.DocumentType] = struct{}{}
	}

	if _, ok := types["DG"]; ok {
		return RootCauseCreditNote, nil
	}
	if _, dz := types["DZ"]; dz {
		return RootCausePayment, nil
	}
	if _, da := types["DA"]; da {
		return RootCausePayment, nil
	}

	return "", domain.Invariantf("no root cause derivable from document types %v", keys(types))
}

// resolveGLAccount fills the GL account and cost center. A zero rest
// amount needs no posting. When the configured trade and retail cost
// centers differ, the customer directory is mandatory to categorize the
// account; its absence is fatal for the entity.
func resolveGLAccount(
	rec *GroupRecord,
	ent *rules.Entity,
	category string,
	customers map[int64]domain.Customer,
	account int64,
) error {
	acc := selectGLAccount(rec.RestAmount, ent, category)
	if acc == nil {
		rec.GLAccount = domain.NotApplicable
		rec.CostCenter = domain.NotApplicable
		return nil
	}

	rec.GLAccount = acc.Number

	if acc.CostCenter.Trade == acc.CostCenter.Retail {
		rec.CostCenter = acc.CostCenter.Trade
		return nil
	}

	if customers == nil {
		return fmt.Errorf("customer data is needed to categorize account %d as trade or retail", account)
	}
	cust, ok := customers[account]
	if !ok {
		return fmt.Errorf("account %d not found in customer data", account)
	}

	switch cust.Channel {
	case "trade":
		rec.CostCenter = acc.CostCenter.Trade
	case "retail":
		rec.CostCenter = acc.CostCenter.Retail
	default:
		return fmt.Errorf("account %d has unknown customer channel %q", account, cust.Channel)
	}
	return nil
}

func selectGLAccount(rest decimal.Decimal, ent *rules.Entity, category string) *rules.GLAccount {
	accounts := ent.GLAccounts
	_, penalty := penaltyCategories[category]

	switch {
	case rest.IsZero():
		return nil
	case accounts.Penalties != nil && penalty:
		return accounts.Penalties
	case accounts.WriteOffDebits != nil && rest.IsPositive():
		return accounts.WriteOffDebits
	case accounts.WriteOffCredits != nil && rest.IsNegative():
		return accounts.WriteOffCredits
	default:
		return accounts.WriteOffCommon
	}
}

// postingText compiles the posting text: the jurisdiction's difference
// template with the customer name substituted, suffixed with all member
// case identifiers. A zero rest amount posts nothing and needs no text.
func postingText(rest decimal.Decimal, jur *rules.Jurisdiction, customerName string, caseIDs []int64) string {
	if rest.IsZero() {
		return domain.NotApplicable
	}

	text := strings.ReplaceAll(jur.DifferenceName, "$customer$", customerName)
	for _, id := range caseIDs {
		text += " D " + strconv.FormatInt(id, 10)
	}
	return text
}

// assignment is the jurisdiction's constant override when configured
// (one jurisdiction uses a fixed difference indicator as an audit flag),
// otherwise the group identifier.
func assignment(jur *rules.Jurisdiction, id int64) string {
	if jur.AssignmentOverride != "" {
		return jur.AssignmentOverride
	}
	return strconv.FormatInt(id, 10)
}

func taxListed(taxCode string, jur *rules.Jurisdiction, ent *rules.Entity) bool {
	for _, t := range append(append([]string{}, ent.SkippedTaxes...), jur.SkippedTaxes...) {
		if t == taxCode {
			return true
		}
	}
	return false
}

// groupCaseIDs returns the real case identifiers of the group: the
// demoted IDs when the group was virtualized, else the group ID itself.
func groupCaseIDs(id int64, group []domain.ConsolidatedRecord) []int64 {
	var demoted []int64
	seen := make(map[int64]struct{})
	for _, rec := range group {
		if rec.VirtualID == nil {
			continue
		}
		if _, ok := seen[*rec.VirtualID]; !ok {
			seen[*rec.VirtualID] = struct{}{}
			demoted = append(demoted, *rec.VirtualID)
		}
	}
	if len(demoted) == 0 {
		return []int64{id}
	}
	return demoted
}

func accumulateHeadOfficeDocs(bucket *CurrencyBucket, group []domain.ConsolidatedRecord) {
	for _, rec := range group {
		docs := bucket.HeadOfficeDocs[rec.HeadOffice]
		if !containsInt64(docs, rec.DocumentNumber) {
			bucket.HeadOfficeDocs[rec.HeadOffice] = append(docs, rec.DocumentNumber)
		}
	}
}

func currencies(matched []domain.ConsolidatedRecord) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, rec := range matched {
		if _, ok := seen[rec.Currency]; !ok {
			seen[rec.Currency] = struct{}{}
			out = append(out, rec.Currency)
		}
	}
	sort.Strings(out)
	return out
}

// groupIDs returns the distinct identifiers in order of appearance; the
// input arrives sorted by ID descending.
func groupIDs(recs []domain.ConsolidatedRecord) []int64 {
	var out []int64
	seen := make(map[int64]struct{})
	for _, rec := range recs {
		if rec.ID == nil {
			continue
		}
		if _, ok := seen[*rec.ID]; !ok {
			seen[*rec.ID] = struct{}{}
			out = append(out, *rec.ID)
		}
	}
	return out
}

func members(recs []domain.ConsolidatedRecord, id int64) []domain.ConsolidatedRecord {
	var out []domain.ConsolidatedRecord
	for _, rec := range recs {
		if rec.ID != nil && *rec.ID == id {
			out = append(out, rec)
		}
	}
	return out
}

func sumAmounts(group []domain.ConsolidatedRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, rec := range group {
		sum = sum.Add(rec.Amount)
	}
	return sum
}

func distinctTaxCodes(group []domain.ConsolidatedRecord) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, rec := range group {
		if _, ok := seen[rec.TaxCode]; !ok {
			seen[rec.TaxCode] = struct{}{}
			out = append(out, rec.TaxCode)
		}
	}
	return out
}

func firstCategory(group []domain.ConsolidatedRecord) string {
	for _, rec := range group {
		if rec.Case != nil && rec.Case.Category != "" {
			return rec.Case.Category
		}
	}
	return ""
}

func firstRootCause(group []domain.ConsolidatedRecord) string {
	for _, rec := range group {
		if rec.Case != nil && rec.Case.RootCause != "" {
			return rec.Case.RootCause
		}
	}
	return ""
}

func firstNotification(group []domain.ConsolidatedRecord) int64 {
	for _, rec := range group {
		if rec.Case != nil && rec.Case.Notification != 0 {
			return rec.Case.Notification
		}
	}
	return 0
}

func firstCustomerName(group []domain.ConsolidatedRecord) string {
	for _, rec := range group {
		if rec.CustomerName != "" {
			return rec.CustomerName
		}
	}
	return ""
}

func containsInt64(s []int64, v int64) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
