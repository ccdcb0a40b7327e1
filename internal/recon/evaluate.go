package recon

import (
	"sort"

	"github.com/receivia/arclear/internal/domain"
	"github.com/shopspring/decimal"
)

// nullTaxCompatible lists the tax codes allowed to pair with the empty
// tax code within one group. Any other pairing leaves the group tax
// codes as they are and the group unmatched.
var nullTaxCompatible = map[string]struct{}{
	"YR": {}, "YN": {}, "TT": {}, "TZ": {}, "YO": {},
	"C3": {}, "IG": {}, "K6": {}, "AU": {}, "UU": {},
}

// EvaluateItems marks the three match flags on consolidated records.
// A group (all records sharing one, possibly virtual, ID) matches when
// it has at least two members, compatible tax codes, and an absolute
// amount sum below the applicable threshold with both a positive and a
// negative member. The input slice is not modified; evaluation of an
// already-evaluated set yields the same result.
func EvaluateItems(
	consolidated []domain.ConsolidatedRecord,
	baseThreshold decimal.Decimal,
	taxThresholds map[string]decimal.Decimal,
) []domain.ConsolidatedRecord {
	out := make([]domain.ConsolidatedRecord, len(consolidated))
	copy(out, consolidated)

	if baseThreshold.IsZero() {
		// Avoid both the exact-zero comparison degeneracy and excluding
		// groups that sum to exactly zero.
		baseThreshold = decimal.New(1, -2)
	}

	counts := make(map[int64]int)
	for i := range out {
		if out[i].ID != nil {
			counts[*out[i].ID]++
		}
	}

	duplicated := make([]int64, 0, len(counts))
	for id, n := range counts {
		if n > 1 {
			duplicated = append(duplicated, id)
		}
	}
	if len(duplicated) == 0 {
		return out
	}
	sort.Slice(duplicated, func(i, j int) bool { return duplicated[i] > duplicated[j] })

	for _, id := range duplicated {
		members := memberIndexes(out, id)

		for _, i := range members {
			out[i].IDMatched = true
		}

		taxes := distinctTaxes(out, members)
		taxCode := ""

		switch len(taxes) {
		case 1:
			taxCode = taxes[0]
			for _, i := range members {
				out[i].TaxMatched = true
			}
		case 2:
			// A standard code may pair with the empty code if it is on
			// the compatibility allow-list. The members keep their own
			// codes either way.
			if other, ok := nonNullOfPair(taxes); ok {
				taxCode = other
				if _, allowed := nullTaxCompatible[other]; allowed {
					for _, i := range members {
						out[i].TaxMatched = true
					}
				}
			}
		}

		threshold := baseThreshold
		if t, ok := taxThresholds[taxCode]; ok {
			threshold = t
		}

		sum := decimal.Zero
		anyPositive, anyNegative := false, false
		for _, i := range members {
			sum = sum.Add(out[i].Amount)
			if out[i].Amount.IsPositive() {
				anyPositive = true
			}
			if out[i].Amount.IsNegative() {
				anyNegative = true
			}
		}

		// A one-sided group may sum below threshold without being a
		// debit/credit pair; it must not match.
		if sum.Abs().LessThan(threshold) && anyPositive && anyNegative {
			for _, i := range members {
				out[i].AmountMatched = true
			}
		}
	}

	return out
}

// MatchedItems filters the records where all three match flags are set.
// This is the authoritative clearable set.
func MatchedItems(evaluated []domain.ConsolidatedRecord) []domain.ConsolidatedRecord {
	var matched []domain.ConsolidatedRecord
	for _, rec := range evaluated {
		if rec.Matched() {
			matched = append(matched, rec)
		}
	}
	return matched
}

func memberIndexes(recs []domain.ConsolidatedRecord, id int64) []int {
	var members []int
	for i := range recs {
		if recs[i].ID != nil && *recs[i].ID == id {
			members = append(members, i)
		}
	}
	return members
}

func distinctTaxes(recs []domain.ConsolidatedRecord, members []int) []string {
	var taxes []string
	seen := make(map[string]struct{})
	for _, i := range members {
		if _, ok := seen[recs[i].TaxCode]; !ok {
			seen[recs[i].TaxCode] = struct{}{}
			taxes = append(taxes, recs[i].TaxCode)
		}
	}
	return taxes
}

// nonNullOfPair returns the non-empty code of a two-code set containing
// the empty code. Two distinct non-empty codes return no value.
func nonNullOfPair(taxes []string) (string, bool) {
	if taxes[0] == "" {
		return taxes[1], true
	}
	if taxes[1] == "" {
		return taxes[0], true
	}
	return "", false
}
