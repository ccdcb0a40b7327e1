package clearing

import (
	"strconv"
	"strings"

	"github.com/receivia/arclear/internal/domain"
)

// MaxStatusTextLen is the case-management length limit of the bounded
// status-text field.
const MaxStatusTextLen = 50

// NextStatusText appends the clearing posting number to the case's
// bounded status text. The case is looked up by its identifier in the
// primary ID field first, then in the virtual slot (the group may have
// been re-keyed to a synthetic ID). When the appended text would exceed
// the field limit the original text is kept unchanged.
func NextStatusText(matched []domain.ConsolidatedRecord, caseID int64, postingNumber int64) string {
	current := strings.TrimSpace(findStatusText(matched, caseID))

	next := strings.TrimSpace(current + " " + strconv.FormatInt(postingNumber, 10))
	if len(next) > MaxStatusTextLen {
		return current
	}
	return next
}

func findStatusText(matched []domain.ConsolidatedRecord, caseID int64) string {
	for _, rec := range matched {
		if rec.ID != nil && *rec.ID == caseID && rec.Case != nil {
			return rec.Case.StatusAC
		}
	}
	for _, rec := range matched {
		if rec.VirtualID != nil && *rec.VirtualID == caseID && rec.Case != nil {
			return rec.Case.StatusAC
		}
	}
	return ""
}
