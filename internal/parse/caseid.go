package parse

import (
	"fmt"
	"regexp"
	"strconv"
)

// CaseIDPattern matches case identifiers embedded in free-text item
// descriptions. The numeric shape of the identifier differs per
// accounting jurisdiction and is supplied by the clearing rules.
type CaseIDPattern struct {
	rx *regexp.Regexp
}

// CompileCaseIDPattern builds the extraction pattern from the
// jurisdiction-specific numeric shape. A case marker is the letter D,
// optionally DP, separated from the number by optional whitespace and a
// single dash, underscore or slash.
func CompileCaseIDPattern(numericShape string) (*CaseIDPattern, error) {
	rx, err := regexp.Compile(fmt.Sprintf(`(?i)(\A|[^a-zA-Z])DP?\s*[-_/]?\s*(%s)`, numericShape))
	if err != nil {
		return nil, fmt.Errorf("invalid case ID pattern %q: %w", numericShape, err)
	}
	return &CaseIDPattern{rx: rx}, nil
}

// Extract returns every case ID referenced in the text, in order of
// appearance. Repeated references are kept: a text mentioning the same
// case twice yields two entries, which matters for virtual-ID synthesis.
func (p *CaseIDPattern) Extract(text string) []int64 {
	matches := p.rx.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
