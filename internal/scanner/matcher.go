package scanner

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects the matching policy for a scan session
type Mode string

const (
	// ModeOrder looks for an order id token (#issuer+digits) on paperwork
	ModeOrder Mode = "order"
	// ModeBarcode looks for a known barcode payload inside the OCR text
	ModeBarcode Mode = "barcode"
)

// DefaultIssuers are the carrier codes currently printed on order paperwork
var DefaultIssuers = []string{"EPR", "FWW", "YWG"}

// MatchResult is the outcome of evaluating one recognized text.
// A miss is not an error, it means keep scanning.
type MatchResult struct {
	Hit   bool   `json:"hit"`
	Value string `json:"value"`
}

// Matcher decides whether OCR output corresponds to a known order or barcode
type Matcher struct {
	orderPattern *regexp.Regexp
}

// NewMatcher builds a matcher for the given issuer codes.
// Falls back to DefaultIssuers when none are given.
func NewMatcher(issuers ...string) *Matcher {
	if len(issuers) == 0 {
		issuers = DefaultIssuers
	}
	quoted := make([]string, len(issuers))
	for i, issuer := range issuers {
		quoted[i] = regexp.QuoteMeta(strings.ToUpper(issuer))
	}
	pattern := regexp.MustCompile(fmt.Sprintf(`#(?:%s)[0-9]+`, strings.Join(quoted, "|")))
	return &Matcher{orderPattern: pattern}
}

// CleanText strips everything except '#', uppercase letters, and digits.
// OCR output is full of whitespace and lowercase noise the printed ids never
// contain.
func CleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '#' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Match evaluates recognized text against the corpus under the given mode
func (m *Matcher) Match(text string, mode Mode, corpus *Corpus) MatchResult {
	if corpus == nil || corpus.Len() == 0 {
		return MatchResult{}
	}

	cleaned := CleanText(text)
	if cleaned == "" {
		return MatchResult{}
	}

	switch mode {
	case ModeOrder:
		// Only an exact key hit counts; substring containment against
		// arbitrary OCR text produces false positives on short ids.
		for _, candidate := range m.orderPattern.FindAllString(cleaned, -1) {
			if _, ok := corpus.PrintCode(candidate); ok {
				return MatchResult{Hit: true, Value: candidate}
			}
		}
	case ModeBarcode:
		// The OCR text usually carries noise around the payload, so
		// containment is the right test here.
		for _, value := range corpus.Values() {
			if strings.Contains(cleaned, value) {
				return MatchResult{Hit: true, Value: value}
			}
		}
	}

	return MatchResult{}
}
