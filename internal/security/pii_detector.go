package security

import "strings"

// PIIDetector flags queries that ask for sensitive personal fields before
// any database or model sees them.
type PIIDetector struct {
	keywords []string
}

func NewPIIDetector(keywords []string) *PIIDetector {
	lower := make([]string, len(keywords))
	for i, k := range keywords {
		lower[i] = strings.ToLower(k)
	}
	return &PIIDetector{keywords: lower}
}

// Scan returns the first matched keyword and true when the text asks for
// PII.
func (d *PIIDetector) Scan(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}
