package classify

import "strings"

// prohibitedTerms are matched case-insensitively as substrings against any
// generated text before it may reach a user. Database and guide content is
// pre-vetted and skips this filter.
var prohibitedTerms = []string{
	"medical advice",
	"diagnos",
	"prescri",
	"legal advice",
	"lawsuit",
	"you should sue",
	"liability",
	"compensation",
	"guarantee",
	"warrant",
	"insurance claim advice",
	"claim will be approved",
}

// Compliant reports whether generated text is free of prohibited terms.
func Compliant(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range prohibitedTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	return true
}
