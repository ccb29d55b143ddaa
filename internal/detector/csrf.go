package detector

import (
	"fmt"
	"strings"

	"github.com/nao1215/secscan/internal/crawler"
	"github.com/nao1215/secscan/internal/model"
)

const (
	// rawFormLimit is the number of characters of form markup kept in a finding.
	rawFormLimit = 500

	// missingTokenEvidence is the evidence text of every CSRF finding.
	missingTokenEvidence = "No common anti-CSRF token input field name (e.g., csrf_token, authenticity_token, _token) found in this form."

	notAvailable = "N/A"
)

// CheckCSRFForms reports the forms of body that carry no anti-CSRF token.
//
// Only <input> names are considered. A form is flagged when it has at least
// one <input> element, named or not, and none of the names contains a known
// token name, ignoring case. Forms without any <input> are never flagged. CheckCSRFForms does no
// I/O; pageURL only labels the findings.
func CheckCSRFForms(pageURL, body string) []*model.MissingCSRFTokenFinding {
	var findings []*model.MissingCSRFTokenFinding
	if body == "" {
		return findings
	}

	for _, form := range crawler.ParseForms(body) {
		inputs := 0
		protected := false
		for _, field := range form.Fields {
			if field.Tag != "input" {
				continue
			}
			inputs++
			if field.Name != "" && isCSRFTokenName(field.Name) {
				protected = true
				break
			}
		}
		if protected || inputs == 0 {
			continue
		}

		findings = append(findings, &model.MissingCSRFTokenFinding{
			TargetURL:      pageURL,
			FormIdentifier: formIdentifier(form),
			Evidence:       missingTokenEvidence,
			RawForm:        truncateRunes(form.Markup, rawFormLimit) + "...",
		})
	}
	return findings
}

// isCSRFTokenName reports whether name follows an anti-CSRF naming convention.
func isCSRFTokenName(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range csrfTokenNames {
		if strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

// formIdentifier describes a form by its attributes as written.
// A missing method is shown as POST, the method a state-changing form
// would normally use.
func formIdentifier(form crawler.RawForm) string {
	action, ok := form.Attr("action")
	if !ok {
		action = notAvailable
	}
	method, ok := form.Attr("method")
	if !ok {
		method = "POST"
	}
	id, ok := form.Attr("id")
	if !ok {
		id = notAvailable
	}
	return fmt.Sprintf("action='%s', method='%s', id='%s'", action, strings.ToUpper(method), id)
}

// truncateRunes returns at most n characters of s.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
