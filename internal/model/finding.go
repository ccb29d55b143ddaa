package model

// Finding is a single detected vulnerability instance.
//
// The concrete types are *SQLInjectionFinding, *XSSFinding and
// *MissingCSRFTokenFinding. Consumers switch on the concrete type to read
// detector-specific detail and use the shared methods for everything else.
type Finding interface {
	// Vulnerability returns the catalog entry this finding belongs to.
	Vulnerability() Vulnerability

	// Target returns the page URL the finding was reported against.
	Target() string

	// EvidenceSnippet returns the human-readable proof of the finding.
	EvidenceSnippet() string
}

// InjectionDetail is the payload-specific detail shared by the injection findings.
type InjectionDetail struct {
	// Parameter is the name of the query parameter that was mutated.
	Parameter string

	// Payload is the attack string appended to the parameter value.
	Payload string

	// CandidateURL is the exact URL that produced the positive response.
	CandidateURL string

	// Evidence is the matched signature or the reflected response excerpt.
	Evidence string
}

// SQLInjectionFinding reports a database error signature in a response.
type SQLInjectionFinding struct {
	TargetURL string
	InjectionDetail
}

// Vulnerability implements Finding.
func (f *SQLInjectionFinding) Vulnerability() Vulnerability {
	return mustVulnerability(KindSQLInjection)
}

// Target implements Finding.
func (f *SQLInjectionFinding) Target() string { return f.TargetURL }

// EvidenceSnippet implements Finding.
func (f *SQLInjectionFinding) EvidenceSnippet() string { return f.Evidence }

// XSSFinding reports a payload reflected verbatim in a response.
type XSSFinding struct {
	TargetURL string
	InjectionDetail
}

// Vulnerability implements Finding.
func (f *XSSFinding) Vulnerability() Vulnerability {
	return mustVulnerability(KindXSS)
}

// Target implements Finding.
func (f *XSSFinding) Target() string { return f.TargetURL }

// EvidenceSnippet implements Finding.
func (f *XSSFinding) EvidenceSnippet() string { return f.Evidence }

// MissingCSRFTokenFinding reports a form without a recognizable anti-CSRF token.
type MissingCSRFTokenFinding struct {
	TargetURL string

	// FormIdentifier describes the form as action, method and id.
	FormIdentifier string

	// Evidence explains why the form was flagged.
	Evidence string

	// RawForm is the beginning of the form markup.
	RawForm string
}

// Vulnerability implements Finding.
func (f *MissingCSRFTokenFinding) Vulnerability() Vulnerability {
	return mustVulnerability(KindMissingCSRFToken)
}

// Target implements Finding.
func (f *MissingCSRFTokenFinding) Target() string { return f.TargetURL }

// EvidenceSnippet implements Finding.
func (f *MissingCSRFTokenFinding) EvidenceSnippet() string { return f.Evidence }

// FindingKey returns a stable identity for a finding, used to compare scans.
// Injection findings are keyed by type and parameter, CSRF findings by form.
func FindingKey(f Finding) string {
	kind := f.Vulnerability().Kind.String()
	switch v := f.(type) {
	case *SQLInjectionFinding:
		return kind + "|" + v.TargetURL + "|" + v.Parameter
	case *XSSFinding:
		return kind + "|" + v.TargetURL + "|" + v.Parameter
	case *MissingCSRFTokenFinding:
		return kind + "|" + v.TargetURL + "|" + v.FormIdentifier
	default:
		return kind + "|" + f.Target()
	}
}
