package model

import "fmt"

// VulnerabilityKind identifies one entry of the vulnerability catalog.
type VulnerabilityKind int

const (
	// KindSQLInjection is an error-based SQL injection.
	KindSQLInjection VulnerabilityKind = iota

	// KindXSS is a reflected cross-site scripting vulnerability.
	KindXSS

	// KindMissingCSRFToken is a form that carries no anti-CSRF token.
	KindMissingCSRFToken
)

// String returns the storage key of the kind.
func (k VulnerabilityKind) String() string {
	switch k {
	case KindSQLInjection:
		return "sql_injection"
	case KindXSS:
		return "xss"
	case KindMissingCSRFToken:
		return "missing_csrf_token"
	default:
		return "unknown"
	}
}

// ParseVulnerabilityKind converts a storage key back to a kind.
func ParseVulnerabilityKind(s string) (VulnerabilityKind, error) {
	for _, v := range catalog {
		if v.Kind.String() == s {
			return v.Kind, nil
		}
	}
	return 0, fmt.Errorf("unknown vulnerability kind %q", s)
}

// Vulnerability is the static metadata of a vulnerability type.
// Every Finding refers to exactly one Vulnerability.
type Vulnerability struct {
	// Kind is the catalog key.
	Kind VulnerabilityKind

	// Name is the display name printed in reports.
	Name string

	// Description explains the impact of the vulnerability.
	Description string

	// CWE is the Common Weakness Enumeration identifier, e.g. "CWE-89".
	CWE string

	// Criticality is the default criticality assigned to findings of this type.
	Criticality Severity
}

// catalog is the immutable vulnerability registry.
// It is indexed by VulnerabilityKind, so the order must follow the constants.
var catalog = []Vulnerability{
	{
		Kind:        KindSQLInjection,
		Name:        "SQL Injection",
		Description: "Allows attackers to execute arbitrary SQL queries on the database, potentially leading to unauthorized data access, modification, or deletion.",
		CWE:         "CWE-89",
		Criticality: SeverityHigh,
	},
	{
		Kind:        KindXSS,
		Name:        "Cross-Site Scripting (XSS)",
		Description: "Allows attackers to inject malicious scripts into web pages viewed by other users, potentially leading to session hijacking, data theft, or defacement.",
		CWE:         "CWE-79",
		Criticality: SeverityHigh,
	},
	{
		Kind:        KindMissingCSRFToken,
		Name:        "Missing Anti-CSRF Token",
		Description: "Web application does not use anti-CSRF tokens in one or more forms, making it vulnerable to Cross-Site Request Forgery (CSRF) attacks. CSRF can trick a victim's browser into making unintended requests.",
		CWE:         "CWE-352",
		Criticality: SeverityMedium,
	},
}

// LookupVulnerability returns the catalog entry for kind.
// The second return value is false for kinds that are not registered.
func LookupVulnerability(kind VulnerabilityKind) (Vulnerability, bool) {
	if kind < 0 || int(kind) >= len(catalog) {
		return Vulnerability{}, false
	}
	return catalog[kind], true
}

// mustVulnerability is used by the finding types, whose kinds are always registered.
func mustVulnerability(kind VulnerabilityKind) Vulnerability {
	v, ok := LookupVulnerability(kind)
	if !ok {
		panic(fmt.Sprintf("vulnerability kind %d is not in the catalog", kind))
	}
	return v
}

// Catalog returns a copy of every registered vulnerability in kind order.
func Catalog() []Vulnerability {
	out := make([]Vulnerability, len(catalog))
	copy(out, catalog)
	return out
}
