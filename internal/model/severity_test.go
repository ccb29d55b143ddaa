package model

import "testing"

// TestSeverityString tests the String method of Severity.
func TestSeverityString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeverityInfo, "INFO"},
		{SeverityLow, "LOW"},
		{SeverityMedium, "MEDIUM"},
		{SeverityHigh, "HIGH"},
		{SeverityCritical, "CRITICAL"},
		{Severity(999), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.severity.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.severity.String(), tc.expected)
			}
		})
	}
}

// TestSeverityLabel tests the report spelling of each severity.
func TestSeverityLabel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeverityInfo, "Info"},
		{SeverityLow, "Low"},
		{SeverityMedium, "Medium"},
		{SeverityHigh, "High"},
		{SeverityCritical, "Critical"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if got := tc.severity.Label(); got != tc.expected {
				t.Errorf("got %q, expected %q", got, tc.expected)
			}
		})
	}
}

// TestParseSeverity tests round-tripping severities through their string form.
func TestParseSeverity(t *testing.T) {
	t.Parallel()

	for _, s := range []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if got := ParseSeverity(s.String()); got != s {
			t.Errorf("ParseSeverity(%q) = %v, expected %v", s.String(), got, s)
		}
	}
	if got := ParseSeverity(" high "); got != SeverityHigh {
		t.Errorf("ParseSeverity should ignore case and spaces, got %v", got)
	}
	if got := ParseSeverity("bogus"); got != SeverityInfo {
		t.Errorf("unknown severity should map to INFO, got %v", got)
	}
}

// TestSeverityOrdering tests that severity levels are properly ordered.
func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	if SeverityInfo >= SeverityLow {
		t.Error("Info should be less than Low")
	}
	if SeverityLow >= SeverityMedium {
		t.Error("Low should be less than Medium")
	}
	if SeverityMedium >= SeverityHigh {
		t.Error("Medium should be less than High")
	}
	if SeverityHigh >= SeverityCritical {
		t.Error("High should be less than Critical")
	}
}

// TestSeverities tests the most-severe-first listing.
func TestSeverities(t *testing.T) {
	t.Parallel()

	all := Severities()
	if len(all) != 5 {
		t.Fatalf("expected 5 levels, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i] >= all[i-1] {
			t.Errorf("level %d (%v) is not less severe than %v", i, all[i], all[i-1])
		}
	}
}
