package database

import (
	"context"
	"fmt"

	"github.com/nao1215/secscan/internal/model"
)

// Risk directions reported by Compare.
const (
	RiskImproved  = "improved"
	RiskWorsened  = "worsened"
	RiskUnchanged = "unchanged"
)

// severityWeight scores findings when deciding the risk direction.
var severityWeight = map[model.Severity]int{
	model.SeverityCritical: 100,
	model.SeverityHigh:     50,
	model.SeverityMedium:   10,
	model.SeverityLow:      5,
	model.SeverityInfo:     1,
}

// Comparison is the difference between two sessions of the same target.
type Comparison struct {
	// Target is the seed URL both sessions scanned.
	Target string

	// Previous and Current are the compared sessions.
	Previous SessionRecord
	Current  SessionRecord

	// NewFindings are present in Current but not in Previous.
	NewFindings []model.Finding

	// ResolvedFindings are present in Previous but not in Current.
	ResolvedFindings []model.Finding

	// UnchangedCount is the number of findings present in both.
	UnchangedCount int

	// Deltas holds Current minus Previous per criticality.
	Deltas map[model.Severity]int

	// Direction is RiskImproved, RiskWorsened or RiskUnchanged.
	Direction string
}

// CompareFindings diffs two finding lists by model.FindingKey.
// The returned lists keep the detection order of their source list.
func CompareFindings(previous, current []model.Finding) (added, resolved []model.Finding, unchanged int) {
	prevKeys := make(map[string]struct{}, len(previous))
	for _, f := range previous {
		prevKeys[model.FindingKey(f)] = struct{}{}
	}
	currKeys := make(map[string]struct{}, len(current))
	for _, f := range current {
		key := model.FindingKey(f)
		currKeys[key] = struct{}{}
		if _, ok := prevKeys[key]; !ok {
			added = append(added, f)
		}
	}
	for _, f := range previous {
		if _, ok := currKeys[model.FindingKey(f)]; ok {
			unchanged++
		} else {
			resolved = append(resolved, f)
		}
	}
	return added, resolved, unchanged
}

// riskScore weights the criticality counts of a session.
func riskScore(counts map[model.Severity]int) int {
	score := 0
	for sev, n := range counts {
		score += severityWeight[sev] * n
	}
	return score
}

// riskDirection compares two sessions by weighted score.
func riskDirection(previous, current map[model.Severity]int) string {
	prev, curr := riskScore(previous), riskScore(current)
	switch {
	case curr < prev:
		return RiskImproved
	case curr > prev:
		return RiskWorsened
	default:
		return RiskUnchanged
	}
}

// Compare loads two sessions and their findings and diffs them.
// Both sessions must exist and belong to the same target.
func (h *HistoryDB) Compare(ctx context.Context, previousID, currentID string) (*Comparison, error) {
	previous, err := h.GetSession(ctx, previousID)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, fmt.Errorf("session %s not found", previousID)
	}
	current, err := h.GetSession(ctx, currentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("session %s not found", currentID)
	}
	if previous.Target != current.Target {
		return nil, fmt.Errorf("session %s belongs to %s, not %s", previousID, previous.Target, current.Target)
	}

	previousFindings, err := h.GetFindings(ctx, previousID)
	if err != nil {
		return nil, err
	}
	currentFindings, err := h.GetFindings(ctx, currentID)
	if err != nil {
		return nil, err
	}

	result := &Comparison{
		Target:    current.Target,
		Previous:  *previous,
		Current:   *current,
		Deltas:    make(map[model.Severity]int, len(severityWeight)),
		Direction: riskDirection(previous.Counts, current.Counts),
	}
	result.NewFindings, result.ResolvedFindings, result.UnchangedCount = CompareFindings(previousFindings, currentFindings)
	for _, sev := range model.Severities() {
		result.Deltas[sev] = current.Counts[sev] - previous.Counts[sev]
	}
	return result, nil
}

// CompareLatest compares the two most recent sessions of target.
func (h *HistoryDB) CompareLatest(ctx context.Context, target string) (*Comparison, error) {
	sessions, err := h.LatestSessions(ctx, target, 2)
	if err != nil {
		return nil, err
	}
	if len(sessions) < 2 {
		return nil, fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(sessions))
	}
	return h.Compare(ctx, sessions[1].ID, sessions[0].ID)
}
