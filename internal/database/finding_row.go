package database

import "github.com/nao1215/secscan/internal/model"

// findingRow is the flat column form of a finding.
type findingRow struct {
	kind           string
	targetURL      string
	parameter      string
	payload        string
	candidateURL   string
	formIdentifier string
	rawForm        string
	evidence       string
}

func toFindingRow(f model.Finding) findingRow {
	row := findingRow{
		kind:      f.Vulnerability().Kind.String(),
		targetURL: f.Target(),
		evidence:  f.EvidenceSnippet(),
	}
	switch d := f.(type) {
	case *model.SQLInjectionFinding:
		row.setInjection(d.InjectionDetail)
	case *model.XSSFinding:
		row.setInjection(d.InjectionDetail)
	case *model.MissingCSRFTokenFinding:
		row.formIdentifier = d.FormIdentifier
		row.rawForm = d.RawForm
	}
	return row
}

func (r *findingRow) setInjection(d model.InjectionDetail) {
	r.parameter = d.Parameter
	r.payload = d.Payload
	r.candidateURL = d.CandidateURL
}

// toFinding rebuilds the typed finding. It returns nil for unknown kinds.
func (r findingRow) toFinding() model.Finding {
	kind, err := model.ParseVulnerabilityKind(r.kind)
	if err != nil {
		return nil
	}

	detail := model.InjectionDetail{
		Parameter:    r.parameter,
		Payload:      r.payload,
		CandidateURL: r.candidateURL,
		Evidence:     r.evidence,
	}
	switch kind {
	case model.KindSQLInjection:
		return &model.SQLInjectionFinding{TargetURL: r.targetURL, InjectionDetail: detail}
	case model.KindXSS:
		return &model.XSSFinding{TargetURL: r.targetURL, InjectionDetail: detail}
	case model.KindMissingCSRFToken:
		return &model.MissingCSRFTokenFinding{
			TargetURL:      r.targetURL,
			FormIdentifier: r.formIdentifier,
			Evidence:       r.evidence,
			RawForm:        r.rawForm,
		}
	default:
		return nil
	}
}
