package detector

import (
	"context"
	"fmt"

	"github.com/nao1215/secscan/internal/model"
)

// CheckSQLi looks for error-based SQL injection in the query parameters of
// target.
//
// Every parameter is tried with every payload, parameters first. The first
// response containing a known database error message produces the finding.
// It returns nil when params is empty or nothing matched.
func (d *Detector) CheckSQLi(ctx context.Context, target string, params model.Params) *model.SQLInjectionFinding {
	detail, ok := d.probe(ctx, "sqli", target, params, sqliPayloads, matchSQLError)
	if !ok {
		return nil
	}
	d.logger.Debug("sql injection detected",
		"url", target,
		"parameter", detail.Parameter,
		"payload", detail.Payload,
	)
	return &model.SQLInjectionFinding{
		TargetURL:       target,
		InjectionDetail: detail,
	}
}

// matchSQLError reports the first database error signature found in body.
func matchSQLError(body, _ string) (string, bool) {
	for _, sig := range sqlErrorSignatures {
		if sig.re.MatchString(body) {
			return fmt.Sprintf("Detected SQL error pattern: '%s' in response.", sig.source), true
		}
	}
	return "", false
}
