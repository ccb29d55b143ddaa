package detector

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/secscan/internal/model"
)

// evidenceContext is the number of characters kept on each side of a
// reflected payload.
const evidenceContext = 100

// CheckXSS looks for reflected cross-site scripting in the query parameters
// of target.
//
// A payload counts as reflected only when it appears verbatim and
// case-sensitively in the response. Entity-escaped reflections are safe and
// are not reported. It returns nil when params is empty or nothing matched.
func (d *Detector) CheckXSS(ctx context.Context, target string, params model.Params) *model.XSSFinding {
	detail, ok := d.probe(ctx, "xss", target, params, xssPayloads, matchReflection)
	if !ok {
		return nil
	}
	d.logger.Debug("reflected xss detected",
		"url", target,
		"parameter", detail.Parameter,
		"payload", detail.Payload,
	)
	return &model.XSSFinding{
		TargetURL:       target,
		InjectionDetail: detail,
	}
}

// matchReflection returns the text around the first verbatim occurrence of
// payload in body.
func matchReflection(body, payload string) (string, bool) {
	idx := strings.Index(body, payload)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(snippet(body, idx, idx+len(payload), evidenceContext)), true
}

// snippet returns body[start:end] widened by up to n characters on each
// side. Offsets are byte indexes; the widening counts runes.
func snippet(body string, start, end, n int) string {
	for i := 0; i < n && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(body[:start])
		start -= size
	}
	for i := 0; i < n && end < len(body); i++ {
		_, size := utf8.DecodeRuneInString(body[end:])
		end += size
	}
	return body[start:end]
}
