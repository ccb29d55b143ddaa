package model

import (
	"net/url"
	"strings"
)

// ParsedPage is the structural view of an HTML page that the detectors
// work on. It is produced by the crawler from a page URL and its body.
type ParsedPage struct {
	// Links holds the absolute URLs of the page's anchors, de-duplicated,
	// in first-seen order.
	Links []string `json:"links"`

	// Forms holds the page's forms in document order.
	Forms []Form `json:"forms"`

	// URLParams holds the query parameters of the page URL itself.
	URLParams Params `json:"url_params"`
}

// Form represents an HTML form as the scanner sees it.
type Form struct {
	// Action is the absolute URL the form submits to.
	// An empty action attribute resolves to the page URL.
	Action string `json:"action"`

	// Method is "get" or "post". Anything else falls back to "get".
	Method string `json:"method"`

	// Inputs maps field names to the placeholder value used when submitting.
	Inputs map[string]string `json:"inputs"`
}

// Param is one named query parameter with every value it carried.
type Param struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Value returns the parameter as the extractor presents it: a single value
// collapses to a scalar string, several values stay a list.
func (p Param) Value() any {
	if len(p.Values) == 1 {
		return p.Values[0]
	}
	out := make([]string, len(p.Values))
	copy(out, p.Values)
	return out
}

// Params is an ordered set of query parameters. The order is the order in
// which each name first appeared in the query string, and it is the order
// the injection detectors mutate parameters in.
type Params []Param

// ParseParams parses a raw query string preserving parameter order.
// Repeated names are merged into one Param. Pairs with a blank value or an
// empty name are skipped, as are pairs that cannot be unescaped.
func ParseParams(rawQuery string) Params {
	var params Params
	index := make(map[string]int)

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawName, rawValue, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(rawName)
		if err != nil || name == "" {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil || value == "" {
			continue
		}
		if i, ok := index[name]; ok {
			params[i].Values = append(params[i].Values, value)
			continue
		}
		index[name] = len(params)
		params = append(params, Param{Name: name, Values: []string{value}})
	}
	return params
}

// Get returns the values of the named parameter.
func (p Params) Get(name string) ([]string, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Values, true
		}
	}
	return nil, false
}

// Names returns the parameter names in order.
func (p Params) Names() []string {
	names := make([]string, len(p))
	for i, param := range p {
		names[i] = param.Name
	}
	return names
}

// WithSuffix returns a copy of p where every value of the named parameter
// has suffix appended. Other parameters are copied unchanged.
func (p Params) WithSuffix(name, suffix string) Params {
	out := make(Params, len(p))
	for i, param := range p {
		values := make([]string, len(param.Values))
		for j, v := range param.Values {
			if param.Name == name {
				v += suffix
			}
			values[j] = v
		}
		out[i] = Param{Name: param.Name, Values: values}
	}
	return out
}

// Encode serializes the parameters in order using form encoding, so a
// space becomes "+" and reserved characters are percent-escaped.
func (p Params) Encode() string {
	var b strings.Builder
	for _, param := range p {
		key := url.QueryEscape(param.Name)
		for _, v := range param.Values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// PageState is the lifecycle state of a page within one scan session.
type PageState int

const (
	// PageStateNew is a page that has not been processed yet.
	PageStateNew PageState = iota

	// PageStateScanned is a page that was fetched and analyzed.
	PageStateScanned

	// PageStateFailed is a page whose fetch failed. No detectors ran.
	PageStateFailed

	// PageStateSkipped is a page that was already processed in this session.
	PageStateSkipped
)

// String returns the lower-case name of the state.
func (s PageState) String() string {
	switch s {
	case PageStateNew:
		return "new"
	case PageStateScanned:
		return "scanned"
	case PageStateFailed:
		return "failed"
	case PageStateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// PageResult records what happened to one page during a scan.
type PageResult struct {
	// URL is the page URL as given to the scanner.
	URL string

	// State is the terminal state of the page.
	State PageState

	// StatusCode is the HTTP status of the response, zero when no response arrived.
	StatusCode int

	// FailureReason describes why the fetch failed. Empty unless State is PageStateFailed.
	FailureReason string

	// Page is the extracted structure. Nil unless State is PageStateScanned.
	Page *ParsedPage

	// Interrupted is set on a scanned page when cancellation stopped the
	// checks before all of them completed. A missing finding on such a page
	// does not mean the page is free of that vulnerability.
	Interrupted bool

	// Findings are the findings reported for this page, in detection order.
	Findings []Finding
}

// Links returns the links discovered on the page. It is nil unless the page
// was scanned.
func (r PageResult) Links() []string {
	if r.Page == nil {
		return nil
	}
	return r.Page.Links
}
