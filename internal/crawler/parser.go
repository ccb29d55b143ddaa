package crawler

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/secscan/internal/model"
)

// HTML element names the extractor cares about.
const (
	htmlElementAnchor   = "a"
	htmlElementForm     = "form"
	htmlElementInput    = "input"
	htmlElementSelect   = "select"
	htmlElementTextarea = "textarea"
)

// Placeholder values submitted for each kind of form field.
const (
	PlaceholderInput    = "test_value"
	PlaceholderTextarea = "test_text_area_value"
	PlaceholderSelect   = "test_select_value"
)

// Form methods recognized by the extractor.
const (
	MethodGet  = "get"
	MethodPost = "post"
)

// FormField is a field element found inside a form.
type FormField struct {
	// Tag is the element name: input, textarea or select.
	Tag string

	// Name is the value of the name attribute. It is empty for unnamed
	// fields such as a bare submit button.
	Name string
}

// RawForm is a <form> block as it appears in the markup, before any
// resolution. The CSRF detector works on this view because it reports the
// attributes as written.
type RawForm struct {
	// Attrs holds the form element's attributes as written in the markup,
	// without entity decoding. Keys are lower-cased and the first
	// occurrence of a duplicated attribute wins.
	Attrs map[string]string

	// Markup is the source text from the opening <form> tag through the
	// closing </form> tag, or through the end of the document when the
	// form is never closed.
	Markup string

	// Fields lists every field element in document order, named or not.
	Fields []FormField
}

// Attr returns the named attribute and whether it was present.
func (f RawForm) Attr(key string) (string, bool) {
	v, ok := f.Attrs[key]
	return v, ok
}

// document is the result of one tokenizer pass.
type document struct {
	hrefs []string
	forms []RawForm
}

// tokenize walks the markup once and collects anchors and forms.
//
// A tokenizer is used instead of a tree builder so that a form's fields are
// exactly the fields between its start and end tags, the way the markup
// reads, even where the HTML5 tree construction rules would move them.
// A <form> start tag inside an open form is ignored, and a form that is
// never closed runs to the end of the document.
func tokenize(body string) document {
	var (
		doc     document
		current *RawForm
		markup  strings.Builder
	)

	z := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a read error; either way the input is exhausted.
			break
		}
		// Raw must be copied before TagName and TagAttr rewrite the buffer.
		raw := string(z.Raw())
		if current != nil {
			markup.WriteString(raw)
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			switch tag {
			case htmlElementAnchor, htmlElementForm, htmlElementInput, htmlElementSelect, htmlElementTextarea:
			default:
				continue
			}

			attrs := readAttrs(z, hasAttr)
			switch tag {
			case htmlElementAnchor:
				if href, ok := attrs["href"]; ok {
					doc.hrefs = append(doc.hrefs, href)
				}
			case htmlElementForm:
				if current != nil {
					continue
				}
				current = &RawForm{Attrs: rawTagAttrs(raw)}
				markup.Reset()
				markup.WriteString(raw)
			default:
				if current != nil {
					current.Fields = append(current.Fields, FormField{Tag: tag, Name: attrs["name"]})
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == htmlElementForm && current != nil {
				current.Markup = markup.String()
				doc.forms = append(doc.forms, *current)
				current = nil
			}
		}
	}

	if current != nil {
		current.Markup = markup.String()
		doc.forms = append(doc.forms, *current)
	}
	return doc
}

// readAttrs collects the attributes of the current tag.
// Keys are lower-cased by the tokenizer and values are entity-decoded.
func readAttrs(z *html.Tokenizer, hasAttr bool) map[string]string {
	attrs := make(map[string]string)
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		k := string(key)
		if _, dup := attrs[k]; !dup {
			attrs[k] = string(val)
		}
	}
	return attrs
}

// rawTagAttrs reads the attributes of a start tag from its source text.
// Values keep their entities and surrounding whitespace inside quotes.
func rawTagAttrs(tag string) map[string]string {
	attrs := make(map[string]string)

	i := strings.IndexFunc(tag, isTagSpace)
	if i < 0 {
		return attrs
	}
	for i < len(tag) {
		for i < len(tag) && (isTagSpace(rune(tag[i])) || tag[i] == '/') {
			i++
		}
		if i >= len(tag) || tag[i] == '>' {
			break
		}

		start := i
		for i < len(tag) && !isTagSpace(rune(tag[i])) && tag[i] != '=' && tag[i] != '>' && tag[i] != '/' {
			i++
		}
		if i == start {
			// A stray '=' with no attribute name.
			i++
			continue
		}
		key := strings.ToLower(tag[start:i])

		j := i
		for j < len(tag) && isTagSpace(rune(tag[j])) {
			j++
		}
		var val string
		if j < len(tag) && tag[j] == '=' {
			j++
			for j < len(tag) && isTagSpace(rune(tag[j])) {
				j++
			}
			if j < len(tag) && (tag[j] == '"' || tag[j] == '\'') {
				quote := tag[j]
				end := strings.IndexByte(tag[j+1:], quote)
				if end < 0 {
					val = tag[j+1:]
					j = len(tag)
				} else {
					val = tag[j+1 : j+1+end]
					j += end + 2
				}
			} else {
				vstart := j
				for j < len(tag) && !isTagSpace(rune(tag[j])) && tag[j] != '>' {
					j++
				}
				val = tag[vstart:j]
			}
			i = j
		}

		if _, dup := attrs[key]; !dup {
			attrs[key] = val
		}
	}
	return attrs
}

func isTagSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
}

// ParseForms returns every <form> block of body in document order.
func ParseForms(body string) []RawForm {
	return tokenize(body).forms
}

// Extract builds the structural view of a page.
//
// Links come from <a href> and are resolved against pageURL; javascript:,
// mailto: and fragment-only hrefs are dropped. Each form's action is
// resolved against pageURL and its method is normalized to get or post.
// URL parameters come from pageURL's own query string. Extract does no I/O.
func Extract(pageURL, body string) *model.ParsedPage {
	page := &model.ParsedPage{
		Links: make([]string, 0),
		Forms: make([]model.Form, 0),
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return page
	}
	page.URLParams = model.ParseParams(base.RawQuery)

	doc := tokenize(body)

	seen := make(map[string]bool)
	for _, href := range doc.hrefs {
		link := resolveLink(base, href)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		page.Links = append(page.Links, link)
	}

	for _, raw := range doc.forms {
		page.Forms = append(page.Forms, toForm(base, raw))
	}
	return page
}

// toForm converts a raw form to its resolved representation.
func toForm(base *url.URL, raw RawForm) model.Form {
	action := base.String()
	if ref, err := url.Parse(strings.TrimSpace(html.UnescapeString(raw.Attrs["action"]))); err == nil {
		action = base.ResolveReference(ref).String()
	}

	method := strings.ToLower(strings.TrimSpace(html.UnescapeString(raw.Attrs["method"])))
	if method != MethodPost {
		method = MethodGet
	}

	inputs := make(map[string]string, len(raw.Fields))
	for _, field := range raw.Fields {
		if field.Name == "" {
			continue
		}
		inputs[field.Name] = placeholderFor(field.Tag)
	}

	return model.Form{
		Action: action,
		Method: method,
		Inputs: inputs,
	}
}

// placeholderFor returns the placeholder value for a field element.
func placeholderFor(tag string) string {
	switch tag {
	case htmlElementTextarea:
		return PlaceholderTextarea
	case htmlElementSelect:
		return PlaceholderSelect
	default:
		return PlaceholderInput
	}
}

// resolveLink resolves an anchor href against the page URL.
// It returns an empty string for hrefs that do not point at a page.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
