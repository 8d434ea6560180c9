package relay

import (
	"regexp"
	"strings"
)

// Indicator is one observable pulled out of a snippet.
type Indicator struct {
	Type     string // MISP attribute type
	Category string // MISP attribute category
	Value    string
	ToIDS    bool
}

type indicatorRule struct {
	typ      string
	category string
	toIDS    bool
	re       *regexp.Regexp
}

// Rules run in this order; a value is reported once per type.
var indicatorRules = []indicatorRule{
	{"url", "Network activity", true, regexp.MustCompile(`\bhttps?://[^\s<>"'\x60]+`)},
	{"ip-dst", "Network activity", true, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)},
	{"email-src", "Payload delivery", true, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"domain", "Network activity", true, regexp.MustCompile(`\b(?:[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?\.)+[A-Za-z]{2,63}\b`)},
	{"sha256", "Payload delivery", true, regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)},
	{"sha1", "Payload delivery", true, regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)},
	{"md5", "Payload delivery", true, regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)},
}

// Non-network file extensions that the domain pattern would otherwise pick up.
var fileSuffixes = []string{".txt", ".log", ".exe", ".dll", ".zip", ".json", ".csv", ".pdf", ".doc", ".docx", ".xls", ".xlsx", ".png", ".jpg", ".py", ".php", ".sh", ".ps1", ".js"}

var refanger = strings.NewReplacer(
	"[.]", ".",
	"(.)", ".",
	"{.}", ".",
	"[dot]", ".",
	"[:]", ":",
	"[@]", "@",
	"hxxps://", "https://",
	"hxxp://", "http://",
	"hXXps://", "https://",
	"hXXp://", "http://",
)

// Refang undoes the usual defanging of indicators in analyst notes.
func Refang(s string) string {
	return refanger.Replace(s)
}

// ExtractIndicators returns the observables found in content, in rule order
// and then order of first appearance.
func ExtractIndicators(content string) []Indicator {
	text := Refang(content)
	var out []Indicator
	seen := make(map[string]bool)
	for _, rule := range indicatorRules {
		for _, m := range rule.re.FindAllString(text, -1) {
			v := strings.TrimRight(m, ".,;:)]}!?")
			if rule.typ == "domain" && !plausibleDomain(v) {
				continue
			}
			if rule.typ == "domain" || rule.typ == "email-src" {
				v = strings.ToLower(v)
			}
			if rule.typ == "md5" || rule.typ == "sha1" || rule.typ == "sha256" {
				v = strings.ToLower(v)
			}
			key := rule.typ + "|" + v
			if v == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Indicator{Type: rule.typ, Category: rule.category, Value: v, ToIDS: rule.toIDS})
		}
	}
	return out
}

func plausibleDomain(v string) bool {
	lower := strings.ToLower(v)
	for _, suffix := range fileSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return strings.Contains(lower, ".")
}
