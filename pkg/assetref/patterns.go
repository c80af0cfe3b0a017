package assetref

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultExtensions are the image extensions versioned when no explicit list
// is configured.
var DefaultExtensions = []string{
	"png", "jpg", "jpeg", "gif", "svg", "webp", "avif", "jxl", "heic", "heif", "bmp", "tiff", "tif",
}

// Kind selects the pattern set and versioning policy.
type Kind int

const (
	KindScript Kind = iota + 1
	KindStyle
)

// Pattern is one compiled reference pattern. Group indexes are resolved once
// at construction; a zero quote group means the pattern has no quote capture.
type Pattern struct {
	Name  string
	re    *regexp.Regexp
	path  int
	query int
	open  int
	close int
	// inner, when set, is applied to each match of re to find the actual
	// references, e.g. the quoted candidates of an image-set().
	inner *Pattern
}

// NormalizeExtensions lowercases, strips dots, dedupes and sorts an extension
// list. An empty input returns DefaultExtensions.
func NormalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	seen := make(map[string]bool, len(exts))
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// extensionAlternation builds the regexp alternation for the union of the
// default and configured extensions. Longer names come first so "tiff" is
// tried before "tif".
func extensionAlternation(exts []string) string {
	all := NormalizeExtensions(append(append([]string{}, DefaultExtensions...), exts...))
	sort.SliceStable(all, func(i, j int) bool { return len(all[i]) > len(all[j]) })
	quoted := make([]string, len(all))
	for i, e := range all {
		quoted[i] = regexp.QuoteMeta(e)
	}
	return strings.Join(quoted, "|")
}

// PatternsFor returns the ordered reference patterns for kind. Patterns match
// the default image extensions plus any configured ones; eligibility against
// the configured allow-list is decided later, per reference.
func PatternsFor(kind Kind, exts []string) []*Pattern {
	alt := extensionAlternation(exts)

	switch kind {
	case KindStyle:
		urlRe := regexp.MustCompile(`(?i)url\(\s*(['"]?)([^'"()\s?#]+\.(?:` + alt + `))(\?[^'"()\s]*)?(['"]?)\s*\)`)
		candidateRe := regexp.MustCompile(`(?i)(['"])([^'"?#()\s]+\.(?:` + alt + `))(\?[^'"()\s]*)?(['"])`)
		imageSetRe := regexp.MustCompile(`(?i)(?:-webkit-)?image-set\((?:[^()]|\([^()]*\))*\)`)
		return []*Pattern{
			{Name: "url", re: urlRe, open: 1, path: 2, query: 3, close: 4},
			{
				Name:  "image-set",
				re:    imageSetRe,
				inner: &Pattern{Name: "image-set-candidate", re: candidateRe, open: 1, path: 2, query: 3, close: 4},
			},
		}
	case KindScript:
		quotedRe := regexp.MustCompile("(?i)(['\"`])([^'\"`\\s?#]*?\\.(?:" + alt + "))(\\?[^'\"`\\s]*)?(['\"`])")
		return []*Pattern{
			{Name: "quoted", re: quotedRe, open: 1, path: 2, query: 3, close: 4},
		}
	default:
		return nil
	}
}

// Match is one asset reference found in a file.
type Match struct {
	// Path is the reference without its query string.
	Path string
	// Query is the existing query string including "?", if any.
	Query string
	// Start and End delimit Path+Query in the content.
	Start, End int
}

// FindAll returns the references matched by p in content, in order.
func (p *Pattern) FindAll(content string) []Match {
	if p.inner != nil {
		var out []Match
		for _, outer := range p.re.FindAllStringIndex(content, -1) {
			for _, m := range p.inner.FindAll(content[outer[0]:outer[1]]) {
				m.Start += outer[0]
				m.End += outer[0]
				out = append(out, m)
			}
		}
		return out
	}

	var out []Match
	for _, idx := range p.re.FindAllStringSubmatchIndex(content, -1) {
		if p.open > 0 && p.close > 0 && group(content, idx, p.open) != group(content, idx, p.close) {
			continue
		}
		start, end := idx[2*p.path], idx[2*p.path+1]
		m := Match{Path: content[start:end], Start: start, End: end}
		if qs := idx[2*p.query]; qs >= 0 {
			m.Query = content[qs:idx[2*p.query+1]]
			m.End = idx[2*p.query+1]
		}
		out = append(out, m)
	}
	return out
}

func group(content string, idx []int, n int) string {
	if idx[2*n] < 0 {
		return ""
	}
	return content[idx[2*n]:idx[2*n+1]]
}
