package normalize

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NameFromURL de-slugifies the last path segment of a product URL. It is
// the display name of last resort when a page or card shows none.
func NameFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	slug := path.Base(strings.TrimRight(p, "/"))
	if slug == "." || slug == "/" {
		return ""
	}
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(slug))
	return cases.Title(language.BrazilianPortuguese).String(strings.Join(words, " "))
}
