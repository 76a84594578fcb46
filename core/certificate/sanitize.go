package certificate

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy

	// safe subset of inline styles
	allowedStyles = []string{
		"color", "background-color",
		"font-family", "font-size", "font-style", "font-weight",
		"text-align", "text-decoration", "text-transform", "line-height", "letter-spacing",
		"vertical-align", "white-space",
		"margin", "margin-top", "margin-right", "margin-bottom", "margin-left",
		"padding", "padding-top", "padding-right", "padding-bottom", "padding-left",
		"border", "border-color", "border-style", "border-width", "border-radius",
		"width", "height", "max-width", "max-height", "display",
	}

	dimensionRegex = regexp.MustCompile(`^[0-9]{1,4}%?$`)
)

// sanitizePolicy is the allowlist applied to template markup.
// Scripts, event handlers, iframes, forms and any unlisted tag or attribute are removed.
func sanitizePolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()

		p.AllowElements(
			"div", "span", "p", "br", "hr", "section", "header", "footer", "article",
			"h1", "h2", "h3", "h4", "h5", "h6",
			"b", "strong", "i", "em", "u", "s", "small", "sub", "sup", "mark", "blockquote",
		)
		p.AllowLists()
		p.AllowTables()
		p.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|right|center|justify)$`)).OnElements("p", "div", "td", "th")

		// images: http(s) or inline data:image sources
		p.AllowURLSchemes("http", "https")
		p.AllowDataURIImages()
		p.RequireParseableURLs(true)
		p.AllowAttrs("src", "alt").OnElements("img")
		p.AllowAttrs("width", "height").Matching(dimensionRegex).OnElements("img", "table", "td", "th")
		p.AllowAttrs("href").OnElements("a")
		p.RequireNoFollowOnLinks(true)

		p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).Globally()
		p.AllowStyles(allowedStyles...).Globally()

		policy = p
	})
	return policy
}

// Sanitize strips everything outside the template allowlist from html.
func Sanitize(html string) string {
	return sanitizePolicy().Sanitize(html)
}
