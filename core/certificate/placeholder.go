package certificate

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var (
	tokenRegex    = regexp.MustCompile(`%\{\{(\w+)\}\}%`)
	residualRegex = regexp.MustCompile(`(?s)%\{\{.*?\}\}%`)
)

// PlaceholderDefinition binds a `%{{name}}%` token to a value.
// In freeform mode, visible definitions are also drawn as positioned fields.
type PlaceholderDefinition struct {
	ID        string  `json:"id" yaml:"id"`
	Label     string  `json:"label" yaml:"label" validate:"required,max=100"`
	Token     string  `json:"token" yaml:"token" validate:"required,token"`
	Value     string  `json:"value" yaml:"value"`
	IsVisible bool    `json:"is_visible" yaml:"is_visible"`
	FontSize  float64 `json:"font_size" yaml:"font_size" validate:"gte=0"`
	X         float64 `json:"x" yaml:"x"`
	Y         float64 `json:"y" yaml:"y"`
}

type Placeholders []PlaceholderDefinition

// Values builds the substitution mapping. Hidden definitions map to "".
func (ps Placeholders) Values() map[string]string {
	values := make(map[string]string, len(ps))
	for _, p := range ps {
		name := TokenName(p.Token)
		if p.IsVisible {
			values[name] = p.Value
		} else if _, ok := values[name]; !ok {
			values[name] = ""
		}
	}
	return values
}

// Token returns the marker for `name`, eg. "%{{name}}%".
func Token(name string) string { return "%{{" + name + "}}%" }

// TokenName accepts either a bare name or a full marker and returns the name.
func TokenName(token string) string {
	token = strings.TrimSpace(token)
	if m := tokenRegex.FindStringSubmatch(token); m != nil && m[0] == token {
		return m[1]
	}
	return token
}

// ExtractTokens lists the distinct token names of tmpl in order of first appearance.
func ExtractTokens(tmpl string) []string {
	matches := tokenRegex.FindAllStringSubmatch(tmpl, -1)
	return lo.Uniq(lo.Map(matches, func(m []string, _ int) string { return m[1] }))
}

// Substitute replaces every token of tmpl with its mapped value; unmapped tokens become "".
// The result never contains a %{{...}}% marker, including markers brought in by values
// or formed by adjacent removals.
func Substitute(tmpl string, values map[string]string) string {
	out := tokenRegex.ReplaceAllStringFunc(tmpl, func(tok string) string {
		return values[tokenRegex.FindStringSubmatch(tok)[1]]
	})
	return stripResidual(out)
}

func stripResidual(s string) string {
	for residualRegex.MatchString(s) {
		s = residualRegex.ReplaceAllString(s, "")
	}
	return s
}

// Render substitutes then sanitizes a template.
// A non-blank template that sanitizes to nothing is a SanitizationError.
func Render(tmpl string, values map[string]string) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		return "", errEmptyTemplate
	}
	// stripping tags may join the halves of a marker
	out := stripResidual(Sanitize(Substitute(tmpl, values)))
	if strings.TrimSpace(out) == "" {
		return "", &SanitizationError{Input: tmpl}
	}
	return out, nil
}
