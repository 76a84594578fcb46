package certificate

import (
	"reflect"
	"strings"
	"testing"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name   string
		tmpl   string
		values map[string]string
		want   string
	}{
		{
			name:   "missing key",
			tmpl:   "Hello %{{name}}%, score %{{score}}%",
			values: map[string]string{"name": "Ann"},
			want:   "Hello Ann, score ",
		},
		{name: "all occurrences", tmpl: "%{{a}}%-%{{a}}%-%{{a}}%", values: map[string]string{"a": "x"}, want: "x-x-x"},
		{name: "no tokens", tmpl: "plain {{text}} %{ }%", want: "plain {{text}} %{ }%"},
		{name: "markup value", tmpl: "<p>%{{sig}}%</p>", values: map[string]string{"sig": `<img src="https://x.test/s.png">`}, want: `<p><img src="https://x.test/s.png"></p>`},
		{name: "value brings a token", tmpl: "[%{{a}}%]", values: map[string]string{"a": "%{{b}}%", "b": "B"}, want: "[]"},
		{name: "removal forms a token", tmpl: "%{%{{x}}%{y}}%!", want: "!"},
		{name: "invalid name", tmpl: "a%{{not valid}}%b", want: "ab"},
		{name: "multiline marker", tmpl: "a%{{\n}}%b", want: "ab"},
		{name: "empty template", tmpl: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Substitute(tt.tmpl, tt.values)
			if got != tt.want {
				t.Errorf("Substitute() = %q, want %q", got, tt.want)
			}
			if residualRegex.MatchString(got) {
				t.Errorf("Substitute() = %q still holds a marker", got)
			}
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name         string
		tmpl         string
		values       map[string]string
		want         string
		wantValidErr bool
		wantSanitErr bool
	}{
		{name: "literal", tmpl: "Hello %{{name}}%, score %{{score}}%", values: map[string]string{"name": "Ann"}, want: "Hello Ann, score "},
		{name: "blank template", tmpl: "  \n ", wantValidErr: true},
		{name: "script only", tmpl: "<script>alert(1)</script>", wantSanitErr: true},
		{name: "script value", tmpl: "<p>%{{name}}%</p>", values: map[string]string{"name": "<script>alert(1)</script>Ann"}, want: "<p>Ann</p>"},
		{name: "only tokens", tmpl: "%{{a}}%%{{b}}%", wantSanitErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.values)
			if tt.wantValidErr {
				if !IsValidation(err) {
					t.Errorf("Render() error = %v, want a validation error", err)
				}
				return
			}
			if tt.wantSanitErr {
				if _, ok := err.(*SanitizationError); !ok {
					t.Errorf("Render() error = %v, want a SanitizationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains []string
		excludes []string
	}{
		{name: "event handler", html: `<p onclick="steal()">Hi</p>`, contains: []string{"<p>Hi</p>"}, excludes: []string{"onclick"}},
		{name: "iframe", html: `<div><iframe src="https://evil.test"></iframe>ok</div>`, contains: []string{"ok"}, excludes: []string{"iframe", "evil"}},
		{name: "form", html: `<form action="/x"><input name="a"></form>Name`, contains: []string{"Name"}, excludes: []string{"form", "input"}},
		{name: "javascript url", html: `<a href="javascript:alert(1)">x</a>`, excludes: []string{"javascript"}},
		{name: "safe styles", html: `<span style="color: red; position: fixed">x</span>`, contains: []string{"color", "x"}, excludes: []string{"position"}},
		{name: "https image", html: `<img src="https://cdn.test/logo.png" alt="logo">`, contains: []string{`src="https://cdn.test/logo.png"`, `alt="logo"`}},
		{name: "data image", html: `<img src="data:image/png;base64,iVBORw0KGgo=">`, contains: []string{"data:image/png;base64"}},
		{name: "table", html: `<table><tr><td>A</td></tr></table>`, contains: []string{"<table>", "<td>A</td>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.html)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Sanitize() = %q, want it to contain %q", got, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Sanitize() = %q, must not contain %q", got, s)
				}
			}
		})
	}
}

func TestExtractTokens(t *testing.T) {
	got := ExtractTokens("%{{name}}% got %{{score}}% - %{{name}}% %{{bad name}}% %{{date_1}}%")
	want := []string{"name", "score", "date_1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractTokens() = %v, want %v", got, want)
	}
}

func TestPlaceholders_Values(t *testing.T) {
	ps := Placeholders{
		{Token: "name", Value: "Ann", IsVisible: true},
		{Token: "%{{score}}%", Value: "99", IsVisible: false},
		{Token: "date", Value: "today", IsVisible: true},
	}
	want := map[string]string{"name": "Ann", "score": "", "date": "today"}
	if got := ps.Values(); !reflect.DeepEqual(got, want) {
		t.Errorf("Values() = %v, want %v", got, want)
	}
}

func TestTokenName(t *testing.T) {
	tests := map[string]string{
		"name":           "name",
		"%{{name}}%":     "name",
		" %{{name}}% ":   "name",
		"%{{name}}%tail": "%{{name}}%tail",
	}
	for in, want := range tests {
		if got := TokenName(in); got != want {
			t.Errorf("TokenName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Token("x"); got != "%{{x}}%" {
		t.Errorf("Token() = %q", got)
	}
}
