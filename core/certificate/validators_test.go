package certificate

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/certstudio/core"
)

func newTestValidator() *validator.Validate {
	validate, translator := core.NewValidator()
	InitValidators(validate, translator)
	return validate
}

func TestValidatePlaceholders(t *testing.T) {
	validate := newTestValidator()
	tests := []struct {
		name    string
		ps      Placeholders
		wantErr bool
	}{
		{name: "none"},
		{name: "valid", ps: Placeholders{{Label: "Name", Token: "name"}, {Label: "Score", Token: "%{{score}}%"}}},
		{name: "missing label", ps: Placeholders{{Token: "name"}}, wantErr: true},
		{name: "bad token", ps: Placeholders{{Label: "Name", Token: "full name"}}, wantErr: true},
		{name: "negative font size", ps: Placeholders{{Label: "Name", Token: "name", FontSize: -1}}, wantErr: true},
		{name: "duplicate token", ps: Placeholders{{Label: "A", Token: "name"}, {Label: "B", Token: "%{{name}}%"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePlaceholders(validate, tt.ps); (err != nil) != tt.wantErr {
				t.Errorf("ValidatePlaceholders() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDesignModeValidation(t *testing.T) {
	validate := newTestValidator()
	for mode, valid := range map[string]bool{"freeform": true, "templated": true, "vector": false, "": false} {
		if err := validate.Var(mode, designModeTag); (err == nil) != valid {
			t.Errorf("designmode(%q) error = %v", mode, err)
		}
	}
}

func TestSaveRequest_Validate(t *testing.T) {
	validate := newTestValidator()

	sr := SaveRequest{Title: "  Go   101 ", IssuedToEmail: " Ann@Test.CD "}
	if err := sr.Validate(validate); err != nil {
		t.Fatal(err)
	}
	if sr.Title != "Go 101" || sr.FileName != "Go 101.png" || sr.IssuedToEmail != "ann@test.cd" {
		t.Errorf("cleaned request = %+v", sr)
	}

	bad := SaveRequest{Title: " ", IssuedToEmail: "nope"}
	if err := bad.Validate(validate); err == nil {
		t.Error("Validate() accepted a blank title")
	}
}
