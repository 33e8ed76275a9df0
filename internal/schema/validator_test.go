package schema

import (
	"strings"
	"testing"
)

func TestRegistryLoaded(t *testing.T) {
	for _, name := range []string{PackageInfo, Latest, Version, Patch, LocalVersion, System} {
		if !Has(name) {
			t.Errorf("schema %s not compiled", name)
		}
	}
}

func TestValidateJSON(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		doc    string
		valid  bool
	}{
		{"latest ok", Latest, `{"version":12,"name":"engine 12"}`, true},
		{"latest missing name", Latest, `{"version":12}`, false},
		{"latest negative", Latest, `{"version":-1,"name":"x"}`, false},
		{"latest wrong type", Latest, `{"version":"12","name":"x"}`, false},
		{"patch ok", Patch, `{"size":100,"sig_size":10}`, true},
		{"patch missing sig", Patch, `{"size":100}`, false},
		{"package info ok", PackageInfo, `{"path":"games/x","channels":{"main":["any"]}}`, true},
		{"package info channels array", PackageInfo, `{"path":"games/x","channels":["main"]}`, false},
		{"version ok", Version, `{"name":"x"}`, true},
		{"system ok", System, `{"version":3}`, true},
		{"not an object", LocalVersion, `[]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateJSON([]byte(tt.doc), tt.schema)
			if err != nil {
				t.Fatal(err)
			}
			if res.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (errors: %v)", res.Valid, tt.valid, res.Errors)
			}
			if tt.valid && res.Err() != nil {
				t.Errorf("Err() = %v for valid document", res.Err())
			}
			if !tt.valid && res.Err() == nil {
				t.Error("Err() = nil for invalid document")
			}
		})
	}
}

func TestValidateJSON_Syntax(t *testing.T) {
	if _, err := ValidateJSON([]byte(`{"version":`), Latest); err == nil {
		t.Error("expected syntax error")
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	_, err := Validate(map[string]interface{}{}, "nonexistent")
	if err == nil || !strings.Contains(err.Error(), "not found in registry") {
		t.Errorf("expected schema not found error, got %v", err)
	}
}
