package assets

import (
	"io/fs"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRegistryEntriesAreEmbedded(t *testing.T) {
	for _, a := range Registry {
		data, ok := GetSchema(a.Name)
		if !ok || len(data) == 0 {
			t.Errorf("schema %s (%s) not embedded", a.Name, a.Path)
			continue
		}
		var doc map[string]interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			t.Errorf("schema %s is not valid YAML: %v", a.Name, err)
			continue
		}
		if s, _ := doc["$schema"].(string); !strings.Contains(s, "draft-07") {
			t.Errorf("schema %s: expected draft-07, got %q", a.Name, s)
		}
	}
}

func TestGetSchemaUnknown(t *testing.T) {
	if _, ok := GetSchema("nonexistent"); ok {
		t.Error("expected unknown schema to be missing")
	}
}

func TestGetSchemasFS(t *testing.T) {
	entries, err := fs.ReadDir(GetSchemasFS(), ".")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(Registry) {
		t.Errorf("embedded %d schemas, registry lists %d", len(entries), len(Registry))
	}
}
