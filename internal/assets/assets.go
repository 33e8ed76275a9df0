package assets

import (
	"embed"
	"io/fs"
)

// JSON Schemas for the documents pkgsync reads from origins and from disk.
//
//go:embed schemas
var schemaFS embed.FS

// GetSchema returns the embedded schema registered under name.
func GetSchema(name string) ([]byte, bool) {
	info, ok := Lookup(name)
	if !ok {
		return nil, false
	}
	data, err := schemaFS.ReadFile(info.Path)
	return data, err == nil
}

// GetSchemasFS exposes the schema tree rooted at the schemas directory.
func GetSchemasFS() fs.FS {
	if sub, err := fs.Sub(schemaFS, "schemas"); err == nil {
		return sub
	}
	return schemaFS
}
