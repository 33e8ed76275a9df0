package assets

// Registry lists embedded schemas available at runtime.
// Update this when adding/removing schemas.

type AssetInfo struct {
	Name     string // registry key, e.g. "latest"
	Path     string // embed path
	Document string // document the schema describes
}

var Registry = []AssetInfo{
	{Name: "package-info", Path: "schemas/package-info.yaml", Document: "<user>/<repo>/package-info.json"},
	{Name: "latest", Path: "schemas/latest.yaml", Document: "latest.json"},
	{Name: "version", Path: "schemas/version.yaml", Document: "patch/<version>.json"},
	{Name: "patch", Path: "schemas/patch.yaml", Document: "patch/<from>-<to>.json"},
	{Name: "local-version", Path: "schemas/local-version.yaml", Document: "local-version.json"},
	{Name: "system", Path: "schemas/system.yaml", Document: "system.json"},
}

// Lookup finds a registry entry by name.
func Lookup(name string) (AssetInfo, bool) {
	for _, a := range Registry {
		if a.Name == name {
			return a, true
		}
	}
	return AssetInfo{}, false
}
