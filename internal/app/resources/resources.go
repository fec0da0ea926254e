// internal/app/resources/resources.go
package resources

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// Embed label dictionaries, one JSON object of key -> text per locale.
//
//go:embed locales/*.json
var localesFS embed.FS

// Locales returns the embedded dictionaries keyed by locale tag (the file
// name without extension).
func Locales() (map[string]map[string]string, error) {
	entries, err := fs.ReadDir(localesFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	out := make(map[string]map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		b, err := localesFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		dict := make(map[string]string)
		if err := json.Unmarshal(b, &dict); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".json")] = dict
	}
	return out, nil
}
