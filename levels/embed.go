package levels

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/milk9111/sandbox/scene"
)

//go:embed *.json
var LevelsFS embed.FS

// Load decodes the built-in scene called name. The .json suffix is optional.
func Load(name string) (scene.Document, error) {
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	f, err := LevelsFS.Open(path.Clean(name))
	if err != nil {
		return scene.Document{}, fmt.Errorf("levels: %s: %w", name, scene.ErrNotFound)
	}
	defer f.Close()

	doc, err := scene.Decode(f)
	if err != nil {
		return scene.Document{}, fmt.Errorf("levels: %s: %w", name, err)
	}
	return doc, nil
}

// Names lists the built-in scenes without their extension.
func Names() []string {
	entries, err := fs.ReadDir(LevelsFS, ".")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(out)
	return out
}
