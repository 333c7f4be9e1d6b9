// ABOUTME: Curated model catalog embedded from models.toml
// ABOUTME: Filters the provider's raw model list down to chat-worthy entries

package genai

import (
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	_ "embed"
)

//go:embed models.toml
var catalogTOML []byte

var curated = loadCatalog()

type catalog struct {
	Models []string `toml:"models"`
}

func loadCatalog() map[string]bool {
	var c catalog
	if err := toml.Unmarshal(catalogTOML, &c); err != nil {
		// The catalog is embedded at build time; a parse failure is a
		// programming error, not a runtime condition.
		panic("parsing embedded models.toml: " + err.Error())
	}
	set := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		set[m] = true
	}
	return set
}

// CuratedModels returns the curated base names in catalog order.
func CuratedModels() []string {
	var c catalog
	_ = toml.Unmarshal(catalogTOML, &c)
	return c.Models
}

// FilterCurated reduces a raw provider model list to the curated,
// chat-capable subset: embedding, AQA and user-tuned models are excluded,
// and only models on the curated list survive. The result is sorted by
// full name.
func FilterCurated(models []ModelInfo) []ModelInfo {
	var kept []ModelInfo
	for _, m := range models {
		name := m.Name
		if name == "" || strings.HasPrefix(name, "tunedModels/") {
			continue
		}
		lower := strings.ToLower(name)
		if strings.Contains(lower, "embedding") || strings.Contains(lower, "aqa") {
			continue
		}
		if !curated[m.BaseName()] {
			continue
		}
		kept = append(kept, m)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Name < kept[j].Name })
	return kept
}
