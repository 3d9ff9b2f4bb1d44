package cfgtree

import (
	"os"
	"path/filepath"
)

// LayeredSources derives the ordered merge sources for an origin
// configuration directory. A layered origin carries a base/ overlay plus
// optional env/<env-type>/ and inventory/<inventory>/ overlays, merged in
// that priority order. An origin without a base/ overlay is treated as a
// flat tree and becomes the single source.
func LayeredSources(originCfg, envType, inventory string) []string {
	base := filepath.Join(originCfg, "base")
	if _, err := os.Stat(base); err != nil {
		return []string{originCfg}
	}

	sources := []string{base}

	overlays := []string{
		filepath.Join(originCfg, "env", envType),
		filepath.Join(originCfg, "inventory", inventory),
	}
	for _, overlay := range overlays {
		if _, err := os.Stat(overlay); err == nil {
			sources = append(sources, overlay)
		}
	}

	return sources
}
