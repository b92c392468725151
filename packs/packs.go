// Package packs embeds the rule packs that ship with simcore.
package packs

import (
	"embed"

	"github.com/spf13/afero"

	"github.com/nathoo/simcore/loader"
)

//go:embed forest
var FS embed.FS

// Builtin is the name of the pack used when no rules directory is set.
const Builtin = "forest"

// Load reads an embedded pack by name.
func Load(name string) (*loader.Pack, error) {
	return loader.Load(afero.FromIOFS{FS: FS}, name)
}
