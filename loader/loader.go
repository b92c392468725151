// Package loader loads rule packs from Lua and YAML files into Go structs.
// The Lua VM is discarded after loading; nothing scripted runs during a
// simulation.
package loader

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	lua "github.com/yuin/gopher-lua"
)

// collector accumulates Lua definitions during file execution.
type collector struct {
	meta        *lua.LTable
	rules       []rawRule
	hints       []rawHint
	constraints []rawConstraint
	file        string
	order       int
}

func (c *collector) nextSourceOrder() int {
	c.order++
	return c.order
}

// Load reads every .lua, .yaml and .yml file in dir, compiles them into a
// rule pack and validates it. pack.lua and pack.yaml load first, the rest
// in name order.
func Load(fsys afero.Fs, dir string) (*Pack, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading pack directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && isPackFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .lua or .yaml files found in %s", dir)
	}
	files = sortedPackFiles(files)

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	var docs []yamlPack
	for _, f := range files {
		path := filepath.Join(dir, f)
		src, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		if strings.HasSuffix(f, ".lua") {
			coll.file = f
			if err := runChunk(L, string(src), f); err != nil {
				return nil, fmt.Errorf("executing %s: %w", f, err)
			}
			continue
		}
		doc, err := decodeYAML(src)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f, err)
		}
		doc.file = f
		docs = append(docs, doc)
	}

	pack, err := compile(coll, docs)
	if err != nil {
		return nil, fmt.Errorf("compiling rule pack: %w", err)
	}
	pack.Dir = dir
	if pack.Name == "" {
		pack.Name = filepath.Base(dir)
	}

	if err := validate(pack); err != nil {
		return nil, err
	}
	return pack, nil
}

// LoadDir loads a pack from the operating system filesystem.
func LoadDir(dir string) (*Pack, error) {
	return Load(afero.NewOsFs(), dir)
}

// runChunk compiles and executes one Lua source file.
func runChunk(L *lua.LState, src, name string) error {
	fn, err := L.Load(strings.NewReader(src), name)
	if err != nil {
		return err
	}
	L.Push(fn)
	return L.PCall(0, lua.MultRet, nil)
}

func isPackFile(name string) bool {
	switch filepath.Ext(name) {
	case ".lua", ".yaml", ".yml":
		return true
	}
	return false
}

// sortedPackFiles puts pack.lua and pack.yaml first, rest alphabetical.
func sortedPackFiles(files []string) []string {
	var head, others []string
	for _, f := range files {
		switch f {
		case "pack.lua", "pack.yaml", "pack.yml":
			head = append(head, f)
		default:
			others = append(others, f)
		}
	}
	sort.Strings(head)
	sort.Strings(others)
	return append(head, others...)
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// Packs must be deterministic.
	if mathTbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		mathTbl.RawSetString("randomseed", lua.LNil)
		mathTbl.RawSetString("random", lua.LNil)
	}
}
