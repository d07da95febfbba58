package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/automoto/arrowflight/shared/leveldata"
)

//go:embed all:arenas
var arenaFS embed.FS

// FS returns the arenas shipped with the binary, rooted like an assets dir.
func FS() fs.FS { return arenaFS }

// Open returns dir from disk when it exists, otherwise the embedded arenas.
func Open(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	return arenaFS
}

// ArenaNames lists the .tmx stems under arenasDir in fsys.
func ArenaNames(fsys fs.FS, arenasDir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, arenasDir)
	if err != nil {
		return nil, fmt.Errorf("read arenas directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".tmx" {
			continue
		}
		names = append(names, entry.Name()[:len(entry.Name())-len(".tmx")])
	}
	sort.Strings(names)
	return names, nil
}

// LoadArena parses one named arena.
func LoadArena(fsys fs.FS, arenasDir, name string, pixelsPerMeter float64) (*leveldata.ArenaData, error) {
	return leveldata.LoadArena(fsys, path.Join(arenasDir, name+".tmx"), pixelsPerMeter)
}

// MustLoadArenas loads every embedded arena and panics if there are none.
func MustLoadArenas(pixelsPerMeter float64) map[string]*leveldata.ArenaData {
	arenas, names, err := leveldata.LoadAllArenas(arenaFS, "arenas", pixelsPerMeter)
	if err != nil {
		panic(fmt.Sprintf("Failed to load arenas: %v", err))
	}
	if len(names) == 0 {
		panic("No arena files found in assets/arenas directory")
	}
	return arenas
}
