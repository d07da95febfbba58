package leveldata

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lafriks/go-tiled"
)

const (
	solidsGroup  = "Solids"
	targetsGroup = "Targets"

	// DefaultPixelsPerMeter converts Tiled pixels into world meters.
	DefaultPixelsPerMeter = 32.0
	// DefaultSolidDepth makes side-view geometry effectively infinite along Z.
	DefaultSolidDepth   = 1000.0
	DefaultTargetDepth  = 1.0
	DefaultTargetHealth = 100.0
)

// LoadArena parses a TMX file. Tiled's y axis points down; the returned boxes
// use y up with the map's bottom edge at y=0, and are centered on z=0.
func LoadArena(fsys fs.FS, tmxPath string, pixelsPerMeter float64) (*ArenaData, error) {
	if pixelsPerMeter <= 0 {
		pixelsPerMeter = DefaultPixelsPerMeter
	}

	levelMap, err := tiled.LoadFile(tmxPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("load TMX %s: %w", tmxPath, err)
	}

	mapH := float64(levelMap.Height * levelMap.TileHeight)
	data := &ArenaData{
		Width:  float64(levelMap.Width*levelMap.TileWidth) / pixelsPerMeter,
		Height: mapH / pixelsPerMeter,
	}

	toBox := func(x, y, w, h, depth float64) Box {
		return Box{
			Min: mgl64.Vec3{x / pixelsPerMeter, (mapH - y - h) / pixelsPerMeter, -depth / 2},
			Max: mgl64.Vec3{(x + w) / pixelsPerMeter, (mapH - y) / pixelsPerMeter, depth / 2},
		}
	}

	for _, og := range levelMap.ObjectGroups {
		switch og.Name {
		case solidsGroup:
			for _, o := range og.Objects {
				depth := floatProp(o.Properties.GetString("depth"), DefaultSolidDepth)
				data.Solids = append(data.Solids, Solid{
					Name: o.Name,
					Box:  toBox(o.X, o.Y, o.Width, o.Height, depth),
				})
			}
		case targetsGroup:
			for _, o := range og.Objects {
				depth := floatProp(o.Properties.GetString("depth"), DefaultTargetDepth)
				data.Targets = append(data.Targets, Target{
					Name:      o.Name,
					Box:       toBox(o.X, o.Y, o.Width, o.Height, depth),
					Health:    floatProp(o.Properties.GetString("health"), DefaultTargetHealth),
					Networked: o.Properties.GetString("networked") != "false",
				})
			}
		}
	}

	// left-to-right for stable ids
	sort.SliceStable(data.Targets, func(i, j int) bool {
		return data.Targets[i].Box.Min.X() < data.Targets[j].Box.Min.X()
	})

	return data, nil
}

// LoadAllArenas discovers all .tmx files in dir within fsys and returns them
// keyed by stem name plus a sorted list of names.
func LoadAllArenas(fsys fs.FS, dir string, pixelsPerMeter float64) (map[string]*ArenaData, []string, error) {
	pattern := dir + "/*.tmx"
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("no .tmx files found in %s", dir)
	}

	arenas := make(map[string]*ArenaData, len(matches))
	names := make([]string, 0, len(matches))
	for _, path := range matches {
		data, err := LoadArena(fsys, path, pixelsPerMeter)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", path, err)
		}
		stem := strings.TrimSuffix(filepath.Base(path), ".tmx")
		arenas[stem] = data
		names = append(names, stem)
	}

	sort.Strings(names)
	return arenas, names, nil
}

func floatProp(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
