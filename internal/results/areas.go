package results

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadAreas reads per-sensor floor areas keyed by grid full id and returns
// them in grid order. A missing file, or a file that lacks any of the
// grids, yields nil so callers fall back to sensor counts for the whole run.
func LoadAreas(path string, grids []Grid) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var byID map[string][]float64
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return areasFor(byID, grids)
}

func areasFor(byID map[string][]float64, grids []Grid) ([][]float64, error) {
	out := make([][]float64, len(grids))
	for i, g := range grids {
		a, ok := byID[g.FullID]
		if !ok {
			return nil, nil
		}
		if len(a) != g.Count {
			return nil, fmt.Errorf("%w: grid %s has %d areas for %d sensors", ErrShape, g.FullID, len(a), g.Count)
		}
		out[i] = a
	}
	return out, nil
}
