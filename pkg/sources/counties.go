package sources

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed counties.yaml
var countiesYAML []byte

// County is a Norwegian county as used by the NVE county endpoints.
type County struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

type countyFile struct {
	Counties []County `yaml:"counties"`
}

var (
	countiesOnce sync.Once
	counties     []County
	countiesErr  error
)

// LoadCountiesFromBytes parses a YAML county table.
func LoadCountiesFromBytes(data []byte) ([]County, error) {
	var f countyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse county data: %w", err)
	}
	if len(f.Counties) == 0 {
		return nil, fmt.Errorf("county data: no counties defined")
	}
	seen := make(map[string]bool, len(f.Counties))
	for _, c := range f.Counties {
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("county data: entry with empty id or name")
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("county data: duplicate id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return f.Counties, nil
}

// LoadCounties returns the embedded county table in id order.
func LoadCounties() ([]County, error) {
	countiesOnce.Do(func() {
		counties, countiesErr = LoadCountiesFromBytes(countiesYAML)
	})
	if countiesErr != nil {
		return nil, countiesErr
	}
	out := make([]County, len(counties))
	copy(out, counties)
	return out, nil
}

// CountyName returns the name of a county id.
func CountyName(id string) (string, bool) {
	cs, err := LoadCounties()
	if err != nil {
		return "", false
	}
	for _, c := range cs {
		if c.ID == id {
			return c.Name, true
		}
	}
	return "", false
}
