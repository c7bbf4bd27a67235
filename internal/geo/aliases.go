package geo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Aliases maps informal city names to the name sent to the geocoding
// provider, e.g. "nyc" -> "New York". Keys match case-insensitively.
type Aliases map[string]string

// LoadAliases reads an alias table from a YAML file of the form
//
//	nyc: New York
//	sf: San Francisco
//
// A missing file is not an error; it simply means no aliases.
func LoadAliases(path string) (Aliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read aliases %s: %w", path, err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}

	aliases := make(Aliases, len(raw))
	for key, target := range raw {
		key = strings.ToLower(strings.TrimSpace(key))
		target = strings.TrimSpace(target)
		if key == "" || target == "" {
			continue
		}
		aliases[key] = target
	}
	if len(aliases) == 0 {
		return nil, nil
	}
	return aliases, nil
}

// Apply rewrites city through the alias table. Unknown names pass through
// unchanged, as does everything when no table is loaded.
func (a Aliases) Apply(city string) string {
	if len(a) == 0 {
		return city
	}
	if target, ok := a[strings.ToLower(strings.TrimSpace(city))]; ok {
		return target
	}
	return city
}
