package patio

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type tableFile struct {
	Patios []Patio `yaml:"patios"`
}

// LoadTable reads a YAML document of the form:
//
//	patios:
//	  - id: 1
//	    name: Limão
//	    prefixes: [Li]
//	    map_param: limao
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pátio file %s: %w", path, err)
	}
	var f tableFile
	if err = yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pátio file %s: %w", path, err)
	}
	if len(f.Patios) == 0 {
		return nil, fmt.Errorf("pátio file %s: no pátios defined", path)
	}
	t, err := NewTable(f.Patios)
	if err != nil {
		return nil, fmt.Errorf("pátio file %s: %w", path, err)
	}
	return t, nil
}
