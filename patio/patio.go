// Package patio resolves box names, ids and free text to the configured pátios.
package patio

import (
	"fmt"
	"net/url"
	"strings"
)

type Patio struct {
	ID       int      `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Prefixes []string `json:"prefixes" yaml:"prefixes"`
	MapParam string   `json:"mapParam" yaml:"map_param"`
}

// Table is an immutable, ordered set of pátios. Lookups never mutate it, so a
// *Table can be shared between goroutines without locking.
type Table struct {
	patios []Patio
}

var builtIn = []Patio{
	{ID: 1, Name: "Limão", Prefixes: []string{"Li"}, MapParam: "limao"},
	{ID: 2, Name: "Guarulhos", Prefixes: []string{"B", "GRU"}, MapParam: "guarulhos"},
}

func DefaultTable() *Table {
	t, _ := NewTable(builtIn)
	return t
}

func NewTable(patios []Patio) (*Table, error) {
	seen := make(map[int]struct{}, len(patios))
	copied := make([]Patio, 0, len(patios))
	for i, p := range patios {
		if p.ID < 1 {
			return nil, fmt.Errorf("pátio #%d: id must be positive", i)
		}
		if _, ok := seen[p.ID]; ok {
			return nil, fmt.Errorf("pátio #%d: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("pátio %d: name is required", p.ID)
		}
		if p.MapParam == "" {
			return nil, fmt.Errorf("pátio %d: map param is required", p.ID)
		}
		if len(p.Prefixes) == 0 {
			return nil, fmt.Errorf("pátio %d: at least 1 prefix required", p.ID)
		}
		for _, prefix := range p.Prefixes {
			if prefix == "" {
				return nil, fmt.Errorf("pátio %d: empty prefix", p.ID)
			}
		}
		copied = append(copied, clone(p))
	}
	return &Table{patios: copied}, nil
}

// ByBoxName returns the first pátio, in table order, having a prefix that
// starts the box name. Matching is case-sensitive.
func (t *Table) ByBoxName(name string) (Patio, bool) {
	if name == "" {
		return Patio{}, false
	}
	for _, p := range t.patios {
		for _, prefix := range p.Prefixes {
			if strings.HasPrefix(name, prefix) {
				return clone(p), true
			}
		}
	}
	return Patio{}, false
}

func (t *Table) ByID(id int) (Patio, bool) {
	for _, p := range t.patios {
		if p.ID == id {
			return clone(p), true
		}
	}
	return Patio{}, false
}

// ByName matches the query case-insensitively as a substring of the name or
// the map param.
func (t *Table) ByName(query string) (Patio, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Patio{}, false
	}
	for _, p := range t.patios {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.MapParam), q) {
			return clone(p), true
		}
	}
	return Patio{}, false
}

func (t *Table) All() []Patio {
	r := make([]Patio, 0, len(t.patios))
	for _, p := range t.patios {
		r = append(r, clone(p))
	}
	return r
}

func (t *Table) Len() int {
	return len(t.patios)
}

func MapURL(p Patio) string {
	return "/mapa-2d?mapa=" + url.QueryEscape(p.MapParam)
}

func clone(p Patio) Patio {
	p.Prefixes = append([]string(nil), p.Prefixes...)
	return p
}

// Record is the public view of a pátio, including the link to its 2D map.
type Record struct {
	Patio
	MapURL string `json:"mapUrl"`
}

func NewRecord(p Patio) Record {
	return Record{Patio: p, MapURL: MapURL(p)}
}
