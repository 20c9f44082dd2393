package cache

import (
	"slices"
	"time"

	"github.com/mottu/patio-proxy/internal/utils"
)

const (
	Dashboard    = "dashboard"
	Relatorios   = "relatorios"
	Mapas        = "mapas"
	Entidades    = "entidades"
	Notificacoes = "notificacoes"
	Estaticos    = "estaticos"
)

// Category groups cached responses that share a revalidation period and
// invalidation tags.
type Category struct {
	Name       string
	Revalidate time.Duration
	Tags       []string
}

var defaultCategories = []Category{
	{Name: Dashboard, Revalidate: 30 * time.Second, Tags: []string{"dashboard", "ocupacao"}},
	{Name: Relatorios, Revalidate: 300 * time.Second, Tags: []string{"relatorios", "analytics"}},
	{Name: Mapas, Revalidate: 60 * time.Second, Tags: []string{"mapas", "vagas"}},
	{Name: Entidades, Revalidate: 120 * time.Second, Tags: []string{"entidades", "crud"}},
	{Name: Notificacoes, Revalidate: 10 * time.Second, Tags: []string{"notificacoes", "sistema"}},
	{Name: Estaticos, Revalidate: 3600 * time.Second, Tags: []string{"estaticos", "config"}},
}

// Categories returns the known categories keyed by name, with the
// revalidation periods (in seconds) of overrides applied. Overrides for
// unknown names create a category tagged with its own name.
func Categories(overrides map[string]int) map[string]Category {
	result := make(map[string]Category, len(defaultCategories)+len(overrides))
	for _, c := range defaultCategories {
		c.Tags = append([]string(nil), c.Tags...)
		result[c.Name] = c
	}
	for _, name := range utils.KeysOfMap(overrides) {
		c, ok := result[name]
		if !ok {
			c = Category{Name: name, Tags: []string{name}}
		}
		c.Revalidate = time.Duration(overrides[name]) * time.Second
		result[name] = c
	}
	return result
}

// Tags returns the distinct tags of every category, sorted.
func Tags(categories map[string]Category) []string {
	var tags []string
	for _, c := range categories {
		tags = append(tags, c.Tags...)
	}
	tags = utils.DedupStringSlice(tags)
	slices.Sort(tags)
	return tags
}
