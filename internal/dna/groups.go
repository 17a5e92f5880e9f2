package dna

import (
	"sort"
	"strings"
)

// Groups maps a related-group name to the category keywords it contains.
type Groups map[string][]string

// DefaultGroups returns the built-in related category groups.
func DefaultGroups() Groups {
	return Groups{
		"outdoor_structures":  {"deck", "fence", "pergola", "patio_cover", "gazebo", "railing"},
		"exterior_surfaces":   {"siding", "roofing", "gutters", "windows"},
		"coatings":            {"painting_interior", "painting_exterior", "staining", "sealing"},
		"flooring":            {"flooring", "tile", "hardwood", "carpet", "vinyl"},
		"outdoor_landscaping": {"landscaping", "lawn", "irrigation", "hardscaping", "tree"},
	}
}

// normalizeCategory lowercases and joins words with underscores so
// "Patio Cover" and "patio-cover" both contain "patio_cover".
func normalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(c)
}

// GroupsOf returns the sorted names of every group whose keywords occur
// in category.
func (g Groups) GroupsOf(category string) []string {
	c := normalizeCategory(category)
	if c == "" {
		return nil
	}
	var out []string
	for name, keywords := range g {
		for _, kw := range keywords {
			if strings.Contains(c, kw) {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Related reports whether two distinct categories share a group.
func (g Groups) Related(a, b string) bool {
	if normalizeCategory(a) == normalizeCategory(b) {
		return false
	}
	ga := g.GroupsOf(a)
	if len(ga) == 0 {
		return false
	}
	for _, nb := range g.GroupsOf(b) {
		for _, na := range ga {
			if na == nb {
				return true
			}
		}
	}
	return false
}
