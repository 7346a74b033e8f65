package regions

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Feature is one boundary polygon or multipolygon with its flattened
// attributes. Features are never modified after loading.
type Feature struct {
	Geometry   orb.Geometry
	Bound      orb.Bound
	Properties map[string]string
	Name       string
}

// Prop returns the trimmed attribute value, or "" when absent.
func (f Feature) Prop(key string) string {
	return strings.TrimSpace(f.Properties[key])
}

// Region is the {city, ward, neighborhood} label of a coordinate. Any part
// may be empty.
type Region struct {
	City         string `json:"city"`
	Ward         string `json:"ward"`
	Neighborhood string `json:"neighborhood"`
}

// Label joins the non-empty parts with a single space.
func (r Region) Label() string {
	return JoinLabel(r.City, r.Ward, r.Neighborhood)
}

// IsZero reports whether no part is set.
func (r Region) IsZero() bool {
	return r.City == "" && r.Ward == "" && r.Neighborhood == ""
}

// JoinLabel joins the non-empty parts with a single space.
func JoinLabel(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// flattenProperties turns GeoJSON attribute values into strings. Nested
// objects and arrays are dropped; nulls are treated as absent.
func flattenProperties(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(x)
		}
	}
	return out
}
