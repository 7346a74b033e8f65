package regions

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Attribute keys of the national land (N03) and e-Stat small-area boundary datasets.
const (
	AttrPrefName = "PREF_NAME"
	AttrCityName = "CITY_NAME"
	AttrN03City  = "N03_004"
	AttrN03Ward  = "N03_005"
	AttrN03Area  = "N03_006"
	AttrAreaName = "S_NAME"
)

// UnnamedRegion is shown for features without any usable name attribute.
const UnnamedRegion = "名称未設定"

// Municipality is the city every tier is filtered down to.
type Municipality struct {
	Name       string
	Prefecture string
}

// normalize folds width and compatibility variants so that "岡山市" typed
// with half-width or full-width characters compares equal.
func normalize(s string) string {
	return norm.NFKC.String(strings.TrimSpace(s))
}

// Keeps reports whether feature f of tier t belongs to the municipality.
//
// City and ward datasets carry the municipality in N03_004. The neighborhood
// dataset may use CITY_NAME, N03_004, or a prefecture plus a CITY_NAME that
// merely contains the municipality (e.g. "岡山市北区").
func (m Municipality) Keeps(t Tier, f Feature) bool {
	target := normalize(m.Name)
	if target == "" {
		return true
	}

	switch t {
	case TierCity, TierWard:
		return normalize(f.Properties[AttrN03City]) == target
	case TierNeighborhood:
		city := normalize(f.Properties[AttrCityName])
		if city == target || normalize(f.Properties[AttrN03City]) == target {
			return true
		}
		return m.Prefecture != "" &&
			normalize(f.Properties[AttrPrefName]) == normalize(m.Prefecture) &&
			strings.Contains(city, target)
	}
	return true
}

// wardPattern extracts the ward from a combined name such as "岡山市北区".
func (m Municipality) wardPattern() *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(m.Name) + `(.+区)`)
}

// displayName picks the label shown for a feature: the tier's own name
// attribute first, then the generic administrative attributes.
func displayName(f Feature, nameField string) string {
	for _, key := range []string{nameField, AttrN03City, AttrN03Ward, AttrCityName, AttrPrefName} {
		if key == "" {
			continue
		}
		if v := f.Prop(key); v != "" {
			return v
		}
	}
	return UnnamedRegion
}
