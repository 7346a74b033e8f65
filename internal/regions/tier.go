package regions

import "fmt"

// Tier is one of the three nested boundary granularities.
type Tier int

const (
	TierCity Tier = iota
	TierWard
	TierNeighborhood
)

// AllTiers lists the tiers from coarsest to finest.
var AllTiers = []Tier{TierCity, TierWard, TierNeighborhood}

func (t Tier) String() string {
	switch t {
	case TierCity:
		return "city"
	case TierWard:
		return "ward"
	case TierNeighborhood:
		return "neighborhood"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier accepts the names produced by String.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "city":
		return TierCity, nil
	case "ward":
		return TierWard, nil
	case "neighborhood", "chome":
		return TierNeighborhood, nil
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
