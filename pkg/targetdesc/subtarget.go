package targetdesc

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Generation is a hardware generation; later generations compare greater
type Generation int

const (
	GenerationUnknown Generation = 0
	SouthernIslands   Generation = 6
	SeaIslands        Generation = 7
	VolcanicIslands   Generation = 8
	GFX9              Generation = 9
)

var generationNames = map[string]Generation{
	"southern_islands": SouthernIslands,
	"sea_islands":      SeaIslands,
	"volcanic_islands": VolcanicIslands,
	"gfx9":             GFX9,
}

func (g Generation) String() string {
	for name, v := range generationNames {
		if v == g {
			return name
		}
	}
	return strconv.Itoa(int(g))
}

// ParseGeneration accepts a generation name or its number
func ParseGeneration(s string) (Generation, error) {
	if g, ok := generationNames[strings.ToLower(s)]; ok {
		return g, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return GenerationUnknown, fmt.Errorf("unknown generation %q", s)
	}
	return Generation(n), nil
}

// Subtarget is the hardware variant a catalog is built for
type Subtarget struct {
	Generation Generation
	Features   []string
}

// Has reports whether feature is enabled
func (st Subtarget) Has(feature string) bool {
	return slices.Contains(st.Features, feature)
}

// AtLeast reports whether the subtarget is generation g or later
func (st Subtarget) AtLeast(g Generation) bool {
	return st.Generation >= g
}

func (st Subtarget) String() string {
	if len(st.Features) == 0 {
		return st.Generation.String()
	}
	return st.Generation.String() + "+" + strings.Join(st.Features, "+")
}

// Holds evaluates c against st. A nil condition always holds.
func (c *Condition) Holds(st Subtarget) (bool, error) {
	if c == nil {
		return true, nil
	}
	if c.Feature != "" && !st.Has(c.Feature) {
		return false, nil
	}
	if c.NotFeature != "" && st.Has(c.NotFeature) {
		return false, nil
	}
	if c.GenerationAtLeast != "" {
		g, err := ParseGeneration(c.GenerationAtLeast)
		if err != nil {
			return false, err
		}
		if !st.AtLeast(g) {
			return false, nil
		}
	}
	if c.GenerationBelow != "" {
		g, err := ParseGeneration(c.GenerationBelow)
		if err != nil {
			return false, err
		}
		if st.AtLeast(g) {
			return false, nil
		}
	}
	return true, nil
}
