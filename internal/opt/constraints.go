package opt

import (
	"maps"
	"slices"
	"sort"
	"strings"
)

// LoadingPoint is the daily loading capacity of a plant.
type LoadingPoint struct {
	MaxRakes int     `json:"maxRakes" yaml:"max_rakes"`
	MaxTons  float64 `json:"maxTons" yaml:"max_tons"`
}

// Constraints are the business rules the allocator works under. A Planner
// holds its own copy; callers never share a mutable instance.
type Constraints struct {
	MinRakeTons float64 `json:"minRakeSize" yaml:"min_rake_tons"`
	MaxRakeTons float64 `json:"maxRakeSize" yaml:"max_rake_tons"`
	MinWagons   int     `json:"minWagonsPerRake" yaml:"min_wagons"`
	MaxWagons   int     `json:"maxWagonsPerRake" yaml:"max_wagons"`

	LoadingPoints map[string]LoadingPoint `json:"loadingPointCapacity" yaml:"loading_points"`
	// Sidings is keyed "<plant>-S<n>" and holds the number of rakes the siding can stage.
	Sidings       map[string]float64  `json:"sidingAvailability" yaml:"sidings"`
	Compatibility map[string][]string `json:"productWagonCompatibility" yaml:"compatibility"`

	WagonCost     float64 `json:"wagonCost" yaml:"wagon_cost"`
	DemurrageCost float64 `json:"demurrageCost" yaml:"demurrage_cost"`

	// Used when a rake's route is not in the network.
	FallbackRouteCost      float64 `json:"fallbackRouteCost" yaml:"fallback_route_cost"`
	FallbackRouteHours     float64 `json:"fallbackRouteHours" yaml:"fallback_route_hours"`
	FallbackEmissionFactor float64 `json:"fallbackEmissionFactor" yaml:"fallback_emission_factor"`
}

// DefaultConstraints returns the production rule set for the four SAIL plants.
func DefaultConstraints() Constraints {
	return Constraints{
		MinRakeTons: 500,
		MaxRakeTons: 3000,
		MinWagons:   5,
		MaxWagons:   50,
		LoadingPoints: map[string]LoadingPoint{
			"BKSC": {MaxRakes: 8, MaxTons: 15000},
			"DGR":  {MaxRakes: 6, MaxTons: 12000},
			"ROU":  {MaxRakes: 10, MaxTons: 18000},
			"BPHB": {MaxRakes: 7, MaxTons: 14000},
		},
		Sidings: map[string]float64{
			"BKSC-S1": 4, "BKSC-S2": 4,
			"DGR-S1": 3, "DGR-S2": 3,
			"ROU-S1": 5, "ROU-S2": 5,
			"BPHB-S1": 4, "BPHB-S2": 3,
		},
		Compatibility: map[string][]string{
			"TMT Bars": {"BOXN", "BCN"},
			"Coils":    {"BOXN", "BRN"},
			"H-beams":  {"BFR", "BOXN"},
			"Cement":   {"BCN", "BOXN"},
			"Coal":     {"BOBR", "BCN"},
			"Ore":      {"BOBR", "BOXN"},
			"Steel":    {"BFR", "BOXN"},
		},
		WagonCost:              200,
		DemurrageCost:          250,
		FallbackRouteCost:      3000,
		FallbackRouteHours:     12,
		FallbackEmissionFactor: 1.0,
	}
}

// Clone returns a deep copy.
func (c Constraints) Clone() Constraints {
	out := c
	out.LoadingPoints = maps.Clone(c.LoadingPoints)
	out.Sidings = maps.Clone(c.Sidings)
	out.Compatibility = make(map[string][]string, len(c.Compatibility))
	for k, v := range c.Compatibility {
		out.Compatibility[k] = slices.Clone(v)
	}
	return out
}

// Plants returns loading point codes in sorted order.
func (c Constraints) Plants() []string {
	out := make([]string, 0, len(c.LoadingPoints))
	for k := range c.LoadingPoints {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Compatible reports whether wagonType may carry product.
func (c Constraints) Compatible(product, wagonType string) bool {
	return slices.Contains(c.Compatibility[product], wagonType)
}

// SidingCapacity sums the siding availability of a plant.
func (c Constraints) SidingCapacity(plant string) float64 {
	total := 0.0
	for k, v := range c.Sidings {
		if strings.HasPrefix(k, plant+"-") {
			total += v
		}
	}
	return total
}

func (c Constraints) HasSidings(plant string) bool {
	for k := range c.Sidings {
		if strings.HasPrefix(k, plant+"-") {
			return true
		}
	}
	return false
}
