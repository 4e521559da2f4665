package opt

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"qsteel/internal/model"
)

// Score blends the four objectives into a single 0..100-ish number. It does
// not normalize w.
func Score(r model.Rake, w model.Weights) float64 {
	cost := math.Max(0, 100-r.EstimatedCost/5000*100)
	sla := r.SLACompliance * 100
	util := 0.0
	if c := r.Capacity(); c > 0 {
		util = r.TotalTons / c * 100
	}
	em := math.Max(0, 100-r.Emissions/2*100)
	return cost*w.Cost + sla*w.SLA + util*w.Utilization + em*w.Emissions
}

// rank scores a copy of rakes under w and orders it best first.
func rank(rakes []model.Rake, w model.Weights) []model.Rake {
	out := slices.Clone(rakes)
	for i := range out {
		out[i].Score = Score(out[i], w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Explain lists human readable reasons for a rake's shape.
func Explain(r model.Rake) []string {
	reasons := []string{
		fmt.Sprintf("Source %s selected for optimal inventory availability and lowest transport cost", r.Source),
	}

	var types []string
	for _, w := range r.Wagons {
		if !slices.Contains(types, w.Type) {
			types = append(types, w.Type)
		}
	}
	reasons = append(reasons, fmt.Sprintf("%d wagons assigned (%s) for %gT capacity", len(r.Wagons), strings.Join(types, ", "), r.TotalTons))

	if r.Priority > 7 {
		reasons = append(reasons, fmt.Sprintf("High priority orders (avg: %.1f) grouped for expedited dispatch", r.Priority))
	}
	if r.SLACompliance > 0.8 {
		reasons = append(reasons, fmt.Sprintf("Route optimized for %.0f%% SLA compliance", r.SLACompliance*100))
	}
	return reasons
}

// Alternative is the primary plan re-ranked under a preset weighting.
type Alternative struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Weights     model.Weights `json:"weights"`
	Rakes       []model.Rake  `json:"rakes"`
	Tradeoffs   string        `json:"tradeoffs"`
}

var presets = []Alternative{
	{
		Name:        "Cost Optimized",
		Description: "Minimize transport and operational costs",
		Weights:     model.Weights{Cost: 0.7, SLA: 0.1, Utilization: 0.1, Emissions: 0.1},
		Tradeoffs:   "Lower cost but potentially longer delivery times",
	},
	{
		Name:        "SLA Focused",
		Description: "Maximize on-time delivery performance",
		Weights:     model.Weights{Cost: 0.1, SLA: 0.7, Utilization: 0.1, Emissions: 0.1},
		Tradeoffs:   "Better delivery times but higher costs",
	},
	{
		Name:        "Eco Optimized",
		Description: "Minimize carbon emissions and environmental impact",
		Weights:     model.Weights{Cost: 0.2, SLA: 0.2, Utilization: 0.1, Emissions: 0.5},
		Tradeoffs:   "Lower emissions but may increase costs",
	},
}

// Alternatives re-ranks the primary rakes under each preset. Rake contents
// are never reallocated.
func Alternatives(primary []model.Rake) []Alternative {
	out := make([]Alternative, len(presets))
	for i, p := range presets {
		p.Rakes = rank(primary, p.Weights)
		out[i] = p
	}
	return out
}
