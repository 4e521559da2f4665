package opt

import (
	"fmt"
	"math"

	"qsteel/internal/model"
)

type Summary struct {
	TotalRakes       int     `json:"totalRakes"`
	TotalTons        float64 `json:"totalTons"`
	TotalCost        float64 `json:"totalCost"`
	AvgUtilization   float64 `json:"avgUtilization"`
	AvgSLACompliance float64 `json:"avgSLACompliance"`
}

// Summarize aggregates a plan. Percentages are 0..100; an empty plan is all zeros.
func Summarize(rakes []model.Rake) Summary {
	s := Summary{TotalRakes: len(rakes)}
	if len(rakes) == 0 {
		return s
	}
	var util, sla float64
	for _, r := range rakes {
		s.TotalTons += r.TotalTons
		s.TotalCost += r.EstimatedCost
		if c := r.Capacity(); c > 0 {
			util += r.TotalTons / c
		}
		sla += r.SLACompliance
	}
	n := float64(len(rakes))
	s.AvgUtilization = util / n * 100
	s.AvgSLACompliance = sla / n * 100
	return s
}

type KPIs struct {
	CostEfficiency   float64 `json:"costEfficiency"`
	SLACompliance    float64 `json:"slaCompliance"`
	CarbonIntensity  float64 `json:"carbonIntensity"`
	WagonUtilization float64 `json:"wagonUtilization"`
}

func ComputeKPIs(rakes []model.Rake) KPIs {
	var k KPIs
	if len(rakes) == 0 {
		return k
	}
	var eff, emissions, tons, capacity float64
	onTime := 0
	for _, r := range rakes {
		if r.EstimatedCost > 0 {
			eff += r.TotalTons / r.EstimatedCost
		}
		if r.SLACompliance > 0.8 {
			onTime++
		}
		emissions += r.Emissions
		tons += r.TotalTons
		capacity += r.Capacity()
	}
	n := float64(len(rakes))
	k.CostEfficiency = eff / n
	k.SLACompliance = float64(onTime) / n * 100
	if tons > 0 {
		k.CarbonIntensity = emissions / tons
	}
	if capacity > 0 {
		k.WagonUtilization = tons / capacity * 100
	}
	return k
}

// validate reports soft constraint violations of a plan. It never rejects rakes.
func (s state) validate(rakes []model.Rake) []string {
	violations := []string{}
	perSource := map[string]int{}
	var order []string
	for _, r := range rakes {
		if r.TotalTons < s.cons.MinRakeTons {
			violations = append(violations, fmt.Sprintf("Rake %s: Below minimum size (%gT < %gT)", r.ID, r.TotalTons, s.cons.MinRakeTons))
		}
		if len(r.Wagons) < s.cons.MinWagons {
			violations = append(violations, fmt.Sprintf("Rake %s: Insufficient wagons (%d < %d)", r.ID, len(r.Wagons), s.cons.MinWagons))
		}
		if lp, ok := s.cons.LoadingPoints[r.Source]; ok && r.TotalTons > lp.MaxTons/2 {
			violations = append(violations, fmt.Sprintf("Rake %s: May exceed daily loading capacity at %s", r.ID, r.Source))
		}
		if perSource[r.Source] == 0 {
			order = append(order, r.Source)
		}
		perSource[r.Source]++
	}

	for _, src := range order {
		n := perSource[src]
		if lp, ok := s.cons.LoadingPoints[src]; ok && lp.MaxRakes > 0 && n > lp.MaxRakes {
			violations = append(violations, fmt.Sprintf("Plant %s: %d rakes exceed loading point limit of %d", src, n, lp.MaxRakes))
		}
		if !s.cons.HasSidings(src) {
			continue
		}
		if sidings := math.Floor(s.cons.SidingCapacity(src)); n > int(sidings) {
			violations = append(violations, fmt.Sprintf("Plant %s: %d rakes exceed siding availability of %d", src, n, int(sidings)))
		}
	}
	return violations
}
