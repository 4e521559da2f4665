package opt

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	roadCostFactor     = 1.3
	railEmissionFactor = 0.8
	roadEmissionFactor = 2.1
	highDemandTons     = 1000
)

type Recommendation struct {
	Type              string  `json:"type"`
	Product           string  `json:"product"`
	CurrentDemand     float64 `json:"currentDemand"`
	SuggestedIncrease float64 `json:"suggestedIncrease"`
	Plant             string  `json:"plant"`
	Reason            string  `json:"reason"`
	CostImpact        float64 `json:"costImpact"`
	SLAImpact         string  `json:"slaImpact"`
}

type Mode struct {
	Percentage float64 `json:"percentage"`
	Cost       float64 `json:"cost"`
	Emissions  float64 `json:"emissions"`
}

type Alignment struct {
	Recommendations []Recommendation `json:"recommendations"`
	ModalSplit      map[string]Mode  `json:"modalSplit"`
	CarbonSavings   float64          `json:"carbonSavings"`
	CostComparison  struct {
		Rail    float64 `json:"rail"`
		Road    float64 `json:"road"`
		Savings float64 `json:"savings"`
	} `json:"costComparison"`
}

// ProductionAlignment compares rail demand per product against production and
// the rail/road trade-off for a finished run.
func ProductionAlignment(res Result) Alignment {
	demand := map[string]float64{}
	plants := map[string]map[string]float64{}
	for _, r := range res.Primary {
		for _, o := range r.Orders {
			demand[o.Product] += o.Quantity
			if plants[o.Product] == nil {
				plants[o.Product] = map[string]float64{}
			}
			plants[o.Product][r.Source] += o.Quantity
		}
	}
	products := make([]string, 0, len(demand))
	for p := range demand {
		products = append(products, p)
	}
	sort.Strings(products)

	a := Alignment{Recommendations: []Recommendation{}}
	for _, p := range products {
		d := demand[p]
		if d <= highDemandTons {
			continue
		}
		a.Recommendations = append(a.Recommendations, Recommendation{
			Type:              "increase_production",
			Product:           p,
			CurrentDemand:     d,
			SuggestedIncrease: math.Ceil(d * 0.1),
			Plant:             topPlant(plants[p]),
			Reason:            fmt.Sprintf("High rail demand for %s (%gT). Increase production to optimize rail dispatch.", p, d),
			CostImpact:        d * 2.5,
			SLAImpact:         "+15%",
		})
	}

	rail := res.Summary.TotalCost
	road := rail * roadCostFactor
	a.ModalSplit = map[string]Mode{
		"rail": {Percentage: 75, Cost: rail, Emissions: railEmissionFactor},
		"road": {Percentage: 25, Cost: road * 0.25, Emissions: roadEmissionFactor},
	}
	a.CarbonSavings = (roadEmissionFactor - railEmissionFactor) * res.Summary.TotalTons
	a.CostComparison.Rail = rail
	a.CostComparison.Road = road
	a.CostComparison.Savings = road - rail
	return a
}

// topPlant is the source shipping the most of a product, first by code on ties.
func topPlant(bySource map[string]float64) string {
	best, bestTons := "", -1.0
	keys := make([]string, 0, len(bySource))
	for k := range bySource {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if bySource[k] > bestTons {
			best, bestTons = k, bySource[k]
		}
	}
	return best
}

const (
	SLACompliant = "COMPLIANT"
	SLAAtRisk    = "AT_RISK"
)

// DispatchRow is one line of the daily dispatch plan.
type DispatchRow struct {
	RakeID        string  `json:"rake_id"`
	Cargo         string  `json:"cargo"`
	LoadingPoint  string  `json:"loading_point"`
	Destination   string  `json:"destinations"`
	Wagons        int     `json:"wagons"`
	Tonnage       float64 `json:"tonnage"`
	EstimatedCost float64 `json:"estimated_cost"`
	EstimatedTime float64 `json:"estimated_time"`
	SLAFlag       string  `json:"sla_flag"`
	Priority      float64 `json:"priority"`
	Emissions     float64 `json:"emissions"`
}

func DispatchPlan(res Result) []DispatchRow {
	rows := make([]DispatchRow, 0, len(res.Primary))
	for _, r := range res.Primary {
		cargo := make([]string, 0, len(r.Orders))
		for _, o := range r.Orders {
			cargo = append(cargo, o.Product)
		}
		flag := SLAAtRisk
		if r.SLACompliance > 0.8 {
			flag = SLACompliant
		}
		rows = append(rows, DispatchRow{
			RakeID:        r.ID,
			Cargo:         strings.Join(cargo, ", "),
			LoadingPoint:  r.Source,
			Destination:   r.Destination,
			Wagons:        len(r.Wagons),
			Tonnage:       r.TotalTons,
			EstimatedCost: r.EstimatedCost,
			EstimatedTime: r.EstimatedTime,
			SLAFlag:       flag,
			Priority:      r.Priority,
			Emissions:     r.Emissions,
		})
	}
	return rows
}
