package opt

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"golang.org/x/sync/errgroup"

	"qsteel/internal/model"
)

var ErrInvalidDisruption = errors.New("invalid disruption")

// Disruptions describe a what-if change applied on top of the current inputs.
type Disruptions struct {
	// DemandChange scales every order quantity by 1+DemandChange.
	DemandChange float64 `json:"demandChange,omitempty"`
	// SidingCapacity multiplies the availability of the named sidings.
	SidingCapacity map[string]float64 `json:"sidingCapacity,omitempty"`
	// WagonAvailability is the probability each wagon keeps its status.
	WagonAvailability *float64 `json:"wagonAvailability,omitempty"`
	Seed              int64    `json:"seed,omitempty"`
}

func (d Disruptions) Validate() error {
	if d.DemandChange <= -1 {
		return fmt.Errorf("%w: demandChange must be greater than -1", ErrInvalidDisruption)
	}
	if d.WagonAvailability != nil && (*d.WagonAvailability < 0 || *d.WagonAvailability > 1) {
		return fmt.Errorf("%w: wagonAvailability must be within 0..1", ErrInvalidDisruption)
	}
	for k, v := range d.SidingCapacity {
		if v < 0 {
			return fmt.Errorf("%w: sidingCapacity[%s] is negative", ErrInvalidDisruption, k)
		}
	}
	return nil
}

// Impact holds disrupted minus baseline deltas.
type Impact struct {
	CostDelta        float64 `json:"costDelta"`
	CostImpactPct    float64 `json:"costImpact"`
	SLADelta         float64 `json:"slaImpact"`
	UtilizationDelta float64 `json:"utilizationImpact"`
	RakeCountDelta   int     `json:"rakeCountImpact"`
}

type Scenario struct {
	Baseline    Result      `json:"baseline"`
	Disrupted   Result      `json:"disrupted"`
	Disruptions Disruptions `json:"disruptions"`
	Impact      Impact      `json:"impact"`
}

// Simulate runs the baseline and the disrupted plan side by side. The
// disrupted run works on its own copy of constraints and fleet.
func (p *Planner) Simulate(ctx context.Context, orders []model.Order, inv model.Inventories, d Disruptions, opts Options) (Scenario, error) {
	if err := d.Validate(); err != nil {
		return Scenario{}, err
	}
	opts.Now = opts.now()

	disrupted := p.st.clone()
	disrupted.apply(d)
	changed := scaleDemand(orders, d.DemandChange)

	var sc Scenario
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := p.st.optimize(gctx, orders, inv, opts)
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
		sc.Baseline = r
		return nil
	})
	g.Go(func() error {
		r, err := disrupted.optimize(gctx, changed, inv, opts)
		if err != nil {
			return fmt.Errorf("disrupted: %w", err)
		}
		sc.Disrupted = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return Scenario{}, err
	}
	sc.Disruptions = d
	sc.Impact = CompareSummaries(sc.Baseline.Summary, sc.Disrupted.Summary)
	return sc, nil
}

// apply mutates s in place; callers pass a clone.
func (s *state) apply(d Disruptions) {
	for k, mult := range d.SidingCapacity {
		if v, ok := s.cons.Sidings[k]; ok {
			s.cons.Sidings[k] = v * mult
		}
	}
	if d.WagonAvailability != nil {
		rng := rand.New(rand.NewSource(d.Seed))
		for i := range s.fleet {
			if rng.Float64() >= *d.WagonAvailability {
				s.fleet[i].Status = model.WagonUnavailable
			}
		}
	}
}

func scaleDemand(orders []model.Order, change float64) []model.Order {
	out := slices.Clone(orders)
	if change == 0 {
		return out
	}
	for i := range out {
		out[i].Quantity *= 1 + change
	}
	return out
}

func CompareSummaries(base, dis Summary) Impact {
	im := Impact{
		CostDelta:        dis.TotalCost - base.TotalCost,
		SLADelta:         dis.AvgSLACompliance - base.AvgSLACompliance,
		UtilizationDelta: dis.AvgUtilization - base.AvgUtilization,
		RakeCountDelta:   dis.TotalRakes - base.TotalRakes,
	}
	if base.TotalCost != 0 {
		im.CostImpactPct = im.CostDelta / base.TotalCost * 100
	}
	return im
}
