// Package opt implements the rake formation optimizer: candidate generation,
// multi-objective scoring, alternative plans and scenario simulation.
package opt

import (
	"context"
	"slices"
	"time"

	"qsteel/internal/model"
)

// DefaultWeights are applied to any weight the caller leaves at zero.
var DefaultWeights = model.Weights{Cost: 0.4, SLA: 0.3, Utilization: 0.2, Emissions: 0.1}

const DefaultMaxRakes = 10

// Options tune a single optimization run.
type Options struct {
	CostWeight        float64 `json:"costWeight,omitempty"`
	SLAWeight         float64 `json:"slaWeight,omitempty"`
	UtilizationWeight float64 `json:"utilizationWeight,omitempty"`
	EmissionsWeight   float64 `json:"emissionsWeight,omitempty"`
	MaxRakes          int     `json:"maxRakes,omitempty"`

	// Now is the evaluation instant for SLA compliance. Zero means wall clock.
	Now time.Time `json:"-"`
}

// Weights resolves the scorer weights, defaulting unset fields.
func (o Options) Weights() model.Weights {
	w := model.Weights{Cost: o.CostWeight, SLA: o.SLAWeight, Utilization: o.UtilizationWeight, Emissions: o.EmissionsWeight}
	if w.Cost == 0 {
		w.Cost = DefaultWeights.Cost
	}
	if w.SLA == 0 {
		w.SLA = DefaultWeights.SLA
	}
	if w.Utilization == 0 {
		w.Utilization = DefaultWeights.Utilization
	}
	if w.Emissions == 0 {
		w.Emissions = DefaultWeights.Emissions
	}
	return w
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Result is the full outcome of one optimization run.
type Result struct {
	Primary      []model.Rake  `json:"primary"`
	Alternatives []Alternative `json:"alternatives"`
	Summary      Summary       `json:"summary"`
	Constraints  []string      `json:"constraints"`
	KPIs         KPIs          `json:"kpis"`
	Unallocated  []Unallocated `json:"unallocated"`
	Weights      model.Weights `json:"weights"`
	Metrics      RunMetrics    `json:"metrics"`
}

// RunMetrics counts what happened during a run.
type RunMetrics struct {
	Groups      int   `json:"groups"`
	Candidates  int   `json:"candidates"`
	Selected    int   `json:"selected"`
	Unallocated int   `json:"unallocated"`
	WagonsUsed  int   `json:"wagonsUsed"`
	ElapsedUs   int64 `json:"elapsedUs"`
}

// state is everything a run reads. Runs never write to it.
type state struct {
	cons  Constraints
	net   Network
	fleet []model.Wagon
}

func (s state) clone() state {
	return state{cons: s.cons.Clone(), net: s.net, fleet: slices.Clone(s.fleet)}
}

// Planner runs optimizations against a fixed rule set, network and fleet.
// It is safe for concurrent use.
type Planner struct {
	st state
}

func NewPlanner(c Constraints, n Network, fleet []model.Wagon) *Planner {
	return &Planner{st: state{cons: c.Clone(), net: n, fleet: slices.Clone(fleet)}}
}

func (p *Planner) Constraints() Constraints { return p.st.cons.Clone() }
func (p *Planner) Network() Network         { return p.st.net }
func (p *Planner) Fleet() []model.Wagon     { return slices.Clone(p.st.fleet) }

// Optimize groups orders into scored rakes and ranks them.
func (p *Planner) Optimize(ctx context.Context, orders []model.Order, inv model.Inventories, opts Options) (Result, error) {
	return p.st.optimize(ctx, orders, inv, opts)
}

func (s state) optimize(ctx context.Context, orders []model.Order, inv model.Inventories, opts Options) (Result, error) {
	start := time.Now()
	weights := opts.Weights()
	maxRakes := opts.MaxRakes
	if maxRakes <= 0 {
		maxRakes = DefaultMaxRakes
	}

	cands, unalloc, groups, err := s.generateCandidates(ctx, orders, inv, opts.now())
	if err != nil {
		return Result{}, err
	}
	for i := range cands {
		cands[i].Explanation = Explain(cands[i])
	}
	primary := rank(cands, weights)
	if len(primary) > maxRakes {
		primary = primary[:maxRakes]
	}

	wagonsUsed := 0
	for _, r := range primary {
		wagonsUsed += len(r.Wagons)
	}
	return Result{
		Primary:      primary,
		Alternatives: Alternatives(primary),
		Summary:      Summarize(primary),
		Constraints:  s.validate(primary),
		KPIs:         ComputeKPIs(primary),
		Unallocated:  unalloc,
		Weights:      weights,
		Metrics: RunMetrics{
			Groups:      groups,
			Candidates:  len(cands),
			Selected:    len(primary),
			Unallocated: len(unalloc),
			WagonsUsed:  wagonsUsed,
			ElapsedUs:   time.Since(start).Microseconds(),
		},
	}, nil
}
