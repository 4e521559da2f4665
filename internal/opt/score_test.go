package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsteel/internal/model"
)

func TestScoreFormula(t *testing.T) {
	r := model.Rake{
		EstimatedCost: 2500,
		SLACompliance: 0.5,
		TotalTons:     540,
		Emissions:     1,
		Wagons:        wagons("A", "BKSC", "BOXN", 10, 60),
	}
	// cost 50, sla 50, util 90, emissions 50
	got := Score(r, model.Weights{Cost: 0.4, SLA: 0.3, Utilization: 0.2, Emissions: 0.1})
	assert.InDelta(t, 50*0.4+50*0.3+90*0.2+50*0.1, got, 1e-9)
}

func TestScoreFloorsAtZero(t *testing.T) {
	r := model.Rake{EstimatedCost: 9000, Emissions: 5}
	assert.Equal(t, 0.0, Score(r, model.Weights{Cost: 0.5, Emissions: 0.5}))
}

func TestScoreIsPure(t *testing.T) {
	r := model.Rake{EstimatedCost: 4321, SLACompliance: 0.75, TotalTons: 777, Emissions: 0.66, Wagons: wagons("A", "BKSC", "BCN", 15, 55)}
	w := model.Weights{Cost: 0.25, SLA: 0.25, Utilization: 0.25, Emissions: 0.25}
	first := Score(r, w)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, Score(r, w))
	}
}

func TestRankOrdersByScoreThenID(t *testing.T) {
	rakes := []model.Rake{
		{ID: "RK002", EstimatedCost: 3000},
		{ID: "RK001", EstimatedCost: 3000},
		{ID: "RK003", EstimatedCost: 1000},
	}
	out := rank(rakes, model.Weights{Cost: 1})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"RK003", "RK001", "RK002"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, 0.0, rakes[0].Score, "input must not be rescored")
}

func TestAlternativesRerankOnly(t *testing.T) {
	primary := []model.Rake{
		{ID: "RK001", EstimatedCost: 2000, SLACompliance: 0.2, Emissions: 1.6, TotalTons: 600, Wagons: wagons("A", "BKSC", "BOXN", 10, 60)},
		{ID: "RK002", EstimatedCost: 4500, SLACompliance: 1, Emissions: 0.2, TotalTons: 600, Wagons: wagons("B", "BKSC", "BOXN", 10, 60)},
	}
	alts := Alternatives(primary)
	require.Len(t, alts, 3)
	assert.Equal(t, "Cost Optimized", alts[0].Name)
	assert.Equal(t, "SLA Focused", alts[1].Name)
	assert.Equal(t, "Eco Optimized", alts[2].Name)

	assert.Equal(t, "RK001", alts[0].Rakes[0].ID)
	assert.Equal(t, "RK002", alts[1].Rakes[0].ID)
	assert.Equal(t, "RK002", alts[2].Rakes[0].ID)
	for _, a := range alts {
		assert.NotEmpty(t, a.Description)
		assert.NotEmpty(t, a.Tradeoffs)
		require.Len(t, a.Rakes, 2)
		ids := map[string]bool{a.Rakes[0].ID: true, a.Rakes[1].ID: true}
		assert.Equal(t, map[string]bool{"RK001": true, "RK002": true}, ids)
		for _, r := range a.Rakes {
			assert.Len(t, r.Wagons, 10)
		}
	}
}

func TestExplain(t *testing.T) {
	r := model.Rake{
		Source:        "BKSC",
		TotalTons:     800,
		Priority:      8.5,
		SLACompliance: 0.9,
		Wagons:        append(wagons("A", "BKSC", "BOXN", 3, 60), wagons("B", "BKSC", "BCN", 3, 55)...),
	}
	got := Explain(r)
	assert.Equal(t, []string{
		"Source BKSC selected for optimal inventory availability and lowest transport cost",
		"6 wagons assigned (BOXN, BCN) for 800T capacity",
		"High priority orders (avg: 8.5) grouped for expedited dispatch",
		"Route optimized for 90% SLA compliance",
	}, got)

	r.Priority, r.SLACompliance = 5, 0.5
	assert.Len(t, Explain(r), 2)
}
