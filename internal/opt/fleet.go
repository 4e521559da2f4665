package opt

import (
	"fmt"
	"math/rand"

	"qsteel/internal/model"
)

var (
	wagonTypes      = []string{"BOXN", "BCN", "BFR", "BOBR", "BRN"}
	wagonCapacities = map[string]float64{"BOXN": 60, "BCN": 55, "BFR": 65, "BOBR": 58, "BRN": 62}
)

// GenerateFleet builds a deterministic wagon fleet spread across plants.
// Roughly one wagon in five is in maintenance.
func GenerateFleet(seed int64, size int, plants []string) []model.Wagon {
	if size <= 0 || len(plants) == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]model.Wagon, size)
	for i := range out {
		typ := wagonTypes[rng.Intn(len(wagonTypes))]
		status := model.WagonAvailable
		if rng.Float64() > 0.8 {
			status = model.WagonMaintenance
		}
		out[i] = model.Wagon{
			ID:       fmt.Sprintf("W%03d", i+1),
			Type:     typ,
			Capacity: wagonCapacities[typ],
			Location: plants[rng.Intn(len(plants))],
			Status:   status,
		}
	}
	return out
}

// FleetStats summarizes a fleet for the constraints endpoint.
type FleetStats struct {
	Total     int            `json:"totalWagons"`
	Available int            `json:"availableWagons"`
	ByType    map[string]int `json:"wagonsByType"`
}

func Stats(fleet []model.Wagon) FleetStats {
	st := FleetStats{Total: len(fleet), ByType: map[string]int{}}
	for _, w := range fleet {
		if w.Status == model.WagonAvailable {
			st.Available++
		}
		st.ByType[w.Type]++
	}
	return st
}
