package opt

import "qsteel/internal/model"

// Network is the rail route table between loading points.
type Network struct {
	routes []model.Route
	index  map[[2]string]model.Route
}

// NewNetwork indexes routes by (from, to). Later duplicates win.
func NewNetwork(routes []model.Route) Network {
	n := Network{routes: append([]model.Route(nil), routes...), index: make(map[[2]string]model.Route, len(routes))}
	for _, r := range routes {
		n.index[[2]string{r.From, r.To}] = r
	}
	return n
}

// DefaultNetwork is the fixed inter-plant route table.
func DefaultNetwork() Network {
	return NewNetwork([]model.Route{
		{From: "BKSC", To: "DGR", DistanceKm: 300, Cost: 2500, Hours: 8, Emissions: 0.8},
		{From: "BKSC", To: "ROU", DistanceKm: 450, Cost: 3200, Hours: 12, Emissions: 1.2},
		{From: "BKSC", To: "BPHB", DistanceKm: 600, Cost: 4100, Hours: 16, Emissions: 1.6},
		{From: "DGR", To: "BKSC", DistanceKm: 300, Cost: 2500, Hours: 8, Emissions: 0.8},
		{From: "DGR", To: "ROU", DistanceKm: 350, Cost: 2800, Hours: 10, Emissions: 1.0},
		{From: "DGR", To: "BPHB", DistanceKm: 500, Cost: 3600, Hours: 14, Emissions: 1.4},
		{From: "ROU", To: "BKSC", DistanceKm: 450, Cost: 3200, Hours: 12, Emissions: 1.2},
		{From: "ROU", To: "DGR", DistanceKm: 350, Cost: 2800, Hours: 10, Emissions: 1.0},
		{From: "ROU", To: "BPHB", DistanceKm: 280, Cost: 2200, Hours: 7, Emissions: 0.7},
		{From: "BPHB", To: "BKSC", DistanceKm: 600, Cost: 4100, Hours: 16, Emissions: 1.6},
		{From: "BPHB", To: "DGR", DistanceKm: 500, Cost: 3600, Hours: 14, Emissions: 1.4},
		{From: "BPHB", To: "ROU", DistanceKm: 280, Cost: 2200, Hours: 7, Emissions: 0.7},
	})
}

func (n Network) Lookup(from, to string) (model.Route, bool) {
	r, ok := n.index[[2]string{from, to}]
	return r, ok
}

// Routes returns a copy of the route table.
func (n Network) Routes() []model.Route {
	return append([]model.Route(nil), n.routes...)
}
