package opt

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"qsteel/internal/model"
)

// Reasons a destination group produced no rake.
const (
	ReasonNoRoute               = "no_route"
	ReasonNoCompatibleWagonType = "no_compatible_wagon_type"
	ReasonInsufficientWagons    = "insufficient_wagons"
	ReasonInsufficientStock     = "insufficient_stock"
)

// Unallocated is an order group the generator could not turn into a rake.
type Unallocated struct {
	Destination string   `json:"destination"`
	Source      string   `json:"source,omitempty"`
	OrderIDs    []string `json:"orderIds"`
	Tons        float64  `json:"tons"`
	Reason      string   `json:"reason"`
	Wagons      int      `json:"wagonsFound,omitempty"`
}

const slaHorizon = 24 * time.Hour

// groupOrders buckets orders by destination and returns the destinations sorted.
func groupOrders(orders []model.Order) (map[string][]model.Order, []string) {
	groups := make(map[string][]model.Order)
	var dests []string
	for _, o := range orders {
		if _, ok := groups[o.Destination]; !ok {
			dests = append(dests, o.Destination)
		}
		groups[o.Destination] = append(groups[o.Destination], o)
	}
	sort.Strings(dests)
	return groups, dests
}

func (s state) generateCandidates(ctx context.Context, orders []model.Order, inv model.Inventories, now time.Time) ([]model.Rake, []Unallocated, int, error) {
	groups, dests := groupOrders(orders)

	available := make([]model.Wagon, 0, len(s.fleet))
	for _, w := range s.fleet {
		if w.Status == model.WagonAvailable {
			available = append(available, w)
		}
	}
	used := make(map[string]bool)

	var (
		cands   []model.Rake
		unalloc []Unallocated
	)
	for _, dest := range dests {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, err
		}
		group := groups[dest]
		demand, prioritySum := 0.0, 0.0
		ids := make([]string, 0, len(group))
		for _, o := range group {
			demand += o.Quantity
			prioritySum += float64(o.Priority)
			ids = append(ids, o.ID)
		}
		miss := Unallocated{Destination: dest, OrderIDs: ids, Tons: demand}

		if !s.routed(dest) {
			miss.Reason = ReasonNoRoute
			unalloc = append(unalloc, miss)
			continue
		}
		if !s.anyCompatible(group) {
			miss.Reason = ReasonNoCompatibleWagonType
			unalloc = append(unalloc, miss)
			continue
		}
		src, route, ok := s.selectSource(dest, group, inv)
		if !ok {
			miss.Reason = ReasonInsufficientStock
			unalloc = append(unalloc, miss)
			continue
		}
		miss.Source = src

		requested := math.Min(math.Max(demand, s.cons.MinRakeTons), s.cons.MaxRakeTons)
		wagons := s.selectWagons(group, requested, available, used, src)
		if len(wagons) < s.cons.MinWagons {
			miss.Reason = ReasonInsufficientWagons
			miss.Wagons = len(wagons)
			unalloc = append(unalloc, miss)
			continue
		}

		rake := model.Rake{
			ID:            fmt.Sprintf("RK%03d", len(cands)+1),
			Source:        src,
			Destination:   dest,
			Orders:        group,
			Wagons:        wagons,
			RequestedTons: requested,
			Priority:      prioritySum / float64(len(group)),
		}
		rake.TotalTons = math.Min(requested, rake.Capacity())
		s.estimate(&rake, route)
		rake.SLACompliance = slaCompliance(group, now)
		cands = append(cands, rake)

		for _, w := range wagons {
			used[w.ID] = true
		}
	}
	return cands, unalloc, len(dests), nil
}

func (s state) routed(dest string) bool {
	for _, plant := range s.cons.Plants() {
		if _, ok := s.net.Lookup(plant, dest); ok {
			return true
		}
	}
	return false
}

// covers reports whether stock holds the group's full demand for every product.
func covers(stock map[string]float64, group []model.Order) bool {
	need := make(map[string]float64)
	for _, o := range group {
		if o.Quantity > 0 {
			need[o.Product] += o.Quantity
		}
	}
	for p, q := range need {
		if stock[p] < q {
			return false
		}
	}
	return true
}

// selectSource picks the plant with the best blend of stock cover, freight
// cost and distance. Plants without a route to dest or without stock for the
// whole group are skipped; on equal scores the first plant in code order wins.
func (s state) selectSource(dest string, group []model.Order, inv model.Inventories) (string, *model.Route, bool) {
	var (
		best      string
		bestRoute model.Route
		bestScore = math.Inf(-1)
		found     bool
	)
	for _, plant := range s.cons.Plants() {
		route, ok := s.net.Lookup(plant, dest)
		if !ok {
			continue
		}
		stock := inv[plant]
		if !covers(stock, group) {
			continue
		}
		avail := 0.0
		for _, o := range group {
			if o.Quantity <= 0 {
				avail += 100
				continue
			}
			avail += math.Min(stock[o.Product]/o.Quantity, 1) * 100
		}
		avail /= float64(len(group))

		score := 0.5*avail + 0.3*(5000-route.Cost)/50 + 0.2*(800-route.DistanceKm)/10
		if score > bestScore {
			best, bestRoute, bestScore, found = plant, route, score, true
		}
	}
	if !found {
		return "", nil, false
	}
	return best, &bestRoute, true
}

func (s state) anyCompatible(group []model.Order) bool {
	for _, o := range group {
		if len(s.cons.Compatibility[o.Product]) > 0 {
			return true
		}
	}
	return false
}

// selectWagons takes the largest unused compatible wagons at loc until the
// target is covered or the per-rake limit is hit.
func (s state) selectWagons(group []model.Order, target float64, available []model.Wagon, used map[string]bool, loc string) []model.Wagon {
	var pool []model.Wagon
	for _, w := range available {
		if used[w.ID] || w.Location != loc {
			continue
		}
		for _, o := range group {
			if s.cons.Compatible(o.Product, w.Type) {
				pool = append(pool, w)
				break
			}
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Capacity != pool[j].Capacity {
			return pool[i].Capacity > pool[j].Capacity
		}
		return pool[i].ID < pool[j].ID
	})

	var out []model.Wagon
	remaining := target
	for _, w := range pool {
		if remaining <= 0 || len(out) >= s.cons.MaxWagons {
			break
		}
		out = append(out, w)
		remaining -= w.Capacity
	}
	return out
}

// estimate fills cost, transit time and emissions from the route, falling
// back to the configured defaults when route is nil.
func (s state) estimate(r *model.Rake, route *model.Route) {
	cost, hours, factor := s.cons.FallbackRouteCost, s.cons.FallbackRouteHours, s.cons.FallbackEmissionFactor
	if route != nil {
		cost, hours, factor = route.Cost, route.Hours, route.Emissions
	}
	r.EstimatedCost = cost + float64(len(r.Wagons))*s.cons.WagonCost + s.cons.DemurrageCost
	r.EstimatedTime = hours
	r.Emissions = factor * r.TotalTons / 1000
}

// slaCompliance is the share of orders due more than a day after now.
func slaCompliance(group []model.Order, now time.Time) float64 {
	if len(group) == 0 {
		return 0
	}
	cutoff := now.Add(slaHorizon)
	onTime := 0
	for _, o := range group {
		if o.DueDate.After(cutoff) {
			onTime++
		}
	}
	return float64(onTime) / float64(len(group))
}
