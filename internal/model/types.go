package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Core domain types shared by the optimizer, ledger and API layers.

// Priority is an order priority on a 1..10 scale. JSON input accepts either a
// number or one of High/Medium/Low.
type Priority float64

const (
	PriorityHigh   Priority = 9
	PriorityMedium Priority = 6
	PriorityLow    Priority = 3
)

func (p *Priority) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		// 0 means unset.
		if n != 0 && (n < 1 || n > 10) {
			return fmt.Errorf("priority %v out of range 1..10", n)
		}
		*p = Priority(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("priority must be a number or High/Medium/Low")
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		*p = PriorityHigh
	case "medium":
		*p = PriorityMedium
	case "low":
		*p = PriorityLow
	case "":
		*p = 0
	default:
		return fmt.Errorf("unknown priority %q", s)
	}
	return nil
}

type Order struct {
	ID          string    `json:"id"`
	Destination string    `json:"destination"`
	Product     string    `json:"product"`
	Quantity    float64   `json:"quantity"`
	Priority    Priority  `json:"priority"`
	DueDate     time.Time `json:"dueDate"`
	Customer    string    `json:"customer,omitempty"`
}

// UnmarshalJSON accepts date-only due dates ("2025-09-25") as well as RFC3339.
func (o *Order) UnmarshalJSON(b []byte) error {
	type alias Order
	var raw struct {
		alias
		DueDate string `json:"dueDate"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*o = Order(raw.alias)
	o.DueDate = time.Time{}
	if raw.DueDate == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw.DueDate); err == nil {
			o.DueDate = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("order %s: invalid dueDate %q", o.ID, raw.DueDate)
}

// Inventories maps plant code -> product -> available tons.
type Inventories map[string]map[string]float64

type WagonStatus string

const (
	WagonAvailable   WagonStatus = "available"
	WagonMaintenance WagonStatus = "maintenance"
	WagonUnavailable WagonStatus = "unavailable"
)

type Wagon struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Capacity float64     `json:"capacity"`
	Location string      `json:"location"`
	Status   WagonStatus `json:"status"`
}

type Route struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	DistanceKm float64 `json:"distance"`
	Cost       float64 `json:"cost"`
	Hours      float64 `json:"time"`
	Emissions  float64 `json:"emissions"`
}

// Rake is a scored rake candidate produced by one optimization run.
type Rake struct {
	ID            string   `json:"id"`
	Source        string   `json:"source"`
	Destination   string   `json:"destination"`
	Orders        []Order  `json:"orders"`
	Wagons        []Wagon  `json:"wagons"`
	RequestedTons float64  `json:"requestedTons"`
	TotalTons     float64  `json:"totalTons"`
	Priority      float64  `json:"priority"`
	EstimatedCost float64  `json:"estimatedCost"`
	EstimatedTime float64  `json:"estimatedTime"`
	Emissions     float64  `json:"emissions"`
	SLACompliance float64  `json:"slaCompliance"`
	Score         float64  `json:"score"`
	Explanation   []string `json:"explanation,omitempty"`
}

// Capacity is the summed capacity of the wagons assigned to the rake.
func (r Rake) Capacity() float64 {
	total := 0.0
	for _, w := range r.Wagons {
		total += w.Capacity
	}
	return total
}

// Weights for the multi-objective scorer. Expected to sum to 1.
type Weights struct {
	Cost        float64 `json:"cost"`
	SLA         float64 `json:"sla"`
	Utilization float64 `json:"utilization"`
	Emissions   float64 `json:"emissions"`
}

func (w Weights) Sum() float64 { return w.Cost + w.SLA + w.Utilization + w.Emissions }

// Normalize scales the weights to sum to 1. All-zero weights are returned as is.
func (w Weights) Normalize() Weights {
	s := w.Sum()
	if s <= 0 {
		return w
	}
	return Weights{Cost: w.Cost / s, SLA: w.SLA / s, Utilization: w.Utilization / s, Emissions: w.Emissions / s}
}

// Ledger event types
const (
	EventDispatch         = "DISPATCH"
	EventLoadingConfirmed = "LOADING_CONFIRMED"
)

// LedgerEntry is the caller-supplied payload of a ledger block.
type LedgerEntry struct {
	Type    string  `json:"type"`
	RakeID  string  `json:"rakeId"`
	From    string  `json:"from,omitempty"`
	To      string  `json:"to,omitempty"`
	Cargo   string  `json:"cargo,omitempty"`
	Tonnage float64 `json:"tonnage,omitempty"`
	Actor   string  `json:"actor,omitempty"`
}

// LedgerBlock is one hash-linked record. TS is unix milliseconds.
type LedgerBlock struct {
	LedgerEntry
	PrevHash string `json:"prevHash"`
	TS       int64  `json:"ts"`
	Hash     string `json:"hash"`
}

// DispatchRecord is the relational mirror of a dispatch ledger block.
type DispatchRecord struct {
	ID        string    `json:"id"`
	RakeID    string    `json:"rakeId"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Cargo     string    `json:"cargo,omitempty"`
	Tonnage   float64   `json:"tonnage,omitempty"`
	Hash      string    `json:"hash"`
	PrevHash  string    `json:"prevHash"`
	CreatedAt time.Time `json:"createdAt"`
}
