package opt

import (
	"time"

	"qsteel/internal/model"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// SampleOrders is the demo order book used when a request carries none.
func SampleOrders() []model.Order {
	return []model.Order{
		{ID: "ORD001", Destination: "DGR", Product: "TMT Bars", Quantity: 800, Priority: 8, DueDate: day("2025-09-25"), Customer: "ABC Steel"},
		{ID: "ORD002", Destination: "ROU", Product: "Coils", Quantity: 600, Priority: 6, DueDate: day("2025-09-24"), Customer: "XYZ Industries"},
		{ID: "ORD003", Destination: "BPHB", Product: "H-beams", Quantity: 1200, Priority: 9, DueDate: day("2025-09-23"), Customer: "DEF Construction"},
		{ID: "ORD004", Destination: "DGR", Product: "Cement", Quantity: 400, Priority: 5, DueDate: day("2025-09-26"), Customer: "GHI Builders"},
		{ID: "ORD005", Destination: "ROU", Product: "Steel", Quantity: 900, Priority: 7, DueDate: day("2025-09-25"), Customer: "JKL Corp"},
	}
}

func SampleInventories() model.Inventories {
	return model.Inventories{
		"BKSC": {"TMT Bars": 2000, "Coils": 1500, "H-beams": 1800, "Cement": 800, "Steel": 2200},
		"DGR":  {"TMT Bars": 1200, "Coils": 900, "H-beams": 600, "Cement": 1000, "Steel": 800},
		"ROU":  {"TMT Bars": 1800, "Coils": 1200, "H-beams": 2000, "Cement": 600, "Steel": 1500},
		"BPHB": {"TMT Bars": 1000, "Coils": 800, "H-beams": 1400, "Cement": 1200, "Steel": 1100},
	}
}

// SampleDisruptions is the default what-if: 10% more demand, 80% of wagons usable.
func SampleDisruptions() Disruptions {
	avail := 0.8
	return Disruptions{DemandChange: 0.10, WagonAvailability: &avail}
}
