package api

import (
	"errors"
	"fmt"
	"strings"

	"qsteel/internal/model"
	"qsteel/internal/opt"
)

func validateOrders(orders []model.Order) error {
	seen := make(map[string]struct{}, len(orders))
	for i, o := range orders {
		if strings.TrimSpace(o.ID) == "" {
			return fmt.Errorf("orders[%d]: id required", i)
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("orders[%d]: duplicate id %s", i, o.ID)
		}
		seen[o.ID] = struct{}{}
		if strings.TrimSpace(o.Destination) == "" {
			return fmt.Errorf("order %s: destination required", o.ID)
		}
		if strings.TrimSpace(o.Product) == "" {
			return fmt.Errorf("order %s: product required", o.ID)
		}
		if o.Quantity <= 0 {
			return fmt.Errorf("order %s: quantity must be > 0", o.ID)
		}
	}
	return nil
}

func validateInventories(inv model.Inventories) error {
	for plant, stock := range inv {
		for product, tons := range stock {
			if tons < 0 {
				return fmt.Errorf("inventories[%s][%s] must be >= 0", plant, product)
			}
		}
	}
	return nil
}

// validateOptions checks weights and normalizes caller-supplied weights so
// they sum to 1.
func validateOptions(o *opt.Options) error {
	ws := []float64{o.CostWeight, o.SLAWeight, o.UtilizationWeight, o.EmissionsWeight}
	given := false
	for _, w := range ws {
		if w < 0 {
			return errors.New("weights must be >= 0")
		}
		if w > 0 {
			given = true
		}
	}
	if o.MaxRakes < 0 {
		return errors.New("maxRakes must be >= 0")
	}
	if given {
		n := o.Weights().Normalize()
		o.CostWeight, o.SLAWeight, o.UtilizationWeight, o.EmissionsWeight = n.Cost, n.SLA, n.Utilization, n.Emissions
	}
	return nil
}

func validateOptimizeRequest(req *optimizeRequest) error {
	if err := validateOrders(req.Orders); err != nil {
		return err
	}
	if err := validateInventories(req.Inventories); err != nil {
		return err
	}
	return validateOptions(&req.Options)
}

func validateScenarioRequest(req *scenarioRequest) error {
	if err := validateOrders(req.Orders); err != nil {
		return err
	}
	if err := validateInventories(req.Inventories); err != nil {
		return err
	}
	if req.Disruptions != nil {
		if err := req.Disruptions.Validate(); err != nil {
			return err
		}
	}
	return validateOptions(&req.Options)
}

func validateDispatch(req *dispatchRequest) error {
	if strings.TrimSpace(req.RakeID) == "" {
		return errors.New("rakeId required")
	}
	if req.Tonnage < 0 {
		return errors.New("tonnage must be >= 0")
	}
	return nil
}
