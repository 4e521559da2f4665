package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qsteel/internal/model"
	"qsteel/internal/opt"
)

// planInput is the file format accepted by optimize: the same body the API
// takes on /optimize/rake-formation and /optimize/simulate-scenario.
type planInput struct {
	Orders      []model.Order     `json:"orders"`
	Inventories model.Inventories `json:"inventories"`
	Options     opt.Options       `json:"options"`
	Disruptions *opt.Disruptions  `json:"disruptions"`
}

func readPlanInput(path string) (planInput, error) {
	var in planInput
	if path != "" {
		var r io.Reader = os.Stdin
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return in, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&in); err != nil {
			return in, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if in.Orders == nil {
		in.Orders = opt.SampleOrders()
	}
	if in.Inventories == nil {
		in.Inventories = opt.SampleInventories()
	}
	return in, nil
}

func newOptimizeCmd(a *app) *cobra.Command {
	var (
		input    string
		simulate bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Form rakes offline from an orders file (sample data when omitted)",
		Example: `  qsteel optimize
  qsteel optimize --input orders.json --json
  qsteel optimize --input orders.json --simulate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readPlanInput(input)
			if err != nil {
				return err
			}
			cons := a.cfg.PlannerConstraints()
			planner := opt.NewPlanner(cons, opt.DefaultNetwork(), opt.GenerateFleet(a.cfg.Fleet.Seed, a.cfg.Fleet.Size, cons.Plants()))
			out := cmd.OutOrStdout()

			if simulate {
				d := opt.SampleDisruptions()
				if in.Disruptions != nil {
					d = *in.Disruptions
				}
				sc, err := planner.Simulate(cmd.Context(), in.Orders, in.Inventories, d, in.Options)
				if err != nil {
					return err
				}
				a.logger.Debug("scenario simulated", zap.Int("baseline_rakes", len(sc.Baseline.Primary)), zap.Int("disrupted_rakes", len(sc.Disrupted.Primary)))
				if asJSON {
					return writeIndented(out, sc)
				}
				printScenario(out, sc)
				return nil
			}

			res, err := planner.Optimize(cmd.Context(), in.Orders, in.Inventories, in.Options)
			if err != nil {
				return err
			}
			a.logger.Debug("optimization complete", zap.Int("rakes", len(res.Primary)), zap.Int64("elapsed_us", res.Metrics.ElapsedUs))
			if asJSON {
				return writeIndented(out, res)
			}
			printResult(out, res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON file with orders, inventories, options and disruptions (- for stdin)")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "run a baseline vs disrupted scenario instead of a single plan")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON result")
	return cmd
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

func rakeTable(rakes []model.Rake) string {
	rows := make([][]string, 0, len(rakes))
	for _, r := range rakes {
		ids := make([]string, 0, len(r.Orders))
		for _, o := range r.Orders {
			ids = append(ids, o.ID)
		}
		rows = append(rows, []string{
			r.ID, r.Source + " -> " + r.Destination, strings.Join(ids, ","), strconv.Itoa(len(r.Wagons)),
			num(r.TotalTons), num(r.EstimatedCost), num(r.SLACompliance * 100), num(r.Score),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RAKE", "ROUTE", "ORDERS", "WAGONS", "TONS", "COST", "SLA %", "SCORE").
		Rows(rows...).
		Render()
}

func printResult(w io.Writer, res opt.Result) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "Primary plan: %d rakes\n", len(res.Primary))
	if len(res.Primary) > 0 {
		fmt.Fprintln(w, rakeTable(res.Primary))
	}
	s := res.Summary
	fmt.Fprintf(w, "Total cost %s  tons %s  avg utilization %s%%  avg SLA %s%%  carbon %.4f t/t\n",
		num(s.TotalCost), num(s.TotalTons), num(s.AvgUtilization), num(s.AvgSLACompliance), res.KPIs.CarbonIntensity)

	for _, u := range res.Unallocated {
		color.New(color.FgYellow).Fprintf(w, "unallocated %s (%s t, orders %s): %s\n", u.Destination, num(u.Tons), strings.Join(u.OrderIDs, ","), u.Reason)
	}
	for _, v := range res.Constraints {
		color.New(color.FgRed).Fprintf(w, "violation: %s\n", v)
	}
	if len(res.Constraints) == 0 {
		color.New(color.FgGreen).Fprintln(w, "all constraints satisfied")
	}
	for _, alt := range res.Alternatives {
		fmt.Fprintf(w, "alternative %q: %d rakes, %s\n", alt.Name, len(alt.Rakes), alt.Description)
	}
}

func printScenario(w io.Writer, sc opt.Scenario) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, "Baseline")
	printResult(w, sc.Baseline)
	fmt.Fprintln(w)
	bold.Fprintln(w, "Disrupted")
	printResult(w, sc.Disrupted)
	fmt.Fprintln(w)

	im := sc.Impact
	c := color.New(color.FgGreen)
	if im.CostDelta > 0 {
		c = color.New(color.FgRed)
	}
	c.Fprintf(w, "Impact: cost %+.1f (%+.1f%%)  rakes %+d  SLA %+.3f  utilization %+.3f\n",
		im.CostDelta, im.CostImpactPct, im.RakeCountDelta, im.SLADelta, im.UtilizationDelta)
}
