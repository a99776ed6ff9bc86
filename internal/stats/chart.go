package stats

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// PlotFront renders the Pareto front projected onto two named objectives as
// an HTML scatter chart.
func PlotFront(front []FrontEntry, xObjective, yObjective, outputPath string) error {
	if len(front) == 0 {
		return fmt.Errorf("front is empty")
	}
	if _, ok := front[0].Fitness[xObjective]; !ok {
		return fmt.Errorf("unknown objective: %s", xObjective)
	}
	if _, ok := front[0].Fitness[yObjective]; !ok {
		return fmt.Errorf("unknown objective: %s", yObjective)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Pareto front: %s vs %s", xObjective, yObjective),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: xObjective,
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: yObjective,
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}))

	points := make([]opts.ScatterData, len(front))
	for i, entry := range front {
		points[i] = opts.ScatterData{
			Name:       entry.GenomeID,
			Value:      []float64{entry.Fitness[xObjective], entry.Fitness[yObjective]},
			Symbol:     "circle",
			SymbolSize: 8,
		}
	}

	scatter.AddSeries("Non-dominated designs", points).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)

	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return scatter.Render(f)
}
