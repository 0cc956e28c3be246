// Package plot draws the shared-actor ranking as an interactive HTML scatter chart.
package plot

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/JakeFAU/castcrawler/internal/credit"
)

// DefaultTitle is the chart title used when Options.Title is empty.
const DefaultTitle = "Scatterplot visualizing movies with shared actors"

// Options controls chart presentation.
type Options struct {
	Title    string
	Subtitle string
	Width    string
	Height   string
}

// Scatter renders one point per recommendation: titles on a category x axis,
// shared-actor counts on the y axis, colored by count.
func Scatter(w io.Writer, recs []credit.Recommendation, o Options) error {
	if len(recs) == 0 {
		return fmt.Errorf("nothing to plot")
	}
	title := o.Title
	if title == "" {
		title = DefaultTitle
	}
	width, height := o.Width, o.Height
	if width == "" {
		width = "1200px"
	}
	if height == "" {
		height = "600px"
	}

	titles := make([]string, 0, len(recs))
	points := make([]opts.ScatterData, 0, len(recs))
	highest := 0
	for _, r := range recs {
		titles = append(titles, r.Title)
		points = append(points, opts.ScatterData{
			Name:       r.Title,
			Value:      r.SharedActors,
			SymbolSize: 14,
		})
		if r.SharedActors > highest {
			highest = r.SharedActors
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     width,
			Height:    height,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: o.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "item",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "category",
			Name: credit.RecommendationHeader[0],
			AxisLabel: &opts.AxisLabel{
				Interval: "0",
				Rotate:   30,
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value",
			Name: credit.RecommendationHeader[1],
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(highest),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#0d0887", "#9c179e", "#ed7953", "#f0f921"},
			},
		}),
	)
	scatter.SetXAxis(titles).AddSeries(credit.RecommendationHeader[1], points)

	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(scatter)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render scatter: %w", err)
	}
	return nil
}
