package plot

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/ivcurve/internal/iv/bundle"
	"github.com/banshee-data/ivcurve/internal/iv/trace"
)

// WriteEfficiencyChart renders an HTML bar chart of the efficiency of key
// for every bundle except the reference, with direct and fitted series.
func WriteEfficiencyChart(w io.Writer, bundles []*bundle.Bundle, key trace.Key) error {
	var (
		names  []string
		direct []opts.BarData
		fitted []opts.BarData
		ref    string
	)
	for _, b := range bundles {
		if b.IsReference {
			ref = b.Name
			continue
		}
		names = append(names, b.Name)
		d, f := b.Efficiencies()[key], b.FittedEfficiencies()[key]
		direct = append(direct, opts.BarData{Name: b.Name, Value: d.Value})
		fitted = append(fitted, opts.BarData{Name: b.Name, Value: f.Value})
	}
	if len(names) == 0 {
		return ErrNoBundles
	}

	subtitle := "no reference"
	if ref != "" {
		subtitle = "relative to " + ref
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Efficiency", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: key.Label(), Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Change (%)", NameLocation: "middle", NameGap: 40}),
	)
	bar.SetXAxis(names).
		AddSeries("direct", direct, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("fitted", fitted)

	page := components.NewPage()
	page.AddCharts(bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
