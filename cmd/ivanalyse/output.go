package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/banshee-data/ivcurve/internal/iv/bundle"
	"github.com/banshee-data/ivcurve/internal/iv/export"
	"github.com/banshee-data/ivcurve/internal/iv/plot"
	"github.com/banshee-data/ivcurve/internal/iv/trace"
)

func exportSet(fitted bool) export.Set {
	if fitted {
		return export.Fitted
	}
	return export.Direct
}

// report prints one row per bundle with the main characteristics and the
// Pmax efficiency.
func report(w io.Writer, bundles []*bundle.Bundle, fitted bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUNDLE\tKIND\tTRACES\tVOC (V)\tISC (A)\tPMAX (W)\tFF\tPMAX/REF (%)")
	for _, b := range bundles {
		v, eff := b.Values(), b.Efficiencies()
		if fitted {
			v, eff = b.FittedValues(), b.FittedEfficiencies()
		}
		name := b.Name
		if b.IsReference {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\t%s\n",
			name, b.Kind, b.IncludedCount(), len(b.Traces()),
			measurement(v[trace.Voc]), measurement(v[trace.Isc]), measurement(v[trace.Pmax]),
			measurement(v[trace.FillFactor]), measurement(eff[trace.Pmax]))
	}
	return tw.Flush()
}

func measurement(m trace.Measurement) string {
	return fmt.Sprintf("%.4g ± %.2g", m.Value, m.Uncertainty)
}

func writeOutputs(bundles []*bundle.Bundle, o *options) error {
	set := exportSet(o.fitted)
	if o.xlsx != "" {
		if err := writeFile(o.xlsx, func(w io.Writer) error { return export.WriteXLSX(w, bundles, set) }); err != nil {
			return err
		}
	}
	if o.csvPrefix != "" {
		if err := writeCSV(o.csvPrefix, bundles, set); err != nil {
			return err
		}
	}
	if o.plotDir != "" {
		if err := os.MkdirAll(o.plotDir, 0755); err != nil {
			return fmt.Errorf("failed to create plot dir: %w", err)
		}
		if _, err := plot.SaveCurves(o.plotDir, bundles); err != nil {
			return err
		}
	}
	if o.chart != "" {
		key, err := trace.ParseKey(o.chartKey)
		if err != nil {
			return err
		}
		if err := writeFile(o.chart, func(w io.Writer) error { return plot.WriteEfficiencyChart(w, bundles, key) }); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(prefix string, bundles []*bundle.Bundle, set export.Set) error {
	summary, err := os.Create(prefix + "_summary.csv")
	if err != nil {
		return fmt.Errorf("failed to create summary csv: %w", err)
	}
	defer summary.Close()
	traces, err := os.Create(prefix + "_traces.csv")
	if err != nil {
		return fmt.Errorf("failed to create traces csv: %w", err)
	}
	defer traces.Close()

	cw := export.NewCSVWriter(summary, traces, set)
	if err := cw.WriteHeaders(); err != nil {
		return err
	}
	for _, b := range bundles {
		if err := cw.WriteBundle(b); err != nil {
			return err
		}
	}
	return cw.Flush()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
