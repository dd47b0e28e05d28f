package export

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/ivcurve/internal/iv/bundle"
)

const (
	averageSheet    = "Average"
	efficiencySheet = "Efficiency"
)

// curveColumn is where the averaged I-V curve starts on a bundle sheet.
const curveColumn = 27

// WriteXLSX writes a workbook with an Average sheet, an Efficiency sheet
// and one "Experiment N" sheet per bundle.
func WriteXLSX(w io.Writer, bundles []*bundle.Bundle, set Set) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", averageSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeAverages(f, bundles, set); err != nil {
		return err
	}
	if _, err := f.NewSheet(efficiencySheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}
	if err := writeEfficiencies(f, bundles, set); err != nil {
		return err
	}
	for i, b := range bundles {
		sheet := fmt.Sprintf("Experiment %d", i)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to add sheet: %w", err)
		}
		if err := writeBundleSheet(f, sheet, b, set); err != nil {
			return fmt.Errorf("failed to write %s: %w", b.Name, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, col, row int, cells ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func titleRow(titles []string) []interface{} {
	out := make([]interface{}, len(titles))
	for i, t := range titles {
		out[i] = t
	}
	return out
}

func bundleRow(b *bundle.Bundle, pairs []float64) []interface{} {
	row := []interface{}{b.Name, b.Meta.Created, b.Meta.FilmThickness, b.Meta.FilmArea}
	for _, v := range pairs {
		row = append(row, v)
	}
	return row
}

func writeAverages(f *excelize.File, bundles []*bundle.Bundle, set Set) error {
	titles := append(append([]string{}, bundleTitles...), withUncertainty(valueTitles)...)
	if err := setRow(f, averageSheet, 1, 1, titleRow(titles)...); err != nil {
		return err
	}
	for i, b := range bundles {
		if err := setRow(f, averageSheet, 1, i+2, bundleRow(b, pairs(values(b, set)))...); err != nil {
			return err
		}
	}
	return nil
}

func writeEfficiencies(f *excelize.File, bundles []*bundle.Bundle, set Set) error {
	titles := append(append([]string{}, bundleTitles...), withUncertainty(efficiencyTitles)...)
	if err := setRow(f, efficiencySheet, 1, 2, titleRow(titles)...); err != nil {
		return err
	}
	for i, b := range bundles {
		if b.IsReference {
			if err := setRow(f, efficiencySheet, 1, 1, "Reference:", b.Name); err != nil {
				return err
			}
		}
		if err := setRow(f, efficiencySheet, 1, i+3, bundleRow(b, pairs(efficiencies(b, set)))...); err != nil {
			return err
		}
	}
	return nil
}

func writeBundleSheet(f *excelize.File, sheet string, b *bundle.Bundle, set Set) error {
	if err := f.MergeCell(sheet, "A1", "H1"); err != nil {
		return err
	}
	title := b.Path
	if b.Kind == bundle.Group {
		title = filepath.Join(filepath.Dir(b.Path), b.Name)
	}
	if err := setRow(f, sheet, 1, 1, title); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, 2, "Film Thickness (mm)", b.Meta.FilmThickness, "Film Area (cm2)", b.Meta.FilmArea); err != nil {
		return err
	}

	titles := append([]string{"Trace", "Time (s)"}, withUncertainty(valueTitles)...)
	if err := setRow(f, sheet, 1, 3, titleRow(titles)...); err != nil {
		return err
	}
	row := 4
	for _, tr := range b.Traces() {
		if !tr.Included {
			continue
		}
		cells := []interface{}{tr.Key, tr.Time}
		for _, v := range pairs(traceValues(tr, set)) {
			cells = append(cells, v)
		}
		if err := setRow(f, sheet, 1, row, cells...); err != nil {
			return err
		}
		row++
	}
	cells := []interface{}{"Average", b.Meta.Created}
	for _, v := range pairs(values(b, set)) {
		cells = append(cells, v)
	}
	if err := setRow(f, sheet, 1, row, cells...); err != nil {
		return err
	}

	// averaged curve in AA:AB
	start, _ := excelize.CoordinatesToCellName(curveColumn, 1)
	end, _ := excelize.CoordinatesToCellName(curveColumn+1, 1)
	if err := f.MergeCell(sheet, start, end); err != nil {
		return err
	}
	if err := setRow(f, sheet, curveColumn, 1, "Average IV"); err != nil {
		return err
	}
	if err := setRow(f, sheet, curveColumn, 2, "Voltage (V)", "Current (A)"); err != nil {
		return err
	}
	for i, s := range b.Curve().Samples {
		if err := setRow(f, sheet, curveColumn, i+3, s.Voltage, s.Current); err != nil {
			return err
		}
	}
	return nil
}
