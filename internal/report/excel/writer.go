// Package excel builds .xlsx exports of the metrics history, with a
// summary sheet, the full aggregate table, and the recorded anomalies.
package excel

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"device-monitor/internal/model"
)

const (
	sheetSummary = "Summary"
	sheetMetrics = "Metrics History"
	sheetAnoms   = "Anomalies"

	// Default sheet to remove
	defaultSheet = "Sheet1"

	// Colors for conditional formatting (RGB without #)
	colorWarningBg  = "FFEB9C"
	colorWarningFg  = "9C6500"
	colorCriticalBg = "FFC7CE"
	colorCriticalFg = "9C0006"
	colorHeaderBg   = "4472C4"
	colorHeaderFg   = "FFFFFF"
)

// Writer builds Excel exports of persisted aggregates and anomalies.
type Writer struct {
	timezone *time.Location
}

// NewWriter creates a Writer. A nil timezone defaults to UTC.
func NewWriter(timezone *time.Location) *Writer {
	if timezone == nil {
		timezone = time.UTC
	}
	return &Writer{timezone: timezone}
}

// Build assembles the workbook in memory. The caller streams or saves
// it and owns closing the returned file.
func (w *Writer) Build(deviceID string, history []*model.Aggregate, anomalies []*model.Anomaly) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := w.createSummarySheet(f, deviceID, history, anomalies); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := w.createMetricsSheet(f, history); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create metrics sheet: %w", err)
	}
	if err := w.createAnomaliesSheet(f, anomalies); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create anomalies sheet: %w", err)
	}

	f.DeleteSheet(defaultSheet)
	idx, _ := f.GetSheetIndex(sheetSummary)
	f.SetActiveSheet(idx)

	return f, nil
}

// createSummarySheet writes the report overview.
func (w *Writer) createSummarySheet(f *excelize.File, deviceID string, history []*model.Aggregate, anomalies []*model.Anomaly) error {
	idx, err := f.NewSheet(sheetSummary)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	headerStyle, err := w.createHeaderStyle(f)
	if err != nil {
		return err
	}
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 18},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	f.SetColWidth(sheetSummary, "A", "A", 22)
	f.SetColWidth(sheetSummary, "B", "B", 30)

	f.MergeCell(sheetSummary, "A1", "B1")
	f.SetCellValue(sheetSummary, "A1", "Device Metrics Report")
	f.SetCellStyle(sheetSummary, "A1", "B1", titleStyle)
	f.SetRowHeight(sheetSummary, 1, 30)

	var avgCPU, avgMem, peakCPU float64
	for _, agg := range history {
		avgCPU += agg.CPUPercent
		avgMem += agg.MemoryPercent
		if agg.CPUPercent > peakCPU {
			peakCPU = agg.CPUPercent
		}
	}
	if n := float64(len(history)); n > 0 {
		avgCPU /= n
		avgMem /= n
	}

	criticalCount := 0
	for _, a := range anomalies {
		if a.Severity == model.SeverityCritical {
			criticalCount++
		}
	}

	summaryData := []struct {
		label string
		value interface{}
	}{
		{"Generated", time.Now().In(w.timezone).Format("2006-01-02 15:04:05")},
		{"Device", deviceID},
		{"Data points", len(history)},
		{"Average CPU", fmt.Sprintf("%.1f%%", avgCPU)},
		{"Peak CPU", fmt.Sprintf("%.1f%%", peakCPU)},
		{"Average memory", fmt.Sprintf("%.1f%%", avgMem)},
		{"Anomalies", len(anomalies)},
		{"Critical anomalies", criticalCount},
	}

	for i, item := range summaryData {
		row := i + 3
		f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", row), item.label)
		f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", row), item.value)
		f.SetCellStyle(sheetSummary, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), headerStyle)
		f.SetRowHeight(sheetSummary, row, 22)
	}

	return nil
}

// createMetricsSheet writes one row per aggregate.
func (w *Writer) createMetricsSheet(f *excelize.File, history []*model.Aggregate) error {
	if _, err := f.NewSheet(sheetMetrics); err != nil {
		return err
	}

	headerStyle, err := w.createHeaderStyle(f)
	if err != nil {
		return err
	}
	warningStyle, err := w.createWarningStyle(f)
	if err != nil {
		return err
	}
	criticalStyle, err := w.createCriticalStyle(f)
	if err != nil {
		return err
	}

	headers := []string{
		"Timestamp", "CPU %", "Memory %", "Memory MB", "Disk %",
		"Net In Mbps", "Net Out Mbps", "Load 1m", "Swap %",
		"P95 Latency ms", "Error Rate %", "Top Process",
	}
	colWidths := []float64{20, 10, 10, 12, 10, 12, 12, 10, 10, 14, 12, 22}
	for i, width := range colWidths {
		col := columnName(i + 1)
		f.SetColWidth(sheetMetrics, col, col, width)
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", columnName(i+1))
		f.SetCellValue(sheetMetrics, cell, header)
		f.SetCellStyle(sheetMetrics, cell, cell, headerStyle)
	}
	f.SetRowHeight(sheetMetrics, 1, 25)

	f.SetPanes(sheetMetrics, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	for i, agg := range history {
		row := i + 2
		rowStr := fmt.Sprintf("%d", row)

		f.SetCellValue(sheetMetrics, "A"+rowStr, agg.CreatedAt.In(w.timezone).Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetMetrics, "B"+rowStr, round1(agg.CPUPercent))
		f.SetCellValue(sheetMetrics, "C"+rowStr, round1(agg.MemoryPercent))
		f.SetCellValue(sheetMetrics, "D"+rowStr, round1(agg.MemoryMB))
		f.SetCellValue(sheetMetrics, "E"+rowStr, round1(agg.DiskPercent))
		f.SetCellValue(sheetMetrics, "F"+rowStr, round1(agg.NetworkInMbps))
		f.SetCellValue(sheetMetrics, "G"+rowStr, round1(agg.NetworkOutMbps))
		f.SetCellValue(sheetMetrics, "H"+rowStr, round1(agg.LoadAvg1Min))
		f.SetCellValue(sheetMetrics, "I"+rowStr, round1(agg.SwapPercent))
		f.SetCellValue(sheetMetrics, "J"+rowStr, round1(agg.P95Latency))
		f.SetCellValue(sheetMetrics, "K"+rowStr, round1(agg.ErrorRate))
		f.SetCellValue(sheetMetrics, "L"+rowStr, agg.TopProcessName)

		// Flag hot CPU and memory cells.
		if agg.CPUPercent >= 90 {
			f.SetCellStyle(sheetMetrics, "B"+rowStr, "B"+rowStr, criticalStyle)
		} else if agg.CPUPercent >= 80 {
			f.SetCellStyle(sheetMetrics, "B"+rowStr, "B"+rowStr, warningStyle)
		}
		if agg.MemoryPercent >= 90 {
			f.SetCellStyle(sheetMetrics, "C"+rowStr, "C"+rowStr, criticalStyle)
		} else if agg.MemoryPercent >= 80 {
			f.SetCellStyle(sheetMetrics, "C"+rowStr, "C"+rowStr, warningStyle)
		}
	}

	return nil
}

// createAnomaliesSheet writes the recorded anomalies, most severe first.
func (w *Writer) createAnomaliesSheet(f *excelize.File, anomalies []*model.Anomaly) error {
	if _, err := f.NewSheet(sheetAnoms); err != nil {
		return err
	}

	headerStyle, err := w.createHeaderStyle(f)
	if err != nil {
		return err
	}
	warningStyle, err := w.createWarningStyle(f)
	if err != nil {
		return err
	}
	criticalStyle, err := w.createCriticalStyle(f)
	if err != nil {
		return err
	}

	headers := []string{"Detected", "Rule", "Severity", "Value", "Description", "AI Root Cause"}
	colWidths := []float64{20, 18, 12, 10, 45, 45}
	for i, width := range colWidths {
		col := columnName(i + 1)
		f.SetColWidth(sheetAnoms, col, col, width)
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", columnName(i+1))
		f.SetCellValue(sheetAnoms, cell, header)
		f.SetCellStyle(sheetAnoms, cell, cell, headerStyle)
	}
	f.SetRowHeight(sheetAnoms, 1, 25)

	f.SetPanes(sheetAnoms, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	sorted := make([]*model.Anomaly, len(anomalies))
	copy(sorted, anomalies)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Severity != sorted[j].Severity {
			return severityPriority(sorted[i].Severity) > severityPriority(sorted[j].Severity)
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	for i, anomaly := range sorted {
		row := i + 2
		rowStr := fmt.Sprintf("%d", row)

		f.SetCellValue(sheetAnoms, "A"+rowStr, anomaly.CreatedAt.In(w.timezone).Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetAnoms, "B"+rowStr, anomaly.RuleName)
		f.SetCellValue(sheetAnoms, "C"+rowStr, string(anomaly.Severity))
		f.SetCellValue(sheetAnoms, "D"+rowStr, round1(anomaly.MetricValue))
		f.SetCellValue(sheetAnoms, "E"+rowStr, anomaly.Description)
		if anomaly.Insight != nil {
			f.SetCellValue(sheetAnoms, "F"+rowStr, anomaly.Insight.RootCause)
		}

		var style int
		switch anomaly.Severity {
		case model.SeverityCritical:
			style = criticalStyle
		case model.SeverityWarning, model.SeverityHigh:
			style = warningStyle
		}
		if style > 0 {
			f.SetCellStyle(sheetAnoms, "C"+rowStr, "C"+rowStr, style)
		}
	}

	return nil
}

// Helper functions

func (w *Writer) createHeaderStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: colorHeaderFg,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{colorHeaderBg},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
}

func (w *Writer) createWarningStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: colorWarningFg},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{colorWarningBg},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
}

func (w *Writer) createCriticalStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: colorCriticalFg},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{colorCriticalBg},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
}

// columnName converts a 1-based column index to Excel column name (A, B, ..., Z, AA, AB, ...).
func columnName(index int) string {
	result := ""
	for index > 0 {
		index--
		result = string(rune('A'+index%26)) + result
		index /= 26
	}
	return result
}

// severityPriority returns a numeric priority for sorting (higher = more severe).
func severityPriority(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return 3
	case model.SeverityHigh:
		return 2
	case model.SeverityWarning:
		return 1
	default:
		return 0
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
