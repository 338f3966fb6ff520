package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fluxior-backend/internal/models"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/xuri/excelize/v2"
)

var ErrNothingToExport = errors.New("nothing to export")

// ExportColumns is the column order of the lead export.
var ExportColumns = []string{"Date", "Nom", "Email", "Société", "Type", "Budget", "Statut", "Montant", "Partenaire"}

const exportSheet = "Leads"

// ExportRows flattens leads into ExportColumns order. Dates are rendered
// day-first in loc; a missing amount exports as 0.
func ExportRows(leads []models.Lead, partners []models.Partner, loc *time.Location) [][]any {
	names := make(map[string]string, len(partners))
	for _, p := range partners {
		names[p.ID] = p.Name
	}

	rows := make([][]any, 0, len(leads))
	for _, l := range leads {
		amount := 0.0
		if l.DealAmount != nil {
			amount = *l.DealAmount
		}
		partner := ""
		if l.PartnerID != nil {
			partner = names[*l.PartnerID]
		}
		rows = append(rows, []any{
			l.CreatedAt.In(loc).Format("02/01/2006"),
			l.Name,
			l.Email,
			models.Deref(l.Company),
			models.Deref(l.ProjectType),
			models.Deref(l.Budget),
			string(l.Status),
			amount,
			partner,
		})
	}
	return rows
}

func ExportFilename(now time.Time, ext string) string {
	return "fluxior-leads-" + now.UTC().Format("2006-01-02") + "." + ext
}

// EncodeCSV quotes every header and value, doubles inner quotes, and joins
// rows with "\n" without a trailing newline.
func EncodeCSV(columns []string, rows [][]any) (string, error) {
	if len(rows) == 0 {
		return "", ErrNothingToExport
	}

	var b strings.Builder
	writeCSVLine(&b, len(columns), func(i int) string { return columns[i] })
	for _, row := range rows {
		b.WriteByte('\n')
		writeCSVLine(&b, len(row), func(i int) string { return stringify(row[i]) })
	}
	return b.String(), nil
}

func writeCSVLine(b *strings.Builder, n int, field func(int) string) {
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field(i), `"`, `""`))
		b.WriteByte('"')
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// EncodeXLSX writes the same table as a single-sheet workbook with a bold header.
func EncodeXLSX(columns []string, rows [][]any) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, col); err != nil {
			return nil, err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(exportSheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, err
	}

	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = f.SetColWidth(exportSheet, "A", lastCol, 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderRevenueChart draws the monthly buckets as a PNG bar chart.
func RenderRevenueChart(buckets []MonthBucket) ([]byte, error) {
	bars := make([]chart.Value, 0, len(buckets))
	maxVal := 0.0
	for _, b := range buckets {
		if b.Revenue > maxVal {
			maxVal = b.Revenue
		}
		bars = append(bars, chart.Value{Value: b.Revenue, Label: b.Label})
	}
	// go-chart rejects an empty range.
	yMax := maxVal
	if yMax <= 0 {
		yMax = 1
	}
	graph := chart.BarChart{
		Title:    "Revenus signés",
		Width:    900,
		Height:   480,
		BarWidth: 60,
		Background: chart.Style{Padding: chart.Box{
			Top:    50,
			Left:   16,
			Right:  16,
			Bottom: 0,
		}},
		YAxis: chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: yMax}},
		Bars:  bars,
	}
	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
