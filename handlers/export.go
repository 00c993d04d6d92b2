package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"p9e.in/pothole/middleware"
	"p9e.in/pothole/models"
	"p9e.in/pothole/services"
)

const exportSheet = "Potholes"

var exportHeaders = []string{
	"ID", "Status", "Distance (m)", "Latitude", "Longitude", "Vehicle",
	"Ground Level", "Reported By", "Reporter Email", "Image", "Created At", "Updated At",
}

type ExportHandler struct {
	query *services.QueryService
	now   func() time.Time
}

func NewExportHandler(query *services.QueryService) *ExportHandler {
	return &ExportHandler{query: query, now: time.Now}
}

// Excel streams every report matching ?status as an .xlsx workbook.
func (h *ExportHandler) Excel(w http.ResponseWriter, r *http.Request) {
	reports, err := h.query.All(r.Context(), r.URL.Query().Get("status"), middleware.GetActor(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	generated := h.now()
	f, err := createExcelFile(reports, generated)
	if err != nil {
		respondError(w, r, fmt.Errorf("build workbook: %w", err))
		return
	}
	defer f.Close()

	buffer, err := f.WriteToBuffer()
	if err != nil {
		respondError(w, r, fmt.Errorf("write workbook: %w", err))
		return
	}

	filename := fmt.Sprintf("potholes_%s.xlsx", generated.Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buffer.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buffer.Bytes())
}

// CSV is the plain-text variant of Excel.
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	reports, err := h.query.All(r.Context(), r.URL.Query().Get("status"), middleware.GetActor(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	data, err := createCSVFile(reports)
	if err != nil {
		respondError(w, r, fmt.Errorf("build csv: %w", err))
		return
	}

	filename := fmt.Sprintf("potholes_%s.csv", h.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func exportRow(p models.PotholeReport) []interface{} {
	var name, email string
	if p.ReportedBy != nil {
		name, email = p.ReportedBy.Name, p.ReportedBy.Email
	}
	return []interface{}{
		p.ID.String(),
		string(p.Status),
		p.Distance,
		p.GPS.Latitude,
		p.GPS.Longitude,
		p.VehicleName,
		p.VehicleGroundLevel,
		name,
		email,
		p.ImageRef,
		p.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		p.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

// createExcelFile lays out a title, a timestamp, a header row on row 4 and
// one row per report below it.
func createExcelFile(reports []models.PotholeReport, generated time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	f.SetCellValue(exportSheet, "A1", "Pothole Reports")
	f.SetCellStyle(exportSheet, "A1", "A1", titleStyle)
	f.SetRowHeight(exportSheet, 1, 30)
	f.SetCellValue(exportSheet, "A2", fmt.Sprintf("Generated: %s", generated.Format("2006-01-02 15:04:05")))

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, err
	}

	for colIdx, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, 4)
		f.SetCellValue(exportSheet, cell, header)
		f.SetCellStyle(exportSheet, cell, cell, headerStyle)
		col, _ := excelize.ColumnNumberToName(colIdx + 1)
		f.SetColWidth(exportSheet, col, col, 20)
	}

	for rowIdx, report := range reports {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+5)
		row := exportRow(report)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if len(reports) > 0 {
		summaryRow := len(reports) + 7
		f.SetCellValue(exportSheet, fmt.Sprintf("A%d", summaryRow), "Total")
		f.SetCellValue(exportSheet, fmt.Sprintf("B%d", summaryRow), len(reports))
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

func createCSVFile(reports []models.PotholeReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	writer.Write(exportHeaders)
	for _, report := range reports {
		row := exportRow(report)
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprintf("%v", v)
		}
		writer.Write(record)
	}

	writer.Flush()
	return buf.Bytes(), writer.Error()
}
