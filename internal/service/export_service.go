package service

import (
	"fmt"
	"strconv"

	"github.com/noah-isme/tutor-billing-api/internal/dto"
	"github.com/noah-isme/tutor-billing-api/pkg/export"
)

// ReportFormat is an output format for billing reports.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type csvRenderer interface {
	Render(table *export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(table *export.Table, title, subtitle string) ([]byte, error)
}

// RenderedReport is a rendered file ready to be served or stored.
type RenderedReport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders billing reports.
type ExportService struct {
	csv csvRenderer
	pdf pdfRenderer
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(csv csvRenderer, pdf pdfRenderer) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf}
}

// RenderOverdue renders the overdue report in the requested format.
func (s *ExportService) RenderOverdue(report *dto.OverdueReport, format ReportFormat) (*RenderedReport, error) {
	table := overdueTable(report)
	name := fmt.Sprintf("overdue_%s.%s", report.Date, format)
	switch format {
	case ReportFormatCSV:
		data, err := s.csv.Render(table)
		if err != nil {
			return nil, err
		}
		return &RenderedReport{Filename: name, ContentType: "text/csv", Data: data}, nil
	case ReportFormatPDF:
		data, err := s.pdf.Render(table, "Overdue tuition", report.Date)
		if err != nil {
			return nil, err
		}
		return &RenderedReport{Filename: name, ContentType: "application/pdf", Data: data}, nil
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
}

func overdueTable(report *dto.OverdueReport) *export.Table {
	table := export.NewTable("Student", "Group", "Payment type", "Price", "Due date", "Days overdue", "Lessons left")
	for _, item := range report.Items {
		due := ""
		if item.NextDueDate != nil {
			due = item.NextDueDate.Format(dateLayout)
		}
		lessons := ""
		if item.LessonsRemaining != nil {
			lessons = strconv.Itoa(*item.LessonsRemaining)
		}
		_ = table.Append(
			item.StudentName,
			item.GroupName,
			string(item.PaymentType),
			item.Price.StringFixed(2),
			due,
			strconv.Itoa(item.DaysOverdue),
			lessons,
		)
	}
	table.Footer = []string{fmt.Sprintf("Total: %d", len(report.Items))}
	return table
}
