package pdf

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Generator renders billing documents. Kept as an interface for tests.
type Generator interface {
	GenerateInvoice(data InvoiceData) ([]byte, error)
}

type InvoiceGenerator struct {
	FontPath string // TTF with the glyphs customer names need
	fontName string
}

type InvoiceData struct {
	Number        string
	IssuedAt      time.Time
	CustomerName  string
	CustomerEmail string
	Company       string
	PlanName      string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	AmountCents   int64
	Currency      string
	OrderID       string
	PaymentID     string
}

func NewInvoiceGenerator(fontPath string) *InvoiceGenerator {
	return &InvoiceGenerator{FontPath: fontPath, fontName: "DejaVu"}
}

func (g *InvoiceGenerator) GenerateInvoice(data InvoiceData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+data.Number, true)
	pdf.SetAuthor("WaPulse", true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	font := g.addFont(pdf)
	pdf.AddPage()

	pdf.SetFont(font, "B", 18)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "C", false, 0, "")
	pdf.SetFont(font, "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("No. %s  dated  %s", data.Number, data.IssuedAt.Format("02 Jan 2006")), "", 1, "C", false, 0, "")
	g.hr(pdf)

	g.sectionTitle(pdf, font, "Billed to")
	g.kvLine(pdf, font, "Name", data.CustomerName)
	g.kvLine(pdf, font, "Email", data.CustomerEmail)
	if data.Company != "" {
		g.kvLine(pdf, font, "Company", data.Company)
	}
	g.hr(pdf)

	g.sectionTitle(pdf, font, "Subscription")
	g.kvLine(pdf, font, "Plan", data.PlanName)
	g.kvLine(pdf, font, "Period", fmt.Sprintf("%s to %s",
		data.PeriodStart.Format("02 Jan 2006"), data.PeriodEnd.Format("02 Jan 2006")))
	g.kvLine(pdf, font, "Order", data.OrderID)
	g.kvLine(pdf, font, "Payment", data.PaymentID)
	g.hr(pdf)

	pdf.SetFont(font, "B", 13)
	pdf.CellFormat(0, 9, "Total paid: "+FormatAmount(data.AmountCents, data.Currency), "", 1, "R", false, 0, "")

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(font, "", 9)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func FormatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}

// addFont registers the UTF-8 font when present and falls back to the core
// Helvetica font otherwise.
func (g *InvoiceGenerator) addFont(pdf *gofpdf.Fpdf) string {
	if g.FontPath == "" {
		return "Helvetica"
	}
	if _, err := os.Stat(g.FontPath); err != nil {
		return "Helvetica"
	}
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
	return g.fontName
}

func (g *InvoiceGenerator) sectionTitle(pdf *gofpdf.Fpdf, font, s string) {
	pdf.SetFont(font, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 11)
}

func (g *InvoiceGenerator) kvLine(pdf *gofpdf.Fpdf, font, key, val string) {
	pdf.SetFont(font, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(font, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *InvoiceGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}
