package report

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/example/leaf-check/internal/crop"
)

const (
	margin       = 72.0
	maxImageW    = 4 * 72.0
	maxImageH    = 3 * 72.0
	jpegQuality  = 85
	bodySize     = 11.0
	bodyLeading  = 14.0
	bulletIndent = 20.0

	disclaimer = "This report is produced by an automated image classifier and is advisory only. " +
		"Confirm the diagnosis with a local agricultural extension officer before applying any treatment."
)

type rgb struct{ r, g, b int }

var (
	titleColor       = rgb{0x1e, 0x3a, 0x8a}
	headingColor     = rgb{0x25, 0x63, 0xeb}
	tableHeaderColor = rgb{0x3b, 0x82, 0xf6}
	tableBodyColor   = rgb{0xf0, 0xf9, 0xff}
	headerTextColor  = rgb{0xf5, 0xf5, 0xf5}
	gray             = rgb{0x80, 0x80, 0x80}
	black            = rgb{0, 0, 0}
	white            = rgb{0xff, 0xff, 0xff}
)

// Generator renders analysis reports as Letter sized PDF documents.
type Generator struct {
	logger   *zap.Logger
	now      func() time.Time
	compress bool
}

// NewGenerator returns a generator stamping reports with the local time.
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger.Named("report"), now: time.Now, compress: true}
}

// Generate renders the report for one prediction. img is optional; when it cannot be
// embedded an inline error note takes its place and rendering continues.
func (g *Generator) Generate(result crop.PredictionResult, info crop.DiseaseInfo, cropType string, img image.Image) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(g.compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle("Agricultural Disease Analysis Report", true)
	pdf.SetCreator("leaf-check", true)
	pdf.SetCreationDate(g.now())
	pdf.AddPage()

	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pageW, _ := pdf.GetPageSize()
	w.contentW = pageW - 2*margin

	w.title(g.now())
	if img != nil {
		if err := w.image(img); err != nil {
			g.logger.Warn("report image skipped", zap.Error(err))
			w.paragraph(fmt.Sprintf("[Process Image Error: %v]", err))
			pdf.Ln(20)
		}
	}
	w.summary(result, info, cropName(cropType))
	w.details(info)
	w.bullets("Prevention Tips", info.Prevention)
	w.bullets("Practical Treatment Guidance", info.TreatmentGuidance)
	w.disclaimer()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// cropName drops a leading icon from selector titles such as "🌾 Rice".
func cropName(cropType string) string {
	return strings.TrimLeftFunc(cropType, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

type writer struct {
	pdf      *fpdf.Fpdf
	tr       func(string) string
	contentW float64
}

func (w *writer) font(style string, size float64, c rgb) {
	w.pdf.SetFont("Helvetica", style, size)
	w.pdf.SetTextColor(c.r, c.g, c.b)
}

func (w *writer) title(now time.Time) {
	w.font("B", 24, titleColor)
	w.pdf.CellFormat(0, 30, w.tr("Agricultural Disease Analysis Report"), "", 1, "C", false, 0, "")
	w.pdf.Ln(10)
	w.font("", bodySize, black)
	w.pdf.CellFormat(0, bodyLeading, w.tr("Generated on: "+now.Format("2006-01-02 15:04:05")), "", 1, "C", false, 0, "")
	w.pdf.Ln(20)
}

func (w *writer) image(img image.Image) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	bounds := img.Bounds()
	if bounds.Empty() {
		return errors.New("image has no pixels")
	}
	srcW, srcH := float64(bounds.Dx()), float64(bounds.Dy())
	ratio := maxImageW / srcW
	if r := maxImageH / srcH; r < ratio {
		ratio = r
	}
	dispW, dispH := float64(int(srcW*ratio)), float64(int(srcH*ratio))
	if dispW < 1 || dispH < 1 {
		return fmt.Errorf("image %dx%d is too narrow to display", bounds.Dx(), bounds.Dy())
	}

	// twice the display size keeps the print sharp without embedding huge uploads
	thumb := imaging.Fit(img, int(2*maxImageW), int(2*maxImageH), imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	w.pdf.RegisterImageOptionsReader("leaf", opts, &buf)
	if err := w.pdf.Error(); err != nil {
		w.pdf.ClearError()
		return err
	}
	x := margin + (w.contentW-dispW)/2
	y := w.pdf.GetY()
	w.pdf.ImageOptions("leaf", x, y, dispW, dispH, false, opts, 0, "")
	w.pdf.SetY(y + dispH + 20)
	return nil
}

func (w *writer) summary(result crop.PredictionResult, info crop.DiseaseInfo, cropType string) {
	severity := string(info.Severity)
	if severity == "" {
		severity = "Unknown"
	}
	rows := [][2]string{
		{"Crop Type", cropType},
		{"Detected Condition", crop.DisplayName(result.PredictedClass)},
		{"Confidence Score", fmt.Sprintf("%.1f%%", result.ConfidenceScore)},
		{"Severity", severity},
	}

	const labelW, valueW = 2.5 * 72, 3 * 72
	left := margin + (w.contentW-labelW-valueW)/2

	w.pdf.SetDrawColor(white.r, white.g, white.b)
	w.pdf.SetLineWidth(1)

	w.pdf.SetX(left)
	w.pdf.SetFillColor(tableHeaderColor.r, tableHeaderColor.g, tableHeaderColor.b)
	w.font("B", 12, headerTextColor)
	w.pdf.CellFormat(labelW, 32, w.tr("Analysis Parameter"), "1", 0, "L", true, 0, "")
	w.pdf.CellFormat(valueW, 32, w.tr("Result"), "1", 1, "L", true, 0, "")

	w.pdf.SetFillColor(tableBodyColor.r, tableBodyColor.g, tableBodyColor.b)
	w.font("", bodySize, black)
	for _, row := range rows {
		w.pdf.SetX(left)
		w.pdf.CellFormat(labelW, 28, w.tr(row[0]), "1", 0, "L", true, 0, "")
		w.pdf.CellFormat(valueW, 28, w.tr(row[1]), "1", 1, "L", true, 0, "")
	}
	w.pdf.Ln(20)
}

func (w *writer) heading(text string) {
	w.pdf.Ln(15)
	w.font("B", 16, headingColor)
	w.pdf.CellFormat(0, 20, w.tr(text), "", 1, "L", false, 0, "")
	w.pdf.Ln(10)
}

func (w *writer) paragraph(text string) {
	w.font("", bodySize, black)
	w.pdf.MultiCell(0, bodyLeading, w.tr(text), "", "L", false)
}

func (w *writer) labelled(label, text string) {
	w.font("B", bodySize, black)
	w.pdf.CellFormat(0, bodyLeading, w.tr(label), "", 1, "L", false, 0, "")
	w.paragraph(text)
}

func (w *writer) details(info crop.DiseaseInfo) {
	w.heading("Disease Details")

	w.labelled("Overview:", firstNonEmpty(info.Overview, info.Description, "N/A"))
	w.pdf.Ln(10)
	w.labelled("Symptoms:", firstNonEmpty(info.Symptoms, "N/A"))
	w.pdf.Ln(10)
	w.labelled("Quick Treatment:", firstNonEmpty(info.Treatment, "N/A"))
	w.pdf.Ln(15)
}

func (w *writer) bullets(title string, items []string) {
	if len(items) == 0 {
		return
	}
	w.heading(title)
	w.font("", bodySize, black)
	for _, item := range items {
		w.pdf.SetX(margin + bulletIndent)
		w.pdf.CellFormat(12, bodyLeading, w.tr("•"), "", 0, "L", false, 0, "")
		w.pdf.MultiCell(w.contentW-bulletIndent-12, bodyLeading, w.tr(item), "", "L", false)
	}
	w.pdf.Ln(15)
}

func (w *writer) disclaimer() {
	w.pdf.Ln(30)
	w.font("", 8, gray)
	w.pdf.MultiCell(0, 10, w.tr(disclaimer), "", "C", false)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
