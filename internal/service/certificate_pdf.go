package service

import (
	"bytes"
	"fmt"
	"os"

	"github.com/signintech/gopdf"
	qrcode "github.com/skip2/go-qrcode"
)

// PDFRenderer renders certificates as single-page landscape A4 PDFs with an
// embedded verification QR code.
type PDFRenderer struct {
	fontPath string
}

// NewPDFRenderer creates a renderer using the TTF at fontPath.
func NewPDFRenderer(fontPath string) (*PDFRenderer, error) {
	if _, err := os.Stat(fontPath); err != nil {
		return nil, fmt.Errorf("certificate font not found: %w", err)
	}
	return &PDFRenderer{fontPath: fontPath}, nil
}

// Render produces the certificate PDF bytes.
func (r *PDFRenderer) Render(data CertificatePDFData) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	page := *gopdf.PageSizeA4Landscape
	pdf.Start(gopdf.Config{PageSize: page})
	pdf.AddPage()

	if err := pdf.AddTTFFont("main", r.fontPath); err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}

	// Border
	pdf.SetLineWidth(2)
	pdf.SetStrokeColor(30, 64, 124)
	pdf.Rectangle(24, 24, page.W-24, page.H-24, "D", 0, 0)

	centered := func(size float64, y float64, text string) error {
		if err := pdf.SetFont("main", "", size); err != nil {
			return err
		}
		width, err := pdf.MeasureTextWidth(text)
		if err != nil {
			return err
		}
		pdf.SetXY((page.W-width)/2, y)
		return pdf.Cell(nil, text)
	}

	pdf.SetTextColor(30, 64, 124)
	if err := centered(34, 90, "Certificate of Achievement"); err != nil {
		return nil, err
	}

	pdf.SetTextColor(60, 60, 60)
	if err := centered(14, 160, "This certifies that"); err != nil {
		return nil, err
	}

	pdf.SetTextColor(20, 20, 20)
	if err := centered(28, 195, data.StudentName); err != nil {
		return nil, err
	}

	pdf.SetTextColor(60, 60, 60)
	if err := centered(14, 250, "has successfully completed the certification examination for"); err != nil {
		return nil, err
	}

	pdf.SetTextColor(20, 20, 20)
	if err := centered(22, 280, data.CourseName); err != nil {
		return nil, err
	}

	pdf.SetTextColor(60, 60, 60)
	scoreLine := fmt.Sprintf("with a score of %.2f%% on %s", data.ScorePercentage, data.PassedAt.UTC().Format("January 2, 2006"))
	if err := centered(14, 330, scoreLine); err != nil {
		return nil, err
	}

	if err := centered(12, 368, "Trainer: "+data.TrainerName); err != nil {
		return nil, err
	}

	footer := fmt.Sprintf("Certificate No: %s  |  Issued %s", data.CertificateNo, data.IssuedAt.UTC().Format("January 2, 2006"))
	if err := centered(11, page.H-110, footer); err != nil {
		return nil, err
	}

	qr, err := qrcode.Encode(data.VerificationURL, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	holder, err := gopdf.ImageHolderByBytes(qr)
	if err != nil {
		return nil, fmt.Errorf("embed qr: %w", err)
	}
	qrSize := 84.0
	if err := pdf.ImageByHolder(holder, page.W-48-qrSize, page.H-48-qrSize, &gopdf.Rect{W: qrSize, H: qrSize}); err != nil {
		return nil, fmt.Errorf("place qr: %w", err)
	}

	pdf.SetTextColor(120, 120, 120)
	if err := pdf.SetFont("main", "", 8); err != nil {
		return nil, err
	}
	pdf.SetXY(page.W-48-qrSize, page.H-44)
	if err := pdf.Cell(nil, "Scan to verify"); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
