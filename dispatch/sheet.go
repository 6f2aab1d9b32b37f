package dispatch

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"bazaar/models"
	"bazaar/routing"
)

// QRPayload is what the doorstep scanner reads: orderId|otp.
func QRPayload(o models.Order) string {
	return o.ID + "|" + o.DeliveryOTP
}

// RouteSheet renders the agent's sequenced route as a PDF, one block per
// stop with a QR code of the delivery handshake.
func RouteSheet(agentID string, route []models.Order, at time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Delivery Route")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Agent: %s", agentID))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", at.Format("02 Jan 2006 15:04")))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Stops: %d   Total: %.2f km", len(route), routing.Distance(route)))
	pdf.Ln(12)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	for i, stop := range routing.Stops(route) {
		o := route[i]
		qrPNG, err := qrcode.Encode(QRPayload(o), qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("qr for %s: %w", o.ID, err)
		}

		if pdf.GetY() > 240 {
			pdf.AddPage()
		}
		top := pdf.GetY()

		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 7, fmt.Sprintf("%d. %s", stop.Seq, o.ID))
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(0, 6, addressLine(o.DeliveryAddress))
		pdf.Ln(6)
		pdf.Cell(0, 6, fmt.Sprintf("Items: %d   Total: Rs %.2f   Payment: %s", len(o.Items), o.Total, o.PaymentMethod))
		pdf.Ln(6)
		if stop.Seq > 1 {
			pdf.Cell(0, 6, fmt.Sprintf("Leg: %.2f km", stop.Leg))
			pdf.Ln(6)
		}

		name := "qr-" + o.ID
		pdf.RegisterImageOptionsReader(name, imageOpts, bytes.NewReader(qrPNG))
		pdf.ImageOptions(name, 165, top, 30, 30, false, imageOpts, 0, "")
		pdf.SetY(top + 34)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("route sheet: %w", err)
	}
	return buf.Bytes(), nil
}

func addressLine(a models.Address) string {
	var parts []string
	for _, p := range []string{a.Label, a.Details, a.City, a.State, a.Pincode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "Address not provided"
	}
	return strings.Join(parts, ", ")
}
