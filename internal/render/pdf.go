package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-report/internal/model"
)

// maxImageBytes bounds an image embedded into a PDF.
const maxImageBytes = 10 << 20

// ImageFetcher loads the bytes of a remote image.
type ImageFetcher func(url string) ([]byte, error)

// PDF renders a paginated Letter-size document with the property image
// embedded. Remote images are loaded with Fetch; a nil Fetch embeds only
// data URLs. An image that cannot be loaded is listed by reference instead.
type PDF struct {
	Fetch ImageFetcher
}

// ContentType implements Renderer.
func (PDF) ContentType() string { return "application/pdf" }

// Extension implements Renderer.
func (PDF) Extension() string { return "pdf" }

const (
	pdfMargin   = 15.0
	pdfLine     = 6.0
	pdfRow      = 7.0
	pdfImageMax = 110.0
)

var pdfColumns = [3]float64{60, 70, 55.9}

// Render implements Renderer.
func (p PDF) Render(w io.Writer, rep *model.Report) error {
	doc := fpdf.New("P", "mm", "Letter", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(true, pdfMargin)
	doc.SetTitle("Property Report - "+rep.Address, true)
	doc.SetCreator("property-report", true)
	doc.SetCreationDate(rep.GeneratedAt)
	doc.AliasNbPages("")
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont("Helvetica", "I", 8)
		doc.SetTextColor(120, 120, 120)
		doc.CellFormat(0, 5, fmt.Sprintf("Page %d of {nb}", doc.PageNo()), "", 0, "C", false, 0, "")
	})
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(0, 10, "PROPERTY REPORT", "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "", 11)
	doc.MultiCell(0, pdfLine, tr("Address: "+rep.Address), "", "L", false)
	doc.CellFormat(0, pdfLine, "Generated: "+rep.GeneratedAt.Format("1/2/2006 15:04 MST"), "", 1, "L", false, 0, "")
	if rep.SourceStatus.County.State == model.StatusOK && rep.SourceStatus.County.Provenance != "" {
		doc.CellFormat(0, pdfLine, tr("Data Source: "+rep.SourceStatus.County.Provenance), "", 1, "L", false, 0, "")
	}
	doc.Ln(3)

	p.image(doc, tr, rep.Image)

	for _, sec := range rep.Sections {
		pdfHeading(doc, tr, sec.Category)
		doc.SetFont("Helvetica", "B", 10)
		doc.SetFillColor(230, 230, 230)
		for i, h := range []string{"Field", "Value", "Source"} {
			doc.CellFormat(pdfColumns[i], pdfRow, h, "1", 0, "L", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont("Helvetica", "", 10)
		for _, f := range sec.Fields {
			cells := []string{f.Label, f.DisplayValue, sourceLabel(f)}
			for i, c := range cells {
				doc.CellFormat(pdfColumns[i], pdfRow, fit(doc, tr(c), pdfColumns[i]-2), "1", 0, "L", false, 0, "")
			}
			doc.Ln(-1)
		}
		doc.Ln(4)
	}

	pdfHeading(doc, tr, "Data Sources & Status")
	doc.SetFont("Helvetica", "", 10)
	lines := []string{statusLine("API data", rep.SourceStatus.API), statusLine("County data", rep.SourceStatus.County)}
	if rep.County.Jurisdiction != "" {
		lines = append(lines, fmt.Sprintf("County routing: %s (%s confidence)", rep.County.Jurisdiction, rep.County.Confidence))
	}
	for _, l := range lines {
		doc.MultiCell(0, pdfLine, tr(l), "", "L", false)
	}
	doc.Ln(3)

	pdfHeading(doc, tr, "Manual Edits")
	doc.SetFont("Helvetica", "", 10)
	edits := manualEditLines(rep)
	if len(edits) == 0 {
		doc.MultiCell(0, pdfLine, noManualEdits, "", "L", false)
	}
	for _, e := range edits {
		doc.MultiCell(0, pdfLine, tr("- "+e), "", "L", false)
	}

	if rep.SourceStatus.County.State == model.StatusFailed {
		doc.Ln(3)
		doc.SetFont("Helvetica", "I", 10)
		doc.SetTextColor(150, 60, 0)
		doc.MultiCell(0, pdfLine, countyUnavailableNote, "", "L", false)
		doc.SetTextColor(0, 0, 0)
	}

	if err := doc.Output(w); err != nil {
		return eris.Wrap(err, "pdf: output")
	}
	return nil
}

func pdfHeading(doc *fpdf.Fpdf, tr func(string) string, text string) {
	doc.SetFont("Helvetica", "B", 13)
	doc.SetTextColor(0, 0, 0)
	doc.CellFormat(0, 8, tr(text), "B", 1, "L", false, 0, "")
	doc.Ln(2)
}

// image embeds the report image, or lists its reference when it cannot be
// decoded into a PNG, JPEG or GIF.
func (p PDF) image(doc *fpdf.Fpdf, tr func(string) string, img *model.ImageReference) {
	if img == nil {
		return
	}
	data, err := p.load(img.Reference)
	typ := ""
	if err == nil {
		typ = imageType(data)
	}
	if typ == "" {
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, pdfLine, tr(imageLine(img)), "", "L", false)
		doc.Ln(3)
		return
	}

	opts := fpdf.ImageOptions{ImageType: typ, ReadDpi: true}
	info := doc.RegisterImageOptionsReader("property-image", opts, bytes.NewReader(data))
	if doc.Err() || info == nil || info.Width() <= 0 {
		doc.ClearError()
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, pdfLine, tr(imageLine(img)), "", "L", false)
		doc.Ln(3)
		return
	}

	w, h := info.Width(), info.Height()
	scale := pdfImageMax / w
	if hs := pdfImageMax * 0.75 / h; hs < scale {
		scale = hs
	}
	w, h = w*scale, h*scale

	pageW, pageH := doc.GetPageSize()
	if doc.GetY()+h > pageH-pdfMargin {
		doc.AddPage()
	}
	x := (pageW - w) / 2
	doc.ImageOptions("property-image", x, doc.GetY(), w, h, false, opts, 0, "")
	doc.SetY(doc.GetY() + h + 2)
	doc.SetFont("Helvetica", "I", 8)
	doc.CellFormat(0, 4, tr(imageCaption(img)), "", 1, "C", false, 0, "")
	doc.Ln(4)
}

func imageCaption(img *model.ImageReference) string {
	if img.Source == model.ImageUpload {
		return "Uploaded image"
	}
	return "Image from API"
}

func (p PDF) load(ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "data:") {
		return decodeDataURL(ref)
	}
	if p.Fetch == nil {
		return nil, eris.New("pdf: no image fetcher")
	}
	return p.Fetch(ref)
}

func decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, eris.New("pdf: malformed data url")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, eris.New("pdf: data url is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, eris.Wrap(err, "pdf: decode data url")
	}
	return data, nil
}

func imageType(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return "PNG"
	case "image/jpeg":
		return "JPG"
	case "image/gif":
		return "GIF"
	default:
		return ""
	}
}

// fit shortens s with an ellipsis until it is at most width wide.
func fit(doc *fpdf.Fpdf, s string, width float64) string {
	if doc.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && doc.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

// HTTPImages returns an ImageFetcher that downloads over HTTP with the given
// timeout and rejects responses larger than the embed limit.
func HTTPImages(timeout time.Duration) ImageFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "image/png, image/jpeg, image/gif")
	return func(url string) ([]byte, error) {
		resp, err := client.R().Get(url)
		if err != nil {
			return nil, eris.Wrapf(err, "pdf: fetch image %s", url)
		}
		if resp.IsError() {
			return nil, eris.Errorf("pdf: fetch image %s: status %d", url, resp.StatusCode())
		}
		if len(resp.Body()) > maxImageBytes {
			return nil, eris.Errorf("pdf: image %s exceeds %d bytes", url, maxImageBytes)
		}
		return resp.Body(), nil
	}
}
