package resolve

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/property-report/internal/model"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// DisplayDateLayout is the en-US short date layout (M/D/YYYY).
const DisplayDateLayout = "1/2/2006"

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
}

// FormatMoney renders an amount as "$1,234,567". Input may already carry a
// currency symbol or grouping commas. Anything that is not a finite number
// renders as NotAvailable.
func FormatMoney(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return model.NotAvailable
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return model.NotAvailable
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	if f == math.Trunc(f) && f < 1e15 {
		return sign + "$" + printer.Sprintf("%d", int64(f))
	}
	return sign + "$" + printer.Sprintf("%.2f", f)
}

// FormatDate renders a date in en-US short form. Values that do not parse as
// a date render as NotAvailable, never partially formatted.
func FormatDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.NotAvailable
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DisplayDateLayout)
		}
	}
	return model.NotAvailable
}

// Format applies the field's formatter and unit to a present value.
func Format(spec model.FieldSpec, value string) string {
	var out string
	switch spec.Formatter {
	case model.FormatMoney:
		out = FormatMoney(value)
	case model.FormatDate:
		out = FormatDate(value)
	default:
		out = strings.TrimSpace(value)
		if out == "" {
			out = model.NotAvailable
		}
	}
	if out != model.NotAvailable && spec.Unit != "" {
		out += " " + spec.Unit
	}
	return out
}
