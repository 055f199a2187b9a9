// Package cad implements source adapters for county appraisal district
// websites. Both adapters share one label-driven extraction table.
package cad

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/property-report/internal/model"
)

// County record keys. These are the county paths the report schema refers to.
const (
	KeyBedrooms         = "bedrooms"
	KeyBathrooms        = "bathrooms"
	KeyTotalRooms       = "totalRooms"
	KeyLivingArea       = "livingArea"
	KeyLotSize          = "lotSize"
	KeyYearBuilt        = "yearBuilt"
	KeyConstructionType = "constructionType"
	KeyPropertyType     = "propertyType"
	KeyGarage           = "garage"
	KeyParkingSpaces    = "parkingSpaces"
	KeyAssessedValue    = "assessedValue"
	KeyMarketValue      = "marketValue"
	KeyLandValue        = "landValue"
	KeyImprovementValue = "improvementValue"
	KeyTaxAmount        = "taxAmount"
	KeyLastSoldPrice    = "lastSoldPrice"
	KeyLastSoldDate     = "lastSoldDate"
	KeyOwner            = "owner"
	KeyMailingAddress   = "mailingAddress"
	KeyAccountNumber    = "accountNumber"
)

type section string

const (
	anySection      section = ""
	buildingSection section = "building"
	landSection     section = "land"
	valueSection    section = "value"
)

type labelRule struct {
	key     string
	section section
	re      *regexp.Regexp
}

// Rules are checked in order; the first match decides the key. Section
// rules apply only inside a section whose header names that section.
var labelRules = []labelRule{
	{KeyLandValue, anySection, regexp.MustCompile(`land value|land market`)},
	{KeyImprovementValue, anySection, regexp.MustCompile(`improvement value|building value|improvement market`)},
	{KeyMarketValue, anySection, regexp.MustCompile(`market value|total market`)},
	{KeyTaxAmount, anySection, regexp.MustCompile(`tax amount|total tax|estimated tax`)},
	{KeyAssessedValue, anySection, regexp.MustCompile(`assessed|appraised value|total value|taxable value`)},
	{KeyLastSoldPrice, anySection, regexp.MustCompile(`sale price|sold price|last sale amount`)},
	{KeyLastSoldDate, anySection, regexp.MustCompile(`sale date|sold date|deed date`)},
	{KeyBedrooms, anySection, regexp.MustCompile(`bedroom|^beds?$`)},
	{KeyBathrooms, anySection, regexp.MustCompile(`bathroom|^baths?$|full bath`)},
	{KeyTotalRooms, anySection, regexp.MustCompile(`total rooms|room count`)},
	{KeyLotSize, anySection, regexp.MustCompile(`lot size|land area|acreage`)},
	{KeyLivingArea, anySection, regexp.MustCompile(`living area|living sq|heated area|square feet|sq\.?\s*ft`)},
	{KeyYearBuilt, anySection, regexp.MustCompile(`year built|yr built|effective year`)},
	{KeyConstructionType, anySection, regexp.MustCompile(`construction|exterior wall|foundation type`)},
	{KeyGarage, anySection, regexp.MustCompile(`garage`)},
	{KeyParkingSpaces, anySection, regexp.MustCompile(`parking`)},
	{KeyPropertyType, anySection, regexp.MustCompile(`property type|state class|property use|building style`)},
	{KeyOwner, anySection, regexp.MustCompile(`owner name|^owner$`)},
	{KeyMailingAddress, anySection, regexp.MustCompile(`mailing address`)},
	{KeyAccountNumber, anySection, regexp.MustCompile(`account (number|no|#)|property id|^account$`)},

	{KeyPropertyType, buildingSection, regexp.MustCompile(`style|type`)},
	{KeyLotSize, landSection, regexp.MustCompile(`area|size`)},
	{KeyAssessedValue, valueSection, regexp.MustCompile(`total`)},
	{KeyImprovementValue, valueSection, regexp.MustCompile(`improvement|building`)},
}

func matchLabel(label string, sec section) (string, bool) {
	label = strings.ToLower(collapse(label))
	label = strings.TrimSuffix(label, ":")
	if label == "" {
		return "", false
	}
	for _, r := range labelRules {
		if r.section != anySection && r.section != sec {
			continue
		}
		if r.re.MatchString(label) {
			return r.key, true
		}
	}
	return "", false
}

var (
	spaceRe   = regexp.MustCompile(`\s+`)
	decimalRe = regexp.MustCompile(`[^\d.]`)
	digitRe   = regexp.MustCompile(`\D`)
	accountRe = regexp.MustCompile(`(?i)(?:account\s*#?|property id):?\s*([0-9][0-9-]{3,})`)
)

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// normalize cleans a raw cell value for key. Counts and areas keep digits and
// the decimal point; money keeps its digits and sign; years keep digits.
func normalize(key, value string) string {
	value = collapse(value)
	switch key {
	case KeyBedrooms, KeyBathrooms, KeyTotalRooms, KeyLivingArea, KeyLotSize, KeyParkingSpaces:
		return strings.Trim(decimalRe.ReplaceAllString(value, ""), ".")
	case KeyYearBuilt, KeyAccountNumber:
		return digitRe.ReplaceAllString(value, "")
	case KeyAssessedValue, KeyMarketValue, KeyLandValue, KeyImprovementValue, KeyTaxAmount, KeyLastSoldPrice:
		v := strings.NewReplacer("$", "", ",", "", " ", "").Replace(value)
		digits := strings.TrimPrefix(v, "-")
		if digits == "" || decimalRe.MatchString(digits) {
			return ""
		}
		return v
	default:
		return value
	}
}

type extraction map[model.Path]string

// set keeps the first non-empty value seen for a key.
func (e extraction) set(key, raw string) {
	if _, ok := e[model.Path(key)]; ok {
		return
	}
	if v := normalize(key, raw); v != "" {
		e[model.Path(key)] = v
	}
}

func (e extraction) label(label, value string, sec section) {
	if key, ok := matchLabel(label, sec); ok {
		e.set(key, value)
	}
}

// Extract pulls labeled values out of a county page: sectioned cards first,
// then two-column table rows, definition lists and label/value blocks. The
// account number falls back to a scan of the page text.
func Extract(doc *goquery.Selection) map[model.Path]string {
	out := extraction{}

	doc.Find(".card, .panel, .section, .property-section").Each(func(_ int, s *goquery.Selection) {
		sec := sectionOf(s.Find(".card-header, .panel-heading, .section-header, h2, h3, h4").First().Text())
		if sec == anySection {
			return
		}
		s.Find("tr, .detail-row").Each(func(_ int, row *goquery.Selection) {
			out.label(row.Find("th, .label, .detail-label").First().Text(),
				row.Find("td, .value, .detail-value").First().Text(), sec)
		})
	})

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td, th")
		if cells.Length() < 2 {
			return
		}
		out.label(cells.Eq(0).Text(), cells.Eq(1).Text(), anySection)
	})

	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		out.label(dt.Text(), dt.NextFiltered("dd").Text(), anySection)
	})

	doc.Find(".detail-row, .property-field, .field-group").Each(func(_ int, f *goquery.Selection) {
		out.label(f.Find(".detail-label, .field-label, .label").First().Text(),
			f.Find(".detail-value, .field-value, .value").First().Text(), anySection)
	})

	if _, ok := out[KeyAccountNumber]; !ok {
		if m := accountRe.FindStringSubmatch(doc.Text()); m != nil {
			out.set(KeyAccountNumber, m[1])
		}
	}
	return out
}

func sectionOf(header string) section {
	h := strings.ToLower(header)
	switch {
	case strings.Contains(h, "building"), strings.Contains(h, "improvement"), strings.Contains(h, "structure"):
		return buildingSection
	case strings.Contains(h, "land"), strings.Contains(h, "lot"):
		return landSection
	case strings.Contains(h, "value"), strings.Contains(h, "assessment"):
		return valueSection
	default:
		return anySection
	}
}

// hasPropertyData reports whether values hold anything beyond an account number.
func hasPropertyData(values map[model.Path]string) bool {
	for k := range values {
		if k != KeyAccountNumber {
			return true
		}
	}
	return false
}
