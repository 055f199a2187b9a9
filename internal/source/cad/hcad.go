package cad

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-report/internal/model"
	"github.com/sells-group/property-report/internal/source"
)

// HCAD identifiers.
const (
	HCADName       = "hcad"
	HCADProvenance = "Harris County Appraisal District"
	HCADBaseURL    = "https://hcad.org"
)

const hcadSearchPath = "/quick-search"

// HCAD searches the Harris County Appraisal District quick-search form.
type HCAD struct {
	s *session
}

// NewHCAD creates the Harris County adapter.
func NewHCAD(cfg Config) (*HCAD, error) {
	s, err := newSession(HCADName, HCADBaseURL, cfg)
	if err != nil {
		return nil, err
	}
	return &HCAD{s: s}, nil
}

// Name implements source.Adapter.
func (h *HCAD) Name() string { return HCADName }

// Fetch implements source.Adapter. The street name is searched as given,
// then without its street-type suffix.
func (h *HCAD) Fetch(ctx context.Context, address string) model.SourceRecord {
	number, name := ParseStreet(address)
	if name == "" {
		return model.Failed(model.KindAdapter, "hcad: address has no street")
	}

	candidates := []source.Candidate{h.candidate("street", number, name)}
	if short := trimSuffix(name); short != name {
		candidates = append(candidates, h.candidate("street-no-suffix", number, short))
	}

	values, used, err := source.Chain(ctx, candidates...)
	if err != nil {
		zap.L().Warn("hcad: lookup failed", zap.String("address", address), zap.Error(err))
		return model.FromError(err)
	}
	zap.L().Debug("hcad: lookup succeeded",
		zap.String("address", address),
		zap.String("query", used),
		zap.Int("values", len(values)),
	)
	return model.Succeeded(HCADProvenance, values)
}

func (h *HCAD) candidate(name, number, street string) source.Candidate {
	return source.Candidate{
		Name: name,
		Fetch: func(ctx context.Context) (map[model.Path]string, error) {
			return h.search(ctx, number, street)
		},
	}
}

func (h *HCAD) search(ctx context.Context, number, street string) (map[model.Path]string, error) {
	searchURL, err := h.s.resolve(hcadSearchPath)
	if err != nil {
		return nil, err
	}
	page, err := h.s.get(ctx, searchURL, nil)
	if err != nil {
		return nil, err
	}

	form := findAddressForm(page)
	if form == nil {
		return nil, eris.New("hcad: address search form not found")
	}
	action, method, values := fillSearchForm(form, number, street)
	if action == "" {
		action = searchURL
	}
	submitURL, err := h.s.resolve(action)
	if err != nil {
		return nil, err
	}

	var results *goquery.Document
	if method == "get" {
		results, err = h.s.get(ctx, submitURL, values)
	} else {
		results, err = h.s.post(ctx, submitURL, searchURL, values)
	}
	if err != nil {
		return nil, err
	}

	// A results list links to the account detail page; a single match may
	// render the detail inline.
	if link, ok := results.Find(`a[href*="detail"], a[href*="Detail"], a[href*="account"], a[href*="Account"]`).First().Attr("href"); ok {
		detailURL, err := h.s.resolve(link)
		if err != nil {
			return nil, err
		}
		detail, err := h.s.get(ctx, detailURL, nil)
		if err != nil {
			return nil, err
		}
		return extractRecord(detail.Selection, "hcad")
	}
	return extractRecord(results.Selection, "hcad")
}

// findAddressForm returns the first form whose text mentions both
// "address" and "search".
func findAddressForm(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("form").EachWithBreak(func(_ int, f *goquery.Selection) bool {
		text := strings.ToLower(f.Text())
		if strings.Contains(text, "address") && strings.Contains(text, "search") {
			found = f
			return false
		}
		return true
	})
	return found
}

// fillSearchForm copies hidden inputs and the selected tax year, then sets
// the street number and name inputs.
func fillSearchForm(form *goquery.Selection, number, street string) (action, method string, values url.Values) {
	values = url.Values{}
	form.Find(`input[type="hidden"]`).Each(func(_ int, in *goquery.Selection) {
		name, _ := in.Attr("name")
		if name != "" {
			values.Set(name, in.AttrOr("value", ""))
		}
	})

	form.Find("select").Each(func(_ int, sel *goquery.Selection) {
		name := sel.AttrOr("name", "")
		if !strings.Contains(strings.ToLower(name), "year") {
			return
		}
		opt := sel.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = sel.Find("option").First()
		}
		if v, ok := opt.Attr("value"); ok {
			values.Set(name, v)
		}
	})

	form.Find(`input[type="text"], input:not([type])`).Each(func(_ int, in *goquery.Selection) {
		key := strings.ToLower(in.AttrOr("name", "") + " " + in.AttrOr("id", ""))
		name := in.AttrOr("name", "")
		if name == "" || !strings.Contains(key, "street") {
			return
		}
		switch {
		case strings.Contains(key, "no") || strings.Contains(key, "num"):
			if number != "" {
				values.Set(name, number)
			}
		case strings.Contains(key, "name"):
			values.Set(name, street)
		}
	})

	return form.AttrOr("action", ""), strings.ToLower(form.AttrOr("method", "post")), values
}

// extractRecord runs the shared extraction and rejects pages without
// property data.
func extractRecord(doc *goquery.Selection, adapter string) (map[model.Path]string, error) {
	values := Extract(doc)
	if !hasPropertyData(values) {
		if msg := collapse(doc.Find(".alert-danger, .error-message, .no-results").First().Text()); msg != "" {
			return nil, eris.Errorf("%s: %s", adapter, msg)
		}
		return nil, eris.Errorf("%s: no property data on page", adapter)
	}
	return values, nil
}
