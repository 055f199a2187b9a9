package cad

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-report/internal/model"
	"github.com/sells-group/property-report/internal/source"
)

// FBCAD identifiers.
const (
	FBCADName       = "fbcad"
	FBCADProvenance = "Fort Bend County Appraisal District"
	FBCADBaseURL    = "https://esearch.fbcad.org"
)

const fbcadSearchPath = "/Search/Result"

// FBCAD searches the Fort Bend Central Appraisal District e-search site.
type FBCAD struct {
	s *session
}

// NewFBCAD creates the Fort Bend County adapter.
func NewFBCAD(cfg Config) (*FBCAD, error) {
	s, err := newSession(FBCADName, FBCADBaseURL, cfg)
	if err != nil {
		return nil, err
	}
	return &FBCAD{s: s}, nil
}

// Name implements source.Adapter.
func (f *FBCAD) Name() string { return FBCADName }

// Fetch implements source.Adapter. The full address is searched first, then
// the street line alone.
func (f *FBCAD) Fetch(ctx context.Context, address string) model.SourceRecord {
	full := collapse(address)
	if full == "" {
		return model.Failed(model.KindAdapter, "fbcad: empty address")
	}
	number, name := ParseStreet(address)
	street := collapse(number + " " + name)

	candidates := []source.Candidate{f.candidate("keywords", full)}
	if street != "" && street != full {
		candidates = append(candidates, f.candidate("street", street))
	}

	values, used, err := source.Chain(ctx, candidates...)
	if err != nil {
		zap.L().Warn("fbcad: lookup failed", zap.String("address", address), zap.Error(err))
		return model.FromError(err)
	}
	zap.L().Debug("fbcad: lookup succeeded",
		zap.String("address", address),
		zap.String("query", used),
		zap.Int("values", len(values)),
	)
	return model.Succeeded(FBCADProvenance, values)
}

func (f *FBCAD) candidate(name, keywords string) source.Candidate {
	return source.Candidate{
		Name: name,
		Fetch: func(ctx context.Context) (map[model.Path]string, error) {
			return f.search(ctx, keywords)
		},
	}
}

func (f *FBCAD) search(ctx context.Context, keywords string) (map[model.Path]string, error) {
	searchURL, err := f.s.resolve(fbcadSearchPath)
	if err != nil {
		return nil, err
	}
	page, err := f.s.get(ctx, searchURL, url.Values{"keywords": {keywords}})
	if err != nil {
		return nil, err
	}

	results := page.Find(".search-results-property, .property-card, .search-result-item")
	if results.Length() == 0 {
		if msg := collapse(page.Find(".alert-danger, .error-message").First().Text()); msg != "" {
			return nil, eris.Errorf("fbcad: search error: %s", msg)
		}
		return nil, eris.New("fbcad: no property results")
	}

	first := results.First()
	link, ok := first.Find(`a[href*="Property/"], a[href*="Detail/"]`).First().Attr("href")
	if !ok {
		return fromSearchCard(first)
	}
	detailURL, err := f.s.resolve(link)
	if err != nil {
		return nil, err
	}
	detail, err := f.s.get(ctx, detailURL, nil)
	if err != nil {
		return nil, err
	}
	return extractRecord(detail.Selection, "fbcad")
}

// fromSearchCard reads the partial data a result card carries when it has
// no link to a detail page.
func fromSearchCard(card *goquery.Selection) (map[model.Path]string, error) {
	out := extraction{}
	for k, v := range Extract(card) {
		out[k] = v
	}
	if v := collapse(card.Find(`.owner, .owner-name, [data-label="Owner"]`).First().Text()); v != "" {
		out.set(KeyOwner, v)
	}
	if len(out) == 0 {
		return nil, eris.New("fbcad: result card has no data")
	}
	return out, nil
}
