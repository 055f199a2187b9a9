package report

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/property-report/internal/county"
	"github.com/sells-group/property-report/internal/model"
	"github.com/sells-group/property-report/internal/resolve"
	"github.com/sells-group/property-report/internal/source"
)

// Request is a report request as received from a caller.
type Request struct {
	Address       string            `json:"address"`
	County        string            `json:"county,omitempty"`
	ManualValues  map[string]string `json:"manualValues,omitempty"`
	Preferences   map[string]string `json:"preferences,omitempty"`
	UploadedImage string            `json:"uploadedImage,omitempty"`
}

// Sources are the raw records a report was built from. Callers keep them to
// rebuild the report after edits without fetching again.
type Sources struct {
	API    model.SourceRecord `json:"api"`
	County model.SourceRecord `json:"county"`
}

// Diagnostic is the outcome of querying one adapter on its own.
type Diagnostic struct {
	Adapter string             `json:"adapter"`
	Address string             `json:"address"`
	Success bool               `json:"success"`
	Record  model.SourceRecord `json:"record"`
}

// Option configures a Service.
type Option func(*Service)

// WithAPITimeout bounds the API adapter.
func WithAPITimeout(d time.Duration) Option {
	return func(s *Service) { s.apiTimeout = d }
}

// WithCountyTimeout bounds the county adapter, including every candidate
// when the county is tried in order.
func WithCountyTimeout(d time.Duration) Option {
	return func(s *Service) { s.countyTimeout = d }
}

// WithClock overrides the report timestamp source (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service builds reports. It holds no per-request state.
type Service struct {
	schema        *model.Schema
	api           source.Adapter
	counties      map[string]source.Adapter
	apiTimeout    time.Duration
	countyTimeout time.Duration
	now           func() time.Time
}

// NewService creates a Service. counties is keyed by jurisdiction tag; a nil
// api adapter reports the API source as unavailable.
func NewService(schema *model.Schema, api source.Adapter, counties map[string]source.Adapter, opts ...Option) *Service {
	s := &Service{
		schema:        schema,
		api:           api,
		counties:      counties,
		apiTimeout:    20 * time.Second,
		countyTimeout: 45 * time.Second,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the report schema.
func (s *Service) Schema() *model.Schema { return s.schema }

type plan struct {
	address   string
	selection county.Selection
	manual    map[string]string
	prefs     map[string]resolve.Preference
}

func (s *Service) validate(req Request) (plan, error) {
	addr := strings.TrimSpace(req.Address)
	if addr == "" {
		return plan{}, invalid("address", "address is required")
	}
	sel, err := county.ParseSelection(req.County)
	if err != nil {
		return plan{}, invalid("county", "%s", err.Error())
	}
	prefs := make(map[string]resolve.Preference, len(req.Preferences))
	for id, raw := range req.Preferences {
		if s.schema.ByID(id) == nil {
			return plan{}, invalid("preferences", "unknown field %q", id)
		}
		p, err := resolve.ParsePreference(raw)
		if err != nil {
			return plan{}, invalid("preferences", "%s", err.Error())
		}
		prefs[id] = p
	}
	return plan{address: addr, selection: sel, manual: req.ManualValues, prefs: prefs}, nil
}

// route picks the county adapter for a selection. A nil adapter means the
// county source is not invoked; the returned record explains why.
func (s *Service) route(p plan) (source.Adapter, model.CountyRoute, model.SourceRecord) {
	rt := model.CountyRoute{Selection: p.selection.String()}

	switch p.selection.Mode {
	case county.ModeNone:
		return nil, rt, model.Skipped("county lookup skipped by request")
	case county.ModeSpecific:
		rt.Jurisdiction = p.selection.Jurisdiction
		rt.Confidence = county.ConfidenceHigh
		if a, ok := s.counties[p.selection.Jurisdiction]; ok && a != nil {
			return a, rt, model.SourceRecord{}
		}
		return nil, rt, model.Failed(model.KindUnavailable, p.selection.Jurisdiction+": county adapter not configured")
	}

	hint := county.Locate(p.address)
	rt.Jurisdiction = hint.Jurisdiction
	rt.Confidence = hint.Confidence
	if hint.Specific() {
		if a, ok := s.counties[hint.Jurisdiction]; ok && a != nil {
			return a, rt, model.SourceRecord{}
		}
	}

	var all []source.Adapter
	for _, tag := range county.Tags() {
		if a, ok := s.counties[tag]; ok && a != nil {
			all = append(all, a)
		}
	}
	if len(all) == 0 {
		return nil, rt, model.Failed(model.KindUnavailable, "no county adapters configured")
	}
	rt.Jurisdiction = county.Unknown
	return source.NewOrdered("county", all...), rt, model.SourceRecord{}
}

// Build validates the request, queries the API and the routed county
// adapter concurrently, waits for both, and assembles the report. Adapter
// failures are recorded in the report; only validation aborts.
func (s *Service) Build(ctx context.Context, req Request) (*model.Report, Sources, error) {
	p, err := s.validate(req)
	if err != nil {
		return nil, Sources{}, err
	}
	countyAdapter, rt, countyRec := s.route(p)

	var srcs Sources
	var g errgroup.Group
	g.Go(func() error {
		if s.api == nil {
			srcs.API = model.Failed(model.KindUnavailable, "api adapter not configured")
			return nil
		}
		srcs.API = source.Guard(ctx, s.api, s.apiTimeout, p.address)
		return nil
	})
	if countyAdapter != nil {
		g.Go(func() error {
			countyRec = source.Guard(ctx, countyAdapter, s.countyTimeout, p.address)
			return nil
		})
	}
	_ = g.Wait()
	srcs.County = countyRec

	rep := s.assemble(p, rt, req.UploadedImage, srcs)
	zap.L().Info("report: built",
		zap.String("address", rep.Address),
		zap.String("county_route", rt.Jurisdiction),
		zap.String("api_status", rep.SourceStatus.API.String()),
		zap.String("county_status", rep.SourceStatus.County.String()),
		zap.Int("manual_edits", len(rep.ManualEdits)),
	)
	return rep, srcs, nil
}

// Rebuild assembles a report from caller-supplied records. No adapter is
// invoked. Records are cleaned first: a county selection of "none" discards
// any supplied county record, and an empty record counts as not supplied.
// The cleaned records are returned alongside the report.
func (s *Service) Rebuild(req Request, srcs Sources) (*model.Report, Sources, error) {
	p, err := s.validate(req)
	if err != nil {
		return nil, Sources{}, err
	}
	srcs = Sources{
		API:    supplied("api", srcs.API),
		County: supplied("county", srcs.County),
	}

	rt := model.CountyRoute{Selection: p.selection.String()}
	switch p.selection.Mode {
	case county.ModeNone:
		srcs.County = model.Skipped("county lookup skipped by request")
	case county.ModeSpecific:
		rt.Jurisdiction = p.selection.Jurisdiction
		rt.Confidence = county.ConfidenceHigh
	case county.ModeAuto:
		hint := county.Locate(p.address)
		rt.Jurisdiction, rt.Confidence = hint.Jurisdiction, hint.Confidence
	}
	return s.assemble(p, rt, req.UploadedImage, srcs), srcs, nil
}

// supplied normalizes a record that came from a client rather than an adapter.
func supplied(name string, rec model.SourceRecord) model.SourceRecord {
	switch {
	case rec.OK:
		return model.Succeeded(rec.Provenance, rec.Values)
	case rec.ErrorKind == "":
		return model.Failed(model.KindUnavailable, name+" record not supplied")
	case strings.TrimSpace(rec.Message) == "":
		rec.Message = name + ": " + string(rec.ErrorKind)
	}
	rec.Values = nil
	return rec
}

func (s *Service) assemble(p plan, rt model.CountyRoute, image string, srcs Sources) *model.Report {
	return Assemble(s.schema, Input{
		Address:       p.address,
		Manual:        p.manual,
		Preferences:   p.prefs,
		API:           srcs.API,
		County:        srcs.County,
		Route:         rt,
		UploadedImage: image,
		GeneratedAt:   s.now(),
	})
}

// DiagnoseAPI queries only the API adapter.
func (s *Service) DiagnoseAPI(ctx context.Context, address string) (Diagnostic, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Diagnostic{}, invalid("address", "address is required")
	}
	if s.api == nil {
		rec := model.Failed(model.KindUnavailable, "api adapter not configured")
		return Diagnostic{Adapter: "api", Address: address, Record: rec}, nil
	}
	rec := source.Guard(ctx, s.api, s.apiTimeout, address)
	return Diagnostic{Adapter: s.api.Name(), Address: address, Success: rec.OK, Record: rec}, nil
}

// DiagnoseCounty queries only the county adapter the selection routes to.
func (s *Service) DiagnoseCounty(ctx context.Context, address, selection string) (Diagnostic, error) {
	p, err := s.validate(Request{Address: address, County: selection})
	if err != nil {
		return Diagnostic{}, err
	}
	a, _, rec := s.route(p)
	name := "county"
	if a != nil {
		name = a.Name()
		rec = source.Guard(ctx, a, s.countyTimeout, p.address)
	}
	return Diagnostic{Adapter: name, Address: p.address, Success: rec.OK, Record: rec}, nil
}
