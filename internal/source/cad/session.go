package cad

import (
	"bytes"
	"context"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-report/internal/resilience"
	"github.com/sells-group/property-report/internal/source"
)

// DefaultUserAgent is sent when the config does not set one. County sites
// reject obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config configures a county adapter.
type Config struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds one HTTP request; the whole fetch is bounded by the caller.
	Timeout time.Duration
	// MinInterval is the minimum spacing between requests of one adapter.
	MinInterval time.Duration
	// Clock drives the request gate. Nil means the wall clock.
	Clock source.Clock
}

// session is a cookie-keeping HTTP client gated to one request per interval.
type session struct {
	name string
	base *url.URL
	http *resty.Client
	gate *source.Gate
}

func newSession(name, defaultBase string, cfg Config) (*session, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = defaultBase
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: parse base url", name)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: cookie jar", name)
	}
	client := resty.New()
	client.SetBaseURL(base.String())
	client.SetCookieJar(jar)
	client.SetTimeout(timeout)
	client.SetHeaders(map[string]string{
		"User-Agent":      ua,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	})
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &session{
		name: name,
		base: base,
		http: client,
		gate: source.NewGate(cfg.MinInterval, cfg.Clock),
	}, nil
}

// resolve turns a link found on a page into an absolute URL.
func (s *session) resolve(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", eris.Wrapf(err, "%s: parse link %q", s.name, ref)
	}
	return s.base.ResolveReference(u).String(), nil
}

// get fetches a page and parses it.
func (s *session) get(ctx context.Context, target string, query url.Values) (*goquery.Document, error) {
	if err := s.gate.Wait(ctx); err != nil {
		return nil, err
	}
	req := s.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	res, err := req.Get(target)
	return s.document(res, err, target)
}

// post submits a url-encoded form and parses the response page.
func (s *session) post(ctx context.Context, target, referer string, form url.Values) (*goquery.Document, error) {
	if err := s.gate.Wait(ctx); err != nil {
		return nil, err
	}
	req := s.http.R().
		SetContext(ctx).
		SetFormDataFromValues(form)
	if referer != "" {
		req.SetHeader("Referer", referer)
	}
	res, err := req.Post(target)
	return s.document(res, err, target)
}

func (s *session) document(res *resty.Response, err error, target string) (*goquery.Document, error) {
	if err != nil {
		return nil, eris.Wrapf(err, "%s: request %s", s.name, target)
	}
	if res.IsError() {
		return nil, &resilience.StatusError{Service: s.name, StatusCode: res.StatusCode()}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: parse html", s.name)
	}
	return doc, nil
}

var streetNumberRe = regexp.MustCompile(`^\s*(\d+[A-Za-z]?)\s+(.*)$`)

// ParseStreet splits the street part of an address (before the first
// comma) into house number and street name.
func ParseStreet(address string) (number, name string) {
	street, _, _ := strings.Cut(address, ",")
	street = collapse(street)
	if m := streetNumberRe.FindStringSubmatch(street); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return "", street
}

var streetSuffixes = map[string]bool{
	"st": true, "street": true, "dr": true, "drive": true, "ave": true, "avenue": true,
	"rd": true, "road": true, "ln": true, "lane": true, "blvd": true, "ct": true,
	"court": true, "cir": true, "circle": true, "way": true, "pkwy": true, "trl": true,
	"pl": true, "place": true, "loop": true,
}

// trimSuffix drops a trailing street type ("Main St" -> "Main"). CAD search
// forms often miss when the suffix is abbreviated differently.
func trimSuffix(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return name
	}
	last := strings.ToLower(strings.TrimSuffix(fields[len(fields)-1], "."))
	if streetSuffixes[last] {
		return strings.Join(fields[:len(fields)-1], " ")
	}
	return name
}
