package cad

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-report/internal/model"
)

func TestFBCAD_FollowsDetailLink(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var keywords []string
	mux := http.NewServeMux()
	mux.HandleFunc("/Search/Result", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keywords = append(keywords, r.URL.Query().Get("keywords"))
		mu.Unlock()
		_, _ = w.Write([]byte(`<div class="property-card"><a href="/Property/View/R123456">4810 Sweetwater Blvd</a></div>`))
	})
	mux.HandleFunc("/Property/View/R123456", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
<div class="panel"><div class="panel-heading">Building Improvements</div>
<table><tr><th>Year Built</th><td>2004</td></tr><tr><th>Style</th><td>Traditional</td></tr><tr><th>Living Area</th><td>3,120</td></tr></table></div>
<div class="panel"><div class="panel-heading">Values</div>
<table><tr><th>Land Value</th><td>$85,000</td></tr><tr><th>Total</th><td>$410,000</td></tr></table></div>
<div class="field-group"><span class="field-label">Owner Name</span><span class="field-value">SMITH JOHN</span></div>
<p>Property ID: 123456</p>
</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, err := NewFBCAD(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	rec := f.Fetch(context.Background(), "4810 Sweetwater Blvd, Sugar Land, TX 77479")
	require.True(t, rec.OK, rec.Message)
	assert.Equal(t, FBCADProvenance, rec.Provenance)
	assert.Equal(t, "2004", rec.Values[KeyYearBuilt])
	assert.Equal(t, "Traditional", rec.Values[KeyPropertyType])
	assert.Equal(t, "3120", rec.Values[KeyLivingArea])
	assert.Equal(t, "85000", rec.Values[KeyLandValue])
	assert.Equal(t, "410000", rec.Values[KeyAssessedValue])
	assert.Equal(t, "SMITH JOHN", rec.Values[KeyOwner])
	assert.Equal(t, "123456", rec.Values[KeyAccountNumber])
	assert.Equal(t, []string{"4810 Sweetwater Blvd, Sugar Land, TX 77479"}, keywords)
}

func TestFBCAD_StreetFallbackAndSearchCard(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("keywords") != "4810 Sweetwater Blvd" {
			_, _ = w.Write([]byte(`<div class="alert-danger">No results for that search</div>`))
			return
		}
		_, _ = w.Write([]byte(`<div class="search-result-item">Account #: 998877
<span class="owner">SMITH JOHN</span></div>`))
	}))
	defer srv.Close()

	f, err := NewFBCAD(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	rec := f.Fetch(context.Background(), "4810 Sweetwater Blvd, Sugar Land, TX")
	require.True(t, rec.OK, rec.Message)
	assert.Equal(t, "998877", rec.Values[KeyAccountNumber])
	assert.Equal(t, "SMITH JOHN", rec.Values[KeyOwner])
}

func TestFBCAD_NoResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Nothing here</p></body></html>`))
	}))
	defer srv.Close()

	f, err := NewFBCAD(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	rec := f.Fetch(context.Background(), "1 Nowhere Ln, Richmond, TX")
	assert.False(t, rec.OK)
	assert.Equal(t, model.KindAdapter, rec.ErrorKind)
	assert.Contains(t, rec.Message, "no property results")
}

func TestFBCAD_GateSpacesRequests(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var times []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		_, _ = w.Write([]byte(`<p>none</p>`))
	}))
	defer srv.Close()

	f, err := NewFBCAD(Config{BaseURL: srv.URL, MinInterval: 40 * time.Millisecond})
	require.NoError(t, err)

	_ = f.Fetch(context.Background(), "1 Main St, Richmond, TX")
	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 30*time.Millisecond)
}
