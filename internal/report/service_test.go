package report

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-report/internal/county"
	"github.com/sells-group/property-report/internal/model"
	"github.com/sells-group/property-report/internal/source"
)

type countingAdapter struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, address string) model.SourceRecord
}

func (c *countingAdapter) Name() string { return c.name }

func (c *countingAdapter) Fetch(ctx context.Context, address string) model.SourceRecord {
	c.calls.Add(1)
	return c.fn(ctx, address)
}

func returning(name string, rec model.SourceRecord) *countingAdapter {
	return &countingAdapter{name: name, fn: func(context.Context, string) model.SourceRecord { return rec }}
}

func hanging(name string) *countingAdapter {
	return &countingAdapter{name: name, fn: func(ctx context.Context, _ string) model.SourceRecord {
		// Ignores ctx on purpose: Guard must still return.
		time.Sleep(2 * time.Second)
		return model.Succeeded("late", map[model.Path]string{"bedrooms": "9"})
	}}
}

var fixedNow = time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, api source.Adapter, counties map[string]source.Adapter) *Service {
	t.Helper()
	return NewService(defaultSchema(t), api, counties,
		WithAPITimeout(time.Second),
		WithCountyTimeout(100*time.Millisecond),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestBuild_HoustonCountyTimeout(t *testing.T) {
	t.Parallel()

	api := returning("attom", apiRecord(map[model.Path]string{"assessment.assessedValue": "250000"}))
	hcad := hanging("hcad")
	fbcad := returning("fbcad", countyRecord(nil))
	svc := newTestService(t, api, map[string]source.Adapter{county.Harris: hcad, county.FortBend: fbcad})

	start := time.Now()
	rep, srcs, err := svc.Build(context.Background(), Request{Address: "123 Main St, Houston, TX 77002"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	f := rep.Field("assessedValue")
	require.NotNil(t, f)
	assert.Equal(t, "$250,000", f.DisplayValue)
	assert.Equal(t, model.SourceAPI, f.SourceUsed)

	assert.Equal(t, model.StatusOK, rep.SourceStatus.API.State)
	assert.Equal(t, model.StatusFailed, rep.SourceStatus.County.State)
	assert.Equal(t, model.KindTimeout, rep.SourceStatus.County.Kind)
	assert.Equal(t, county.Harris, rep.County.Jurisdiction)
	assert.Equal(t, county.ConfidenceHigh, rep.County.Confidence)
	assert.Equal(t, fixedNow, rep.GeneratedAt)

	assert.Equal(t, int32(1), hcad.calls.Load())
	assert.Equal(t, int32(0), fbcad.calls.Load())
	assert.False(t, srcs.County.OK)
	assert.True(t, srcs.API.OK)
}

func TestBuild_CountyNoneNeverInvoked(t *testing.T) {
	t.Parallel()

	api := returning("attom", apiRecord(map[model.Path]string{"building.rooms.beds": "3"}))
	hcad := returning("hcad", countyRecord(map[model.Path]string{"bedrooms": "4"}))
	svc := newTestService(t, api, map[string]source.Adapter{county.Harris: hcad})

	rep, srcs, err := svc.Build(context.Background(), Request{Address: "1 Main St, Houston, TX", County: "none"})
	require.NoError(t, err)

	assert.Equal(t, int32(0), hcad.calls.Load())
	assert.Equal(t, model.StatusSkipped, rep.SourceStatus.County.State)
	assert.True(t, srcs.County.IsSkipped())
	assert.Equal(t, model.SourceAPI, rep.Field("beds").SourceUsed)
	assert.Equal(t, "none", rep.County.Selection)
}

func TestBuild_SpecificCounty(t *testing.T) {
	t.Parallel()

	hcad := returning("hcad", countyRecord(map[model.Path]string{"bedrooms": "4"}))
	fbcad := returning("fbcad", model.Succeeded("Fort Bend County Appraisal District", map[model.Path]string{"bedrooms": "5"}))
	svc := newTestService(t, nil, map[string]source.Adapter{county.Harris: hcad, county.FortBend: fbcad})

	rep, _, err := svc.Build(context.Background(), Request{Address: "1 Main St, Houston, TX", County: "Fort Bend"})
	require.NoError(t, err)

	assert.Equal(t, int32(0), hcad.calls.Load())
	assert.Equal(t, int32(1), fbcad.calls.Load())
	assert.Equal(t, "5", rep.Field("beds").DisplayValue)
	assert.Equal(t, county.FortBend, rep.County.Jurisdiction)
	assert.Equal(t, model.StatusFailed, rep.SourceStatus.API.State)
	assert.Equal(t, model.KindUnavailable, rep.SourceStatus.API.Kind)
}

func TestBuild_SpecificCountyNotConfigured(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, map[string]source.Adapter{})
	rep, _, err := svc.Build(context.Background(), Request{Address: "1 Main St", County: "harris"})
	require.NoError(t, err)
	assert.Equal(t, model.KindUnavailable, rep.SourceStatus.County.Kind)
}

func TestBuild_LowConfidenceTriesAllCounties(t *testing.T) {
	t.Parallel()

	hcad := returning("hcad", model.Failed(model.KindAdapter, "no match"))
	fbcad := returning("fbcad", model.Succeeded("Fort Bend County Appraisal District", map[model.Path]string{"bedrooms": "5"}))
	svc := newTestService(t, nil, map[string]source.Adapter{county.Harris: hcad, county.FortBend: fbcad})

	rep, _, err := svc.Build(context.Background(), Request{Address: "12 Ranch Rd, Nowhere, TX"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), hcad.calls.Load())
	assert.Equal(t, int32(1), fbcad.calls.Load())
	assert.Equal(t, "5", rep.Field("beds").DisplayValue)
	assert.Equal(t, county.Unknown, rep.County.Jurisdiction)
	assert.Equal(t, county.ConfidenceLow, rep.County.Confidence)
}

func TestBuild_StreetNameDoesNotMisroute(t *testing.T) {
	t.Parallel()

	api := returning("attom", apiRecord(nil))
	hcad := returning("hcad", countyRecord(nil))
	fbcad := returning("fbcad", countyRecord(map[model.Path]string{"assessedValue": "410000"}))
	svc := newTestService(t, api, map[string]source.Adapter{county.Harris: hcad, county.FortBend: fbcad})

	rep, _, err := svc.Build(context.Background(), Request{Address: "5 Houston St, Richmond, TX 77469"})
	require.NoError(t, err)
	assert.Equal(t, county.FortBend, rep.County.Jurisdiction)
	assert.Equal(t, "$410,000", rep.Field("assessedValue").DisplayValue)
	assert.Equal(t, int32(0), hcad.calls.Load())
	assert.Equal(t, int32(1), fbcad.calls.Load())
}

func TestBuild_ZIPDisagreementTriesAllCounties(t *testing.T) {
	t.Parallel()

	api := returning("attom", apiRecord(nil))
	hcad := returning("hcad", model.Failed(model.KindAdapter, "hcad: no matching property"))
	fbcad := returning("fbcad", countyRecord(map[model.Path]string{"assessedValue": "410000"}))
	svc := newTestService(t, api, map[string]source.Adapter{county.Harris: hcad, county.FortBend: fbcad})

	rep, _, err := svc.Build(context.Background(), Request{Address: "1 Main St, Houston, TX 77479"})
	require.NoError(t, err)
	assert.Equal(t, county.Unknown, rep.County.Jurisdiction)
	assert.Equal(t, county.ConfidenceLow, rep.County.Confidence)
	assert.Equal(t, "$410,000", rep.Field("assessedValue").DisplayValue)
	assert.Equal(t, int32(1), hcad.calls.Load())
	assert.Equal(t, int32(1), fbcad.calls.Load())
}

func TestBuild_AdapterPanicIsRecorded(t *testing.T) {
	t.Parallel()

	api := &countingAdapter{name: "attom", fn: func(context.Context, string) model.SourceRecord { panic("boom") }}
	svc := newTestService(t, api, nil)

	rep, _, err := svc.Build(context.Background(), Request{Address: "1 Main St", County: "none"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, rep.SourceStatus.API.State)
	assert.Equal(t, model.KindAdapter, rep.SourceStatus.API.Kind)
	assert.Contains(t, rep.SourceStatus.API.Reason, "boom")
}

func TestBuild_Validation(t *testing.T) {
	t.Parallel()

	api := returning("attom", apiRecord(nil))
	svc := newTestService(t, api, nil)

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"blank address", Request{Address: "   "}, "address"},
		{"bad county", Request{Address: "1 Main", County: "dallas"}, "county"},
		{"bad preference", Request{Address: "1 Main", Preferences: map[string]string{"beds": "zillow"}}, "preferences"},
		{"unknown preference field", Request{Address: "1 Main", Preferences: map[string]string{"pool": "api"}}, "preferences"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, _, err := svc.Build(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, rep)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Equal(t, int32(0), api.calls.Load())
}

func TestRebuild_UsesSuppliedSources(t *testing.T) {
	t.Parallel()

	api := returning("attom", apiRecord(nil))
	svc := newTestService(t, api, nil)

	srcs := Sources{
		API:    apiRecord(map[model.Path]string{"sale.saleDate": "2019-06-14", "sale.saleAmount": "310000"}),
		County: model.Failed(model.KindTimeout, "hcad: deadline exceeded"),
	}
	rep, _, err := svc.Rebuild(Request{
		Address:      "1 Main St, Houston, TX",
		ManualValues: map[string]string{"lastSalePrice": "$315,000"},
	}, srcs)
	require.NoError(t, err)

	assert.Equal(t, int32(0), api.calls.Load())
	assert.Equal(t, "6/14/2019", rep.Field("lastSaleDate").DisplayValue)
	assert.Equal(t, "$315,000", rep.Field("lastSalePrice").DisplayValue)
	assert.Equal(t, []string{"lastSalePrice"}, rep.ManualEdits)
	assert.Equal(t, county.Harris, rep.County.Jurisdiction)
	assert.Equal(t, model.StatusFailed, rep.SourceStatus.County.State)
}

func TestRebuild_CountyNoneDiscardsSuppliedCounty(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, nil)
	rep, srcs, err := svc.Rebuild(Request{Address: "1 Main St, Houston, TX", County: "none"}, Sources{
		API:    apiRecord(map[model.Path]string{"assessment.assessedValue": "250000"}),
		County: countyRecord(map[model.Path]string{"assessedValue": "300000"}),
	})
	require.NoError(t, err)

	assert.True(t, srcs.County.IsSkipped())
	assert.Equal(t, model.StatusSkipped, rep.SourceStatus.County.State)
	f := rep.Field("assessedValue")
	assert.Equal(t, "$250,000", f.DisplayValue)
	assert.Equal(t, model.SourceAPI, f.SourceUsed)
	assert.Empty(t, rep.County.Jurisdiction)
}

func TestRebuild_MissingRecordsAreNotSupplied(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, nil)
	rep, srcs, err := svc.Rebuild(Request{Address: "1 Main St, Houston, TX"}, Sources{
		API: model.SourceRecord{ErrorKind: model.KindTimeout},
	})
	require.NoError(t, err)

	assert.Equal(t, model.KindUnavailable, srcs.County.ErrorKind)
	assert.Equal(t, "failed: county record not supplied", rep.SourceStatus.County.String())
	assert.Equal(t, "failed: api: timeout", rep.SourceStatus.API.String())
}

func TestRebuild_NormalizesSuppliedPaths(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, nil)
	rep, _, err := svc.Rebuild(Request{Address: "1 Main St, Houston, TX", County: "none"}, Sources{
		API: model.SourceRecord{OK: true, Provenance: "ATTOM Data", Values: map[model.Path]string{
			"school.elementary[0].schoolName": " Lamar Elementary ",
			"building.rooms.beds":             "  ",
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Lamar Elementary", rep.Field("schoolName").DisplayValue)
	assert.Equal(t, model.SourceNone, rep.Field("beds").SourceUsed)
}

func TestRebuild_Validation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, nil)
	_, _, err := svc.Rebuild(Request{}, Sources{})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestDiagnose(t *testing.T) {
	t.Parallel()

	api := returning("attom", apiRecord(map[model.Path]string{"building.rooms.beds": "3"}))
	hcad := returning("hcad", countyRecord(map[model.Path]string{"bedrooms": "4"}))
	svc := newTestService(t, api, map[string]source.Adapter{county.Harris: hcad})

	d, err := svc.DiagnoseAPI(context.Background(), "1 Main St, Houston, TX")
	require.NoError(t, err)
	assert.Equal(t, "attom", d.Adapter)
	assert.True(t, d.Success)

	d, err = svc.DiagnoseCounty(context.Background(), "1 Main St, Houston, TX", "")
	require.NoError(t, err)
	assert.Equal(t, "hcad", d.Adapter)
	assert.Equal(t, "4", d.Record.Values["bedrooms"])

	d, err = svc.DiagnoseCounty(context.Background(), "1 Main St, Houston, TX", "none")
	require.NoError(t, err)
	assert.False(t, d.Success)
	assert.True(t, d.Record.IsSkipped())

	_, err = svc.DiagnoseAPI(context.Background(), "")
	require.Error(t, err)
}
