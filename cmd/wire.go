package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-report/internal/config"
	"github.com/sells-group/property-report/internal/county"
	"github.com/sells-group/property-report/internal/model"
	"github.com/sells-group/property-report/internal/report"
	"github.com/sells-group/property-report/internal/resilience"
	"github.com/sells-group/property-report/internal/schema"
	"github.com/sells-group/property-report/internal/source"
	attomsrc "github.com/sells-group/property-report/internal/source/attom"
	"github.com/sells-group/property-report/internal/source/cad"
	"github.com/sells-group/property-report/pkg/attom"
)

// loadSchema returns the configured field schema, or the embedded default.
func loadSchema(c *config.Config) (*model.Schema, error) {
	return schema.Load(c.Report.SchemaPath)
}

// initService builds every adapter from config and the report service on top.
func initService(c *config.Config) (*report.Service, error) {
	sch, err := loadSchema(c)
	if err != nil {
		return nil, eris.Wrap(err, "load schema")
	}

	retry := resilience.PolicyFrom(
		c.Retry.MaxAttempts,
		c.Retry.InitialBackoffMs,
		c.Retry.MaxBackoffMs,
		c.Retry.Multiplier,
		c.Retry.JitterFraction,
	)
	attomClient := attom.NewClient(c.Attom.APIKey,
		attom.WithBaseURL(c.Attom.BaseURL),
		attom.WithRetryPolicy(retry),
	)
	api := attomsrc.New(attomClient, c.Attom.APIKey)
	if c.Attom.APIKey == "" {
		zap.L().Warn("attom api key not configured; api source will report unavailable")
	}

	counties, err := initCounties(c)
	if err != nil {
		return nil, err
	}

	return report.NewService(sch, api, counties,
		report.WithAPITimeout(c.AttomTimeout()),
		report.WithCountyTimeout(c.CountyTimeout()),
	), nil
}

func initCounties(c *config.Config) (map[string]source.Adapter, error) {
	site := func(baseURL string) cad.Config {
		return cad.Config{
			BaseURL:     baseURL,
			UserAgent:   c.County.UserAgent,
			Timeout:     countyRequestTimeout(c.CountyTimeout()),
			MinInterval: c.CountyMinInterval(),
		}
	}

	hcad, err := cad.NewHCAD(site(c.County.HCAD.BaseURL))
	if err != nil {
		return nil, eris.Wrap(err, "init hcad")
	}
	fbcad, err := cad.NewFBCAD(site(c.County.FBCAD.BaseURL))
	if err != nil {
		return nil, eris.Wrap(err, "init fbcad")
	}
	return map[string]source.Adapter{
		county.Harris:   hcad,
		county.FortBend: fbcad,
	}, nil
}

// countyRequestTimeout bounds a single page load to a third of the whole
// county deadline, so a search and a detail page both fit.
func countyRequestTimeout(total time.Duration) time.Duration {
	per := total / 3
	if per < 5*time.Second {
		per = 5 * time.Second
	}
	return per
}
