// Package attom adapts the ATTOM property API to the source contract.
package attom

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/property-report/internal/model"
	"github.com/sells-group/property-report/internal/source"
	"github.com/sells-group/property-report/pkg/attom"
)

// Name is the adapter identifier.
const Name = "attom"

// Provenance labels values supplied by this adapter.
const Provenance = "ATTOM Data"

// Adapter fetches property detail from ATTOM.
type Adapter struct {
	client     attom.Client
	configured bool
}

// New creates an ATTOM adapter. A nil client or missing key leaves the
// adapter unconfigured: every fetch reports the source as unavailable.
func New(client attom.Client, apiKey string) *Adapter {
	return &Adapter{client: client, configured: client != nil && apiKey != ""}
}

// Name implements source.Adapter.
func (a *Adapter) Name() string { return Name }

// Fetch implements source.Adapter. The split street/locality query is tried
// first, then the whole address as one line.
func (a *Adapter) Fetch(ctx context.Context, address string) model.SourceRecord {
	if !a.configured {
		return model.Failed(model.KindUnavailable, "attom: api key not configured")
	}

	street, locality := SplitAddress(address)
	var candidates []source.Candidate
	if locality != "" {
		candidates = append(candidates, a.candidate("address1+address2", attom.Query{Address1: street, Address2: locality}))
	}
	candidates = append(candidates, a.candidate("address", attom.Query{Address: strings.TrimSpace(address)}))

	values, used, err := source.Chain(ctx, candidates...)
	if err != nil {
		zap.L().Warn("attom: lookup failed",
			zap.String("address", address),
			zap.Error(err),
		)
		return model.FromError(err)
	}
	zap.L().Debug("attom: lookup succeeded",
		zap.String("address", address),
		zap.String("query", used),
		zap.Int("values", len(values)),
	)
	return model.Succeeded(Provenance, values)
}

func (a *Adapter) candidate(name string, q attom.Query) source.Candidate {
	return source.Candidate{
		Name: name,
		Fetch: func(ctx context.Context) (map[model.Path]string, error) {
			raw, err := a.client.PropertyDetail(ctx, q)
			if err != nil {
				return nil, err
			}
			return source.FlattenJSON(raw)
		},
	}
}

// SplitAddress splits at the first comma into street and the remainder
// (city, state, zip). Without a comma the remainder is empty.
func SplitAddress(address string) (street, locality string) {
	street, locality, _ = strings.Cut(address, ",")
	return strings.TrimSpace(street), strings.TrimSpace(locality)
}
