package source

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-report/internal/model"
)

// Candidate is one attempt in an ordered fallback chain, e.g. one URL or one
// query shape against the same origin.
type Candidate struct {
	Name  string
	Fetch func(ctx context.Context) (map[model.Path]string, error)
}

// Chain tries candidates in order and returns the first success along with
// the name of the candidate that produced it. A candidate succeeds when it
// returns no error and at least one value.
func Chain(ctx context.Context, candidates ...Candidate) (map[model.Path]string, string, error) {
	var errs []string
	var lastErr error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, "", eris.Wrap(err, "source: chain interrupted")
		}
		values, err := c.Fetch(ctx)
		if err == nil && len(values) > 0 {
			return values, c.Name, nil
		}
		if err == nil {
			err = eris.Errorf("%s: no data", c.Name)
		}
		zap.L().Debug("source: candidate failed, trying next",
			zap.String("candidate", c.Name),
			zap.Error(err),
		)
		lastErr = err
		errs = append(errs, err.Error())
	}
	if lastErr == nil {
		return nil, "", eris.New("source: no candidates")
	}
	if ctx.Err() != nil {
		return nil, "", eris.Wrap(ctx.Err(), strings.Join(errs, "; "))
	}
	return nil, "", eris.Wrap(lastErr, "source: all candidates failed: "+strings.Join(errs, "; "))
}

// Ordered composes adapters into one adapter that returns the first OK
// record. When all fail, the messages are joined and the kind of the last
// failure is kept.
type Ordered struct {
	name     string
	adapters []Adapter
}

// NewOrdered creates an Ordered adapter. Adapters are tried in the given order.
func NewOrdered(name string, adapters ...Adapter) *Ordered {
	return &Ordered{name: name, adapters: adapters}
}

// Name implements Adapter.
func (o *Ordered) Name() string { return o.name }

// Fetch implements Adapter.
func (o *Ordered) Fetch(ctx context.Context, address string) model.SourceRecord {
	if len(o.adapters) == 0 {
		return model.Failed(model.KindUnavailable, o.name+": no adapters configured")
	}
	var msgs []string
	var last model.SourceRecord
	for _, a := range o.adapters {
		if ctx.Err() != nil {
			return model.FromError(ctx.Err())
		}
		rec := a.Fetch(ctx, address)
		if rec.OK {
			return rec
		}
		zap.L().Debug("source: adapter failed, trying next",
			zap.String("chain", o.name),
			zap.String("adapter", a.Name()),
			zap.String("kind", string(rec.ErrorKind)),
			zap.String("message", rec.Message),
		)
		last = rec
		msgs = append(msgs, a.Name()+": "+rec.Message)
	}
	last.Message = strings.Join(msgs, "; ")
	return last
}
