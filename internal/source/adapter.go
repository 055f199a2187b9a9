// Package source defines the contract every property data source satisfies
// and the shared strategies adapters are built from.
package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/property-report/internal/model"
)

// Adapter fetches raw field values for an address from one origin.
// Fetch never returns an error: failures are encoded in the record.
type Adapter interface {
	// Name returns the stable adapter identifier (e.g., "attom", "hcad").
	Name() string
	// Fetch looks up the address. Implementations honor ctx cancellation.
	Fetch(ctx context.Context, address string) model.SourceRecord
}

// Guard runs a.Fetch with a deadline. If the deadline passes first, Guard
// returns a timeout record without waiting for the adapter. Panics inside
// the adapter become adapter_error records.
func Guard(ctx context.Context, a Adapter, timeout time.Duration, address string) model.SourceRecord {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan model.SourceRecord, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("source: adapter panic",
					zap.String("adapter", a.Name()),
					zap.Any("panic", r),
				)
				done <- model.Failed(model.KindAdapter, fmt.Sprintf("%s: panic: %v", a.Name(), r))
			}
		}()
		done <- a.Fetch(ctx, address)
	}()

	select {
	case rec := <-done:
		if !rec.OK && rec.ErrorKind == "" {
			rec.ErrorKind = model.KindAdapter
		}
		if !rec.OK && rec.ErrorKind == model.KindAdapter && ctx.Err() == context.DeadlineExceeded {
			rec.ErrorKind = model.KindTimeout
		}
		return rec
	case <-ctx.Done():
		kind := model.KindTimeout
		if ctx.Err() == context.Canceled {
			kind = model.KindAdapter
		}
		zap.L().Warn("source: adapter did not finish",
			zap.String("adapter", a.Name()),
			zap.Duration("timeout", timeout),
			zap.Error(ctx.Err()),
		)
		return model.Failed(kind, fmt.Sprintf("%s: %v after %s", a.Name(), ctx.Err(), timeout))
	}
}

// Func adapts a plain function to the Adapter interface.
type Func struct {
	ID string
	Fn func(ctx context.Context, address string) model.SourceRecord
}

// Name implements Adapter.
func (f Func) Name() string { return f.ID }

// Fetch implements Adapter.
func (f Func) Fetch(ctx context.Context, address string) model.SourceRecord {
	return f.Fn(ctx, address)
}
