package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"weather-agent/internal/models"
)

// DefaultEnrichTimeout bounds a single rewrite call
const DefaultEnrichTimeout = 5 * time.Second

var (
	// ErrNoEnricher means enrichment is not configured
	ErrNoEnricher = errors.New("no enricher configured")
	// ErrEmptyRewrite means the enricher returned a blank title or body
	ErrEmptyRewrite = errors.New("enricher returned an empty rewrite")
)

// Enricher rewrites an alert's title and body
type Enricher interface {
	Rewrite(ctx context.Context, alert models.CandidateAlert) (models.Rewrite, error)
}

// EnricherFunc adapts a function to the Enricher interface
type EnricherFunc func(ctx context.Context, alert models.CandidateAlert) (models.Rewrite, error)

func (f EnricherFunc) Rewrite(ctx context.Context, alert models.CandidateAlert) (models.Rewrite, error) {
	return f(ctx, alert)
}

// Enrich asks e to rewrite alert within timeout.
// The returned alert is always usable: on any failure it is the original
// alert unchanged and the error says why enrichment was skipped.
func Enrich(ctx context.Context, e Enricher, alert models.CandidateAlert, timeout time.Duration) (models.CandidateAlert, error) {
	if e == nil {
		return alert, ErrNoEnricher
	}
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		rewrite models.Rewrite
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("enricher panicked: %v", r)}
			}
		}()
		rewrite, err := e.Rewrite(ctx, alert)
		done <- outcome{rewrite: rewrite, err: err}
	}()

	select {
	case <-ctx.Done():
		return alert, fmt.Errorf("enrichment: %w", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return alert, fmt.Errorf("enrichment: %w", out.err)
		}
		title := strings.TrimSpace(out.rewrite.Title)
		body := strings.TrimSpace(out.rewrite.Body)
		if title == "" || body == "" {
			return alert, ErrEmptyRewrite
		}

		enriched := alert
		enriched.Title = title
		enriched.Message = body
		return enriched, nil
	}
}
