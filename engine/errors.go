package engine

import (
	"context"
	"errors"

	"github.com/use-agent/authcrawl/models"
)

// ClassifyRenderError wraps a raw backend error into a per-URL ScrapeError.
// Errors that already carry a code keep it. The input is never modified:
// a bare ScrapeError is copied before its URL is filled in, and a wrapped
// one is re-wrapped whole so the outer chain survives.
func ClassifyRenderError(err error, url, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		if direct, ok := err.(*models.ScrapeError); ok {
			if direct.URL != "" {
				return direct
			}
			cp := *direct
			cp.URL = url
			return &cp
		}
		return models.NewRenderError(se.Code, url, msg, err)
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewRenderError(models.ErrCodeTimeout, url, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewRenderError(models.ErrCodeTimeout, url, "render canceled", err)
	default:
		return models.NewRenderError(models.ErrCodeNavigation, url, msg, err)
	}
}

func lifecycleError(msg string) *models.ScrapeError {
	return models.NewScrapeError(models.ErrCodeEngineLifecycle, msg, nil)
}
