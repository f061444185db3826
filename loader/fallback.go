package loader

import (
	"context"
	"errors"
	"log/slog"
)

// FallbackSource tries Primary first and asks Secondary only when Primary
// reports ErrNotFound. Any other Primary error is returned as is.
type FallbackSource struct {
	Primary   Source
	Secondary Source
	logger    *slog.Logger
}

// NewFallbackSource chains two sources.
func NewFallbackSource(primary, secondary Source, logger *slog.Logger) *FallbackSource {
	return &FallbackSource{Primary: primary, Secondary: secondary, logger: logger}
}

// Chain folds sources into nested fallbacks, first source tried first.
func Chain(logger *slog.Logger, sources ...Source) Source {
	if len(sources) == 0 {
		return nil
	}
	src := sources[len(sources)-1]
	for i := len(sources) - 2; i >= 0; i-- {
		src = NewFallbackSource(sources[i], src, logger)
	}
	return src
}

// Fetch implements Source.
func (s *FallbackSource) Fetch(ctx context.Context, key string) (*Table, error) {
	tbl, err := s.Primary.Fetch(ctx, key)
	if !errors.Is(err, ErrNotFound) {
		return tbl, err
	}
	s.logger.Debug("dataset not in primary source, falling back", "key", key)
	return s.Secondary.Fetch(ctx, key)
}
