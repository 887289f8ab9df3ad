package search

import (
	"context"
	"log/slog"
)

// Service is the facade the rest of the app talks to. It prefers
// Meilisearch and falls back to Postgres. A nil *Service is valid and
// means search is disabled entirely; every method tolerates it, so the
// core never has to care whether search is configured.
type Service struct {
	meili    *Meili
	fallback *PgFallback
}

// NewService creates the facade. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, fallback *PgFallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

func (s *Service) Search(ctx context.Context, q Query) ([]Result, error) {
	if s == nil {
		return []Result{}, nil
	}
	if s.meili != nil && s.meili.Healthy() {
		results, err := s.meili.Search(q)
		if err == nil {
			return nonNil(results), nil
		}
		slog.Warn("meilisearch error, falling back to postgres", "err", err)
	}
	if s.fallback == nil {
		return []Result{}, nil
	}
	results, err := s.fallback.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return nonNil(results), nil
}

// IndexItem pushes one item into the index, fire and forget.
func (s *Service) IndexItem(rec Record) {
	if s == nil || s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexItems([]Record{rec}); err != nil {
			slog.Warn("index item", "item", rec.ID, "err", err)
		}
	}()
}

// RemoveItem drops an item from the index, fire and forget.
func (s *Service) RemoveItem(id string) {
	if s == nil || s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteItem(id); err != nil {
			slog.Warn("remove item from index", "item", id, "err", err)
		}
	}()
}

// ReindexAll replaces the index contents with the given records.
func (s *Service) ReindexAll(records []Record) {
	if s == nil || s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	if err := s.meili.IndexItems(records); err != nil {
		slog.Warn("reindex items", "err", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
