package app

import (
	"context"
	"time"

	clierr "github.com/ggonzalez94/lpman/internal/errors"
	"github.com/ggonzalez94/lpman/internal/model"
	"github.com/ggonzalez94/lpman/internal/snapshot"
)

// Source names reported in the envelope meta.
const (
	sourceSubgraph = "subgraph"
	sourceBrowser  = "browser"
)

func (s *runtimeState) record(name string, start time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, model.SourceTrace{
		Name:      name,
		Status:    statusFromErr(err),
		LatencyMS: time.Since(start).Milliseconds(),
	})
}

func (s *runtimeState) takeSources() []model.SourceTrace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sources
	s.sources = nil
	return out
}

func statusFromErr(err error) string {
	if err == nil {
		return "ok"
	}
	switch clierr.CodeOf(err) {
	case clierr.CodeTimeout:
		return "timeout"
	case clierr.CodeQuery, clierr.CodeExtraction:
		return "error"
	default:
		return clierr.CodeOf(err).String()
	}
}

type tracedPositions struct {
	state *runtimeState
	next  snapshot.PositionSource
}

func (s *runtimeState) tracedPositions() snapshot.PositionSource {
	return tracedPositions{state: s, next: s.positions}
}

func (t tracedPositions) ActivePositions(ctx context.Context, owner string) ([]model.Position, error) {
	start := time.Now()
	positions, err := t.next.ActivePositions(ctx, owner)
	t.state.record(sourceSubgraph, start, err)
	return positions, err
}

type tracedExtractor struct {
	state *runtimeState
	next  snapshot.FieldExtractor
}

func (s *runtimeState) tracedExtractor() snapshot.FieldExtractor {
	return tracedExtractor{state: s, next: s.extractor}
}

func (t tracedExtractor) Extract(ctx context.Context, positionID string) (model.ExtractedFields, error) {
	start := time.Now()
	fields, err := t.next.Extract(ctx, positionID)
	t.state.record(sourceBrowser, start, err)
	return fields, err
}

func (t tracedExtractor) PositionURL(positionID string) string {
	return t.next.PositionURL(positionID)
}
