// Package snapshot assembles one position snapshot from the indexer and the
// rendered position page.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	clierr "github.com/ggonzalez94/lpman/internal/errors"
	"github.com/ggonzalez94/lpman/internal/metric"
	"github.com/ggonzalez94/lpman/internal/model"
)

type PositionSource interface {
	ActivePositions(ctx context.Context, owner string) ([]model.Position, error)
}

type FieldExtractor interface {
	Extract(ctx context.Context, positionID string) (model.ExtractedFields, error)
	PositionURL(positionID string) string
}

type Service struct {
	positions PositionSource
	extractor FieldExtractor
	logger    *slog.Logger
	now       func() time.Time
}

func New(positions PositionSource, extractor FieldExtractor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{positions: positions, extractor: extractor, logger: logger, now: time.Now}
}

// Take queries the owner's open positions, renders the first one with
// liquidity and derives its range occupancy. An owner without open
// positions yields a CodeNoPositions error and no page is rendered.
func (s *Service) Take(ctx context.Context, owner string) (model.Snapshot, error) {
	positions, err := s.positions.ActivePositions(ctx, owner)
	if err != nil {
		return model.Snapshot{}, err
	}
	s.logger.Info("active positions fetched", "owner", owner, "count", len(positions))

	position, ok := SelectActive(positions)
	if !ok {
		return model.Snapshot{}, clierr.New(clierr.CodeNoPositions, fmt.Sprintf("no active positions for %s", owner))
	}

	fields, err := s.extractor.Extract(ctx, position.ID)
	if err != nil {
		return model.Snapshot{}, err
	}
	occupancy, err := metric.Occupancy(fields.MinPrice, fields.MaxPrice, fields.CurrentPrice)
	if err != nil {
		return model.Snapshot{}, err
	}

	return model.Snapshot{
		Owner:     owner,
		Position:  position,
		Fields:    fields,
		Occupancy: occupancy,
		SourceURL: s.extractor.PositionURL(position.ID),
		FetchedAt: s.now().UTC().Format(time.RFC3339),
	}, nil
}

// SelectActive returns the first position, in the given order, whose
// liquidity parses as a number greater than zero.
func SelectActive(positions []model.Position) (model.Position, bool) {
	for _, p := range positions {
		liquidity, err := decimal.NewFromString(strings.TrimSpace(p.Liquidity))
		if err != nil {
			continue
		}
		if liquidity.IsPositive() {
			return p, true
		}
	}
	return model.Position{}, false
}
