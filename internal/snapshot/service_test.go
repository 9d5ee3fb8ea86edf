package snapshot

import (
	"context"
	"errors"
	"testing"

	clierr "github.com/ggonzalez94/lpman/internal/errors"
	"github.com/ggonzalez94/lpman/internal/model"
)

type stubPositions struct {
	positions []model.Position
	err       error
	calls     int
}

func (s *stubPositions) ActivePositions(ctx context.Context, owner string) ([]model.Position, error) {
	s.calls++
	return s.positions, s.err
}

type stubExtractor struct {
	fields model.ExtractedFields
	err    error
	ids    []string
}

func (s *stubExtractor) Extract(ctx context.Context, positionID string) (model.ExtractedFields, error) {
	s.ids = append(s.ids, positionID)
	return s.fields, s.err
}

func (s *stubExtractor) PositionURL(positionID string) string {
	return "https://pancakeswap.finance/liquidity/" + positionID
}

const owner = "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"

func TestTakeSelectsFirstWithLiquidity(t *testing.T) {
	positions := &stubPositions{positions: []model.Position{
		{ID: "1", Liquidity: "0"},
		{ID: "2", Liquidity: "1500"},
		{ID: "3", Liquidity: "9000"},
	}}
	extractor := &stubExtractor{fields: model.ExtractedFields{Title: "BNB/USDT", MinPrice: 1, MaxPrice: 3, CurrentPrice: 2}}

	snap, err := New(positions, extractor, nil).Take(context.Background(), owner)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if snap.Position.ID != "2" {
		t.Fatalf("expected position 2, got %s", snap.Position.ID)
	}
	if snap.Occupancy != 0.5 {
		t.Fatalf("expected occupancy 0.5, got %v", snap.Occupancy)
	}
	if len(extractor.ids) != 1 || extractor.ids[0] != "2" {
		t.Fatalf("expected one extraction for position 2, got %v", extractor.ids)
	}
	if snap.SourceURL == "" || snap.FetchedAt == "" {
		t.Fatalf("expected source metadata, got %+v", snap)
	}
}

func TestTakeNoPositionsSkipsExtraction(t *testing.T) {
	extractor := &stubExtractor{}
	_, err := New(&stubPositions{}, extractor, nil).Take(context.Background(), owner)
	if !clierr.Is(err, clierr.CodeNoPositions) {
		t.Fatalf("expected no positions, got %v", err)
	}
	if len(extractor.ids) != 0 {
		t.Fatalf("extraction must not run, got %v", extractor.ids)
	}
}

func TestTakePropagatesFailures(t *testing.T) {
	queryErr := clierr.New(clierr.CodeQuery, "subgraph down")
	if _, err := New(&stubPositions{err: queryErr}, &stubExtractor{}, nil).Take(context.Background(), owner); !errors.Is(err, queryErr) {
		t.Fatalf("expected query error, got %v", err)
	}

	positions := &stubPositions{positions: []model.Position{{ID: "7", Liquidity: "1"}}}
	degenerate := &stubExtractor{fields: model.ExtractedFields{MinPrice: 100, MaxPrice: 100, CurrentPrice: 150}}
	if _, err := New(positions, degenerate, nil).Take(context.Background(), owner); !clierr.Is(err, clierr.CodeInvalidRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}

func TestSelectActiveIgnoresUnparsableLiquidity(t *testing.T) {
	_, ok := SelectActive([]model.Position{{ID: "x", Liquidity: ""}, {ID: "y", Liquidity: "abc"}, {ID: "z", Liquidity: "-3"}})
	if ok {
		t.Fatal("expected no selectable position")
	}
}
