package report

import (
	"strings"
	"testing"

	"github.com/ggonzalez94/lpman/internal/model"
)

func snapshot(min, max, current, occupancy float64) model.Snapshot {
	return model.Snapshot{
		Owner: "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984",
		Fields: model.ExtractedFields{
			Title:         "BNB/USDT",
			Info:          "V3 LP #991",
			Liquidity:     "$1,234.56",
			UnclaimedFees: "$3.21",
			APR:           "12.4%",
			MinPrice:      min,
			MaxPrice:      max,
			CurrentPrice:  current,
		},
		Occupancy: occupancy,
	}
}

func TestFormatInRange(t *testing.T) {
	msg := Format(snapshot(1, 3, 2, 0.5))
	for _, want := range []string{
		"for address 0x1f9840a85d5af5bf1d1762f925bdaddc4201f984:",
		"<b>BNB/USDT (V3 LP #991)</b>",
		"Liquidity: $1,234.56",
		"APR: 12.4%",
		"Unclaimed fees: $3.21",
		"Price range: 1 — 3",
		"Current price: 2 (50%)",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in message:\n%s", want, msg)
		}
	}
}

func TestFormatOutOfRangeIsReportedAsIs(t *testing.T) {
	msg := Format(snapshot(100, 200, 250, 1.5))
	if !strings.Contains(msg, "Current price: 250 (150%)") {
		t.Fatalf("expected unclamped percentage:\n%s", msg)
	}
	msg = Format(snapshot(100, 200, 50, -0.5))
	if !strings.Contains(msg, "Current price: 50 (-50%)") {
		t.Fatalf("expected negative percentage:\n%s", msg)
	}
}

func TestFormatEscapesPageText(t *testing.T) {
	s := snapshot(1, 3, 2, 0.5)
	s.Fields.Title = "<script>&"
	msg := Format(s)
	if strings.Contains(msg, "<script>") || !strings.Contains(msg, "&lt;script&gt;&amp;") {
		t.Fatalf("expected escaped title:\n%s", msg)
	}
}

func TestNumber(t *testing.T) {
	if got := Number(0.000123); got != "0.000123" {
		t.Fatalf("unexpected: %s", got)
	}
	if got := Number(33.33); got != "33.33" {
		t.Fatalf("unexpected: %s", got)
	}
}
