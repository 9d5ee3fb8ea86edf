package report

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/ggonzalez94/lpman/internal/metric"
	"github.com/ggonzalez94/lpman/internal/model"
)

// Format renders a snapshot as a Telegram HTML message. Every line is
// always present, whatever the values look like.
func Format(s model.Snapshot) string {
	f := s.Fields
	var b strings.Builder
	fmt.Fprintf(&b, "Here is the liquidity provider 🗄️ positions for address %s:\n\n", html.EscapeString(s.Owner))
	fmt.Fprintf(&b, "💰 <b>%s (%s)</b>:\n", html.EscapeString(f.Title), html.EscapeString(f.Info))
	fmt.Fprintf(&b, "Liquidity: %s\n", html.EscapeString(f.Liquidity))
	fmt.Fprintf(&b, "APR: %s\n", html.EscapeString(f.APR))
	fmt.Fprintf(&b, "Unclaimed fees: %s\n", html.EscapeString(f.UnclaimedFees))
	fmt.Fprintf(&b, "Price range: %s — %s\n", Number(f.MinPrice), Number(f.MaxPrice))
	fmt.Fprintf(&b, "Current price: %s (%s%%)\n", Number(f.CurrentPrice), Number(metric.Percent(s.Occupancy)))
	return b.String()
}

// Number prints v in its shortest exact decimal form: 2 not 2.000000.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
