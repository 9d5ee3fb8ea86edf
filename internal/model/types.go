package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string        `json:"request_id"`
	Timestamp time.Time     `json:"timestamp"`
	Command   string        `json:"command"`
	Sources   []SourceTrace `json:"sources,omitempty"`
}

// SourceTrace records one external data source touched while serving a command.
type SourceTrace struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

// Position is an open liquidity position as reported by the indexer.
// Amounts are kept as the indexer's decimal strings.
type Position struct {
	ID                       string `json:"id"`
	Owner                    string `json:"owner"`
	Liquidity                string `json:"liquidity"`
	DepositedToken0          string `json:"depositedToken0"`
	DepositedToken1          string `json:"depositedToken1"`
	WithdrawnToken0          string `json:"withdrawnToken0"`
	WithdrawnToken1          string `json:"withdrawnToken1"`
	CollectedFeesToken0      string `json:"collectedFeesToken0"`
	CollectedFeesToken1      string `json:"collectedFeesToken1"`
	FeeGrowthInside0LastX128 string `json:"feeGrowthInside0LastX128"`
	FeeGrowthInside1LastX128 string `json:"feeGrowthInside1LastX128"`
}

// ExtractedFields is the text read from the position detail page. The three
// prices are also carried parsed.
type ExtractedFields struct {
	Title         string  `json:"title"`
	Info          string  `json:"info"`
	Liquidity     string  `json:"liquidity"`
	UnclaimedFees string  `json:"unclaimed_fees"`
	APR           string  `json:"apr"`
	MinPriceText  string  `json:"min_price_text"`
	MaxPriceText  string  `json:"max_price_text"`
	CurrentText   string  `json:"current_price_text"`
	MinPrice      float64 `json:"min_price"`
	MaxPrice      float64 `json:"max_price"`
	CurrentPrice  float64 `json:"current_price"`
}

type Snapshot struct {
	Owner     string          `json:"owner"`
	Position  Position        `json:"position"`
	Fields    ExtractedFields `json:"fields"`
	Occupancy float64         `json:"occupancy"`
	SourceURL string          `json:"source_url"`
	FetchedAt string          `json:"fetched_at"`
}

// SnapshotReport is the CLI payload for the snapshot command.
type SnapshotReport struct {
	Snapshot Snapshot `json:"snapshot"`
	Report   string   `json:"report"`
}
