package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ggonzalez94/lpman/internal/address"
	clierr "github.com/ggonzalez94/lpman/internal/errors"
	"github.com/ggonzalez94/lpman/internal/httpx"
	"github.com/ggonzalez94/lpman/internal/model"
)

const DefaultEndpoint = "https://thegraph.pancakeswap.com/exchange-v3-bsc"

// PageSize matches the page size fixed in activePositionsQuery; there is no
// pagination.
const PageSize = 5

const activePositionsQuery = `query activePositions($owner: Bytes!) {
  positions(first: 5, where: { owner: $owner, liquidity_gt: "0" }) {
    id
    liquidity
    owner
    depositedToken0
    depositedToken1
    withdrawnToken0
    withdrawnToken1
    collectedFeesToken0
    collectedFeesToken1
    feeGrowthInside0LastX128
    feeGrowthInside1LastX128
  }
}`

type Client struct {
	http     *httpx.Client
	endpoint string
}

func New(httpClient *httpx.Client, endpoint string) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{http: httpClient, endpoint: endpoint}
}

type positionsResponse struct {
	Data *struct {
		Positions []model.Position `json:"positions"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ActivePositions returns up to PageSize positions with non-zero liquidity
// owned by owner, in the indexer's default order.
func (c *Client) ActivePositions(ctx context.Context, owner string) ([]model.Position, error) {
	if !address.Valid(owner) {
		return nil, clierr.New(clierr.CodeValidation, "invalid owner address")
	}
	body, err := json.Marshal(map[string]any{
		"operationName": "activePositions",
		"query":         activePositionsQuery,
		"variables": map[string]any{
			"owner": address.QueryForm(owner),
		},
	})
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "marshal positions query", err)
	}

	var resp positionsResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.endpoint, body, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, clierr.New(clierr.CodeQuery, fmt.Sprintf("subgraph graphql error: %s", resp.Errors[0].Message))
	}
	if resp.Data == nil || resp.Data.Positions == nil {
		return nil, clierr.New(clierr.CodeQuery, "subgraph response missing positions")
	}

	out := resp.Data.Positions
	if len(out) > PageSize {
		out = out[:PageSize]
	}
	for i, p := range out {
		if strings.TrimSpace(p.ID) == "" {
			return nil, clierr.New(clierr.CodeQuery, fmt.Sprintf("subgraph position %d has no id", i))
		}
	}
	return out, nil
}
