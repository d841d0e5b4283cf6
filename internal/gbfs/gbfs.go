// Package gbfs flattens GBFS free_bike_status feeds into a tabular frame.
//
// Fetching is deliberately forgiving: feeds are read sequentially and every
// per-feed failure (connect error, non-200 status, unexpected payload shape)
// is logged and skipped, so one bad feed never aborts the batch. The caller
// only sees a possibly-incomplete combined frame.
package gbfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/citygrid/hexdensity/internal/dataset"
	"github.com/citygrid/hexdensity/internal/observability"
)

// DefaultFeeds are public free_bike_status endpoints for Los Angeles.
var DefaultFeeds = []string{
	"https://mds.bird.co/gbfs/v2/public/los-angeles/free_bike_status.json",
	"https://s3.amazonaws.com/lyft-lastmile-production-iad/lbs/lax/free_bike_status.json",
	"https://gbfs.spin.pm/api/gbfs/v2_2/los_angeles/free_bike_status",
}

type Client struct {
	http *http.Client
	log  zerolog.Logger
}

func New(httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, log: log}
}

// FreeBikeStatus fetches every feed and concatenates all bike records into
// one frame. A nil feed list means DefaultFeeds.
func (c *Client) FreeBikeStatus(ctx context.Context, feeds []string) *dataset.Frame {
	if feeds == nil {
		feeds = DefaultFeeds
	}

	out := dataset.New(nil, nil)
	for _, feed := range feeds {
		rows, err := c.fetchOne(ctx, feed)
		if err != nil {
			c.log.Warn().Err(err).Str("feed", feed).Msg("skipping feed")
			continue
		}
		observability.IncFeedFetch("ok")
		observability.AddFeedRecords(len(rows))
		out.Append(rows...)
	}
	return out
}

func (c *Client) fetchOne(ctx context.Context, feed string) ([]dataset.Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed, nil)
	if err != nil {
		observability.IncFeedFetch("connect_error")
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.IncFeedFetch("connect_error")
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		observability.IncFeedFetch("bad_status")
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	// bikes must be present and an array; a null or absent list is a shape
	// failure, an empty array is a valid empty feed
	var payload struct {
		Data struct {
			Bikes *[]map[string]any `json:"bikes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		observability.IncFeedFetch("bad_shape")
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if payload.Data.Bikes == nil {
		observability.IncFeedFetch("bad_shape")
		return nil, fmt.Errorf("no bike list in payload")
	}

	rows := make([]dataset.Row, 0, len(*payload.Data.Bikes))
	for _, bike := range *payload.Data.Bikes {
		rows = append(rows, dataset.Row(bike))
	}
	return rows, nil
}
