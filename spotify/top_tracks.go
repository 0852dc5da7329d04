package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/relloyd/trackpipe/outcome"
	"golang.org/x/oauth2"
)

// FetchTopTracks calls the top tracks endpoint once and normalises each item into a TrackRow.
// Upstream order is preserved and no item is filtered out.
// Failures are soft: the result is Failed with an *UpstreamFetchError, never a returned error.
func (c *Client) FetchTopTracks(ctx context.Context, token *oauth2.Token, limit int, timeRange string) outcome.Result[TrackRow] {
	q := url.Values{}
	q.Set("time_range", timeRange)
	q.Set("limit", fmt.Sprint(limit))
	u := fmt.Sprintf("%v/me/top/tracks?%v", strings.TrimRight(c.baseURL, "/"), q.Encode())
	body, err := c.get(ctx, c.bearerClient(ctx, token), endpointTopTracks, u)
	if err != nil {
		c.log.Error("error fetching top tracks: ", err)
		return outcome.Failure[TrackRow](err)
	}
	rows, err := normaliseTopTracks(body)
	if err != nil {
		c.log.Error("error decoding top tracks: ", err)
		return outcome.Failure[TrackRow](&UpstreamFetchError{Endpoint: endpointTopTracks, Err: err})
	}
	c.log.Info("fetched ", len(rows), " top tracks")
	return outcome.Success(rows)
}

func normaliseTopTracks(body []byte) ([]TrackRow, error) {
	var resp topTracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	rows := make([]TrackRow, 0, len(resp.Items))
	for _, item := range resp.Items {
		artists := make([]string, 0, len(item.Artists))
		for _, a := range item.Artists {
			artists = append(artists, a.Name)
		}
		rows = append(rows, TrackRow{
			ArtistsName: strings.Join(artists, ", "),
			TrackName:   item.Name,
			TrackID:     item.ID,
			Popularity:  item.Popularity,
		})
	}
	return rows, nil
}
