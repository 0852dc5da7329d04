package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/relloyd/trackpipe/outcome"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

var (
	errNotAnObject  = errors.New("response is not a JSON object")
	errEmptyFeature = errors.New("response is an empty JSON object")
)

// FeatureBatch is the result of FetchAudioFeatures: the rows fetched plus the ids that were skipped.
type FeatureBatch struct {
	outcome.Result[AudioFeatureRow]
	Failures []*PerItemFetchError
}

// FetchAudioFeatures issues one request per id, at most FeatureConcurrency at a time.
// A failed id is logged and skipped. Rows keep the input order of the ids that succeeded.
func (c *Client) FetchAudioFeatures(ctx context.Context, ids []string, token *oauth2.Token) FeatureBatch {
	hc := c.bearerClient(ctx, token)
	base := strings.TrimRight(c.baseURL, "/")
	docs := make([]string, len(ids))
	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			body, err := c.get(ctx, hc, endpointAudioFeatures, fmt.Sprintf("%v/audio-features/%v", base, url.PathEscape(id)))
			if err == nil {
				docs[i], err = compactObject(body)
			}
			errs[i] = err
			return nil // per-item failures never cancel the batch
		})
	}
	_ = g.Wait()
	rows := make([]AudioFeatureRow, 0, len(ids))
	var failures []*PerItemFetchError
	for i, id := range ids {
		if errs[i] != nil {
			c.log.Warn("skipping audio features for track ", id, ": ", errs[i])
			failures = append(failures, &PerItemFetchError{TrackID: id, Err: errs[i]})
			continue
		}
		rows = append(rows, AudioFeatureRow{TrackID: id, Document: docs[i]})
	}
	c.log.Info("fetched audio features for ", len(rows), " of ", len(ids), " tracks")
	return FeatureBatch{Result: outcome.Success(rows), Failures: failures}
}

// compactObject validates that body is a non-empty JSON object and returns it without insignificant whitespace.
func compactObject(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", errNotAnObject
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", err
	}
	if buf.String() == "{}" {
		return "", errEmptyFeature
	}
	return buf.String(), nil
}
