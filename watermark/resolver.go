// Package watermark decides which upstream tracks still need audio features.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/outcome"
)

// TrackLoad is one track id together with the load it arrived in.
type TrackLoad struct {
	TrackID  string    `json:"track_id"`
	LoadedAt time.Time `json:"loaded_at"`
}

// WarehouseQueryError is a soft failure to read the watermark or the candidate rows.
type WarehouseQueryError struct {
	Query string
	Err   error
}

func (e *WarehouseQueryError) Error() string {
	return fmt.Sprintf("warehouse query failed: %v", e.Err)
}

func (e *WarehouseQueryError) Unwrap() error { return e.Err }

type Resolver struct {
	log   logger.Logger
	store Store
	mode  string
}

// NewResolver returns a Resolver using dedupeMode "load" or "track"; an empty mode means "load".
func NewResolver(log logger.Logger, store Store, dedupeMode string) (*Resolver, error) {
	switch dedupeMode {
	case "":
		dedupeMode = constants.DedupeModeLoad
	case constants.DedupeModeLoad, constants.DedupeModeTrack:
	default:
		return nil, fmt.Errorf("unsupported dedupe mode %q", dedupeMode)
	}
	return &Resolver{log: log, store: store, mode: dedupeMode}, nil
}

// ResolveNewTrackIds returns the upstream pairs newer than the downstream watermark, or every pair
// when the downstream table holds no rows. Warehouse errors give a Failed result.
func (r *Resolver) ResolveNewTrackIds(ctx context.Context) outcome.Result[TrackLoad] {
	wm, err := r.store.MaxLoadedAt(ctx)
	if err != nil {
		r.log.Error("error reading watermark: ", err)
		return outcome.Failure[TrackLoad](asQueryError(err))
	}
	var since *time.Time
	if wm.Valid {
		since = &wm.Time
		r.log.Info("resolving tracks loaded after watermark ", wm.Time.Format(time.RFC3339))
	} else {
		r.log.Info("no watermark found, resolving all tracks")
	}
	loads, err := r.store.DistinctTrackLoads(ctx, since)
	if err != nil {
		r.log.Error("error reading new tracks: ", err)
		return outcome.Failure[TrackLoad](asQueryError(err))
	}
	if r.mode == constants.DedupeModeTrack {
		loads = latestPerTrack(loads)
	}
	r.log.Info("resolved ", len(loads), " track loads (dedupe mode ", r.mode, ")")
	return outcome.Success(loads)
}

// latestPerTrack keeps one pair per track id, the one with the greatest loaded_at, and orders the
// result by loaded_at, track_id.
func latestPerTrack(loads []TrackLoad) []TrackLoad {
	latest := make(map[string]TrackLoad, len(loads))
	for _, tl := range loads {
		if cur, ok := latest[tl.TrackID]; !ok || tl.LoadedAt.After(cur.LoadedAt) {
			latest[tl.TrackID] = tl
		}
	}
	retval := make([]TrackLoad, 0, len(latest))
	for _, tl := range latest {
		retval = append(retval, tl)
	}
	sort.Slice(retval, func(i, j int) bool {
		if !retval[i].LoadedAt.Equal(retval[j].LoadedAt) {
			return retval[i].LoadedAt.Before(retval[j].LoadedAt)
		}
		return retval[i].TrackID < retval[j].TrackID
	})
	return retval
}

func asQueryError(err error) error {
	var qe *WarehouseQueryError
	if errors.As(err, &qe) {
		return err
	}
	return &WarehouseQueryError{Err: err}
}

// TrackIDs returns the ids of loads in order.
func TrackIDs(loads []TrackLoad) []string {
	ids := make([]string, len(loads))
	for i, tl := range loads {
		ids[i] = tl.TrackID
	}
	return ids
}
