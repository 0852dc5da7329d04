package watermark

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/rdbms"
)

// Store reads the watermark and the candidate (track_id, loaded_at) pairs from the warehouse.
type Store interface {
	// MaxLoadedAt returns MAX(loaded_at) of the downstream table; Valid is false when it is empty.
	MaxLoadedAt(ctx context.Context) (sql.NullTime, error)
	// DistinctTrackLoads returns distinct upstream pairs ordered by loaded_at, track_id.
	// A nil since returns every pair, otherwise only pairs with loaded_at > since.
	DistinctTrackLoads(ctx context.Context, since *time.Time) ([]TrackLoad, error)
}

// SnowflakeStore implements Store with plain SQL over an rdbms.Connector.
type SnowflakeStore struct {
	log        logger.Logger
	conn       rdbms.Connector
	upstream   rdbms.SchemaTable // rows to enrich, e.g. top_tracks
	downstream rdbms.SchemaTable // rows already enriched, e.g. audio_features
}

func NewSnowflakeStore(log logger.Logger, conn rdbms.Connector, upstream rdbms.SchemaTable, downstream rdbms.SchemaTable) *SnowflakeStore {
	return &SnowflakeStore{log: log, conn: conn, upstream: upstream, downstream: downstream}
}

func getMaxLoadedAtSql(downstream rdbms.SchemaTable) string {
	return fmt.Sprintf("SELECT MAX(loaded_at) FROM %v", downstream)
}

func getDistinctTrackLoadsSql(upstream rdbms.SchemaTable, withWatermark bool) string {
	where := ""
	if withWatermark {
		where = " WHERE loaded_at > ?"
	}
	return fmt.Sprintf("SELECT DISTINCT track_id, loaded_at FROM %v%v ORDER BY loaded_at, track_id", upstream, where)
}

func (s *SnowflakeStore) MaxLoadedAt(ctx context.Context) (sql.NullTime, error) {
	var wm sql.NullTime
	q := getMaxLoadedAtSql(s.downstream)
	err := rdbms.SqlQuery(ctx, s.log, s.conn, q, nil, func(rows rdbms.Rows) error {
		return rows.Scan(&wm)
	})
	if err != nil {
		return sql.NullTime{}, &WarehouseQueryError{Query: q, Err: err}
	}
	return wm, nil
}

func (s *SnowflakeStore) DistinctTrackLoads(ctx context.Context, since *time.Time) ([]TrackLoad, error) {
	q := getDistinctTrackLoadsSql(s.upstream, since != nil)
	var args []interface{}
	if since != nil {
		args = append(args, *since)
	}
	loads := make([]TrackLoad, 0)
	err := rdbms.SqlQuery(ctx, s.log, s.conn, q, args, func(rows rdbms.Rows) error {
		var tl TrackLoad
		if err := rows.Scan(&tl.TrackID, &tl.LoadedAt); err != nil {
			return err
		}
		loads = append(loads, tl)
		return nil
	})
	if err != nil {
		return nil, &WarehouseQueryError{Query: q, Err: err}
	}
	return loads, nil
}
