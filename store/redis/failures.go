package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/syndicate"
	"github.com/xraph/syndicate/failure"
	"github.com/xraph/syndicate/id"
)

// PushFailure writes a terminal failure record and indexes it by failure time.
func (s *Store) PushFailure(ctx context.Context, rec *failure.Record) error {
	raw, err := marshalEntity(rec)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, entityKey(prefixFailure, rec.ID.String()), raw, 0)
	pipe.ZAdd(ctx, zFailureAll, goredis.Z{
		Score:  scoreFromTime(rec.FailedAt),
		Member: rec.ID.String(),
	})
	_, err = pipe.Exec(ctx)
	return err
}

// GetFailure returns a record by ID.
func (s *Store) GetFailure(ctx context.Context, failureID id.ID) (*failure.Record, error) {
	var rec failure.Record
	if err := s.getEntity(ctx, entityKey(prefixFailure, failureID.String()), &rec); err != nil {
		if isRedisNil(err) {
			return nil, syndicate.ErrFailureNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListFailures returns records newest first, optionally filtered.
func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Record, error) {
	ids, err := s.rdb.ZRevRange(ctx, zFailureAll, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var result []*failure.Record
	for _, fid := range ids {
		var rec failure.Record
		if err := s.getEntity(ctx, entityKey(prefixFailure, fid), &rec); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.Owner != "" && rec.Owner != opts.Owner {
			continue
		}
		if opts.Target != "" && rec.Target != opts.Target {
			continue
		}
		if opts.From != nil && rec.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && rec.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, &rec)
	}

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// PurgeFailures deletes records older than a threshold.
func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	cutoff := strconv.FormatFloat(scoreFromTime(before), 'f', -1, 64)
	ids, err := s.rdb.ZRangeByScore(ctx, zFailureAll, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + cutoff,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.rdb.TxPipeline()
	for _, fid := range ids {
		pipe.Del(ctx, entityKey(prefixFailure, fid))
		pipe.ZRem(ctx, zFailureAll, fid)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

// CountFailures returns the total number of records.
func (s *Store) CountFailures(ctx context.Context) (int64, error) {
	return s.rdb.ZCard(ctx, zFailureAll).Result()
}
