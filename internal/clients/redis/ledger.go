package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Ledger keeps pending partial links in a hash (id -> record JSON) and a
// sorted set ordered by first-recorded time.
type Ledger struct {
	log   *logger.Logger
	rdb   *goredis.Client
	hash  string
	queue string
}

func NewLedger(opts Options, log *logger.Logger) (*Ledger, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	prefix := strings.TrimSpace(opts.KeyPrefix)
	if prefix == "" {
		prefix = "catalog:partial_links"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Ledger{
		log:   log.With("service", "RedisPartialLinkLedger"),
		rdb:   rdb,
		hash:  prefix + ":records",
		queue: prefix + ":pending",
	}, nil
}

const recordRetries = 3

// Record inserts rec. For a known id it keeps the first RecordedAt and queue
// position, and the attempt count never goes down.
func (l *Ledger) Record(ctx context.Context, rec aggregates.PartialLinkRecord) error {
	if l == nil || l.rdb == nil {
		return fmt.Errorf("redis ledger not initialized")
	}
	if rec.ID == "" {
		return fmt.Errorf("record id required")
	}
	var err error
	for i := 0; i < recordRetries; i++ {
		err = l.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			merged, err := l.merge(ctx, tx, rec)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(merged)
			if err != nil {
				return err
			}
			score := float64(merged.RecordedAt.UnixMilli())
			_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
				p.HSet(ctx, l.hash, merged.ID, raw)
				p.ZAddNX(ctx, l.queue, goredis.Z{Score: score, Member: merged.ID})
				return nil
			})
			return err
		}, l.hash)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("redis record partial link: %w", err)
	}
	return nil
}

func (l *Ledger) merge(ctx context.Context, tx *goredis.Tx, rec aggregates.PartialLinkRecord) (aggregates.PartialLinkRecord, error) {
	raw, err := tx.HGet(ctx, l.hash, rec.ID).Result()
	if errors.Is(err, goredis.Nil) {
		return rec, nil
	}
	if err != nil {
		return rec, err
	}
	var prev aggregates.PartialLinkRecord
	if err := json.Unmarshal([]byte(raw), &prev); err != nil {
		l.log.Warn("replacing bad partial link record", "id", rec.ID, "error", err)
		return rec, nil
	}
	if !prev.RecordedAt.IsZero() {
		rec.RecordedAt = prev.RecordedAt
	}
	if prev.Attempts > rec.Attempts {
		rec.Attempts = prev.Attempts
	}
	return rec, nil
}

// Pending returns up to limit records, oldest first. limit <= 0 means all.
func (l *Ledger) Pending(ctx context.Context, limit int) ([]aggregates.PartialLinkRecord, error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("redis ledger not initialized")
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := l.rdb.ZRange(ctx, l.queue, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list pending: %w", err)
	}
	out := make([]aggregates.PartialLinkRecord, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vals, err := l.rdb.HMGet(ctx, l.hash, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load pending: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			l.log.Warn("pending partial link without record", "id", ids[i])
			continue
		}
		var rec aggregates.PartialLinkRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			l.log.Warn("bad partial link record", "id", ids[i], "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Resolve removes the record. Resolving an unknown id is not an error.
func (l *Ledger) Resolve(ctx context.Context, id string) error {
	if l == nil || l.rdb == nil {
		return fmt.Errorf("redis ledger not initialized")
	}
	_, err := l.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.ZRem(ctx, l.queue, id)
		p.HDel(ctx, l.hash, id)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis resolve partial link: %w", err)
	}
	return nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	if l == nil || l.rdb == nil {
		return fmt.Errorf("redis ledger not initialized")
	}
	return l.rdb.Ping(ctx).Err()
}

func (l *Ledger) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
