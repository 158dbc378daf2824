package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
)

// RedisLedger keeps each row in a hash ({prefix}:{table}:row:{id}) holding
// the JSON fields and the modification time, plus a per-table sorted set
// ({prefix}:{table}:rows) of row ids scored by modification time.
type RedisLedger struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRedisLedger connects to Redis and verifies the connection
func NewRedisLedger(ctx context.Context, cfg config.RemoteRedisConfig) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisLedgerWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisLedgerWithClient creates a ledger over an existing client
func NewRedisLedgerWithClient(client *redis.Client, keyPrefix string) *RedisLedger {
	if keyPrefix == "" {
		keyPrefix = "ledger"
	}
	return &RedisLedger{client: client, keyPrefix: keyPrefix, now: time.Now}
}

// Close closes the client
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func (l *RedisLedger) rowKey(table, id string) string {
	return l.keyPrefix + ":" + table + ":row:" + id
}

func (l *RedisLedger) indexKey(table string) string {
	return l.keyPrefix + ":" + table + ":rows"
}

// ListRows reads every row of table in modification order
func (l *RedisLedger) ListRows(ctx context.Context, table string) ([]ledger.RemoteRow, error) {
	ids, err := l.client.ZRange(ctx, l.indexKey(table), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, mapRedisError(ctx, err))
	}
	if len(ids) == 0 {
		return []ledger.RemoteRow{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = l.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, l.rowKey(table, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, mapRedisError(ctx, err))
	}

	rows := make([]ledger.RemoteRow, 0, len(ids))
	for i, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		row := ledger.RemoteRow{ID: ids[i]}
		modified, err := time.Parse(time.RFC3339Nano, h["modified_at"])
		if err != nil {
			row.Malformed = fmt.Errorf("%s/%s: invalid modified_at %q", table, ids[i], h["modified_at"])
			rows = append(rows, row)
			continue
		}
		row.ModifiedAt = modified.UTC()
		fields, err := record.UnmarshalWire([]byte(h["fields"]))
		if err != nil {
			row.Malformed = fmt.Errorf("%s/%s: %w", table, ids[i], err)
		} else {
			row.Fields = fields
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// UpsertRow replaces the row hash and re-scores it in the index atomically
func (l *RedisLedger) UpsertRow(ctx context.Context, table, id string, fields record.Fields) error {
	data, err := json.Marshal(record.EncodeWire(fields))
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", table, id, err)
	}
	at := l.now().UTC()
	_, err = l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, l.rowKey(table, id), "fields", string(data), "modified_at", at.Format(time.RFC3339Nano))
		p.ZAdd(ctx, l.indexKey(table), redis.Z{Score: float64(at.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, mapRedisError(ctx, err))
	}
	return nil
}

// DeleteRow removes the row hash and its index entry
func (l *RedisLedger) DeleteRow(ctx context.Context, table, id string) error {
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, l.rowKey(table, id))
		p.ZRem(ctx, l.indexKey(table), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, mapRedisError(ctx, err))
	}
	return nil
}

// mapRedisError treats server replies as rejections and everything else
// as the server being unreachable.
func mapRedisError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return errors.Join(ledger.ErrRemoteRejected, err)
	}
	return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
}

var _ ledger.Adapter = (*RedisLedger)(nil)
