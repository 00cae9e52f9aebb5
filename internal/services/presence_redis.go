package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
)

// compareAndDelete removes a hash field only if it still holds the value the
// sweep read, so a heartbeat that lands mid-sweep is not lost.
// KEYS: records, last_seen. ARGV: field, expected value.
var compareAndDelete = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	redis.call("HDEL", KEYS[2], ARGV[1])
	return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

// recordIfNewer writes a record unless the stored one was seen later, so
// last_seen never moves backwards across instances with skewed clocks.
// KEYS: records, last_seen. ARGV: field, record, last_seen (unix micros).
// Returns the number of records.
var recordIfNewer = redis.NewScript(`
local prev = redis.call("HGET", KEYS[2], ARGV[1])
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 or not prev or tonumber(prev) <= tonumber(ARGV[3]) then
	redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
	redis.call("HSET", KEYS[2], ARGV[1], ARGV[3])
end
return redis.call("HLEN", KEYS[1])
`)

// RedisRegistry is a Registry shared by every instance pointing at the same
// Redis. All records live in one hash keyed by "participant|channel", with
// a sibling hash of last_seen timestamps. Both keys share a hash tag.
type RedisRegistry struct {
	client    redis.UniversalClient
	clock     clock.PassiveClock
	keyPrefix string
	log       logrus.FieldLogger
}

// NewRedisRegistry creates a Redis-backed registry.
func NewRedisRegistry(client redis.UniversalClient, keyPrefix string, clk clock.PassiveClock, log logrus.FieldLogger) *RedisRegistry {
	if client == nil {
		panic("redis client cannot be nil for RedisRegistry")
	}
	if keyPrefix == "" {
		keyPrefix = "conexmeet:"
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &RedisRegistry{
		client:    client,
		clock:     clk,
		keyPrefix: keyPrefix,
		log:       logging.Component(log, "presence-redis"),
	}
}

func (r *RedisRegistry) recordsKey() string {
	return r.keyPrefix + "{presence}:records"
}

func (r *RedisRegistry) lastSeenKey() string {
	return r.keyPrefix + "{presence}:last_seen"
}

func (r *RedisRegistry) keys() []string {
	return []string{r.recordsKey(), r.lastSeenKey()}
}

func (r *RedisRegistry) Record(ctx context.Context, req models.HeartbeatRequest) (int, error) {
	if err := validateHeartbeat(req); err != nil {
		return 0, err
	}

	rec := newRecord(req, r.clock.Now().UTC())
	raw, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("redis: failed to encode heartbeat %s: %w", rec.Key(), err)
	}

	count, err := recordIfNewer.Run(ctx, r.client, r.keys(), rec.Key(), raw, rec.LastSeen.UnixMicro()).Int()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to record heartbeat %s: %w", rec.Key(), err)
	}
	return count, nil
}

func (r *RedisRegistry) Snapshot(ctx context.Context) ([]models.HeartbeatSnapshot, error) {
	records, _, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	out := make([]models.HeartbeatSnapshot, 0, len(records))
	for _, entry := range records {
		out = append(out, snapshotOf(entry.record, now))
	}
	sortSnapshots(out)
	return out, nil
}

func (r *RedisRegistry) Sweep(ctx context.Context, timeout time.Duration) ([]models.HeartbeatRecord, error) {
	records, malformed, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	for field, raw := range malformed {
		if err := compareAndDelete.Run(ctx, r.client, r.keys(), field, raw).Err(); err != nil {
			r.log.WithError(err).WithField("key", field).Error("failed to drop malformed heartbeat record")
			continue
		}
		r.log.WithField("key", field).Warn("dropped malformed heartbeat record")
	}

	now := r.clock.Now().UTC()
	var expired []models.HeartbeatRecord
	for field, entry := range records {
		if now.Sub(entry.record.LastSeen) <= timeout {
			continue
		}
		removed, err := compareAndDelete.Run(ctx, r.client, r.keys(), field, entry.raw).Int()
		if err != nil {
			r.log.WithError(err).WithField("key", field).Error("failed to evict stale heartbeat")
			continue
		}
		if removed == 1 {
			expired = append(expired, entry.record)
		}
	}
	return expired, nil
}

type storedRecord struct {
	raw    string
	record models.HeartbeatRecord
}

// load reads every record. Fields that fail to decode are returned
// separately, raw, and left in place.
func (r *RedisRegistry) load(ctx context.Context) (map[string]storedRecord, map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, r.recordsKey()).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis: failed to read heartbeats from %s: %w", r.recordsKey(), err)
	}

	out := make(map[string]storedRecord, len(fields))
	var malformed map[string]string
	for field, raw := range fields {
		var rec models.HeartbeatRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			r.log.WithError(err).WithField("key", field).Debug("skipping malformed heartbeat record")
			if malformed == nil {
				malformed = make(map[string]string)
			}
			malformed[field] = raw
			continue
		}
		out[field] = storedRecord{raw: raw, record: rec}
	}
	return out, malformed, nil
}
