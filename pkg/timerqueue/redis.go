package timerqueue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ Queue = (*RedisQueue)(nil)

// RedisQueue stores entries in a Redis sorted set scored by fire time.
//
// Keys (all under prefix):
//
//	<prefix>:due               ZSET payload -> fire_at unix seconds
//	<prefix>:ident             HASH identity -> payload
//	<prefix>:pair:<event|worker> SET identities of the pair
//	<prefix>:event:<event>     SET pair keys of the event
//
// Every mutation is a Lua script so it is atomic on the server. Scripts touch
// keys derived at runtime, so the queue needs a single Redis node (no cluster).
type RedisQueue struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisClient connects to the Redis at url and checks the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func NewRedisQueue(client *redis.Client, prefix string, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{client: client, prefix: prefix, logger: logger}
}

func (q *RedisQueue) dueKey() string             { return q.prefix + ":due" }
func (q *RedisQueue) identKey() string           { return q.prefix + ":ident" }
func (q *RedisQueue) pairPrefix() string         { return q.prefix + ":pair:" }
func (q *RedisQueue) pairKey(pair string) string { return q.pairPrefix() + pair }
func (q *RedisQueue) eventPrefix() string        { return q.prefix + ":event:" }
func (q *RedisQueue) eventKey(eventID string) string {
	return q.eventPrefix() + eventID
}

var enqueueScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[2], ARGV[1])
if old then redis.call('ZREM', KEYS[1], old) end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('SADD', KEYS[3], ARGV[1])
redis.call('SADD', KEYS[4], ARGV[4])
return 1
`)

var removeScript = redis.NewScript(`
redis.call('ZREM', KEYS[1], ARGV[2])
local cur = redis.call('HGET', KEYS[2], ARGV[1])
if cur == ARGV[2] then
  redis.call('HDEL', KEYS[2], ARGV[1])
  redis.call('SREM', KEYS[3], ARGV[1])
  return 1
end
return 0
`)

// KEYS: due, ident, pair set, event set. ARGV: pair key, keep-due cutoff
// ("" keeps nothing), then (identity, payload, score) triples to insert.
var replacePairScript = redis.NewScript(`
local cutoff = tonumber(ARGV[2])
local incoming = {}
for i = 3, #ARGV, 3 do incoming[ARGV[i]] = true end
local ids = redis.call('SMEMBERS', KEYS[3])
for _, id in ipairs(ids) do
  local p = redis.call('HGET', KEYS[2], id)
  local keep = false
  if p and cutoff and not incoming[id] then
    local score = redis.call('ZSCORE', KEYS[1], p)
    keep = score ~= false and tonumber(score) <= cutoff
  end
  if not keep then
    if p then redis.call('ZREM', KEYS[1], p) end
    redis.call('HDEL', KEYS[2], id)
    redis.call('SREM', KEYS[3], id)
  end
end
local n = 0
for i = 3, #ARGV, 3 do
  redis.call('ZADD', KEYS[1], ARGV[i+2], ARGV[i+1])
  redis.call('HSET', KEYS[2], ARGV[i], ARGV[i+1])
  redis.call('SADD', KEYS[3], ARGV[i])
  n = n + 1
end
if redis.call('SCARD', KEYS[3]) > 0 then
  redis.call('SADD', KEYS[4], ARGV[1])
else
  redis.call('SREM', KEYS[4], ARGV[1])
end
return n
`)

// KEYS: due, ident. ARGV: payload, pair key prefix, event key prefix.
// The payload cannot be decoded, so its identity is found by value.
var dropPayloadScript = redis.NewScript(`
redis.call('ZREM', KEYS[1], ARGV[1])
local all = redis.call('HGETALL', KEYS[2])
local dropped = 0
for i = 1, #all, 2 do
  if all[i+1] == ARGV[1] then
    local id = all[i]
    redis.call('HDEL', KEYS[2], id)
    local ev, w = string.match(id, '^[^|]*|([^|]*)|([^|]*)|')
    if ev then
      local pk = ev .. '|' .. w
      local setKey = ARGV[2] .. pk
      redis.call('SREM', setKey, id)
      if redis.call('SCARD', setKey) == 0 then
        redis.call('SREM', ARGV[3] .. ev, pk)
      end
    end
    dropped = dropped + 1
  end
end
return dropped
`)

// KEYS: due, ident, event set. ARGV: pair key prefix.
var removeEventScript = redis.NewScript(`
local pairs_ = redis.call('SMEMBERS', KEYS[3])
for _, pk in ipairs(pairs_) do
  local setKey = ARGV[1] .. pk
  local ids = redis.call('SMEMBERS', setKey)
  for _, id in ipairs(ids) do
    local p = redis.call('HGET', KEYS[2], id)
    if p then redis.call('ZREM', KEYS[1], p) end
    redis.call('HDEL', KEYS[2], id)
  end
  redis.call('DEL', setKey)
end
redis.call('DEL', KEYS[3])
return #pairs_
`)

func (q *RedisQueue) Enqueue(ctx context.Context, e Entry) error {
	e = normalize(e)
	payload, err := Encode(e)
	if err != nil {
		return err
	}
	keys := []string{q.dueKey(), q.identKey(), q.pairKey(e.PairKey()), q.eventKey(e.EventID)}
	if err := enqueueScript.Run(ctx, q.client, keys, e.Identity(), string(payload), e.FireAt.Unix(), e.PairKey()).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", e.Identity(), err)
	}
	return nil
}

func (q *RedisQueue) DueBefore(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	rng := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UTC().Unix(), 10),
	}
	if limit > 0 {
		rng.Count = int64(limit)
	}
	members, err := q.client.ZRangeByScore(ctx, q.dueKey(), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due entries: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		e, err := Decode([]byte(m))
		if err != nil {
			// An unreadable member would otherwise block the head of the queue forever
			q.logger.Error("Dropping malformed timer queue payload", zap.String("payload", m), zap.Error(err))
			keys := []string{q.dueKey(), q.identKey()}
			if err := dropPayloadScript.Run(ctx, q.client, keys, m, q.pairPrefix(), q.eventPrefix()).Err(); err != nil {
				q.logger.Error("Failed to drop malformed payload", zap.Error(err))
			}
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (q *RedisQueue) Remove(ctx context.Context, e Entry) (bool, error) {
	e = normalize(e)
	payload, err := Encode(e)
	if err != nil {
		return false, err
	}
	keys := []string{q.dueKey(), q.identKey(), q.pairKey(e.PairKey())}
	n, err := removeScript.Run(ctx, q.client, keys, e.Identity(), string(payload)).Int()
	if err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", e.Identity(), err)
	}
	return n == 1, nil
}

func (q *RedisQueue) ReplacePair(ctx context.Context, eventID, workerID string, entries []Entry, keepDue time.Time) error {
	pair := PairKey(eventID, workerID)
	cutoff := ""
	if !keepDue.IsZero() {
		cutoff = strconv.FormatInt(keepDue.UTC().Unix(), 10)
	}
	args := []interface{}{pair, cutoff}
	for _, e := range entries {
		if e.EventID != eventID || e.WorkerID != workerID {
			return fmt.Errorf("entry %s does not belong to pair %s", e.Identity(), pair)
		}
		e = normalize(e)
		payload, err := Encode(e)
		if err != nil {
			return err
		}
		args = append(args, e.Identity(), string(payload), e.FireAt.Unix())
	}
	keys := []string{q.dueKey(), q.identKey(), q.pairKey(pair), q.eventKey(eventID)}
	if err := replacePairScript.Run(ctx, q.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to replace entries of %s: %w", pair, err)
	}
	return nil
}

func (q *RedisQueue) RemovePair(ctx context.Context, eventID, workerID string) error {
	return q.ReplacePair(ctx, eventID, workerID, nil, time.Time{})
}

func (q *RedisQueue) RemoveEvent(ctx context.Context, eventID string) error {
	keys := []string{q.dueKey(), q.identKey(), q.eventKey(eventID)}
	if err := removeEventScript.Run(ctx, q.client, keys, q.pairPrefix()).Err(); err != nil {
		return fmt.Errorf("failed to remove entries of event %s: %w", eventID, err)
	}
	return nil
}

func (q *RedisQueue) Pending(ctx context.Context, eventID, workerID string) ([]Entry, error) {
	ids, err := q.client.SMembers(ctx, q.pairKey(PairKey(eventID, workerID))).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pair entries: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	payloads, err := q.client.HMGet(ctx, q.identKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load pair entries: %w", err)
	}

	var out []Entry
	for _, p := range payloads {
		s, ok := p.(string)
		if !ok {
			continue
		}
		e, err := Decode([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}
