package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flashwire/flashwire/internal/model"
)

// Key layout of the shared backend. Breaking entries and topic windows each
// get a key-space prefix; everything else is a single scalar key.
const (
	prefixBreaking = "breaking_news:"
	prefixTopic    = "topic_windows:"
	keySeen        = "seen_hashes"
	keyTotal       = "total_processed"
	keyStart       = "start_time"
	keySimulation  = "simulation_time"
	keyLastProc    = "last_processed_time"
	keyLastCleanup = "last_cleanup_time"
)

// Redis is the shared Store implementation, backed by a Redis instance so
// several readers can observe the same replay. Topic windows live in sorted
// sets scored by the entry timestamp, which preserves ascending order and
// makes pruning a single ZREMRANGEBYSCORE. Breaking entries are JSON strings
// under per-id keys; the dedup filter is one native set.
//
// Timestamps are encoded as fractional Unix seconds with microsecond
// precision, matching the sorted-set score resolution.
type Redis struct {
	client *redis.Client
	opts   Options
}

// NewRedis connects to the Redis instance at url (redis://host:port/db) and
// verifies the connection. An unreachable backend is a construction error;
// the store cannot exist without it.
func NewRedis(url string, opts Options) (*Redis, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("state: parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("state: connect to redis at %s: %w", ropts.Addr, err)
	}

	return &Redis{client: client, opts: opts.withDefaults()}, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) SeenHash(ctx context.Context, hash string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, keySeen, hash).Result()
	if err != nil {
		return false, fmt.Errorf("state: sismember %s: %w", keySeen, err)
	}
	return ok, nil
}

func (r *Redis) AddHash(ctx context.Context, hash string) error {
	if err := r.client.SAdd(ctx, keySeen, hash).Err(); err != nil {
		return fmt.Errorf("state: sadd %s: %w", keySeen, err)
	}
	return nil
}

func (r *Redis) HashCount(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, keySeen).Result()
	if err != nil {
		return 0, fmt.Errorf("state: scard %s: %w", keySeen, err)
	}
	return int(n), nil
}

func (r *Redis) AppendWindow(ctx context.Context, topic string, ts time.Time, articleID string) error {
	score := unixSeconds(ts)
	member := windowMember(score, articleID)
	err := r.client.ZAdd(ctx, prefixTopic+topic, redis.Z{Score: score, Member: member}).Err()
	if err != nil {
		return fmt.Errorf("state: zadd window %q: %w", topic, err)
	}
	return nil
}

func (r *Redis) PruneWindow(ctx context.Context, topic string, cutoff time.Time) (int, error) {
	key := prefixTopic + topic
	// Entries at exactly the cutoff stay: remove scores strictly below it.
	max := "(" + strconv.FormatFloat(unixSeconds(cutoff), 'f', 6, 64)
	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", max).Err(); err != nil {
		return 0, fmt.Errorf("state: zremrangebyscore window %q: %w", topic, err)
	}
	n, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("state: zcard window %q: %w", topic, err)
	}
	return int(n), nil
}

func (r *Redis) Window(ctx context.Context, topic string) ([]WindowEntry, error) {
	members, err := r.client.ZRangeWithScores(ctx, prefixTopic+topic, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("state: zrange window %q: %w", topic, err)
	}
	out := make([]WindowEntry, 0, len(members))
	for _, z := range members {
		e, ok := parseWindowMember(z.Member)
		if !ok {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Redis) Topics(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	iter := r.client.Scan(ctx, 0, prefixTopic+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		n, err := r.client.ZCard(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("state: zcard %q: %w", key, err)
		}
		out[strings.TrimPrefix(key, prefixTopic)] = int(n)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("state: scan topics: %w", err)
	}
	return out, nil
}

func (r *Redis) PutBreaking(ctx context.Context, scored *model.ScoredArticle) error {
	data, err := json.Marshal(scored)
	if err != nil {
		return fmt.Errorf("state: encode breaking %s: %w", scored.Article.ID, err)
	}
	if err := r.client.Set(ctx, prefixBreaking+scored.Article.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("state: set breaking %s: %w", scored.Article.ID, err)
	}
	return nil
}

func (r *Redis) GetBreaking(ctx context.Context, id string) (*model.ScoredArticle, bool, error) {
	data, err := r.client.Get(ctx, prefixBreaking+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: get breaking %s: %w", id, err)
	}
	var scored model.ScoredArticle
	if err := json.Unmarshal([]byte(data), &scored); err != nil {
		return nil, false, fmt.Errorf("state: decode breaking %s: %w", id, err)
	}
	return &scored, true, nil
}

func (r *Redis) ListBreaking(ctx context.Context) ([]*model.ScoredArticle, error) {
	var out []*model.ScoredArticle
	iter := r.client.Scan(ctx, 0, prefixBreaking+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue // deleted between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("state: get %q: %w", key, err)
		}
		var scored model.ScoredArticle
		if err := json.Unmarshal([]byte(data), &scored); err != nil {
			slog.Warn("state: skipping malformed breaking record", "key", key, "err", err)
			continue
		}
		out = append(out, &scored)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("state: scan breaking: %w", err)
	}
	return out, nil
}

func (r *Redis) BreakingCount(ctx context.Context) (int, error) {
	count := 0
	iter := r.client.Scan(ctx, 0, prefixBreaking+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("state: scan breaking: %w", err)
	}
	return count, nil
}

func (r *Redis) IncrTotalProcessed(ctx context.Context) (int, error) {
	n, err := r.client.Incr(ctx, keyTotal).Result()
	if err != nil {
		return 0, fmt.Errorf("state: incr %s: %w", keyTotal, err)
	}
	return int(n), nil
}

func (r *Redis) TotalProcessed(ctx context.Context) (int, error) {
	data, err := r.client.Get(ctx, keyTotal).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("state: get %s: %w", keyTotal, err)
	}
	n, err := strconv.Atoi(data)
	if err != nil {
		return 0, fmt.Errorf("state: parse %s: %w", keyTotal, err)
	}
	return n, nil
}

func (r *Redis) StartTime(ctx context.Context) (time.Time, error) {
	t, ok, err := r.getTime(ctx, keyStart)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		return t, nil
	}
	// First reader stamps the start time.
	now := r.opts.Now().UTC()
	if err := r.setTime(ctx, keyStart, now); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

func (r *Redis) SimulationTime(ctx context.Context) (time.Time, bool, error) {
	return r.getTime(ctx, keySimulation)
}

func (r *Redis) SetSimulationTime(ctx context.Context, t time.Time) error {
	cur, ok, err := r.getTime(ctx, keySimulation)
	if err != nil {
		return err
	}
	if ok && t.Before(cur) {
		return nil // the simulated clock never moves backward
	}
	return r.setTime(ctx, keySimulation, t)
}

func (r *Redis) LastProcessedTime(ctx context.Context) (time.Time, bool, error) {
	return r.getTime(ctx, keyLastProc)
}

func (r *Redis) SetLastProcessedTime(ctx context.Context, t time.Time) error {
	return r.setTime(ctx, keyLastProc, t)
}

func (r *Redis) LastCleanupTime(ctx context.Context) (time.Time, bool, error) {
	return r.getTime(ctx, keyLastCleanup)
}

func (r *Redis) SetLastCleanupTime(ctx context.Context, t time.Time) error {
	return r.setTime(ctx, keyLastCleanup, t)
}

func (r *Redis) CleanupExpiredBreaking(ctx context.Context) (int, error) {
	clock, err := r.clock(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := clock.Add(-r.opts.BreakingTTL)

	removed := 0
	iter := r.client.Scan(ctx, 0, prefixBreaking+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("state: get %q: %w", key, err)
		}

		var scored model.ScoredArticle
		if err := json.Unmarshal([]byte(data), &scored); err != nil {
			// Undecodable record: treat as already expired and discard.
			slog.Warn("state: discarding malformed breaking record", "key", key)
			r.client.Del(ctx, key)
			continue
		}
		if scored.DetectedAt.Before(cutoff) {
			if err := r.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("state: del %q: %w", key, err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("state: scan breaking: %w", err)
	}
	return removed, nil
}

func (r *Redis) CleanupTopicWindows(ctx context.Context) (int, error) {
	clock, err := r.clock(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := "(" + strconv.FormatFloat(unixSeconds(clock.Add(-2*r.opts.VelocityWindow)), 'f', 6, 64)

	changed := 0
	iter := r.client.Scan(ctx, 0, prefixTopic+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		removed, err := r.client.ZRemRangeByScore(ctx, key, "-inf", cutoff).Result()
		if err != nil {
			return changed, fmt.Errorf("state: zremrangebyscore %q: %w", key, err)
		}
		if removed > 0 {
			changed++
		}
	}
	if err := iter.Err(); err != nil {
		return changed, fmt.Errorf("state: scan topics: %w", err)
	}
	return changed, nil
}

func (r *Redis) Reset(ctx context.Context) error {
	for _, pattern := range []string{prefixBreaking + "*", prefixTopic + "*"} {
		iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("state: del %q: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("state: scan %q: %w", pattern, err)
		}
	}
	err := r.client.Del(ctx, keySeen, keyTotal, keyStart, keySimulation, keyLastProc, keyLastCleanup).Err()
	if err != nil {
		return fmt.Errorf("state: del scalar keys: %w", err)
	}
	return r.setTime(ctx, keyStart, r.opts.Now().UTC())
}

// --- helpers ----------------------------------------------------------------

// clock returns the simulated time if set, else the wall clock.
func (r *Redis) clock(ctx context.Context) (time.Time, error) {
	sim, ok, err := r.SimulationTime(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		return sim, nil
	}
	return r.opts.Now().UTC(), nil
}

func (r *Redis) getTime(ctx context.Context, key string) (time.Time, bool, error) {
	data, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("state: get %s: %w", key, err)
	}
	t, err := time.Parse(time.RFC3339Nano, data)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("state: parse %s: %w", key, err)
	}
	return t, true, nil
}

func (r *Redis) setTime(ctx context.Context, key string, t time.Time) error {
	if err := r.client.Set(ctx, key, t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("state: set %s: %w", key, err)
	}
	return nil
}

// unixSeconds converts t to fractional Unix seconds at microsecond precision.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// windowMember builds the sorted-set member "<score>|<article-id>". Embedding
// the score keeps members unique per (timestamp, id) pair and decodable
// without a second lookup.
func windowMember(score float64, articleID string) string {
	return strconv.FormatFloat(score, 'f', 6, 64) + "|" + articleID
}

func parseWindowMember(member interface{}) (WindowEntry, bool) {
	s, ok := member.(string)
	if !ok {
		return WindowEntry{}, false
	}
	parts := strings.SplitN(s, "|", 2)
	if len(parts) != 2 {
		return WindowEntry{}, false
	}
	sec, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return WindowEntry{}, false
	}
	return WindowEntry{
		Timestamp: time.UnixMicro(int64(math.Round(sec * 1e6))).UTC(),
		ArticleID: parts[1],
	}, true
}
