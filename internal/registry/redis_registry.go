package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/hybrid-relay/internal/config"
	"github.com/weiawesome/hybrid-relay/pkg/log"
)

// registerScript stores ARGV[1] at KEYS[1] and returns {stored, previous}.
// With ARGV[4] == "1" an entry owned by another connection is kept.
var registerScript = redis.NewScript(`
local old = redis.call('GET', KEYS[1])
if old and ARGV[4] == '1' then
  local decoded = cjson.decode(old)
  if decoded.broadcasterConnectionId ~= ARGV[2] then
    return {0, old}
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
if old then
  return {1, old}
end
return {1, ''}
`)

// removeOwnedScript deletes KEYS[1] if it is still owned by ARGV[1] and drops
// ARGV[2] from the connection set KEYS[2].
var removeOwnedScript = redis.NewScript(`
local old = redis.call('GET', KEYS[1])
if not old then
  return 0
end
local decoded = cjson.decode(old)
if decoded.broadcasterConnectionId ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[2])
return 1
`)

// RedisRegistry is a Redis-backed implementation of Registry, shared by every
// relay instance. Entries expire unless the owning instance keeps refreshing
// them, so a crashed instance does not leave broadcasters behind.
type RedisRegistry struct {
	client            *redis.Client
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	policy            Policy
	managed           map[string]string // streamID -> connID registered by this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

// NewRedisRegistry connects to Redis and creates the registry.
func NewRedisRegistry(cfg config.RegistryRedisConfig, policy Policy) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisRegistry(client, cfg, policy), nil
}

func newRedisRegistry(client *redis.Client, cfg config.RegistryRedisConfig, policy Policy) *RedisRegistry {
	ttl := cfg.KeyTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	interval := cfg.HeartbeatInterval
	if interval <= 0 {
		interval = ttl / 3
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "relay"
	}
	return &RedisRegistry{
		client:            client,
		prefix:            prefix,
		keyTTL:            ttl,
		heartbeatInterval: interval,
		policy:            policy,
		managed:           make(map[string]string),
	}
}

func (r *RedisRegistry) entryKey(streamID string) string {
	return fmt.Sprintf("%s:broadcast:%s", r.prefix, streamID)
}

func (r *RedisRegistry) connKey(connID string) string {
	return fmt.Sprintf("%s:conn:%s:streams", r.prefix, connID)
}

// Register stores entry according to the conflict policy.
func (r *RedisRegistry) Register(ctx context.Context, entry Entry) (*Entry, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}

	reject := "0"
	if r.policy == PolicyReject {
		reject = "1"
	}

	res, err := registerScript.Run(ctx, r.client,
		[]string{r.entryKey(entry.StreamID)},
		string(data), entry.BroadcasterConnectionID, r.keyTTL.Milliseconds(), reject,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to register broadcaster: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected register reply: %v", res)
	}

	stored, _ := res[0].(int64)
	if stored == 0 {
		return nil, ErrAlreadyRegistered
	}

	var prev *Entry
	if raw, _ := res[1].(string); raw != "" {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal previous entry: %w", err)
		}
		prev = &e
	}

	pipe := r.client.TxPipeline()
	if prev != nil && prev.BroadcasterConnectionID != entry.BroadcasterConnectionID {
		pipe.SRem(ctx, r.connKey(prev.BroadcasterConnectionID), entry.StreamID)
	}
	pipe.SAdd(ctx, r.connKey(entry.BroadcasterConnectionID), entry.StreamID)
	pipe.PExpire(ctx, r.connKey(entry.BroadcasterConnectionID), r.keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to index broadcaster connection: %w", err)
	}

	r.mu.Lock()
	r.managed[entry.StreamID] = entry.BroadcasterConnectionID
	r.mu.Unlock()

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldStreamID, entry.StreamID).Str(log.FieldConnID, entry.BroadcasterConnectionID).Msg("registered broadcaster")
	return prev, nil
}

// Lookup returns the broadcaster of a stream, or nil.
func (r *RedisRegistry) Lookup(ctx context.Context, streamID string) (*Entry, error) {
	data, err := r.client.Get(ctx, r.entryKey(streamID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lookup broadcaster: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Remove deletes the entry of a stream unconditionally.
func (r *RedisRegistry) Remove(ctx context.Context, streamID string) error {
	entry, err := r.Lookup(ctx, streamID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.entryKey(streamID))
	if entry != nil {
		pipe.SRem(ctx, r.connKey(entry.BroadcasterConnectionID), streamID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove broadcaster: %w", err)
	}

	r.forget(streamID)
	return nil
}

// RemoveIfOwned deletes the entry only if connID still owns it.
func (r *RedisRegistry) RemoveIfOwned(ctx context.Context, streamID, connID string) (bool, error) {
	removed, err := removeOwnedScript.Run(ctx, r.client,
		[]string{r.entryKey(streamID), r.connKey(connID)},
		connID, streamID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to remove broadcaster: %w", err)
	}

	r.forget(streamID)
	return removed == 1, nil
}

// ListByConnection returns every entry still owned by connID.
func (r *RedisRegistry) ListByConnection(ctx context.Context, connID string) ([]Entry, error) {
	streamIDs, err := r.client.SMembers(ctx, r.connKey(connID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list connection streams: %w", err)
	}
	if len(streamIDs) == 0 {
		return []Entry{}, nil
	}

	keys := make([]string, len(streamIDs))
	for i, id := range streamIDs {
		keys[i] = r.entryKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}

	result := make([]Entry, 0, len(values))
	for _, val := range values {
		data, ok := val.(string)
		if !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		// The set may lag behind an overwrite by another connection.
		if entry.BroadcasterConnectionID == connID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *RedisRegistry) forget(streamID string) {
	r.mu.Lock()
	delete(r.managed, streamID)
	r.mu.Unlock()
}

// StartHeartbeat keeps entries registered by this instance alive.
func (r *RedisRegistry) StartHeartbeat(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("registry heartbeat started")
}

func (r *RedisRegistry) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisRegistry) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	managed := make(map[string]string, len(r.managed))
	for streamID, connID := range r.managed {
		managed[streamID] = connID
	}
	r.mu.RUnlock()

	for streamID, connID := range managed {
		pipe := r.client.Pipeline()
		pipe.PExpire(ctx, r.entryKey(streamID), r.keyTTL)
		pipe.PExpire(ctx, r.connKey(connID), r.keyTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			l := log.L()
			l.Error().Str(log.FieldStreamID, streamID).Err(err).Msg("failed to refresh broadcaster")
		}
	}
}

// StopHeartbeat stops refreshing entries.
func (r *RedisRegistry) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Close removes the entries this instance still owns and closes the client.
func (r *RedisRegistry) Close() error {
	r.StopHeartbeat()

	r.mu.RLock()
	managed := make(map[string]string, len(r.managed))
	for streamID, connID := range r.managed {
		managed[streamID] = connID
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for streamID, connID := range managed {
		if _, err := r.RemoveIfOwned(ctx, streamID, connID); err != nil {
			l := log.L()
			l.Warn().Str(log.FieldStreamID, streamID).Err(err).Msg("failed to release broadcaster on close")
		}
	}

	return r.client.Close()
}

// Ensure RedisRegistry implements Registry interface
var _ Registry = (*RedisRegistry)(nil)
