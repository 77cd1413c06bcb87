package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/redis/go-redis/v9"
)

// revokeScript flips the active flag only when the session belongs to the account.
var revokeScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'account_id')
if not owner or owner ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'active', '0')
return 1
`)

// RedisStore is a Redis implementation of the SessionStore and ChallengeLedger ports
type RedisStore struct {
	client *redis.Client
	prefix string
}

// ConnectRedis parses a redis URL and checks the connection
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "walletauth:",
	}
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *RedisStore) accountKey(accountID int64) string {
	return s.prefix + "account:" + strconv.FormatInt(accountID, 10) + ":sessions"
}

// Put stores a session and indexes it under its account
func (s *RedisStore) Put(ctx context.Context, session core.Session) error {
	key := s.sessionKey(session.ID)
	active := "0"
	if session.Active {
		active = "1"
	}

	// A global sequence keeps creation order stable within the same millisecond.
	seq, err := s.client.Incr(ctx, s.prefix+"session_seq").Result()
	if err != nil {
		return fmt.Errorf("failed to allocate session sequence: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"account_id", strconv.FormatInt(session.AccountID, 10),
			"address", session.Address,
			"created_at", encodeTime(session.CreatedAt),
			"expires_at", encodeTime(session.ExpiresAt),
			"active", active,
		)
		if !session.ExpiresAt.IsZero() {
			pipe.ExpireAt(ctx, key, session.ExpiresAt)
		}
		pipe.ZAdd(ctx, s.accountKey(session.AccountID), redis.Z{
			Score:  float64(seq),
			Member: session.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get returns a session by id
func (s *RedisStore) Get(ctx context.Context, id string) (core.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return core.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if len(fields) == 0 {
		return core.Session{}, core.ErrSessionNotFound
	}
	return decodeSession(id, fields)
}

// ListByAccount returns the account's live sessions in creation order
func (s *RedisStore) ListByAccount(ctx context.Context, accountID int64) ([]core.Session, error) {
	ids, err := s.client.ZRange(ctx, s.accountKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	out := make([]core.Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Session hash expired with its token.
			stale = append(stale, ids[i])
			continue
		}
		session, err := decodeSession(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.accountKey(accountID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
		}
	}
	return out, nil
}

// MarkRevoked deactivates a session owned by accountID
func (s *RedisStore) MarkRevoked(ctx context.Context, accountID int64, id string) (core.Session, error) {
	key := s.sessionKey(id)
	ok, err := revokeScript.Run(ctx, s.client, []string{key}, strconv.FormatInt(accountID, 10)).Int()
	if err != nil {
		return core.Session{}, fmt.Errorf("failed to revoke session: %w", err)
	}
	if ok == 0 {
		return core.Session{}, core.ErrSessionNotFound
	}
	return s.Get(ctx, id)
}

// Consume marks a challenge as used with SET NX
func (s *RedisStore) Consume(ctx context.Context, challengeID string, ttl time.Duration) error {
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := s.client.SetNX(ctx, s.prefix+"challenge:"+challengeID, "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !ok {
		return core.ErrChallengeUsed
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeSession(id string, fields map[string]string) (core.Session, error) {
	accountID, err := strconv.ParseInt(fields["account_id"], 10, 64)
	if err != nil {
		return core.Session{}, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	created, err := decodeTime(fields["created_at"])
	if err != nil {
		return core.Session{}, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	expires, err := decodeTime(fields["expires_at"])
	if err != nil {
		return core.Session{}, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	return core.Session{
		ID:        id,
		AccountID: accountID,
		Address:   fields["address"],
		CreatedAt: created,
		ExpiresAt: expires,
		Active:    fields["active"] == "1",
	}, nil
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func decodeTime(v string) (time.Time, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}, err
	}
	return time.Unix(0, n), nil
}
