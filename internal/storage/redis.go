package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/model"
)

const (
	keyProtocol    = "protocol:%s:%s:%s" // project:name:version
	keyProtocolSet = "protocols:%s"      // project -> set of "name:version"
	keySession     = "session:%s:%s"     // project:sessionID
	keySessionSet  = "sessions:%s"       // project -> set of sessionID
	keyQueue       = "queue:%s:%s"       // project:sessionID
)

// RedisBackend is an optional Backend for deployments that want session and
// queue state to survive process restarts without standing up a relational
// store. It mirrors the teacher's SessionBuffer: a thin pipeline-backed
// wrapper, not an ORM.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend dials redisURL and verifies connectivity before returning.
func NewRedisBackend(ctx context.Context, redisURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisBackend{client: client}, nil
}

// Close releases the underlying Redis connection pool.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) GetProtocol(ctx context.Context, projectID, name, version string) (*model.Definition, error) {
	raw, err := b.client.Get(ctx, fmt.Sprintf(keyProtocol, projectID, name, version)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, corerr.New(corerr.NotFound, "storage.GetProtocol", "protocol not registered")
	}
	if err != nil {
		return nil, fmt.Errorf("get protocol from redis: %w", err)
	}

	var def model.Definition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return nil, fmt.Errorf("unmarshal protocol: %w", err)
	}
	return &def, nil
}

func (b *RedisBackend) SaveProtocol(ctx context.Context, projectID string, def *model.Definition) error {
	cp := *def
	cp.ProjectID = projectID
	raw, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("marshal protocol: %w", err)
	}

	member := cp.Name + ":" + cp.Version
	pipe := b.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(keyProtocol, projectID, cp.Name, cp.Version), raw, 0)
	pipe.SAdd(ctx, fmt.Sprintf(keyProtocolSet, projectID), member)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("save protocol to redis: %w", err)
	}
	return nil
}

func (b *RedisBackend) ListProtocols(ctx context.Context, projectID string, filter ProtocolFilter) ([]*model.Definition, error) {
	members, err := b.client.SMembers(ctx, fmt.Sprintf(keyProtocolSet, projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list protocols from redis: %w", err)
	}

	var out []*model.Definition
	for _, member := range members {
		name, version, ok := splitPair(member)
		if !ok {
			continue
		}
		if filter.Name != "" && name != filter.Name {
			continue
		}
		if filter.Version != "" && version != filter.Version {
			continue
		}
		def, err := b.GetProtocol(ctx, projectID, name, version)
		if err != nil {
			continue
		}
		out = append(out, def)
	}
	return out, nil
}

func (b *RedisBackend) DeleteProtocol(ctx context.Context, projectID, name, version string) error {
	pipe := b.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(keyProtocol, projectID, name, version))
	pipe.SRem(ctx, fmt.Sprintf(keyProtocolSet, projectID), name+":"+version)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete protocol from redis: %w", err)
	}
	return nil
}

func (b *RedisBackend) GetSession(ctx context.Context, projectID, sessionID string) (*model.Session, error) {
	raw, err := b.client.Get(ctx, fmt.Sprintf(keySession, projectID, sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, corerr.New(corerr.NotFound, "storage.GetSession", "session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get session from redis: %w", err)
	}

	var s model.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

func (b *RedisBackend) SaveSession(ctx context.Context, projectID string, s *model.Session) error {
	cp := *s
	cp.ProjectID = projectID
	raw, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(keySession, projectID, cp.ID), raw, 0)
	pipe.SAdd(ctx, fmt.Sprintf(keySessionSet, projectID), cp.ID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("save session to redis: %w", err)
	}
	return nil
}

func (b *RedisBackend) ListSessions(ctx context.Context, projectID string, filter SessionFilter) ([]*model.Session, error) {
	ids, err := b.client.SMembers(ctx, fmt.Sprintf(keySessionSet, projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions from redis: %w", err)
	}

	var out []*model.Session
	for _, id := range ids {
		s, err := b.GetSession(ctx, projectID, id)
		if err != nil {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (b *RedisBackend) DeleteSession(ctx context.Context, projectID, sessionID string) error {
	pipe := b.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(keySession, projectID, sessionID))
	pipe.SRem(ctx, fmt.Sprintf(keySessionSet, projectID), sessionID)
	pipe.Del(ctx, fmt.Sprintf(keyQueue, projectID, sessionID))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session from redis: %w", err)
	}
	return nil
}

func (b *RedisBackend) EnqueueMessage(ctx context.Context, projectID, sessionID string, msg *model.Message, capacity int) (int, error) {
	key := fmt.Sprintf(keyQueue, projectID, sessionID)

	if capacity > 0 {
		size, err := b.client.LLen(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("check queue size in redis: %w", err)
		}
		if size >= int64(capacity) {
			return int(size), corerr.New(corerr.QueueFull, "storage.EnqueueMessage", "queue is at capacity")
		}
	}

	cp := *msg
	if cp.EnqueuedAt.IsZero() {
		cp.EnqueuedAt = time.Now()
	}
	raw, err := json.Marshal(&cp)
	if err != nil {
		return 0, fmt.Errorf("marshal message: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.RPush(ctx, key, raw)
	lenCmd := pipe.LLen(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("enqueue message to redis: %w", err)
	}
	return int(lenCmd.Val()), nil
}

func (b *RedisBackend) DequeueMessages(ctx context.Context, projectID, sessionID string, limit int) ([]*model.Message, error) {
	key := fmt.Sprintf(keyQueue, projectID, sessionID)

	stop := int64(limit - 1)
	if limit <= 0 {
		stop = -1
	}

	raws, err := b.client.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("dequeue messages from redis: %w", err)
	}
	if len(raws) == 0 {
		return nil, nil
	}

	pipe := b.client.Pipeline()
	pipe.LTrim(ctx, key, int64(len(raws)), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("trim queue after dequeue: %w", err)
	}

	out := make([]*model.Message, 0, len(raws))
	for _, raw := range raws {
		var msg model.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		out = append(out, &msg)
	}
	return out, nil
}

func (b *RedisBackend) GetQueueSize(ctx context.Context, projectID, sessionID string) (int, error) {
	n, err := b.client.LLen(ctx, fmt.Sprintf(keyQueue, projectID, sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("get queue size from redis: %w", err)
	}
	return int(n), nil
}

func (b *RedisBackend) ClearQueue(ctx context.Context, projectID, sessionID string) error {
	if err := b.client.Del(ctx, fmt.Sprintf(keyQueue, projectID, sessionID)).Err(); err != nil {
		return fmt.Errorf("clear queue in redis: %w", err)
	}
	return nil
}

func splitPair(s string) (string, string, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
