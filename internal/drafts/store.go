package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/printshop-backend/internal/cart"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/redis"
)

// Draft is an autosaved, unfinalized cart keyed by session.
type Draft struct {
	SessionKey string            `json:"session_key"`
	Status     enums.DraftStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Cart       cart.Snapshot     `json:"cart"`
}

// Store is the remote draft slot. Get returns nil without error when the slot
// is empty; Save with a nil draft clears the slot.
type Store interface {
	Get(ctx context.Context, sessionKey string) (*Draft, error)
	Save(ctx context.Context, sessionKey string, draft *Draft) error
	Clear(ctx context.Context, sessionKey string) error
}

type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DraftKey(sessionKey string) string
}

// RedisStore keeps one JSON draft per session under ps:draft:<session>.
type RedisStore struct {
	client kv
	ttl    time.Duration
}

// NewRedisStore builds a draft store. A zero ttl keeps drafts until cleared.
func NewRedisStore(client kv, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, sessionKey string) (*Draft, error) {
	if sessionKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session key is required")
	}
	raw, err := s.client.Get(ctx, s.client.DraftKey(sessionKey))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDraftPersistence, err, "load draft")
	}
	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDraftPersistence, err, "decode draft")
	}
	return &draft, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionKey string, draft *Draft) error {
	if draft == nil {
		return s.Clear(ctx, sessionKey)
	}
	if sessionKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session key is required")
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode draft")
	}
	if err := s.client.Set(ctx, s.client.DraftKey(sessionKey), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDraftPersistence, err, "save draft")
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session key is required")
	}
	if err := s.client.Del(ctx, s.client.DraftKey(sessionKey)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDraftPersistence, err, "clear draft")
	}
	return nil
}
