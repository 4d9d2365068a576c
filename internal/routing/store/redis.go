package routestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"relaydesk/internal/routing"
	"relaydesk/pkg/domain"
)

// Redis persists routing documents as one hash per tenant
// (relaydesk:routes:<tenantID>, field = conversationID, value = JSON entry).
// Save replaces the whole hash in a pipeline, keeping whole-document
// semantics.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis returns a Redis-backed store for one tenant.
func NewRedis(client *redis.Client, tenantID domain.TenantID) *Redis {
	return &Redis{
		client: client,
		key:    "relaydesk:routes:" + tenantID.String(),
	}
}

func (s *Redis) Load(ctx context.Context) (map[domain.ConversationID]routing.Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read routing hash: %w", err)
	}

	out := make(map[domain.ConversationID]routing.Entry, len(fields))
	for conversationID, raw := range fields {
		var entry routing.Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode routing entry %s: %w", conversationID, err)
		}
		out[domain.ConversationID(conversationID)] = entry
	}
	return out, nil
}

func (s *Redis) Save(ctx context.Context, entries map[domain.ConversationID]routing.Entry) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(entries) > 0 {
		fields := make(map[string]any, len(entries))
		for conversationID, entry := range entries {
			raw, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("encode routing entry %s: %w", conversationID, err)
			}
			fields[conversationID.String()] = raw
		}
		pipe.HSet(ctx, s.key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write routing hash: %w", err)
	}
	return nil
}
