package crypto

import (
	"context"
	"finsync/src/db"
	"finsync/src/models"
	"fmt"

	"go.uber.org/zap"
)

// Resolver hands the ingestion engine a plaintext credential for an item, opening the
// stored handle at most once per item while the cache holds it.
type Resolver struct {
	cipher *TokenCipher
	cache  *db.CredentialCache
	logger *zap.Logger
}

func NewResolver(cipher *TokenCipher, cache *db.CredentialCache, logger *zap.Logger) *Resolver {
	return &Resolver{cipher: cipher, cache: cache, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, item models.Item) (string, error) {
	if token, ok := r.cache.Get(item.ID); ok {
		return token, nil
	}
	if item.CredentialHandle == "" {
		return "", fmt.Errorf("item %d (%s) has no stored credential", item.ID, item.Label)
	}

	token, err := r.cipher.Open(item.CredentialHandle)
	if err != nil {
		return "", fmt.Errorf("resolve credential for item %d: %w", item.ID, err)
	}
	r.cache.Set(item.ID, token)
	r.logger.Debug("credential resolved", zap.Int64("item_id", item.ID))
	return token, nil
}

// Seal produces the handle stored on an item.
func (r *Resolver) Seal(token string) (string, error) {
	return r.cipher.Seal(token)
}

// Invalidate forgets cached credentials, e.g. after an item is re-linked.
func (r *Resolver) Invalidate(itemIDs ...int64) {
	for _, id := range itemIDs {
		r.cache.Del(id)
	}
}
