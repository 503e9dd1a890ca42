package db

import (
	"sync"

	"github.com/dgraph-io/ristretto"
)

// CredentialCache keeps decrypted access credentials per item id for the lifetime of
// the process. Keys are tracked next to the cache so everything can be dropped at once.
type CredentialCache struct {
	cache *ristretto.Cache
	keys  struct {
		sync.RWMutex
		m map[int64]struct{}
	}
}

func NewCredentialCache() (*CredentialCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000, // number of keys to track frequency of
		MaxCost:     1000,
		BufferItems: 64, // number of keys per Get buffer
		// Cost is the entry count, not memory.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	c := &CredentialCache{cache: cache}
	c.keys.m = make(map[int64]struct{})
	return c, nil
}

func (c *CredentialCache) Get(itemID int64) (string, bool) {
	v, ok := c.cache.Get(itemID)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (c *CredentialCache) Set(itemID int64, credential string) {
	c.keys.Lock()
	c.keys.m[itemID] = struct{}{}
	c.keys.Unlock()
	c.cache.Set(itemID, credential, 1)
	// Sets are buffered; make the value visible to the next Get.
	c.cache.Wait()
}

func (c *CredentialCache) Del(itemID int64) {
	c.keys.Lock()
	delete(c.keys.m, itemID)
	c.keys.Unlock()
	c.cache.Del(itemID)
}

func (c *CredentialCache) Clear() {
	c.keys.Lock()
	for key := range c.keys.m {
		c.cache.Del(key)
	}
	c.keys.m = make(map[int64]struct{})
	c.keys.Unlock()
}

func (c *CredentialCache) Close() {
	c.cache.Close()
}
