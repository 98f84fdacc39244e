package kvstore

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// OutcomeCache memoises recomputed outcomes. Keys are hashes of the full
// input so raw server seeds never reach the store.
type OutcomeCache struct {
	store KVStore
	ttl   time.Duration
}

func NewOutcomeCache(store KVStore, ttl time.Duration) *OutcomeCache {
	return &OutcomeCache{store: store, ttl: ttl}
}

// OutcomeKey derives the cache key for one evaluation.
func OutcomeKey(game, convention, serverSeed, stain string, params any) (string, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, part := range [][]byte{[]byte(game), []byte(convention), []byte(serverSeed), []byte(stain), p} {
		// length-prefix each part so field boundaries cannot be shifted
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	return game + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// Get decodes a cached value into out. It reports false on a miss.
func (c *OutcomeCache) Get(key string, out any) (bool, error) {
	data, err := c.store.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, out)
}

// Put encodes and stores value under key.
func (c *OutcomeCache) Put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.store.Set(key, data, c.ttl)
}
