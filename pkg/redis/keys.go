package redis

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const defaultKeyPrefix = "sf"

// keyspace namespaces every key so several storefronts can share one redis.
// Idempotency keys hash the caller supplied parts so their length is bounded
// and separators inside them cannot collide with another scope.
type keyspace string

func (k keyspace) prefix() string {
	if p := strings.Trim(strings.TrimSpace(string(k)), ":"); p != "" {
		return p
	}
	return defaultKeyPrefix
}

func (k keyspace) cart(identity string) string {
	return k.prefix() + ":cart:" + strings.TrimSpace(identity)
}

func (k keyspace) idempotency(scope, id string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + id))
	return k.prefix() + ":idem:" + hex.EncodeToString(sum[:20])
}
