package config

import "time"

// CacheConfig configures the Redis response cache in front of the /v1
// read routes.  Entries live for TTL under Prefix; bodies larger than
// MaxBodyBytes are served but not stored.  With FlushOnWrite a successful
// request of an uncached method retires every entry under Prefix, since
// one workflow changes a reservation together with its diner, tables and
// payment.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string // "path" or "path_query"
	Prefix       string
	MaxBodyBytes int
	FlushOnWrite bool
}

// LoadCacheConfig reads CACHE_*.
func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      envSet("CACHE_METHODS", "GET"),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "path_query"),
		Prefix:       envStr("CACHE_PREFIX", "dining:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
		FlushOnWrite: envBool("CACHE_FLUSH_ON_WRITE", true),
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	return c
}
