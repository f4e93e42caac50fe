package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadMemoryStoreSkipsDatabaseVars(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOCK_WAIT", "250ms")
	t.Setenv("EVENTS_ENABLED", "yes")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")

	c := Load()
	assert.True(t, c.MemoryStore())
	assert.Equal(t, 250*time.Millisecond, c.LockWait)
	assert.Equal(t, 10*time.Second, c.LockTTL)
	assert.True(t, c.EventsEnabled)
	assert.False(t, c.EventsConsumerEnabled)
	assert.Equal(t, "amqp://u:p@broker:5672/", c.AMQPURL)
	assert.Empty(t, c.DBUser)
}

func TestLoadReadsDatabaseVars(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASS", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "dining")
	t.Setenv("LOCK_TTL", "-1s")

	c := Load()
	assert.False(t, c.MemoryStore())
	assert.Equal(t, "app", c.DBUser)
	assert.Equal(t, "db", c.DBHost)
	assert.Equal(t, "dining", c.DBName)
	assert.Equal(t, 10*time.Second, c.LockTTL)
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_INT", "ten")
	t.Setenv("X_DUR", "soon")
	assert.True(t, envBool("X_BOOL", true))
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, time.Minute, envDur("X_DUR", time.Minute))
	t.Setenv("X_SET", " get,,Head ")
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, envSet("X_SET", "POST"))
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Second, c.TTL)
	assert.Equal(t, "ip_route", c.KeyStrategy)
}

func TestLoadCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	c := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
	assert.Equal(t, 30*time.Second, c.TTL)
	assert.True(t, c.FlushOnWrite)
}

func TestLoadCacheConfigRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("CACHE_TTL", "-5s")
	t.Setenv("CACHE_FLUSH_ON_WRITE", "off")
	c := LoadCacheConfig()
	assert.Equal(t, 30*time.Second, c.TTL)
	assert.False(t, c.FlushOnWrite)
}

func TestLoadRedisConfigHostPort(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_TLS", "1")
	c := LoadRedisConfig()
	assert.Equal(t, "cache:6380", c.Addr)
	assert.True(t, c.TLS)
	assert.Nil(t, NewRedisClient(RedisConfig{Enabled: false}))
}
