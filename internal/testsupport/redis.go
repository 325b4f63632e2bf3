package testsupport

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// analyzerKeys are the key patterns the model cache and training lock write
var analyzerKeys = []string{"models:*", "lock:*"}

// NewRedisClient connects to the integration Redis and clears the analyzer's keys
// before and after the test. Skips when the environment is not configured.
func NewRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	cfg := RequireRedis(t)
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis %s: %v", cfg.Addr(), err)
	}
	clearKeys(t, client)

	t.Cleanup(func() {
		clearKeys(t, client)
		_ = client.Close()
	})
	return client
}

func clearKeys(t *testing.T, client *redis.Client) {
	ctx := context.Background()
	for _, pattern := range analyzerKeys {
		iter := client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := client.Del(ctx, iter.Val()).Err(); err != nil {
				t.Fatalf("delete %s: %v", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			t.Fatalf("scan %s: %v", pattern, err)
		}
	}
}
