package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campusgig/internal/httpapi"
)

// openTestRedis needs a live Redis; point CAMPUSGIG_TEST_REDIS_URL at a
// disposable instance, e.g. redis://localhost:6379/15.
func openTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("CAMPUSGIG_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CAMPUSGIG_TEST_REDIS_URL not set; skipping redis integration tests")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return rdb
}

func TestRateLimiterThrottlesPerUser(t *testing.T) {
	rdb := openTestRedis(t)

	limiter := httpapi.NewRateLimiter(rdb, 3, zap.NewNop())
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
		if userID != "" {
			req.Header.Set("x-user-id", userID)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do("alice"))
	}
	require.Equal(t, http.StatusTooManyRequests, do("alice"))

	// Other users keep their own window.
	require.Equal(t, http.StatusOK, do("bob"))

	// Missing identities pass through untouched.
	require.Equal(t, http.StatusOK, do(""))
}
