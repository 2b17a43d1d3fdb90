package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/locaro/venue-api/internal/rotation"
	"github.com/locaro/venue-api/pkg/clock"
)

type cachedWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *cachedWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// PageCache serves GET responses from redis, keyed by request URI plus the
// current rotation epoch. Within one epoch the listing order is fixed, so a
// cached page is exact; the key rolls over with the epoch and entries
// expire at the epoch boundary.
func PageCache(rdb *redis.Client, clk clock.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		now := clk.Now()
		epoch := rotation.Epoch(now)
		key := fmt.Sprintf("pagecache:%d:%s", epoch, c.Request.URL.RequestURI())

		if cached, err := rdb.Get(c.Request.Context(), key).Bytes(); err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}

		w := &cachedWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		if c.Writer.Status() != http.StatusOK || w.body.Len() == 0 {
			return
		}

		ttl := time.Unix((epoch+1)*int64(rotation.EpochWidth/time.Second), 0).Sub(now)
		if ttl <= 0 {
			return
		}
		if err := rdb.Set(c.Request.Context(), key, w.body.Bytes(), ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache page response")
		}
	}
}
