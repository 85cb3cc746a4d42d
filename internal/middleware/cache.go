package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/festival-platform/program-scheduler/internal/config"
	"github.com/festival-platform/program-scheduler/internal/queue"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// truncated reports whether the body outgrew the capture limit.
func (cw *captureWriter) truncated() bool {
	return cw.limit > 0 && cw.size > cw.limit
}

// cacheKeyFrom builds a stable cache key honoring prefix and strategy.  When
// festivalID is set the key lives under prefix:festival:<id>:g<generation>:
// so that LineupCache can drop every cached page of one festival at once, and
// a bump of the generation orphans pages still being written.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context, festivalID string, generation int64) string {
	r := c.Request()
	route := c.Path()
	query := r.URL.RawQuery

	var parts []string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		parts = []string{"route", route}
	case "method_route":
		parts = []string{"method", r.Method, "route", route}
	case "method_route_query":
		parts = []string{"method", r.Method, "route", route, "q", query}
	default: // "route_query"
		parts = []string{"route", route, "q", query}
	}
	// the concrete path keeps /festivals/1 and /festivals/2 apart under "route"
	parts = append(parts, "path", r.URL.Path)

	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	if festivalID != "" {
		return fmt.Sprintf("%s:festival:%s:g%d:%x", cfg.Prefix, festivalID, generation, sum[:])
	}
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// generationKey holds the festival's cache generation.  It sits outside the
// prefix:festival:<id>: namespace so invalidation never deletes it.
func generationKey(prefix, festivalID string) string {
	return prefix + ":festival-gen:" + festivalID
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// NewRedisCache caches successful responses in Redis, headers included, so a
// hit is byte-identical to the original response.  festivalParam names the
// path parameter holding the festival id; routes carrying it are cached under
// that festival's namespace.  Without Redis the middleware is a no-op.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, festivalParam string, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cache")
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	maxBody := int64(cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Caches(c.Request().Method) {
				return next(c)
			}
			var scope string
			if festivalParam != "" {
				scope = c.Param(festivalParam)
			}
			ctx := c.Request().Context()
			// the generation is read before the handler runs; an invalidation
			// committed meanwhile bumps it and the page below is never served
			var gen int64
			if scope != "" {
				var err error
				gen, err = rdb.Get(ctx, generationKey(cfg.Prefix, scope)).Int64()
				if err != nil && !errors.Is(err, redis.Nil) {
					logger.Warn("cache generation read failed", "festival_id", scope, "error", err)
					return next(c)
				}
			}
			key := cacheKeyFrom(cfg, c, scope, gen)

			bs, err := rdb.Get(ctx, key).Bytes()
			switch {
			case err == nil:
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			case !errors.Is(err, redis.Nil):
				logger.Warn("cache read failed", "key", key, "error", err)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated() {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := rdb.SetEx(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
				logger.Warn("cache write failed", "key", key, "error", err)
			}
			return nil
		}
	}
}

// LineupCache drops cached festival responses after program changes.
type LineupCache struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

// NewLineupCache returns an invalidator for keys written by NewRedisCache
// with the same config.  A nil client yields an invalidator that does
// nothing.
func NewLineupCache(cfg config.CacheConfig, rdb *redis.Client, logger *slog.Logger) *LineupCache {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		rdb = nil
	}
	return &LineupCache{rdb: rdb, prefix: cfg.Prefix, logger: logger.With("component", "cache")}
}

func (lc *LineupCache) pattern(festivalID uint64) string {
	return lc.prefix + ":festival:" + strconv.FormatUint(festivalID, 10) + ":*"
}

// Invalidate bumps the festival's cache generation, then deletes every cached
// response of the festival.  Pages written after the bump by requests that
// started before it land under the old generation and expire unread.
func (lc *LineupCache) Invalidate(ctx context.Context, festivalID uint64) error {
	if lc == nil || lc.rdb == nil || festivalID == 0 {
		return nil
	}
	id := strconv.FormatUint(festivalID, 10)
	if err := lc.rdb.Incr(ctx, generationKey(lc.prefix, id)).Err(); err != nil {
		return fmt.Errorf("bump festival %d cache generation: %w", festivalID, err)
	}
	var keys []string
	iter := lc.rdb.Scan(ctx, 0, lc.pattern(festivalID), 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan festival %d cache: %w", festivalID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := lc.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("drop festival %d cache: %w", festivalID, err)
	}
	lc.logger.Debug("festival cache invalidated", "festival_id", festivalID, "keys", len(keys))
	return nil
}

// PerformanceChanged invalidates the festival of a committed program change.
func (lc *LineupCache) PerformanceChanged(ctx context.Context, ev queue.PerformanceEvent) error {
	return lc.Invalidate(ctx, ev.FestivalID)
}
