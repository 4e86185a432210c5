// Package cache provides an optional Redis-backed cache for hh.ru response bodies.
//
// Search pages and vacancy details are stable for minutes, so a repeated export
// with the same query can be served without touching the API again. The cache is
// off unless the exporter is started with a Redis address.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 10*time.Minute)
//
//	key := cache.CacheKey{
//		Endpoint:    "/vacancies",
//		QueryParams: url.Values{"text": []string{"golang"}, "page": []string{"0"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from hh.ru, then:
//		_ = manager.Set(ctx, key, manager.NewEntry(body))
//	}
//
// # Metrics
//
//   - hh_cache_hits_total - Cache hits
//   - hh_cache_misses_total - Cache misses
//   - hh_cache_size_bytes - Bytes written to the cache during the run
//   - hh_cache_errors_total{operation} - Cache operation errors
//
// Entries expire through the Redis TTL and are also checked against their own
// Expires field on read.
package cache
