package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key written by the exporter.
const KeyPrefix = "hh"

// CacheKey identifies a cached hh.ru response.
type CacheKey struct {
	// Endpoint is the API path (e.g., "/vacancies" or "/vacancies/93000001")
	Endpoint string

	// QueryParams are the request query parameters
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: hh:endpoint:query1=val1:query2=val2
//
// Example:
//
//	hh:vacancies:page=0:per_page=50:text=golang
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, url.QueryEscape(strings.Join(values, ","))))
		}
	}

	return strings.Join(parts, ":")
}
