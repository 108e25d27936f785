package cache

import "time"

// BytesCache stores pre-rendered response bytes under a TTL. The API
// layer uses it to short-circuit repeated identical queries.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
