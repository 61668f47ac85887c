package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserBlockedKey returns the cache key for a user's blocked flag.
func (r *CacheKeyStruct) UserBlockedKey(userID string) string {
	return fmt.Sprintf("user:%s:blocked", userID)
}

var CacheKey = NewCacheKeyStruct()
