// Package cachetest starts an in-memory Redis for package tests.
package cachetest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/d9705996/huddle/internal/cache"
	"github.com/redis/go-redis/v9"
)

// New returns a Store backed by miniredis and the server for time travel.
func New(t testing.TB) (*cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewFromClient(rdb), mr
}
