// Package storagetest provides an in-memory storage.Store for package tests.
package storagetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/d9705996/huddle/internal/storage"
)

const baseURL = "https://cdn.test"

// Fake keeps object keys per bucket. Upload simulates a client PUT.
type Fake struct {
	mu      sync.Mutex
	objects map[storage.Bucket]map[string]bool
	removed []string
	// RemoveErr, when set, is returned by Remove.
	RemoveErr error
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{objects: map[storage.Bucket]map[string]bool{
		storage.Public:  {},
		storage.Private: {},
	}}
}

// Upload marks key as present in b.
func (f *Fake) Upload(b storage.Bucket, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[b][key] = true
}

// Has reports whether key is present in b.
func (f *Fake) Has(b storage.Bucket, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[b][key]
}

// Removed lists the keys passed to Remove.
func (f *Fake) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *Fake) PresignPut(_ context.Context, b storage.Bucket, key string) (string, error) {
	return fmt.Sprintf("%s/put/%d/%s", baseURL, b, key), nil
}

func (f *Fake) PresignGet(_ context.Context, b storage.Bucket, key string) (string, error) {
	return fmt.Sprintf("%s/get/%d/%s", baseURL, b, key), nil
}

func (f *Fake) Stat(_ context.Context, b storage.Bucket, key string) error {
	if !f.Has(b, key) {
		return storage.ErrNotFound
	}
	return nil
}

func (f *Fake) Remove(_ context.Context, b storage.Bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	delete(f.objects[b], key)
	return nil
}

func (f *Fake) PublicURL(key string) string { return baseURL + "/" + key }

func (f *Fake) KeyFromURL(u string) string {
	key, ok := strings.CutPrefix(u, baseURL+"/")
	if !ok {
		return ""
	}
	return key
}
