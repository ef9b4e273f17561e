package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := NewMemoryCache(1024)

	value := []byte("mp3-bytes")
	if err := cache.Put("key", value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := cache.Get("key")
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if string(got) != string(value) {
		t.Errorf("Retrieved value mismatch: got %s, want %s", got, value)
	}
	if cache.Size() != int64(len(value)) {
		t.Errorf("Size mismatch: got %d, want %d", cache.Size(), len(value))
	}

	cache.Delete("key")
	if cache.Contains("key") {
		t.Error("Key still exists after delete")
	}
	if cache.Size() != 0 {
		t.Errorf("Size not zero after delete: %d", cache.Size())
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	cache := NewMemoryCache(100)

	for i := 0; i < 5; i++ {
		if err := cache.Put(fmt.Sprintf("key-%d", i), make([]byte, 20)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	// touch key-0 and key-1 so key-2 becomes the oldest
	cache.Get("key-0")
	cache.Get("key-1")

	if err := cache.Put("key-new", make([]byte, 30)); err != nil {
		t.Fatalf("Put failed for new key: %v", err)
	}

	if cache.Contains("key-2") || cache.Contains("key-3") {
		t.Error("key-2 and key-3 should have been evicted")
	}
	if !cache.Contains("key-0") || !cache.Contains("key-1") {
		t.Error("recently used keys should not have been evicted")
	}
	if cache.Stats().Evictions != 2 {
		t.Errorf("Expected 2 evictions, got %d", cache.Stats().Evictions)
	}
}

func TestMemoryCache_ItemTooLarge(t *testing.T) {
	cache := NewMemoryCache(100)
	if err := cache.Put("large-key", make([]byte, 200)); err != ErrItemTooLarge {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}
}

func TestMemoryCache_UpdateExisting(t *testing.T) {
	cache := NewMemoryCache(1024)

	_ = cache.Put("key", []byte("original"))
	_ = cache.Put("key", []byte("updated-value"))

	got, _ := cache.Get("key")
	if string(got) != "updated-value" {
		t.Errorf("Expected updated value, got %s", got)
	}
	if cache.Size() != int64(len("updated-value")) {
		t.Errorf("Size not updated: %d", cache.Size())
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewMemoryCache(1024)
	_ = cache.Put("a", []byte("1"))

	cache.Get("a")
	cache.Get("a")
	cache.Get("missing")

	stats := cache.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Items != 1 || stats.Capacity != 1024 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if rate := stats.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("HitRate() = %v", rate)
	}
}

func TestMemoryCache_Prune(t *testing.T) {
	cache := NewMemoryCache(1024)
	_ = cache.Put("old", []byte("x"))
	time.Sleep(20 * time.Millisecond)
	_ = cache.Put("new", []byte("y"))

	if n := cache.Prune(10 * time.Millisecond); n != 1 {
		t.Errorf("Expected 1 pruned entry, got %d", n)
	}
	if cache.Contains("old") || !cache.Contains("new") {
		t.Error("Prune removed the wrong entry")
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache(1024)
	_ = cache.Put("a", []byte("1"))
	_ = cache.Put("b", []byte("2"))

	cache.Clear()
	if cache.Size() != 0 || cache.Stats().Items != 0 {
		t.Error("Expected an empty cache after Clear")
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache(10 * 1024)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key-%d-%d", g, i%10)
				_ = cache.Put(key, make([]byte, 64))
				cache.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if cache.Size() > 10*1024 {
		t.Errorf("Cache exceeded capacity: %d", cache.Size())
	}
}
