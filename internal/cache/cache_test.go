package cache

import (
	"sync"
	"testing"
	"time"
)

// TestCache_New tests cache creation.
func TestCache_New(t *testing.T) {
	c := New(5*time.Minute, 10*time.Minute, 0)
	if c == nil {
		t.Fatal("New() returned nil")
	}
	if c.store == nil {
		t.Error("cache store not initialized")
	}
}

// TestCache_BasicOperations tests Get, Set, and Delete.
func TestCache_BasicOperations(t *testing.T) {
	c := New(5*time.Minute, 10*time.Minute, 0)

	t.Run("Set and Get", func(t *testing.T) {
		c.Set("bk-1|bk-1", "detection-result")

		val, found := c.Get("bk-1|bk-1")
		if !found {
			t.Error("expected key to be found")
		}
		if val != "detection-result" {
			t.Errorf("expected detection-result, got %v", val)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, found := c.Get("nonexistent")
		if found {
			t.Error("expected nonexistent key to not be found")
		}
	})

	t.Run("Set and Delete", func(t *testing.T) {
		c.Set("key2", "value2")
		c.Delete("key2")

		_, found := c.Get("key2")
		if found {
			t.Error("expected key2 to be deleted")
		}
	})

	t.Run("Delete non-existent key", func(t *testing.T) {
		// Should not panic
		c.Delete("nonexistent")
	})
}

// TestCache_SetWithTTL tests custom TTL.
func TestCache_SetWithTTL(t *testing.T) {
	c := New(5*time.Minute, 10*time.Minute, 0)

	c.SetWithTTL("expiring", "value", 50*time.Millisecond)

	_, found := c.Get("expiring")
	if !found {
		t.Error("expected key to exist immediately")
	}

	time.Sleep(100 * time.Millisecond)

	_, found = c.Get("expiring")
	if found {
		t.Error("expected key to be expired")
	}
}

// TestCache_ItemBound tests the maximum item count.
func TestCache_ItemBound(t *testing.T) {
	c := New(5*time.Minute, 10*time.Minute, 3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	if count := c.ItemCount(); count != 3 {
		t.Fatalf("expected 3 items, got %d", count)
	}

	// The bound is strict: admitting a fourth key flushes first.
	c.Set("d", 4)
	if count := c.ItemCount(); count != 1 {
		t.Errorf("expected 1 item after flush, got %d", count)
	}
	if _, found := c.Get("d"); !found {
		t.Error("expected the newly admitted key to survive")
	}
}

// TestCache_ItemBoundOverwrite tests that overwriting at the bound does
// not flush.
func TestCache_ItemBoundOverwrite(t *testing.T) {
	c := New(5*time.Minute, 10*time.Minute, 2)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	if count := c.ItemCount(); count != 2 {
		t.Errorf("expected 2 items, got %d", count)
	}
	val, _ := c.Get("a")
	if val != 10 {
		t.Errorf("expected overwritten value 10, got %v", val)
	}
}

// TestCache_Cleanup tests expired-item cleanup accounting.
func TestCache_Cleanup(t *testing.T) {
	c := New(5*time.Minute, time.Hour, 0)

	c.SetWithTTL("stale-1", "v", 10*time.Millisecond)
	c.SetWithTTL("stale-2", "v", 10*time.Millisecond)
	c.Set("fresh", "v")

	time.Sleep(50 * time.Millisecond)

	if freed := c.Cleanup(); freed != 2 {
		t.Errorf("expected 2 entries freed, got %d", freed)
	}
	if count := c.ItemCount(); count != 1 {
		t.Errorf("expected 1 item remaining, got %d", count)
	}
	if freed := c.Cleanup(); freed != 0 {
		t.Errorf("expected nothing to free on a clean cache, got %d", freed)
	}
}

// TestCache_Clear tests clearing all items.
func TestCache_Clear(t *testing.T) {
	c := New(5*time.Minute, 10*time.Minute, 0)

	c.Set("key1", "value1")
	c.Set("key2", "value2")

	c.Clear()

	if count := c.ItemCount(); count != 0 {
		t.Errorf("expected 0 items after clear, got %d", count)
	}
}

// TestCache_GetStats tests statistics retrieval.
func TestCache_GetStats(t *testing.T) {
	c := New(5*time.Minute, 10*time.Minute, 100)

	c.Set("key1", "value1")
	c.Set("key2", "value2")

	stats := c.GetStats()
	if stats.ItemCount != 2 {
		t.Errorf("expected ItemCount=2, got %d", stats.ItemCount)
	}
	if stats.MaxItems != 100 {
		t.Errorf("expected MaxItems=100, got %d", stats.MaxItems)
	}
}

// TestCache_ConcurrentAccess tests thread-safety with concurrent operations.
func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(5*time.Minute, 10*time.Minute, 0)

	const numGoroutines = 50
	const numOperations = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines * 3)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				c.Set("mixed-"+string(rune('a'+id%26)), j)
			}
		}(i)
	}
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				c.Get("mixed-" + string(rune('a'+id%26)))
			}
		}(i)
	}
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				c.Delete("mixed-" + string(rune('a'+id%26)))
			}
		}(i)
	}

	wg.Wait()
	// Should not panic - test passes if we get here
}
