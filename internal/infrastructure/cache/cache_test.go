package cache

import (
	"testing"
	"time"
)

func TestMemory_RoundTrip(t *testing.T) {
	store := NewMemory()
	store.Set("k", []byte("v"), time.Minute)

	got, ok := store.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected hit with %q, got %q ok=%t", "v", got, ok)
	}

	if _, ok := store.Get("absent"); ok {
		t.Fatal("unknown key should miss")
	}
}

func TestMemory_Expiry(t *testing.T) {
	store := NewMemory()
	store.Set("short", []byte("v"), time.Millisecond)
	store.Set("forever", []byte("v"), 0)

	time.Sleep(5 * time.Millisecond)

	if _, ok := store.Get("short"); ok {
		t.Fatal("expired entry should miss")
	}
	if _, ok := store.Get("forever"); !ok {
		t.Fatal("zero TTL entry should not expire")
	}
}

func TestMemory_CleanExpired(t *testing.T) {
	store := NewMemory()
	store.Set("a", []byte("1"), time.Millisecond)
	store.Set("b", []byte("2"), time.Hour)

	time.Sleep(5 * time.Millisecond)

	if cleaned := store.CleanExpired(); cleaned != 1 {
		t.Errorf("expected 1 swept entry, got %d", cleaned)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 surviving entry, got %d", store.Len())
	}
}

func TestMemory_JanitorSweeps(t *testing.T) {
	store := NewMemory()
	store.Set("k", []byte("v"), 5*time.Millisecond)

	stop := store.StartJanitor(10 * time.Millisecond)
	defer stop()

	deadline := time.After(time.Second)
	for store.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("janitor never swept the expired entry")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

type fact struct {
	Mint  string  `json:"mint"`
	Value float64 `json:"value"`
}

func TestManager_TypedRoundTrip(t *testing.T) {
	manager := NewManager(NewMemory())

	manager.Put("supply", "mint-a", fact{Mint: "mint-a", Value: 1000})

	var got fact
	if !manager.Get("supply", "mint-a", &got) {
		t.Fatal("expected cache hit")
	}
	if got.Value != 1000 {
		t.Errorf("expected 1000, got %f", got.Value)
	}

	var miss fact
	if manager.Get("supply", "mint-b", &miss) {
		t.Fatal("different key should miss")
	}
}

func TestManager_ZeroTTLDisablesCategory(t *testing.T) {
	manager := NewManager(NewMemory())
	manager.SetTTL("holders", 0)

	manager.Put("holders", "mint-a", fact{Value: 1})

	var got fact
	if manager.Get("holders", "mint-a", &got) {
		t.Fatal("zero TTL category must not cache")
	}
}

func TestManager_Stats(t *testing.T) {
	manager := NewManager(NewMemory())
	manager.Put("supply", "mint-a", fact{Value: 1})

	var got fact
	manager.Get("supply", "mint-a", &got) // hit
	manager.Get("supply", "mint-b", &got) // miss

	stats := manager.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %+v", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("expected 0.5 hit rate, got %f", stats.HitRate)
	}
}

func TestManager_UnknownCategoryUsesFallback(t *testing.T) {
	manager := NewManager(NewMemory())
	if ttl := manager.TTL("unheard-of"); ttl != fallbackTTL {
		t.Errorf("expected fallback TTL, got %s", ttl)
	}
}
