package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllow_EnforcesBurst(t *testing.T) {
	limiter := NewLimiter(1, 2)

	if !limiter.Allow("api.example.com") {
		t.Fatal("first request should pass")
	}
	if !limiter.Allow("api.example.com") {
		t.Fatal("second request is inside the burst")
	}
	if limiter.Allow("api.example.com") {
		t.Fatal("third immediate request should be throttled")
	}
}

func TestAllow_HostsAreIndependent(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("a.example.com") {
		t.Fatal("first host should pass")
	}
	if !limiter.Allow("b.example.com") {
		t.Fatal("draining one host must not throttle another")
	}
}

func TestWait_HonorsContext(t *testing.T) {
	limiter := NewLimiter(0.1, 1)
	limiter.Allow("slow.example.com") // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "slow.example.com"); err == nil {
		t.Fatal("wait should fail once the context expires")
	}
}

func TestStats_ReportsKnownHosts(t *testing.T) {
	limiter := NewLimiter(5, 3)
	limiter.Allow("api.example.com")

	stats := limiter.Stats()
	hostStats, ok := stats["api.example.com"]
	if !ok {
		t.Fatal("stats should include hosts that have been used")
	}
	if hostStats.RPS != 5 || hostStats.Burst != 3 {
		t.Errorf("unexpected limiter settings: %+v", hostStats)
	}

	limiter.Reset()
	if len(limiter.Stats()) != 0 {
		t.Error("reset should drop all buckets")
	}
}
