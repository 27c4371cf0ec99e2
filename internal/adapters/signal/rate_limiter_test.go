package signal

import (
	"testing"
	"time"
)

func TestRateLimiterCapsBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow(1) {
			t.Fatalf("attempt %d rejected inside the limit", i)
		}
	}
	if rl.Allow(1) {
		t.Error("attempt over the limit allowed")
	}
}

func TestRateLimiterIsPerUser(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	if !rl.Allow(1) {
		t.Fatal("first user rejected")
	}
	if !rl.Allow(2) {
		t.Error("second user throttled by the first")
	}
}

func TestRateLimiterWindowExpires(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)
	if !rl.Allow(1) {
		t.Fatal("first attempt rejected")
	}
	if rl.Allow(1) {
		t.Fatal("second attempt inside the window allowed")
	}
	time.Sleep(20 * time.Millisecond)
	if !rl.Allow(1) {
		t.Error("attempt after the window expired still rejected")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !rl.Allow(1) {
			t.Fatal("disabled limiter rejected an attempt")
		}
	}
}
