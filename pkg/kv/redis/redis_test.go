package redis

import (
	"context"
	"os"
	"testing"

	"github.com/noticeboard/board-backend/pkg/kv"
	"github.com/noticeboard/board-backend/pkg/kv/kvtest"
)

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	factory := func(t *testing.T) kv.Store {
		store, err := New(redisURL)
		if err != nil {
			t.Fatalf("Failed to create Redis store: %v", err)
		}

		store.Del(context.Background(), kvtest.Keys()...)
		return store
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		in     string
		addr   string
		db     int
		pass   string
		hasErr bool
	}{
		{"redis://localhost:6379/2", "localhost:6379", 2, "", false},
		{"redis://:secret@cache:6380/0", "cache:6380", 0, "secret", false},
		{"localhost:6379/3", "localhost:6379", 3, "", false},
		{"", "", 0, "", true},
	}

	for _, tt := range tests {
		opt, err := parseOptions(tt.in)
		if tt.hasErr {
			if err == nil {
				t.Errorf("parseOptions(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseOptions(%q): %v", tt.in, err)
			continue
		}
		if opt.Addr != tt.addr || opt.DB != tt.db || opt.Password != tt.pass {
			t.Errorf("parseOptions(%q) = %s/%d/%q", tt.in, opt.Addr, opt.DB, opt.Password)
		}
	}
}
