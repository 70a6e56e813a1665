package devapi

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisRevocations(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r := NewRedisRevocations(client)
	if revoked, err := r.IsRevoked(ctx, "jti-1"); err != nil || revoked {
		t.Fatalf("unknown jti: revoked=%v err=%v", revoked, err)
	}

	if err := r.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if revoked, err := r.IsRevoked(ctx, "jti-1"); err != nil || !revoked {
		t.Fatalf("revoked jti: revoked=%v err=%v", revoked, err)
	}
	if ttl := mr.TTL(revokedKeyPrefix + "jti-1"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if revoked, _ := r.IsRevoked(ctx, "jti-1"); revoked {
		t.Fatalf("revocation should lapse with the token")
	}

	if err := r.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if mr.Exists(revokedKeyPrefix + "jti-2") {
		t.Fatalf("already expired tokens need no revocation entry")
	}
}

func TestMemoryRevocations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryRevocations()
	m.now = func() time.Time { return now }

	if err := m.Revoke(ctx, "jti", now.Add(time.Minute)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if revoked, _ := m.IsRevoked(ctx, "jti"); !revoked {
		t.Fatalf("expected revoked")
	}
	now = now.Add(time.Minute)
	if revoked, _ := m.IsRevoked(ctx, "jti"); revoked {
		t.Fatalf("revocation should lapse at token expiry")
	}
}
