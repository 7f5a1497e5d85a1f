package envutil

import (
	"testing"
	"time"
)

func TestDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("AVATAR_CACHE_TTL", "3600")
	if got := Duration("AVATAR_CACHE_TTL", time.Minute); got != time.Hour {
		t.Fatalf("Duration seconds: want=%v got=%v", time.Hour, got)
	}
	t.Setenv("AVATAR_CACHE_TTL", "90s")
	if got := Duration("AVATAR_CACHE_TTL", time.Minute); got != 90*time.Second {
		t.Fatalf("Duration go syntax: want=%v got=%v", 90*time.Second, got)
	}
	t.Setenv("AVATAR_CACHE_TTL", "soon")
	if got := Duration("AVATAR_CACHE_TTL", time.Minute); got != time.Minute {
		t.Fatalf("Duration fallback: want=%v got=%v", time.Minute, got)
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "yes")
	if !Bool("METRICS_ENABLED", false) {
		t.Fatalf("Bool: want=true got=false")
	}
	t.Setenv("METRICS_ENABLED", "maybe")
	if Bool("METRICS_ENABLED", false) {
		t.Fatalf("Bool fallback: want=false got=true")
	}

	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a , ,http://b ")
	got := List("CORS_ALLOWED_ORIGINS", nil)
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Fatalf("List: unexpected %v", got)
	}
}
