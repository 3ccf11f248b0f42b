package upstream

import (
	"testing"
	"time"

	"github.com/any-hub/filecache/internal/config"
)

func TestNewUpstreamClientUsesConfigTimeout(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{
			UpstreamTimeout: config.Duration(45 * time.Second),
		},
	}

	client := NewUpstreamClient(cfg)
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
	if client.Transport == nil {
		t.Fatalf("expected pooled transport")
	}
}

func TestNewUpstreamClientDefaultsTimeout(t *testing.T) {
	client := NewUpstreamClient(nil)
	if client.Timeout != 30*time.Second {
		t.Fatalf("expected default timeout 30s, got %s", client.Timeout)
	}
}

func TestStaticHeadersAddsBearerPrefix(t *testing.T) {
	cases := []struct {
		name   string
		header StaticHeaders
		key    string
		want   string
	}{
		{name: "bearer", header: StaticHeaders{Token: "abc"}, key: "Authorization", want: "Bearer abc"},
		{name: "explicit scheme", header: StaticHeaders{Token: "Basic Zm9v"}, key: "Authorization", want: "Basic Zm9v"},
		{name: "custom header", header: StaticHeaders{Header: "X-Api-Key", Token: "abc"}, key: "X-Api-Key", want: "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := tc.header.Headers(t.Context())
			if err != nil {
				t.Fatalf("headers error: %v", err)
			}
			if got := h.Get(tc.key); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
