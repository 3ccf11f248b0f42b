package policy

import (
	"encoding/json"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	cases := map[string]Policy{
		"never":          Never(),
		"always":         Always(),
		"lazy:3d":        Lazy(Every(3, Days)),
		"required:12h":   Required(Every(12, Hours)),
		"lazy:2w":        Lazy(Every(2, Weeks)),
		"required:6mo":   Required(Every(6, Months)),
		"lazy:1y":        Lazy(Every(1, Years)),
		"required:30m":   Required(Every(30, Minutes)),
		" Required:0D  ": Required(Every(0, Days)),
	}
	for raw, want := range cases {
		got, err := Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %v, got %v", raw, want, got)
		}
		again, err := Parse(got.String())
		if err != nil || again != got {
			t.Fatalf("round trip of %q failed: %v %v", raw, again, err)
		}
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"", "sometimes", "lazy", "required:", "always:3d", "lazy:d", "lazy:3x", "lazy:-1d"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestPolicyJSON(t *testing.T) {
	var body struct {
		Policy Policy `json:"policy"`
	}
	if err := json.Unmarshal([]byte(`{"policy":"lazy:5m"}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Policy != Lazy(Every(5, Minutes)) {
		t.Fatalf("unexpected policy %v", body.Policy)
	}
	c, ok := body.Policy.Cadence()
	if !ok || c.Magnitude != 5 || c.Unit != Minutes {
		t.Fatalf("unexpected cadence %v", c)
	}
	if _, ok := Always().Cadence(); ok {
		t.Fatalf("always carries no cadence")
	}
}
