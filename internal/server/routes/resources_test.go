package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/afero"

	"github.com/any-hub/filecache/internal/cache"
	"github.com/any-hub/filecache/internal/resource"
	"github.com/any-hub/filecache/internal/state"
)

func TestEncodeSnapshotSortsByURL(t *testing.T) {
	snap := state.Snapshot{
		resource.MustParseIdentifier("https://b.example.com/x"): state.Failed(resource.Unauthorized(errors.New("401"))),
		resource.MustParseIdentifier("https://a.example.com/y"): state.Loaded(testHandle(t, "y")),
	}

	encoded := encodeSnapshot(snap)
	if len(encoded) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(encoded))
	}
	if encoded[0].URL != "https://a.example.com/y" || encoded[0].State != "loaded" || encoded[0].Path == "" {
		t.Fatalf("unexpected first entry %+v", encoded[0])
	}
	if encoded[1].State != "failed" || encoded[1].Kind != "unauthorized" {
		t.Fatalf("unexpected second entry %+v", encoded[1])
	}
}

func TestLookupRoute(t *testing.T) {
	results := state.NewStore()
	id := resource.MustParseIdentifier("https://a.example.com/doc.pdf")
	results.Apply(id, state.Loaded(testHandle(t, "doc.pdf")))

	app := fiber.New()
	RegisterResourceRoutes(app, results)

	cases := []struct {
		query  string
		status int
	}{
		{query: "url=https://a.example.com/doc.pdf", status: fiber.StatusOK},
		{query: "url=https://a.example.com/other.pdf", status: fiber.StatusNotFound},
		{query: "url=not-a-url", status: fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", "/-/resources/lookup?"+tc.query, nil))
		if err != nil {
			t.Fatalf("app.Test failed: %v", err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.query, tc.status, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/-/resources", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		Resources []ResourcePayload `json:"resources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode failed: %v (%s)", err, body)
	}
	if len(payload.Resources) != 1 || payload.Resources[0].URL != id.String() {
		t.Fatalf("unexpected payload %s", body)
	}
}

func testHandle(t *testing.T, key string) cache.Handle {
	t.Helper()
	store, err := cache.NewStoreWithFs(afero.NewMemMapFs(), "/storage")
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	handle, err := store.Locate(key, cache.DestinationDocuments)
	if err != nil {
		t.Fatalf("locate error: %v", err)
	}
	return handle
}
