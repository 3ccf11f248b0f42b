package routes

import (
	"sort"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/filecache/internal/resource"
	"github.com/any-hub/filecache/internal/state"
)

// RegisterResourceRoutes 暴露 /-/resources 诊断接口，供调用方查询 ResultMap。
func RegisterResourceRoutes(app *fiber.App, results *state.Store) {
	if app == nil || results == nil {
		return
	}

	app.Get("/-/resources", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"resources": encodeSnapshot(results.Snapshot()),
		})
	})

	app.Get("/-/resources/lookup", func(c fiber.Ctx) error {
		id, err := resource.ParseIdentifier(c.Query("url"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_url"})
		}
		outcome, ok := results.Lookup(id)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "resource_not_found"})
		}
		return c.JSON(EncodeOutcome(id, outcome))
	})
}

// ResourcePayload 是单个 LoadOutcome 的 JSON 形式。
type ResourcePayload struct {
	URL   string `json:"url"`
	State string `json:"state"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// EncodeOutcome 将 Outcome 编码为 loaded/failed 两种状态。
func EncodeOutcome(id resource.Identifier, outcome state.Outcome) ResourcePayload {
	payload := ResourcePayload{URL: id.String()}
	if handle, ok := outcome.Handle(); ok {
		payload.State = "loaded"
		payload.Path = handle.Path()
		return payload
	}
	payload.State = "failed"
	if err := outcome.Err(); err != nil {
		payload.Error = err.Error()
		payload.Kind = resource.KindOf(err).String()
	}
	return payload
}

func encodeSnapshot(snap state.Snapshot) []ResourcePayload {
	result := make([]ResourcePayload, 0, len(snap))
	for id, outcome := range snap {
		result = append(result, EncodeOutcome(id, outcome))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].URL < result[j].URL
	})
	return result
}
