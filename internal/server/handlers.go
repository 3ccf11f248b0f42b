package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/filecache/internal/cache"
	"github.com/any-hub/filecache/internal/config"
	"github.com/any-hub/filecache/internal/coordinator"
	"github.com/any-hub/filecache/internal/policy"
	"github.com/any-hub/filecache/internal/resource"
	"github.com/any-hub/filecache/internal/server/routes"
	"github.com/any-hub/filecache/internal/upstream"
	"github.com/any-hub/filecache/internal/version"
)

type handlers struct {
	logger *logrus.Logger
	cfg    *config.Config
	coord  *coordinator.Coordinator
	store  cache.Store
}

// obtainPayload 是 POST /-/obtain 的请求体；未填写的字段按规则与全局配置补齐。
type obtainPayload struct {
	URL       string        `json:"url"`
	Protected *bool         `json:"protected"`
	Policy    string        `json:"policy"`
	Retry     *retryPayload `json:"retry"`
}

type retryPayload struct {
	Count *int   `json:"count"`
	Delay string `json:"delay"`
}

func (h *handlers) obtain(c fiber.Ctx) error {
	var payload obtainPayload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return badRequest(c, "invalid_body")
	}
	req, errCode := h.buildRequest(payload)
	if errCode != "" {
		return badRequest(c, errCode)
	}

	outcome := h.coord.Obtain(requestContext(c), req)
	encoded := routes.EncodeOutcome(req.Identifier, outcome)
	h.logger.WithFields(logrus.Fields{
		"action":     "obtain",
		"resource":   req.Identifier.String(),
		"policy":     req.Policy.String(),
		"state":      encoded.State,
		"request_id": RequestID(c),
	}).Debug("obtain_request")

	if outcome.IsLoaded() {
		return c.JSON(encoded)
	}
	status := fiber.StatusBadGateway
	if errors.Is(outcome.Err(), resource.ErrUnauthorized) {
		status = fiber.StatusUnauthorized
	}
	return c.Status(status).JSON(encoded)
}

// buildRequest 返回 coordinator.Request；失败时返回错误码。
func (h *handlers) buildRequest(payload obtainPayload) (coordinator.Request, string) {
	id, err := resource.ParseIdentifier(payload.URL)
	if err != nil {
		return coordinator.Request{}, "invalid_url"
	}
	resolved := h.cfg.Resolve(id.String())

	req := coordinator.Request{
		Identifier: id,
		Protected:  resolved.Protected,
		Policy:     resolved.Policy,
		Retry:      h.defaultRetry(),
	}
	if payload.Protected != nil {
		req.Protected = *payload.Protected
	}
	if strings.TrimSpace(payload.Policy) != "" {
		p, err := policy.Parse(payload.Policy)
		if err != nil {
			return coordinator.Request{}, "invalid_policy"
		}
		req.Policy = p
	}
	if payload.Retry != nil {
		retry, ok := h.retryFromPayload(payload.Retry)
		if !ok {
			return coordinator.Request{}, "invalid_retry"
		}
		req.Retry = retry
	}
	return req, ""
}

func (h *handlers) defaultRetry() *upstream.RetrySpec {
	if h.cfg.Global.MaxRetries <= 0 {
		return nil
	}
	return &upstream.RetrySpec{
		Count: h.cfg.Global.MaxRetries,
		Delay: upstream.ExponentialDelay(h.cfg.Global.InitialBackoff.DurationValue()),
	}
}

func (h *handlers) retryFromPayload(p *retryPayload) (*upstream.RetrySpec, bool) {
	count := h.cfg.Global.MaxRetries
	if p.Count != nil {
		count = *p.Count
	}
	if count < 0 {
		return nil, false
	}
	if count == 0 {
		return nil, true
	}
	delay := h.cfg.Global.InitialBackoff.DurationValue()
	if strings.TrimSpace(p.Delay) != "" {
		parsed, err := time.ParseDuration(p.Delay)
		if err != nil || parsed < 0 {
			return nil, false
		}
		delay = parsed
	}
	return &upstream.RetrySpec{Count: count, Delay: upstream.ExponentialDelay(delay)}, true
}

// file 返回已加载资源的本地文件内容。
func (h *handlers) file(c fiber.Ctx) error {
	id, err := resource.ParseIdentifier(c.Query("url"))
	if err != nil {
		return badRequest(c, "invalid_url")
	}
	outcome, ok := h.coord.State().Lookup(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "resource_not_found"})
	}
	handle, loaded := outcome.Handle()
	if !loaded {
		return c.Status(fiber.StatusConflict).JSON(routes.EncodeOutcome(id, outcome))
	}

	body, err := h.store.Read(requestContext(c), handle)
	if err != nil {
		var storageErr *cache.StorageError
		if errors.As(err, &storageErr) && storageErr.Op == cache.OpReadMissingSource {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file_missing"})
		}
		h.logger.WithFields(logrus.Fields{
			"action":     "read_file",
			"resource":   id.String(),
			"request_id": RequestID(c),
		}).WithError(err).Error("file_read_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "file_read_failed"})
	}

	if ext := id.Extension(); ext != "" {
		c.Type(ext)
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	}
	return c.Send(body)
}

// purge 尽力清空目录；单个文件失败不会导致请求失败。
func (h *handlers) purge(c fiber.Ctx) error {
	dest := cache.Destination(strings.ToLower(strings.TrimSpace(c.Query("destination"))))
	switch dest {
	case "", cache.DestinationDocuments, cache.DestinationCaches:
	default:
		return badRequest(c, "invalid_destination")
	}

	report := h.coord.Purge(requestContext(c), coordinator.PurgeRequest{Destination: dest})
	return c.JSON(fiber.Map{
		"destination": string(report.Destination),
		"removed":     report.Removed,
		"failed":      len(report.Failures),
	})
}

func (h *handlers) version(c fiber.Ctx) error {
	return c.JSON(version.Info())
}

func badRequest(c fiber.Ctx, code string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": code})
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
