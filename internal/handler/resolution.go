package handler

import (
	"errors"   // sentinel comparisons against ledger errors
	"log"      // best-effort operation logging
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/minesa-dev/linked-roles/internal/ledger" // resolution ledger service
	"github.com/minesa-dev/linked-roles/internal/model"  // resolution type enum
)

// ResolutionHandler exposes the bot-facing internal API: recording
// resolution events, reading counters, bumping auxiliary counters and
// forcing a metadata resync.  All routes are expected to sit behind the
// BotAuth middleware.
type ResolutionHandler struct {
	Ledger *ledger.Ledger // ledger service enforcing the anti-abuse policy
	Syncer Resyncer       // pushes metadata after accepted events
}

// NewResolutionHandler constructs a ResolutionHandler.  Both dependencies
// must be non-nil.
func NewResolutionHandler(l *ledger.Ledger, s Resyncer) *ResolutionHandler {
	if l == nil || s == nil {
		panic("nil dependency passed to NewResolutionHandler")
	}
	return &ResolutionHandler{Ledger: l, Syncer: s}
}

// RecordResolution handles POST /v1/resolutions.  The body carries one
// resolution event from the bot.  Policy rejections are not errors: the
// response is always 200 with an "accepted" flag so the bot can relay the
// outcome without special casing.
func (h *ResolutionHandler) RecordResolution(c echo.Context) error {
	var body struct {
		UserID     string `json:"user_id"`
		GuildID    string `json:"guild_id"`
		ThreadID   string `json:"thread_id"`
		ResolverID string `json:"resolver_id"`
		Type       string `json:"type"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	accepted, err := h.Ledger.RecordEvent(ctx, body.UserID, body.GuildID, body.ThreadID, body.ResolverID, model.ResolutionType(body.Type))
	if err != nil {
		if errors.Is(err, ledger.ErrBadEvent) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resolution event"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	// Push the updated counter to Discord only when the event landed.  A
	// failed push never unwinds the accepted event; the next sync catches up.
	if accepted {
		if err := h.Syncer.Synchronize(ctx, body.UserID); err != nil {
			log.Printf("handler: post-resolution sync failed | identity=%s err=%v", body.UserID, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"accepted": accepted})
}

// ResolvedCount handles GET /v1/users/:id/resolved-count and returns the
// lifetime accepted-completed counter for one identity.
func (h *ResolutionHandler) ResolvedCount(c echo.Context) error {
	identityID := c.Param("id")
	if identityID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing user id"})
	}
	count, err := h.Ledger.ResolvedCount(c.Request().Context(), identityID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": identityID, "resolved_count": count})
}

// LedgerState handles GET /v1/users/:id/state and returns the full policy
// snapshot for one identity, mostly for moderator tooling and debugging.
func (h *ResolutionHandler) LedgerState(c echo.Context) error {
	identityID := c.Param("id")
	if identityID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing user id"})
	}
	state, err := h.Ledger.State(c.Request().Context(), identityID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":            state.IdentityID,
		"resolved_count":     state.ResolvedCount,
		"resolutions_today":  state.ResolutionsToday,
		"last_resolution_at": state.LastResolutionAt,
		"guilds_seen":        state.GuildsSeen,
		"timelapse_count":    state.TimelapseCount,
		"ticket_count":       state.TicketCount,
	})
}

// History handles GET /v1/users/:id/resolutions and lists the identity's
// most recent accepted events, newest first.  The optional ?limit query
// parameter is clamped by the ledger service.
func (h *ResolutionHandler) History(c echo.Context) error {
	identityID := c.Param("id")
	if identityID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing user id"})
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
	}
	items, err := h.Ledger.History(c.Request().Context(), identityID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(items))
	for _, it := range items {
		out = append(out, echo.Map{
			"guild_id":    it.GuildID,
			"thread_id":   it.ThreadID,
			"resolved_by": it.ResolvedBy,
			"type":        string(it.ResolutionType),
			"resolved_at": it.ResolvedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": identityID, "resolutions": out})
}

// IncrementCounter handles POST /v1/counters/:name.  The body names the
// identity whose auxiliary counter should be bumped; unknown counter names
// are rejected with 400.  A resync follows so eligibility derived from the
// counter shows up on Discord without waiting for the next event.
func (h *ResolutionHandler) IncrementCounter(c echo.Context) error {
	name := c.Param("name")
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.Bind(&body); err != nil || body.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
	}

	ctx := c.Request().Context()
	if err := h.Ledger.IncrementCounter(ctx, body.UserID, ledger.Counter(name)); err != nil {
		if errors.Is(err, ledger.ErrUnknownCounter) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown counter"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.Syncer.Synchronize(ctx, body.UserID); err != nil {
		log.Printf("handler: post-counter sync failed | identity=%s err=%v", body.UserID, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": body.UserID, "counter": name})
}

// SetCounter handles PUT /v1/counters/:name.  Unlike the increment it
// overwrites the counter with an absolute value, which backfills and
// external reconciliation jobs need.  Negative values are rejected.
func (h *ResolutionHandler) SetCounter(c echo.Context) error {
	name := c.Param("name")
	var body struct {
		UserID string `json:"user_id"`
		Value  *int64 `json:"value"`
	}
	if err := c.Bind(&body); err != nil || body.UserID == "" || body.Value == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id and value are required"})
	}
	if *body.Value < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "value must not be negative"})
	}

	ctx := c.Request().Context()
	if err := h.Ledger.SetCounter(ctx, body.UserID, ledger.Counter(name), *body.Value); err != nil {
		if errors.Is(err, ledger.ErrUnknownCounter) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown counter"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.Syncer.Synchronize(ctx, body.UserID); err != nil {
		log.Printf("handler: post-counter sync failed | identity=%s err=%v", body.UserID, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": body.UserID, "counter": name, "value": *body.Value})
}

// UpdateMetadata handles POST /v1/update-metadata and forces a full
// metadata resync for one identity.  Unlinked identities are a silent
// no-op, so this endpoint is safe to call speculatively.
func (h *ResolutionHandler) UpdateMetadata(c echo.Context) error {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.Bind(&body); err != nil || body.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
	}
	if err := h.Syncer.Synchronize(c.Request().Context(), body.UserID); err != nil {
		log.Printf("handler: resync failed | identity=%s err=%v", body.UserID, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "metadata push failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": body.UserID, "synced": true})
}
