package handler

import (
	"context"  // request-scoped cancellation for downstream calls
	"log"      // structured-ish line logging, matching the rest of the service
	"net/http" // HTTP status codes and cookie construction
	"time"     // token expiry computation

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/minesa-dev/linked-roles/internal/discord" // Discord OAuth client types
	"github.com/minesa-dev/linked-roles/internal/model"   // token record persisted after exchange
	"github.com/minesa-dev/linked-roles/internal/utils"   // signed state cookie helpers
)

// stateCookieName is the cookie that seals the OAuth state nonce between
// the redirect to Discord and the callback.
const stateCookieName = "client_state"

// OAuthClient is the slice of the Discord client the link flow uses.
type OAuthClient interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (discord.Credentials, error)
	Profile(ctx context.Context, accessToken string) (discord.Profile, error)
}

// CredentialWriter persists the token record obtained from an exchange.
type CredentialWriter interface {
	Put(ctx context.Context, rec model.TokenRecord) error
}

// Resyncer pushes fresh role metadata for an identity.
type Resyncer interface {
	Synchronize(ctx context.Context, identityID string) error
}

// LinkHandler implements the browser-facing OAuth linking flow.  It owns no
// state of its own; every request is a full round trip through the Discord
// client and the credential store.
type LinkHandler struct {
	Discord      OAuthClient      // builds authorize URLs and exchanges codes
	Credentials  CredentialWriter // stores the exchanged token record
	Syncer       Resyncer         // performs the initial metadata push after linking
	CookieSecret string           // signs the state cookie
	StateTTLMin  int              // how long a pending link attempt stays valid
}

// NewLinkHandler constructs a LinkHandler.  All dependencies must be non-nil.
func NewLinkHandler(d OAuthClient, creds CredentialWriter, s Resyncer, cookieSecret string, stateTTLMin int) *LinkHandler {
	if d == nil || creds == nil || s == nil {
		panic("nil dependency passed to NewLinkHandler")
	}
	return &LinkHandler{Discord: d, Credentials: creds, Syncer: s, CookieSecret: cookieSecret, StateTTLMin: stateTTLMin}
}

// BeginLink handles GET /linked-role.  It mints a fresh state nonce, seals
// it in a signed cookie on the visitor's browser, and redirects to the
// Discord authorization page.  Nothing is persisted server side; the state
// round trip lives entirely in the cookie.
func (h *LinkHandler) BeginLink(c echo.Context) error {
	sc, err := utils.NewStateCookie(h.CookieSecret, h.StateTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create state"})
	}
	c.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    sc.Cookie,
		Expires:  sc.Exp,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.Discord.AuthorizeURL(sc.State))
}

// CompleteLink handles GET /discord-oauth-callback.  The state echoed by
// Discord must match the nonce sealed in the visitor's cookie before any
// code exchange happens; a mismatch is rejected with 403 and performs no
// side effects at all.
func (h *LinkHandler) CompleteLink(c echo.Context) error {
	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing code or state"})
	}

	cookie, err := c.Cookie(stateCookieName)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "state verification failed"})
	}
	if err := utils.VerifyStateCookie(h.CookieSecret, cookie.Value, state); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "state verification failed"})
	}
	// The nonce is single use; expire the cookie now that it has been spent.
	c.SetCookie(&http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: true, SameSite: http.SameSiteLaxMode})

	ctx := c.Request().Context()
	creds, err := h.Discord.ExchangeCode(ctx, code)
	if err != nil {
		log.Printf("handler: code exchange failed | err=%v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "code exchange failed"})
	}
	profile, err := h.Discord.Profile(ctx, creds.AccessToken)
	if err != nil {
		log.Printf("handler: profile fetch failed | err=%v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "profile fetch failed"})
	}

	rec := model.TokenRecord{
		IdentityID:   profile.ID,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(creds.ExpiresIn) * time.Second),
	}
	if err := h.Credentials.Put(ctx, rec); err != nil {
		log.Printf("handler: token store failed | identity=%s err=%v", profile.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store credentials"})
	}

	// First push so the Discord profile reflects linked-role metadata right
	// away rather than waiting for the next resolution event.
	if err := h.Syncer.Synchronize(ctx, profile.ID); err != nil {
		log.Printf("handler: initial metadata push failed | identity=%s err=%v", profile.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "metadata push failed"})
	}

	return c.String(http.StatusOK, "You did it! Now go back to Discord.")
}
