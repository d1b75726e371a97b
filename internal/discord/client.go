package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// requestedScopes must stay in sync with what the application was
	// registered for; role_connections.write is what lets us push
	// metadata, identify lets us resolve the user ID on callback.
	requestedScopes = "role_connections.write identify"

	defaultRequestTimeout = 30 * time.Second
	maxResponseBodyBytes  = 1 << 20 // 1 MiB
)

// Credentials is the JSON shape returned by the OAuth2 token endpoint
// for both the authorization_code and refresh_token grants.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Profile is the subset of the /oauth2/@me response the service uses.
type Profile struct {
	ID       string
	Username string
}

// MetadataPayload is the role-connection resource written to Discord.
// Metadata values are booleans or numeric values encoded as decimal
// strings, matching the registered metadata schema types.
type MetadataPayload struct {
	PlatformName     string         `json:"platform_name,omitempty"`
	PlatformUsername string         `json:"platform_username,omitempty"`
	Metadata         map[string]any `json:"metadata"`
}

// Client performs the external Discord calls.  It holds no mutable
// state; one instance is shared by the broker, the synchronizer and the
// link handlers.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	redirectURI  string
	http         *http.Client
}

// NewClient builds a Client for the given application credentials.
// baseURL is the Discord API root (e.g. https://discord.com/api/v10)
// and is overridable so tests can point at a local server.
func NewClient(baseURL, clientID, clientSecret, redirectURI string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		http:         &http.Client{Timeout: defaultRequestTimeout},
	}
}

// AuthorizeURL builds the consent URL the user is redirected to at the
// start of the link flow.  The state parameter is the CSRF nonce issued
// alongside the signed state cookie.
func (c *Client) AuthorizeURL(state string) string {
	v := url.Values{}
	v.Set("client_id", c.clientID)
	v.Set("redirect_uri", c.redirectURI)
	v.Set("response_type", "code")
	v.Set("state", state)
	v.Set("scope", requestedScopes)
	v.Set("prompt", "consent")
	return "https://discord.com/api/oauth2/authorize?" + v.Encode()
}

// ExchangeCode swaps an authorization code for a credential pair.
// A non-2xx response surfaces as *ExchangeError carrying the upstream
// status and body.
func (c *Client) ExchangeCode(ctx context.Context, code string) (Credentials, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)

	status, body, err := c.postForm(ctx, "/oauth2/token", form)
	if err != nil {
		return Credentials{}, &ExchangeError{Body: err.Error()}
	}
	if status < 200 || status >= 300 {
		return Credentials{}, &ExchangeError{Status: status, Body: string(body)}
	}
	var creds Credentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return Credentials{}, &ExchangeError{Status: status, Body: "malformed token response: " + err.Error()}
	}
	return creds, nil
}

// RefreshCredentials swaps a refresh token for a new credential pair.
// A non-2xx response surfaces as *RefreshError; the caller decides
// whether the identity must re-authorize.
func (c *Client) RefreshCredentials(ctx context.Context, refreshToken string) (Credentials, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	status, body, err := c.postForm(ctx, "/oauth2/token", form)
	if err != nil {
		return Credentials{}, &RefreshError{Body: err.Error()}
	}
	if status < 200 || status >= 300 {
		return Credentials{}, &RefreshError{Status: status, Body: string(body)}
	}
	var creds Credentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return Credentials{}, &RefreshError{Status: status, Body: "malformed token response: " + err.Error()}
	}
	return creds, nil
}

// Profile fetches the authorizing user's identity via /oauth2/@me.
func (c *Client) Profile(ctx context.Context, accessToken string) (Profile, error) {
	status, body, err := c.bearer(ctx, http.MethodGet, "/oauth2/@me", accessToken, nil)
	if err != nil {
		return Profile{}, &ProfileFetchError{Body: err.Error()}
	}
	if status < 200 || status >= 300 {
		return Profile{}, &ProfileFetchError{Status: status, Body: string(body)}
	}
	var decoded struct {
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Profile{}, &ProfileFetchError{Status: status, Body: "malformed profile response: " + err.Error()}
	}
	return Profile{ID: decoded.User.ID, Username: decoded.User.Username}, nil
}

// PutMetadata replaces the user's role-connection record.  The PUT is a
// full idempotent replace; Discord keeps no fields we do not send.
func (c *Client) PutMetadata(ctx context.Context, accessToken string, payload MetadataPayload) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	status, body, err := c.bearer(ctx, http.MethodPut, c.roleConnectionPath(), accessToken, encoded)
	if err != nil {
		return &MetadataWriteError{Body: err.Error()}
	}
	if status < 200 || status >= 300 {
		return &MetadataWriteError{Status: status, Body: string(body)}
	}
	return nil
}

// GetMetadata reads back the user's current role-connection record.
func (c *Client) GetMetadata(ctx context.Context, accessToken string) (MetadataPayload, error) {
	status, body, err := c.bearer(ctx, http.MethodGet, c.roleConnectionPath(), accessToken, nil)
	if err != nil {
		return MetadataPayload{}, &MetadataReadError{Body: err.Error()}
	}
	if status < 200 || status >= 300 {
		return MetadataPayload{}, &MetadataReadError{Status: status, Body: string(body)}
	}
	var payload MetadataPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return MetadataPayload{}, &MetadataReadError{Status: status, Body: "malformed metadata response: " + err.Error()}
	}
	return payload, nil
}

func (c *Client) roleConnectionPath() string {
	return "/users/@me/applications/" + c.clientID + "/role-connection"
}

// postForm sends a form-encoded POST without a bearer token (the token
// endpoint authenticates via client_id/client_secret in the body).
func (c *Client) postForm(ctx context.Context, path string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// bearer sends a request authenticated with exactly one bearer token.
func (c *Client) bearer(ctx context.Context, method, path, accessToken string, jsonBody []byte) (int, []byte, error) {
	var reader io.Reader
	if jsonBody != nil {
		reader = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
