package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

const maxTokenResponseBodyBytes = 1 << 20

// HTTPDoer is the transport contract used for token endpoint calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OAuth2Endpoints drives the authorization-code flow against a
// provider's authorize and token endpoints. Concrete providers embed
// it and layer their tool surface on top.
type OAuth2Endpoints struct {
	AuthURL            string
	TokenURL           string
	ClientID           string
	ClientSecret       string
	ClientSecretInBody bool
	DefaultScopes      []string
	ExtraAuthParams    map[string]string
	TokenTTL           time.Duration
	HTTPClient         HTTPDoer
	Now                func() time.Time
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func (e *OAuth2Endpoints) validate() error {
	if e == nil {
		return fmt.Errorf("providers: oauth2 endpoints are required")
	}
	if strings.TrimSpace(e.AuthURL) == "" {
		return fmt.Errorf("providers: auth url is required")
	}
	if strings.TrimSpace(e.TokenURL) == "" {
		return fmt.Errorf("providers: token url is required")
	}
	if strings.TrimSpace(e.ClientID) == "" {
		return fmt.Errorf("providers: client id is required")
	}
	return nil
}

// Configured reports whether the endpoints carry enough material to
// run the flow end to end.
func (e *OAuth2Endpoints) Configured() bool {
	if e == nil {
		return false
	}
	return strings.TrimSpace(e.ClientID) != "" && strings.TrimSpace(e.ClientSecret) != ""
}

// BuildAuthURL assembles the authorize redirect for one tenant flow.
func (e *OAuth2Endpoints) BuildAuthURL(_ context.Context, req core.AuthURLRequest) (string, error) {
	if err := e.validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.State) == "" {
		return "", fmt.Errorf("providers: state is required")
	}
	if strings.TrimSpace(req.RedirectURI) == "" {
		return "", fmt.Errorf("providers: redirect uri is required")
	}

	parsed, err := url.Parse(strings.TrimSpace(e.AuthURL))
	if err != nil {
		return "", fmt.Errorf("providers: invalid auth url: %w", err)
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = e.DefaultScopes
	}

	query := parsed.Query()
	query.Set("response_type", "code")
	query.Set("client_id", strings.TrimSpace(e.ClientID))
	query.Set("redirect_uri", strings.TrimSpace(req.RedirectURI))
	query.Set("state", strings.TrimSpace(req.State))
	if len(scopes) > 0 {
		query.Set("scope", strings.Join(scopes, " "))
	}
	for key, value := range e.ExtraAuthParams {
		if strings.TrimSpace(key) == "" {
			continue
		}
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// ExchangeCode trades an authorization code for tokens.
func (e *OAuth2Endpoints) ExchangeCode(ctx context.Context, req core.ExchangeRequest) (core.ExchangeResult, error) {
	if err := e.validate(); err != nil {
		return core.ExchangeResult{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		return core.ExchangeResult{}, fmt.Errorf("providers: authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(req.Code))
	if strings.TrimSpace(req.RedirectURI) != "" {
		form.Set("redirect_uri", strings.TrimSpace(req.RedirectURI))
	}

	payload, err := e.fetchToken(ctx, form)
	if err != nil {
		return core.ExchangeResult{}, err
	}
	if payload.AccessToken == "" {
		return core.ExchangeResult{}, fmt.Errorf("providers: token response missing access_token")
	}
	return core.ExchangeResult{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    e.resolveExpiresAt(e.now(), payload.ExpiresIn),
	}, nil
}

// RefreshToken trades a refresh token for a fresh access token.
func (e *OAuth2Endpoints) RefreshToken(ctx context.Context, refreshToken string) (core.RefreshResult, error) {
	if err := e.validate(); err != nil {
		return core.RefreshResult{}, err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return core.RefreshResult{}, fmt.Errorf("providers: refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", strings.TrimSpace(refreshToken))

	payload, err := e.fetchToken(ctx, form)
	if err != nil {
		return core.RefreshResult{}, err
	}
	if payload.AccessToken == "" {
		return core.RefreshResult{}, fmt.Errorf("providers: token response missing access_token")
	}
	return core.RefreshResult{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    e.resolveExpiresAt(e.now(), payload.ExpiresIn),
	}, nil
}

func (e *OAuth2Endpoints) fetchToken(ctx context.Context, form url.Values) (tokenEndpointPayload, error) {
	form.Set("client_id", strings.TrimSpace(e.ClientID))
	if e.ClientSecretInBody && strings.TrimSpace(e.ClientSecret) != "" {
		form.Set("client_secret", strings.TrimSpace(e.ClientSecret))
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(e.TokenURL), strings.NewReader(form.Encode()))
	if err != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: build token request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")
	if !e.ClientSecretInBody && strings.TrimSpace(e.ClientSecret) != "" {
		request.SetBasicAuth(strings.TrimSpace(e.ClientID), strings.TrimSpace(e.ClientSecret))
	}

	response, err := e.httpClient().Do(request)
	if err != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if err != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: read token response: %w", err)
	}
	if len(body) > maxTokenResponseBodyBytes {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token response exceeds %d bytes", maxTokenResponseBodyBytes)
	}

	payload, parseErr := parseTokenPayload(response.Header.Get("Content-Type"), body)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		if parseErr == nil && payload.ErrorCode != "" {
			return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint returned %d: %s", response.StatusCode, describeTokenError(payload))
		}
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint returned %d", response.StatusCode)
	}
	if parseErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: decode token response: %w", parseErr)
	}
	if payload.ErrorCode != "" {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint error: %s", describeTokenError(payload))
	}
	return payload, nil
}

func (e *OAuth2Endpoints) httpClient() HTTPDoer {
	if e != nil && e.HTTPClient != nil {
		return e.HTTPClient
	}
	return http.DefaultClient
}

func (e *OAuth2Endpoints) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *OAuth2Endpoints) resolveExpiresAt(now time.Time, expiresIn int64) *time.Time {
	ttl := time.Duration(0)
	if e != nil {
		ttl = e.TokenTTL
	}
	if expiresIn > 0 {
		ttl = time.Duration(expiresIn) * time.Second
	}
	if ttl <= 0 {
		return nil
	}
	expiresAt := now.Add(ttl)
	return &expiresAt
}

func describeTokenError(payload tokenEndpointPayload) string {
	if payload.ErrorDescription != "" {
		return fmt.Sprintf("%s (%s)", payload.ErrorCode, payload.ErrorDescription)
	}
	return payload.ErrorCode
}

func parseTokenPayload(contentType string, body []byte) (tokenEndpointPayload, error) {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if index := strings.Index(normalized, ";"); index >= 0 {
		normalized = strings.TrimSpace(normalized[:index])
	}
	switch normalized {
	case "application/json", "text/json":
		return parseTokenPayloadJSON(body)
	case "application/x-www-form-urlencoded", "text/plain":
		payload, err := parseTokenPayloadForm(body)
		if err != nil {
			return tokenEndpointPayload{}, err
		}
		return payload, nil
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0
		}
		return parsed
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
