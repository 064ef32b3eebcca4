package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"todoclient/domain"
)

// Fixed user-facing messages keyed by provider error code. Anything the
// provider reports outside this set degrades to the per-flow fallback.
var signInMessages = map[string]string{
	"invalid_email":      "Ungültige E-Mail-Adresse",
	"user_not_found":     "Benutzer nicht gefunden",
	"wrong_password":     "Falsches Passwort",
	"invalid_credential": "E-Mail oder Passwort falsch",
}

var signUpMessages = map[string]string{
	"email_already_in_use": "E-Mail bereits registriert",
	"invalid_email":        "Ungültige E-Mail-Adresse",
	"weak_password":        "Passwort zu schwach",
}

const (
	signInFallback = "Anmeldung fehlgeschlagen"
	signUpFallback = "Registrierung fehlgeschlagen"
)

// Config describes the identity provider tenancy.
type Config struct {
	// Issuer is the provider base URL, with trailing slash.
	Issuer   string
	Audience string
	ClientID string
	// Realm is the database connection sign-ups go to.
	Realm      string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client owns the credential flows against the identity provider and the
// observable session the rest of the app reacts to.
type Client struct {
	cfg       Config
	http      *http.Client
	validator *Validator
	state     *SessionState
	logger    *log.Logger
}

// NewClient creates a Client. The validator checks the access tokens the
// provider hands back.
func NewClient(cfg Config, validator *Validator) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{
		cfg:       cfg,
		http:      httpClient,
		validator: validator,
		state:     NewSessionState(),
		logger:    logger,
	}
}

// Sessions returns the observable current-session value.
func (c *Client) Sessions() *SessionState { return c.state }

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Audience  string `json:"audience,omitempty"`
	ClientID  string `json:"client_id"`
	Scope     string `json:"scope"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type signUpRequest struct {
	ClientID   string `json:"client_id"`
	Connection string `json:"connection"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// providerError covers both error body shapes the provider uses: the token
// endpoint reports `error`/`error_description`, signup `code`/`description`.
type providerError struct {
	Code        string `json:"code"`
	Error       string `json:"error"`
	Description string `json:"description"`
	ErrorDesc   string `json:"error_description"`
}

func (e providerError) code() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Error
}

// SignIn exchanges credentials for a session and publishes it. Rejections
// surface as *domain.AuthError with a fixed user-facing message; empty
// input never reaches the network.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, &domain.ValidationError{Message: "Bitte E-Mail und Passwort eingeben"}
	}

	body := tokenRequest{
		GrantType: "password",
		Username:  email,
		Password:  password,
		Audience:  c.cfg.Audience,
		ClientID:  c.cfg.ClientID,
		Scope:     "openid email",
	}
	var tok tokenResponse
	if err := c.post(ctx, "oauth/token", body, &tok, signInMessages, signInFallback); err != nil {
		return nil, err
	}

	info, err := c.validator.Validate(tok.AccessToken)
	if err != nil {
		c.logger.Errorf("validate access token: %v", err)
		return nil, &domain.AuthError{Message: signInFallback, Err: err}
	}

	sess := &Session{
		UserID:      info.UserID,
		Email:       info.Email,
		AccessToken: tok.AccessToken,
		ExpiresAt:   info.ExpiresAt,
	}
	if sess.Email == "" {
		sess.Email = email
	}
	c.state.Set(sess)
	return sess, nil
}

// SignUp registers the user and signs them in. Password policy is checked
// locally first so weak input never leaves the device.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, &domain.ValidationError{Message: "Bitte E-Mail und Passwort eingeben"}
	}
	if len(password) < 6 {
		return nil, &domain.ValidationError{Message: "Passwort muss mindestens 6 Zeichen lang sein"}
	}

	body := signUpRequest{
		ClientID:   c.cfg.ClientID,
		Connection: c.cfg.Realm,
		Email:      email,
		Password:   password,
	}
	if err := c.post(ctx, "dbconnections/signup", body, nil, signUpMessages, signUpFallback); err != nil {
		return nil, err
	}

	return c.SignIn(ctx, email, password)
}

// SignOut clears the published session. The access token is simply
// forgotten; there is nothing to revoke server-side for this flow.
func (c *Client) SignOut(ctx context.Context) error {
	c.state.Set(nil)
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any, messages map[string]string, fallback string) error {
	payload, err := sonic.Marshal(body)
	if err != nil {
		return &domain.AuthError{Message: fallback, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Issuer+path, bytes.NewReader(payload))
	if err != nil {
		return &domain.AuthError{Message: fallback, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.AuthError{Message: fallback, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.AuthError{Message: fallback, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pErr providerError
		if err := sonic.Unmarshal(data, &pErr); err != nil {
			return &domain.AuthError{Message: fallback}
		}
		code := pErr.code()
		msg, ok := messages[code]
		if !ok {
			msg = fallback
		}
		return &domain.AuthError{Code: code, Message: msg}
	}

	if out != nil {
		if err := sonic.Unmarshal(data, out); err != nil {
			return &domain.AuthError{Message: fallback, Err: err}
		}
	}
	return nil
}
