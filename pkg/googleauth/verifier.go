// Package googleauth verifies Google ID tokens at the login boundary.
package googleauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://oauth2.googleapis.com"

// Identity is the verified subject of a Google ID token.
type Identity struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	PictureURL string `json:"picture"`
}

// Verifier checks Google ID tokens against the tokeninfo endpoint.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

type tokenInfo struct {
	Audience      string `json:"aud"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Option configures the verifier.
type Option func(*httpVerifier)

// WithBaseURL overrides the default tokeninfo base URL.
func WithBaseURL(url string) Option {
	return func(v *httpVerifier) {
		v.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(v *httpVerifier) {
		v.http = hc
	}
}

type httpVerifier struct {
	clientID string
	baseURL  string
	http     *http.Client
}

// NewVerifier creates a Verifier that requires tokens issued for clientID.
func NewVerifier(clientID string, opts ...Option) Verifier {
	v := &httpVerifier{
		clientID: clientID,
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *httpVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if idToken == "" {
		return nil, eris.New("googleauth: id token is required")
	}

	params := url.Values{}
	params.Set("id_token", idToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/tokeninfo?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "googleauth: create request")
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "googleauth: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "googleauth: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("googleauth: token rejected: status %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, eris.Wrap(err, "googleauth: unmarshal tokeninfo")
	}
	if info.Audience != v.clientID {
		return nil, eris.New("googleauth: token audience mismatch")
	}
	if info.Email == "" || info.EmailVerified != "true" {
		return nil, eris.New("googleauth: email not verified")
	}

	return &Identity{Email: info.Email, Name: info.Name, PictureURL: info.Picture}, nil
}
