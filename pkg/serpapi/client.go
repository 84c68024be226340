// Package serpapi wraps the SerpApi Google Maps engines for place searches
// and review lookups.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/resilience"
)

const defaultBaseURL = "https://serpapi.com"

// Client performs Google Maps searches through SerpApi.
type Client interface {
	// Search runs a google_maps search and returns the local results in
	// ranked order.
	Search(ctx context.Context, req SearchRequest) ([]LocalResult, error)

	// Reviews fetches reviews for a place by its place ID.
	Reviews(ctx context.Context, placeID string) ([]Review, error)
}

// SearchRequest is one google_maps search. Set LL for coordinate-anchored
// searches ("@lat,lng,15z") or Location for named ones.
type SearchRequest struct {
	Query    string
	LL       string
	Location string
}

// LocalResult is one ranked place of a maps search.
type LocalResult struct {
	Position    int      `json:"position"`
	Title       string   `json:"title"`
	PlaceID     string   `json:"place_id"`
	DataCID     string   `json:"data_cid"`
	Rating      float64  `json:"rating"`
	Reviews     int      `json:"reviews"`
	Address     string   `json:"address"`
	Website     string   `json:"website"`
	Phone       string   `json:"phone"`
	Thumbnail   string   `json:"thumbnail"`
	Type        string   `json:"type"`
	Types       []string `json:"types"`
	OpenState   string   `json:"open_state"`
	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"gps_coordinates"`
}

// Review is one customer review of a place.
type Review struct {
	Rating  float64 `json:"rating"`
	Date    string  `json:"date"`
	Snippet string  `json:"snippet"`
	Link    string  `json:"link"`
	User    struct {
		Name      string `json:"name"`
		Thumbnail string `json:"thumbnail"`
	} `json:"user"`
}

type searchResponse struct {
	Error        string        `json:"error"`
	LocalResults []LocalResult `json:"local_results"`
}

type reviewsResponse struct {
	Error   string   `json:"error"`
	Reviews []Review `json:"reviews"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a SerpApi client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) ([]LocalResult, error) {
	if req.Query == "" {
		return nil, eris.New("serpapi: query is required")
	}

	params := url.Values{}
	params.Set("engine", "google_maps")
	params.Set("type", "search")
	params.Set("q", req.Query)
	if req.LL != "" {
		params.Set("ll", req.LL)
	} else if req.Location != "" {
		params.Set("location", req.Location)
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}
	if parsed.Error != "" {
		return nil, eris.Errorf("serpapi: api error: %s", parsed.Error)
	}
	return parsed.LocalResults, nil
}

func (c *httpClient) Reviews(ctx context.Context, placeID string) ([]Review, error) {
	if placeID == "" {
		return nil, eris.New("serpapi: place_id is required")
	}

	params := url.Values{}
	params.Set("engine", "google_maps_reviews")
	params.Set("place_id", placeID)

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var parsed reviewsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal reviews")
	}
	if parsed.Error != "" {
		return nil, eris.Errorf("serpapi: api error: %s", parsed.Error)
	}
	return parsed.Reviews, nil
}

func (c *httpClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("api_key", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return respBody, nil
}
