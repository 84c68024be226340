// Package dataforseo wraps the DataForSEO live SERP API for Google Maps
// searches and the Google location directory.
package dataforseo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/resilience"
)

const defaultBaseURL = "https://api.dataforseo.com"

// API-level status code for a successful task.
const statusOK = 20000

// Client performs live Google Maps searches against DataForSEO.
type Client interface {
	// Search posts a single live maps task and returns its ranked items.
	Search(ctx context.Context, task Task) ([]MapsItem, error)

	// SearchBatch posts several tasks in one request. Results are keyed by
	// each task's Tag; tasks that failed upstream are absent from the map.
	SearchBatch(ctx context.Context, tasks []Task) (map[string][]MapsItem, error)

	// Locations fetches the provider's location directory for a country.
	Locations(ctx context.Context, countryCode string) ([]Location, error)
}

// Task is one live maps search. Exactly one of LocationName or
// LocationCoordinate must be set.
type Task struct {
	Keyword            string `json:"keyword"`
	LocationName       string `json:"location_name,omitempty"`
	LocationCoordinate string `json:"location_coordinate,omitempty"`
	LanguageCode       string `json:"language_code,omitempty"`
	Depth              int    `json:"depth,omitempty"`
	Tag                string `json:"tag,omitempty"`
}

// MapsItem is one ranked entry of a maps SERP.
type MapsItem struct {
	Type      string  `json:"type"`
	RankGroup int     `json:"rank_group"`
	Title     string  `json:"title"`
	PlaceID   string  `json:"place_id"`
	CID       string  `json:"cid"`
	URL       string  `json:"url"`
	Phone     string  `json:"phone"`
	Address   string  `json:"address"`
	Category  string  `json:"category"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Rating    *Rating `json:"rating,omitempty"`
}

// Rating is the review summary attached to a maps item.
type Rating struct {
	Value      float64 `json:"value"`
	VotesCount int     `json:"votes_count"`
}

// Location is one entry of the provider's location directory.
type Location struct {
	Code        int    `json:"location_code"`
	Name        string `json:"location_name"`
	Type        string `json:"location_type"`
	CountryCode string `json:"country_iso_code"`
}

type serpResponse struct {
	StatusCode    int        `json:"status_code"`
	StatusMessage string     `json:"status_message"`
	Tasks         []taskItem `json:"tasks"`
}

type taskItem struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Data          struct {
		Tag string `json:"tag"`
	} `json:"data"`
	Result []struct {
		Items []MapsItem `json:"items"`
	} `json:"result"`
}

type locationsResponse struct {
	StatusCode int `json:"status_code"`
	Tasks      []struct {
		StatusCode int        `json:"status_code"`
		Result     []Location `json:"result"`
	} `json:"tasks"`
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
	login    string
	password string
	baseURL  string
	http     *http.Client
}

// NewClient creates a DataForSEO API client using basic auth credentials.
func NewClient(login, password string, opts ...Option) Client {
	c := &httpClient{
		login:    login,
		password: password,
		baseURL:  defaultBaseURL,
		http: &http.Client{
			Timeout: 90 * time.Second,
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

func (c *httpClient) Search(ctx context.Context, task Task) ([]MapsItem, error) {
	if task.Tag == "" {
		task.Tag = "single"
	}
	results, err := c.SearchBatch(ctx, []Task{task})
	if err != nil {
		return nil, err
	}
	items, ok := results[task.Tag]
	if !ok {
		return nil, eris.New("dataforseo: task returned no result")
	}
	return items, nil
}

func (c *httpClient) SearchBatch(ctx context.Context, tasks []Task) (map[string][]MapsItem, error) {
	if len(tasks) == 0 {
		return map[string][]MapsItem{}, nil
	}
	for i := range tasks {
		if tasks[i].Depth <= 0 {
			tasks[i].Depth = 20
		}
		if tasks[i].LanguageCode == "" {
			tasks[i].LanguageCode = "en"
		}
	}

	body, err := json.Marshal(tasks)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: marshal tasks")
	}

	respBody, err := c.post(ctx, "/v3/serp/google/maps/live/advanced", body)
	if err != nil {
		return nil, err
	}

	var parsed serpResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "dataforseo: unmarshal response")
	}
	if parsed.StatusCode != statusOK {
		return nil, eris.Errorf("dataforseo: api status %d: %s", parsed.StatusCode, parsed.StatusMessage)
	}

	out := make(map[string][]MapsItem, len(parsed.Tasks))
	for _, t := range parsed.Tasks {
		if t.StatusCode != statusOK {
			continue
		}
		items := []MapsItem{}
		for _, r := range t.Result {
			items = append(items, r.Items...)
		}
		out[t.Data.Tag] = items
	}
	return out, nil
}

func (c *httpClient) Locations(ctx context.Context, countryCode string) ([]Location, error) {
	if countryCode == "" {
		return nil, eris.New("dataforseo: country code is required")
	}

	path := fmt.Sprintf("/v3/serp/google/locations/%s", countryCode)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: create request")
	}
	httpReq.SetBasicAuth(c.login, c.password)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var parsed locationsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "dataforseo: unmarshal locations")
	}
	if parsed.StatusCode != statusOK {
		return nil, eris.Errorf("dataforseo: api status %d", parsed.StatusCode)
	}

	var locations []Location
	for _, t := range parsed.Tasks {
		if t.StatusCode != statusOK {
			continue
		}
		locations = append(locations, t.Result...)
	}
	return locations, nil
}

func (c *httpClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.login, c.password)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// statusError classifies non-200 responses so callers can retry rate limits
// and server errors.
func statusError(code int, body []byte) error {
	err := eris.Errorf("dataforseo: unexpected status %d: %s", code, string(body))
	if resilience.RetryableStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	return err
}
