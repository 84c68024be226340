// Package rank defines the SERP provider contract and orchestrates rank
// lookups, both single checks and geo-grid scans.
package rank

import (
	"context"
	"strings"

	"github.com/sells-group/localrank/internal/geogrid"
	"github.com/sells-group/localrank/internal/model"
)

// maxCompetitors caps how many competitors are recorded per lookup.
const maxCompetitors = 10

// Target identifies the business whose rank is being measured. PlaceID
// equality wins when both sides carry one; otherwise the name is compared
// case-insensitively.
type Target struct {
	PlaceID string
	Name    string
}

// Matches reports whether a SERP entry is the target business.
func (t Target) Matches(title, placeID string) bool {
	if t.PlaceID != "" && placeID != "" {
		return t.PlaceID == placeID
	}
	return strings.EqualFold(strings.TrimSpace(t.Name), strings.TrimSpace(title))
}

// Competitor is one non-target business observed in a SERP.
type Competitor struct {
	Name    string
	PlaceID string
	Rank    int
	URL     string
}

// Result is the outcome of one rank lookup. TargetRank 0 means the target
// was not found within the provider's search depth.
type Result struct {
	TargetRank  int
	URLFound    string
	Competitors []Competitor
}

// Provider performs live rank lookups against a SERP data source.
type Provider interface {
	Name() string
	RankWithCompetitors(ctx context.Context, keyword string, target Target, loc model.LocationSpec) (*Result, error)
}

// BatchGridProvider is an optional capability: providers that can resolve a
// whole grid in one upstream call. Results are keyed by Point.Key(); points
// that failed upstream are absent.
type BatchGridProvider interface {
	GridRank(ctx context.Context, keyword string, target Target, points []geogrid.Point) (map[string]*Result, error)
}

// Place is one business returned by a listing search.
type Place struct {
	Name        string  `json:"name"`
	PlaceID     string  `json:"place_id"`
	CID         string  `json:"cid,omitempty"`
	Address     string  `json:"address,omitempty"`
	Website     string  `json:"website,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Category    string  `json:"category,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
}

// ListingSearcher finds businesses by free-text query, used by the listing
// setup wizard.
type ListingSearcher interface {
	SearchListings(ctx context.Context, query string, loc model.LocationSpec) ([]Place, error)
}

// Review is one customer review of a place.
type Review struct {
	Rating      float64 `json:"rating"`
	Date        string  `json:"date"`
	Snippet     string  `json:"snippet"`
	Author      string  `json:"author"`
	AuthorImage string  `json:"author_image,omitempty"`
}

// ReviewFetcher is an optional capability: fetching reviews for a place.
type ReviewFetcher interface {
	Reviews(ctx context.Context, placeID string) ([]Review, error)
}

// LocationLister is an optional capability: fetching the provider's location
// directory for keyword location autocomplete.
type LocationLister interface {
	Locations(ctx context.Context, countryCode string) ([]model.CachedLocation, error)
}
