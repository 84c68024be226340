package rank

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/resilience"
	"github.com/sells-group/localrank/pkg/serpapi"
)

// SerpApiProvider adapts the SerpApi google_maps engine. It only supports
// single lookups; grid scans compose per-point calls through the scanner.
type SerpApiProvider struct {
	client serpapi.Client
	depth  int
	retry  resilience.RetryConfig
}

// NewSerpApiProvider wraps a SerpApi client.
func NewSerpApiProvider(client serpapi.Client, depth int) *SerpApiProvider {
	if depth <= 0 {
		depth = 20
	}
	return &SerpApiProvider{client: client, depth: depth, retry: resilience.DefaultRetryConfig()}
}

// Name implements Provider.
func (p *SerpApiProvider) Name() string { return "serpapi" }

// RankWithCompetitors implements Provider.
func (p *SerpApiProvider) RankWithCompetitors(ctx context.Context, keyword string, target Target, loc model.LocationSpec) (*Result, error) {
	results, err := p.search(ctx, p.request(keyword, loc))
	if err != nil {
		return nil, eris.Wrapf(model.ErrProviderFailure, "rank: serpapi search: %v", err)
	}

	res := &Result{}
	for _, r := range results {
		if r.Position > p.depth {
			continue
		}
		if res.TargetRank == 0 && target.Matches(r.Title, r.PlaceID) {
			res.TargetRank = r.Position
			res.URLFound = r.Website
			continue
		}
		if len(res.Competitors) < maxCompetitors {
			res.Competitors = append(res.Competitors, Competitor{
				Name:    r.Title,
				PlaceID: r.PlaceID,
				Rank:    r.Position,
				URL:     r.Website,
			})
		}
	}
	return res, nil
}

// SearchListings implements ListingSearcher.
func (p *SerpApiProvider) SearchListings(ctx context.Context, query string, loc model.LocationSpec) ([]Place, error) {
	results, err := p.search(ctx, p.request(query, loc))
	if err != nil {
		return nil, eris.Wrapf(model.ErrProviderFailure, "rank: serpapi listing search: %v", err)
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		places = append(places, Place{
			Name:        r.Title,
			PlaceID:     r.PlaceID,
			CID:         r.DataCID,
			Address:     r.Address,
			Website:     r.Website,
			Phone:       r.Phone,
			Category:    r.Type,
			Thumbnail:   r.Thumbnail,
			Latitude:    r.Coordinates.Latitude,
			Longitude:   r.Coordinates.Longitude,
			Rating:      r.Rating,
			ReviewCount: r.Reviews,
		})
	}
	return places, nil
}

// Reviews implements ReviewFetcher.
func (p *SerpApiProvider) Reviews(ctx context.Context, placeID string) ([]Review, error) {
	var raw []serpapi.Review
	err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
		var err error
		raw, err = p.client.Reviews(ctx, placeID)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(model.ErrProviderFailure, "rank: serpapi reviews: %v", err)
	}

	reviews := make([]Review, 0, len(raw))
	for _, r := range raw {
		reviews = append(reviews, Review{
			Rating:      r.Rating,
			Date:        r.Date,
			Snippet:     r.Snippet,
			Author:      r.User.Name,
			AuthorImage: r.User.Thumbnail,
		})
	}
	return reviews, nil
}

// search runs one maps query, retrying rate limits and upstream hiccups.
func (p *SerpApiProvider) search(ctx context.Context, req serpapi.SearchRequest) ([]serpapi.LocalResult, error) {
	var results []serpapi.LocalResult
	err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
		var err error
		results, err = p.client.Search(ctx, req)
		return err
	})
	return results, err
}

func (p *SerpApiProvider) request(query string, loc model.LocationSpec) serpapi.SearchRequest {
	req := serpapi.SearchRequest{Query: query}
	if loc.IsCoordinate() {
		req.LL = loc.String()
	} else {
		req.Location = loc.Name
	}
	return req
}
