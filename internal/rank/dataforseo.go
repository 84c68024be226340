package rank

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/geogrid"
	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/resilience"
	"github.com/sells-group/localrank/pkg/dataforseo"
)

// DataForSeoProvider adapts the DataForSEO live SERP API. It supports
// native batch grid lookups, listing search, and the location directory.
type DataForSeoProvider struct {
	client dataforseo.Client
	depth  int
	retry  resilience.RetryConfig
}

// NewDataForSeoProvider wraps a DataForSEO client. depth bounds how many
// results each lookup scans for the target.
func NewDataForSeoProvider(client dataforseo.Client, depth int) *DataForSeoProvider {
	if depth <= 0 {
		depth = 20
	}
	return &DataForSeoProvider{client: client, depth: depth, retry: resilience.DefaultRetryConfig()}
}

// Name implements Provider.
func (p *DataForSeoProvider) Name() string { return "dataforseo" }

// RankWithCompetitors implements Provider.
func (p *DataForSeoProvider) RankWithCompetitors(ctx context.Context, keyword string, target Target, loc model.LocationSpec) (*Result, error) {
	items, err := p.search(ctx, p.task(keyword, loc, ""))
	if err != nil {
		return nil, eris.Wrapf(model.ErrProviderFailure, "rank: dataforseo search: %v", err)
	}
	return p.resultFrom(target, items), nil
}

// GridRank implements BatchGridProvider. One task is posted per grid point,
// tagged with the point key so results map back to their coordinates.
func (p *DataForSeoProvider) GridRank(ctx context.Context, keyword string, target Target, points []geogrid.Point) (map[string]*Result, error) {
	tasks := make([]dataforseo.Task, 0, len(points))
	for _, pt := range points {
		loc := model.LocationAt(pt.Latitude, pt.Longitude, model.DefaultZoom)
		tasks = append(tasks, p.task(keyword, loc, pt.Key()))
	}

	var batches map[string][]dataforseo.MapsItem
	err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
		var err error
		batches, err = p.client.SearchBatch(ctx, tasks)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(model.ErrProviderFailure, "rank: dataforseo grid batch: %v", err)
	}

	results := make(map[string]*Result, len(batches))
	for tag, items := range batches {
		results[tag] = p.resultFrom(target, items)
	}
	if dropped := len(points) - len(results); dropped > 0 {
		zap.L().Warn("grid points failed upstream",
			zap.String("provider", p.Name()),
			zap.Int("dropped", dropped))
	}
	return results, nil
}

// SearchListings implements ListingSearcher.
func (p *DataForSeoProvider) SearchListings(ctx context.Context, query string, loc model.LocationSpec) ([]Place, error) {
	items, err := p.search(ctx, p.task(query, loc, ""))
	if err != nil {
		return nil, eris.Wrapf(model.ErrProviderFailure, "rank: dataforseo listing search: %v", err)
	}

	places := make([]Place, 0, len(items))
	for _, it := range items {
		place := Place{
			Name:      it.Title,
			PlaceID:   it.PlaceID,
			CID:       it.CID,
			Address:   it.Address,
			Website:   it.URL,
			Phone:     it.Phone,
			Category:  it.Category,
			Latitude:  it.Latitude,
			Longitude: it.Longitude,
		}
		if it.Rating != nil {
			place.Rating = it.Rating.Value
			place.ReviewCount = it.Rating.VotesCount
		}
		places = append(places, place)
	}
	return places, nil
}

// Locations implements LocationLister.
func (p *DataForSeoProvider) Locations(ctx context.Context, countryCode string) ([]model.CachedLocation, error) {
	var raw []dataforseo.Location
	err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
		var err error
		raw, err = p.client.Locations(ctx, countryCode)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(model.ErrProviderFailure, "rank: dataforseo locations: %v", err)
	}

	locations := make([]model.CachedLocation, 0, len(raw))
	for _, l := range raw {
		locations = append(locations, model.CachedLocation{
			ID:          strconv.Itoa(l.Code),
			Name:        l.Name,
			Type:        l.Type,
			CountryCode: l.CountryCode,
		})
	}
	return locations, nil
}

// search runs one live task, retrying rate limits and upstream hiccups.
func (p *DataForSeoProvider) search(ctx context.Context, task dataforseo.Task) ([]dataforseo.MapsItem, error) {
	var items []dataforseo.MapsItem
	err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
		var err error
		items, err = p.client.Search(ctx, task)
		return err
	})
	return items, err
}

func (p *DataForSeoProvider) task(keyword string, loc model.LocationSpec, tag string) dataforseo.Task {
	task := dataforseo.Task{Keyword: keyword, Depth: p.depth, Tag: tag}
	if loc.IsCoordinate() {
		task.LocationCoordinate = fmt.Sprintf("%v,%v,%d", loc.Latitude, loc.Longitude, loc.Zoom)
	} else {
		task.LocationName = loc.Name
	}
	return task
}

func (p *DataForSeoProvider) resultFrom(target Target, items []dataforseo.MapsItem) *Result {
	res := &Result{}
	for _, it := range items {
		if it.RankGroup > p.depth {
			continue
		}
		if res.TargetRank == 0 && target.Matches(it.Title, it.PlaceID) {
			res.TargetRank = it.RankGroup
			res.URLFound = it.URL
			continue
		}
		if len(res.Competitors) < maxCompetitors {
			res.Competitors = append(res.Competitors, Competitor{
				Name:    it.Title,
				PlaceID: it.PlaceID,
				Rank:    it.RankGroup,
				URL:     it.URL,
			})
		}
	}
	return res
}
