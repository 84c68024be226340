package rank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/localrank/internal/geogrid"
	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/pkg/dataforseo"
	"github.com/sells-group/localrank/pkg/serpapi"
)

func TestTargetMatches(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		title   string
		placeID string
		want    bool
	}{
		{"place_id_equal", Target{PlaceID: "pid-1", Name: "Acme"}, "Totally Different", "pid-1", true},
		{"place_id_differs", Target{PlaceID: "pid-1", Name: "Acme"}, "Acme", "pid-2", false},
		{"name_fallback_when_no_target_place_id", Target{Name: "Acme Plumbing"}, "acme plumbing", "pid-9", true},
		{"name_fallback_when_no_serp_place_id", Target{PlaceID: "pid-1", Name: "Acme"}, "ACME", "", true},
		{"name_mismatch", Target{Name: "Acme"}, "Acme Plumbing", "", false},
		{"name_trims_whitespace", Target{Name: " Acme "}, "acme", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.target.Matches(tt.title, tt.placeID))
		})
	}
}

// stubDataForSeo implements dataforseo.Client for adapter tests.
type stubDataForSeo struct {
	items     []dataforseo.MapsItem
	batches   map[string][]dataforseo.MapsItem
	locations []dataforseo.Location
	err       error

	gotTasks []dataforseo.Task
}

func (s *stubDataForSeo) Search(ctx context.Context, task dataforseo.Task) ([]dataforseo.MapsItem, error) {
	s.gotTasks = append(s.gotTasks, task)
	return s.items, s.err
}

func (s *stubDataForSeo) SearchBatch(ctx context.Context, tasks []dataforseo.Task) (map[string][]dataforseo.MapsItem, error) {
	s.gotTasks = append(s.gotTasks, tasks...)
	return s.batches, s.err
}

func (s *stubDataForSeo) Locations(ctx context.Context, countryCode string) ([]dataforseo.Location, error) {
	return s.locations, s.err
}

func TestDataForSeoRankWithCompetitors(t *testing.T) {
	stub := &stubDataForSeo{items: []dataforseo.MapsItem{
		{RankGroup: 1, Title: "Best Pipes", PlaceID: "pid-best"},
		{RankGroup: 2, Title: "Acme Plumbing", PlaceID: "pid-acme", URL: "https://acme.example"},
		{RankGroup: 3, Title: "Drain Kings", PlaceID: "pid-drain"},
	}}
	provider := NewDataForSeoProvider(stub, 20)

	res, err := provider.RankWithCompetitors(context.Background(), "plumber", Target{PlaceID: "pid-acme"}, model.LocationNamed("Denver"))
	require.NoError(t, err)

	assert.Equal(t, 2, res.TargetRank)
	assert.Equal(t, "https://acme.example", res.URLFound)
	require.Len(t, res.Competitors, 2)
	assert.Equal(t, "Best Pipes", res.Competitors[0].Name)
	assert.Equal(t, 1, res.Competitors[0].Rank)

	require.Len(t, stub.gotTasks, 1)
	assert.Equal(t, "Denver", stub.gotTasks[0].LocationName)
	assert.Equal(t, 20, stub.gotTasks[0].Depth)
}

func TestDataForSeoNotFoundIsRankZero(t *testing.T) {
	stub := &stubDataForSeo{items: []dataforseo.MapsItem{
		{RankGroup: 1, Title: "Best Pipes", PlaceID: "pid-best"},
	}}
	provider := NewDataForSeoProvider(stub, 20)

	res, err := provider.RankWithCompetitors(context.Background(), "plumber", Target{PlaceID: "pid-acme"}, model.LocationNamed("Denver"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.TargetRank)
	assert.Len(t, res.Competitors, 1)
}

func TestDataForSeoCompetitorCap(t *testing.T) {
	items := make([]dataforseo.MapsItem, 0, 15)
	for i := 1; i <= 15; i++ {
		items = append(items, dataforseo.MapsItem{RankGroup: i, Title: "Competitor", PlaceID: "pid"})
	}
	provider := NewDataForSeoProvider(&stubDataForSeo{items: items}, 20)

	res, err := provider.RankWithCompetitors(context.Background(), "plumber", Target{PlaceID: "pid-acme"}, model.LocationNamed("Denver"))
	require.NoError(t, err)
	assert.Len(t, res.Competitors, maxCompetitors)
}

func TestDataForSeoProviderFailure(t *testing.T) {
	provider := NewDataForSeoProvider(&stubDataForSeo{err: errors.New("upstream down")}, 20)

	_, err := provider.RankWithCompetitors(context.Background(), "plumber", Target{Name: "Acme"}, model.LocationNamed("Denver"))
	assert.True(t, errors.Is(err, model.ErrProviderFailure))
}

func TestDataForSeoGridRankTagsPoints(t *testing.T) {
	points, err := geogrid.Generate(39.7, -105.0, 5, 3)
	require.NoError(t, err)

	batches := map[string][]dataforseo.MapsItem{}
	for _, pt := range points {
		batches[pt.Key()] = []dataforseo.MapsItem{{RankGroup: 4, Title: "Acme", PlaceID: "pid-acme"}}
	}
	stub := &stubDataForSeo{batches: batches}
	provider := NewDataForSeoProvider(stub, 20)

	results, err := provider.GridRank(context.Background(), "plumber", Target{PlaceID: "pid-acme"}, points)
	require.NoError(t, err)
	require.Len(t, results, 9)

	// One coordinate task per point, tagged with its key.
	require.Len(t, stub.gotTasks, 9)
	for i, task := range stub.gotTasks {
		assert.Equal(t, points[i].Key(), task.Tag)
		assert.NotEmpty(t, task.LocationCoordinate)
		assert.Empty(t, task.LocationName)
	}
	assert.Equal(t, 4, results[points[0].Key()].TargetRank)
}

func TestDataForSeoLocations(t *testing.T) {
	stub := &stubDataForSeo{locations: []dataforseo.Location{
		{Code: 1014221, Name: "Denver,Colorado,United States", Type: "City", CountryCode: "US"},
	}}
	provider := NewDataForSeoProvider(stub, 20)

	locations, err := provider.Locations(context.Background(), "US")
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "1014221", locations[0].ID)
	assert.Equal(t, "Denver,Colorado,United States", locations[0].Name)
}

// stubSerpApi implements serpapi.Client for adapter tests.
type stubSerpApi struct {
	results []serpapi.LocalResult
	reviews []serpapi.Review
	err     error

	gotReqs []serpapi.SearchRequest
}

func (s *stubSerpApi) Search(ctx context.Context, req serpapi.SearchRequest) ([]serpapi.LocalResult, error) {
	s.gotReqs = append(s.gotReqs, req)
	return s.results, s.err
}

func (s *stubSerpApi) Reviews(ctx context.Context, placeID string) ([]serpapi.Review, error) {
	return s.reviews, s.err
}

func TestSerpApiRankWithCompetitors(t *testing.T) {
	stub := &stubSerpApi{results: []serpapi.LocalResult{
		{Position: 1, Title: "Best Pipes", PlaceID: "pid-best"},
		{Position: 2, Title: "Acme Plumbing", PlaceID: "pid-acme", Website: "https://acme.example"},
	}}
	provider := NewSerpApiProvider(stub, 20)

	res, err := provider.RankWithCompetitors(context.Background(), "plumber", Target{PlaceID: "pid-acme"}, model.LocationAt(39.7, -105.0, 15))
	require.NoError(t, err)

	assert.Equal(t, 2, res.TargetRank)
	assert.Equal(t, "https://acme.example", res.URLFound)
	require.Len(t, res.Competitors, 1)

	// Coordinate locations travel as the ll parameter form.
	require.Len(t, stub.gotReqs, 1)
	assert.Equal(t, "@39.7,-105,15z", stub.gotReqs[0].LL)
	assert.Empty(t, stub.gotReqs[0].Location)
}

func TestSerpApiDepthCutoff(t *testing.T) {
	stub := &stubSerpApi{results: []serpapi.LocalResult{
		{Position: 25, Title: "Acme Plumbing", PlaceID: "pid-acme"},
	}}
	provider := NewSerpApiProvider(stub, 20)

	// Positions beyond the search depth are ignored entirely.
	res, err := provider.RankWithCompetitors(context.Background(), "plumber", Target{PlaceID: "pid-acme"}, model.LocationNamed("Denver"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.TargetRank)
	assert.Empty(t, res.Competitors)
}

func TestSerpApiSearchListings(t *testing.T) {
	stub := &stubSerpApi{results: []serpapi.LocalResult{
		{Position: 1, Title: "Acme Plumbing", PlaceID: "pid-acme", Rating: 4.8, Reviews: 120, Address: "123 Main St"},
	}}
	provider := NewSerpApiProvider(stub, 20)

	places, err := provider.SearchListings(context.Background(), "acme plumbing", model.LocationNamed("Denver"))
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Acme Plumbing", places[0].Name)
	assert.InDelta(t, 4.8, places[0].Rating, 0.001)
	assert.Equal(t, 120, places[0].ReviewCount)
}

func TestSerpApiReviews(t *testing.T) {
	stub := &stubSerpApi{reviews: []serpapi.Review{{Rating: 5, Snippet: "Great"}}}
	provider := NewSerpApiProvider(stub, 20)

	reviews, err := provider.Reviews(context.Background(), "pid-acme")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.InDelta(t, 5, reviews[0].Rating, 0.001)
}

func TestSerpApiProviderFailure(t *testing.T) {
	provider := NewSerpApiProvider(&stubSerpApi{err: errors.New("quota hit")}, 20)

	_, err := provider.RankWithCompetitors(context.Background(), "plumber", Target{Name: "Acme"}, model.LocationNamed("Denver"))
	assert.True(t, errors.Is(err, model.ErrProviderFailure))
}
