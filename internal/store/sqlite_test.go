package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/localrank/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedUser(t *testing.T, st *SQLiteStore, credits int) *model.User {
	t.Helper()
	u := &model.User{
		Email:       "owner@example.com",
		Name:        "Owner",
		Tier:        model.TierFree,
		Credits:     credits,
		MaxListings: model.DefaultMaxListings,
		MaxKeywords: model.DefaultMaxKeywords,
	}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return u
}

func seedListing(t *testing.T, st *SQLiteStore, ownerID string) *model.Listing {
	t.Helper()
	l := &model.Listing{
		OwnerID:   ownerID,
		Name:      "Denver Dental Studio",
		Address:   "123 Main St, Denver, CO",
		PlaceID:   "ChIJdentist",
		Latitude:  39.7392,
		Longitude: -104.9903,
	}
	require.NoError(t, st.CreateListing(context.Background(), l))
	return l
}

// --- Users ---

func TestSQLite_UserRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 100)
	require.NotEmpty(t, u.ID)

	got, err := st.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, model.TierFree, got.Tier)
	assert.Equal(t, 100, got.Credits)

	byEmail, err := st.GetUserByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, u.ID, byEmail.ID)
}

func TestSQLite_GetUserByEmail_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	u, err := st.GetUserByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestSQLite_GetUser_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetUser(context.Background(), "missing-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// --- Listings ---

func TestSQLite_ListingCRUD(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 100)
	l := seedListing(t, st, u.ID)

	got, err := st.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Denver Dental Studio", got.Name)
	assert.Equal(t, "ChIJdentist", got.PlaceID)
	assert.InDelta(t, 39.7392, got.Latitude, 0.0001)

	listings, err := st.ListListings(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, listings, 1)

	count, err := st.CountListings(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, st.DeleteListing(ctx, l.ID))

	_, err = st.GetListing(ctx, l.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	err = st.DeleteListing(ctx, l.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// --- Keywords ---

func TestSQLite_KeywordRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 100)
	l := seedListing(t, st, u.ID)

	k := &model.Keyword{
		ListingID: l.ID,
		Term:      "dentist near me",
		Location:  model.LocationAt(39.7392, -104.9903, model.DefaultZoom),
		Group:     "core",
	}
	require.NoError(t, st.CreateKeyword(ctx, k))

	got, err := st.GetKeyword(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, "dentist near me", got.Term)
	assert.True(t, got.Location.IsCoordinate())
	assert.Equal(t, "core", got.Group)

	count, err := st.CountKeywords(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLite_ListKeywords_LatestRank(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 100)
	l := seedListing(t, st, u.ID)

	k := &model.Keyword{ListingID: l.ID, Term: "emergency dentist", Location: model.LocationNamed("Denver, CO")}
	require.NoError(t, st.CreateKeyword(ctx, k))

	keywords, err := st.ListKeywords(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, 0, keywords[0].LatestRank)

	require.NoError(t, st.AppendRankHistory(ctx, u.ID, &model.RankHistory{KeywordID: k.ID, Rank: 7}, 1))
	require.NoError(t, st.AppendRankHistory(ctx, u.ID, &model.RankHistory{KeywordID: k.ID, Rank: 3}, 1))

	keywords, err = st.ListKeywords(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, 3, keywords[0].LatestRank)
}

// --- Rank history and credits ---

func TestSQLite_AppendRankHistory_DebitsCredits(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 10)
	l := seedListing(t, st, u.ID)
	k := &model.Keyword{ListingID: l.ID, Term: "dentist", Location: model.LocationNamed("Denver, CO")}
	require.NoError(t, st.CreateKeyword(ctx, k))

	rec := &model.RankHistory{
		KeywordID: k.ID,
		Rank:      2,
		URLFound:  "https://maps.google.com/?cid=1",
		Competitors: []model.CompetitorResult{
			{Name: "Rival Dental", PlaceID: "ChIJrival", Rank: 1},
			{Name: "Smile Co", Rank: 3},
		},
	}
	require.NoError(t, st.AppendRankHistory(ctx, u.ID, rec, 1))

	got, err := st.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Credits)

	history, err := st.ListRankHistory(ctx, k.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].Rank)
}

func TestSQLite_AppendRankHistory_InsufficientCredits(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 0)
	l := seedListing(t, st, u.ID)
	k := &model.Keyword{ListingID: l.ID, Term: "dentist", Location: model.LocationNamed("Denver, CO")}
	require.NoError(t, st.CreateKeyword(ctx, k))

	err := st.AppendRankHistory(ctx, u.ID, &model.RankHistory{KeywordID: k.ID, Rank: 4}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInsufficientCredits)

	// The whole append rolls back, including the history row.
	history, err := st.ListRankHistory(ctx, k.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSQLite_RecentRankHistory(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 100)
	l := seedListing(t, st, u.ID)

	k1 := &model.Keyword{ListingID: l.ID, Term: "dentist", Location: model.LocationNamed("Denver, CO")}
	k2 := &model.Keyword{ListingID: l.ID, Term: "teeth whitening", Location: model.LocationNamed("Denver, CO")}
	require.NoError(t, st.CreateKeyword(ctx, k1))
	require.NoError(t, st.CreateKeyword(ctx, k2))

	rec := &model.RankHistory{
		KeywordID:   k1.ID,
		Rank:        1,
		Competitors: []model.CompetitorResult{{Name: "Rival Dental", PlaceID: "ChIJrival", Rank: 2}},
	}
	require.NoError(t, st.AppendRankHistory(ctx, u.ID, rec, 1))
	require.NoError(t, st.AppendRankHistory(ctx, u.ID, &model.RankHistory{KeywordID: k2.ID, Rank: 5}, 1))

	records, err := st.RecentRankHistory(ctx, l.ID, 50)
	require.NoError(t, err)
	require.Len(t, records, 2)

	terms := []string{records[0].KeywordTerm, records[1].KeywordTerm}
	assert.Contains(t, terms, "dentist")
	assert.Contains(t, terms, "teeth whitening")

	for _, r := range records {
		if r.KeywordID == k1.ID {
			require.Len(t, r.Competitors, 1)
			assert.Equal(t, "Rival Dental", r.Competitors[0].Name)
		}
	}
}

func TestSQLite_CascadeDelete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 100)
	l := seedListing(t, st, u.ID)
	k := &model.Keyword{ListingID: l.ID, Term: "dentist", Location: model.LocationNamed("Denver, CO")}
	require.NoError(t, st.CreateKeyword(ctx, k))
	require.NoError(t, st.AppendRankHistory(ctx, u.ID, &model.RankHistory{KeywordID: k.ID, Rank: 4}, 1))

	require.NoError(t, st.DeleteListing(ctx, l.ID))

	_, err := st.GetKeyword(ctx, k.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	history, err := st.ListRankHistory(ctx, k.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

// --- Geo-grid scans ---

func TestSQLite_GeoGridScanRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 100)
	l := seedListing(t, st, u.ID)

	scan := &model.GeoGridScan{
		ListingID:   l.ID,
		Keyword:     "dentist near me",
		RadiusKm:    5,
		GridSize:    3,
		AverageRank: 2.5,
		Points: []model.GeoGridPoint{
			{
				Latitude:  39.7392,
				Longitude: -104.9903,
				Rank:      1,
				Competitors: []model.GeoGridCompetitor{
					{Name: "Rival Dental", PlaceID: "ChIJrival", Rank: 2},
				},
			},
			{Latitude: 39.7842, Longitude: -104.9903, Rank: 4},
		},
	}
	require.NoError(t, st.AppendGeoGridScan(ctx, u.ID, scan, 9))

	got, err := st.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 91, got.Credits)

	scans, err := st.ListGeoGridScans(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "dentist near me", scans[0].Keyword)
	assert.InDelta(t, 2.5, scans[0].AverageRank, 0.001)

	full, err := st.GetGeoGridScan(ctx, scan.ID)
	require.NoError(t, err)
	require.Len(t, full.Points, 2)

	var withCompetitors *model.GeoGridPoint
	for i := range full.Points {
		if len(full.Points[i].Competitors) > 0 {
			withCompetitors = &full.Points[i]
		}
	}
	require.NotNil(t, withCompetitors)
	assert.Equal(t, "Rival Dental", withCompetitors.Competitors[0].Name)
}

func TestSQLite_AppendGeoGridScan_InsufficientCredits(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 5)
	l := seedListing(t, st, u.ID)

	scan := &model.GeoGridScan{
		ListingID: l.ID,
		Keyword:   "dentist",
		RadiusKm:  5,
		GridSize:  3,
		Points:    []model.GeoGridPoint{{Latitude: 39.7, Longitude: -105.0, Rank: 1}},
	}
	err := st.AppendGeoGridScan(ctx, u.ID, scan, 9)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInsufficientCredits)

	scans, err := st.ListGeoGridScans(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestSQLite_AppendGeoGridScan_ConcurrentDebitsNoDoubleSpend(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUser(t, st, 10)
	l := seedListing(t, st, u.ID)

	// Two 9-credit scans against a 10-credit balance. The conditional
	// debit inside the append transaction must let exactly one through.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scan := &model.GeoGridScan{
				ListingID: l.ID,
				Keyword:   "dentist",
				RadiusKm:  5,
				GridSize:  3,
				Points:    []model.GeoGridPoint{{Latitude: 39.7, Longitude: -105.0, Rank: 1}},
			}
			errs[i] = st.AppendGeoGridScan(ctx, u.ID, scan, 9)
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, model.ErrInsufficientCredits)
		rejected++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	got, err := st.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Credits)

	scans, err := st.ListGeoGridScans(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, scans, 1)
}

// --- Location directory ---

func TestSQLite_Locations(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.UpsertLocations(ctx, []model.CachedLocation{
		{ID: "1014044", Name: "Denver, Colorado, United States", Type: "City", CountryCode: "US"},
		{ID: "1014045", Name: "Denton, Texas, United States", Type: "City", CountryCode: "US"},
		{ID: "1003854", Name: "Denham Court, New South Wales, Australia", Type: "City", CountryCode: "AU"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	results, err := st.SearchLocations(ctx, "Den", "", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = st.SearchLocations(ctx, "Den", "US", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Upsert with the same IDs updates in place.
	n, err = st.UpsertLocations(ctx, []model.CachedLocation{
		{ID: "1014044", Name: "Denver, Colorado, United States", Type: "DMA Region", CountryCode: "US"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	results, err = st.SearchLocations(ctx, "Denver", "US", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "DMA Region", results[0].Type)
}

func TestSQLite_SearchLocations_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	results, err := st.SearchLocations(context.Background(), "Nowhere", "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
