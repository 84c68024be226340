package analytics

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/localrank/internal/model"
)

type fakeHistory struct {
	records   []model.RankHistory
	err       error
	gotLimit  int
	gotListID string
}

func (f *fakeHistory) RecentRankHistory(_ context.Context, listingID string, limit int) ([]model.RankHistory, error) {
	f.gotListID = listingID
	f.gotLimit = limit
	return f.records, f.err
}

func competitor(name, placeID string, rank int) model.CompetitorResult {
	return model.CompetitorResult{Name: name, PlaceID: placeID, Rank: rank}
}

func TestAnalyze_GroupsByKeywordAndPlace(t *testing.T) {
	store := &fakeHistory{records: []model.RankHistory{
		{
			KeywordTerm: "dentist",
			Competitors: []model.CompetitorResult{
				competitor("Rival Dental", "ChIJrival", 1),
				competitor("Smile Co", "ChIJsmile", 4),
			},
		},
		{
			KeywordTerm: "dentist",
			Competitors: []model.CompetitorResult{
				competitor("Rival Dental", "ChIJrival", 3),
			},
		},
		{
			KeywordTerm: "teeth whitening",
			Competitors: []model.CompetitorResult{
				competitor("Smile Co", "ChIJsmile", 2),
			},
		},
	}}

	reports, err := NewAnalyzer(store).Analyze(context.Background(), "listing-1")
	require.NoError(t, err)
	assert.Equal(t, "listing-1", store.gotListID)
	assert.Equal(t, historyWindow, store.gotLimit)

	require.Len(t, reports, 2)

	dentist := reports[0]
	assert.Equal(t, "dentist", dentist.Keyword)
	require.Len(t, dentist.Competitors, 2)

	rival := dentist.Competitors[0]
	assert.Equal(t, "Rival Dental", rival.Name)
	assert.Equal(t, 2, rival.AppearanceCount)
	assert.InDelta(t, 2.0, rival.AverageRank, 0.001)
	assert.Equal(t, 1, rival.BestRank)

	smile := dentist.Competitors[1]
	assert.Equal(t, 1, smile.AppearanceCount)
	assert.InDelta(t, 4.0, smile.AverageRank, 0.001)

	whitening := reports[1]
	assert.Equal(t, "teeth whitening", whitening.Keyword)
	require.Len(t, whitening.Competitors, 1)
}

func TestAnalyze_SortsByAverageRank(t *testing.T) {
	store := &fakeHistory{records: []model.RankHistory{
		{
			KeywordTerm: "dentist",
			Competitors: []model.CompetitorResult{
				competitor("Worse", "ChIJworse", 9),
				competitor("Better", "ChIJbetter", 2),
			},
		},
	}}

	reports, err := NewAnalyzer(store).Analyze(context.Background(), "listing-1")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Competitors, 2)
	assert.Equal(t, "Better", reports[0].Competitors[0].Name)
	assert.Equal(t, "Worse", reports[0].Competitors[1].Name)
}

func TestAnalyze_CapsCompetitors(t *testing.T) {
	rec := model.RankHistory{KeywordTerm: "dentist"}
	for i := 1; i <= 15; i++ {
		rec.Competitors = append(rec.Competitors,
			competitor(fmt.Sprintf("Competitor %d", i), fmt.Sprintf("ChIJ%d", i), i))
	}
	store := &fakeHistory{records: []model.RankHistory{rec}}

	reports, err := NewAnalyzer(store).Analyze(context.Background(), "listing-1")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].Competitors, maxCompetitorsPerKeyword)
	assert.Equal(t, "Competitor 1", reports[0].Competitors[0].Name)
}

func TestAnalyze_FallsBackToNameKey(t *testing.T) {
	store := &fakeHistory{records: []model.RankHistory{
		{KeywordTerm: "dentist", Competitors: []model.CompetitorResult{competitor("No Place", "", 3)}},
		{KeywordTerm: "dentist", Competitors: []model.CompetitorResult{competitor("No Place", "", 5)}},
	}}

	reports, err := NewAnalyzer(store).Analyze(context.Background(), "listing-1")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Competitors, 1)
	assert.Equal(t, 2, reports[0].Competitors[0].AppearanceCount)
	assert.InDelta(t, 4.0, reports[0].Competitors[0].AverageRank, 0.001)
}

func TestAnalyze_Empty(t *testing.T) {
	reports, err := NewAnalyzer(&fakeHistory{}).Analyze(context.Background(), "listing-1")
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestAnalyze_StoreError(t *testing.T) {
	store := &fakeHistory{err: eris.New("db down")}
	_, err := NewAnalyzer(store).Analyze(context.Background(), "listing-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load history")
}
