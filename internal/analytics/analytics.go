// Package analytics aggregates competitor appearances across rank history.
package analytics

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/model"
)

const (
	// historyWindow bounds how far back the aggregation looks.
	historyWindow = 50
	// maxCompetitorsPerKeyword caps the report size per keyword term.
	maxCompetitorsPerKeyword = 10
)

// History reads recent rank history for a listing.
type History interface {
	RecentRankHistory(ctx context.Context, listingID string, limit int) ([]model.RankHistory, error)
}

// CompetitorInsight summarizes one competitor's showing for a keyword.
type CompetitorInsight struct {
	Name            string  `json:"name"`
	PlaceID         string  `json:"placeId"`
	AppearanceCount int     `json:"appearanceCount"`
	AverageRank     float64 `json:"averageRank"`
	BestRank        int     `json:"bestRank"`
}

// KeywordReport groups competitor insights under one keyword term.
type KeywordReport struct {
	Keyword     string              `json:"keyword"`
	Competitors []CompetitorInsight `json:"competitors"`
}

// Analyzer builds competitor reports from stored rank history.
type Analyzer struct {
	store History
}

func NewAnalyzer(store History) *Analyzer {
	return &Analyzer{store: store}
}

// Analyze aggregates the listing's recent rank checks into per-keyword
// competitor standings. Competitors are keyed by Place ID when present,
// falling back to name for results without one.
func (a *Analyzer) Analyze(ctx context.Context, listingID string) ([]KeywordReport, error) {
	records, err := a.store.RecentRankHistory(ctx, listingID, historyWindow)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: load history")
	}

	type bucket struct {
		insight  CompetitorInsight
		rankSum  int
		firstIdx int
	}

	byKeyword := make(map[string]map[string]*bucket)
	var keywordOrder []string

	for _, rec := range records {
		term := rec.KeywordTerm
		competitors, ok := byKeyword[term]
		if !ok {
			competitors = make(map[string]*bucket)
			byKeyword[term] = competitors
			keywordOrder = append(keywordOrder, term)
		}
		for _, c := range rec.Competitors {
			key := c.PlaceID
			if key == "" {
				key = c.Name
			}
			b, ok := competitors[key]
			if !ok {
				b = &bucket{
					insight:  CompetitorInsight{Name: c.Name, PlaceID: c.PlaceID, BestRank: c.Rank},
					firstIdx: len(competitors),
				}
				competitors[key] = b
			}
			b.insight.AppearanceCount++
			b.rankSum += c.Rank
			if c.Rank < b.insight.BestRank {
				b.insight.BestRank = c.Rank
			}
		}
	}

	reports := make([]KeywordReport, 0, len(byKeyword))
	for _, term := range keywordOrder {
		buckets := make([]*bucket, 0, len(byKeyword[term]))
		for _, b := range byKeyword[term] {
			b.insight.AverageRank = float64(b.rankSum) / float64(b.insight.AppearanceCount)
			buckets = append(buckets, b)
		}
		sort.Slice(buckets, func(i, j int) bool {
			if buckets[i].insight.AverageRank != buckets[j].insight.AverageRank {
				return buckets[i].insight.AverageRank < buckets[j].insight.AverageRank
			}
			return buckets[i].firstIdx < buckets[j].firstIdx
		})
		if len(buckets) > maxCompetitorsPerKeyword {
			buckets = buckets[:maxCompetitorsPerKeyword]
		}

		insights := make([]CompetitorInsight, len(buckets))
		for i, b := range buckets {
			insights[i] = b.insight
		}
		reports = append(reports, KeywordReport{Keyword: term, Competitors: insights})
	}
	return reports, nil
}
