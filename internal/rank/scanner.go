package rank

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/localrank/internal/config"
	"github.com/sells-group/localrank/internal/geogrid"
	"github.com/sells-group/localrank/internal/model"
)

// ScanRequest describes one geo-grid scan.
type ScanRequest struct {
	Keyword   string
	Target    Target
	CenterLat float64
	CenterLng float64
	RadiusKm  float64
	GridSize  int
}

// ScanPoint is the observed result at one grid coordinate.
type ScanPoint struct {
	geogrid.Point
	Rank        int
	URLFound    string
	Competitors []Competitor
}

// ScanResult is the outcome of a grid scan. Points that failed upstream are
// absent; AverageRank is the mean rank over the points present, counting
// not-found points as 0, and is 0 when no points succeeded.
type ScanResult struct {
	Points      []ScanPoint
	AverageRank float64
}

// Scanner runs geo-grid scans against a Provider. Providers that implement
// BatchGridProvider resolve the whole grid in one upstream call; everything
// else fans out per point under a concurrency cap and rate limit.
type Scanner struct {
	provider     Provider
	concurrency  int
	limiter      *rate.Limiter
	pointTimeout time.Duration
}

// NewScanner creates a Scanner configured per ScanConfig.
func NewScanner(provider Provider, cfg config.ScanConfig) *Scanner {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 10
	}
	timeout := time.Duration(cfg.PointTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scanner{
		provider:     provider,
		concurrency:  concurrency,
		limiter:      rate.NewLimiter(rate.Limit(rateLimit), 1),
		pointTimeout: timeout,
	}
}

// Run executes the scan. Individual point failures drop the point and log a
// warning; the scan fails outright only when every point fails or the
// context is canceled.
func (s *Scanner) Run(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if req.Keyword == "" {
		return nil, eris.Wrap(model.ErrValidation, "rank: keyword is required")
	}

	points, err := geogrid.Generate(req.CenterLat, req.CenterLng, req.RadiusKm, req.GridSize)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "rank.scanner"),
		zap.String("provider", s.provider.Name()),
		zap.String("keyword", req.Keyword),
		zap.Int("points", len(points)),
	)

	var results map[string]*Result
	if batch, ok := s.provider.(BatchGridProvider); ok {
		results, err = batch.GridRank(ctx, req.Keyword, req.Target, points)
		if err != nil {
			return nil, err
		}
	} else {
		results, err = s.fanOut(ctx, log, req, points)
		if err != nil {
			return nil, err
		}
	}

	if len(results) == 0 {
		return nil, eris.Wrap(model.ErrProviderFailure, "rank: all grid points failed")
	}

	out := &ScanResult{Points: make([]ScanPoint, 0, len(results))}
	var rankSum int
	for _, pt := range points {
		res, ok := results[pt.Key()]
		if !ok {
			continue
		}
		out.Points = append(out.Points, ScanPoint{
			Point:       pt,
			Rank:        res.TargetRank,
			URLFound:    res.URLFound,
			Competitors: res.Competitors,
		})
		rankSum += res.TargetRank
	}
	out.AverageRank = float64(rankSum) / float64(len(out.Points))

	log.Info("grid scan complete",
		zap.Int("resolved", len(out.Points)),
		zap.Float64("average_rank", out.AverageRank),
	)
	return out, nil
}

func (s *Scanner) fanOut(ctx context.Context, log *zap.Logger, req ScanRequest, points []geogrid.Point) (map[string]*Result, error) {
	var mu sync.Mutex
	results := make(map[string]*Result, len(points))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, pt := range points {
		pt := pt
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}

			loc := model.LocationAt(pt.Latitude, pt.Longitude, model.DefaultZoom)
			ptCtx, cancel := context.WithTimeout(gctx, s.pointTimeout)
			res, err := s.provider.RankWithCompetitors(ptCtx, req.Keyword, req.Target, loc)
			cancel()

			if err != nil {
				log.Warn("grid point failed",
					zap.String("point", pt.Key()),
					zap.Error(err),
				)
				failed.Add(1)
				return nil // don't abort other points on individual failure
			}

			mu.Lock()
			results[pt.Key()] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "rank: grid scan aborted")
	}

	if n := failed.Load(); n > 0 {
		log.Warn("grid scan finished with failed points", zap.Int64("failed", n))
	}
	return results, nil
}
