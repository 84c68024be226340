package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/auth"
	"github.com/sells-group/localrank/internal/credits"
	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/rank"
)

type geoGridRequest struct {
	Keyword  string  `json:"keyword"`
	RadiusKm float64 `json:"radiusKm"`
	GridSize int     `json:"gridSize"`
}

// handleGeoGridScan runs a grid scan centered on the listing and persists
// the result with a gridSize² credit debit.
func (s *Server) handleGeoGridScan(w http.ResponseWriter, r *http.Request) {
	listing, err := s.ownedListing(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	var req geoGridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, eris.Wrap(model.ErrValidation, "invalid request body"))
		return
	}
	if req.Keyword == "" {
		respondError(w, eris.Wrap(model.ErrValidation, "keyword is required"))
		return
	}
	if req.GridSize < 1 || req.GridSize > 15 {
		respondError(w, eris.Wrap(model.ErrValidation, "gridSize must be between 1 and 15"))
		return
	}

	userID, _ := auth.UserID(r.Context())
	cost := credits.GridScanCost(req.GridSize)
	if err := s.meter.Reserve(r.Context(), userID, cost); err != nil {
		respondError(w, err)
		return
	}

	result, err := s.scanner.Run(r.Context(), rank.ScanRequest{
		Keyword:   req.Keyword,
		Target:    rank.Target{PlaceID: listing.PlaceID, Name: listing.Name},
		CenterLat: listing.Latitude,
		CenterLng: listing.Longitude,
		RadiusKm:  req.RadiusKm,
		GridSize:  req.GridSize,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	scan := &model.GeoGridScan{
		ListingID:   listing.ID,
		Keyword:     req.Keyword,
		RadiusKm:    req.RadiusKm,
		GridSize:    req.GridSize,
		AverageRank: result.AverageRank,
	}
	for _, pt := range result.Points {
		point := model.GeoGridPoint{
			Latitude:  pt.Latitude,
			Longitude: pt.Longitude,
			Rank:      pt.Rank,
		}
		for _, c := range pt.Competitors {
			point.Competitors = append(point.Competitors, model.GeoGridCompetitor{
				Name:    c.Name,
				PlaceID: c.PlaceID,
				Rank:    c.Rank,
			})
		}
		scan.Points = append(scan.Points, point)
	}

	if err := s.store.AppendGeoGridScan(r.Context(), userID, scan, cost); err != nil {
		respondError(w, err)
		return
	}

	s.logger.Info("grid scan stored",
		zap.String("scan_id", scan.ID),
		zap.String("listing_id", listing.ID),
		zap.Int("cost", cost),
		zap.Float64("average_rank", scan.AverageRank),
	)
	respondJSON(w, http.StatusOK, scan)
}

func (s *Server) handleListGeoGridScans(w http.ResponseWriter, r *http.Request) {
	listing, err := s.ownedListing(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	scans, err := s.store.ListGeoGridScans(r.Context(), listing.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	if scans == nil {
		scans = []model.GeoGridScan{}
	}
	respondJSON(w, http.StatusOK, scans)
}

func (s *Server) handleGetGeoGridScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.store.GetGeoGridScan(r.Context(), chi.URLParam(r, "scanId"))
	if err != nil {
		respondError(w, err)
		return
	}
	// Ownership runs through the parent listing.
	if _, err := s.ownedListing(r, scan.ListingID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scan)
}
