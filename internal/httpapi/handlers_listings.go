package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/auth"
	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/rank"
)

// ownedListing loads a listing and verifies the requester owns it. A listing
// owned by someone else is a 403, distinct from a missing one.
func (s *Server) ownedListing(r *http.Request, listingID string) (*model.Listing, error) {
	userID, _ := auth.UserID(r.Context())
	listing, err := s.store.GetListing(r.Context(), listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != userID {
		return nil, eris.Wrapf(model.ErrForbidden, "listing %s", listingID)
	}
	return listing, nil
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	listings, err := s.store.ListListings(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	respondJSON(w, http.StatusOK, listings)
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := s.guard.CheckListing(r.Context(), userID); err != nil {
		respondError(w, err)
		return
	}

	var listing model.Listing
	if err := json.NewDecoder(r.Body).Decode(&listing); err != nil {
		respondError(w, eris.Wrap(model.ErrValidation, "invalid request body"))
		return
	}
	if listing.Name == "" {
		respondError(w, eris.Wrap(model.ErrValidation, "name is required"))
		return
	}

	listing.ID = ""
	listing.OwnerID = userID
	if err := s.store.CreateListing(r.Context(), &listing); err != nil {
		respondError(w, err)
		return
	}
	s.logger.Info("listing created",
		zap.String("listing_id", listing.ID),
		zap.String("user_id", userID),
	)
	respondJSON(w, http.StatusCreated, listing)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := s.ownedListing(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

func (s *Server) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	listing, err := s.ownedListing(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if err := s.store.DeleteListing(r.Context(), listing.ID); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSearchListings proxies the provider's business search for the
// listing setup wizard.
func (s *Server) handleSearchListings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, eris.Wrap(model.ErrValidation, "q is required"))
		return
	}

	searcher, ok := s.provider.(rank.ListingSearcher)
	if !ok {
		respondError(w, eris.Wrapf(model.ErrValidation, "provider %s does not support listing search", s.provider.Name()))
		return
	}

	loc := model.LocationNamed(r.URL.Query().Get("location"))
	places, err := searcher.SearchListings(r.Context(), query, loc)
	if err != nil {
		respondError(w, err)
		return
	}
	if places == nil {
		places = []rank.Place{}
	}
	respondJSON(w, http.StatusOK, places)
}

func (s *Server) handleCompetitors(w http.ResponseWriter, r *http.Request) {
	listing, err := s.ownedListing(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	reports, err := s.analyzer.Analyze(r.Context(), listing.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	listing, err := s.ownedListing(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if listing.PlaceID == "" {
		respondError(w, eris.Wrap(model.ErrValidation, "listing has no place id"))
		return
	}

	fetcher, ok := s.provider.(rank.ReviewFetcher)
	if !ok {
		respondError(w, eris.Wrapf(model.ErrValidation, "provider %s does not support reviews", s.provider.Name()))
		return
	}

	reviews, err := fetcher.Reviews(r.Context(), listing.PlaceID)
	if err != nil {
		respondError(w, err)
		return
	}
	if reviews == nil {
		reviews = []rank.Review{}
	}
	respondJSON(w, http.StatusOK, reviews)
}

func (s *Server) handleSearchLocations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, eris.Wrap(model.ErrValidation, "q is required"))
		return
	}

	locations, err := s.store.SearchLocations(r.Context(), query, r.URL.Query().Get("country"), 20)
	if err != nil {
		respondError(w, err)
		return
	}
	if locations == nil {
		locations = []model.CachedLocation{}
	}
	respondJSON(w, http.StatusOK, locations)
}

type syncLocationsRequest struct {
	Country string `json:"country"`
}

// handleSyncLocations refreshes the cached location directory from the
// provider.
func (s *Server) handleSyncLocations(w http.ResponseWriter, r *http.Request) {
	var req syncLocationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Country == "" {
		respondError(w, eris.Wrap(model.ErrValidation, "country is required"))
		return
	}

	lister, ok := s.provider.(rank.LocationLister)
	if !ok {
		respondError(w, eris.Wrapf(model.ErrValidation, "provider %s does not support location sync", s.provider.Name()))
		return
	}

	locations, err := lister.Locations(r.Context(), req.Country)
	if err != nil {
		respondError(w, err)
		return
	}
	n, err := s.store.UpsertLocations(r.Context(), locations)
	if err != nil {
		respondError(w, err)
		return
	}
	s.logger.Info("locations synced",
		zap.String("country", req.Country),
		zap.Int64("count", n),
	)
	respondJSON(w, http.StatusOK, map[string]int64{"synced": n})
}
