package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/auth"
	"github.com/sells-group/localrank/internal/credits"
	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/rank"
)

// ownedKeyword loads a keyword and verifies the requester owns its listing.
func (s *Server) ownedKeyword(r *http.Request, keywordID string) (*model.Keyword, *model.Listing, error) {
	keyword, err := s.store.GetKeyword(r.Context(), keywordID)
	if err != nil {
		return nil, nil, err
	}
	listing, err := s.ownedListing(r, keyword.ListingID)
	if err != nil {
		return nil, nil, err
	}
	return keyword, listing, nil
}

func (s *Server) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	listing, err := s.ownedListing(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	keywords, err := s.store.ListKeywords(r.Context(), listing.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	if keywords == nil {
		keywords = []model.Keyword{}
	}
	respondJSON(w, http.StatusOK, keywords)
}

type createKeywordRequest struct {
	Term     string `json:"term"`
	Location string `json:"location"`
	Group    string `json:"group"`
}

func (s *Server) handleCreateKeyword(w http.ResponseWriter, r *http.Request) {
	listing, err := s.ownedListing(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	userID, _ := auth.UserID(r.Context())
	if err := s.guard.CheckKeyword(r.Context(), userID); err != nil {
		respondError(w, err)
		return
	}

	var req createKeywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, eris.Wrap(model.ErrValidation, "invalid request body"))
		return
	}
	if req.Term == "" {
		respondError(w, eris.Wrap(model.ErrValidation, "term is required"))
		return
	}

	// Default the location to the listing's own coordinates.
	loc := model.LocationAt(listing.Latitude, listing.Longitude, model.DefaultZoom)
	if req.Location != "" {
		loc, err = model.ParseLocation(req.Location)
		if err != nil {
			respondError(w, err)
			return
		}
	}

	keyword := &model.Keyword{
		ListingID: listing.ID,
		Term:      req.Term,
		Location:  loc,
		Group:     req.Group,
	}
	if err := s.store.CreateKeyword(r.Context(), keyword); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, keyword)
}

func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	keyword, _, err := s.ownedKeyword(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if err := s.store.DeleteKeyword(r.Context(), keyword.ID); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCheckRank runs a single live rank lookup for a keyword and persists
// the observation together with the credit debit.
func (s *Server) handleCheckRank(w http.ResponseWriter, r *http.Request) {
	keyword, listing, err := s.ownedKeyword(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	userID, _ := auth.UserID(r.Context())
	if err := s.meter.Reserve(r.Context(), userID, credits.RankCheckCost); err != nil {
		respondError(w, err)
		return
	}

	target := rank.Target{PlaceID: listing.PlaceID, Name: listing.Name}
	result, err := s.provider.RankWithCompetitors(r.Context(), keyword.Term, target, keyword.Location)
	if err != nil {
		respondError(w, err)
		return
	}

	rec := &model.RankHistory{
		KeywordID: keyword.ID,
		Rank:      result.TargetRank,
		URLFound:  result.URLFound,
	}
	for _, c := range result.Competitors {
		rec.Competitors = append(rec.Competitors, model.CompetitorResult{
			Name:    c.Name,
			PlaceID: c.PlaceID,
			Rank:    c.Rank,
			URL:     c.URL,
		})
	}
	if err := s.store.AppendRankHistory(r.Context(), userID, rec, credits.RankCheckCost); err != nil {
		respondError(w, err)
		return
	}

	s.logger.Info("rank checked",
		zap.String("keyword_id", keyword.ID),
		zap.Int("rank", rec.Rank),
	)
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRankHistory(w http.ResponseWriter, r *http.Request) {
	keyword, _, err := s.ownedKeyword(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondError(w, eris.Wrap(model.ErrValidation, "limit must be a positive integer"))
			return
		}
	}

	history, err := s.store.ListRankHistory(r.Context(), keyword.ID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if history == nil {
		history = []model.RankHistory{}
	}
	respondJSON(w, http.StatusOK, history)
}
