package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/auth"
	"github.com/sells-group/localrank/internal/model"
)

type loginRequest struct {
	IDToken string `json:"idToken"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// handleGoogleLogin verifies a Google ID token, creating the user on first
// login, and returns a session JWT.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		respondError(w, eris.Wrap(model.ErrValidation, "idToken is required"))
		return
	}

	identity, err := s.google.Verify(r.Context(), req.IDToken)
	if err != nil {
		s.logger.Debug("google token rejected", zap.Error(err))
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid google token"})
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), identity.Email)
	if err != nil {
		respondError(w, err)
		return
	}
	if user == nil {
		user = &model.User{
			Email:       identity.Email,
			Name:        identity.Name,
			PictureURL:  identity.PictureURL,
			Tier:        model.TierFree,
			Credits:     model.DefaultCredits,
			MaxListings: model.DefaultMaxListings,
			MaxKeywords: model.DefaultMaxKeywords,
		}
		if err := s.store.CreateUser(r.Context(), user); err != nil {
			respondError(w, err)
			return
		}
		s.logger.Info("user created", zap.String("user_id", user.ID))
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
