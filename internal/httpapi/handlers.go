package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/tripdeck/concierge/internal/schema"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "healthy",
		"service":     s.opts.ServiceName,
		"version":     s.opts.Version,
		"connections": s.opts.Registry.Size(),
	})
}

func (s *Server) handleGenerateBundles(w http.ResponseWriter, r *http.Request) {
	var req schema.BundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID != "" && emptyPreferences(req.Preferences) && s.opts.Prefs != nil {
		if stored, err := s.opts.Prefs.Get(r.Context(), userID); err == nil && stored != nil {
			req.Preferences = *stored
		}
	}

	if err := req.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	response, err := s.opts.Engine.Generate(r.Context(), req, userID)
	if err != nil {
		log.Error().Err(err).Str("destination", req.Destination).Msg("bundle generation failed")
		respondError(w, r, http.StatusInternalServerError, "generation_failed", "bundle generation failed")
		return
	}

	respond(w, r, http.StatusOK, response)
}

func (s *Server) handleUserBundles(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if userID == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	bundles, err := s.opts.Cache.BundlesForUser(r.Context(), userID, limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("bundle history read failed")
		respondError(w, r, http.StatusInternalServerError, "read_failed", "could not read bundle history")
		return
	}

	respond(w, r, http.StatusOK, map[string]any{
		"bundles":      bundles,
		"totalResults": len(bundles),
	})
}

func (s *Server) handleCreateWatch(w http.ResponseWriter, r *http.Request) {
	var payload schema.WatchCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	watch, err := s.opts.Cache.CreateWatch(r.Context(), payload)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	respond(w, r, http.StatusOK, map[string]any{
		"watchId":     watch.ID,
		"destination": watch.Destination,
		"active":      watch.Active,
	})
}

func (s *Server) handleDeals(w http.ResponseWriter, r *http.Request) {
	destination := r.URL.Query().Get("destination")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	deals, err := s.opts.Cache.TopDeals(r.Context(), destination, limit)
	if err != nil {
		log.Error().Err(err).Str("destination", destination).Msg("deal read failed")
		respondError(w, r, http.StatusInternalServerError, "read_failed", "could not read deals")
		return
	}

	flattened := make([]schema.UIDeal, 0, len(deals))
	for _, d := range deals {
		flattened = append(flattened, schema.FlattenDeal(d))
	}

	respond(w, r, http.StatusOK, map[string]any{
		"deals":        flattened,
		"totalResults": len(flattened),
	})
}

// emptyPreferences reports whether the request carried no explicit
// preferences, so stored ones can fill in. The default flight class does
// not count as explicit.
func emptyPreferences(p schema.BundlePreferences) bool {
	return (p.FlightClass == "" || p.FlightClass == "economy") &&
		len(p.HotelStarRating) == 0 &&
		len(p.Amenities) == 0 &&
		p.PetFriendly == nil &&
		p.AvoidRedEye == nil
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if req.Message == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	extracted := s.opts.Extractor.Extract(r.Context(), req.Message)
	bundleReq, err := extracted.ToRequest(timeNow())
	if err != nil {
		respond(w, r, http.StatusOK, map[string]any{
			"error":            "Could not determine destination and dates. Try naming a city and when you want to travel.",
			"extracted_intent": extracted,
		})
		return
	}

	response, err := s.opts.Engine.Generate(r.Context(), bundleReq, req.UserID)
	if err != nil {
		log.Error().Err(err).Str("destination", bundleReq.Destination).Msg("chat bundle generation failed")
		respondError(w, r, http.StatusInternalServerError, "generation_failed", "bundle generation failed")
		return
	}

	if req.UserID != "" && !emptyPreferences(bundleReq.Preferences) && s.opts.Prefs != nil {
		if err := s.opts.Prefs.Upsert(r.Context(), req.UserID, bundleReq.Destination, bundleReq.Preferences); err != nil {
			log.Warn().Err(err).Str("user_id", req.UserID).Msg("preference upsert failed")
		}
	}

	reply := fmt.Sprintf("Found %d bundles for %s within a $%.0f budget.",
		response.TotalResults, bundleReq.Destination, bundleReq.Budget)
	respond(w, r, http.StatusOK, map[string]any{
		"reply":   reply,
		"request": bundleReq,
		"bundles": response.Bundles,
	})
}
