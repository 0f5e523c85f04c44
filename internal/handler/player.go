package handler

import (
	"net/http"

	"quest-launchpad/internal/service"
)

type PlayerHandler struct {
	profileSvc *service.ProfileService
}

func NewPlayerHandler(profileSvc *service.ProfileService) *PlayerHandler {
	return &PlayerHandler{profileSvc: profileSvc}
}

func (h *PlayerHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	wallet, ok := pathAddress(w, r, "wallet")
	if !ok {
		return
	}

	profile, err := h.profileSvc.Profile(r.Context(), wallet)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *PlayerHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.profileSvc.Leaderboard(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
