package handler

import (
	"net/http"
	"strconv"

	"cptracker/internal/app/service"
	"cptracker/internal/common"
	"cptracker/internal/platform/config"

	"github.com/go-chi/chi/v5"
)

type StatsHandler struct {
	statsService   *service.StatsService
	catalogService *service.CatalogService
}

func NewStatsHandler(ss *service.StatsService, cs *service.CatalogService) *StatsHandler {
	return &StatsHandler{statsService: ss, catalogService: cs}
}

func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/leaderboard", h.getLeaderboard)
	r.Get("/tags/summary", h.getTagSummary)
	r.Get("/stats/overview", h.getOverview)
	r.Get("/users/last-submissions", h.getLastSubmissions)
	r.Get("/users/{userID}/accept-rate", h.getUserAcceptRate)
	r.Get("/users/{userID}/tag-stats", h.getUserTagStats)

	r.Route("/admin", func(admin chi.Router) {
		admin.Post("/recompute-tag-stats", h.recomputeTagStats)
		admin.Get("/audit-log", h.getAuditLog)
	})
}

func (h *StatsHandler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = config.AppConfig.LeaderboardLimit
	}
	entries, err := h.statsService.GetLeaderboard(r.Context(), limit)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}

func (h *StatsHandler) getTagSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.statsService.GetTagSummary(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, summaries)
}

func (h *StatsHandler) getOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.statsService.GetOverview(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, overview)
}

func (h *StatsHandler) getLastSubmissions(w http.ResponseWriter, r *http.Request) {
	results, err := h.statsService.GetLastSubmissions(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, results)
}

func (h *StatsHandler) getUserAcceptRate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	rate, err := h.statsService.GetUserAcceptRate(r.Context(), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	// rate is null when the user has no submissions.
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"user_id": userID, "accept_rate": rate})
}

func (h *StatsHandler) getUserTagStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	stats, err := h.statsService.GetUserTagStats(r.Context(), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *StatsHandler) recomputeTagStats(w http.ResponseWriter, r *http.Request) {
	if err := h.statsService.RecomputeTagStats(r.Context()); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "recomputed"})
}

func (h *StatsHandler) getAuditLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = config.AppConfig.AuditListLimit
	}
	entries, err := h.catalogService.ListAuditLog(r.Context(), limit)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}
