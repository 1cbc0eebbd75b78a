package handler

import (
	"encoding/json"
	"net/http"

	"cptracker/internal/app/service"
	"cptracker/internal/common"
	"cptracker/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type CatalogHandler struct {
	catalogService *service.CatalogService
}

func NewCatalogHandler(cs *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: cs}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(users chi.Router) {
		users.Post("/", h.createUser)
		users.Get("/", h.listUsers)
		users.Delete("/{userID}", h.deleteUser)
	})
	r.Route("/platforms", func(platforms chi.Router) {
		platforms.Post("/", h.createPlatform)
		platforms.Get("/", h.listPlatforms)
		platforms.Delete("/{platformID}", h.deletePlatform)
	})
	r.Route("/problems", func(problems chi.Router) {
		problems.Post("/", h.createProblem)
		problems.Get("/", h.listProblems)
		problems.Get("/{problemID}", h.getProblem)
		problems.Delete("/{problemID}", h.deleteProblem)
	})
	r.Route("/tags", func(tags chi.Router) {
		tags.Post("/", h.createTag)
		tags.Get("/", h.listTags)
		tags.Delete("/{tagID}", h.deleteTag)
	})
}

func (h *CatalogHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	user, err := h.catalogService.CreateUser(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, user)
}

func (h *CatalogHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.catalogService.ListUsers(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *CatalogHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.catalogService.DeleteUser(r.Context(), chi.URLParam(r, "userID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *CatalogHandler) createPlatform(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePlatformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	platform, err := h.catalogService.CreatePlatform(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, platform)
}

func (h *CatalogHandler) listPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.catalogService.ListPlatforms(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, platforms)
}

func (h *CatalogHandler) deletePlatform(w http.ResponseWriter, r *http.Request) {
	if err := h.catalogService.DeletePlatform(r.Context(), chi.URLParam(r, "platformID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *CatalogHandler) createProblem(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	problem, err := h.catalogService.CreateProblem(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, problem)
}

func (h *CatalogHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	problems, err := h.catalogService.ListProblems(r.Context(),
		model.ProblemDifficulty(q.Get("difficulty")), q.Get("tag"), q.Get("search"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problems)
}

func (h *CatalogHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	problem, err := h.catalogService.GetProblem(r.Context(), chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

func (h *CatalogHandler) deleteProblem(w http.ResponseWriter, r *http.Request) {
	if err := h.catalogService.DeleteProblem(r.Context(), chi.URLParam(r, "problemID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *CatalogHandler) createTag(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	tag, err := h.catalogService.CreateTag(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, tag)
}

func (h *CatalogHandler) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.catalogService.ListTags(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, tags)
}

func (h *CatalogHandler) deleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.catalogService.DeleteTag(r.Context(), chi.URLParam(r, "tagID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
