package web

import (
	"net/http"

	"github.com/JonMunkholm/validata/internal/core"
)

// handleListValidations returns the rule catalog. It is public so a front
// end can build its binding picker before the user logs in.
func (s *Server) handleListValidations(w http.ResponseWriter, r *http.Request) {
	defs, err := s.service.ListRuleDefinitions(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"validations": defs})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListProjects(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if projects == nil {
		projects = []core.Project{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"projects": projects})
}

// handleGetProject returns a project with the rows stored in its table.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id", "REQ002")
		return
	}

	detail, err := s.service.GetProject(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"project": detail})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var def core.ProjectDefinition
	if !decodeJSON(w, r, &def) {
		return
	}

	id, err := s.service.CreateProject(r.Context(), def)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"message":    "project created",
		"project_id": id,
	})
}

// handleUpdateProject replaces name, schema and bindings. A table_name in
// the body is ignored.
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id", "REQ002")
		return
	}
	var def core.ProjectDefinition
	if !decodeJSON(w, r, &def) {
		return
	}

	if err := s.service.UpdateProject(r.Context(), id, def); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"message": "project updated", "project_id": id})
}

type deleteProjectsRequest struct {
	ProjectIDs []int64 `json:"project_ids"`
}

// handleDeleteProjects deletes every listed project or none.
func (s *Server) handleDeleteProjects(w http.ResponseWriter, r *http.Request) {
	var req deleteProjectsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.ProjectIDs) == 0 {
		writeError(w, http.StatusBadRequest, "project_ids must list at least one id", "REQ003")
		return
	}

	if err := s.service.DeleteProjects(r.Context(), req.ProjectIDs); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"message": "projects deleted", "project_ids": req.ProjectIDs})
}

// handleListIngestions returns the newest ingestion attempts of a project.
// History outlives the project, so an unknown id gives an empty list.
func (s *Server) handleListIngestions(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id", "REQ002")
		return
	}

	records, err := s.service.IngestionHistory(r.Context(), id, parseIntParam(r, "limit", 0))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"ingestions": records})
}
