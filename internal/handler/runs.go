package handler

import (
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"

	"duoclean/internal/auth"
	"duoclean/internal/database"
)

type RunHandler struct {
	sessionMgr *auth.SessionManager
	db         *database.DB
	tmpl       *template.Template
}

func NewRunHandler(sm *auth.SessionManager, db *database.DB, tmpl *template.Template) *RunHandler {
	return &RunHandler{sessionMgr: sm, db: db, tmpl: tmpl}
}

func (h *RunHandler) Detail(w http.ResponseWriter, r *http.Request) {
	username, csrfToken, _ := h.sessionMgr.GetSessionInfo(r)
	user, _ := h.db.GetUserByUsername(username)

	id, err := strconv.ParseInt(r.PathValue("runID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	run, err := h.db.GetRun(id)
	if err != nil || run == nil {
		http.NotFound(w, r)
		return
	}

	h.tmpl.ExecuteTemplate(w, "layout", map[string]interface{}{
		"Title":     "Run Detail",
		"Username":  username,
		"CSRFToken": csrfToken,
		"Role":      roleOf(user),
		"Run":       run,
	})
}

// Download serves one of a run's artifacts. The path comes from the run
// row, never from the request, so no traversal is possible.
func (h *RunHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("runID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	run, err := h.db.GetRun(id)
	if err != nil || run == nil {
		http.NotFound(w, r)
		return
	}

	var path string
	switch r.PathValue("artifact") {
	case "results":
		path = run.ResultsFile
	case "log":
		path = run.LogFile
	case "backup":
		path = run.BackupFile
	default:
		http.NotFound(w, r)
		return
	}
	if path == "" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filepath.Base(path)))
	http.ServeFile(w, r, path)
}
