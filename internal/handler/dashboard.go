package handler

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"duoclean/internal/auth"
	"duoclean/internal/database"
	"duoclean/internal/model"
	"duoclean/internal/runmgr"
	"duoclean/internal/util"
)

const historyLimit = 50

type DashboardHandler struct {
	mgr        *runmgr.Manager
	sessionMgr *auth.SessionManager
	db         *database.DB
	tmpl       *template.Template
}

func NewDashboardHandler(mgr *runmgr.Manager, sm *auth.SessionManager, db *database.DB, tmpl *template.Template) *DashboardHandler {
	return &DashboardHandler{mgr: mgr, sessionMgr: sm, db: db, tmpl: tmpl}
}

func (h *DashboardHandler) Home(w http.ResponseWriter, r *http.Request) {
	username, csrfToken, _ := h.sessionMgr.GetSessionInfo(r)
	user, _ := h.db.GetUserByUsername(username)

	stats, err := h.db.GetRunStats()
	if err != nil {
		h.tmpl.ExecuteTemplate(w, "layout", map[string]interface{}{
			"Title":     "Dashboard",
			"Username":  username,
			"CSRFToken": csrfToken,
			"Role":      roleOf(user),
			"Error":     "Failed to load stats: " + err.Error(),
		})
		return
	}

	history, err := h.db.ListRuns(historyLimit)
	if err != nil {
		h.tmpl.ExecuteTemplate(w, "layout", map[string]interface{}{
			"Title":     "Dashboard",
			"Username":  username,
			"CSRFToken": csrfToken,
			"Role":      roleOf(user),
			"Error":     "Failed to load run history: " + err.Error(),
		})
		return
	}

	h.tmpl.ExecuteTemplate(w, "layout", map[string]interface{}{
		"Title":     "Dashboard",
		"Username":  username,
		"CSRFToken": csrfToken,
		"Role":      roleOf(user),
		"Stats":     stats,
		"History":   history,
		"Operation": h.mgr.Current(),
		"Flash":     r.URL.Query().Get("msg"),
	})
}

// StartRun kicks off a background cleanup. dry_run=1 previews without
// mutating. Rejected with a flash message when a run is already active.
func (h *DashboardHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	username, _ := h.sessionMgr.GetUsername(r)
	_ = r.ParseForm()
	dryRun := r.FormValue("dry_run") == "1"

	msg := "Cleanup run started"
	if dryRun {
		msg = "Dry run started"
	}
	if err := h.mgr.Start(dryRun, username); err != nil {
		if errors.Is(err, runmgr.ErrRunInProgress) {
			msg = "A run is already in progress"
		} else {
			msg = "Error: " + err.Error()
		}
	} else {
		_ = h.db.LogAudit(model.AuditEntry{
			Username:  username,
			Action:    "start_run",
			Success:   true,
			Detail:    msg,
			IPAddress: util.GetClientIP(r),
		})
	}

	http.Redirect(w, r, "/?msg="+url.QueryEscape(msg), http.StatusSeeOther)
}

// Status serves the live run state as JSON for the dashboard's polling
// script.
func (h *DashboardHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.mgr.Current())
}

func roleOf(u *model.User) string {
	if u != nil {
		return u.Role
	}
	return ""
}
