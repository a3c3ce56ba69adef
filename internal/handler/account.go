package handler

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"duoclean/internal/auth"
	"duoclean/internal/classify"
	"duoclean/internal/database"
	"duoclean/internal/model"
	"duoclean/internal/util"
)

// DuoService is the slice of the Duo client the account pages need.
type DuoService interface {
	GetUserByUsername(ctx context.Context, username string) (*model.Account, error)
	UpdateUserStatus(ctx context.Context, userID, status string) error
}

type AccountHandler struct {
	duo        DuoService
	sessionMgr *auth.SessionManager
	db         *database.DB
	tmpl       *template.Template
}

func NewAccountHandler(duo DuoService, sm *auth.SessionManager, db *database.DB, tmpl *template.Template) *AccountHandler {
	return &AccountHandler{duo: duo, sessionMgr: sm, db: db, tmpl: tmpl}
}

// Lookup renders the search form and, when a username was submitted, the
// fetched record with its classification.
func (h *AccountHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	username, csrfToken, _ := h.sessionMgr.GetSessionInfo(r)
	user, _ := h.db.GetUserByUsername(username)

	data := map[string]interface{}{
		"Title":     "Account Lookup",
		"Username":  username,
		"CSRFToken": csrfToken,
		"Role":      roleOf(user),
		"Statuses":  []string{model.StatusActive, model.StatusBypass, model.StatusDisabled, model.StatusLockedOut},
		"Flash":     r.URL.Query().Get("msg"),
	}

	query := r.URL.Query().Get("username")
	data["Query"] = query
	if query != "" {
		acct, err := h.duo.GetUserByUsername(r.Context(), query)
		_ = h.db.LogAudit(model.AuditEntry{
			Username:   username,
			Action:     "lookup",
			TargetUser: query,
			Success:    err == nil,
			Detail:     errDetail(err),
			IPAddress:  util.GetClientIP(r),
		})

		switch {
		case err != nil:
			data["Error"] = "Lookup failed: " + err.Error()
		case acct == nil:
			data["NotFound"] = true
		default:
			data["Account"] = acct
			data["Managed"] = classify.IsDirectoryManaged(acct)
			data["StudentPattern"] = classify.IsStudentAccount(acct.Username)
		}
	}

	h.tmpl.ExecuteTemplate(w, "layout", data)
}

// UpdateStatus changes one account's enrollment status and writes an
// audit row either way.
func (h *AccountHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	operator, _ := h.sessionMgr.GetUsername(r)
	_ = r.ParseForm()

	userID := r.FormValue("user_id")
	target := r.FormValue("username")
	oldStatus := r.FormValue("old_status")
	newStatus := r.FormValue("status")

	if userID == "" || !model.ValidStatus(newStatus) {
		http.Redirect(w, r, "/accounts?msg="+url.QueryEscape("Invalid status change request"), http.StatusSeeOther)
		return
	}

	err := h.duo.UpdateUserStatus(r.Context(), userID, newStatus)

	_ = h.db.LogAudit(model.AuditEntry{
		Username:   operator,
		Action:     "update_status",
		TargetUser: target,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		Success:    err == nil,
		Detail:     errDetail(err),
		IPAddress:  util.GetClientIP(r),
	})

	msg := fmt.Sprintf("Status of %s changed to %s", target, newStatus)
	if err != nil {
		msg = "Error: " + err.Error()
	}

	http.Redirect(w, r, "/accounts?username="+url.QueryEscape(target)+"&msg="+url.QueryEscape(msg), http.StatusSeeOther)
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
