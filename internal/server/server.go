package server

import (
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"duoclean/internal/auth"
	"duoclean/internal/config"
	"duoclean/internal/database"
	"duoclean/internal/duo"
	"duoclean/internal/handler"
	"duoclean/internal/runmgr"
	"duoclean/web"
)

func mustParseTemplates(fsys fs.FS, funcMap template.FuncMap, files ...string) *template.Template {
	tmpl := template.New("").Funcs(funcMap)
	tmpl, err := tmpl.ParseFS(fsys, files...)
	if err != nil {
		log.Fatalf("Failed to parse templates %v: %v", files, err)
	}
	return tmpl
}

func Start(cfg *config.Config, version string) error {
	db, err := database.Open(cfg.Database.DSN, web.MigrationsFS())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	sessionMgr, err := auth.NewSessionManager(db)
	if err != nil {
		return fmt.Errorf("failed to init session manager: %w", err)
	}

	_ = db.PurgeExpiredSessions()

	duoClient := duo.NewClient(
		cfg.Duo.IntegrationKey,
		cfg.Duo.SecretKey,
		cfg.Duo.APIHost,
		cfg.Duo.CallsPerMinute,
		cfg.Duo.MaxRetries,
		cfg.Duo.Timeout(),
	)

	mgr := runmgr.NewManager(duoClient, cfg.Cleanup, db)

	tmplFS := web.TemplateFS()

	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"subtract":   func(a, b int) int { return a - b },
		"version":    func() string { return version },
		"formatDate": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	}

	loginTmpl := mustParseTemplates(tmplFS, funcMap, "templates/login.html")
	setupTmpl := mustParseTemplates(tmplFS, funcMap, "templates/setup.html")
	dashboardTmpl := mustParseTemplates(tmplFS, funcMap, "templates/layout.html", "templates/dashboard.html")
	runTmpl := mustParseTemplates(tmplFS, funcMap, "templates/layout.html", "templates/run_detail.html")
	accountTmpl := mustParseTemplates(tmplFS, funcMap, "templates/layout.html", "templates/accounts.html")
	adminUsersTmpl := mustParseTemplates(tmplFS, funcMap, "templates/layout.html", "templates/admin_users.html")
	adminAuditTmpl := mustParseTemplates(tmplFS, funcMap, "templates/layout.html", "templates/admin_audit.html")

	// Initialize LDAP client (nil if disabled)
	var ldapClient *auth.LDAPClient
	if cfg.LDAP.Enabled {
		ldapClient = auth.NewLDAPClient(cfg.LDAP)
		log.Println("LDAP authentication enabled")
		log.Printf("LDAP server: %s", cfg.LDAP.URL)
		log.Printf("LDAP groups mapped: %d role(s)", len(cfg.LDAP.GroupMapping))
	}

	setupH := handler.NewSetupHandler(db, setupTmpl)
	authH := handler.NewAuthHandler(db, sessionMgr, ldapClient, loginTmpl)
	dashH := handler.NewDashboardHandler(mgr, sessionMgr, db, dashboardTmpl)
	runH := handler.NewRunHandler(sessionMgr, db, runTmpl)
	acctH := handler.NewAccountHandler(duoClient, sessionMgr, db, accountTmpl)
	adminH := handler.NewAdminHandler(db, sessionMgr, adminUsersTmpl)
	adminAuditH := handler.NewAdminHandler(db, sessionMgr, adminAuditTmpl)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /setup", setupH.SetupPage)
	mux.HandleFunc("POST /setup", setupH.SetupSubmit)

	mux.Handle("GET /static/", web.StaticHandler())

	appMux := http.NewServeMux()

	appMux.HandleFunc("GET /login", authH.LoginPage)
	appMux.HandleFunc("POST /login", authH.LoginSubmit)
	appMux.HandleFunc("POST /logout", authH.Logout)

	appMux.HandleFunc("GET /{$}", sessionMgr.RequireAuth(dashH.Home))
	appMux.HandleFunc("POST /runs/start", sessionMgr.RequireAuth(sessionMgr.ValidateCSRF(dashH.StartRun)))
	appMux.HandleFunc("GET /api/status", sessionMgr.RequireAuth(dashH.Status))
	appMux.HandleFunc("GET /runs/{runID}", sessionMgr.RequireAuth(runH.Detail))
	appMux.HandleFunc("GET /runs/{runID}/download/{artifact}", sessionMgr.RequireAuth(runH.Download))

	appMux.HandleFunc("GET /accounts", sessionMgr.RequireAuth(acctH.Lookup))
	appMux.HandleFunc("POST /accounts/status", sessionMgr.RequireAuth(sessionMgr.ValidateCSRF(acctH.UpdateStatus)))

	appMux.HandleFunc("GET /admin/users", sessionMgr.RequireAdmin(adminH.ListUsers))
	appMux.HandleFunc("POST /admin/users/create", sessionMgr.RequireAdmin(sessionMgr.ValidateCSRF(adminH.CreateUser)))
	appMux.HandleFunc("POST /admin/users/delete", sessionMgr.RequireAdmin(sessionMgr.ValidateCSRF(adminH.DeleteUser)))
	appMux.HandleFunc("GET /admin/audit", sessionMgr.RequireAdmin(adminAuditH.AuditLog))

	mux.Handle("/", handler.RequireSetupComplete(db, appMux))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Duo cleanup dashboard starting on %s", addr)
	return http.ListenAndServe(addr, mux)
}
