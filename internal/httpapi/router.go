package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lamisys/internal/auth"
	"lamisys/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth         *service.AuthService
	Users        *service.UserService
	Materials    *service.MaterialService
	Alarms       *service.AlarmService
	Email        *service.EmailService
	Push         *service.PushService
	CookieCodec  auth.CookieCodec
	CookieSecure bool
	SessionTTL   time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:       logger,
		isProd:       opts.IsProd,
		dbPing:       opts.DBPing,
		authSvc:      opts.Auth,
		userSvc:      opts.Users,
		materialSvc:  opts.Materials,
		alarmSvc:     opts.Alarms,
		emailSvc:     opts.Email,
		pushSvc:      opts.Push,
		cookieCodec:  opts.CookieCodec,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
		loginLimiter: newLoginLimiter(),
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)

	apiMux.HandleFunc("POST /v1/auth/login", api.handleAuthLogin)
	apiMux.HandleFunc("POST /v1/auth/logout", api.requireAuth(api.handleAuthLogout))
	apiMux.HandleFunc("GET /v1/auth/me", api.requireAuth(api.handleAuthMe))
	apiMux.HandleFunc("POST /v1/auth/recovery", api.handleAuthRecovery)
	apiMux.HandleFunc("POST /v1/auth/password", api.requireAuth(api.handleAuthChangePassword))

	if api.materialSvc != nil {
		apiMux.HandleFunc("GET /v1/materials", api.requireAuth(api.handleMaterialsList))
		apiMux.HandleFunc("POST /v1/materials", api.requirePlanner(api.handleMaterialsCreate))
		apiMux.HandleFunc("GET /v1/materials/deleted", api.requireAdmin(api.handleMaterialsDeletedList))
		apiMux.HandleFunc("GET /v1/materials/{id}", api.requireAuth(api.handleMaterialsGet))
		apiMux.HandleFunc("PATCH /v1/materials/{id}", api.requirePlanner(api.handleMaterialsUpdate))
		apiMux.HandleFunc("DELETE /v1/materials/{id}", api.requirePlanner(api.handleMaterialsDelete))
		apiMux.HandleFunc("GET /v1/materials/{id}/history", api.requireAuth(api.handleMaterialsHistory))
	}

	if api.userSvc != nil {
		apiMux.HandleFunc("GET /v1/users", api.requireAdmin(api.handleUsersList))
		apiMux.HandleFunc("POST /v1/users", api.requireAdmin(api.handleUsersCreate))
		apiMux.HandleFunc("GET /v1/users/{id}", api.requireAdmin(api.handleUsersGet))
		apiMux.HandleFunc("PATCH /v1/users/{id}", api.requireAdmin(api.handleUsersUpdate))
		apiMux.HandleFunc("DELETE /v1/users/{id}", api.requireAdmin(api.handleUsersDelete))
		apiMux.HandleFunc("POST /v1/users/{id}/reset-password", api.requireAdmin(api.handleUsersResetPassword))
	}

	if api.alarmSvc != nil {
		apiMux.HandleFunc("GET /v1/alarms/rules", api.requirePlanner(api.handleAlarmRulesList))
		apiMux.HandleFunc("POST /v1/alarms/rules", api.requirePlanner(api.handleAlarmRulesCreate))
		apiMux.HandleFunc("GET /v1/alarms/rules/{id}", api.requirePlanner(api.handleAlarmRulesGet))
		apiMux.HandleFunc("PUT /v1/alarms/rules/{id}", api.requirePlanner(api.handleAlarmRulesUpdate))
		apiMux.HandleFunc("DELETE /v1/alarms/rules/{id}", api.requirePlanner(api.handleAlarmRulesDelete))
		apiMux.HandleFunc("POST /v1/alarms/scheduler/start", api.requireAdmin(api.handleSchedulerStart))
		apiMux.HandleFunc("POST /v1/alarms/scheduler/stop", api.requireAdmin(api.handleSchedulerStop))
		apiMux.HandleFunc("GET /v1/alarms/scheduler", api.requirePlanner(api.handleSchedulerStatus))
		apiMux.HandleFunc("POST /v1/alarms/scheduler/run", api.requireAdmin(api.handleSchedulerRunNow))
	}

	if api.emailSvc != nil {
		apiMux.HandleFunc("GET /v1/settings/smtp", api.requireAdmin(api.handleSMTPSettingsGet))
		apiMux.HandleFunc("PUT /v1/settings/smtp", api.requireAdmin(api.handleSMTPSettingsSave))
		apiMux.HandleFunc("POST /v1/settings/smtp/test", api.requireAdmin(api.handleSMTPSettingsTest))
	}

	if api.pushSvc != nil {
		apiMux.HandleFunc("GET /v1/devices", api.requireAuth(api.handleDevicesList))
		apiMux.HandleFunc("POST /v1/devices", api.requireAuth(api.handleDevicesRegister))
		apiMux.HandleFunc("DELETE /v1/devices", api.requireAuth(api.handleDevicesRemove))
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc      *service.AuthService
	userSvc      *service.UserService
	materialSvc  *service.MaterialService
	alarmSvc     *service.AlarmService
	emailSvc     *service.EmailService
	pushSvc      *service.PushService
	cookieCodec  auth.CookieCodec
	cookieSecure bool
	sessionTTL   time.Duration

	loginLimiter *loginLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
