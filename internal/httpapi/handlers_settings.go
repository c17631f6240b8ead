package httpapi

import (
	"net/http"

	"lamisys/internal/domain"
)

type smtpSettingsRequest struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	TLSMode   string `json:"tls_mode"`
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
}

func (req smtpSettingsRequest) toSettings() domain.SMTPSettings {
	return domain.SMTPSettings{
		Host:      req.Host,
		Port:      req.Port,
		Username:  req.Username,
		Password:  req.Password,
		TLSMode:   req.TLSMode,
		FromName:  req.FromName,
		FromEmail: req.FromEmail,
	}
}

func (a *api) handleSMTPSettingsGet(w http.ResponseWriter, r *http.Request) {
	settings, ok, err := a.emailSvc.GetSMTPSettings(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if !ok {
		WriteDomainError(w, domain.ErrNotFound)
		return
	}

	// The password never leaves the server.
	settings.Password = ""
	WriteJSON(w, http.StatusOK, settings)
}

func (a *api) handleSMTPSettingsSave(w http.ResponseWriter, r *http.Request) {
	var req smtpSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	settings := req.toSettings()
	// An empty password keeps the stored one.
	if settings.Password == "" {
		current, ok, err := a.emailSvc.GetSMTPSettings(r.Context())
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		if ok {
			settings.Password = current.Password
		}
	}

	if err := a.emailSvc.SaveSMTPSettings(r.Context(), settings); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type smtpTestRequest struct {
	smtpSettingsRequest
	ToEmail string `json:"to_email"`
}

func (a *api) handleSMTPSettingsTest(w http.ResponseWriter, r *http.Request) {
	var req smtpTestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := a.emailSvc.SendTestEmail(r.Context(), req.toSettings(), req.ToEmail); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
