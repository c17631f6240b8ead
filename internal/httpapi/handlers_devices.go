package httpapi

import (
	"net/http"

	"lamisys/internal/domain"
)

type deviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (a *api) handleDevicesRegister(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req deviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	device, err := a.pushSvc.RegisterDevice(r.Context(), u.ID, req.Token, req.Platform)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, device)
}

func (a *api) handleDevicesRemove(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req deviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := a.pushSvc.RemoveDevice(r.Context(), u.ID, req.Token); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleDevicesList(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	devices, err := a.pushSvc.ListDevices(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if devices == nil {
		devices = []domain.UserDevice{}
	}
	WriteJSON(w, http.StatusOK, devices)
}
