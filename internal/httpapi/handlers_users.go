package httpapi

import (
	"net/http"

	"lamisys/internal/domain"
	"lamisys/internal/service"
)

type createUserRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Matricula string `json:"matricula"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

type createdUserResponse struct {
	domain.User
	TemporaryPassword string `json:"temporary_password,omitempty"`
}

func (a *api) handleUsersCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	u, tempPassword, err := a.userSvc.CreateUser(r.Context(), service.CreateUserInput{
		Name:      req.Name,
		Email:     req.Email,
		Matricula: req.Matricula,
		Role:      domain.Role(req.Role),
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, createdUserResponse{User: u, TemporaryPassword: tempPassword})
}

func (a *api) handleUsersList(w http.ResponseWriter, r *http.Request) {
	users, err := a.userSvc.ListUsers(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	WriteJSON(w, http.StatusOK, users)
}

func (a *api) handleUsersGet(w http.ResponseWriter, r *http.Request) {
	u, err := a.userSvc.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

type updateUserRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Matricula *string `json:"matricula"`
	Role      *string `json:"role"`
	AvatarURL *string `json:"avatar_url"`
}

func (a *api) handleUsersUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	in := service.UpdateUserInput{
		Name:      req.Name,
		Email:     req.Email,
		Matricula: req.Matricula,
		AvatarURL: req.AvatarURL,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		in.Role = &role
	}

	u, err := a.userSvc.UpdateUser(r.Context(), r.PathValue("id"), in)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

func (a *api) handleUsersDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r.Context())
	if actor.ID == r.PathValue("id") {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id": "cannot delete own account"}))
		return
	}

	if err := a.userSvc.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleUsersResetPassword(w http.ResponseWriter, r *http.Request) {
	tempPassword, err := a.userSvc.ResetPassword(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"temporary_password": tempPassword})
}
