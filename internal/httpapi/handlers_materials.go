package httpapi

import (
	"net/http"
	"time"

	"lamisys/internal/domain"
)

type materialRequest struct {
	InvoiceNumber string     `json:"invoice_number"`
	OrderNumber   string     `json:"order_number"`
	Equipment     string     `json:"equipment"`
	OrderType     string     `json:"order_type"`
	MaterialType  string     `json:"material_type"`
	ShipmentCode  string     `json:"shipment_code"`
	SAPCode       string     `json:"sap_code"`
	Company       string     `json:"company"`
	Carrier       string     `json:"carrier"`
	ShipDate      *time.Time `json:"ship_date"`
	ShipmentDate  *time.Time `json:"shipment_date"`
	Status        string     `json:"status"`
	Notes         string     `json:"notes"`
	Comments      string     `json:"comments"`
}

func (a *api) handleMaterialsCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req materialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	m := domain.Material{
		InvoiceNumber: req.InvoiceNumber,
		OrderNumber:   req.OrderNumber,
		Equipment:     req.Equipment,
		OrderType:     req.OrderType,
		MaterialType:  req.MaterialType,
		ShipmentCode:  req.ShipmentCode,
		SAPCode:       req.SAPCode,
		Company:       req.Company,
		Carrier:       req.Carrier,
		ShipDate:      req.ShipDate,
		ShipmentDate:  req.ShipmentDate,
		Status:        domain.MaterialStatus(req.Status),
		Notes:         req.Notes,
		Comments:      req.Comments,
	}
	created, err := a.materialSvc.CreateMaterial(r.Context(), m, u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

func (a *api) handleMaterialsList(w http.ResponseWriter, r *http.Request) {
	materials, err := a.materialSvc.ListMaterials(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if materials == nil {
		materials = []domain.Material{}
	}
	WriteJSON(w, http.StatusOK, materials)
}

func (a *api) handleMaterialsGet(w http.ResponseWriter, r *http.Request) {
	m, err := a.materialSvc.GetMaterial(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

type materialUpdateRequest struct {
	InvoiceNumber *string    `json:"invoice_number"`
	OrderNumber   *string    `json:"order_number"`
	Equipment     *string    `json:"equipment"`
	OrderType     *string    `json:"order_type"`
	MaterialType  *string    `json:"material_type"`
	ShipmentCode  *string    `json:"shipment_code"`
	SAPCode       *string    `json:"sap_code"`
	Company       *string    `json:"company"`
	Carrier       *string    `json:"carrier"`
	ShipDate      *time.Time `json:"ship_date"`
	ShipmentDate  *time.Time `json:"shipment_date"`
	Status        *string    `json:"status"`
	Notes         *string    `json:"notes"`
	Comments      *string    `json:"comments"`
}

func (a *api) handleMaterialsUpdate(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req materialUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	upd := domain.MaterialUpdate{
		InvoiceNumber: req.InvoiceNumber,
		OrderNumber:   req.OrderNumber,
		Equipment:     req.Equipment,
		OrderType:     req.OrderType,
		MaterialType:  req.MaterialType,
		ShipmentCode:  req.ShipmentCode,
		SAPCode:       req.SAPCode,
		Company:       req.Company,
		Carrier:       req.Carrier,
		ShipDate:      req.ShipDate,
		ShipmentDate:  req.ShipmentDate,
		Notes:         req.Notes,
		Comments:      req.Comments,
	}
	if req.Status != nil {
		status := domain.MaterialStatus(*req.Status)
		upd.Status = &status
	}

	updated, err := a.materialSvc.UpdateMaterial(r.Context(), r.PathValue("id"), upd, u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

type materialDeleteRequest struct {
	Reason string `json:"reason"`
}

func (a *api) handleMaterialsDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req materialDeleteRequest
	if _, err := decodeJSONAllowEmpty(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := a.materialSvc.DeleteMaterial(r.Context(), r.PathValue("id"), u.ID, req.Reason); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleMaterialsDeletedList(w http.ResponseWriter, r *http.Request) {
	deleted, err := a.materialSvc.ListDeletedMaterials(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if deleted == nil {
		deleted = []domain.DeletedMaterial{}
	}
	WriteJSON(w, http.StatusOK, deleted)
}

func (a *api) handleMaterialsHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.materialSvc.ListHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	WriteJSON(w, http.StatusOK, history)
}
