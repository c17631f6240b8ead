package domain

import "time"

type MaterialStatus string

const (
	MaterialStatusPending   MaterialStatus = "PENDING"
	MaterialStatusSent      MaterialStatus = "SENT"
	MaterialStatusDelivered MaterialStatus = "DELIVERED"
	MaterialStatusReturned  MaterialStatus = "RETURNED"
	MaterialStatusCompleted MaterialStatus = "COMPLETED"
	MaterialStatusCanceled  MaterialStatus = "CANCELED"
)

func (s MaterialStatus) Valid() bool {
	switch s {
	case MaterialStatusPending, MaterialStatusSent, MaterialStatusDelivered,
		MaterialStatusReturned, MaterialStatusCompleted, MaterialStatusCanceled:
		return true
	}
	return false
}

// Material is one piece of equipment sent out for repair.
type Material struct {
	ID            string         `json:"id"`
	InvoiceNumber string         `json:"invoice_number"`
	OrderNumber   string         `json:"order_number"`
	Equipment     string         `json:"equipment"`
	OrderType     string         `json:"order_type"`
	MaterialType  string         `json:"material_type"`
	ShipmentCode  string         `json:"shipment_code"`
	SAPCode       string         `json:"sap_code"`
	Company       string         `json:"company"`
	Carrier       string         `json:"carrier"`
	ShipDate      *time.Time     `json:"ship_date,omitempty"`
	ShipmentDate  *time.Time     `json:"shipment_date,omitempty"`
	Status        MaterialStatus `json:"status"`
	Notes         string         `json:"notes"`
	Comments      string         `json:"comments"`
	CreatedBy     string         `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedBy     string         `json:"updated_by"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// DeletedMaterial is a soft-deleted material. The record is moved out of the
// active collection on delete and never mutated again.
type DeletedMaterial struct {
	Material
	DeletedBy      string    `json:"deleted_by"`
	DeletedAt      time.Time `json:"deleted_at"`
	DeletionReason string    `json:"deletion_reason"`
}

// HistoryEntry records one field change on a material. Entries are written
// only as a side effect of a material update and are never edited.
type HistoryEntry struct {
	ID         string    `json:"id"`
	MaterialID string    `json:"material_id"`
	Field      string    `json:"field"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	UpdatedBy  string    `json:"updated_by"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MaterialUpdate carries the business fields of a material update; nil means
// "leave unchanged". The store diffs it against the current row and writes
// one history entry per changed field.
type MaterialUpdate struct {
	InvoiceNumber *string
	OrderNumber   *string
	Equipment     *string
	OrderType     *string
	MaterialType  *string
	ShipmentCode  *string
	SAPCode       *string
	Company       *string
	Carrier       *string
	ShipDate      *time.Time
	ShipmentDate  *time.Time
	Status        *MaterialStatus
	Notes         *string
	Comments      *string
}
