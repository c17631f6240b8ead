package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"lamisys/internal/domain"
)

type MaterialsStore struct {
	pool *pgxpool.Pool
}

func NewMaterialsStore(pool *pgxpool.Pool) *MaterialsStore {
	return &MaterialsStore{pool: pool}
}

const materialColumns = `
	id, invoice_number, order_number, equipment, order_type, material_type,
	shipment_code, sap_code, company, carrier, ship_date, shipment_date,
	status, notes, comments, created_by, created_at, updated_by, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (domain.Material, error) {
	var (
		m          domain.Material
		idUUID     pgtype.UUID
		shipTS     pgtype.Timestamptz
		shipmentTS pgtype.Timestamptz
		createdBy  pgtype.UUID
		updatedBy  pgtype.UUID
	)
	err := row.Scan(
		&idUUID,
		&m.InvoiceNumber,
		&m.OrderNumber,
		&m.Equipment,
		&m.OrderType,
		&m.MaterialType,
		&m.ShipmentCode,
		&m.SAPCode,
		&m.Company,
		&m.Carrier,
		&shipTS,
		&shipmentTS,
		&m.Status,
		&m.Notes,
		&m.Comments,
		&createdBy,
		&m.CreatedAt,
		&updatedBy,
		&m.UpdatedAt,
	)
	if err != nil {
		return domain.Material{}, err
	}

	m.ID = uuidOrEmpty(idUUID)
	m.ShipDate = timestamptzPtr(shipTS)
	m.ShipmentDate = timestamptzPtr(shipmentTS)
	m.CreatedBy = uuidOrEmpty(createdBy)
	m.UpdatedBy = uuidOrEmpty(updatedBy)
	return m, nil
}

func (s *MaterialsStore) CreateMaterial(ctx context.Context, m domain.Material) (domain.Material, error) {
	const q = `
		INSERT INTO materials (
			invoice_number, order_number, equipment, order_type, material_type,
			shipment_code, sap_code, company, carrier, ship_date, shipment_date,
			status, notes, comments, created_by, updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		RETURNING ` + materialColumns

	row := s.pool.QueryRow(ctx, q,
		m.InvoiceNumber,
		m.OrderNumber,
		m.Equipment,
		m.OrderType,
		m.MaterialType,
		m.ShipmentCode,
		m.SAPCode,
		m.Company,
		m.Carrier,
		m.ShipDate,
		m.ShipmentDate,
		m.Status,
		m.Notes,
		m.Comments,
		m.CreatedBy,
	)
	created, err := scanMaterial(row)
	if err != nil {
		return domain.Material{}, fmt.Errorf("create material: %w", err)
	}
	return created, nil
}

func (s *MaterialsStore) GetMaterial(ctx context.Context, id string) (domain.Material, error) {
	q := `SELECT ` + materialColumns + ` FROM materials WHERE id = $1`

	m, err := scanMaterial(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Material{}, domain.ErrNotFound
		}
		return domain.Material{}, fmt.Errorf("get material: %w", err)
	}
	return m, nil
}

func (s *MaterialsStore) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	q := `SELECT ` + materialColumns + ` FROM materials ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	var out []domain.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return out, nil
}

// fieldChange is one column touched by an update, with the before and after
// values as they are written to the history table.
type fieldChange struct {
	column string
	arg    any
	old    string
	new    string
}

// UpdateMaterial applies the non-nil fields of upd inside one transaction and
// writes one history entry per column that actually changed. An update where
// every field matches the current row is a no-op.
func (s *MaterialsStore) UpdateMaterial(ctx context.Context, id string, upd domain.MaterialUpdate, updatedBy string) (domain.Material, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Material{}, fmt.Errorf("update material: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	q := `SELECT ` + materialColumns + ` FROM materials WHERE id = $1 FOR UPDATE`
	current, err := scanMaterial(tx.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Material{}, domain.ErrNotFound
		}
		return domain.Material{}, fmt.Errorf("update material: load: %w", err)
	}

	changes := diffMaterial(current, upd)
	if len(changes) == 0 {
		return current, tx.Commit(ctx)
	}

	var (
		set  strings.Builder
		args []any
	)
	for i, c := range changes {
		if i > 0 {
			set.WriteString(", ")
		}
		fmt.Fprintf(&set, "%s = $%d", c.column, i+1)
		args = append(args, c.arg)
	}
	fmt.Fprintf(&set, ", updated_by = $%d, updated_at = now()", len(args)+1)
	args = append(args, updatedBy)
	args = append(args, id)

	updateQ := fmt.Sprintf(
		`UPDATE materials SET %s WHERE id = $%d RETURNING %s`,
		set.String(), len(args), materialColumns,
	)
	updated, err := scanMaterial(tx.QueryRow(ctx, updateQ, args...))
	if err != nil {
		return domain.Material{}, fmt.Errorf("update material: %w", err)
	}

	const historyQ = `
		INSERT INTO material_history (material_id, field, old_value, new_value, updated_by)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, c := range changes {
		if _, err := tx.Exec(ctx, historyQ, id, c.column, c.old, c.new, updatedBy); err != nil {
			return domain.Material{}, fmt.Errorf("update material: history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Material{}, fmt.Errorf("update material: commit: %w", err)
	}
	return updated, nil
}

func diffMaterial(current domain.Material, upd domain.MaterialUpdate) []fieldChange {
	var changes []fieldChange

	str := func(column string, cur string, next *string) {
		if next == nil || *next == cur {
			return
		}
		changes = append(changes, fieldChange{column: column, arg: *next, old: cur, new: *next})
	}
	str("invoice_number", current.InvoiceNumber, upd.InvoiceNumber)
	str("order_number", current.OrderNumber, upd.OrderNumber)
	str("equipment", current.Equipment, upd.Equipment)
	str("order_type", current.OrderType, upd.OrderType)
	str("material_type", current.MaterialType, upd.MaterialType)
	str("shipment_code", current.ShipmentCode, upd.ShipmentCode)
	str("sap_code", current.SAPCode, upd.SAPCode)
	str("company", current.Company, upd.Company)
	str("carrier", current.Carrier, upd.Carrier)
	str("notes", current.Notes, upd.Notes)
	str("comments", current.Comments, upd.Comments)

	date := func(column string, cur *time.Time, next *time.Time) {
		if next == nil {
			return
		}
		if cur != nil && cur.Equal(*next) {
			return
		}
		changes = append(changes, fieldChange{
			column: column,
			arg:    *next,
			old:    formatDate(cur),
			new:    formatDate(next),
		})
	}
	date("ship_date", current.ShipDate, upd.ShipDate)
	date("shipment_date", current.ShipmentDate, upd.ShipmentDate)

	if upd.Status != nil && *upd.Status != current.Status {
		changes = append(changes, fieldChange{
			column: "status",
			arg:    *upd.Status,
			old:    string(current.Status),
			new:    string(*upd.Status),
		})
	}
	return changes
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// SoftDeleteMaterial moves the row into deleted_materials inside one
// transaction. The copy keeps every business field as it was at deletion.
func (s *MaterialsStore) SoftDeleteMaterial(ctx context.Context, id, deletedBy, reason string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete material: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const copyQ = `
		INSERT INTO deleted_materials (
			id, invoice_number, order_number, equipment, order_type, material_type,
			shipment_code, sap_code, company, carrier, ship_date, shipment_date,
			status, notes, comments, created_by, created_at, updated_by, updated_at,
			deleted_by, deletion_reason
		)
		SELECT
			id, invoice_number, order_number, equipment, order_type, material_type,
			shipment_code, sap_code, company, carrier, ship_date, shipment_date,
			status, notes, comments, created_by, created_at, updated_by, updated_at,
			$2, $3
		FROM materials
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, copyQ, id, deletedBy, reason)
	if err != nil {
		return fmt.Errorf("delete material: copy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM materials WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete material: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("delete material: commit: %w", err)
	}
	return nil
}

func (s *MaterialsStore) ListDeletedMaterials(ctx context.Context) ([]domain.DeletedMaterial, error) {
	q := `
		SELECT ` + materialColumns + `, deleted_by, deleted_at, deletion_reason
		FROM deleted_materials
		ORDER BY deleted_at DESC
	`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list deleted materials: %w", err)
	}
	defer rows.Close()

	var out []domain.DeletedMaterial
	for rows.Next() {
		var (
			d          domain.DeletedMaterial
			idUUID     pgtype.UUID
			shipTS     pgtype.Timestamptz
			shipmentTS pgtype.Timestamptz
			createdBy  pgtype.UUID
			updatedBy  pgtype.UUID
			deletedBy  pgtype.UUID
		)
		err := rows.Scan(
			&idUUID,
			&d.InvoiceNumber,
			&d.OrderNumber,
			&d.Equipment,
			&d.OrderType,
			&d.MaterialType,
			&d.ShipmentCode,
			&d.SAPCode,
			&d.Company,
			&d.Carrier,
			&shipTS,
			&shipmentTS,
			&d.Status,
			&d.Notes,
			&d.Comments,
			&createdBy,
			&d.CreatedAt,
			&updatedBy,
			&d.UpdatedAt,
			&deletedBy,
			&d.DeletedAt,
			&d.DeletionReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan deleted material: %w", err)
		}
		d.ID = uuidOrEmpty(idUUID)
		d.ShipDate = timestamptzPtr(shipTS)
		d.ShipmentDate = timestamptzPtr(shipmentTS)
		d.CreatedBy = uuidOrEmpty(createdBy)
		d.UpdatedBy = uuidOrEmpty(updatedBy)
		d.DeletedBy = uuidOrEmpty(deletedBy)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deleted materials: %w", err)
	}
	return out, nil
}

func (s *MaterialsStore) ListHistory(ctx context.Context, materialID string) ([]domain.HistoryEntry, error) {
	const q = `
		SELECT id, material_id, field, old_value, new_value, updated_by, updated_at
		FROM material_history
		WHERE material_id = $1
		ORDER BY updated_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, q, materialID)
	if err != nil {
		return nil, fmt.Errorf("list material history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var (
			h         domain.HistoryEntry
			idUUID    pgtype.UUID
			matUUID   pgtype.UUID
			byUUID    pgtype.UUID
			oldText   pgtype.Text
			newText   pgtype.Text
		)
		if err := rows.Scan(&idUUID, &matUUID, &h.Field, &oldText, &newText, &byUUID, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		h.ID = uuidOrEmpty(idUUID)
		h.MaterialID = uuidOrEmpty(matUUID)
		h.OldValue = textOrEmpty(oldText)
		h.NewValue = textOrEmpty(newText)
		h.UpdatedBy = uuidOrEmpty(byUUID)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list material history: %w", err)
	}
	return out, nil
}
