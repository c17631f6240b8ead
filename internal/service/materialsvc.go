package service

import (
	"context"
	"strings"

	"lamisys/internal/domain"
)

type MaterialsStore interface {
	CreateMaterial(ctx context.Context, m domain.Material) (domain.Material, error)
	GetMaterial(ctx context.Context, id string) (domain.Material, error)
	ListMaterials(ctx context.Context) ([]domain.Material, error)
	UpdateMaterial(ctx context.Context, id string, upd domain.MaterialUpdate, updatedBy string) (domain.Material, error)
	SoftDeleteMaterial(ctx context.Context, id, deletedBy, reason string) error
	ListDeletedMaterials(ctx context.Context) ([]domain.DeletedMaterial, error)
	ListHistory(ctx context.Context, materialID string) ([]domain.HistoryEntry, error)
}

type MaterialService struct {
	Materials MaterialsStore
}

func (s *MaterialService) CreateMaterial(ctx context.Context, m domain.Material, createdBy string) (domain.Material, error) {
	m.Equipment = strings.TrimSpace(m.Equipment)
	if m.Status == "" {
		m.Status = domain.MaterialStatusPending
	}

	fields := map[string]string{}
	if m.Equipment == "" {
		fields["equipment"] = "required"
	}
	if !m.Status.Valid() {
		fields["status"] = "unknown status"
	}
	if len(fields) > 0 {
		return domain.Material{}, domain.NewValidationError(fields)
	}

	m.CreatedBy = createdBy
	return s.Materials.CreateMaterial(ctx, m)
}

func (s *MaterialService) GetMaterial(ctx context.Context, id string) (domain.Material, error) {
	return s.Materials.GetMaterial(ctx, id)
}

func (s *MaterialService) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	return s.Materials.ListMaterials(ctx)
}

func (s *MaterialService) UpdateMaterial(ctx context.Context, id string, upd domain.MaterialUpdate, updatedBy string) (domain.Material, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return domain.Material{}, domain.NewValidationError(map[string]string{"status": "unknown status"})
	}
	if upd.Equipment != nil && strings.TrimSpace(*upd.Equipment) == "" {
		return domain.Material{}, domain.NewValidationError(map[string]string{"equipment": "required"})
	}
	return s.Materials.UpdateMaterial(ctx, id, upd, updatedBy)
}

// DeleteMaterial soft-deletes. The reason is mandatory; deleted records stay
// visible on the deleted list.
func (s *MaterialService) DeleteMaterial(ctx context.Context, id, deletedBy, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.NewValidationError(map[string]string{"reason": "required"})
	}
	return s.Materials.SoftDeleteMaterial(ctx, id, deletedBy, reason)
}

func (s *MaterialService) ListDeletedMaterials(ctx context.Context) ([]domain.DeletedMaterial, error) {
	return s.Materials.ListDeletedMaterials(ctx)
}

func (s *MaterialService) ListHistory(ctx context.Context, materialID string) ([]domain.HistoryEntry, error) {
	if _, err := s.Materials.GetMaterial(ctx, materialID); err != nil {
		return nil, err
	}
	return s.Materials.ListHistory(ctx, materialID)
}
