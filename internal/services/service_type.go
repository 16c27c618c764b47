package services

import (
	"cablenet/internal/models"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type ServiceTypeService struct {
	db *bun.DB
}

func NewServiceTypeService(db *bun.DB) *ServiceTypeService {
	return &ServiceTypeService{db: db}
}

type ServiceTypeInput struct {
	Name         string `json:"name"`
	MarkingColor string `json:"markingColor"`
}

func (in ServiceTypeInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name is required")
	}
	if in.MarkingColor != "" && !hexColor.MatchString(in.MarkingColor) {
		return invalid("markingColor must look like #RRGGBB")
	}
	return nil
}

func (s *ServiceTypeService) List(ctx context.Context) ([]models.ServiceType, error) {
	types := []models.ServiceType{}
	if err := s.db.NewSelect().Model(&types).OrderExpr("st.name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list service types: %w", err)
	}
	return types, nil
}

func (s *ServiceTypeService) Get(ctx context.Context, id uuid.UUID) (*models.ServiceType, error) {
	var st models.ServiceType
	if err := s.db.NewSelect().Model(&st).Where("st.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound("service type", err)
	}
	return &st, nil
}

func (s *ServiceTypeService) Create(ctx context.Context, in ServiceTypeInput) (*models.ServiceType, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	st := models.ServiceType{Name: strings.TrimSpace(in.Name), MarkingColor: in.MarkingColor}
	if _, err := s.db.NewInsert().Model(&st).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert service type: %w", err)
	}
	return &st, nil
}

// Update changes name and color. Routes already drawn keep the color they
// were drawn with.
func (s *ServiceTypeService) Update(ctx context.Context, id uuid.UUID, in ServiceTypeInput) (*models.ServiceType, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	st := models.ServiceType{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		MarkingColor: in.MarkingColor,
		UpdatedAt:    time.Now().UTC(),
	}
	// RETURNING into a struct yields sql.ErrNoRows for a missing id.
	_, err := s.db.NewUpdate().
		Model(&st).
		Column("name", "marking_color", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, notFound("service type", err)
	}
	return &st, nil
}

// Delete removes the type and detaches the locations that used it.
func (s *ServiceTypeService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.Location)(nil)).
			Set("service_type_id = NULL").
			Where("service_type_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("detach locations: %w", err)
		}
		res, err := tx.NewDelete().Model((*models.ServiceType)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete service type: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("service type: %w", ErrNotFound)
		}
		return nil
	})
}
