package services

import (
	"cablenet/internal/area"
	"cablenet/internal/geo"
	"cablenet/internal/models"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AreaService struct {
	db            *bun.DB
	defaultRadius float64
	sides         int
}

func NewAreaService(db *bun.DB, defaultRadius float64, sides int) *AreaService {
	if defaultRadius <= 0 {
		defaultRadius = area.DefaultRadius
	}
	return &AreaService{db: db, defaultRadius: defaultRadius, sides: sides}
}

type AreaInput struct {
	Name        string          `json:"name"`
	Coordinates geo.Coordinates `json:"coordinates"`
	Radius      float64         `json:"radius"`
}

// NewArea builds the row for in, sampling its polygon once.
func (s *AreaService) NewArea(in AreaInput) (models.Area, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Area{}, invalid("name is required")
	}
	if !geo.ValidCoordinates(in.Coordinates) {
		return models.Area{}, invalid("coordinates out of range")
	}
	if in.Radius < 0 {
		return models.Area{}, invalid("radius must not be negative")
	}
	radius := in.Radius
	if radius == 0 {
		radius = s.defaultRadius
	}

	z := area.NewZone("", in.Name, in.Coordinates, radius, s.sides)
	return models.Area{
		Name:        strings.TrimSpace(in.Name),
		Coordinates: in.Coordinates,
		Radius:      z.Radius,
		Polygon:     &models.AreaPolygon{Radius: z.Radius, Coordinates: z.Polygon},
	}, nil
}

func (s *AreaService) Create(ctx context.Context, in AreaInput) (*models.Area, error) {
	a, err := s.NewArea(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.NewInsert().Model(&a).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert area: %w", err)
	}
	return &a, nil
}

func (s *AreaService) List(ctx context.Context) ([]models.Area, error) {
	areas := []models.Area{}
	if err := s.db.NewSelect().Model(&areas).OrderExpr("ar.name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	return areas, nil
}

func (s *AreaService) Get(ctx context.Context, id uuid.UUID) (*models.Area, error) {
	var a models.Area
	if err := s.db.NewSelect().Model(&a).Where("ar.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound("area", err)
	}
	return &a, nil
}

func (s *AreaService) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*models.Area)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete area: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("area: %w", ErrNotFound)
	}
	return nil
}

// Zones loads the given areas for membership tests. Ids that are not uuids
// or match no row are skipped; with no ids every area is returned.
func (s *AreaService) Zones(ctx context.Context, ids []string) ([]area.Zone, error) {
	var rows []models.Area
	q := s.db.NewSelect().Model(&rows)
	if len(ids) > 0 {
		valid := make([]uuid.UUID, 0, len(ids))
		for _, id := range ids {
			if u, err := uuid.Parse(strings.TrimSpace(id)); err == nil {
				valid = append(valid, u)
			}
		}
		if len(valid) == 0 {
			return []area.Zone{}, nil
		}
		q = q.Where("ar.id IN (?)", bun.In(valid))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("load areas: %w", err)
	}

	zones := make([]area.Zone, 0, len(rows))
	for _, a := range rows {
		zones = append(zones, a.Zone())
	}
	return zones, nil
}
