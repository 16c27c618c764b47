package services

import (
	"cablenet/internal/area"
	"cablenet/internal/cable"
	"cablenet/internal/geo"
	"cablenet/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LocationService owns locations and their junction boxes. Together with the
// hub table it implements editor.LocationStore.
type LocationService struct {
	db    *bun.DB
	areas *AreaService
}

func NewLocationService(db *bun.DB, areas *AreaService) *LocationService {
	return &LocationService{db: db, areas: areas}
}

// LocationInput is the writable part of a location.
type LocationInput struct {
	Name          string          `json:"name"`
	Address       string          `json:"address"`
	Coordinates   geo.Coordinates `json:"coordinates"`
	ServiceTypeID *uuid.UUID      `json:"serviceTypeId"`
	Image         string          `json:"image"`
	Notes         string          `json:"notes"`
}

func (in LocationInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name is required")
	}
	if !geo.ValidCoordinates(in.Coordinates) {
		return invalid("coordinates out of range")
	}
	return nil
}

// List returns locations ordered by name. With AreaIDs set only locations
// inside at least one of those areas are returned.
func (s *LocationService) List(ctx context.Context, params models.LocationQueryParams) ([]models.Location, error) {
	var locs []models.Location
	q := s.db.NewSelect().Model(&locs).Relation("ServiceType")
	if params.Search != "" {
		like := "%" + strings.ToLower(params.Search) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(loc.name) LIKE ?", like).WhereOr("LOWER(loc.address) LIKE ?", like)
		})
	}
	if err := q.OrderExpr("loc.name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	if locs == nil {
		locs = []models.Location{}
	}
	if len(params.AreaIDs) == 0 {
		return locs, nil
	}

	zones, err := s.areas.Zones(ctx, params.AreaIDs)
	if err != nil {
		return nil, err
	}
	return area.Filter(locs, params.AreaIDs, zones), nil
}

func (s *LocationService) GetLocation(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var loc models.Location
	err := s.db.NewSelect().
		Model(&loc).
		Relation("ServiceType").
		Where("loc.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, notFound("location", err)
	}
	if loc.JunctionBoxes == nil {
		loc.JunctionBoxes = []models.JunctionBox{}
	}
	return &loc, nil
}

func (s *LocationService) Create(ctx context.Context, in LocationInput) (*models.Location, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	loc := models.Location{
		Name:          strings.TrimSpace(in.Name),
		Address:       in.Address,
		Coordinates:   in.Coordinates,
		ServiceTypeID: in.ServiceTypeID,
		Image:         in.Image,
		Notes:         in.Notes,
		JunctionBoxes: []models.JunctionBox{},
	}
	if _, err := s.db.NewInsert().Model(&loc).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	return &loc, nil
}

// Update rewrites the editable columns. Junction boxes are left alone.
func (s *LocationService) Update(ctx context.Context, id uuid.UUID, in LocationInput) (*models.Location, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	coords, err := json.Marshal(in.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("encode coordinates: %w", err)
	}
	res, err := s.db.NewUpdate().
		Model((*models.Location)(nil)).
		Set("name = ?", strings.TrimSpace(in.Name)).
		Set("address = ?", in.Address).
		Set("coordinates = ?::jsonb", string(coords)).
		Set("service_type_id = ?", in.ServiceTypeID).
		Set("image = ?", in.Image).
		Set("notes = ?", in.Notes).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("location: %w", ErrNotFound)
	}
	return s.GetLocation(ctx, id)
}

// Delete removes the location. Its route, if any, becomes a ghost.
func (s *LocationService) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*models.Location)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("location: %w", ErrNotFound)
	}
	return nil
}

// AddJunctionBox appends box to the location's array. A zero id or
// timestamp is filled in.
func (s *LocationService) AddJunctionBox(ctx context.Context, locationID uuid.UUID, box models.JunctionBox) (*models.JunctionBox, error) {
	if !geo.ValidCoordinates(box.Coordinates) {
		return nil, invalid("junction box coordinates out of range")
	}
	if box.ID == uuid.Nil {
		box.ID = uuid.New()
	}
	if box.CreatedAt.IsZero() {
		box.CreatedAt = time.Now().UTC()
	}
	item, err := json.Marshal([]models.JunctionBox{box})
	if err != nil {
		return nil, fmt.Errorf("encode junction box: %w", err)
	}

	res, err := s.db.NewUpdate().
		Model((*models.Location)(nil)).
		Set("junction_boxes = COALESCE(junction_boxes, '[]'::jsonb) || ?::jsonb", string(item)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", locationID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("add junction box: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("location: %w", ErrNotFound)
	}
	return &box, nil
}

// DeleteJunctionBox removes exactly the box with boxID.
func (s *LocationService) DeleteJunctionBox(ctx context.Context, locationID, boxID uuid.UUID) error {
	match := fmt.Sprintf(`[{"id":%q}]`, boxID.String())
	res, err := s.db.NewUpdate().
		Model((*models.Location)(nil)).
		Set(`junction_boxes = (
			SELECT COALESCE(jsonb_agg(e), '[]'::jsonb)
			FROM jsonb_array_elements(junction_boxes) AS e
			WHERE e->>'id' <> ?)`, boxID.String()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", locationID).
		Where("junction_boxes @> ?::jsonb", match).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete junction box: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("junction box: %w", ErrNotFound)
	}
	return nil
}

// ListAnchors returns every location and hub a route may belong to.
func (s *LocationService) ListAnchors(ctx context.Context) ([]cable.Anchor, error) {
	var rows []struct {
		ID          uuid.UUID       `bun:"id"`
		Coordinates geo.Coordinates `bun:"coordinates,type:jsonb"`
	}
	err := s.db.NewSelect().
		Model((*models.Location)(nil)).
		Column("id", "coordinates").
		UnionAll(
			s.db.NewSelect().Model((*models.Hub)(nil)).Column("id", "coordinates"),
		).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list anchors: %w", err)
	}

	anchors := make([]cable.Anchor, 0, len(rows))
	for _, r := range rows {
		anchors = append(anchors, cable.Anchor{LocationID: r.ID.String(), Coordinates: r.Coordinates})
	}
	return anchors, nil
}

// RouteColor is the marking color of the location's service type, or the
// default cable color.
func RouteColor(loc *models.Location) string {
	if loc.ServiceType != nil && loc.ServiceType.MarkingColor != "" {
		return loc.ServiceType.MarkingColor
	}
	return cable.DefaultColor
}
