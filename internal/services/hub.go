package services

import (
	"cablenet/internal/geo"
	"cablenet/internal/models"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type HubService struct {
	db       *bun.DB
	fallback *geo.Coordinates
}

// NewHubService takes the configured central hub position used when no hub
// row is flagged central. It may be nil.
func NewHubService(db *bun.DB, fallback *geo.Coordinates) *HubService {
	return &HubService{db: db, fallback: fallback}
}

type HubInput struct {
	Name        string          `json:"name"`
	Coordinates geo.Coordinates `json:"coordinates"`
	Image       string          `json:"image"`
	IsCentral   bool            `json:"isCentral"`
}

func (in HubInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name is required")
	}
	if !geo.ValidCoordinates(in.Coordinates) {
		return invalid("coordinates out of range")
	}
	return nil
}

func (s *HubService) List(ctx context.Context) ([]models.Hub, error) {
	hubs := []models.Hub{}
	if err := s.db.NewSelect().Model(&hubs).OrderExpr("hub.is_central DESC, hub.name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list hubs: %w", err)
	}
	return hubs, nil
}

func (s *HubService) Get(ctx context.Context, id uuid.UUID) (*models.Hub, error) {
	var h models.Hub
	if err := s.db.NewSelect().Model(&h).Where("hub.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound("hub", err)
	}
	return &h, nil
}

// Create inserts a hub. Flagging it central clears the flag on the current
// central hub in the same transaction.
func (s *HubService) Create(ctx context.Context, in HubInput) (*models.Hub, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	h := models.Hub{
		Name:        strings.TrimSpace(in.Name),
		Coordinates: in.Coordinates,
		Image:       in.Image,
		IsCentral:   in.IsCentral,
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if h.IsCentral {
			if err := clearCentral(ctx, tx, uuid.Nil); err != nil {
				return err
			}
		}
		_, err := tx.NewInsert().Model(&h).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert hub: %w", err)
	}
	return &h, nil
}

func (s *HubService) Update(ctx context.Context, id uuid.UUID, in HubInput) (*models.Hub, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	h := models.Hub{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Coordinates: in.Coordinates,
		Image:       in.Image,
		IsCentral:   in.IsCentral,
		UpdatedAt:   time.Now().UTC(),
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if h.IsCentral {
			if err := clearCentral(ctx, tx, id); err != nil {
				return err
			}
		}
		_, err := tx.NewUpdate().
			Model(&h).
			Column("name", "coordinates", "image", "is_central", "updated_at").
			WherePK().
			Returning("*").
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, notFound("update hub", err)
	}
	return &h, nil
}

func clearCentral(ctx context.Context, tx bun.Tx, except uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*models.Hub)(nil)).
		Set("is_central = false").
		Set("updated_at = ?", time.Now().UTC()).
		Where("is_central").
		Where("id <> ?", except).
		Exec(ctx)
	return err
}

func (s *HubService) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*models.Hub)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete hub: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("hub: %w", ErrNotFound)
	}
	return nil
}

// Central returns where new cables start: the hub flagged central, else the
// configured position.
func (s *HubService) Central(ctx context.Context) (geo.Coordinates, error) {
	var h models.Hub
	err := s.db.NewSelect().Model(&h).Where("hub.is_central").Limit(1).Scan(ctx)
	switch {
	case err == nil:
		return h.Coordinates, nil
	case !errors.Is(err, sql.ErrNoRows):
		return geo.Coordinates{}, fmt.Errorf("central hub: %w", err)
	case s.fallback != nil:
		return *s.fallback, nil
	default:
		return geo.Coordinates{}, fmt.Errorf("central hub: %w", ErrNotFound)
	}
}
