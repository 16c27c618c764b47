package services

import (
	"cablenet/internal/cable"
	"cablenet/internal/models"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserService reads operator records and owns the per-operator route
// document. It implements editor.RouteStore.
type UserService struct {
	db *bun.DB
}

func NewUserService(db *bun.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetMe(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.NewSelect().
		Model(&u).
		ExcludeColumn("password_hash", "geojson").
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, notFound("user", err)
	}
	return &u, nil
}

// GetGeoJSON returns the raw stored document and its version. A user who
// never saved gets an empty collection.
func (s *UserService) GetGeoJSON(ctx context.Context, userID uuid.UUID) (json.RawMessage, int, error) {
	var row struct {
		GeoJSON json.RawMessage `bun:"geojson"`
		Version int             `bun:"geojson_version"`
	}
	err := s.db.NewSelect().
		Model((*models.User)(nil)).
		Column("geojson", "geojson_version").
		Where("id = ?", userID).
		Scan(ctx, &row)
	if err != nil {
		return nil, 0, notFound("user", err)
	}
	if len(row.GeoJSON) == 0 || string(row.GeoJSON) == "null" {
		empty, _ := cable.Empty().Marshal()
		return empty, row.Version, nil
	}
	return row.GeoJSON, row.Version, nil
}

// PutGeoJSON replaces the stored document wholesale. The body must be a JSON
// object; baseVersion must match the stored version.
func (s *UserService) PutGeoJSON(ctx context.Context, userID uuid.UUID, raw json.RawMessage, baseVersion int) (int, error) {
	if !cable.IsObject(raw) {
		return 0, invalid("geojson must be a JSON object")
	}
	return s.write(ctx, userID, raw, baseVersion)
}

func (s *UserService) LoadRoutes(ctx context.Context, userID uuid.UUID) (cable.FeatureCollection, int, error) {
	raw, version, err := s.GetGeoJSON(ctx, userID)
	if err != nil {
		return cable.FeatureCollection{}, 0, err
	}
	fc, err := cable.Parse(raw)
	if err != nil {
		return cable.FeatureCollection{}, 0, err
	}
	return fc, version, nil
}

func (s *UserService) SaveRoutes(ctx context.Context, userID uuid.UUID, fc cable.FeatureCollection, baseVersion int) (int, error) {
	raw, err := fc.Marshal()
	if err != nil {
		return 0, fmt.Errorf("encode routes: %w", err)
	}
	return s.write(ctx, userID, raw, baseVersion)
}

// write is a single conditional update on geojson_version. Zero rows means
// either the user is gone or the base is stale.
func (s *UserService) write(ctx context.Context, userID uuid.UUID, raw json.RawMessage, baseVersion int) (int, error) {
	var version int
	err := s.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("geojson = ?", string(raw)).
		Set("geojson_version = geojson_version + 1").
		Where("id = ?", userID).
		Where("geojson_version = ?", baseVersion).
		Returning("geojson_version").
		Scan(ctx, &version)
	if errors.Is(err, sql.ErrNoRows) {
		exists, err := s.db.NewSelect().Model((*models.User)(nil)).Where("id = ?", userID).Exists(ctx)
		if err != nil {
			return 0, fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return 0, fmt.Errorf("user: %w", ErrNotFound)
		}
		return 0, ErrVersionConflict
	}
	if err != nil {
		return 0, fmt.Errorf("update geojson: %w", err)
	}
	return version, nil
}
