package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is an operator. GeoJSON holds the operator's whole route document;
// GeoJSONVersion is bumped on every write and guards against stale saves.
type User struct {
	bun.BaseModel  `bun:"table:users"`
	ID             uuid.UUID       `bun:",pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Email          string          `bun:",unique,notnull" json:"email"`
	PasswordHash   string          `json:"-"`
	TokenVersion   int             `bun:"token_version,notnull,default:0" json:"token_version"`
	Roles          []string        `bun:",array" json:"roles"`
	Provider       string          `json:"provider"`
	Name           string          `json:"name"`
	GeoJSON        json.RawMessage `bun:"geojson,type:jsonb" json:"geojson"`
	GeoJSONVersion int             `bun:"geojson_version,notnull,default:0" json:"geojson_version"`
	CreatedAt      time.Time       `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	LastLoginAt    *time.Time      `json:"last_login_at"`
}

type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens"`
	ID            uuid.UUID `bun:",pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	UserID        uuid.UUID `bun:"type:uuid" json:"user_id"`
	JTI           string    `json:"jti"`
	TokenHash     string    `json:"token_hash"`
	DeviceInfo    *string   `json:"device_info"`
	Revoked       bool      `json:"revoked"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}
