package models

import (
	"time"

	"cablenet/internal/area"
	"cablenet/internal/geo"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/uptrace/bun"
)

// Area is a named coverage circle. Polygon is sampled once at creation and
// stored; older rows may only carry a radius.
type Area struct {
	bun.BaseModel `bun:"table:areas,alias:ar"`

	ID          uuid.UUID       `bun:",pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name        string          `bun:",notnull" json:"name"`
	Coordinates geo.Coordinates `bun:"coordinates,type:jsonb" json:"coordinates"`
	Radius      float64         `bun:"radius,notnull,default:0" json:"radius"`
	Polygon     *AreaPolygon    `bun:"polygon,type:jsonb" json:"polygon,omitempty"`
	CreatedAt   time.Time       `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

type AreaPolygon struct {
	Radius      float64     `json:"radius"`
	Coordinates []orb.Point `json:"coordinates"`
}

// Zone converts the row for membership tests.
func (a Area) Zone() area.Zone {
	z := area.Zone{
		ID:     a.ID.String(),
		Name:   a.Name,
		Center: a.Coordinates,
		Radius: a.Radius,
	}
	if a.Polygon != nil {
		z.Polygon = a.Polygon.Coordinates
		if z.Radius <= 0 {
			z.Radius = a.Polygon.Radius
		}
	}
	return z
}
