package models

import (
	"time"

	"cablenet/internal/geo"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ServiceType struct {
	bun.BaseModel `bun:"table:service_types,alias:st"`

	ID           uuid.UUID `bun:",pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name         string    `bun:",notnull" json:"name"`
	MarkingColor string    `json:"markingColor"`
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// Location is a customer or asset site. Junction boxes live inside the row
// as a JSON array.
type Location struct {
	bun.BaseModel `bun:"table:locations,alias:loc"`

	ID            uuid.UUID       `bun:",pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name          string          `bun:",notnull" json:"name"`
	Address       string          `json:"address"`
	Coordinates   geo.Coordinates `bun:"coordinates,type:jsonb" json:"coordinates"`
	ServiceTypeID *uuid.UUID      `bun:"service_type_id,type:uuid" json:"serviceTypeId"`
	Image         string          `json:"image"`
	Notes         string          `json:"notes"`
	JunctionBoxes []JunctionBox   `bun:"junction_boxes,type:jsonb" json:"junctionBoxes"`
	CreatedAt     time.Time       `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt     time.Time       `bun:",nullzero,notnull,default:current_timestamp" json:"updatedAt"`

	ServiceType *ServiceType `bun:"rel:belongs-to,join:service_type_id=id" json:"serviceType,omitempty"`
}

func (l Location) Position() geo.Coordinates { return l.Coordinates }

// JunctionBox is a tagged point along a location's route.
type JunctionBox struct {
	ID          uuid.UUID       `json:"id"`
	Coordinates geo.Coordinates `json:"coordinates"`
	Notes       string          `json:"notes"`
	Image       string          `json:"image,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Hub is a distribution point. At most one hub is central; default cables
// start there.
type Hub struct {
	bun.BaseModel `bun:"table:hubs,alias:hub"`

	ID          uuid.UUID       `bun:",pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name        string          `bun:",notnull" json:"name"`
	Coordinates geo.Coordinates `bun:"coordinates,type:jsonb" json:"coordinates"`
	Image       string          `json:"image"`
	IsCentral   bool            `bun:"is_central,notnull,default:false" json:"isCentral"`
	CreatedAt   time.Time       `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time       `bun:",nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

func (h Hub) Position() geo.Coordinates { return h.Coordinates }

// LocationQueryParams filters the location list.
type LocationQueryParams struct {
	AreaIDs []string
	Search  string
}
