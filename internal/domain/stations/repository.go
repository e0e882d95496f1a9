package stations

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("station not found")

var ErrVersionNotFound = errors.New("station version not found")

var ErrConflict = errors.New("station conflict")

// WorkflowStatus is the lifecycle state of a station version. A superseded
// published version moves to ARCHIVED so that at most one version per
// station is PUBLISHED at any instant.
type WorkflowStatus string

const (
	StatusDraft         WorkflowStatus = "DRAFT"
	StatusPendingReview WorkflowStatus = "PENDING_REVIEW"
	StatusPublished     WorkflowStatus = "PUBLISHED"
	StatusRejected      WorkflowStatus = "REJECTED"
	StatusArchived      WorkflowStatus = "ARCHIVED"
)

type ParkingType string

const (
	ParkingFree   ParkingType = "FREE"
	ParkingPaid   ParkingType = "PAID"
	ParkingStreet ParkingType = "STREET"
	ParkingNone   ParkingType = "NONE"
)

type VisibilityType string

const (
	VisibilityPublic  VisibilityType = "PUBLIC"
	VisibilityPrivate VisibilityType = "PRIVATE"
)

type PublicStatus string

const (
	PublicStatusOpen      PublicStatus = "OPEN"
	PublicStatusLimited   PublicStatus = "LIMITED"
	PublicStatusClosed    PublicStatus = "CLOSED"
	PublicStatusTempClose PublicStatus = "TEMP_CLOSED"
)

type ServiceType string

const (
	ServiceCharging ServiceType = "CHARGING"
	ServiceParking  ServiceType = "PARKING"
)

type PowerType string

const (
	PowerAC    PowerType = "AC"
	PowerDC    PowerType = "DC"
	PowerCombo PowerType = "COMBO"
)

// Station is the identity root. It is created once and never mutated;
// everything descriptive lives on its versions.
type Station struct {
	ID         string
	ProviderID string
	CreatedAt  time.Time
}

// ChargingPort describes one port group within a station service.
type ChargingPort struct {
	PowerType PowerType
	PowerKW   float64
	Count     int
}

// StationService groups charging ports under a service type.
type StationService struct {
	Type  ServiceType
	Ports []ChargingPort
}

// StationVersion is an immutable snapshot of a station's descriptive
// fields. Superseding a version means creating a new one with a higher
// version number; rows are never updated in place except for the workflow
// status transition on publish, reject, and archive.
type StationVersion struct {
	ID             string
	StationID      string
	VersionNo      int
	Status         WorkflowStatus
	Name           string
	Address        string
	Lat            float64
	Lng            float64
	OperatingHours string
	Parking        ParkingType
	Visibility     VisibilityType
	PublicStatus   PublicStatus
	Services       []StationService
	CreatedBy      string
	CreatedAt      time.Time
	PublishedAt    *time.Time
}

// VersionFields are the caller-supplied descriptive fields of a proposed
// version.
type VersionFields struct {
	Name           string
	Address        string
	Lat            float64
	Lng            float64
	OperatingHours string
	Parking        ParkingType
	Visibility     VisibilityType
	PublicStatus   PublicStatus
	Services       []StationService
}

type VersionCreateParams struct {
	StationID string
	Status    WorkflowStatus
	Fields    VersionFields
	CreatedBy string
}

type Filters struct {
	ProviderID string
	Query      string
}

type Pagination struct {
	Page int
	Size int
}

type ListResult struct {
	Items []StationListing
	Total int
}

// StationListing is a station joined with its current published version
// and trust score for read paths.
type StationListing struct {
	Station    Station
	Current    *StationVersion
	TrustScore *int
}

type Repository interface {
	CreateStation(ctx context.Context, station Station) error
	GetStation(ctx context.Context, id string) (*Station, error)
	ListStations(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error)

	// CreateVersion assigns the next version number for the station and
	// inserts the snapshot. Version numbers are strictly increasing and
	// never reused, including across rejected versions.
	CreateVersion(ctx context.Context, params VersionCreateParams) (*StationVersion, error)
	GetVersion(ctx context.Context, id string) (*StationVersion, error)
	GetPublishedVersion(ctx context.Context, stationID string) (*StationVersion, error)
	ListVersions(ctx context.Context, stationID string) ([]StationVersion, error)
}
