package stations

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/voltgrid/server/internal/domain/geo"
)

const (
	maxNameLength    = 200
	maxAddressLength = 500
	maxHoursLength   = 500
	maxPortPowerKW   = 1000
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidateVersionFields rejects malformed proposed versions before any
// state change happens.
func ValidateVersionFields(fields VersionFields) error {
	name := strings.TrimSpace(fields.Name)
	if name == "" {
		return ValidationError{Field: "name", Message: "is required"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}

	if strings.TrimSpace(fields.Address) == "" {
		return ValidationError{Field: "address", Message: "is required"}
	}
	if utf8.RuneCountInString(fields.Address) > maxAddressLength {
		return ValidationError{Field: "address", Message: fmt.Sprintf("must be at most %d characters", maxAddressLength)}
	}

	if !geo.ValidLatLng(fields.Lat, fields.Lng) {
		return ValidationError{Field: "location", Message: "latitude must be in [-90, 90] and longitude in [-180, 180]"}
	}

	if utf8.RuneCountInString(fields.OperatingHours) > maxHoursLength {
		return ValidationError{Field: "operatingHours", Message: fmt.Sprintf("must be at most %d characters", maxHoursLength)}
	}

	if !validParking(fields.Parking) {
		return ValidationError{Field: "parking", Message: "unknown parking type"}
	}
	if !validVisibility(fields.Visibility) {
		return ValidationError{Field: "visibility", Message: "unknown visibility"}
	}
	if !validPublicStatus(fields.PublicStatus) {
		return ValidationError{Field: "publicStatus", Message: "unknown public status"}
	}

	for i, service := range fields.Services {
		if !validServiceType(service.Type) {
			return ValidationError{
				Field:   fmt.Sprintf("services[%d].type", i),
				Message: "unknown service type",
			}
		}
		for j, port := range service.Ports {
			field := fmt.Sprintf("services[%d].ports[%d]", i, j)
			if !validPowerType(port.PowerType) {
				return ValidationError{Field: field + ".powerType", Message: "unknown power type"}
			}
			if port.PowerKW <= 0 || port.PowerKW > maxPortPowerKW {
				return ValidationError{Field: field + ".powerKw", Message: fmt.Sprintf("must be in (0, %d]", maxPortPowerKW)}
			}
			if port.Count <= 0 {
				return ValidationError{Field: field + ".count", Message: "must be positive"}
			}
		}
	}

	return nil
}

func validParking(p ParkingType) bool {
	switch p {
	case ParkingFree, ParkingPaid, ParkingStreet, ParkingNone:
		return true
	}
	return false
}

func validVisibility(v VisibilityType) bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

func validPublicStatus(s PublicStatus) bool {
	switch s {
	case PublicStatusOpen, PublicStatusLimited, PublicStatusClosed, PublicStatusTempClose:
		return true
	}
	return false
}

func validServiceType(s ServiceType) bool {
	return s == ServiceCharging || s == ServiceParking
}

func validPowerType(p PowerType) bool {
	switch p {
	case PowerAC, PowerDC, PowerCombo:
		return true
	}
	return false
}
