package handlers

import (
	"time"

	"github.com/voltgrid/server/internal/domain/changes"
	"github.com/voltgrid/server/internal/domain/stations"
	"github.com/voltgrid/server/internal/domain/verification"
)

type chargingPortPayload struct {
	PowerType string  `json:"powerType"`
	PowerKW   float64 `json:"powerKw"`
	Count     int     `json:"count"`
}

type stationServicePayload struct {
	Type  string                `json:"type"`
	Ports []chargingPortPayload `json:"ports"`
}

type versionFieldsPayload struct {
	Name           string                  `json:"name"`
	Address        string                  `json:"address"`
	Lat            float64                 `json:"lat"`
	Lng            float64                 `json:"lng"`
	OperatingHours string                  `json:"operatingHours"`
	Parking        string                  `json:"parking"`
	Visibility     string                  `json:"visibility"`
	PublicStatus   string                  `json:"publicStatus"`
	Services       []stationServicePayload `json:"services"`
}

func (p versionFieldsPayload) toDomain() stations.VersionFields {
	fields := stations.VersionFields{
		Name:           p.Name,
		Address:        p.Address,
		Lat:            p.Lat,
		Lng:            p.Lng,
		OperatingHours: p.OperatingHours,
		Parking:        stations.ParkingType(p.Parking),
		Visibility:     stations.VisibilityType(p.Visibility),
		PublicStatus:   stations.PublicStatus(p.PublicStatus),
	}
	for _, svc := range p.Services {
		service := stations.StationService{Type: stations.ServiceType(svc.Type)}
		for _, port := range svc.Ports {
			service.Ports = append(service.Ports, stations.ChargingPort{
				PowerType: stations.PowerType(port.PowerType),
				PowerKW:   port.PowerKW,
				Count:     port.Count,
			})
		}
		fields.Services = append(fields.Services, service)
	}
	return fields
}

type versionResponse struct {
	ID             string                  `json:"id"`
	StationID      string                  `json:"stationId"`
	VersionNo      int                     `json:"versionNo"`
	Status         string                  `json:"status"`
	Name           string                  `json:"name"`
	Address        string                  `json:"address"`
	Lat            float64                 `json:"lat"`
	Lng            float64                 `json:"lng"`
	OperatingHours string                  `json:"operatingHours"`
	Parking        string                  `json:"parking"`
	Visibility     string                  `json:"visibility"`
	PublicStatus   string                  `json:"publicStatus"`
	Services       []stationServicePayload `json:"services"`
	CreatedBy      string                  `json:"createdBy,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
	PublishedAt    *time.Time              `json:"publishedAt,omitempty"`
}

func versionToResponse(v *stations.StationVersion) *versionResponse {
	if v == nil {
		return nil
	}
	resp := &versionResponse{
		ID:             v.ID,
		StationID:      v.StationID,
		VersionNo:      v.VersionNo,
		Status:         string(v.Status),
		Name:           v.Name,
		Address:        v.Address,
		Lat:            v.Lat,
		Lng:            v.Lng,
		OperatingHours: v.OperatingHours,
		Parking:        string(v.Parking),
		Visibility:     string(v.Visibility),
		PublicStatus:   string(v.PublicStatus),
		CreatedBy:      v.CreatedBy,
		CreatedAt:      v.CreatedAt,
		PublishedAt:    v.PublishedAt,
	}
	for _, svc := range v.Services {
		payload := stationServicePayload{Type: string(svc.Type)}
		for _, port := range svc.Ports {
			payload.Ports = append(payload.Ports, chargingPortPayload{
				PowerType: string(port.PowerType),
				PowerKW:   port.PowerKW,
				Count:     port.Count,
			})
		}
		resp.Services = append(resp.Services, payload)
	}
	return resp
}

type changeRequestResponse struct {
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	StationID         string     `json:"stationId"`
	ProposedVersionID string     `json:"proposedVersionId"`
	SubmittedBy       string     `json:"submittedBy"`
	RiskScore         int        `json:"riskScore"`
	RiskReasons       []string   `json:"riskReasons"`
	AdminNote         string     `json:"adminNote,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	DecidedAt         *time.Time `json:"decidedAt,omitempty"`
	DecidedBy         string     `json:"decidedBy,omitempty"`
}

func changeRequestToResponse(request *changes.ChangeRequest) *changeRequestResponse {
	if request == nil {
		return nil
	}
	return &changeRequestResponse{
		ID:                request.ID,
		Type:              string(request.Type),
		Status:            string(request.Status),
		StationID:         request.StationID,
		ProposedVersionID: request.ProposedVersionID,
		SubmittedBy:       request.SubmittedBy,
		RiskScore:         request.RiskScore,
		RiskReasons:       request.RiskReasons,
		AdminNote:         request.AdminNote,
		CreatedAt:         request.CreatedAt,
		DecidedAt:         request.DecidedAt,
		DecidedBy:         request.DecidedBy,
	}
}

type checkinResponse struct {
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	CheckedInAt time.Time `json:"checkedInAt"`
	DistanceM   int       `json:"distanceM"`
	DeviceNote  string    `json:"deviceNote,omitempty"`
}

type evidenceResponse struct {
	ID             string    `json:"id"`
	PhotoObjectKey string    `json:"photoObjectKey"`
	Note           string    `json:"note,omitempty"`
	SubmittedAt    time.Time `json:"submittedAt"`
	SubmittedBy    string    `json:"submittedBy"`
}

type reviewResponse struct {
	Result     string    `json:"result"`
	AdminNote  string    `json:"adminNote,omitempty"`
	ReviewedAt time.Time `json:"reviewedAt"`
	ReviewedBy string    `json:"reviewedBy"`
}

type taskResponse struct {
	ID              string             `json:"id"`
	StationID       string             `json:"stationId"`
	ChangeRequestID *string            `json:"changeRequestId,omitempty"`
	Priority        int                `json:"priority"`
	SLADueAt        *time.Time         `json:"slaDueAt,omitempty"`
	AssignedTo      *string            `json:"assignedTo,omitempty"`
	Status          string             `json:"status"`
	Checkin         *checkinResponse   `json:"checkin,omitempty"`
	Evidence        []evidenceResponse `json:"evidence,omitempty"`
	Review          *reviewResponse    `json:"review,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

func taskToResponse(task *verification.Task) *taskResponse {
	if task == nil {
		return nil
	}
	resp := &taskResponse{
		ID:              task.ID,
		StationID:       task.StationID,
		ChangeRequestID: task.ChangeRequestID,
		Priority:        task.Priority,
		SLADueAt:        task.SLADueAt,
		AssignedTo:      task.AssignedTo,
		Status:          string(task.Status),
		CreatedAt:       task.CreatedAt,
	}
	if task.Checkin != nil {
		resp.Checkin = &checkinResponse{
			Lat:         task.Checkin.Lat,
			Lng:         task.Checkin.Lng,
			CheckedInAt: task.Checkin.CheckedInAt,
			DistanceM:   task.Checkin.DistanceM,
			DeviceNote:  task.Checkin.DeviceNote,
		}
	}
	for _, ev := range task.Evidence {
		resp.Evidence = append(resp.Evidence, evidenceResponse{
			ID:             ev.ID,
			PhotoObjectKey: ev.PhotoObjectKey,
			Note:           ev.Note,
			SubmittedAt:    ev.SubmittedAt,
			SubmittedBy:    ev.SubmittedBy,
		})
	}
	if task.Review != nil {
		resp.Review = &reviewResponse{
			Result:     string(task.Review.Result),
			AdminNote:  task.Review.AdminNote,
			ReviewedAt: task.Review.ReviewedAt,
			ReviewedBy: task.Review.ReviewedBy,
		}
	}
	return resp
}
