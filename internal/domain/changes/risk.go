package changes

import (
	"fmt"
	"strings"

	"github.com/voltgrid/server/internal/config"
	"github.com/voltgrid/server/internal/domain/geo"
	"github.com/voltgrid/server/internal/domain/stations"
)

// RiskAssessment is the frozen output of scoring a proposed version. It
// is computed once at submission and stored on the change request.
type RiskAssessment struct {
	Score   int
	Reasons []string
}

// HighRisk reports whether the score meets the verification threshold.
func (a RiskAssessment) HighRisk(threshold int) bool {
	return a.Score >= threshold
}

// Scorer computes deterministic risk scores for proposed station
// versions. No I/O: the same inputs always yield the same score and
// reason list.
type Scorer struct {
	weights       config.RiskWeights
	gpsThresholdM float64
}

func NewScorer(cfg config.WorkflowConfig) *Scorer {
	return &Scorer{
		weights:       cfg.Risk,
		gpsThresholdM: cfg.GPSChangeThresholdM,
	}
}

// Score evaluates the proposed fields against the station's published
// version. prior is nil for CREATE requests, which skip every diff rule
// but carry the new-station baseline. Reasons follow rule order so the
// output is stable.
func (s *Scorer) Score(proposed stations.VersionFields, prior *stations.StationVersion) RiskAssessment {
	var (
		score   int
		reasons []string
	)

	add := func(weight int, reason string) {
		score += weight
		reasons = append(reasons, reason)
	}

	if prior == nil {
		add(s.weights.NewStation, "new station without verification history")
	} else {
		if d := geo.Haversine(prior.Lat, prior.Lng, proposed.Lat, proposed.Lng); d > s.gpsThresholdM {
			add(s.weights.GPSChanged, fmt.Sprintf("location moved %.0fm (threshold %.0fm)", d, s.gpsThresholdM))
		}
		if portsReduced(prior.Services, proposed.Services) {
			add(s.weights.PortsReduced, "charging capacity reduced")
		}
		if normalizeHours(prior.OperatingHours) != normalizeHours(proposed.OperatingHours) {
			add(s.weights.HoursChanged, "operating hours changed")
		}
		if prior.Visibility != proposed.Visibility || prior.PublicStatus != proposed.PublicStatus {
			add(s.weights.AccessChange, fmt.Sprintf("access changed from %s/%s to %s/%s",
				prior.Visibility, prior.PublicStatus, proposed.Visibility, proposed.PublicStatus))
		}
	}

	if score > 100 {
		score = 100
	}
	return RiskAssessment{Score: score, Reasons: reasons}
}

// portsReduced reports whether any port group lost count or power. The
// comparison is by power type per service: dropping a power type, cutting
// its total port count, or lowering its maximum rating all count as a
// reduction. Additions never do.
func portsReduced(prior, proposed []stations.StationService) bool {
	priorCaps := portCapacity(prior)
	proposedCaps := portCapacity(proposed)
	for key, priorCap := range priorCaps {
		proposedCap, ok := proposedCaps[key]
		if !ok {
			return true
		}
		if proposedCap.count < priorCap.count || proposedCap.maxKW < priorCap.maxKW {
			return true
		}
	}
	return false
}

type capacity struct {
	count int
	maxKW float64
}

func portCapacity(services []stations.StationService) map[string]capacity {
	caps := make(map[string]capacity)
	for _, svc := range services {
		for _, port := range svc.Ports {
			key := string(svc.Type) + "/" + string(port.PowerType)
			c := caps[key]
			c.count += port.Count
			if port.PowerKW > c.maxKW {
				c.maxKW = port.PowerKW
			}
			caps[key] = c
		}
	}
	return caps
}

func normalizeHours(hours string) string {
	return strings.ToLower(strings.Join(strings.Fields(hours), " "))
}
