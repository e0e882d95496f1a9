package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Logging     LoggingConfig
	Workflow    WorkflowConfig
	Jobs        JobsConfig
	Environment string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdle        int
}

type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
	Issuer    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// WorkflowConfig holds the tunables of the change-and-verification pipeline.
// Defaults mirror production values; none of them are hard requirements.
type WorkflowConfig struct {
	// HighRiskThreshold is the risk score at or above which a change request
	// requires field verification before it can be approved.
	HighRiskThreshold int
	// GPSChangeThresholdM is the coordinate drift in meters beyond which a
	// proposed version counts as having moved the station.
	GPSChangeThresholdM float64
	// CheckinRadiusM is the geofence radius in meters for task check-ins.
	CheckinRadiusM int
	// TrustLookbackDays is the trailing window for verification and
	// high-risk signals feeding the trust score.
	TrustLookbackDays int
	// DefaultTaskPriority is used for ad-hoc verification tasks.
	DefaultTaskPriority int

	Risk  RiskWeights
	Trust TrustWeights
}

// RiskWeights are the per-rule contributions to the risk score.
type RiskWeights struct {
	GPSChanged   int
	PortsReduced int
	HoursChanged int
	AccessChange int
	NewStation   int
}

// TrustWeights are the per-signal contributions to the station trust
// score. Penalty values are negative.
type TrustWeights struct {
	Base                int
	VerificationBonus   int
	VerificationPenalty int
	// IssuePenalty is applied per unresolved issue down to the
	// MaxIssuesPenalty floor.
	IssuePenalty     int
	MaxIssuesPenalty int
	HighRiskPenalty  int
}

type JobsConfig struct {
	SLAScanInterval      time.Duration
	TrustRefreshInterval time.Duration
	Workers              int
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MaxIdle:        getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			Issuer:    getEnv("JWT_ISSUER", "voltgrid"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Workflow: DefaultWorkflow(),
		Jobs: JobsConfig{
			SLAScanInterval:      time.Duration(getEnvInt("JOB_SLA_SCAN_MINUTES", 15)) * time.Minute,
			TrustRefreshInterval: time.Duration(getEnvInt("JOB_TRUST_REFRESH_MINUTES", 60)) * time.Minute,
			Workers:              getEnvInt("JOB_WORKERS", 10),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	cfg.Workflow.HighRiskThreshold = getEnvInt("RISK_HIGH_THRESHOLD", cfg.Workflow.HighRiskThreshold)
	cfg.Workflow.GPSChangeThresholdM = float64(getEnvInt("RISK_GPS_THRESHOLD_M", int(cfg.Workflow.GPSChangeThresholdM)))
	cfg.Workflow.CheckinRadiusM = getEnvInt("CHECKIN_RADIUS_M", cfg.Workflow.CheckinRadiusM)
	cfg.Workflow.TrustLookbackDays = getEnvInt("TRUST_LOOKBACK_DAYS", cfg.Workflow.TrustLookbackDays)

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// DefaultWorkflow returns the workflow tunables with production defaults.
func DefaultWorkflow() WorkflowConfig {
	return WorkflowConfig{
		HighRiskThreshold:   50,
		GPSChangeThresholdM: 100,
		CheckinRadiusM:      200,
		TrustLookbackDays:   30,
		DefaultTaskPriority: 3,
		Risk: RiskWeights{
			GPSChanged:   50,
			PortsReduced: 30,
			HoursChanged: 10,
			AccessChange: 10,
			NewStation:   10,
		},
		Trust: TrustWeights{
			Base:                50,
			VerificationBonus:   20,
			VerificationPenalty: -20,
			IssuePenalty:        -5,
			MaxIssuesPenalty:    -30,
			HighRiskPenalty:     -10,
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
