package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

// Config holds all settings, populated from environment variables.
type Config struct {
	CatalogURL     string
	CatalogTimeout time.Duration

	Tolerances      domain.Tolerances
	Workers         int
	ProgressEvery   int
	MalformedPolicy domain.MalformedPolicy
	ProfilePath     string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka publishing of collated events; off without brokers.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool

	// Aggregated product storage. S3 is used when a bucket is set, local
	// directories otherwise.
	S3Bucket    string
	S3Prefix    string
	AWSRegion   string
	S3Timeout   time.Duration
	ProductGzip bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	catalogTimeout, err := parsePositiveDuration("CATALOG_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	s3Timeout, err := parsePositiveDuration("S3_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	tol, err := parseTolerances()
	if err != nil {
		return nil, err
	}

	profilePath := os.Getenv("COLLATE_PROFILE")
	if profilePath != "" {
		profile, err := LoadProfile(profilePath)
		if err != nil {
			return nil, err
		}
		tol = profile.Apply(tol)
	}
	if err := tol.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collation tolerances: %w", err)
	}

	workers, err := parsePositiveInt("COLLATE_WORKERS", 1)
	if err != nil {
		return nil, err
	}
	progressEvery, err := parsePositiveInt("COLLATE_PROGRESS_EVERY", domain.DefaultProgressEvery)
	if err != nil {
		return nil, err
	}

	policy, err := domain.ParseMalformedPolicy(sharedcfg.EnvOrDefault("COLLATE_MALFORMED_POLICY", string(domain.PolicyFailFast)))
	if err != nil {
		return nil, fmt.Errorf("invalid COLLATE_MALFORMED_POLICY: %w", err)
	}

	productGzip, err := strconv.ParseBool(sharedcfg.EnvOrDefault("PRODUCT_GZIP", "false"))
	if err != nil {
		return nil, errors.New("invalid PRODUCT_GZIP")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		CatalogURL:     sharedcfg.EnvOrDefault("CATALOG_URL", "https://earthquake.usgs.gov/fdsnws/event/1/query"),
		CatalogTimeout: catalogTimeout,

		Tolerances:      tol,
		Workers:         workers,
		ProgressEvery:   progressEvery,
		MalformedPolicy: policy,
		ProfilePath:     profilePath,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "dyfi-collated-events"),
		KafkaEnabled: len(brokers) > 0,

		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Prefix:    strings.Trim(sharedcfg.EnvOrDefault("S3_PREFIX", "aggregated"), "/"),
		AWSRegion:   sharedcfg.EnvOrDefault("AWS_REGION", "us-west-2"),
		S3Timeout:   s3Timeout,
		ProductGzip: productGzip,
	}

	if !strings.HasPrefix(cfg.CatalogURL, "http://") && !strings.HasPrefix(cfg.CatalogURL, "https://") {
		return nil, errors.New("CATALOG_URL must be an http(s) URL")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// S3Enabled reports whether aggregated products go to S3.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

func parseTolerances() (domain.Tolerances, error) {
	tol := domain.DefaultTolerances()

	mag, err := parseNonNegativeFloat("COLLATE_MAG_TOLERANCE", tol.Magnitude)
	if err != nil {
		return tol, err
	}
	dist, err := parseNonNegativeFloat("COLLATE_DIST_TOLERANCE_KM", tol.DistanceKm)
	if err != nil {
		return tol, err
	}
	timeTol, err := parseNonNegativeDuration("COLLATE_TIME_TOLERANCE", tol.Time)
	if err != nil {
		return tol, err
	}
	nearMiss, err := parseNonNegativeDuration("COLLATE_NEAR_MISS", tol.NearMiss)
	if err != nil {
		return tol, err
	}

	tol.Magnitude = mag
	tol.DistanceKm = dist
	tol.Time = timeTol
	tol.NearMiss = nearMiss
	return tol, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
