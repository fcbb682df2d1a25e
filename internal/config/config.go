package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"billscan/internal/extract"
	"billscan/internal/logger"
	"billscan/pkg/models"
)

// Config is the process-level configuration loaded from the environment.
// Extraction thresholds have working defaults; only the cloud settings
// needed by the selected OCR engine are validated at use time.
type Config struct {
	// OpenAI Configuration (optional, page classification only)
	OpenAIAPIKey string
	OpenAIModel  string

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Extraction thresholds
	MinOCRConfidence        float64
	LowConfidenceThreshold  float64
	MinReadableConfidence   float64
	YCoordinateTolerance    float64
	MinColumnGap            float64
	ArithmeticTolerance     float64
	TotalTolerance          float64
	TotalRelativeTolerance  float64
	FontHeightVariance      float64
	BBoxAreaVariance        float64
	Currency                string
	PageLabels              string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:                getEnv("OPENAI_MODEL", ""),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", getEnv("GOOGLE_PROJECT_ID", "")),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		MinOCRConfidence:           getEnvFloat("MIN_OCR_CONFIDENCE", 0.60),
		LowConfidenceThreshold:     getEnvFloat("LOW_CONFIDENCE_THRESHOLD", 0.70),
		MinReadableConfidence:      getEnvFloat("MIN_READABLE_CONFIDENCE", 0.30),
		YCoordinateTolerance:       getEnvFloat("Y_COORDINATE_TOLERANCE", 5.0),
		MinColumnGap:               getEnvFloat("MIN_COLUMN_GAP", 20.0),
		ArithmeticTolerance:        getEnvFloat("ARITHMETIC_TOLERANCE_PERCENT", 3.0),
		TotalTolerance:             getEnvFloat("TOTAL_TOLERANCE", 5.0),
		TotalRelativeTolerance:     getEnvFloat("TOTAL_RELATIVE_TOLERANCE_PERCENT", 0.5),
		FontHeightVariance:         getEnvFloat("FONT_HEIGHT_VARIANCE", 2.0),
		BBoxAreaVariance:           getEnvFloat("BBOX_AREA_VARIANCE", 3.0),
		Currency:                   getEnv("CURRENCY", "INR"),
		PageLabels:                 getEnv("PAGE_LABELS", ""),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.MinOCRConfidence < 0 || c.MinOCRConfidence > 1 {
		return fmt.Errorf("MIN_OCR_CONFIDENCE must be in [0, 1], got %v", c.MinOCRConfidence)
	}
	if c.MinReadableConfidence < 0 || c.MinReadableConfidence > 1 {
		return fmt.Errorf("MIN_READABLE_CONFIDENCE must be in [0, 1], got %v", c.MinReadableConfidence)
	}
	if c.YCoordinateTolerance <= 0 {
		return fmt.Errorf("Y_COORDINATE_TOLERANCE must be positive, got %v", c.YCoordinateTolerance)
	}
	if c.MinColumnGap <= 0 {
		return fmt.Errorf("MIN_COLUMN_GAP must be positive, got %v", c.MinColumnGap)
	}
	if _, err := parsePageLabels(c.PageLabels); err != nil {
		return err
	}
	return nil
}

// ExtractionConfig maps the env settings onto the extraction core's
// config, starting from its defaults.
func (c *Config) ExtractionConfig() extract.Config {
	cfg := extract.DefaultConfig()
	cfg.MinOCRConfidence = c.MinOCRConfidence
	cfg.LowConfidenceThreshold = c.LowConfidenceThreshold
	cfg.MinReadableConfidence = c.MinReadableConfidence
	cfg.YCoordinateTolerance = c.YCoordinateTolerance
	cfg.MinColumnGap = c.MinColumnGap
	cfg.ArithmeticTolerancePercent = c.ArithmeticTolerance
	cfg.TotalReconciliationTolerance = c.TotalTolerance
	cfg.TotalReconciliationRelativePercent = c.TotalRelativeTolerance
	cfg.FontHeightVarianceThreshold = c.FontHeightVariance
	cfg.BBoxAreaVarianceThreshold = c.BBoxAreaVariance
	cfg.Currency = c.Currency
	if labels, err := parsePageLabels(c.PageLabels); err == nil && len(labels) > 0 {
		cfg.PageLabels = labels
	}
	return cfg
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// parsePageLabels parses "1=Bill Detail,3=Pharmacy" style overrides.
func parsePageLabels(s string) (map[int]models.PageType, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	labels := make(map[int]models.PageType)
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("PAGE_LABELS entry %q is not page=label", pair)
		}
		page, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || page <= 0 {
			return nil, fmt.Errorf("PAGE_LABELS entry %q has invalid page number", pair)
		}
		label := models.PageType(strings.TrimSpace(parts[1]))
		switch label {
		case models.PageBillDetail, models.PageFinalBill, models.PagePharmacy:
			labels[page] = label
		default:
			return nil, fmt.Errorf("PAGE_LABELS entry %q has unknown label", pair)
		}
	}
	return labels, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
