package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Version is the metadata of one trained model. At most one row is active;
// the partial unique index backs the promote transaction.
type Version struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Version             string         `gorm:"column:version;not null;uniqueIndex" json:"version"`
	BaseModel           string         `gorm:"column:base_model" json:"base_model"`
	ArtifactURI         string         `gorm:"column:artifact_uri" json:"artifact_uri"`
	TrainingDataCount   int            `gorm:"column:training_data_count;not null;default:0" json:"training_data_count"`
	ValidationDataCount int            `gorm:"column:validation_data_count;not null;default:0" json:"validation_data_count"`
	PerformanceMetrics  datatypes.JSON `gorm:"column:performance_metrics" json:"performance_metrics"`
	IsActive            bool           `gorm:"column:is_active;not null;default:false;index:idx_model_version_single_active,unique,where:is_active" json:"is_active"`
	CreatedAt           time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (Version) TableName() string { return "model_version" }

func (v *Version) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Metrics decodes PerformanceMetrics. An empty column decodes to an empty map.
func (v *Version) Metrics() (map[string]float64, error) {
	out := map[string]float64{}
	if v == nil || len(v.PerformanceMetrics) == 0 || string(v.PerformanceMetrics) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(v.PerformanceMetrics, &out); err != nil {
		return nil, fmt.Errorf("decode performance_metrics: %w", err)
	}
	return out, nil
}

// EncodeMetrics serialises a metrics map. JSON has no NaN/Inf, so those are rejected.
func EncodeMetrics(m map[string]float64) (datatypes.JSON, error) {
	if m == nil {
		m = map[string]float64{}
	}
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("metric %q is not finite", k)
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
