package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ArtifactRepository handles database operations for backup artifacts
type ArtifactRepository struct {
	db *gorm.DB
}

// NewArtifactRepository creates a new ArtifactRepository instance
func NewArtifactRepository(db *gorm.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Create records a new artifact
func (r *ArtifactRepository) Create(artifact *Artifact) error {
	if artifact.ID == "" {
		artifact.ID = uuid.New().String()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}

	if err := r.db.Create(artifact).Error; err != nil {
		return fmt.Errorf("failed to create artifact record: %w", err)
	}

	return nil
}

// List retrieves all artifacts, newest first
func (r *ArtifactRepository) List() ([]Artifact, error) {
	var artifacts []Artifact

	err := r.db.Order("created_at DESC").Find(&artifacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get artifacts: %w", err)
	}

	return artifacts, nil
}

// GetByName retrieves an artifact by its unique name
func (r *ArtifactRepository) GetByName(name string) (*Artifact, error) {
	var artifact Artifact

	err := r.db.Where("name = ?", name).First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("artifact not found: %s", name)
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	return &artifact, nil
}

// Delete removes an artifact record by name
func (r *ArtifactRepository) Delete(name string) error {
	result := r.db.Where("name = ?", name).Delete(&Artifact{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete artifact record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("artifact not found: %s", name)
	}

	return nil
}
