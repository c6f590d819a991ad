package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supporttools/GoDBVault/pkg/security"
)

// ProfileRepository handles database operations for connection profiles
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository instance
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// List retrieves all connection profiles ordered by name
func (r *ProfileRepository) List() ([]ConnectionProfile, error) {
	var profiles []ConnectionProfile

	err := r.db.Order("name").Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles: %w", err)
	}

	return profiles, nil
}

// GetByID retrieves a connection profile by ID
func (r *ProfileRepository) GetByID(id string) (*ConnectionProfile, error) {
	var profile ConnectionProfile

	err := r.db.Where("id = ?", id).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

// GetByName retrieves a connection profile by its unique name
func (r *ProfileRepository) GetByName(name string) (*ConnectionProfile, error) {
	var profile ConnectionProfile

	err := r.db.Where("name = ?", name).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile not found: %s", name)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

// Create stores a new connection profile. The password arrives in plaintext
// and is encrypted before it touches the database.
func (r *ProfileRepository) Create(profile *ConnectionProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.Category == "" {
		profile.Category = "development"
	}

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	encrypted, err := security.EncryptPassword(profile.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	profile.Password = encrypted

	if err := r.db.Create(profile).Error; err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// Update rewrites an existing profile. An empty password keeps the stored
// credential; a non-empty one is encrypted and replaces it.
func (r *ProfileRepository) Update(profile *ConnectionProfile) error {
	existing, err := r.GetByID(profile.ID)
	if err != nil {
		return err
	}

	if profile.Password == "" {
		profile.Password = existing.Password
	} else {
		encrypted, err := security.EncryptPassword(profile.Password)
		if err != nil {
			return fmt.Errorf("failed to encrypt password: %w", err)
		}
		profile.Password = encrypted
	}

	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = time.Now()

	if err := r.db.Save(profile).Error; err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return nil
}

// Delete removes a profile by ID
func (r *ProfileRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&ConnectionProfile{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}

	return nil
}
