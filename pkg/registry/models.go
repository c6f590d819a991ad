// Package registry persists connection profiles and backup artifacts.
package registry

import (
	"time"

	"github.com/supporttools/GoDBVault/pkg/dbtypes"
	"github.com/supporttools/GoDBVault/pkg/security"
)

// ConnectionProfile represents a stored database connection. The password
// column holds ciphertext; Details is how plaintext leaves this package.
type ConnectionProfile struct {
	ID           string    `gorm:"primaryKey;type:varchar(255)"`
	Name         string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Engine       string    `gorm:"type:varchar(50);not null"`
	Host         string    `gorm:"type:varchar(255);not null"`
	Port         int       `gorm:"not null"`
	DatabaseName string    `gorm:"column:database_name;type:varchar(255)"`
	Username     string    `gorm:"type:varchar(255)"`
	Password     string    `gorm:"type:varchar(1024)"`
	AuthSource   string    `gorm:"type:varchar(255)"`
	Category     string    `gorm:"type:varchar(100)"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName specifies the table name for the ConnectionProfile model
func (ConnectionProfile) TableName() string {
	return "connection_profiles"
}

// Details returns plaintext connection details for this profile. The
// decrypted password lives only in the returned value, never in the model.
func (p *ConnectionProfile) Details() dbtypes.ConnectionDetails {
	return dbtypes.ConnectionDetails{
		Engine:       dbtypes.EngineType(p.Engine),
		Host:         p.Host,
		Port:         p.Port,
		DatabaseName: p.DatabaseName,
		Username:     p.Username,
		Password:     security.DecryptPassword(p.Password),
		AuthSource:   p.AuthSource,
	}
}

// Artifact represents one stored backup file. Records are immutable once
// written and removed only by explicit delete requests.
type Artifact struct {
	ID           string    `gorm:"primaryKey;type:varchar(255)"`
	Name         string    `gorm:"type:varchar(512);not null;uniqueIndex"`
	Engine       string    `gorm:"type:varchar(50);not null;index"`
	DatabaseName string    `gorm:"column:database_name;type:varchar(255);index"`
	Size         int64     `gorm:"not null;default:0"`
	Storage      string    `gorm:"type:varchar(50);not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
}

// TableName specifies the table name for the Artifact model
func (Artifact) TableName() string {
	return "artifacts"
}
