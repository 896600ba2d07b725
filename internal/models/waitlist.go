package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Signup capture paths
const (
	WaitlistSourceAPI       = "api"
	WaitlistSourceLegacyAPI = "legacy-api"
	WaitlistSourceReconcile = "reconcile"
)

// WaitlistEntry is the remote-store row for a single signup. Entries are
// immutable once created; there is no update or delete path.
type WaitlistEntry struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Email     string    `gorm:"not null;uniqueIndex" json:"email"`
	Source    string    `gorm:"not null;default:api" json:"source"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (e *WaitlistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address so
// every backend compares signups identically.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// WaitlistDocument is the on-disk JSON envelope used by the filesystem
// backends: the full email list in insertion order plus an advisory
// last-updated marker.
type WaitlistDocument struct {
	Emails      []string  `json:"emails"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func NewWaitlistDocument() *WaitlistDocument {
	return &WaitlistDocument{Emails: []string{}}
}

func (d *WaitlistDocument) Contains(email string) bool {
	for _, existing := range d.Emails {
		if existing == email {
			return true
		}
	}
	return false
}

func (d *WaitlistDocument) Append(email string, now time.Time) {
	d.Emails = append(d.Emails, email)
	d.LastUpdated = now
}
