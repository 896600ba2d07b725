package waitlist

import (
	"encoding/json"

	"github.com/akeren/snipit-waitlist/internal/models"
	"github.com/akeren/snipit-waitlist/internal/store"
	"github.com/akeren/snipit-waitlist/pkg/constants"
)

type JoinWaitlistRequest struct {
	Email    string         `json:"email" binding:"required,max=255"`
	Source   string         `json:"source" binding:"omitempty,max=64"`
	Metadata map[string]any `json:"metadata" binding:"omitempty"`
}

type JoinWaitlistResponse struct {
	Email   string `json:"email"`
	Backend string `json:"backend,omitempty"`
}

type WaitlistSnapshotResponse struct {
	Count       int      `json:"count"`
	LastUpdated string   `json:"lastUpdated"`
	Emails      []string `json:"emails"`
}

// ========================================
// Mappers
// ========================================

func ToWaitlistEntryModel(req *JoinWaitlistRequest, defaultSource string) *models.WaitlistEntry {
	if req == nil {
		return nil
	}

	source := req.Source
	if source == "" {
		source = defaultSource
	}

	metadata := ""
	if len(req.Metadata) > 0 {
		if encoded, err := json.Marshal(req.Metadata); err == nil {
			metadata = string(encoded)
		}
	}

	return &models.WaitlistEntry{
		Email:    models.NormalizeEmail(req.Email),
		Source:   source,
		Metadata: metadata,
	}
}

func ToWaitlistSnapshotResponse(snapshot *store.Snapshot) WaitlistSnapshotResponse {
	if snapshot == nil {
		return WaitlistSnapshotResponse{Emails: []string{}}
	}

	lastUpdated := ""
	if !snapshot.LastUpdated.IsZero() {
		lastUpdated = snapshot.LastUpdated.Format(constants.RFC3339DateTimeFormat)
	}

	return WaitlistSnapshotResponse{
		Count:       snapshot.Count,
		LastUpdated: lastUpdated,
		Emails:      snapshot.Emails,
	}
}
