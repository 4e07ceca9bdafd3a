package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Tournament lifecycle statuses. Only active tournaments are polled.
const (
	TournamentDraft     = "draft"
	TournamentActive    = "active"
	TournamentCompleted = "completed"
	TournamentArchived  = "archived"
)

// Application statuses.
const (
	ApplicationPending  = "Pending"
	ApplicationApproved = "Approved"
	ApplicationRejected = "Rejected"
)

// Organizations
type Organization struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:128;not null"`
	OwnerID   string `gorm:"size:36;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tournaments
type Tournament struct {
	ID             string `gorm:"primaryKey;size:36"`
	OrganizationID string `gorm:"size:36;index;not null"`
	Title          string `gorm:"size:255;not null"`
	Status         string `gorm:"size:16;index;default:'draft'"`
	StartDate      *time.Time
	EndDate        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Organization Organization `gorm:"foreignKey:OrganizationID"`
}

// JSONMap stores a free-form JSON object column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("jsonmap: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// String returns the string stored under key, or "" when absent or not a string.
func (m JSONMap) String(key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// Applications represent one streamer's submission to one tournament.
type Application struct {
	ID           string `gorm:"primaryKey;size:36"`
	TournamentID string `gorm:"size:36;index;not null"`
	Status       string `gorm:"size:16;index;default:'Pending'"`
	StreamerName string `gorm:"size:128"`
	Platform     string `gorm:"size:32"`
	ChannelURL   string `gorm:"size:512"`
	// Free-form answers from the application form. Holds the streamer's
	// Discord user id when the organizer collects one.
	CustomData  JSONMap `gorm:"type:json"`
	Notes       string  `gorm:"type:text"`
	ReviewedBy  string  `gorm:"size:36"`
	ReviewedAt  *time.Time
	SubmittedAt time.Time
	UpdatedAt   time.Time

	Tournament Tournament `gorm:"foreignKey:TournamentID"`
}

// LiveStream is the most recently known streaming state for one
// (application, tournament) pair. Created on the first observed live
// transition, mutated in place while live, and closed on the first observed
// offline transition. Never deleted by the poller.
type LiveStream struct {
	ID             string `gorm:"primaryKey;size:36"`
	ApplicationID  string `gorm:"size:36;index:idx_live_app_tournament;not null"`
	TournamentID   string `gorm:"size:36;index:idx_live_app_tournament;not null"`
	Platform       string `gorm:"size:32"`
	StreamerName   string `gorm:"size:128"`
	Game           string `gorm:"size:128"`
	Title          string `gorm:"size:255"`
	StreamURL      string `gorm:"size:512"`
	Language       string `gorm:"size:16"`
	IsLive         bool   `gorm:"index"`
	CurrentViewers int
	PeakViewers    int
	AverageViewers int
	StreamStart    *time.Time
	StreamEnd      *time.Time
	UpdatedAt      time.Time
}

// ViewershipSnapshot is immutable: one row per tournament per collection
// pass, holding the summed live viewers at that instant.
type ViewershipSnapshot struct {
	ID            string `gorm:"primaryKey;size:36"`
	TournamentID  string `gorm:"size:36;index;not null"`
	ViewerCount   int
	StreamerCount int
	Timestamp     time.Time `gorm:"index"`
}

// DiscordConfig holds one organization's role-assignment settings. Written
// by the organizer settings flow, read-only for the approval workflow.
type DiscordConfig struct {
	ID             string `gorm:"primaryKey;size:36"`
	OrganizationID string `gorm:"size:36;uniqueIndex;not null"`
	GuildID        string `gorm:"size:64;not null"`
	GuildName      string `gorm:"size:128"`
	RoleName       string `gorm:"size:128"`
	RoleID         string `gorm:"size:64"`
	IsConnected    bool   `gorm:"default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DiscordRoleLog is the append-only audit trail of attempted role
// assignments, written regardless of outcome.
type DiscordRoleLog struct {
	ID            string `gorm:"primaryKey;size:36"`
	ApplicationID string `gorm:"size:36;index"`
	TournamentID  string `gorm:"size:36;index"`
	GuildID       string `gorm:"size:64"`
	DiscordUserID string `gorm:"size:64"`
	Action        string `gorm:"size:32"` // role_assigned, role_assignment_failed, invalid_user_id
	Success       bool
	Detail        string `gorm:"type:text"`
	CreatedAt     time.Time
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}
