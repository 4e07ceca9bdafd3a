package data

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viewer-gg/costream/src/costream/types"
	"gorm.io/gorm"
)

// Store wraps the relational schema behind the narrow query surface the
// poller and approval workflow consume.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the tables this core owns.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&types.Setting{},
		&types.Organization{},
		&types.Tournament{},
		&types.Application{},
		&types.LiveStream{},
		&types.ViewershipSnapshot{},
		&types.DiscordConfig{},
		&types.DiscordRoleLog{},
	)
}

func (s *Store) ActiveTournaments(ctx context.Context) ([]types.Tournament, error) {
	var tournaments []types.Tournament
	err := s.db.WithContext(ctx).
		Where("status = ?", types.TournamentActive).
		Find(&tournaments).Error
	return tournaments, err
}

func (s *Store) ApprovedApplications(ctx context.Context, tournamentID string) ([]types.Application, error) {
	var apps []types.Application
	err := s.db.WithContext(ctx).
		Where("tournament_id = ? AND status = ?", tournamentID, types.ApplicationApproved).
		Find(&apps).Error
	return apps, err
}

// LiveStream returns the record for one (application, tournament) pair, or
// nil when none exists yet.
func (s *Store) LiveStream(ctx context.Context, applicationID, tournamentID string) (*types.LiveStream, error) {
	var rec types.LiveStream
	err := s.db.WithContext(ctx).
		Where("application_id = ? AND tournament_id = ?", applicationID, tournamentID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) SaveLiveStream(ctx context.Context, rec *types.LiveStream) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

// LiveStreamsForTournament returns only the currently-live records.
func (s *Store) LiveStreamsForTournament(ctx context.Context, tournamentID string) ([]types.LiveStream, error) {
	var recs []types.LiveStream
	err := s.db.WithContext(ctx).
		Where("tournament_id = ? AND is_live = ?", tournamentID, true).
		Find(&recs).Error
	return recs, err
}

func (s *Store) InsertSnapshot(ctx context.Context, snap *types.ViewershipSnapshot) error {
	return s.db.WithContext(ctx).Create(snap).Error
}

// Application loads an application together with its tournament and owning
// organization.
func (s *Store) Application(ctx context.Context, id string) (*types.Application, error) {
	var app types.Application
	err := s.db.WithContext(ctx).
		Preload("Tournament").
		Preload("Tournament.Organization").
		First(&app, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// DiscordConfig returns the connected role-assignment config for an
// organization, or nil when the integration is not set up.
func (s *Store) DiscordConfig(ctx context.Context, organizationID string) (*types.DiscordConfig, error) {
	var cfg types.DiscordConfig
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND is_connected = ?", organizationID, true).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveDiscordConfig upserts an organization's Discord integration. One row
// per organization; reconnecting replaces the stored guild.
func (s *Store) SaveDiscordConfig(ctx context.Context, cfg *types.DiscordConfig) error {
	var existing types.DiscordConfig
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", cfg.OrganizationID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if cfg.ID == "" {
			cfg.ID = uuid.NewString()
		}
		return s.db.WithContext(ctx).Create(cfg).Error
	}
	if err != nil {
		return err
	}

	cfg.ID = existing.ID
	cfg.CreatedAt = existing.CreatedAt
	return s.db.WithContext(ctx).Save(cfg).Error
}

// AppendApplicationNote appends one line to the application's review
// notes. CONCAT(NULLIF(...), '\n') yields NULL when notes are empty, so
// the first note is written without a leading separator.
func (s *Store) AppendApplicationNote(ctx context.Context, applicationID, note string) error {
	return s.db.WithContext(ctx).
		Model(&types.Application{}).
		Where("id = ?", applicationID).
		Update("notes", gorm.Expr("CONCAT(COALESCE(CONCAT(NULLIF(notes, ''), ?), ''), ?)", "\n", note)).Error
}

func (s *Store) InsertRoleLog(ctx context.Context, entry *types.DiscordRoleLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// RecentRoleLogs returns the newest audit entries for one tournament.
func (s *Store) RecentRoleLogs(ctx context.Context, tournamentID string, limit int) ([]types.DiscordRoleLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []types.DiscordRoleLog
	err := s.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
