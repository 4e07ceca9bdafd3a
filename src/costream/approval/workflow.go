package approval

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/viewer-gg/costream/src/costream/discord"
	"github.com/viewer-gg/costream/src/costream/types"
)

// Audit actions recorded in discord_role_logs.
const (
	ActionRoleAssigned     = "role_assigned"
	ActionAssignmentFailed = "role_assignment_failed"
	ActionInvalidUserID    = "invalid_user_id"
)

// customDataKeys are checked in order when extracting the streamer's
// Discord user id from the application form. Older forms stored the
// camelCase variant.
var customDataKeys = []string{"discord_user_id", "discordUserId"}

// Store is the persistence surface the approval side effects need.
type Store interface {
	Application(ctx context.Context, id string) (*types.Application, error)
	DiscordConfig(ctx context.Context, organizationID string) (*types.DiscordConfig, error)
	AppendApplicationNote(ctx context.Context, applicationID, note string) error
	InsertRoleLog(ctx context.Context, entry *types.DiscordRoleLog) error
}

// RoleAssigner is the role directory surface; satisfied by
// *discord.RoleService.
type RoleAssigner interface {
	FindOrCreateRole(guildID string) (discord.Role, error)
	AssignRoleToMember(guildID, userID, roleID string) discord.AssignResult
}

// Workflow runs the Discord side effects of an application approval. The
// approval itself is decided and persisted elsewhere; nothing here may undo
// or block it, so every integration failure degrades to a log line and an
// audit row.
type Workflow struct {
	store     Store
	roles     RoleAssigner
	sanitizer *bluemonday.Policy
}

func NewWorkflow(store Store, roles RoleAssigner) *Workflow {
	return &Workflow{
		store:     store,
		roles:     roles,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// HandleApproved assigns the approved co-streamer role for one freshly
// approved application. Returns an error only when the application itself
// cannot be loaded; every Discord-side condition is absorbed and audited.
func (w *Workflow) HandleApproved(ctx context.Context, applicationID string) error {
	app, err := w.store.Application(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("load application %s: %w", applicationID, err)
	}
	if app == nil {
		return fmt.Errorf("application %s not found", applicationID)
	}
	if app.Status != types.ApplicationApproved {
		log.Printf("[approval] application %s is %q, skipping role assignment", app.ID, app.Status)
		return nil
	}

	userID := extractDiscordUserID(app.CustomData)
	if userID == "" {
		// Streamer never supplied a Discord id; nothing to assign.
		log.Printf("[approval] application %s has no discord user id", app.ID)
		return nil
	}

	if !discord.IsValidSnowflake(userID) {
		w.recordInvalidUserID(ctx, app, userID)
		return nil
	}

	cfg, err := w.store.DiscordConfig(ctx, app.Tournament.OrganizationID)
	if err != nil {
		log.Printf("[approval] load discord config for org %s: %v", app.Tournament.OrganizationID, err)
		return nil
	}
	if cfg == nil {
		// Organizer never connected Discord; approval stands on its own.
		log.Printf("[approval] org %s has no connected discord config", app.Tournament.OrganizationID)
		return nil
	}

	roleID := cfg.RoleID
	if !discord.IsValidSnowflake(roleID) {
		role, err := w.roles.FindOrCreateRole(cfg.GuildID)
		if err != nil {
			log.Printf("[approval] find or create role in guild %s: %v", cfg.GuildID, err)
			w.audit(ctx, app, cfg.GuildID, userID, ActionAssignmentFailed, false,
				fmt.Sprintf("could not resolve role: %v", err))
			return nil
		}
		roleID = role.ID
	}

	res := w.roles.AssignRoleToMember(cfg.GuildID, userID, roleID)

	action := ActionRoleAssigned
	if !res.Success {
		action = ActionAssignmentFailed
	}
	w.audit(ctx, app, cfg.GuildID, userID, action, res.Success, res.Message)

	if res.Success {
		log.Printf("[approval] application %s: %s", app.ID, res.Message)
	} else {
		log.Printf("[approval] application %s: role assignment failed: %s", app.ID, res.Message)
	}
	return nil
}

// recordInvalidUserID leaves a reviewer-visible note and an audit row for a
// malformed Discord id. The raw value is user-controlled and gets
// sanitized before it is written anywhere a browser may render it. No
// Discord call is made.
func (w *Workflow) recordInvalidUserID(ctx context.Context, app *types.Application, raw string) {
	clean := w.sanitizer.Sanitize(raw)
	note := fmt.Sprintf("Discord role not assigned: invalid Discord user id %q (must be 17-19 digits, numbers only)", clean)

	if err := w.store.AppendApplicationNote(ctx, app.ID, note); err != nil {
		log.Printf("[approval] append note to application %s: %v", app.ID, err)
	}
	w.audit(ctx, app, "", clean, ActionInvalidUserID, false, note)
	log.Printf("[approval] application %s: invalid discord user id", app.ID)
}

func (w *Workflow) audit(ctx context.Context, app *types.Application, guildID, userID, action string, success bool, detail string) {
	entry := &types.DiscordRoleLog{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		TournamentID:  app.TournamentID,
		GuildID:       guildID,
		DiscordUserID: userID,
		Action:        action,
		Success:       success,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}
	if err := w.store.InsertRoleLog(ctx, entry); err != nil {
		log.Printf("[approval] write role log for application %s: %v", app.ID, err)
	}
}

func extractDiscordUserID(data types.JSONMap) string {
	for _, key := range customDataKeys {
		if v := data.String(key); v != "" {
			return v
		}
	}
	return ""
}
