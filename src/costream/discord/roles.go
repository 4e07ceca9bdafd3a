package discord

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

const (
	// ApprovedRoleName is the role granted to approved co-streamers when
	// the organizer has not picked one explicitly.
	ApprovedRoleName = "Approved Co-Streamer"

	// RoleColor is the viewer.gg brand cyan.
	RoleColor = 0x00D9FF
)

// Session is the slice of discordgo the role directory needs. Satisfied by
// *discordgo.Session.
type Session interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UserGuildMember(guildID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

// Role identifies a guild role by id and name.
type Role struct {
	ID   string
	Name string
}

// AssignResult is the structured outcome of one assignment attempt. The
// role directory never returns errors for remote conditions: it sits on the
// critical path of a human approval, which a flaky integration must not
// block.
type AssignResult struct {
	Success    bool
	AlreadyHad bool
	Message    string
}

// RoleService finds, creates and assigns the approved co-streamer role in
// organizer guilds.
type RoleService struct {
	session  Session
	roleName string
}

func NewRoleService(session Session) *RoleService {
	return &RoleService{session: session, roleName: ApprovedRoleName}
}

// FindOrCreateRole looks the role up by exact name and creates it when
// absent. Safe to call repeatedly; an existing role is never duplicated.
func (r *RoleService) FindOrCreateRole(guildID string) (Role, error) {
	if !IsValidSnowflake(guildID) {
		return Role{}, fmt.Errorf("invalid guild id %q", guildID)
	}

	roles, err := r.session.GuildRoles(guildID)
	if err != nil {
		return Role{}, fmt.Errorf("list roles for guild %s: %w", guildID, err)
	}
	for _, role := range roles {
		if role.Name == r.roleName {
			return Role{ID: role.ID, Name: role.Name}, nil
		}
	}

	log.Printf("[discord] creating %q role in guild %s", r.roleName, guildID)
	color := RoleColor
	created, err := r.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:  r.roleName,
		Color: &color,
	})
	if err != nil {
		return Role{}, fmt.Errorf("create role in guild %s: %w", guildID, err)
	}
	return Role{ID: created.ID, Name: created.Name}, nil
}

// AssignRoleToMember grants roleID to userID in guildID. Four outcomes, all
// reported as a result rather than an error: guild unreachable, user not a
// member, role already held (success), role newly assigned (success).
func (r *RoleService) AssignRoleToMember(guildID, userID, roleID string) AssignResult {
	if !IsValidSnowflake(guildID) || !IsValidSnowflake(userID) || !IsValidSnowflake(roleID) {
		return AssignResult{
			Success: false,
			Message: "invalid guild, user or role id",
		}
	}

	if _, err := r.session.Guild(guildID); err != nil {
		log.Printf("[discord] guild %s unreachable: %v", guildID, err)
		return AssignResult{
			Success: false,
			Message: fmt.Sprintf("Guild %s not found. Bot may have been removed from the server.", guildID),
		}
	}

	member, err := r.session.GuildMember(guildID, userID)
	if err != nil {
		return AssignResult{
			Success: false,
			Message: fmt.Sprintf("User %s is not a member of this Discord server.", userID),
		}
	}

	for _, held := range member.Roles {
		if held == roleID {
			return AssignResult{
				Success:    true,
				AlreadyHad: true,
				Message:    "User already has the role.",
			}
		}
	}

	if err := r.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		log.Printf("[discord] role add failed for user %s in guild %s: %v", userID, guildID, err)
		return AssignResult{
			Success: false,
			Message: fmt.Sprintf("Failed to assign role: %v", err),
		}
	}

	name := userID
	if member.User != nil && member.User.Username != "" {
		name = member.User.Username
	}
	return AssignResult{
		Success: true,
		Message: fmt.Sprintf("Successfully assigned role to %s", name),
	}
}

// CanManageRoles reports whether the bot itself holds the Manage Roles
// permission in the guild. Used as a pre-flight check before bulk
// operations; any error reads as false.
func (r *RoleService) CanManageRoles(guildID string) bool {
	if !IsValidSnowflake(guildID) {
		return false
	}

	me, err := r.session.UserGuildMember(guildID)
	if err != nil {
		log.Printf("[discord] permission check failed for guild %s: %v", guildID, err)
		return false
	}

	roles, err := r.session.GuildRoles(guildID)
	if err != nil {
		log.Printf("[discord] permission check failed for guild %s: %v", guildID, err)
		return false
	}

	byID := make(map[string]*discordgo.Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}

	var perms int64
	for _, id := range me.Roles {
		if role, ok := byID[id]; ok {
			perms |= role.Permissions
		}
	}
	return perms&discordgo.PermissionAdministrator != 0 ||
		perms&discordgo.PermissionManageRoles != 0
}
