package webserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Discord struct {
	roles RoleProber
	store ConfigStore
}

func NewDiscord(roles RoleProber, store ConfigStore) Discord {
	return Discord{roles: roles, store: store}
}

// TestConfig checks whether the organization's connected guild is still
// reachable and the bot still holds Manage Roles there. Organizers hit
// this from the settings page after inviting or re-permissioning the bot.
func (h Discord) TestConfig(c *gin.Context) {
	org := c.Param("org")

	cfg, err := h.store.DiscordConfig(c.Request.Context(), org)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	if cfg == nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "no connected discord config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"guild_id":         cfg.GuildID,
		"guild_name":       cfg.GuildName,
		"can_manage_roles": h.roles.CanManageRoles(cfg.GuildID),
	})
}

func (h Discord) RoleLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.store.RecentRoleLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
