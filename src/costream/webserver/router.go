package webserver

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/viewer-gg/costream/src/costream/config"
	"github.com/viewer-gg/costream/src/costream/poller"
	"github.com/viewer-gg/costream/src/costream/types"
)

// Poller triggers reconciliation cycles on demand.
type Poller interface {
	PollAllStreams(ctx context.Context) poller.Result
	CollectViewershipSnapshot(ctx context.Context) error
}

// Approver runs the post-approval Discord side effects.
type Approver interface {
	HandleApproved(ctx context.Context, applicationID string) error
}

// RoleProber answers bot permission pre-flight checks.
type RoleProber interface {
	CanManageRoles(guildID string) bool
}

// ConfigStore is the persistence surface the HTTP handlers need.
type ConfigStore interface {
	DiscordConfig(ctx context.Context, organizationID string) (*types.DiscordConfig, error)
	SaveDiscordConfig(ctx context.Context, cfg *types.DiscordConfig) error
	RecentRoleLogs(ctx context.Context, tournamentID string, limit int) ([]types.DiscordRoleLog, error)
}

type Deps struct {
	Poller   Poller
	Approver Approver
	Roles    RoleProber
	OAuth    OAuthExchanger
	Store    ConfigStore
}

func attachRoutes(r *gin.Engine, cfg config.Config, deps Deps) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pollH := NewPoll(deps.Poller)
	approvalH := NewApproval(deps.Approver)
	discordH := NewDiscord(deps.Roles, deps.Store)
	oauthH := NewOAuthHandler(deps.OAuth, deps.Store)

	v1 := r.Group("/v1")
	v1.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
	{
		v1.POST("/poll/run", pollH.Run)
		v1.POST("/poll/snapshot", pollH.Snapshot)
		v1.POST("/applications/:id/role-assignment", approvalH.AssignRole)
		v1.GET("/discord/config/:org/test", discordH.TestConfig)
		v1.GET("/discord/oauth/url", oauthH.AuthorizeURL)
		v1.POST("/discord/oauth/callback", oauthH.Callback)
		v1.GET("/tournaments/:id/role-logs", discordH.RoleLogs)
	}
}
