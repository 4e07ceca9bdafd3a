package webserver

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/viewer-gg/costream/src/costream/discord"
	"github.com/viewer-gg/costream/src/costream/types"
)

// OAuthExchanger is the consent-flow surface; satisfied by *discord.OAuth.
type OAuthExchanger interface {
	AuthorizationURL(redirectURI, state string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (*discord.TokenResponse, error)
}

type OAuth struct {
	oauth OAuthExchanger
	store ConfigStore
}

func NewOAuthHandler(oauth OAuthExchanger, store ConfigStore) OAuth {
	return OAuth{oauth: oauth, store: store}
}

func (h OAuth) AuthorizeURL(c *gin.Context) {
	redirectURI := c.Query("redirect_uri")
	if redirectURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "missing redirect_uri"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url": h.oauth.AuthorizationURL(redirectURI, c.Query("state")),
	})
}

// Callback completes the consent flow: exchanges the code and stores the
// guild the bot was just added to as the organization's integration.
func (h OAuth) Callback(c *gin.Context) {
	var req struct {
		OrganizationID string `json:"organization_id" binding:"required"`
		Code           string `json:"code" binding:"required"`
		RedirectURI    string `json:"redirect_uri" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	tok, err := h.oauth.ExchangeCode(c.Request.Context(), req.Code, req.RedirectURI)
	if err != nil {
		log.Printf("[webserver] oauth exchange for org %s: %v", req.OrganizationID, err)
		c.JSON(http.StatusBadGateway, gin.H{"err": "code exchange failed"})
		return
	}
	if tok.Guild == nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bot scope not granted"})
		return
	}

	cfg := &types.DiscordConfig{
		OrganizationID: req.OrganizationID,
		GuildID:        tok.Guild.ID,
		GuildName:      tok.Guild.Name,
		IsConnected:    true,
	}
	if err := h.store.SaveDiscordConfig(c.Request.Context(), cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"guild_id":   cfg.GuildID,
		"guild_name": cfg.GuildName,
	})
}
