package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Poll struct {
	poller Poller
}

func NewPoll(p Poller) Poll {
	return Poll{poller: p}
}

// Run triggers one reconciliation cycle synchronously and reports its
// result. The scheduler keeps its own cadence regardless; this exists for
// organizer dashboards and ops.
func (h Poll) Run(c *gin.Context) {
	result := h.poller.PollAllStreams(c.Request.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}

func (h Poll) Snapshot(c *gin.Context) {
	if err := h.poller.CollectViewershipSnapshot(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
