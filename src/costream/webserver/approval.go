package webserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type Approval struct {
	approver Approver
}

func NewApproval(a Approver) Approval {
	return Approval{approver: a}
}

// AssignRole re-runs the post-approval role assignment for one
// application. Discord-side failures are absorbed and audited downstream,
// so an error here means the application itself could not be processed.
func (h Approval) AssignRole(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "missing application id"})
		return
	}

	if err := h.approver.HandleApproved(c.Request.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
