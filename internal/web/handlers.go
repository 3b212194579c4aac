package web

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/julianstephens/questbot/internal/constants"
	"github.com/julianstephens/questbot/internal/logger"
)

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(constants.TriggerTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			logger.Warn("Rejected request with bad trigger token", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid trigger token"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"version":     constants.Version,
		"state":       s.trigger.State().String(),
		"last_result": s.trigger.LastResult(),
	})
}

func (s *Server) handleScan(c *gin.Context) {
	// The scan outlives a client that hangs up mid-request.
	ctx := context.WithoutCancel(c.Request.Context())
	res, ran := s.trigger.Fire(ctx, s.clock.Now())
	c.JSON(http.StatusOK, gin.H{
		"ran":    ran,
		"result": res,
	})
}

func (s *Server) handleUserStatus(c *gin.Context) {
	st := s.status.Status(c.Request.Context(), c.Param("id"))

	resp := gin.H{
		"phase":            st.Phase,
		"active_quests":    st.ActiveQuests,
		"done_quests":      st.DoneQuests,
		"insights":         st.Insights,
		"reflections":      st.Reflections,
		"reminder_enabled": st.Reminder.Enabled,
		"reminder_time":    st.Reminder.Time,
	}
	if st.LastActive != nil {
		resp["last_active"] = st.LastActive
	}
	c.JSON(http.StatusOK, resp)
}
