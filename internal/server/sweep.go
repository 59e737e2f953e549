package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tirtabill/tirtabill/internal/scheduler"
)

// Sweep endpoints run one sweep round on demand, for operators who do
// not want to wait for the next scheduled tick.

func (s *Server) RunBillingSweep(c *gin.Context) {
	s.runSweep(c, scheduler.JobBillingSweep)
}

func (s *Server) RunOverdueSweep(c *gin.Context) {
	s.runSweep(c, scheduler.JobOverdueSweep)
}

func (s *Server) runSweep(c *gin.Context, job string) {
	if s.sched == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if err := s.sched.RunJob(c.Request.Context(), job); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job, "status": "completed"})
}
