package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ReadinessState string

const (
	ReadinessStateReady    ReadinessState = "ready"
	ReadinessStateNotReady ReadinessState = "not_ready"
)

type ReadinessIssue struct {
	ID       string            `json:"id"`
	Status   ReadinessState    `json:"status"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

func (s *Server) RegisterSystemRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/ready", s.GetSystemReadiness)
	s.engine.GET("/metrics", s.metricsHandler())
}

// Healthz reports liveness only.
func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSystemReadiness checks the database and the schema before traffic is routed here.
func (s *Server) GetSystemReadiness(c *gin.Context) {
	ctx := c.Request.Context()
	issues := make([]ReadinessIssue, 0, 2)
	ready := true

	dbIssue := ReadinessIssue{ID: "database", Status: ReadinessStateReady}
	if err := s.pingDB(c); err != nil {
		ready = false
		dbIssue.Status = ReadinessStateNotReady
		dbIssue.Evidence = map[string]string{"error": err.Error()}
	}
	issues = append(issues, dbIssue)

	schemaIssue := ReadinessIssue{ID: "schema_gate", Status: ReadinessStateReady}
	if s.schemaGate == nil {
		ready = false
		schemaIssue.Status = ReadinessStateNotReady
		schemaIssue.Evidence = map[string]string{"error": "schema gate not configured"}
	} else if err := s.schemaGate.MustBeActive(ctx); err != nil {
		ready = false
		schemaIssue.Status = ReadinessStateNotReady
		schemaIssue.Evidence = map[string]string{"error": err.Error()}
	}
	issues = append(issues, schemaIssue)

	state, code := ReadinessStateReady, http.StatusOK
	if !ready {
		state, code = ReadinessStateNotReady, http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"ready":        ready,
		"system_state": state,
		"issues":       issues,
	})
}

func (s *Server) pingDB(c *gin.Context) error {
	if s.db == nil {
		return errDatabaseNotConfigured
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(c.Request.Context())
}
