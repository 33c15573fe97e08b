package server

import "github.com/gin-gonic/gin"

// @Summary      List Connectors
// @Description  List the connectors this deployment can route to and the flows each supports
// @Tags         connectors
// @Produce      json
// @Success      200  {object}  ListResponse
// @Router       /v1/connectors [get]
func (s *Server) ListConnectors(c *gin.Context) {
	respondList(c, s.registry.List())
}
