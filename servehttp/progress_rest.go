package servehttp

import (
	"loopflow/common"
	"loopflow/domain/progress"
	"loopflow/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

func RegisterProgressHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	handler := &progressHandler{}

	loops := r.Group("/v1/loops", middleWares...)
	loops.POST(":loopId/progress", handler.handleCalculateProgress)

	orgs := r.Group("/v1/organizations", middleWares...)
	orgs.POST(":orgId/progress-refresh", handler.handleRefreshOrganization)
}

type progressHandler struct {
}

func (h *progressHandler) handleCalculateProgress(c *gin.Context) {
	id, err := types.ParseID(c.Param("loopId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("loopId") + "'"})
		return
	}

	snapshot, err := progress.CalculateLoopProgressFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *progressHandler) handleRefreshOrganization(c *gin.Context) {
	id, err := types.ParseID(c.Param("orgId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("orgId") + "'"})
		return
	}

	succeeded, err := progress.RefreshOrganizationProgressFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": succeeded})
}
