package servehttp

import (
	"loopflow/bizerror"
	"loopflow/common"
	"loopflow/domain/workflow"
	"loopflow/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterWorkflowTemplateHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/workflow-templates", middleWares...)

	handler := &workflowTemplateHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateTemplate)
	g.GET("", handler.handleQueryTemplates)
	g.GET(":templateId", handler.handleDetailTemplate)
	g.PUT(":templateId", handler.handleUpdateTemplate)
	g.DELETE(":templateId", handler.handleDeleteTemplate)

	g.POST(":templateId/applications", handler.handleApplyTemplate)
}

type workflowTemplateHandler struct {
	validator *validator.Validate
}

func (h *workflowTemplateHandler) handleQueryTemplates(c *gin.Context) {
	query := workflow.TemplateQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	templates, err := workflow.QueryWorkflowTemplatesFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *workflowTemplateHandler) handleCreateTemplate(c *gin.Context) {
	creation := workflow.TemplateCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	template, err := workflow.CreateWorkflowTemplateFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, template)
}

func (h *workflowTemplateHandler) handleDetailTemplate(c *gin.Context) {
	id, err := types.ParseID(c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("templateId") + "'"})
		return
	}

	template, err := workflow.DetailWorkflowTemplateFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *workflowTemplateHandler) handleUpdateTemplate(c *gin.Context) {
	id, err := types.ParseID(c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("templateId") + "'"})
		return
	}

	updating := workflow.TemplateUpdating{}
	err = c.ShouldBindBodyWith(&updating, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(updating); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	template, err := workflow.UpdateWorkflowTemplateFunc(id, &updating, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *workflowTemplateHandler) handleDeleteTemplate(c *gin.Context) {
	id, err := types.ParseID(c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("templateId") + "'"})
		return
	}

	err = workflow.DeleteWorkflowTemplateFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *workflowTemplateHandler) handleApplyTemplate(c *gin.Context) {
	id, err := types.ParseID(c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("templateId") + "'"})
		return
	}

	application := workflow.TemplateApplication{}
	err = c.ShouldBindBodyWith(&application, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	application.TemplateID = id
	if err = h.validator.Struct(application); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	result, err := workflow.ApplyWorkflowTemplateFunc(&application, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, result)
}
