package servehttp

import (
	"loopflow/bizerror"
	"loopflow/common"
	"loopflow/domain/signature"
	"loopflow/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterSignatureHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	handler := &signatureHandler{
		validator: validator.New(),
	}

	requests := r.Group("/v1/signature-requests", middleWares...)
	requests.POST("", handler.handleCreateRequest)
	requests.GET(":requestId", handler.handleDetailRequest)

	signatures := r.Group("/v1/signatures", middleWares...)
	signatures.POST(":signatureId/sign", handler.handleSign)
	signatures.POST(":signatureId/decline", handler.handleDecline)
}

type signatureHandler struct {
	validator *validator.Validate
}

func (h *signatureHandler) handleCreateRequest(c *gin.Context) {
	creation := signature.RequestCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := signature.CreateSignatureRequestFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *signatureHandler) handleDetailRequest(c *gin.Context) {
	id, err := types.ParseID(c.Param("requestId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("requestId") + "'"})
		return
	}

	detail, err := signature.DetailSignatureRequestFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *signatureHandler) handleSign(c *gin.Context) {
	id, err := types.ParseID(c.Param("signatureId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("signatureId") + "'"})
		return
	}

	signing := signature.Signing{}
	err = c.ShouldBindBodyWith(&signing, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(signing); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	signing.IPAddress = c.ClientIP()
	signing.UserAgent = c.Request.UserAgent()

	result, err := signature.SignDocumentFunc(id, &signing, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *signatureHandler) handleDecline(c *gin.Context) {
	id, err := types.ParseID(c.Param("signatureId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("signatureId") + "'"})
		return
	}

	declining := signature.Declining{}
	err = c.ShouldBindBodyWith(&declining, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	declined, err := signature.DeclineSignatureFunc(id, &declining, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, declined)
}
