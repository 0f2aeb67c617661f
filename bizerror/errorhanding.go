package bizerror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"loopflow/common"
	"loopflow/domain"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handle(c)
		c.Next()
	}
}

func handle(c *gin.Context) {
	if ret := recover(); ret != nil {
		err, ok := ret.(error)
		if !ok {
			err = errors.New(fmt.Sprintf("%s", ret))
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

func HandleError(c *gin.Context, err error) {
	logrus.Error(err)

	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	if bizErr, ok := genericErr.(BizError); ok {
		respond := bizErr.Respond()
		c.JSON(respond.Status, &common.ErrorBody{Code: respond.Code, Message: respond.Message, Data: respond.Data})
		c.Abort()
		return
	}

	// bad request: io.EOF (no body)
	if errors.Is(genericErr, io.EOF) {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.body_not_found", Message: "body not found"})
		c.Abort()
		return
	}
	// bad request: json syntax error
	if syntaxErr, ok := genericErr.(*json.SyntaxError); ok {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.invalid_body_format", Message: "invalid body format", Data: syntaxErr.Error()})
		c.Abort()
		return
	}
	// validation failed
	if validationErr, ok := genericErr.(validator.ValidationErrors); ok {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.validation_failed", Message: "validation failed", Data: validationErr.Error()})
		c.Abort()
		return
	}

	if errors.Is(genericErr, ErrUnauthenticated) {
		c.JSON(http.StatusUnauthorized, &common.ErrorBody{Code: "common.unauthenticated", Message: "unauthenticated"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrForbidden) {
		c.JSON(http.StatusForbidden, &common.ErrorBody{Code: "security.forbidden", Message: "access forbidden"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrDocumentNotInLoop) {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "signature.document_not_in_loop", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrSignerNotEligible) {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "signature.signer_not_eligible", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrExpirationNotFuture) {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "signature.expiration_not_future", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrSignatureSigned) || errors.Is(genericErr, ErrSignatureDeclined) ||
		errors.Is(genericErr, ErrSignatureRequestOver) || errors.Is(genericErr, ErrSignatureExpired) {
		c.JSON(http.StatusConflict, &common.ErrorBody{Code: "signature.state_conflict", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrUnknownTransactionType) || errors.Is(genericErr, ErrUnknownSigningOrder) {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.unknown_enum_tag", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, gorm.ErrRecordNotFound) || errors.Is(genericErr, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, &common.ErrorBody{Code: "common.record_not_found", Message: "record not found"})
		c.Abort()
		return
	}

	c.JSON(http.StatusInternalServerError, &common.ErrorBody{Code: "common.internal_server_error", Message: err.Error()})
	c.Abort()
}
