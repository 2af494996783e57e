package response

import (
	"net/http"

	"custody-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

// Response defines the standard JSON structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{} // Return empty object instead of null
	}
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error returns an error response
// Business errors keep HTTP 200 with a non-zero code; validation and
// not-found errors surface as 400 so untrusted callers get a clean signal
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	c.JSON(httpStatus(code), Response{
		Code:    code,
		Message: msg,
		Data:    gin.H{},
	})
}

func httpStatus(code int) int {
	switch code {
	case errno.ErrBind.Code, errno.ErrUsernameRequired.Code, errno.ErrUsernameTaken.Code,
		errno.ErrAccountNotFound.Code, errno.ErrInvalidAddress.Code:
		return http.StatusBadRequest
	case errno.ErrTokenInvalid.Code:
		return http.StatusUnauthorized
	case errno.ErrDatabase.Code, errno.InternalServerError.Code:
		// 可重试: 通知方收到 5xx 会按 at-least-once 语义重投
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
