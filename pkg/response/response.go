// Package response 定义 HTTP 统一响应包装。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Success 返回成功响应。
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Error 返回 500 错误响应。
func Error(c *gin.Context, message string) {
	ErrorWithStatus(c, http.StatusInternalServerError, message, "")
}

// ErrorWithStatus 返回指定状态码的错误响应。detail 为可选补充信息。
func ErrorWithStatus(c *gin.Context, status int, message string, detail string) {
	resp := Response{
		Code:    status,
		Message: message,
		TraceID: c.GetString("trace_id"),
	}
	if detail != "" {
		resp.Data = gin.H{"detail": detail}
	}
	c.JSON(status, resp)
}
