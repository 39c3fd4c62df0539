package models

import (
	"errors"
	"fmt"
)

// ErrorCode 流水线错误分类
type ErrorCode string

const (
	// ErrInput 上传文件不合法，流水线开始前拒绝，不重试
	ErrInput ErrorCode = "INPUT_ERROR"
	// ErrDetectionDegraded 单页识别失败，该页置空，文档继续
	ErrDetectionDegraded ErrorCode = "DETECTION_DEGRADED"
	// ErrTransform 翻译调用失败，整个任务中止
	ErrTransform ErrorCode = "TRANSFORM_ERROR"
	// ErrRenderFallback 公式渲染失败，使用源码回退，从不致命
	ErrRenderFallback ErrorCode = "RENDER_FALLBACK"
	// ErrAssembly 协作者返回了意外的结构，在最小范围内降级
	ErrAssembly ErrorCode = "ASSEMBLY_ERROR"
	// ErrOutput 输出写入失败，整个任务中止
	ErrOutput ErrorCode = "OUTPUT_ERROR"
)

// PipelineError 带分类的流水线错误
type PipelineError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Page    int       `json:"page,omitempty"`
	Cause   error     `json:"-"`
}

// Error 实现 error 接口
func (e *PipelineError) Error() string {
	msg := e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("第 %d 页: %s", e.Page, msg)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap 返回底层错误
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewError 创建流水线错误
func NewError(code ErrorCode, message string, cause error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Cause: cause}
}

// NewPageError 创建与页码关联的流水线错误
func NewPageError(code ErrorCode, page int, message string, cause error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Page: page, Cause: cause}
}

// CodeOf 取出错误链中的分类，未分类返回空字符串
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsInputError 是否为输入错误
func IsInputError(err error) bool {
	return CodeOf(err) == ErrInput
}
