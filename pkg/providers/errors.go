package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// FailureKind 客户端失败类型
type FailureKind int

const (
	FailureConnection FailureKind = iota + 1 // 服务不可达
	FailureModel                             // 服务可达但返回错误或空响应
	FailureTimeout                           // 请求超时
)

// String 返回失败类型名称
func (k FailureKind) String() string {
	switch k {
	case FailureConnection:
		return "connection"
	case FailureModel:
		return "model"
	case FailureTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// 失败类型哨兵，配合 errors.Is 使用
var (
	ErrConnection = errors.New("model service unreachable")
	ErrModel      = errors.New("model service returned an error")
	ErrTimeout    = errors.New("model request timed out")
)

// Error 提供商错误
type Error struct {
	Kind       FailureKind
	Provider   string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	b.WriteString(" failure: ")
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap 返回原因错误
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 让 errors.Is(err, ErrConnection) 等按失败类型匹配
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Kind == FailureConnection
	case ErrModel:
		return e.Kind == FailureModel
	case ErrTimeout:
		return e.Kind == FailureTimeout
	}
	return false
}

// IsRetryable 连接失败和超时可以重试，模型错误不重试
func (e *Error) IsRetryable() bool {
	return e.Kind == FailureConnection || e.Kind == FailureTimeout
}

// NewError 创建提供商错误
func NewError(kind FailureKind, provider, message string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Provider: provider,
		Message:  message,
		Cause:    cause,
	}
}

// NewModelError 创建带 HTTP 状态码的模型错误
func NewModelError(provider, message string, statusCode int) *Error {
	return &Error{
		Kind:       FailureModel,
		Provider:   provider,
		Message:    message,
		StatusCode: statusCode,
	}
}

// KindOf 返回错误的失败类型
func KindOf(err error) (FailureKind, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind, true
	}
	return 0, false
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.IsRetryable()
	}
	return false
}

// ClassifyTransportError 将发送请求时的错误归类为超时或连接失败
func ClassifyTransportError(provider string, err error) *Error {
	if err == nil {
		return nil
	}

	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	if isTimeout(err) {
		return NewError(FailureTimeout, provider, "request timed out", err)
	}
	if IsConnectionError(err) {
		return NewError(FailureConnection, provider, "failed to connect to model service", err)
	}
	return NewError(FailureConnection, provider, "request to model service failed", err)
}

// isTimeout 判断是否为超时错误
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// IsConnectionError 判断是否为网络连接错误
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no such host",
		"broken pipe",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
