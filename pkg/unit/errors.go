package unit

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode string

// 通用错误码 (000-099)
const (
	ErrCodeSuccess          ErrorCode = "00000"
	ErrCodeUnknown          ErrorCode = "00001"
	ErrCodeNotFound         ErrorCode = "00004"
	ErrCodeAlreadyExists    ErrorCode = "00005"
	ErrCodeInternalError    ErrorCode = "00008"
	ErrCodeInvalidInput     ErrorCode = "00009"
	ErrCodeValidationFailed ErrorCode = "00010"
	ErrCodeInvalidConfig    ErrorCode = "00011"
)

// 模型/目录领域错误码 (100-199)
const (
	ErrCodeModelNotFound      ErrorCode = "00100"
	ErrCodeModelAlreadyExists ErrorCode = "00101"
	ErrCodeModelAmbiguous     ErrorCode = "00106"
	ErrCodeInvalidProfile     ErrorCode = "00107"
	ErrCodeCatalogLoadFailed  ErrorCode = "00108"
)

// 设备领域错误码 (500-599)
const (
	ErrCodeDeviceNotFound         ErrorCode = "00500"
	ErrCodeProbeFailed            ErrorCode = "00503"
	ErrCodeInvalidHardwareProfile ErrorCode = "00504"
)

// UnitError 统一的错误类型
type UnitError struct {
	Code    ErrorCode
	Domain  string
	Message string
	Details map[string]any
	Cause   error
}

// Error 实现 error 接口
func (e *UnitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误，用于 errors.Is 和 errors.As
func (e *UnitError) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of e carrying the extra detail. Sentinel errors
// are shared package variables, so they are never mutated in place.
func (e *UnitError) WithDetails(key string, value any) *UnitError {
	c := e.clone()
	c.Details[key] = value
	return c
}

// WithCause returns a copy of e wrapping err.
func (e *UnitError) WithCause(err error) *UnitError {
	c := e.clone()
	c.Cause = err
	return c
}

func (e *UnitError) clone() *UnitError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	return &UnitError{
		Code:    e.Code,
		Domain:  e.Domain,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// Is 实现 errors.Is 接口
func (e *UnitError) Is(target error) bool {
	t, ok := target.(*UnitError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError 创建通用错误
func NewError(code ErrorCode, message string) *UnitError {
	return &UnitError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewDomainError 创建领域错误
func NewDomainError(domain string, code ErrorCode, message string) *UnitError {
	return &UnitError{
		Code:    code,
		Domain:  domain,
		Message: message,
		Details: make(map[string]any),
	}
}

// WrapError 包装现有错误
func WrapError(err error, code ErrorCode, message string) *UnitError {
	return &UnitError{
		Code:    code,
		Message: message,
		Cause:   err,
		Details: make(map[string]any),
	}
}

// AsUnitError 将错误转换为 UnitError
func AsUnitError(err error) (*UnitError, bool) {
	if err == nil {
		return nil, false
	}
	var ue *UnitError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// ExitCode maps an error to a process exit status for the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	ue, ok := AsUnitError(err)
	if !ok {
		return 1
	}
	switch ue.Code {
	case ErrCodeInvalidInput, ErrCodeValidationFailed, ErrCodeInvalidConfig,
		ErrCodeInvalidProfile, ErrCodeInvalidHardwareProfile:
		return 2
	case ErrCodeModelNotFound, ErrCodeModelAmbiguous, ErrCodeNotFound:
		return 3
	case ErrCodeProbeFailed:
		return 4
	default:
		return 1
	}
}
