package hal

import (
	"context"

	"github.com/jguan/llmfit/pkg/unit/device"
)

var (
	ErrHardwareNotAvailable = NewProviderError("hardware not available")
	ErrDeviceNotFound       = NewProviderError("device not found")
	ErrCommandFailed        = NewProviderError("command failed")
	ErrNotSupported         = NewProviderError("operation not supported")
)

type ProviderError struct {
	Message string
	Cause   error
}

func NewProviderError(message string) *ProviderError {
	return &ProviderError{Message: message}
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is matches any ProviderError carrying the same message, so wrapped
// sentinels still satisfy errors.Is.
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	return ok && t.Message == e.Message
}

func (e *ProviderError) WithCause(cause error) *ProviderError {
	return &ProviderError{Message: e.Message, Cause: cause}
}

// GPUProvider detects one family of GPUs. Detect returns
// ErrDeviceNotFound when the tooling works but reports no device.
type GPUProvider interface {
	Name() string
	Vendor() string
	Available(ctx context.Context) bool
	Detect(ctx context.Context) (*device.GPUInfo, error)
}

// CPUProvider reports the host processor.
type CPUProvider interface {
	CPU(ctx context.Context) (*CPUInfo, error)
}
