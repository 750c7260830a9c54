package device

import "github.com/jguan/llmfit/pkg/unit"

// Device domain errors
var (
	ErrDeviceNotFound         = unit.NewDomainError("device", unit.ErrCodeDeviceNotFound, "device not found")
	ErrProbeFailed            = unit.NewDomainError("device", unit.ErrCodeProbeFailed, "hardware probe failed")
	ErrInvalidHardwareProfile = unit.NewDomainError("device", unit.ErrCodeInvalidHardwareProfile, "invalid hardware profile")
)
