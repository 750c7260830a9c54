package model

import "github.com/jguan/llmfit/pkg/unit"

// Model domain errors
var (
	ErrModelNotFound      = unit.NewDomainError("model", unit.ErrCodeModelNotFound, "model not found")
	ErrModelAlreadyExists = unit.NewDomainError("model", unit.ErrCodeModelAlreadyExists, "model already exists")
	ErrModelAmbiguous     = unit.NewDomainError("model", unit.ErrCodeModelAmbiguous, "multiple models match")
	ErrInvalidProfile     = unit.NewDomainError("model", unit.ErrCodeInvalidProfile, "invalid model profile")
	ErrCatalogLoadFailed  = unit.NewDomainError("model", unit.ErrCodeCatalogLoadFailed, "catalog load failed")

	ErrInvalidInput = unit.NewError(unit.ErrCodeInvalidInput, "invalid input")
)
