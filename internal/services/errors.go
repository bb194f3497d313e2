package services

import (
	"errors"

	"coefcalc/internal/ingest"
)

// Calculation errors
var (
	ErrNoDemandFiles = errors.New("no demand files")
	ErrNoSwatFiles   = errors.New("no SWAT files")
	ErrNoData        = errors.New("no products to calculate")

	// ErrLimitExceeded aborts a calculation before aggregation
	ErrLimitExceeded = ingest.ErrLimitExceeded

	// Session errors
	ErrCalculationNotFound = errors.New("calculation not found")
)
