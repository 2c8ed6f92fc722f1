package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "carecohort"
	AppVersion = "1.0.0"

	// Server
	DefaultPort             = 8000
	DefaultMaxUploadBytes   = 200 << 20 // 200MB
	DefaultOperationTimeout = 10 * time.Minute

	// Rate Limiting
	DefaultRateLimit = 50 // requests per second
	DefaultBurstSize = 100

	// File Paths (relative to the working directory unless absolute)
	DefaultStorageRoot = "data"
	DefaultLogFile     = "logs/app.log"

	// Analysis defaults
	DefaultWindowCapMonths = 24
	DefaultZThreshold      = 3.0
	DefaultSuggestionLimit = 5
	DefaultPreviewRows     = 50
)

// Upload form fields
const (
	RosterUploadField = "beneficiarios"
	EventsUploadField = "ficha"
)
