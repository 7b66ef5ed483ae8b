package domain

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrQuotaExceeded means the inference provider rejected the call for rate or storage limits.
	ErrQuotaExceeded = errors.New("inference quota exceeded")
	// ErrTimeout means the inference call did not finish in time.
	ErrTimeout = errors.New("inference timed out")
)

// VideoUpload is a video held by the inference provider.
type VideoUpload struct {
	Name     string
	URI      string
	MIMEType string
}

// Finding is the structured result of one video analysis.
type Finding struct {
	Region   Region    `json:"region"`
	Severity RiskLevel `json:"severity"`
	Note     string    `json:"note"`
}

// VideoAnalyzer is the port for the external video-understanding endpoint.
// Delete must be safe to call for any upload returned by Upload.
type VideoAnalyzer interface {
	Upload(ctx context.Context, video io.Reader, mimeType, displayName string) (*VideoUpload, error)
	Analyze(ctx context.Context, upload *VideoUpload, target string) (*Finding, error)
	Delete(ctx context.Context, upload *VideoUpload) error
}
