// Package gemini implements domain.VideoAnalyzer on top of the Google Gemini
// API: videos go through the Files API and are assessed with a single
// GenerateContent call constrained to a JSON schema.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bioguard/internal/domain"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	// DefaultModel is used when Config.Model is empty.
	DefaultModel        = "gemini-2.5-flash"
	defaultPollInterval = 2 * time.Second
	deleteTimeout       = 30 * time.Second
)

const systemPrompt = `You are a sports biomechanics analyst reviewing training footage for a professional squad.
Assess the movement the coach asks about. Report the single most relevant body region, a severity
(Low, Medium or High) for injury risk, and a concise note with the observation and a recommendation.
Use region "none" when no specific region is implicated.`

// Config configures the Gemini client.
type Config struct {
	APIKey       string
	Model        string
	PollInterval time.Duration
}

// Client is a domain.VideoAnalyzer backed by Gemini.
type Client struct {
	client *genai.Client
	model  string
	poll   time.Duration
	logger *zap.Logger
}

var _ domain.VideoAnalyzer = (*Client)(nil)

// New creates a Gemini client.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{
		client: client,
		model:  cfg.Model,
		poll:   cfg.PollInterval,
		logger: logger,
	}, nil
}

// Upload sends the video to the Files API and waits until it is ready to be
// referenced. If processing fails the file is deleted before returning.
func (c *Client) Upload(ctx context.Context, video io.Reader, mimeType, displayName string) (*domain.VideoUpload, error) {
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	f, err := c.client.Files.Upload(ctx, video, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, classify(err)
	}
	upload := &domain.VideoUpload{Name: f.Name, URI: f.URI, MIMEType: f.MIMEType}
	if upload.MIMEType == "" {
		upload.MIMEType = mimeType
	}
	c.logger.Debug("gemini upload accepted", zap.String("name", f.Name), zap.String("state", string(f.State)))

	for f.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			c.deleteDetached(ctx, upload)
			return nil, classify(ctx.Err())
		case <-time.After(c.poll):
		}
		f, err = c.client.Files.Get(ctx, upload.Name, nil)
		if err != nil {
			c.deleteDetached(ctx, upload)
			return nil, classify(err)
		}
	}

	if f.State == genai.FileStateFailed {
		c.deleteDetached(ctx, upload)
		return nil, processingError(f)
	}
	if f.URI != "" {
		upload.URI = f.URI
	}
	return upload, nil
}

// Analyze asks the model to assess target in the uploaded video.
func (c *Client) Analyze(ctx context.Context, upload *domain.VideoUpload, target string) (*domain.Finding, error) {
	parts := []*genai.Part{
		genai.NewPartFromURI(upload.URI, upload.MIMEType),
		genai.NewPartFromText(buildPrompt(target)),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    findingSchema(),
	})
	if err != nil {
		return nil, classify(err)
	}
	return parseFinding(resp.Text())
}

// Delete removes the uploaded file from provider storage.
func (c *Client) Delete(ctx context.Context, upload *domain.VideoUpload) error {
	if upload == nil || upload.Name == "" {
		return nil
	}
	if _, err := c.client.Files.Delete(ctx, upload.Name, nil); err != nil {
		return fmt.Errorf("delete %s: %w", upload.Name, err)
	}
	c.logger.Debug("gemini upload deleted", zap.String("name", upload.Name))
	return nil
}

func (c *Client) deleteDetached(ctx context.Context, upload *domain.VideoUpload) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := c.Delete(dctx, upload); err != nil {
		c.logger.Warn("gemini cleanup failed", zap.Error(err))
	}
}

func buildPrompt(target string) string {
	return fmt.Sprintf("Target for this audit: %s\nAllowed regions: %s, none.",
		strings.TrimSpace(target), strings.Join(domain.RegionTags(), ", "))
}

func findingSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"region": {
				Type:        genai.TypeString,
				Description: "Body region the finding concerns.",
				Enum:        append(domain.RegionTags(), "none"),
			},
			"severity": {
				Type: genai.TypeString,
				Enum: []string{string(domain.RiskLow), string(domain.RiskMedium), string(domain.RiskHigh)},
			},
			"note": {
				Type:        genai.TypeString,
				Description: "Observation and recommendation for the coach.",
			},
		},
		Required: []string{"region", "severity", "note"},
	}
}

// processingError reports a file the provider could not process, with the
// provider's own status message when it sent one.
func processingError(f *genai.File) error {
	if f.Error != nil && f.Error.Message != "" {
		return fmt.Errorf("video processing failed for %s: %s", f.Name, f.Error.Message)
	}
	return fmt.Errorf("video processing failed for %s: state %s", f.Name, f.State)
}

// parseFinding decodes the model's JSON answer. Answers that are not JSON
// are kept whole as the note.
func parseFinding(text string) (*domain.Finding, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.New("empty model response")
	}

	body := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(trimmed, "```json"), "```"), "```"))
	var raw struct {
		Region   string `json:"region"`
		Severity string `json:"severity"`
		Note     string `json:"note"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil || strings.TrimSpace(raw.Note) == "" {
		return &domain.Finding{Note: text}, nil
	}

	f := &domain.Finding{Note: raw.Note}
	if region, ok := domain.ParseRegion(raw.Region); ok {
		f.Region = region
	}
	if sev, err := domain.ParseRiskLevel(raw.Severity); err == nil {
		f.Severity = sev
	}
	return f, nil
}

// classify maps provider failures onto domain errors, keeping the provider
// message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Status == "RESOURCE_EXHAUSTED":
			return fmt.Errorf("%w: %s", domain.ErrQuotaExceeded, apiErr.Message)
		case apiErr.Code == http.StatusGatewayTimeout, apiErr.Status == "DEADLINE_EXCEEDED":
			return fmt.Errorf("%w: %s", domain.ErrTimeout, apiErr.Message)
		}
	}
	return err
}
