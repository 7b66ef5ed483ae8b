package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"bioguard/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrInferenceFailure indicates that the external analysis call failed.
	ErrInferenceFailure = errors.New("inference failed")
	// ErrQuotaExceeded indicates that the provider refused the call for quota reasons.
	ErrQuotaExceeded = domain.ErrQuotaExceeded
	// ErrTimeout indicates that the external analysis call did not finish in time.
	ErrTimeout = domain.ErrTimeout
	// ErrAnalysisBusy indicates that the workspace already has an analysis running.
	ErrAnalysisBusy = errors.New("an analysis is already running")
	// ErrCooldownActive indicates that the previous analysis finished too recently.
	ErrCooldownActive = errors.New("analysis cooldown active")
	// ErrAnalysisDisabled indicates that no inference provider is configured.
	ErrAnalysisDisabled = errors.New("video analysis is not configured")
)

const (
	auditCategory  = "AI Audit"
	cleanupTimeout = 30 * time.Second
)

// AnalysisConfig tunes the analysis trigger.
type AnalysisConfig struct {
	// Timeout bounds one analysis from upload to response. Zero means no
	// limit beyond the caller's context.
	Timeout time.Duration
	// Cooldown is the minimum gap between two analyses of one workspace.
	// Zero disables it.
	Cooldown time.Duration
}

// AnalysisService sends training videos to the inference provider and
// records the findings in the roadmap.
type AnalysisService struct {
	analyzer domain.VideoAnalyzer
	repo     domain.AthleteRepository
	roadmap  *RoadmapService
	cfg      AnalysisConfig
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	slots   map[int64]*semaphore.Weighted
	lastRun map[int64]time.Time
}

// NewAnalysisService creates an AnalysisService. analyzer may be nil, in
// which case every call fails with ErrAnalysisDisabled.
func NewAnalysisService(analyzer domain.VideoAnalyzer, repo domain.AthleteRepository, roadmap *RoadmapService, cfg AnalysisConfig, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		analyzer: analyzer,
		repo:     repo,
		roadmap:  roadmap,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		slots:    make(map[int64]*semaphore.Weighted),
		lastRun:  make(map[int64]time.Time),
	}
}

// Enabled reports whether an inference provider is configured.
func (s *AnalysisService) Enabled() bool {
	return s.analyzer != nil
}

// Analyze uploads video, asks the provider to assess target, and appends
// the finding to the athlete's roadmap. The roadmap is only touched when the
// provider call succeeds, and the provider-side upload is deleted on every
// path once it exists. There is no automatic retry.
func (s *AnalysisService) Analyze(ctx context.Context, userID int64, athleteID string, video io.Reader, mimeType, target string) (*domain.RoadmapEntry, error) {
	if s.analyzer == nil {
		return nil, ErrAnalysisDisabled
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("%w: target", ErrMissingField)
	}
	if video == nil {
		return nil, fmt.Errorf("%w: video", ErrMissingField)
	}
	if _, err := s.repo.GetAthlete(ctx, userID, athleteID); err != nil {
		return nil, notFound(err, athleteID)
	}

	slot := s.slot(userID)
	if !slot.TryAcquire(1) {
		return nil, ErrAnalysisBusy
	}
	defer slot.Release(1)

	if err := s.checkCooldown(userID); err != nil {
		return nil, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	log := s.logger.With(zap.Int64("user_id", userID), zap.String("athlete_id", athleteID))
	start := s.now()
	log.Info("analysis started", zap.String("target", target), zap.String("mime", mimeType))

	upload, err := s.analyzer.Upload(ctx, video, mimeType, "athlete-"+athleteID)
	if err != nil {
		log.Warn("analysis upload failed", zap.Error(err))
		return nil, classifyInference(err)
	}
	defer s.release(ctx, log, upload)

	finding, err := s.analyzer.Analyze(ctx, upload, target)
	if err != nil {
		log.Warn("analysis failed", zap.Error(err))
		return nil, classifyInference(err)
	}
	if finding == nil || strings.TrimSpace(finding.Note) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInferenceFailure)
	}

	entry, err := s.roadmap.Append(ctx, userID, athleteID, domain.RoadmapEntry{
		Date:     s.now().Format("2006-01-02"),
		Category: auditCategory,
		Note:     finding.Note,
		Region:   knownRegion(finding.Region),
		Severity: knownSeverity(finding.Severity),
		Source:   domain.SourceAnalysis,
	})
	if err != nil {
		return nil, err
	}

	log.Info("analysis finished",
		zap.String("region", string(entry.Region)),
		zap.Duration("elapsed", s.now().Sub(start)))
	return &entry, nil
}

func (s *AnalysisService) slot(userID int64) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.slots[userID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		s.slots[userID] = sem
	}
	return sem
}

// checkCooldown rejects the call if the previous attempt started within the
// cooldown window and otherwise records this attempt.
func (s *AnalysisService) checkCooldown(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.cfg.Cooldown > 0 {
		if last, ok := s.lastRun[userID]; ok {
			if wait := s.cfg.Cooldown - now.Sub(last); wait > 0 {
				return fmt.Errorf("%w: retry in %s", ErrCooldownActive, wait.Round(time.Second))
			}
		}
	}
	s.lastRun[userID] = now
	return nil
}

// release deletes the provider-side upload. It runs detached from ctx so a
// cancelled request still frees provider storage.
func (s *AnalysisService) release(ctx context.Context, log *zap.Logger, upload *domain.VideoUpload) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.analyzer.Delete(cctx, upload); err != nil {
		log.Error("analysis cleanup failed", zap.String("upload", upload.Name), zap.Error(err))
	}
}

func classifyInference(err error) error {
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded), errors.Is(err, domain.ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrInferenceFailure, err)
	}
}

// knownRegion and knownSeverity drop labels outside the closed sets rather
// than failing an otherwise successful analysis.
func knownRegion(r domain.Region) domain.Region {
	if _, ok := domain.LookupRegion(r); ok {
		return r
	}
	return domain.RegionNone
}

func knownSeverity(r domain.RiskLevel) domain.RiskLevel {
	level, err := domain.ParseRiskLevel(string(r))
	if err != nil {
		return ""
	}
	return level
}
