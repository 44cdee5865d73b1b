package pipeline

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/metrics"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/observability"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
)

// Stage names a phase of the pipeline for logs and failure metrics.
type Stage string

const (
	StageValidating       Stage = "validating"
	StageQuotaChecking    Stage = "quota_checking"
	StageScriptGenerating Stage = "script_generating"
	StageMediaGenerating  Stage = "media_generating"
	StageAssembling       Stage = "assembling"
	StagePersisting       Stage = "persisting"
	StageRecordingUsage   Stage = "recording_usage"
)

type usageGate interface {
	CheckAndAdvise(ctx context.Context, userID string, kind quota.Kind) (*quota.Decision, error)
}

type usageRecorder interface {
	Record(ctx context.Context, userID string, kind quota.Kind) (*quota.Receipt, error)
}

type projectWriter interface {
	Create(ctx context.Context, project *Project) error
}

// Notifier is told about finished projects. Delivery is best-effort and must
// never influence the pipeline outcome.
type Notifier interface {
	GenerationCompleted(ctx context.Context, email string, project *Project)
}

// Orchestrator drives one generation request through quota check, script,
// media fan-out, assembly, persistence and usage recording.
type Orchestrator struct {
	gate     usageGate
	recorder usageRecorder
	writer   scriptGenerator
	media    mediaGenerator
	projects projectWriter
	notifier Notifier

	policy RetryPolicy
	plan   PlanConfig

	obs    *observability.Observability
	logger logger.Logger
}

type scriptGenerator interface {
	Generate(ctx context.Context, req *Request, sceneCount int) (*Script, error)
}

type mediaGenerator interface {
	Generate(ctx context.Context, script *Script, kind quota.Kind, tier QualityTier, referenceImageURLs []string, voiceByCharacter map[string]string) (*MediaResults, error)
}

func NewOrchestrator(
	gate usageGate,
	recorder usageRecorder,
	writer scriptGenerator,
	media mediaGenerator,
	projects projectWriter,
	notifier Notifier,
	policy RetryPolicy,
	plan PlanConfig,
	obs *observability.Observability,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		gate:     gate,
		recorder: recorder,
		writer:   writer,
		media:    media,
		projects: projects,
		notifier: notifier,
		policy:   policy,
		plan:     plan,
		obs:      obs,
		logger:   log,
	}
}

// Run executes the whole pipeline for one user request. Quota and validation
// failures happen before any provider spend; once assembly starts, the run
// finishes with whatever media made it through.
func (o *Orchestrator) Run(ctx context.Context, userID, userEmail string, req *Request) (*Project, error) {
	start := time.Now()
	kind := string(req.Kind)
	metrics.GenerationsStarted.WithLabelValues(kind).Inc()

	log := o.logger.With(map[string]interface{}{
		"user_id": userID,
		"kind":    kind,
	})

	tier, err := o.validate(req)
	if err != nil {
		return nil, o.fail(ctx, start, req.Kind, StageValidating, err)
	}

	decision, err := o.gate.CheckAndAdvise(ctx, userID, req.Kind)
	if err != nil {
		return nil, o.fail(ctx, start, req.Kind, StageQuotaChecking, err)
	}
	if !decision.Allowed {
		err := apperrors.NewQuotaExceededError(string(req.Kind), decision.Remaining, decision.Limit)
		return nil, o.fail(ctx, start, req.Kind, StageQuotaChecking, err)
	}

	sceneCount := o.sceneCount(req, tier)
	log.Info("pipeline run starting", map[string]interface{}{
		"scenes":  sceneCount,
		"quality": string(tier),
	})

	script, err := callWithRetry(ctx, log, "script generation", o.policy, func(ctx context.Context) (*Script, error) {
		return o.writer.Generate(ctx, req, sceneCount)
	})
	if err != nil {
		return nil, o.fail(ctx, start, req.Kind, StageScriptGenerating, err)
	}

	media, err := o.media.Generate(ctx, script, req.Kind, tier, referenceImages(req), voicesByName(req))
	if err != nil {
		return nil, o.fail(ctx, start, req.Kind, StageMediaGenerating, err)
	}

	project := o.assemble(userID, req, script, media)

	if err := o.projects.Create(ctx, project); err != nil {
		return nil, o.fail(ctx, start, req.Kind, StagePersisting, err)
	}

	// The project already exists at this point, so a usage write that keeps
	// failing is logged and swallowed rather than turned into a user error.
	if _, err := o.recorder.Record(ctx, userID, req.Kind); err != nil {
		log.Error("usage recording failed after successful generation", map[string]interface{}{
			"project_id": project.ID,
			"error":      err.Error(),
		})
		metrics.GenerationsFailed.WithLabelValues(kind, string(StageRecordingUsage), string(apperrors.CodeOf(err))).Inc()
	}

	if o.notifier != nil && userEmail != "" {
		go func(project *Project) {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			o.notifier.GenerationCompleted(notifyCtx, userEmail, project)
		}(project)
	}

	elapsed := time.Since(start)
	metrics.GenerationsCompleted.WithLabelValues(kind).Inc()
	metrics.GenerationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if o.obs != nil {
		o.obs.RecordRun(ctx, kind, "completed")
		o.obs.RecordRunDuration(ctx, elapsed, kind, "completed")
	}
	log.Info("pipeline run completed", map[string]interface{}{
		"project_id": project.ID,
		"scenes":     len(project.Scenes),
		"duration":   elapsed.String(),
	})

	return project, nil
}

func (o *Orchestrator) validate(req *Request) (QualityTier, error) {
	if _, err := quota.ParseKind(string(req.Kind)); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Title) == "" {
		return "", apperrors.NewValidationError("title", "is required")
	}
	if strings.TrimSpace(req.Story) == "" {
		return "", apperrors.NewValidationError("story", "is required")
	}
	for _, character := range req.Characters {
		if strings.TrimSpace(character.Name) == "" {
			return "", apperrors.NewValidationError("characters", "character name is required")
		}
	}

	tier := QualityStandard
	if req.QualityTier != "" {
		parsed, err := ParseQualityTier(req.QualityTier)
		if err != nil {
			return "", err
		}
		tier = parsed
	}

	if req.Kind == quota.KindVideo && req.DurationMinutes < 1 {
		return "", apperrors.NewValidationError("durationMinutes", "must be at least 1 for video generation")
	}

	return tier, nil
}

func (o *Orchestrator) sceneCount(req *Request, tier QualityTier) int {
	if req.Kind == quota.KindComic {
		return sceneCountForComic(req.Story, o.plan)
	}
	return sceneCountForVideo(req.DurationMinutes, tier, o.plan)
}

// assemble zips the script with whatever media survived. Scene numbering is
// assigned here, in script order, so it never depends on media completion
// order.
func (o *Orchestrator) assemble(userID string, req *Request, script *Script, media *MediaResults) *Project {
	scenes := make([]Scene, len(script.Scenes))
	for i, src := range script.Scenes {
		scenes[i] = Scene{
			SceneNumber:       i + 1,
			ImageURL:          media.ImageURLs[i],
			NarratorText:      src.NarratorText,
			Dialogue:          src.Dialogue,
			SoundEffect:       src.SoundEffect,
			CameraAngle:       src.CameraAngle,
			Transition:        src.Transition,
			EmotionalBeat:     src.EmotionalBeat,
			NarrationAudioURL: media.NarrationURLs[i],
			DialogueAudioURL:  media.DialogueURLs[i],
		}
	}

	title := script.Title
	if title == "" {
		title = req.Title
	}

	return &Project{
		UserID:        userID,
		Kind:          req.Kind,
		Title:         title,
		Synopsis:      script.Synopsis,
		CoverImageURL: media.CoverImageURL,
		Status:        ProjectStatusCompleted,
		Scenes:        scenes,
	}
}

func (o *Orchestrator) fail(ctx context.Context, start time.Time, kind quota.Kind, stage Stage, err error) error {
	code := string(apperrors.CodeOf(err))
	metrics.GenerationsFailed.WithLabelValues(string(kind), string(stage), code).Inc()
	if o.obs != nil {
		o.obs.RecordRun(ctx, string(kind), "failed")
		o.obs.RecordRunDuration(ctx, time.Since(start), string(kind), "failed")
	}
	o.logger.Warn("pipeline run failed", map[string]interface{}{
		"kind":  string(kind),
		"stage": string(stage),
		"code":  code,
		"error": err.Error(),
	})
	return err
}

func referenceImages(req *Request) []string {
	var urls []string
	for _, character := range req.Characters {
		if character.PhotoURL != "" {
			urls = append(urls, character.PhotoURL)
		}
	}
	return urls
}

func voicesByName(req *Request) map[string]string {
	voices := make(map[string]string, len(req.Characters))
	for _, character := range req.Characters {
		if character.VoiceID != "" {
			voices[character.Name] = character.VoiceID
		}
	}
	return voices
}
