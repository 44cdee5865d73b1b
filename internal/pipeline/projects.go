package pipeline

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
)

// ProjectStore persists finished projects. A project and its scenes are
// written in one transaction; a half-written project never becomes visible.
type ProjectStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewProjectStore(db *sql.DB, log logger.Logger) *ProjectStore {
	return &ProjectStore{db: db, logger: log}
}

// Create inserts the project and its scenes, assigning IDs and timestamps.
func (s *ProjectStore) Create(ctx context.Context, project *Project) error {
	now := time.Now().UTC()
	project.ID = uuid.NewString()
	project.CreatedAt = now
	project.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("begin project transaction: " + err.Error())
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, user_id, kind, title, synopsis, cover_image_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		project.ID, project.UserID, string(project.Kind), project.Title, project.Synopsis,
		project.CoverImageURL, project.Status, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("insert project: " + err.Error())
	}

	for i := range project.Scenes {
		scene := &project.Scenes[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO project_scenes (id, project_id, scene_number, image_url, narrator_text, dialogue,
				sound_effect, camera_angle, transition, emotional_beat, narration_audio_url, dialogue_audio_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			uuid.NewString(), project.ID, scene.SceneNumber, scene.ImageURL, scene.NarratorText, scene.Dialogue,
			scene.SoundEffect, scene.CameraAngle, scene.Transition, scene.EmotionalBeat,
			scene.NarrationAudioURL, scene.DialogueAudioURL,
		)
		if err != nil {
			return apperrors.NewInternalError("insert project scene: " + err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("commit project transaction: " + err.Error())
	}

	s.logger.Info("project persisted", map[string]interface{}{
		"project_id": project.ID,
		"user_id":    project.UserID,
		"kind":       string(project.Kind),
		"scenes":     len(project.Scenes),
	})
	return nil
}

// GetByID loads one project with its scenes in scene order.
func (s *ProjectStore) GetByID(ctx context.Context, id string) (*Project, error) {
	var project Project
	var kind string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, title, synopsis, cover_image_url, status, created_at, updated_at
		FROM projects WHERE id = $1`, id,
	).Scan(&project.ID, &project.UserID, &kind, &project.Title, &project.Synopsis,
		&project.CoverImageURL, &project.Status, &project.CreatedAt, &project.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewValidationError("projectId", "no such project")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load project: " + err.Error())
	}
	project.Kind = quota.Kind(kind)

	rows, err := s.db.QueryContext(ctx, `
		SELECT scene_number, image_url, narrator_text, dialogue, sound_effect, camera_angle,
			transition, emotional_beat, narration_audio_url, dialogue_audio_url
		FROM project_scenes WHERE project_id = $1 ORDER BY scene_number`, id)
	if err != nil {
		return nil, apperrors.NewInternalError("load project scenes: " + err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var scene Scene
		if err := rows.Scan(&scene.SceneNumber, &scene.ImageURL, &scene.NarratorText, &scene.Dialogue,
			&scene.SoundEffect, &scene.CameraAngle, &scene.Transition, &scene.EmotionalBeat,
			&scene.NarrationAudioURL, &scene.DialogueAudioURL); err != nil {
			return nil, apperrors.NewInternalError("scan project scene: " + err.Error())
		}
		project.Scenes = append(project.Scenes, scene)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterate project scenes: " + err.Error())
	}

	return &project, nil
}
