package pipeline

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
)

func completedProject(sceneCount int) *Project {
	scenes := make([]Scene, sceneCount)
	for i := range scenes {
		scenes[i] = Scene{
			SceneNumber: i + 1,
			ImageURL:    "https://cdn.example.com/scene.png",
		}
	}
	return &Project{
		UserID:        "user-1",
		Kind:          quota.KindVideo,
		Title:         "The Lighthouse",
		Synopsis:      "A keeper and a storm.",
		CoverImageURL: "https://cdn.example.com/cover.png",
		Status:        ProjectStatusCompleted,
		Scenes:        scenes,
	}
}

func TestProjectStore_Create_WritesProjectAndScenesInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewProjectStore(db, logger.NewTestLogger(t))
	project := completedProject(3)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO projects`)).
		WithArgs(sqlmock.AnyArg(), "user-1", "video", "The Lighthouse", "A keeper and a storm.",
			"https://cdn.example.com/cover.png", ProjectStatusCompleted, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for i := 1; i <= 3; i++ {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO project_scenes`)).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), i, "https://cdn.example.com/scene.png",
				"", "", "", "", "", "", "", "").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.Create(context.Background(), project))
	assert.NotEmpty(t, project.ID)
	assert.False(t, project.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectStore_Create_SceneFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewProjectStore(db, logger.NewTestLogger(t))
	project := completedProject(2)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO projects`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO project_scenes`)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = store.Create(context.Background(), project)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectStore_GetByID_OrdersScenes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewProjectStore(db, logger.NewTestLogger(t))

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, kind, title, synopsis, cover_image_url, status, created_at, updated_at`)).
		WithArgs("project-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "kind", "title", "synopsis", "cover_image_url", "status", "created_at", "updated_at",
		}).AddRow("project-1", "user-1", "comic", "Panels", "", "", ProjectStatusCompleted, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT scene_number, image_url`)).
		WithArgs("project-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"scene_number", "image_url", "narrator_text", "dialogue", "sound_effect", "camera_angle",
			"transition", "emotional_beat", "narration_audio_url", "dialogue_audio_url",
		}).
			AddRow(1, "https://cdn.example.com/1.png", "", "", "", "", "", "", "", "").
			AddRow(2, "https://cdn.example.com/2.png", "", "", "", "", "", "", "", ""))

	project, err := store.GetByID(context.Background(), "project-1")
	require.NoError(t, err)
	assert.Equal(t, quota.KindComic, project.Kind)
	require.Len(t, project.Scenes, 2)
	assert.Equal(t, 1, project.Scenes[0].SceneNumber)
	assert.Equal(t, 2, project.Scenes[1].SceneNumber)
}

func TestProjectStore_GetByID_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewProjectStore(db, logger.NewTestLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, kind`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "kind", "title", "synopsis", "cover_image_url", "status", "created_at", "updated_at",
		}))

	_, err = store.GetByID(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
}
