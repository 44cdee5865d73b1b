package quota

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const subscriptionColumns = `id, user_id, plan_id, status, video_generations_used, comic_generations_used, reset_date, renewal_date, version, created_at, updated_at`

// Store persists subscriptions and resolves plans. Every mutating statement
// is guarded by the row version so concurrent writers surface as
// USAGE_CONFLICT instead of silently clobbering each other.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.With(map[string]interface{}{"component": "quota.Store"}),
	}
}

// GetActiveByUser loads the user's active subscription.
func (s *Store) GetActiveByUser(ctx context.Context, userID string) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 AND status = 'active'`

	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewSubscriptionNotFoundError(userID)
		}
		return nil, apperrors.NewInternalError("load subscription: " + err.Error())
	}
	return sub, nil
}

// CreateTrial provisions the first-use trial subscription. The caller decides
// whether provisioning is enabled; the store just writes the row.
func (s *Store) CreateTrial(ctx context.Context, userID, trialPlanID string, now time.Time) (*Subscription, error) {
	sub := &Subscription{
		ID:          uuid.NewString(),
		UserID:      userID,
		PlanID:      trialPlanID,
		Status:      StatusActive,
		ResetDate:   now.AddDate(0, 1, 0),
		RenewalDate: now.AddDate(0, 1, 0),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `INSERT INTO subscriptions (id, user_id, plan_id, status, video_generations_used, comic_generations_used, reset_date, renewal_date, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, $5, $6, 1, $7, $7)`
	if _, err := s.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.PlanID, sub.Status, sub.ResetDate, sub.RenewalDate, now); err != nil {
		// A concurrent first request may have provisioned the row already.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return s.GetActiveByUser(ctx, userID)
		}
		return nil, apperrors.NewInternalError("create trial subscription: " + err.Error())
	}

	s.logger.Info("provisioned trial subscription", map[string]interface{}{
		"userId": userID,
		"planId": trialPlanID,
	})
	return sub, nil
}

// ResetUsage is the explicit transactional "zero both counters and advance
// the reset date by one calendar month" write triggered by a check that
// observes resetDate in the past. On success sub is updated in place.
func (s *Store) ResetUsage(ctx context.Context, sub *Subscription, now time.Time) error {
	newResetDate := sub.ResetDate.AddDate(0, 1, 0)

	query := `UPDATE subscriptions
		SET video_generations_used = 0, comic_generations_used = 0, reset_date = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`
	res, err := s.db.ExecContext(ctx, query, newResetDate, now, sub.ID, sub.Version)
	if err != nil {
		return apperrors.NewInternalError("reset usage: " + err.Error())
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("reset usage: " + err.Error())
	}
	if affected == 0 {
		return apperrors.NewUsageConflictError(sub.UserID)
	}

	sub.VideoGenerationsUsed = 0
	sub.ComicGenerationsUsed = 0
	sub.ResetDate = newResetDate
	sub.Version++
	sub.UpdatedAt = now
	return nil
}

// IncrementUsage bumps the counter for the given kind by exactly one,
// guarded by the version the caller read. The caller owns the retry policy.
func (s *Store) IncrementUsage(ctx context.Context, sub *Subscription, kind Kind, now time.Time) error {
	var column string
	switch kind {
	case KindVideo:
		column = "video_generations_used"
	case KindComic:
		column = "comic_generations_used"
	default:
		return apperrors.NewValidationError("kind", "unknown generation kind")
	}

	query := `UPDATE subscriptions SET ` + column + ` = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4`
	res, err := s.db.ExecContext(ctx, query, sub.Used(kind)+1, now, sub.ID, sub.Version)
	if err != nil {
		return apperrors.NewInternalError("increment usage: " + err.Error())
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("increment usage: " + err.Error())
	}
	if affected == 0 {
		return apperrors.NewUsageConflictError(sub.UserID)
	}
	return nil
}

// MarkExpired transitions the subscription out of the active set.
func (s *Store) MarkExpired(ctx context.Context, sub *Subscription, now time.Time) error {
	query := `UPDATE subscriptions SET status = 'expired', version = version + 1, updated_at = $1 WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, now, sub.ID); err != nil {
		return apperrors.NewInternalError("mark expired: " + err.Error())
	}
	sub.Status = StatusExpired
	return nil
}

// GetPlan resolves read-only plan reference data.
func (s *Store) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	query := `SELECT id, name, video_generations_per_month, comic_generations_per_month FROM plans WHERE id = $1`

	var plan Plan
	err := s.db.QueryRowContext(ctx, query, planID).Scan(
		&plan.ID, &plan.Name, &plan.VideoGenerationsPerMonth, &plan.ComicGenerationsPerMonth,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewPlanConfigMissingError(planID)
		}
		return nil, apperrors.NewInternalError("load plan: " + err.Error())
	}
	return &plan, nil
}

func scanSubscription(row *sql.Row) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status,
		&sub.VideoGenerationsUsed, &sub.ComicGenerationsUsed,
		&sub.ResetDate, &sub.RenewalDate, &sub.Version,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
