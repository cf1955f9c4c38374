package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradeops/arbiter/internal/models"
)

// gormStore implements Store on Postgres. Transition atomicity comes from
// guarded updates: UPDATE ... WHERE workflow_id = ? AND status = ?. The
// database applies the row update atomically, so only one of two racing
// callers can match the precondition.
type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Create(ctx context.Context, req models.TradeRequest) (*models.Workflow, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trade request: %w", err)
	}

	now := time.Now().UTC()
	wf := models.Workflow{
		WorkflowID: uuid.NewString(),
		Status:     models.StatusRequested,
		Payload:    string(payload),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&wf).Error; err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	return &wf, nil
}

func (s *gormStore) Get(ctx context.Context, workflowID string) (*models.Workflow, error) {
	var wf models.Workflow
	err := s.db.WithContext(ctx).First(&wf, "workflow_id = ?", workflowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	return &wf, nil
}

func (s *gormStore) TransitionToDecision(ctx context.Context, workflowID, decision string, confidenceScore float64, reviewer string) error {
	return s.guardedUpdate(ctx, workflowID, models.StatusRequested, map[string]any{
		"status":           models.StatusForDecision(decision),
		"confidence_score": confidenceScore,
		"decision":         decision,
		"reviewer":         reviewer,
		"updated_at":       time.Now().UTC(),
	})
}

func (s *gormStore) TransitionToFilled(ctx context.Context, workflowID, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("order id required to fill workflow %s", workflowID)
	}
	return s.guardedUpdate(ctx, workflowID, models.StatusApproved, map[string]any{
		"status":     models.StatusFilled,
		"updated_at": time.Now().UTC(),
	})
}

func (s *gormStore) Approve(ctx context.Context, workflowID, approver string) error {
	return s.guardedUpdate(ctx, workflowID, models.StatusRequested, map[string]any{
		"status":     models.StatusApproved,
		"reviewer":   approver,
		"updated_at": time.Now().UTC(),
	})
}

// guardedUpdate applies the updates only when the workflow is currently in
// requiredStatus. Zero rows affected means either the workflow is missing
// (ErrNotFound) or another caller won the race (ErrConflict).
func (s *gormStore) guardedUpdate(ctx context.Context, workflowID, requiredStatus string, updates map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.Workflow{}).
		Where("workflow_id = ? AND status = ?", workflowID, requiredStatus).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update workflow: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	if _, err := s.Get(ctx, workflowID); err != nil {
		return err
	}
	return ErrConflict
}
