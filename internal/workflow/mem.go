package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradeops/arbiter/internal/models"
)

// MemStore is an in-memory Store for local development and tests.
// A single mutex makes every check-then-write atomic.
type MemStore struct {
	mu        sync.Mutex
	workflows map[string]*models.Workflow
}

func NewMemStore() *MemStore {
	return &MemStore{workflows: make(map[string]*models.Workflow)}
}

func (s *MemStore) Create(_ context.Context, req models.TradeRequest) (*models.Workflow, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trade request: %w", err)
	}

	now := time.Now().UTC()
	wf := &models.Workflow{
		WorkflowID: uuid.NewString(),
		Status:     models.StatusRequested,
		Payload:    string(payload),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	s.workflows[wf.WorkflowID] = wf
	s.mu.Unlock()

	copied := *wf
	return &copied, nil
}

func (s *MemStore) Get(_ context.Context, workflowID string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[workflowID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *wf
	return &copied, nil
}

func (s *MemStore) TransitionToDecision(_ context.Context, workflowID, decision string, confidenceScore float64, reviewer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[workflowID]
	if !ok {
		return ErrNotFound
	}
	if wf.Status != models.StatusRequested {
		return ErrConflict
	}

	score := confidenceScore
	d := decision
	r := reviewer
	wf.Status = models.StatusForDecision(decision)
	wf.ConfidenceScore = &score
	wf.Decision = &d
	wf.Reviewer = &r
	wf.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) TransitionToFilled(_ context.Context, workflowID, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("order id required to fill workflow %s", workflowID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[workflowID]
	if !ok {
		return ErrNotFound
	}
	if wf.Status != models.StatusApproved {
		return ErrConflict
	}
	wf.Status = models.StatusFilled
	wf.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) Approve(_ context.Context, workflowID, approver string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[workflowID]
	if !ok {
		return ErrNotFound
	}
	if wf.Status != models.StatusRequested {
		return ErrConflict
	}
	a := approver
	wf.Status = models.StatusApproved
	wf.Reviewer = &a
	wf.UpdatedAt = time.Now().UTC()
	return nil
}

var _ Store = (*MemStore)(nil)
