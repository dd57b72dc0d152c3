// Package plan implements the proposed-plan store and lifecycle. The store
// is partitioned by conversation session: each session owns its own plan
// table and single active-plan pointer, so concurrent sessions never observe
// each other's state.
package plan

import (
	"fmt"
	"sync"

	"dirigent/internal/logging"
	"dirigent/internal/types"
)

// legalEdges is the full transition table. Any edge not listed here is an
// invariant violation.
var legalEdges = map[types.PlanStatus]map[types.PlanStatus]bool{
	types.PlanStatusProposed: {
		types.PlanStatusExecuting: true,
		types.PlanStatusModified:  true,
		types.PlanStatusRejected:  true,
	},
	types.PlanStatusExecuting: {
		types.PlanStatusCompleted: true,
		types.PlanStatusRejected:  true, // abort
	},
}

// terminal statuses leave the fast-lookup table.
func terminal(s types.PlanStatus) bool {
	return s == types.PlanStatusCompleted || s == types.PlanStatusRejected
}

// sessionState holds one session's plans and active pointer.
type sessionState struct {
	plans  map[string]*types.ProposedPlan
	active string // plan id; empty means no active plan
}

// Store is the process-wide plan table, keyed by session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
}

// NewStore creates an empty plan store.
func NewStore() *Store {
	logging.Plan("creating plan store")
	return &Store{
		sessions: make(map[string]*sessionState),
	}
}

func (s *Store) session(id string) *sessionState {
	ss := s.sessions[id]
	if ss == nil {
		ss = &sessionState{plans: make(map[string]*types.ProposedPlan)}
		s.sessions[id] = ss
	}
	return ss
}

// Propose stores a new plan with status proposed and sets it as the active
// pointer, superseding (but not deleting) any previously active plan.
func (s *Store) Propose(sessionID string, p *types.ProposedPlan) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ss := s.session(sessionID)
	p.Status = types.PlanStatusProposed
	ss.plans[p.ID] = p

	if ss.active != "" && ss.active != p.ID {
		logging.Plan("session %s: plan %s supersedes active %s", sessionID, p.ID, ss.active)
	}
	ss.active = p.ID

	logging.Plan("session %s: proposed plan %s with %d steps", sessionID, p.ID, len(p.Steps))
	return p.ID, nil
}

// Get returns the plan with the given id for the session.
func (s *Store) Get(sessionID, id string) (*types.ProposedPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ss := s.sessions[sessionID]
	if ss == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrPlanNotFound, id)
	}
	p, ok := ss.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrPlanNotFound, id)
	}
	return p, nil
}

// Active returns the session's active plan, or nil if none.
func (s *Store) Active(sessionID string) *types.ProposedPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ss := s.sessions[sessionID]
	if ss == nil || ss.active == "" {
		return nil
	}
	return ss.plans[ss.active]
}

// Transition moves a plan along one legal lifecycle edge. Illegal edges fail
// with ErrIllegalTransition and leave the stored status unchanged. Plans
// reaching a terminal status are removed from the fast-lookup table (and the
// active pointer, if they held it); the returned plan is the caller's to
// archive. The read-modify-write sequence holds the store lock throughout.
func (s *Store) Transition(sessionID, id string, to types.PlanStatus) (*types.ProposedPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss := s.sessions[sessionID]
	if ss == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrPlanNotFound, id)
	}
	p, ok := ss.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrPlanNotFound, id)
	}

	if !legalEdges[p.Status][to] {
		return nil, fmt.Errorf("%w: %s -> %s (plan %s)", types.ErrIllegalTransition, p.Status, to, id)
	}

	from := p.Status
	p.Status = to
	logging.Plan("session %s: plan %s %s -> %s", sessionID, id, from, to)

	if terminal(to) {
		delete(ss.plans, id)
		if ss.active == id {
			ss.active = ""
		}
	}
	return p, nil
}

// ClearActive nulls the active pointer without deleting the plan record.
func (s *Store) ClearActive(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss := s.sessions[sessionID]
	if ss == nil {
		return
	}
	if ss.active != "" {
		logging.PlanDebug("session %s: active pointer cleared (was %s)", sessionID, ss.active)
	}
	ss.active = ""
}

// Len returns the number of plans in the session's fast-lookup table.
func (s *Store) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ss := s.sessions[sessionID]
	if ss == nil {
		return 0
	}
	return len(ss.plans)
}
