package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

var (
	// ErrMoveInProgress rejects a move while another one is in flight on the
	// same board. Transient: the caller should simply try again.
	ErrMoveInProgress = errors.New("a lead movement is already in progress")

	// ErrLeadNotInView means the lead is absent from the local board
	// snapshot; a stale-view condition, not a server failure.
	ErrLeadNotInView = errors.New("lead not found in the current board view")
)

// MoveState tracks one movement operation through its lifecycle.
// MoveConfirmed and MoveRolledBack are the only terminal states.
type MoveState int

const (
	MoveIdle MoveState = iota
	MoveValidating
	MoveOptimisticallyApplied
	MovePersisting
	MoveConfirmed
	MoveRolledBack
)

func (s MoveState) String() string {
	switch s {
	case MoveIdle:
		return "idle"
	case MoveValidating:
		return "validating"
	case MoveOptimisticallyApplied:
		return "optimistically_applied"
	case MovePersisting:
		return "persisting"
	case MoveConfirmed:
		return "confirmed"
	case MoveRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// MoveState is rendered by name on the wire.
func (s MoveState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *MoveState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, state := range []MoveState{MoveIdle, MoveValidating, MoveOptimisticallyApplied, MovePersisting, MoveConfirmed, MoveRolledBack} {
		if state.String() == name {
			*s = state
			return nil
		}
	}
	return errors.Errorf("unknown move state %q", name)
}

// MoveResult reports the terminal state of a movement and, when confirmed,
// the lead as persisted by the store.
type MoveResult struct {
	State MoveState `json:"state"`
	Lead  Lead      `json:"lead"`
	NoOp  bool      `json:"no_op"`
}

// TargetValidator decides whether a column is a legal movement target.
// *Service is the production implementation.
type TargetValidator interface {
	ValidateTarget(ctx context.Context, targetColumnID, leadPipelineID string) (Column, error)
}

// Mover executes lead movements end-to-end with optimistic-update semantics:
// the board snapshot is mutated before the store confirms, and restored
// wholesale if persistence fails. At most one move per board is in flight at
// a time; concurrent attempts are rejected, not queued.
type Mover struct {
	store     LeadRepository
	validator TargetValidator
	cache     BoardCache
	notifier  Notifier

	settleDelay     time.Duration
	invalidateDelay time.Duration
	afterFunc       func(d time.Duration, f func()) // swapped out in tests

	mutex    sync.Mutex
	inFlight map[string]bool // board signature key -> busy
}

func NewMover(store LeadRepository, validator TargetValidator, cache BoardCache, notifier Notifier, conf core.CRMConfig) *Mover {
	return &Mover{
		store:           store,
		validator:       validator,
		cache:           cache,
		notifier:        notifier,
		settleDelay:     conf.SettleDelay,
		invalidateDelay: conf.InvalidateDelay,
		afterFunc:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		inFlight:        make(map[string]bool),
	}
}

func (m *Mover) acquire(key string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.inFlight[key] {
		return false
	}
	m.inFlight[key] = true
	return true
}

// release clears the board lock after the settling delay, so that the board
// has repainted before the next gesture is accepted.
func (m *Mover) release(key string) {
	m.afterFunc(m.settleDelay, func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		delete(m.inFlight, key)
	})
}

// MoveLeadToColumn moves one lead to a target column on the board identified
// by sig. On persistence failure, the board snapshot is restored to its
// pre-move contents unconditionally.
func (m *Mover) MoveLeadToColumn(ctx context.Context, sig FilterSignature, leadID, targetColumnID string) (MoveResult, error) {
	if leadID == "" {
		return MoveResult{}, core.NewValidationError(nil, core.FieldError{Field: "lead_id", Error: "this field is required"})
	}
	if targetColumnID == "" {
		return MoveResult{}, core.NewValidationError(nil, core.FieldError{Field: "target_column_id", Error: "this field is required"})
	}

	key := sig.Key()
	if !m.acquire(key) {
		return MoveResult{}, ErrMoveInProgress
	}
	defer m.release(key)

	// look the lead up in the local projection; a move cannot proceed
	// against stale/missing local data
	snapshot, ok := m.cache.Snapshot(sig)
	if !ok {
		return MoveResult{}, ErrLeadNotInView
	}
	var lead Lead
	var found bool
	for _, l := range snapshot {
		if l.ID == leadID {
			lead, found = l, true
			break
		}
	}
	if !found {
		return MoveResult{}, ErrLeadNotInView
	}

	// no-op move
	if lead.ColumnID == targetColumnID {
		return MoveResult{State: MoveConfirmed, Lead: lead, NoOp: true}, nil
	}

	col, err := m.validator.ValidateTarget(ctx, targetColumnID, lead.PipelineID)
	if err != nil {
		m.notifier.Error(moveErrorMessage(lead, err))
		return MoveResult{State: MoveValidating}, err
	}

	// optimistic apply: the board reflects the move before the store confirms
	now := time.Now().UTC()
	m.cache.Apply(sig, func(leads []Lead) []Lead {
		for i := range leads {
			if leads[i].ID == leadID {
				leads[i].ColumnID = targetColumnID
				leads[i].UpdatedAt = now
			}
		}
		return leads
	})

	confirmed, err := m.store.UpdateLeadColumn(ctx, leadID, targetColumnID, now)
	if err != nil {
		m.cache.Restore(sig, snapshot)
		m.notifier.Error(moveErrorMessage(lead, err))
		return MoveResult{State: MoveRolledBack}, err
	}

	// let the optimistic render settle before forcing a refetch
	m.afterFunc(m.invalidateDelay, func() { m.cache.Invalidate(sig) })
	m.notifier.Success(fmt.Sprintf("%s moved to %s", lead.Name, col.Name))
	return MoveResult{State: MoveConfirmed, Lead: confirmed}, nil
}

// moveErrorMessage classifies a movement failure for display. Rollback
// behavior upstream is identical regardless of classification.
func moveErrorMessage(lead Lead, err error) string {
	var mismatch *PipelineMismatchError
	switch {
	case errors.As(err, &mismatch):
		return fmt.Sprintf("%s cannot move to %q: it belongs to a different pipeline", lead.Name, mismatch.ColumnName)
	case errors.Cause(err) == ErrColumnNotFound, errors.Cause(err) == ErrColumnInactive:
		return fmt.Sprintf("%s cannot be moved: %s", lead.Name, errors.Cause(err))
	case errors.Cause(err) == ErrLeadGone:
		return fmt.Sprintf("%s could not be moved: no permission or the lead was deleted", lead.Name)
	default:
		return fmt.Sprintf("%s could not be moved, please try again", lead.Name)
	}
}
