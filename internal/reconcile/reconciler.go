// ABOUTME: Reconciler converging each instance record toward its desired state.
// ABOUTME: Passes run through a coalescing queue keyed by instance id.

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/face-gateway/internal/coalesce"
)

// Reconciler drives instances toward their desired state.
type Reconciler struct {
	// mu serialises read-modify-write cycles on records.
	mu       sync.Mutex
	records  *Records
	provider Provider
	queue    *coalesce.Queue[*Instance]
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler creates a reconciler whose passes run with ctx.
func NewReconciler(ctx context.Context, records *Records, provider Provider, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		records:  records,
		provider: provider,
		queue:    coalesce.New[*Instance](ctx, logger.With("component", "reconcile-queue")),
		logger:   logger,
		now:      time.Now,
	}
}

// Records exposes the record store.
func (r *Reconciler) Records() *Records {
	return r.records
}

// Kick schedules a reconcile pass for id. Every job for an id is the same
// "reconcile this id from its record" closure, so a discarded duplicate
// loses nothing.
func (r *Reconciler) Kick(id string) *coalesce.Future[*Instance] {
	return r.queue.Enqueue(id, func(ctx context.Context) (*Instance, error) {
		return r.reconcile(ctx, id)
	})
}

// KickAll schedules a pass for every record.
func (r *Reconciler) KickAll() error {
	insts, err := r.records.List()
	for _, inst := range insts {
		r.Kick(inst.ID)
	}
	return err
}

// Pending lists ids with a pass running or queued.
func (r *Reconciler) Pending() []string {
	return r.queue.Keys()
}

// Wait blocks until every queued pass has finished.
func (r *Reconciler) Wait() {
	r.queue.Wait()
}

// save writes the reconciler-owned fields of inst onto the current record,
// leaving operator fields changed since the pass began intact.
func (r *Reconciler) save(inst *Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, err := r.records.Read(inst.ID)
	if err != nil {
		return err
	}
	cur.Actual = inst.Actual
	cur.MachineID = inst.MachineID
	cur.LastError = inst.LastError
	cur.UpdatedAt = r.now().UTC()
	inst.UpdatedAt = cur.UpdatedAt
	return r.records.Write(cur)
}

// remove deletes the record unless the operator changed their mind since
// the pass began.
func (r *Reconciler) remove(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, err := r.records.Read(id)
	if errors.Is(err, ErrInstanceNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if cur.Desired != DesiredStopped || !cur.Remove || cur.MachineID != "" {
		return false, nil
	}
	return true, r.records.Delete(id)
}

// fail records err on inst and returns it.
func (r *Reconciler) fail(inst *Instance, actual ActualState, err error) (*Instance, error) {
	inst.Actual = actual
	inst.LastError = err.Error()
	if werr := r.save(inst); werr != nil {
		err = errors.Join(err, werr)
	}
	r.logger.Error("reconcile failed", "instance", inst.ID, "error", err)
	return inst, err
}

// reconcile runs one pass for id from its current record.
func (r *Reconciler) reconcile(ctx context.Context, id string) (*Instance, error) {
	inst, err := r.records.Read(id)
	if err != nil {
		return nil, err
	}
	if err := inst.Validate(); err != nil {
		return inst, err
	}

	logger := r.logger.With("instance", id)
	logger.Debug("reconciling", "desired", inst.Desired, "actual", inst.Actual, "machine", inst.MachineID)

	switch inst.Desired {
	case DesiredRunning:
		return r.ensureRunning(ctx, inst, logger)
	default:
		return r.ensureStopped(ctx, inst, logger)
	}
}

func (r *Reconciler) ensureRunning(ctx context.Context, inst *Instance, logger *slog.Logger) (*Instance, error) {
	if inst.MachineID != "" {
		alive, err := r.provider.Running(ctx, inst.MachineID)
		if err != nil {
			return r.fail(inst, ActualQueued, fmt.Errorf("checking machine %s: %w", inst.MachineID, err))
		}
		if alive {
			if inst.Actual != ActualRunning || inst.LastError != "" {
				inst.Actual = ActualRunning
				inst.LastError = ""
				if err := r.save(inst); err != nil {
					return inst, err
				}
			}
			return inst, nil
		}
		logger.Warn("machine gone, restarting", "machine", inst.MachineID)
		inst.MachineID = ""
	}

	inst.Actual = ActualStarting
	if err := r.save(inst); err != nil {
		return inst, err
	}

	machineID, err := r.provider.Start(ctx, inst)
	if err != nil {
		return r.fail(inst, ActualQueued, err)
	}

	inst.MachineID = machineID
	inst.Actual = ActualRunning
	inst.LastError = ""
	if err := r.save(inst); err != nil {
		return inst, err
	}
	logger.Info("instance running", "machine", machineID)
	return inst, nil
}

func (r *Reconciler) ensureStopped(ctx context.Context, inst *Instance, logger *slog.Logger) (*Instance, error) {
	if inst.MachineID != "" {
		inst.Actual = ActualStopping
		if err := r.save(inst); err != nil {
			return inst, err
		}
		if err := r.provider.Stop(ctx, inst.MachineID); err != nil {
			return r.fail(inst, ActualStopping, fmt.Errorf("stopping machine %s: %w", inst.MachineID, err))
		}
		logger.Info("instance stopped", "machine", inst.MachineID)
		inst.MachineID = ""
	}

	if inst.Remove {
		inst.Actual = ActualStopped
		inst.LastError = ""
		if err := r.save(inst); err != nil {
			return inst, err
		}
		removed, err := r.remove(inst.ID)
		if err != nil {
			return inst, err
		}
		if removed {
			logger.Info("instance removed")
		}
		return inst, nil
	}

	if inst.Actual != ActualStopped || inst.LastError != "" {
		inst.Actual = ActualStopped
		inst.LastError = ""
		if err := r.save(inst); err != nil {
			return inst, err
		}
	}
	return inst, nil
}

// Create writes a new record that should run and kicks it.
func (r *Reconciler) Create(inst *Instance) (*coalesce.Future[*Instance], error) {
	r.mu.Lock()
	err := CreateRecord(r.records, inst, r.now())
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Kick(inst.ID), nil
}

// SetDesired changes the desired state of an existing record and kicks it.
// remove marks the record for deletion once stopped.
func (r *Reconciler) SetDesired(id string, desired DesiredState, remove bool) (*coalesce.Future[*Instance], error) {
	r.mu.Lock()
	err := SetDesiredRecord(r.records, id, desired, remove, r.now())
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Kick(id), nil
}

// CreateRecord writes a new record that should run. It is used directly by
// clients that notify a remote reconciler with a kick.
func CreateRecord(records *Records, inst *Instance, now time.Time) error {
	if _, err := records.Read(inst.ID); err == nil {
		return fmt.Errorf("%w: %s already exists", ErrInvalidInstance, inst.ID)
	}
	inst.Desired = DesiredRunning
	inst.Actual = ActualQueued
	inst.MachineID = ""
	inst.Remove = false
	inst.LastError = ""
	inst.UpdatedAt = now.UTC()
	if err := inst.Validate(); err != nil {
		return err
	}
	return records.Write(inst)
}

// SetDesiredRecord changes the desired state of an existing record.
func SetDesiredRecord(records *Records, id string, desired DesiredState, remove bool, now time.Time) error {
	inst, err := records.Read(id)
	if err != nil {
		return err
	}
	inst.Desired = desired
	inst.Remove = remove && desired == DesiredStopped
	inst.UpdatedAt = now.UTC()
	if err := inst.Validate(); err != nil {
		return err
	}
	return records.Write(inst)
}
