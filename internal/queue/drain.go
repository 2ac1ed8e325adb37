package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/item"
)

// ExecFunc replays one operation against the remote service. For a create
// it returns the canonical id assigned by the service.
type ExecFunc func(ctx context.Context, op item.PendingOperation) (canonicalID string, err error)

// Failure records an operation that stayed queued after a drain attempt.
type Failure struct {
	Op  item.PendingOperation
	Err error
}

// DrainReport summarizes a drain pass.
type DrainReport struct {
	Scope     item.Scope
	Attempted int
	Skipped   int
	Acked     []item.PendingOperation
	Failures  []Failure
	// IDMap maps temporary ids to the canonical ids returned by creates.
	IDMap     map[string]string
	Remaining int
}

// Succeeded returns the number of acknowledged operations.
func (r DrainReport) Succeeded() int { return len(r.Acked) }

// Drain replays queued operations in FIFO order, one attempt each.
// Acknowledged operations are removed; failed ones stay with their attempt
// count updated. Once an operation fails, later operations on the same
// target are left untouched for this pass. Operations enqueued while the
// drain runs wait for the next pass. Drains of the same queue never overlap.
func (q *Queue) Drain(ctx context.Context, exec ExecFunc) (DrainReport, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	report := DrainReport{Scope: q.scope, IDMap: make(map[string]string)}
	blocked := make(map[string]bool)

	for _, snap := range q.Pending() {
		if err := ctx.Err(); err != nil {
			report.Remaining = q.Len()
			return report, err
		}

		// re-read: an earlier create may have rewritten the target id
		op, ok := q.get(snap.ID)
		if !ok {
			continue
		}
		if blocked[op.TargetID] {
			report.Skipped++
			drainResultsTotal.WithLabelValues("skipped").Inc()
			continue
		}

		report.Attempted++
		canonicalID, err := exec(ctx, op)
		if err != nil {
			blocked[op.TargetID] = true
			report.Failures = append(report.Failures, Failure{Op: op, Err: err})
			drainResultsTotal.WithLabelValues("failed").Inc()
			q.logger.Warn("queue: replay failed, keeping operation",
				zap.String("op_id", op.ID),
				zap.String("type", string(op.Type)),
				zap.String("target_id", op.TargetID),
				zap.Error(err))
			if perr := q.recordAttempt(ctx, op.ID, err); perr != nil {
				report.Remaining = q.Len()
				return report, perr
			}
			continue
		}

		if op.Type == item.OpCreate && canonicalID != "" && canonicalID != op.TargetID {
			report.IDMap[op.TargetID] = canonicalID
		}
		if err := q.ack(ctx, op, canonicalID); err != nil {
			report.Remaining = q.Len()
			return report, err
		}
		report.Acked = append(report.Acked, op)
		drainResultsTotal.WithLabelValues("acked").Inc()
	}

	report.Remaining = q.Len()
	q.logger.Info("queue: drain complete",
		zap.String("scope", q.scope.String()),
		zap.Int("attempted", report.Attempted),
		zap.Int("acked", len(report.Acked)),
		zap.Int("failed", len(report.Failures)),
		zap.Int("skipped", report.Skipped),
		zap.Int("remaining", report.Remaining))
	return report, nil
}

func (q *Queue) get(opID string) (item.PendingOperation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(opID)
	if idx < 0 {
		return item.PendingOperation{}, false
	}
	return q.ops[idx], true
}

// ack removes op and, for a create that received a canonical id, points
// later operations at that id. Both changes are persisted in one write.
func (q *Queue) ack(ctx context.Context, op item.PendingOperation, canonicalID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(op.ID)
	if idx < 0 {
		return nil
	}
	prev := q.ops
	next := make([]item.PendingOperation, 0, len(prev)-1)
	for i, o := range prev {
		if i == idx {
			continue
		}
		if op.Type == item.OpCreate && canonicalID != "" && o.TargetID == op.TargetID {
			o.TargetID = canonicalID
		}
		next = append(next, o)
	}
	q.ops = next
	if err := q.persistLocked(ctx); err != nil {
		q.ops = prev
		return fmt.Errorf("queue: ack %s: %w", op.ID, err)
	}
	pendingOperations.Dec()
	return nil
}

func (q *Queue) recordAttempt(ctx context.Context, opID string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(opID)
	if idx < 0 {
		return nil
	}
	prev := q.ops[idx]
	q.ops[idx].Attempts++
	q.ops[idx].LastError = cause.Error()
	if err := q.persistLocked(ctx); err != nil {
		q.ops[idx] = prev
		return fmt.Errorf("queue: record attempt %s: %w", opID, err)
	}
	return nil
}
