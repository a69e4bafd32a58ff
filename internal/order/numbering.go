package order

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultNumberFloor is the first order number handed out.
const DefaultNumberFloor int64 = 1001

// NumberRecord is an order as seen by the repair scan. Number holds whatever the
// document stored: nil, a string, a float, or a proper integer.
type NumberRecord struct {
	ID        string
	CreatedAt time.Time
	Number    any
}

// Assignment is a new order number for one order.
type Assignment struct {
	ID     string
	Number int64
}

// NumberStore is the persistence the order number repair runs against.
type NumberStore interface {
	ScanOrderNumbers(ctx context.Context) ([]NumberRecord, error)
	ApplyOrderNumbers(ctx context.Context, assignments []Assignment, maxUsed int64) error
}

// RepairOrderNumbers gives every order without a usable number a fresh one and moves the
// counter past the highest number in use. Running it twice changes nothing the second time.
func RepairOrderNumbers(ctx context.Context, store NumberStore, floor int64, dryRun bool) ([]Assignment, error) {
	records, err := store.ScanOrderNumbers(ctx)
	if err != nil {
		return nil, err
	}

	assignments, maxUsed := PlanRenumbering(records, floor)
	log.WithFields(log.Fields{
		"scanned":    len(records),
		"reassigned": len(assignments),
		"max_number": maxUsed,
		"dry_run":    dryRun,
	}).Info("order number repair planned")

	if dryRun {
		return assignments, nil
	}
	if err := store.ApplyOrderNumbers(ctx, assignments, maxUsed); err != nil {
		return nil, fmt.Errorf("apply order numbers: %w", err)
	}
	return assignments, nil
}

// PlanRenumbering decides which orders need a new number. In creation order, the first
// order holding a given positive integer keeps it; orders with a missing, non-integer,
// non-positive or already-taken number get the smallest unused integer >= floor.
// It returns the assignments and the highest number in use afterwards.
func PlanRenumbering(records []NumberRecord, floor int64) ([]Assignment, int64) {
	sorted := make([]NumberRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	used := make(map[int64]bool, len(sorted))
	var pending []string
	maxUsed := floor - 1
	for _, r := range sorted {
		n, ok := wellTyped(r.Number)
		if !ok || used[n] {
			pending = append(pending, r.ID)
			continue
		}
		used[n] = true
		if n > maxUsed {
			maxUsed = n
		}
	}

	assignments := make([]Assignment, 0, len(pending))
	next := floor
	for _, id := range pending {
		for used[next] {
			next++
		}
		used[next] = true
		assignments = append(assignments, Assignment{ID: id, Number: next})
		if next > maxUsed {
			maxUsed = next
		}
	}
	return assignments, maxUsed
}

func wellTyped(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, n > 0
	case int32:
		return int64(n), n > 0
	case int:
		return int64(n), n > 0
	}
	return 0, false
}
