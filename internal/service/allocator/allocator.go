// Package allocator mints random six-digit profile ids.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
)

const (
	MinID       = 100000
	MaxID       = 999999 // exclusive
	MaxAttempts = 20
)

// ErrAllocationExhausted means every attempt hit an existing id.  The id
// space is close to full; ids are never handed out sequentially instead.
var ErrAllocationExhausted = errors.New("profile id allocation exhausted")

// Checker reports whether an id is already in use.
type Checker interface {
	IDExists(ctx context.Context, id uint64) (bool, error)
}

// Recorder receives allocation outcomes.  *metrics.Metrics satisfies it.
type Recorder interface {
	AllocationConflict()
	Exhausted()
}

type Allocator struct {
	ids  Checker
	rec  Recorder
	log  *zap.Logger
	draw func() uint64
}

func New(ids Checker, rec Recorder, log *zap.Logger) *Allocator {
	return &Allocator{
		ids:  ids,
		rec:  rec,
		log:  log,
		draw: func() uint64 { return uint64(MinID + rand.IntN(MaxID-MinID)) },
	}
}

// Allocate returns an id from [MinID, MaxID) that was free at the time of
// the check.  Callers must still treat a primary-key collision on insert as
// a reason to allocate again.
func (a *Allocator) Allocate(ctx context.Context) (uint64, error) {
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		id := a.draw()
		taken, err := a.ids.IDExists(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("check id %d: %w", id, err)
		}
		if !taken {
			return id, nil
		}
		if a.rec != nil {
			a.rec.AllocationConflict()
		}
	}
	if a.rec != nil {
		a.rec.Exhausted()
	}
	a.log.Error("profile id allocation exhausted", zap.Int("attempts", MaxAttempts))
	return 0, ErrAllocationExhausted
}
