// Package kernels replicates the renderer's device programs on the CPU.
//
// The kernels are written the way the shaders are: one invocation per call,
// all shared state touched through atomics, no assumption about the order in
// which invocations or workgroups run. They are a reference and test device,
// not a fast fallback.
package kernels

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
	"golang.org/x/sync/errgroup"
)

// Executor runs dispatches like a device queue. Launching returns as soon as
// the workgroups are queued; workgroups of one dispatch, and of dispatches
// launched back to back, run concurrently in shuffled order. Only Wait, the
// barrier, orders them.
type Executor struct {
	workers int

	mu  sync.Mutex
	rng *rand.Rand
	g   *errgroup.Group

	launched int
}

func NewExecutor(workers int, seed uint64) *Executor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	e := &Executor{
		workers: workers,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	e.g = e.newGroup()
	return e
}

func (e *Executor) newGroup() *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(e.workers)
	return g
}

func (e *Executor) Workers() int {
	return e.workers
}

// Dispatch launches groups workgroups of WorkGroupSize invocations each.
// kernel receives the global invocation id.
func (e *Executor) Dispatch(groups uint32, kernel func(id uint32)) {
	e.launch(groups, volume.WorkGroupSize, kernel)
}

// DispatchIndirect reads the workgroup count from cmd at launch time, the way
// the command processor does. Counts written after the launch are not seen.
func (e *Executor) DispatchIndirect(cmds *volume.CommandSet, slot int, kernel func(id uint32)) {
	e.Dispatch(cmds.Dispatch(slot).X, kernel)
}

// DispatchItems launches enough workgroups to cover n items; invocations past
// n are not run.
func (e *Executor) DispatchItems(n int, kernel func(id uint32)) {
	if n <= 0 {
		return
	}
	groups := (n + volume.WorkGroupSize - 1) / volume.WorkGroupSize
	e.launch(uint32(groups), volume.WorkGroupSize, func(id uint32) {
		if int(id) < n {
			kernel(id)
		}
	})
}

func (e *Executor) launch(groups uint32, size int, kernel func(id uint32)) {
	if groups == 0 {
		return
	}
	e.mu.Lock()
	order := e.rng.Perm(int(groups))
	g := e.g
	e.launched += int(groups)
	e.mu.Unlock()

	for _, wg := range order {
		base := uint32(wg) * uint32(size)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("kernels: workgroup %d: %v", base/uint32(size), r)
				}
			}()
			for i := uint32(0); i < uint32(size); i++ {
				kernel(base + i)
			}
			return nil
		})
	}
}

// Wait is a full barrier: it returns once every launched workgroup finished.
func (e *Executor) Wait() error {
	e.mu.Lock()
	g := e.g
	e.g = e.newGroup()
	e.mu.Unlock()
	return g.Wait()
}

// Launched reports the total workgroups launched since creation.
func (e *Executor) Launched() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.launched
}
