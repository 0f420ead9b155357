package soft

import (
	"time"

	"github.com/andewx/diesel/driver"
)

type fence struct {
	signaled bool
	pending  bool
	// done is closed when the fence becomes signaled.
	done chan struct{}
}

func newFence(signaled bool) *fence {
	f := &fence{signaled: signaled, done: make(chan struct{})}
	if signaled {
		close(f.done)
	}
	return f
}

func (f *fence) signal() {
	if !f.signaled {
		f.signaled = true
		f.pending = false
		close(f.done)
	}
}

type semaphore struct {
	signals int
}

func (d *Driver) CreateFence(signaled bool) (driver.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.Fence(d.newHandle("fence"))
	d.fences[h] = newFence(signaled)
	return h, nil
}

// WaitFence blocks until f is signaled. Waiting on a fence that was never
// submitted would never return, so it fails with ErrTimeout instead.
func (d *Driver) WaitFence(h driver.Fence, timeout uint64) error {
	d.mu.Lock()
	f := d.fences[h]
	if f == nil {
		d.mu.Unlock()
		return badHandle("soft.WaitFence", h)
	}
	if f.signaled {
		d.mu.Unlock()
		return nil
	}
	if !f.pending || timeout == 0 {
		d.mu.Unlock()
		return driver.Errorf("soft.WaitFence", driver.ErrTimeout, "fence %d is not pending", h)
	}
	done := f.done
	d.mu.Unlock()

	if timeout == driver.Infinite {
		<-done
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(time.Duration(timeout)):
		return driver.Errorf("soft.WaitFence", driver.ErrTimeout, "fence %d", h)
	}
}

func (d *Driver) ResetFence(h driver.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.fences[h]
	if f == nil {
		return badHandle("soft.ResetFence", h)
	}
	if f.pending {
		return invalid("soft.ResetFence", "fence %d is in use by the queue", h)
	}
	if f.signaled {
		*f = fence{done: make(chan struct{})}
	}
	return nil
}

func (d *Driver) DestroyFence(h driver.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fences, h)
	d.drop(driver.Handle(h))
}

func (d *Driver) CreateSemaphore() (driver.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.Semaphore(d.newHandle("semaphore"))
	d.semaphores[h] = &semaphore{}
	return h, nil
}

func (d *Driver) DestroySemaphore(h driver.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, h)
	d.drop(driver.Handle(h))
}

// Submit replays the command buffers in order. The first failing command
// aborts the batch and is returned; the fence is still signaled so callers
// waiting on it do not hang.
func (d *Driver) Submit(info driver.SubmitInfo, fh driver.Fence) error {
	const name = "soft.Submit"
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(info.Wait) != len(info.WaitStages) {
		return invalid(name, "%d wait semaphores with %d stages", len(info.Wait), len(info.WaitStages))
	}
	var f *fence
	if fh != 0 {
		if f = d.fences[fh]; f == nil {
			return badHandle(name, fh)
		}
		if f.signaled || f.pending {
			return invalid(name, "fence %d must be reset before submission", fh)
		}
	}
	for _, s := range info.Wait {
		sem := d.semaphores[s]
		if sem == nil {
			return badHandle(name, s)
		}
		if sem.signals == 0 {
			return invalid(name, "wait on semaphore %d that has no pending signal", s)
		}
	}
	for _, h := range info.CommandBuffers {
		cb := d.cmds[h]
		if cb == nil {
			return badHandle(name, h)
		}
		if cb.state != cbExecutable {
			return invalid(name, "command buffer %d is not executable", h)
		}
	}

	for _, s := range info.Wait {
		d.semaphores[s].signals--
	}
	d.counters.Submits++
	var err error
	for _, h := range info.CommandBuffers {
		cb := d.cmds[h]
		for _, o := range cb.ops {
			if err = o(d); err != nil {
				break
			}
		}
		if cb.oneTime {
			cb.state = cbInitial
		}
		if err != nil {
			break
		}
	}
	for _, s := range info.Signal {
		if sem := d.semaphores[s]; sem != nil {
			sem.signals++
		}
	}
	if f != nil {
		if d.manual && err == nil {
			f.pending = true
			d.pending = append(d.pending, fh)
		} else {
			f.signal()
		}
	}
	return err
}

func (d *Driver) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.pending) > 0 {
		d.idle.Wait()
	}
	return nil
}

// Complete signals the oldest pending fence. It reports false when nothing
// is pending. Only meaningful with ManualFences.
func (d *Driver) Complete() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.pending) > 0 {
		h := d.pending[0]
		d.pending = d.pending[1:]
		if f := d.fences[h]; f != nil {
			f.signal()
			if len(d.pending) == 0 {
				d.idle.Broadcast()
			}
			return true
		}
	}
	d.idle.Broadcast()
	return false
}

// CompleteAll signals every pending fence.
func (d *Driver) CompleteAll() {
	for d.Complete() {
	}
}

// Pending returns the number of submitted fences not yet signaled.
func (d *Driver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
