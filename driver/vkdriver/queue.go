package vkdriver

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/diesel/driver"
)

func (d *Driver) CreateFence(signaled bool) (driver.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	ret := vk.CreateFence(d.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &f)
	if err := check("vkCreateFence", ret); err != nil {
		return 0, err
	}
	return add(d, &d.fences, f), nil
}

// WaitFence blocks until f is signaled or timeout nanoseconds pass.
func (d *Driver) WaitFence(h driver.Fence, timeout uint64) error {
	f, ok := lookup(d, &d.fences, h)
	if !ok {
		return badHandle("WaitFence", h)
	}
	return check("vkWaitForFences", vk.WaitForFences(d.device, 1, []vk.Fence{f}, vk.True, timeout))
}

func (d *Driver) ResetFence(h driver.Fence) error {
	f, ok := lookup(d, &d.fences, h)
	if !ok {
		return badHandle("ResetFence", h)
	}
	return check("vkResetFences", vk.ResetFences(d.device, 1, []vk.Fence{f}))
}

func (d *Driver) DestroyFence(h driver.Fence) {
	if f, ok := take(d, &d.fences, h); ok {
		vk.DestroyFence(d.device, f, nil)
	}
}

func (d *Driver) CreateSemaphore() (driver.Semaphore, error) {
	var s vk.Semaphore
	ret := vk.CreateSemaphore(d.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &s)
	if err := check("vkCreateSemaphore", ret); err != nil {
		return 0, err
	}
	return add(d, &d.semaphores, s), nil
}

func (d *Driver) DestroySemaphore(h driver.Semaphore) {
	if s, ok := take(d, &d.semaphores, h); ok {
		vk.DestroySemaphore(d.device, s, nil)
	}
}

func (d *Driver) semaphoreList(op string, hs []driver.Semaphore) ([]vk.Semaphore, error) {
	out := make([]vk.Semaphore, len(hs))
	for i, h := range hs {
		s, ok := lookup(d, &d.semaphores, h)
		if !ok {
			return nil, badHandle(op, h)
		}
		out[i] = s
	}
	return out, nil
}

func (d *Driver) Submit(info driver.SubmitInfo, fh driver.Fence) error {
	if len(info.WaitStages) != len(info.Wait) {
		return driver.Errorf("Submit", driver.ErrInvalidUsage, "%d wait semaphores with %d stages", len(info.Wait), len(info.WaitStages))
	}
	cmds := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, h := range info.CommandBuffers {
		cb, ok := lookup(d, &d.cmds, h)
		if !ok {
			return badHandle("Submit", h)
		}
		cmds[i] = cb.vk
	}
	wait, err := d.semaphoreList("Submit", info.Wait)
	if err != nil {
		return err
	}
	signal, err := d.semaphoreList("Submit", info.Signal)
	if err != nil {
		return err
	}
	stages := make([]vk.PipelineStageFlags, len(info.WaitStages))
	for i, s := range info.WaitStages {
		stages[i] = vkStage(s)
	}
	fence := vk.Fence(vk.NullHandle)
	if fh != 0 {
		f, ok := lookup(d, &d.fences, fh)
		if !ok {
			return badHandle("Submit", fh)
		}
		fence = f
	}

	d.qmu.Lock()
	defer d.qmu.Unlock()
	ret := vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(cmds)),
		PCommandBuffers:      cmds,
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}}, fence)
	return check("vkQueueSubmit", ret)
}

func (d *Driver) WaitIdle() error {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	return check("vkQueueWaitIdle", vk.QueueWaitIdle(d.queue))
}
