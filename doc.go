// Package diesel is the GPU resource and frame-lifecycle layer of the
// diesel engine.
//
// A Device owns the queue and a small ring of frame slots. Each frame the
// caller advances to the next slot, records into its Commands, submits and
// presents:
//
//	dev.AdvanceFrame()
//	if sc.Next(dev.AcquireSemaphore()) {
//		// rebuild the swapchain and its targets
//	}
//	uniforms.UpdateIfNeeded()
//	target := targets[sc.Current()]
//	target.Begin(dev.Commands())
//	// draw
//	target.End(dev.Commands())
//	dev.Submit(true)
//	if dev.Present(sc) {
//		// rebuild the swapchain and its targets
//	}
//
// Resources are never destroyed while the GPU may still use them: Destroy
// hands them to the Device, which releases them after the fence of the
// frame that freed them has been waited.
//
// Driver failures panic. Malformed shader bytecode, shader descriptor
// files and violated preconditions are returned as errors.
package diesel
