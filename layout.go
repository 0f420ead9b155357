package diesel

import (
	"fmt"

	"github.com/andewx/diesel/driver"
)

// Layout is the state of an image in the transition protocol:
//
//	Undefined -> TransferDst -> TransferSrc (one mip at a time while blitting)
//	                         -> ShaderColor
//	                         -> Color / Depth (attachments)
//	                         -> Present
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutTransferDst
	LayoutTransferSrc
	LayoutShaderColor
	LayoutColor
	LayoutDepth
	LayoutPresent
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutTransferDst:
		return "TransferDst"
	case LayoutTransferSrc:
		return "TransferSrc"
	case LayoutShaderColor:
		return "ShaderColor"
	case LayoutColor:
		return "Color"
	case LayoutDepth:
		return "Depth"
	case LayoutPresent:
		return "Present"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

func (l Layout) driverLayout() driver.ImageLayout {
	switch l {
	case LayoutUndefined:
		return driver.LayoutUndefined
	case LayoutTransferDst:
		return driver.LayoutTransferDst
	case LayoutTransferSrc:
		return driver.LayoutTransferSrc
	case LayoutShaderColor:
		return driver.LayoutShaderReadOnly
	case LayoutColor:
		return driver.LayoutColorAttachment
	case LayoutDepth:
		return driver.LayoutDepthAttachment
	case LayoutPresent:
		return driver.LayoutPresentSrc
	}
	panic(fmt.Sprintf("diesel: unknown layout %d", int(l)))
}

// access returns the access mask and pipeline stage a layout stands for.
// Barriers use it for both sides; nothing else goes into a barrier mask.
func (l Layout) access() (driver.Access, driver.PipelineStage) {
	switch l {
	case LayoutUndefined:
		return driver.AccessNone, driver.StageTopOfPipe
	case LayoutTransferDst:
		return driver.AccessTransferWrite, driver.StageTransfer
	case LayoutTransferSrc:
		return driver.AccessTransferRead, driver.StageTransfer
	case LayoutShaderColor:
		return driver.AccessShaderRead, driver.StageFragmentShader
	case LayoutColor:
		return driver.AccessColorRead | driver.AccessColorWrite, driver.StageColorAttachmentOutput
	case LayoutDepth:
		return driver.AccessDepthRead | driver.AccessDepthWrite, driver.StageEarlyFragmentTests | driver.StageLateFragmentTests
	case LayoutPresent:
		return driver.AccessMemoryRead, driver.StageBottomOfPipe
	}
	panic(fmt.Sprintf("diesel: unknown layout %d", int(l)))
}

// barrier builds the single barrier for a transition of rng from old to
// new, along with the stages it waits on and blocks.
func barrier(img driver.Image, rng driver.SubresourceRange, old, new Layout) (driver.ImageBarrier, driver.PipelineStage, driver.PipelineStage) {
	srcAccess, srcStage := old.access()
	dstAccess, dstStage := new.access()
	return driver.ImageBarrier{
		Image:     img,
		OldLayout: old.driverLayout(),
		NewLayout: new.driverLayout(),
		SrcAccess: srcAccess,
		DstAccess: dstAccess,
		Range:     rng,
	}, srcStage, dstStage
}
