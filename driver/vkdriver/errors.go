package vkdriver

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/diesel/driver"
)

// result maps a Vulkan result code onto the driver's.
func result(ret vk.Result) driver.Result {
	switch ret {
	case vk.Success:
		return driver.Success
	case vk.ErrorOutOfHostMemory:
		return driver.ErrOutOfHostMemory
	case vk.ErrorOutOfDeviceMemory, vk.ErrorFragmentedPool, vk.ErrorOutOfPoolMemory:
		return driver.ErrOutOfDeviceMemory
	case vk.ErrorInitializationFailed, vk.ErrorLayerNotPresent, vk.ErrorExtensionNotPresent, vk.ErrorFeatureNotPresent:
		return driver.ErrInitializationFailed
	case vk.ErrorDeviceLost:
		return driver.ErrDeviceLost
	case vk.ErrorMemoryMapFailed:
		return driver.ErrMemoryMapFailed
	case vk.ErrorTooManyObjects:
		return driver.ErrTooManyObjects
	case vk.ErrorFormatNotSupported:
		return driver.ErrFormatNotSupported
	case vk.ErrorIncompatibleDriver:
		return driver.ErrIncompatibleDriver
	case vk.ErrorSurfaceLost, vk.ErrorNativeWindowInUse:
		return driver.ErrSurfaceLost
	case vk.ErrorOutOfDate:
		return driver.ErrOutOfDate
	case vk.Suboptimal:
		return driver.ErrSuboptimal
	case vk.Timeout, vk.NotReady:
		return driver.ErrTimeout
	}
	return driver.ErrUnknown
}

// check turns a failing Vulkan result into a *driver.Error naming the call.
func check(op string, ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return &driver.Error{Op: op, Result: result(ret), Detail: vk.Error(ret).Error()}
}

func badHandle(op string, h any) error {
	return driver.Errorf(op, driver.ErrInvalidHandle, "%v", h)
}
