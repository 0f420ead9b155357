package driver

import "fmt"

// Result is a driver result code. The zero value is success and is never
// returned as an error.
type Result int32

const (
	Success Result = iota
	ErrOutOfHostMemory
	ErrOutOfDeviceMemory
	ErrInitializationFailed
	ErrDeviceLost
	ErrMemoryMapFailed
	ErrTooManyObjects
	ErrFormatNotSupported
	ErrIncompatibleDriver
	ErrSurfaceLost
	ErrOutOfDate
	ErrSuboptimal
	ErrTimeout
	ErrInvalidHandle
	ErrInvalidUsage
	ErrUnknown
)

var resultNames = [...]string{
	Success:                 "success",
	ErrOutOfHostMemory:      "out of host memory",
	ErrOutOfDeviceMemory:    "out of device memory",
	ErrInitializationFailed: "initialization failed",
	ErrDeviceLost:           "device lost",
	ErrMemoryMapFailed:      "memory map failed",
	ErrTooManyObjects:       "too many objects",
	ErrFormatNotSupported:   "format not supported",
	ErrIncompatibleDriver:   "incompatible driver",
	ErrSurfaceLost:          "surface lost",
	ErrOutOfDate:            "swapchain out of date",
	ErrSuboptimal:           "swapchain suboptimal",
	ErrTimeout:              "timeout",
	ErrInvalidHandle:        "invalid handle",
	ErrInvalidUsage:         "invalid usage",
	ErrUnknown:              "unknown error",
}

func (r Result) Error() string {
	if r >= 0 && int(r) < len(resultNames) {
		return "driver: " + resultNames[r]
	}
	return fmt.Sprintf("driver: result %d", int32(r))
}

// Error carries a Result together with the operation that produced it.
// errors.Is(err, ErrOutOfDate) works on both forms.
type Error struct {
	Op     string
	Result Result
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Result.Error(), e.Detail)
	}
	return e.Op + ": " + e.Result.Error()
}

func (e *Error) Unwrap() error { return e.Result }

// Errorf returns an *Error for op with a formatted detail message.
func Errorf(op string, r Result, format string, args ...any) error {
	return &Error{Op: op, Result: r, Detail: fmt.Sprintf(format, args...)}
}
