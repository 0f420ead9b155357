package vkdriver

import (
	"strings"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// extensionSet resolves a list of names against what the platform offers.
// Required names must all be present; wanted names are enabled when they
// are.
type extensionSet struct {
	required []string
	wanted   []string
}

// resolve returns the names to enable, NUL terminated for the C API, and
// the wanted names that are unavailable.
func (s extensionSet) resolve(available []string) (enable []string, missing []string, err error) {
	has := make(map[string]bool, len(available))
	for _, a := range available {
		has[a] = true
	}
	seen := map[string]bool{}
	var absent []string
	for _, r := range s.required {
		if !has[r] {
			absent = append(absent, r)
			continue
		}
		if !seen[r] {
			seen[r] = true
			enable = append(enable, safeString(r))
		}
	}
	if len(absent) > 0 {
		return nil, nil, errors.Errorf("missing required: %s", strings.Join(absent, ", "))
	}
	for _, w := range s.wanted {
		if seen[w] {
			continue
		}
		if !has[w] {
			missing = append(missing, w)
			continue
		}
		seen[w] = true
		enable = append(enable, safeString(w))
	}
	return enable, missing, nil
}

// instanceExtensions gets a list of instance extensions available on the platform.
func instanceExtensions() ([]string, error) {
	var count uint32
	if err := check("vkEnumerateInstanceExtensionProperties", vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	if err := check("vkEnumerateInstanceExtensionProperties", vk.EnumerateInstanceExtensionProperties("", &count, list)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// deviceExtensions gets a list of extensions available on gpu.
func deviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := check("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	if err := check("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// validationLayers gets a list of validation layers available on the platform.
func validationLayers() ([]string, error) {
	var count uint32
	if err := check("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.LayerProperties, count)
	if err := check("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, list)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}
