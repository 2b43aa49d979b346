package dispatch

import (
	"fmt"
	"strings"

	"garage-layout/internal/domain"
)

// Logical paths. The host maps them to storage locations.
const (
	PathCameraHub     = "cameraHub"
	PathDevicesConfig = "devicesConfig"
	fliPrefix         = "fli:"
)

// PathKind classifies a logical path.
type PathKind int

const (
	KindCameraHub PathKind = iota + 1
	KindDevicesConfig
	KindFLI
)

func (k PathKind) String() string {
	switch k {
	case KindCameraHub:
		return "camera-hub"
	case KindDevicesConfig:
		return "devices-config"
	case KindFLI:
		return "fli"
	default:
		return "unknown"
	}
}

// FLIPath is the logical path of the FLI plugin document for name.
func FLIPath(name string) string {
	return fliPrefix + name
}

// ParseLogicalPath splits a logical path into its kind and, for FLI
// documents, the camera (or stream) name.
func ParseLogicalPath(p string) (PathKind, string, error) {
	switch {
	case p == PathCameraHub:
		return KindCameraHub, "", nil
	case p == PathDevicesConfig:
		return KindDevicesConfig, "", nil
	case strings.HasPrefix(p, fliPrefix) && len(p) > len(fliPrefix):
		return KindFLI, p[len(fliPrefix):], nil
	default:
		return 0, "", fmt.Errorf("%w: unknown logical path %q", domain.ErrBadInput, p)
	}
}
