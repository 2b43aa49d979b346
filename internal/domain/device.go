package domain

import "strings"

// Kind top-level device taxonomy
type Kind string

const (
	KindCamera Kind = "camera"
	KindSign   Kind = "sign"
	KindSensor Kind = "sensor"
)

// SubKind refines Kind. Valid values depend on the kind.
type SubKind string

// Camera sub-kinds
const (
	SubKindFLI    SubKind = "fli"
	SubKindLPR    SubKind = "lpr"
	SubKindPeople SubKind = "people"
)

// Sign sub-kinds
const (
	SubKindLED        SubKind = "led"
	SubKindStatic     SubKind = "static"
	SubKindDesignable SubKind = "designable"
)

// Sensor sub-kinds
const (
	SubKindNwave   SubKind = "nwave"
	SubKindParksol SubKind = "parksol"
	SubKindProco   SubKind = "proco"
	SubKindEnsight SubKind = "ensight"
	SubKindSpace   SubKind = "space"
)

var validSubKinds = map[Kind][]SubKind{
	KindCamera: {SubKindFLI, SubKindLPR, SubKindPeople},
	KindSign:   {SubKindLED, SubKindStatic, SubKindDesignable},
	KindSensor: {SubKindNwave, SubKindParksol, SubKindProco, SubKindEnsight, SubKindSpace},
}

// ValidSubKind reports whether sub is allowed for kind.
func ValidSubKind(kind Kind, sub SubKind) bool {
	for _, s := range validSubKinds[kind] {
		if s == sub {
			return true
		}
	}
	return false
}

// HardwareType physical camera form factor
type HardwareType string

const (
	HardwareBullet   HardwareType = "bullet"
	HardwareDualLens HardwareType = "dual-lens"
)

// Direction traffic direction a stream watches.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Flow terminals usable as a stream destination instead of a level.
const (
	FlowGarageEntry = "garage-entry"
	FlowGarageExit  = "garage-exit"
)

// FlowDestination is either a terminal (garage-entry/garage-exit) or a peer
// level id in the same garage. Zero value means unset.
type FlowDestination struct {
	Terminal string `json:"terminal,omitempty"`
	LevelID  int    `json:"level_id,omitempty"`
}

// IsZero reports whether no destination is set.
func (f FlowDestination) IsZero() bool { return f.Terminal == "" && f.LevelID == 0 }

// Stream one lens of a dual-lens camera
type Stream struct {
	SubKind     SubKind         `json:"sub_kind"`
	IPAddress   string          `json:"ip_address"`
	Port        string          `json:"port"`
	ExternalURL string          `json:"external_url,omitempty"`
	Direction   Direction       `json:"direction,omitempty"`
	Rotation    int             `json:"rotation"`
	Flow        FlowDestination `json:"flow"`
}

// CameraFields camera-only attributes
type CameraFields struct {
	HardwareType        HardwareType `json:"hardware_type"`
	FPS                 int          `json:"fps"`
	RecordRawClips      bool         `json:"record_raw_clips"`
	Enabled             bool         `json:"enabled"`
	MotionThreshold     int          `json:"motion_threshold"`
	BackOfCarIs         string       `json:"back_of_car_is,omitempty"`
	IsEntryExitCamera   bool         `json:"is_entry_exit_camera"`
	DependentCameraName string       `json:"dependent_camera_name,omitempty"`
	Stream1             *Stream      `json:"stream1,omitempty"`
	Stream2             *Stream      `json:"stream2,omitempty"`
}

// Camera defaults applied by NewCamera.
const (
	DefaultCameraFPS             = 10
	DefaultCameraMotionThreshold = 40
)

// OverrideState operator-imposed sign message
type OverrideState string

const (
	OverrideNone   OverrideState = ""
	OverrideOpen   OverrideState = "OPEN"
	OverrideFull   OverrideState = "FULL"
	OverrideClosed OverrideState = "CLOSED"
)

// SignFields sign-only attributes. Designable signs keep their preview URL
// in Device.ExternalURL.
type SignFields struct {
	Protocol      string        `json:"protocol,omitempty"`
	OverrideState OverrideState `json:"override_state,omitempty"`
}

// SpaceSensor member of a sensor group
type SpaceSensor struct {
	SensorID               string `json:"sensor_id"`
	Name                   string `json:"name"`
	ParkingType            string `json:"parking_type"`
	TempParkingTimeMinutes int    `json:"temp_parking_time_minutes"`
}

// SensorFields sensor-only attributes. A sensor device is a controller
// endpoint; Members is the group membership the XML schemas do not carry.
type SensorFields struct {
	SensorID               string        `json:"sensor_id"`
	ControllerAddress      string        `json:"controller_address,omitempty"`
	ControllerKey          string        `json:"controller_key,omitempty"`
	ParkingType            string        `json:"parking_type,omitempty"`
	TempParkingTimeMinutes int           `json:"temp_parking_time_minutes"`
	Members                []SpaceSensor `json:"members,omitempty"`
}

// Device is a tagged variant on Kind x SubKind. Exactly one of Camera, Sign,
// Sensor is set, matching Kind.
type Device struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	Kind             Kind     `json:"kind"`
	SubKind          SubKind  `json:"sub_kind"`
	IPAddress        string   `json:"ip_address"`
	Port             string   `json:"port"`
	MACAddress       string   `json:"mac_address,omitempty"`
	ExternalURL      string   `json:"external_url,omitempty"`
	ServerID         *int     `json:"server_id,omitempty"`
	PendingPlacement bool     `json:"pending_placement"`
	X                *float64 `json:"x,omitempty"`
	Y                *float64 `json:"y,omitempty"`

	Camera *CameraFields `json:"camera,omitempty"`
	Sign   *SignFields   `json:"sign,omitempty"`
	Sensor *SensorFields `json:"sensor,omitempty"`
}

// NewCamera returns a pending bullet camera with default stream settings.
func NewCamera(name string, sub SubKind) Device {
	return Device{
		Name:             name,
		Kind:             KindCamera,
		SubKind:          sub,
		PendingPlacement: true,
		Camera: &CameraFields{
			HardwareType:    HardwareBullet,
			FPS:             DefaultCameraFPS,
			Enabled:         true,
			MotionThreshold: DefaultCameraMotionThreshold,
		},
	}
}

// NewDualLensCamera returns a pending dual-lens camera. The device sub-kind
// follows stream1.
func NewDualLensCamera(name string, s1, s2 Stream) Device {
	d := NewCamera(name, s1.SubKind)
	d.Camera.HardwareType = HardwareDualLens
	d.Camera.Stream1 = &s1
	d.Camera.Stream2 = &s2
	return d
}

// NewSign returns a pending sign device.
func NewSign(name string, sub SubKind) Device {
	return Device{
		Name:             name,
		Kind:             KindSign,
		SubKind:          sub,
		PendingPlacement: true,
		Sign:             &SignFields{},
	}
}

// NewSensor returns a pending sensor controller device.
func NewSensor(name string, sub SubKind) Device {
	return Device{
		Name:             name,
		Kind:             KindSensor,
		SubKind:          sub,
		PendingPlacement: true,
		Sensor:           &SensorFields{},
	}
}

// IsDualLens reports whether the device is a dual-lens camera.
func (d *Device) IsDualLens() bool {
	return d.Kind == KindCamera && d.Camera != nil && d.Camera.HardwareType == HardwareDualLens
}

// Clone deep-copies the device including its streams and members.
func (d *Device) Clone() *Device {
	c := *d
	if d.ServerID != nil {
		v := *d.ServerID
		c.ServerID = &v
	}
	if d.X != nil {
		v := *d.X
		c.X = &v
	}
	if d.Y != nil {
		v := *d.Y
		c.Y = &v
	}
	if d.Camera != nil {
		cam := *d.Camera
		if cam.Stream1 != nil {
			s := *cam.Stream1
			cam.Stream1 = &s
		}
		if cam.Stream2 != nil {
			s := *cam.Stream2
			cam.Stream2 = &s
		}
		c.Camera = &cam
	}
	if d.Sign != nil {
		s := *d.Sign
		c.Sign = &s
	}
	if d.Sensor != nil {
		s := *d.Sensor
		s.Members = append([]SpaceSensor(nil), d.Sensor.Members...)
		c.Sensor = &s
	}
	return &c
}

// checkShape enforces the structural invariants a single device must hold
// on its own (kind/sub-kind, field group, placement, dual-lens streams).
func (d *Device) checkShape() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalidOpf("device name is required")
	}
	if !ValidSubKind(d.Kind, d.SubKind) {
		return invalidOpf("device %q: sub-kind %q is not valid for kind %q", d.Name, d.SubKind, d.Kind)
	}
	switch d.Kind {
	case KindCamera:
		if d.Camera == nil || d.Sign != nil || d.Sensor != nil {
			return invalidOpf("device %q: camera must carry only camera fields", d.Name)
		}
		if d.Camera.HardwareType == HardwareDualLens && (d.Camera.Stream1 == nil || d.Camera.Stream2 == nil) {
			return invalidOpf("device %q: dual-lens camera requires two streams", d.Name)
		}
	case KindSign:
		if d.Sign == nil || d.Camera != nil || d.Sensor != nil {
			return invalidOpf("device %q: sign must carry only sign fields", d.Name)
		}
	case KindSensor:
		if d.Sensor == nil || d.Camera != nil || d.Sign != nil {
			return invalidOpf("device %q: sensor must carry only sensor fields", d.Name)
		}
	}
	if d.PendingPlacement {
		if d.X != nil || d.Y != nil {
			return invalidOpf("device %q: pending placement must not have coordinates", d.Name)
		}
	} else if d.X == nil || d.Y == nil {
		return invalidOpf("device %q: placed device needs both coordinates", d.Name)
	}
	return nil
}
