package xmlcodec

import (
	"encoding/xml"

	"garage-layout/internal/domain"
)

// FLIConfigRoot is the root element of an FLI plugin document.
const FLIConfigRoot = "PluginConfig"

const (
	xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNamespace = "http://www.w3.org/2001/XMLSchema"
)

// Size width/height pair
type Size struct {
	Width  int `xml:"Width"`
	Height int `xml:"Height"`
}

// Point frame coordinate
type Point struct {
	X int `xml:"X"`
	Y int `xml:"Y"`
}

// Line counting line between two frame points
type Line struct {
	X1 int `xml:"X1"`
	Y1 int `xml:"Y1"`
	X2 int `xml:"X2"`
	Y2 int `xml:"Y2"`
}

// FLIConfig detection tuning of the FLI plugin.
type FLIConfig struct {
	DetectionInterval             int     `xml:"DetectionInterval"`
	ConfidenceThreshold           int     `xml:"ConfidenceThreshold"`
	Frame                         Size    `xml:"Frame"`
	ROI                           []Point `xml:"ROI>Point"`
	ReportFLI                     bool    `xml:"ReportFLI"`
	MotionDetectionSensitivity    int     `xml:"MotionDetectionSensitivity"`
	CountLineUp                   Line    `xml:"CountLineUp"`
	CountLineDown                 Line    `xml:"CountLineDown"`
	LargeBoundingBoxMax           Size    `xml:"LargeBoundingBoxMax"`
	MaximumAllowedCountedDistance int     `xml:"MaximumAllowedCountedDistance"`
	MinimumSameObjectOverlap      float64 `xml:"MinimumSameObjectOverlap"`
	RecordCountFrames             bool    `xml:"RecordCountFrames"`
	RecordLowConfidenceFrames     bool    `xml:"RecordLowConfidenceFrames"`
	DetectionBoxScale             float64 `xml:"DetectionBoxScale"`
	FramesReceivedTimeoutMs       int     `xml:"FramesReceivedTimeoutMs"`
	AllowTurnarounds              bool    `xml:"AllowTurnarounds"`
	PersistDetections             bool    `xml:"PersistDetections"`
	MaxAllowedBoxJump             int     `xml:"MaxAllowedBoxJump"`
	EnhancedVisuals               bool    `xml:"EnhancedVisuals"`
	ResizeWidth                   int     `xml:"ResizeWidth"`
}

// DefaultFLIConfig returns the fixed tuning every emitted plugin carries.
func DefaultFLIConfig() FLIConfig {
	const w, h = 640, 480
	return FLIConfig{
		DetectionInterval:             2,
		ConfidenceThreshold:           40,
		Frame:                         Size{Width: w, Height: h},
		ROI:                           []Point{{0, 0}, {w, 0}, {w, h}, {0, h}},
		ReportFLI:                     true,
		MotionDetectionSensitivity:    40,
		CountLineUp:                   Line{X1: 93, Y1: 202, X2: 555, Y2: 169},
		CountLineDown:                 Line{X1: 96, Y1: 215, X2: 562, Y2: 186},
		MaximumAllowedCountedDistance: 140,
		MinimumSameObjectOverlap:      0.17,
		DetectionBoxScale:             1,
		FramesReceivedTimeoutMs:       500,
		AllowTurnarounds:              true,
		PersistDetections:             true,
		MaxAllowedBoxJump:             200,
		EnhancedVisuals:               true,
	}
}

// PluginConfig is a parsed FLI plugin document.
type PluginConfig struct {
	CameraName string    `json:"camera_name"`
	FLIConfig  FLIConfig `json:"fli_config"`
}

type pluginDoc struct {
	XMLName    xml.Name  `xml:"PluginConfig"`
	XSI        string    `xml:"xmlns:xsi,attr"`
	XSD        string    `xml:"xmlns:xsd,attr"`
	CameraName string    `xml:"CameraName"`
	FLIConfig  FLIConfig `xml:"FLIConfig"`
}

type pluginIn struct {
	XMLName    xml.Name
	CameraName string    `xml:"CameraName"`
	FLIConfig  FLIConfig `xml:"FLIConfig"`
}

// EmitFLIConfigXML renders the plugin document for camera d. A non-empty
// name replaces d.Name; dual-lens streams use it for "<name>-S<n>".
func EmitFLIConfigXML(d *domain.Device, name string) []byte {
	if name == "" {
		name = d.Name
	}
	return marshal(HeaderUTF8, pluginDoc{
		XSI:        xsiNamespace,
		XSD:        xsdNamespace,
		CameraName: name,
		FLIConfig:  DefaultFLIConfig(),
	})
}

// ParseFLIConfigXML reads back a plugin document.
func ParseFLIConfigXML(text string) (PluginConfig, error) {
	var in pluginIn
	if err := unmarshal(text, &in, func() xml.Name { return in.XMLName }, FLIConfigRoot); err != nil {
		return PluginConfig{}, err
	}
	if in.CameraName == "" {
		return PluginConfig{}, domain.BadInputf("plugin config has no CameraName")
	}
	return PluginConfig{CameraName: in.CameraName, FLIConfig: in.FLIConfig}, nil
}
