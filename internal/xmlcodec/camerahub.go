package xmlcodec

import (
	"encoding/xml"
	"strconv"

	"garage-layout/internal/domain"

	"go.uber.org/zap"
)

// Root element names accepted by the CameraHub parser.
const (
	CameraHubRoot      = "CameraHubConfig"
	CameraHubRootAlias = "CameraHub"
)

type hubCamera struct {
	Name            string `xml:"Name"`
	RTSPUrl         string `xml:"RTSPUrl"`
	FPS             string `xml:"FPS"`
	Type            string `xml:"Type"`
	RecordRawClips  string `xml:"RecordRawClips"`
	Enabled         string `xml:"Enabled"`
	MotionThreshold string `xml:"MotionThreshold"`
	MACAddress      string `xml:"MACAddress,omitempty"`
}

type hubCameras struct {
	Camera []hubCamera `xml:"Camera"`
}

type hubFLICameras struct {
	CameraConfig []hubCamera `xml:"CameraConfig"`
}

type cameraHubDoc struct {
	XMLName    xml.Name      `xml:"CameraHubConfig"`
	Cameras    hubCameras    `xml:"Cameras"`
	FLICameras hubFLICameras `xml:"FLICameras"`
}

// cameraHubIn mirrors cameraHubDoc but takes any root name.
type cameraHubIn struct {
	XMLName    xml.Name
	Cameras    hubCameras    `xml:"Cameras"`
	FLICameras hubFLICameras `xml:"FLICameras"`
}

// EmitCameraHubXML renders the CameraHubConfig document for the cameras
// among devs. Non-camera devices are ignored.
func EmitCameraHubXML(devs []*domain.Device) []byte {
	doc := cameraHubDoc{}
	for _, d := range devs {
		if d == nil || d.Kind != domain.KindCamera || d.Camera == nil {
			continue
		}
		for _, ep := range cameraEndpoints(d) {
			c := hubCamera{
				Name:            ep.name,
				RTSPUrl:         ep.url,
				FPS:             strconv.Itoa(d.Camera.FPS),
				Type:            cameraType(ep.subKind),
				RecordRawClips:  strconv.FormatBool(d.Camera.RecordRawClips),
				Enabled:         strconv.FormatBool(d.Camera.Enabled),
				MotionThreshold: strconv.Itoa(d.Camera.MotionThreshold),
				MACAddress:      d.MACAddress,
			}
			doc.Cameras.Camera = append(doc.Cameras.Camera, c)
			if ep.subKind == domain.SubKindFLI {
				doc.FLICameras.CameraConfig = append(doc.FLICameras.CameraConfig, c)
			}
		}
	}
	return marshal(HeaderUTF8, doc)
}

// ParseCameraHubXML parses a CameraHubConfig (or CameraHub) document into
// pending camera devices. A malformed document or unknown root is logged as
// a schema mismatch and yields an empty list.
func ParseCameraHubXML(text string, logger *zap.Logger) []domain.Device {
	devs, err := ParseCameraHubXMLStrict(text)
	if err != nil {
		orNop(logger).Warn("CameraHub document rejected",
			zap.Error(domain.ErrSchemaMismatch),
			zap.String("reason", err.Error()),
		)
		return []domain.Device{}
	}
	return devs
}

// ParseCameraHubXMLStrict is ParseCameraHubXML but returns ErrBadInput
// instead of an empty list.
func ParseCameraHubXMLStrict(text string) ([]domain.Device, error) {
	var in cameraHubIn
	if err := unmarshal(text, &in, func() xml.Name { return in.XMLName }, CameraHubRoot, CameraHubRootAlias); err != nil {
		return nil, err
	}

	r := newRecombiner()
	entries := append(append([]hubCamera(nil), in.Cameras.Camera...), in.FLICameras.CameraConfig...)
	for _, c := range entries {
		if c.Name == "" {
			continue
		}
		d := domain.NewCamera(c.Name, cameraSubKind(c.Type))
		d.Camera.FPS = atoiOr(c.FPS, domain.DefaultCameraFPS)
		d.Camera.RecordRawClips = boolOr(c.RecordRawClips, false)
		d.Camera.Enabled = boolOr(c.Enabled, true)
		d.Camera.MotionThreshold = atoiOr(c.MotionThreshold, domain.DefaultCameraMotionThreshold)
		d.MACAddress = c.MACAddress
		ip, port, external := splitURL(c.RTSPUrl)

		if base, n, ok := splitStreamName(c.Name); ok {
			r.addStream(base, n, domain.Stream{
				SubKind:     d.SubKind,
				IPAddress:   ip,
				Port:        port,
				ExternalURL: external,
			}, d)
			continue
		}
		d.IPAddress, d.Port, d.ExternalURL = ip, port, external
		r.add(d)
	}
	return r.devices(), nil
}
