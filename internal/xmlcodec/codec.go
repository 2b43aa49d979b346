// Package xmlcodec emits and parses the field-service configuration
// documents: CameraHubConfig, DevicesConfig and the FLI plugin config.
//
// The schemas carry less than the site model. Stream rotation, direction
// and flow destination, sensor-group membership, placement, server
// reference, sign override state and preview URL are dropped on emit and
// come back zero-valued from the parsers.
package xmlcodec

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"garage-layout/internal/domain"

	"go.uber.org/zap"
)

// XML declarations of the emitted documents.
const (
	HeaderUTF8  = `<?xml version="1.0" encoding="utf-8"?>` + "\n"
	HeaderPlain = `<?xml version="1.0"?>` + "\n"
)

// Default ports when the device has none.
const (
	DefaultCameraPort = "554"
	DefaultSignPort   = "10001"
)

const rtspTemplate = "rtsp://admin:Schneider1!@%s:%s/0/onvif/profile2/media.smp"

var rtspHostPort = regexp.MustCompile(`@([^:/@\s]+):(\d+)/`)

// RTSPURL synthesises the stream URL of a camera endpoint.
func RTSPURL(ip, port string) string {
	if port == "" {
		port = DefaultCameraPort
	}
	return fmt.Sprintf(rtspTemplate, ip, port)
}

// hostPort extracts ip and port from an RTSP URL of the form ...@ip:port/...
func hostPort(url string) (string, string, bool) {
	m := rtspHostPort.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// splitURL returns the endpoint encoded in url and the external URL to keep.
// The URL is kept only when it is not the one RTSPURL would produce.
func splitURL(url string) (ip, port, external string) {
	ip, port, ok := hostPort(url)
	if !ok || RTSPURL(ip, port) != url {
		external = url
	}
	return ip, port, external
}

// StreamSuffix names the n-th stream of a dual-lens camera.
func StreamSuffix(name string, n int) string {
	return name + "-S" + strconv.Itoa(n)
}

var streamName = regexp.MustCompile(`^(.+)-S([12])$`)

// splitStreamName reports the base name and stream number of "<base>-S1|2".
func splitStreamName(name string) (string, int, bool) {
	m := streamName.FindStringSubmatch(name)
	if m == nil {
		return name, 0, false
	}
	n, _ := strconv.Atoi(m[2])
	return m[1], n, true
}

// endpoint is one network identity of a camera: the device itself, or one
// stream of a dual-lens unit.
type endpoint struct {
	name    string
	subKind domain.SubKind
	ip      string
	port    string
	url     string
}

// cameraEndpoints fans a camera out into its endpoints. Dual-lens streams
// with no IP address are skipped.
func cameraEndpoints(d *domain.Device) []endpoint {
	if d.IsDualLens() {
		var out []endpoint
		for n, s := range []*domain.Stream{d.Camera.Stream1, d.Camera.Stream2} {
			if s == nil || s.IPAddress == "" {
				continue
			}
			url := s.ExternalURL
			if url == "" {
				url = RTSPURL(s.IPAddress, s.Port)
			}
			out = append(out, endpoint{
				name:    StreamSuffix(d.Name, n+1),
				subKind: s.SubKind,
				ip:      s.IPAddress,
				port:    s.Port,
				url:     url,
			})
		}
		return out
	}
	url := d.ExternalURL
	if url == "" && d.Camera != nil && d.Camera.Stream1 != nil {
		url = d.Camera.Stream1.ExternalURL
	}
	if url == "" {
		url = RTSPURL(d.IPAddress, d.Port)
	}
	return []endpoint{{name: d.Name, subKind: d.SubKind, ip: d.IPAddress, port: d.Port, url: url}}
}

// FLIStreamNames returns the names FLI plugin documents are emitted under:
// the camera name for an FLI bullet, or "<name>-S<n>" for each FLI stream of
// a dual-lens camera. Non-FLI devices yield nothing.
func FLIStreamNames(d *domain.Device) []string {
	if d.Kind != domain.KindCamera {
		return nil
	}
	var names []string
	for _, ep := range cameraEndpoints(d) {
		if ep.subKind == domain.SubKindFLI {
			names = append(names, ep.name)
		}
	}
	return names
}

func cameraType(sub domain.SubKind) string {
	switch sub {
	case domain.SubKindLPR:
		return "LPR"
	case domain.SubKindPeople:
		return "PEOPLE"
	default:
		return "FLI"
	}
}

func cameraSubKind(t string) domain.SubKind {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case "LPR":
		return domain.SubKindLPR
	case "PEOPLE", "PEOPLECOUNTING":
		return domain.SubKindPeople
	default:
		return domain.SubKindFLI
	}
}

// marshal renders a document. The document types hold only strings, numbers
// and bools, which encoding/xml always encodes.
func marshal(header string, v any) []byte {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(fmt.Sprintf("xmlcodec: marshal %T: %v", v, err))
	}
	out := make([]byte, 0, len(header)+len(body)+1)
	out = append(out, header...)
	out = append(out, body...)
	return append(out, '\n')
}

// unmarshal decodes text into v and checks the root element name.
func unmarshal(text string, v any, root func() xml.Name, roots ...string) error {
	if strings.TrimSpace(text) == "" {
		return domain.BadInputf("empty document")
	}
	if err := xml.Unmarshal([]byte(text), v); err != nil {
		return domain.BadInputf("malformed document: %v", err)
	}
	got := root().Local
	for _, r := range roots {
		if got == r {
			return nil
		}
	}
	return domain.BadInputf("unexpected root element %q, want %s", got, strings.Join(roots, " or "))
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func atoiOr(s string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return def
}

func boolOr(s string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
		return b
	}
	return def
}

// recombiner folds "<base>-S1" / "<base>-S2" entries back into one dual-lens
// camera while keeping first-seen order.
type recombiner struct {
	out    []domain.Device
	byName map[string]int
	duals  map[string]int
}

func newRecombiner() *recombiner {
	return &recombiner{byName: make(map[string]int), duals: make(map[string]int)}
}

// add appends d unless a device with the same name was already added.
func (r *recombiner) add(d domain.Device) {
	if _, dup := r.byName[d.Name]; dup {
		return
	}
	r.byName[d.Name] = len(r.out)
	r.out = append(r.out, d)
}

// addStream attaches stream n of camera base. proto supplies the
// device-level fields of a newly created dual-lens camera. A stream whose
// base name already belongs to a single-lens device is dropped.
func (r *recombiner) addStream(base string, n int, s domain.Stream, proto domain.Device) {
	idx, ok := r.duals[base]
	if !ok {
		if _, taken := r.byName[base]; taken {
			return
		}
		d := domain.NewDualLensCamera(base,
			domain.Stream{SubKind: domain.SubKindFLI},
			domain.Stream{SubKind: domain.SubKindFLI},
		)
		d.MACAddress = proto.MACAddress
		*d.Camera = *proto.Camera
		d.Camera.HardwareType = domain.HardwareDualLens
		d.Camera.Stream1 = &domain.Stream{SubKind: domain.SubKindFLI}
		d.Camera.Stream2 = &domain.Stream{SubKind: domain.SubKindFLI}
		idx = len(r.out)
		r.duals[base] = idx
		r.byName[base] = idx
		r.out = append(r.out, d)
	}
	d := &r.out[idx]
	target := d.Camera.Stream1
	if n == 2 {
		target = d.Camera.Stream2
	}
	if target.IPAddress != "" {
		return
	}
	*target = s
	d.SubKind = d.Camera.Stream1.SubKind
	d.IPAddress = d.Camera.Stream1.IPAddress
	d.Port = d.Camera.Stream1.Port
}

func (r *recombiner) devices() []domain.Device {
	if r.out == nil {
		return []domain.Device{}
	}
	return r.out
}
