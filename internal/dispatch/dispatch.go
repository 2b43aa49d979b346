// Package dispatch turns a site model into the set of configuration
// documents the field services read, and hands them to a Writer.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"garage-layout/internal/domain"
	"garage-layout/internal/xmlcodec"

	"go.uber.org/zap"
)

// ErrNotFound is returned by a Reader for a logical path it does not hold.
var ErrNotFound = errors.New("document not found")

// Writer stores one document under a logical path.
type Writer interface {
	Write(ctx context.Context, logicalPath string, content []byte) error
}

// Reader loads the document stored under a logical path.
type Reader interface {
	ReadBytes(ctx context.Context, logicalPath string) ([]byte, error)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, logicalPath string, content []byte) error

// Write calls f.
func (f WriterFunc) Write(ctx context.Context, logicalPath string, content []byte) error {
	return f(ctx, logicalPath, content)
}

// File one planned document.
type File struct {
	Path    string `json:"logical_path"`
	Content []byte `json:"-"`
}

// Dispatcher plans and writes configuration documents.
type Dispatcher struct {
	logger *zap.Logger
}

// New creates a Dispatcher. A nil logger discards output.
func New(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger}
}

// PlanSite returns every document of the site: cameraHub when there is at
// least one camera, devicesConfig always, then one FLI document per FLI
// camera or FLI stream.
func (d *Dispatcher) PlanSite(site *domain.Site) []File {
	return d.plan(deviceList(site.Devices()))
}

// PlanGarage is PlanSite restricted to the devices of one garage.
func (d *Dispatcher) PlanGarage(site *domain.Site, garageID int) ([]File, error) {
	if _, ok := site.Garage(garageID); !ok {
		return nil, fmt.Errorf("%w: unknown garage %d", domain.ErrInvalidOperation, garageID)
	}
	return d.plan(deviceList(site.GarageDevices(garageID))), nil
}

// PlanDevice returns every document that mentions the device: for a camera
// the filtered cameraHub and devicesConfig plus its FLI documents, for a
// sign or sensor only devicesConfig.
func (d *Dispatcher) PlanDevice(site *domain.Site, ref domain.DeviceRef) ([]File, error) {
	dev, ok := site.Device(ref)
	if !ok {
		return nil, fmt.Errorf("%w: unknown device %d/%d/%d", domain.ErrInvalidOperation, ref.GarageID, ref.LevelID, ref.DeviceID)
	}
	return d.plan([]*domain.Device{dev}), nil
}

func deviceList(sds []domain.SiteDevice) []*domain.Device {
	out := make([]*domain.Device, len(sds))
	for i, sd := range sds {
		out[i] = sd.Device
	}
	return out
}

func (d *Dispatcher) plan(devs []*domain.Device) []File {
	var files []File
	hasCamera := false
	for _, dev := range devs {
		if dev.Kind == domain.KindCamera {
			hasCamera = true
			break
		}
	}
	if hasCamera {
		files = append(files, File{Path: PathCameraHub, Content: xmlcodec.EmitCameraHubXML(devs)})
	}
	files = append(files, File{Path: PathDevicesConfig, Content: xmlcodec.EmitDevicesConfigXML(devs)})

	seen := make(map[string]bool)
	for _, dev := range devs {
		for _, name := range xmlcodec.FLIStreamNames(dev) {
			path := FLIPath(name)
			if seen[path] {
				d.logger.Warn("Duplicate logical path, keeping the first document",
					zap.String("logical_path", path),
					zap.String("device_name", dev.Name),
				)
				continue
			}
			seen[path] = true
			files = append(files, File{Path: path, Content: xmlcodec.EmitFLIConfigXML(dev, name)})
		}
	}
	return files
}

// ExportSite writes every document of the site. Writer errors are returned
// unchanged and stop the export.
func (d *Dispatcher) ExportSite(ctx context.Context, site *domain.Site, w Writer) ([]File, error) {
	return d.write(ctx, d.PlanSite(site), w)
}

// ExportGarage writes the documents of one garage.
func (d *Dispatcher) ExportGarage(ctx context.Context, site *domain.Site, garageID int, w Writer) ([]File, error) {
	files, err := d.PlanGarage(site, garageID)
	if err != nil {
		return nil, err
	}
	return d.write(ctx, files, w)
}

// ExportDevice writes every document that mentions the device.
func (d *Dispatcher) ExportDevice(ctx context.Context, site *domain.Site, ref domain.DeviceRef, w Writer) ([]File, error) {
	files, err := d.PlanDevice(site, ref)
	if err != nil {
		return nil, err
	}
	return d.write(ctx, files, w)
}

func (d *Dispatcher) write(ctx context.Context, files []File, w Writer) ([]File, error) {
	for _, f := range files {
		if err := w.Write(ctx, f.Path, f.Content); err != nil {
			return nil, err
		}
	}
	d.logger.Debug("Documents written", zap.Int("count", len(files)))
	return files, nil
}
