package dispatch

import (
	"context"
	"errors"
	"fmt"

	"garage-layout/internal/domain"
	"garage-layout/internal/xmlcodec"

	"go.uber.org/zap"
)

// Collect bootstraps devices from an existing install. devicesConfig is
// required; cameraHub is optional and, when present, supplies the camera
// detail (detection type, frame rate, stream URLs) that devicesConfig does
// not carry. Cameras only listed in cameraHub are appended. The result is
// ready for Site.MergeDevices.
func (d *Dispatcher) Collect(ctx context.Context, r Reader) ([]domain.Device, error) {
	raw, err := r.ReadBytes(ctx, PathDevicesConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", PathDevicesConfig, err)
	}
	devs := xmlcodec.ParseDevicesConfigXML(string(raw), d.logger)

	hubRaw, err := r.ReadBytes(ctx, PathCameraHub)
	switch {
	case errors.Is(err, ErrNotFound):
		d.logger.Info("No camera hub document, using devices config only")
		return devs, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", PathCameraHub, err)
	}
	hub := xmlcodec.ParseCameraHubXML(string(hubRaw), d.logger)

	byName := make(map[string]int, len(devs))
	for i := range devs {
		if devs[i].Kind == domain.KindCamera {
			byName[devs[i].Name] = i
		}
	}
	for _, h := range hub {
		i, ok := byName[h.Name]
		if !ok {
			devs = append(devs, h)
			continue
		}
		devs[i] = overlayCamera(devs[i], h)
	}

	d.logger.Info("Collected devices from install",
		zap.Int("devices", len(devs)),
		zap.Int("hub_cameras", len(hub)),
	)
	return devs, nil
}

// overlayCamera keeps the addressing of base (from devicesConfig) and takes
// everything else from the camera hub entry.
func overlayCamera(base, hub domain.Device) domain.Device {
	out := *hub.Clone()
	if base.IPAddress != "" {
		out.IPAddress, out.Port = base.IPAddress, base.Port
	}
	if base.MACAddress != "" {
		out.MACAddress = base.MACAddress
	}
	if out.IsDualLens() && base.IsDualLens() {
		overlayStream(out.Camera.Stream1, base.Camera.Stream1)
		overlayStream(out.Camera.Stream2, base.Camera.Stream2)
	}
	return out
}

func overlayStream(dst, src *domain.Stream) {
	if src == nil || src.IPAddress == "" {
		return
	}
	dst.IPAddress, dst.Port = src.IPAddress, src.Port
}
