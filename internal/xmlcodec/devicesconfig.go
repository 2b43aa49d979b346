package xmlcodec

import (
	"encoding/xml"
	"strconv"
	"strings"

	"garage-layout/internal/domain"

	"go.uber.org/zap"
)

// DevicesConfigRoot is the root element of the DevicesConfig document.
const DevicesConfigRoot = "Devices"

// DevicesConfig Type values.
const (
	TypeCamera           = "CAMERA"
	TypeSignController   = "SIGNCONTROLLER"
	TypeSensorController = "SENSORCONTROLLER"
	TypeSensor           = "SENSOR"
)

type configDevice struct {
	Name                   string  `xml:"Name"`
	IPAddress              string  `xml:"IPAddress"`
	Port                   string  `xml:"Port"`
	Type                   string  `xml:"Type"`
	MACAddress             string  `xml:"MACAddress,omitempty"`
	SensorID               string  `xml:"SensorID,omitempty"`
	SerialAddress          string  `xml:"SerialAddress,omitempty"`
	ParkingType            string  `xml:"ParkingType,omitempty"`
	TempParkingTimeMinutes *string `xml:"TempParkingTimeMinutes"`
	ControllerKey          *string `xml:"ControllerKey"`
}

type devicesDoc struct {
	XMLName xml.Name       `xml:"Devices"`
	Device  []configDevice `xml:"Device"`
}

type devicesIn struct {
	XMLName xml.Name
	Device  []configDevice `xml:"Device"`
}

// DeviceType maps a device to its DevicesConfig Type.
func DeviceType(d *domain.Device) string {
	switch d.Kind {
	case domain.KindCamera:
		return TypeCamera
	case domain.KindSign:
		return TypeSignController
	default:
		if d.SubKind == domain.SubKindNwave {
			return TypeSensorController
		}
		return TypeSensor
	}
}

func portOr(port, def string) string {
	if port == "" {
		return def
	}
	return port
}

// EmitDevicesConfigXML renders one Device entry per network endpoint.
func EmitDevicesConfigXML(devs []*domain.Device) []byte {
	doc := devicesDoc{}
	for _, d := range devs {
		if d == nil {
			continue
		}
		switch d.Kind {
		case domain.KindCamera:
			if d.Camera == nil {
				continue
			}
			for _, ep := range cameraEndpoints(d) {
				doc.Device = append(doc.Device, configDevice{
					Name:       ep.name,
					IPAddress:  ep.ip,
					Port:       portOr(ep.port, DefaultCameraPort),
					Type:       TypeCamera,
					MACAddress: d.MACAddress,
				})
			}
		case domain.KindSign:
			doc.Device = append(doc.Device, configDevice{
				Name:       d.Name,
				IPAddress:  d.IPAddress,
				Port:       portOr(d.Port, DefaultSignPort),
				Type:       TypeSignController,
				MACAddress: d.MACAddress,
			})
		case domain.KindSensor:
			if d.Sensor == nil {
				continue
			}
			s := d.Sensor
			minutes := strconv.Itoa(s.TempParkingTimeMinutes)
			e := configDevice{
				Name:                   d.Name,
				IPAddress:              d.IPAddress,
				Port:                   d.Port,
				Type:                   DeviceType(d),
				SensorID:               s.SensorID,
				SerialAddress:          s.ControllerAddress,
				ParkingType:            strings.ToUpper(s.ParkingType),
				TempParkingTimeMinutes: &minutes,
			}
			if d.SubKind == domain.SubKindNwave {
				key := s.ControllerKey
				e.ControllerKey = &key
			}
			doc.Device = append(doc.Device, e)
		}
	}
	return marshal(HeaderPlain, doc)
}

// ParseDevicesConfigXML parses a DevicesConfig document into pending
// devices. Sub-kinds the schema cannot express come back as fli cameras,
// static signs and space sensors. A malformed document yields an empty list
// and a logged schema mismatch.
func ParseDevicesConfigXML(text string, logger *zap.Logger) []domain.Device {
	devs, err := ParseDevicesConfigXMLStrict(text)
	if err != nil {
		orNop(logger).Warn("DevicesConfig document rejected",
			zap.Error(domain.ErrSchemaMismatch),
			zap.String("reason", err.Error()),
		)
		return []domain.Device{}
	}
	return devs
}

// ParseDevicesConfigXMLStrict is ParseDevicesConfigXML but returns
// ErrBadInput instead of an empty list.
func ParseDevicesConfigXMLStrict(text string) ([]domain.Device, error) {
	var in devicesIn
	if err := unmarshal(text, &in, func() xml.Name { return in.XMLName }, DevicesConfigRoot); err != nil {
		return nil, err
	}

	r := newRecombiner()
	for _, e := range in.Device {
		if e.Name == "" {
			continue
		}
		t := strings.ToUpper(strings.TrimSpace(e.Type))
		switch t {
		case TypeCamera:
			d := domain.NewCamera(e.Name, domain.SubKindFLI)
			d.MACAddress = e.MACAddress
			if base, n, ok := splitStreamName(e.Name); ok {
				r.addStream(base, n, domain.Stream{
					SubKind:   domain.SubKindFLI,
					IPAddress: e.IPAddress,
					Port:      e.Port,
				}, d)
				continue
			}
			d.IPAddress, d.Port = e.IPAddress, e.Port
			r.add(d)
		case TypeSignController:
			d := domain.NewSign(e.Name, domain.SubKindStatic)
			d.IPAddress, d.Port, d.MACAddress = e.IPAddress, e.Port, e.MACAddress
			r.add(d)
		case TypeSensorController, TypeSensor:
			sub := domain.SubKindSpace
			if t == TypeSensorController {
				sub = domain.SubKindNwave
			}
			d := domain.NewSensor(e.Name, sub)
			d.IPAddress, d.Port = e.IPAddress, e.Port
			d.Sensor.SensorID = e.SensorID
			d.Sensor.ControllerAddress = e.SerialAddress
			d.Sensor.ParkingType = e.ParkingType
			if e.TempParkingTimeMinutes != nil {
				d.Sensor.TempParkingTimeMinutes = atoiOr(*e.TempParkingTimeMinutes, 0)
			}
			if e.ControllerKey != nil {
				d.Sensor.ControllerKey = *e.ControllerKey
			}
			r.add(d)
		}
	}
	return r.devices(), nil
}
