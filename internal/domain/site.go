package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServerType role of a site server
type ServerType string

const (
	ServerRecording  ServerType = "Recording"
	ServerProcessing ServerType = "Processing"
	ServerEdge       ServerType = "Edge"
	ServerManagement ServerType = "Management"
	ServerStorage    ServerType = "Storage"
)

// Server belongs to one garage; devices reference it by id.
type Server struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Type      ServerType `json:"type"`
	OS        string     `json:"os,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	Username  string     `json:"username,omitempty"`
	Password  string     `json:"-"`
	Notes     string     `json:"notes,omitempty"`
}

// Contact garage contact record, carried through unchanged
type Contact struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// QuickLink garage bookmark, carried through unchanged
type QuickLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// LevelConfig is copied verbatim from the workbook; never inferred.
type LevelConfig struct {
	Server            string `json:"server"`
	LevelType         string `json:"level_type,omitempty"`
	VisibleOnPortal   bool   `json:"visible_on_portal"`
	MaximumOccupancy  int    `json:"maximum_occupancy"`
	AutoResetEnabled  bool   `json:"auto_reset_enabled"`
	AutoResetTime     string `json:"auto_reset_time,omitempty"`
	AutoResetValue    int    `json:"auto_reset_value"`
	DisplayOrder      int    `json:"display_order"`
	PortalOrder       int    `json:"portal_order"`
	NearFullThreshold int    `json:"near_full_threshold"`
	FullThreshold     int    `json:"full_threshold"`
}

// nameIndexThreshold above this many devices a level indexes names.
const nameIndexThreshold = 64

// Level one floor of a garage
type Level struct {
	ID              int         `json:"id"`
	VisibleName     string      `json:"visible_name"`
	InternalName    string      `json:"internal_name"`
	TotalSpots      int         `json:"total_spots"`
	EVSpots         int         `json:"ev_spots"`
	ADASpots        int         `json:"ada_spots"`
	BackgroundImage string      `json:"background_image,omitempty"`
	Config          LevelConfig `json:"config"`
	Devices         []*Device   `json:"devices"`

	nextDeviceID int
	nameIndex    map[string]int
}

// Garage one parking structure
type Garage struct {
	ID           int         `json:"id"`
	VisibleName  string      `json:"visible_name"`
	InternalName string      `json:"internal_name"`
	Address      string      `json:"address,omitempty"`
	City         string      `json:"city,omitempty"`
	State        string      `json:"state,omitempty"`
	Zip          string      `json:"zip,omitempty"`
	CoverImage   string      `json:"cover_image,omitempty"`
	Stage        string      `json:"stage,omitempty"`
	Levels       []*Level    `json:"levels"`
	Servers      []Server    `json:"servers"`
	Contacts     []Contact   `json:"contacts,omitempty"`
	QuickLinks   []QuickLink `json:"quick_links,omitempty"`

	nextLevelID  int
	nextServerID int
}

// LogEntry one change-log line
type LogEntry struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Action string    `json:"action"`
	Detail string    `json:"detail"`
}

// Site is the authoritative in-memory model. It performs no I/O and is not
// safe for concurrent mutation.
type Site struct {
	Garages []*Garage  `json:"garages"`
	Log     []LogEntry `json:"log,omitempty"`

	nextGarageID int
	clock        Clock
}

// DeviceRef addresses a device by its scoped ids.
type DeviceRef struct {
	GarageID int `json:"garage_id"`
	LevelID  int `json:"level_id"`
	DeviceID int `json:"device_id"`
}

// SiteDevice a device together with its address, as returned by Devices.
type SiteDevice struct {
	Ref    DeviceRef
	Device *Device
}

// NewSite returns an empty site. A nil clock uses the wall clock.
func NewSite(clock Clock) *Site {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Site{clock: clock}
}

func (s *Site) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func (s *Site) logf(action, detail string) {
	s.Log = append(s.Log, LogEntry{
		ID:     uuid.NewString(),
		At:     s.now(),
		Action: action,
		Detail: detail,
	})
}

// Garage looks up a garage by id.
func (s *Site) Garage(id int) (*Garage, bool) {
	_, g := s.garageIndex(id)
	return g, g != nil
}

// Level looks up a level by garage and level id.
func (s *Site) Level(garageID, levelID int) (*Level, bool) {
	g, ok := s.Garage(garageID)
	if !ok {
		return nil, false
	}
	_, l := g.levelIndex(levelID)
	return l, l != nil
}

// Device looks up a device by reference.
func (s *Site) Device(ref DeviceRef) (*Device, bool) {
	l, ok := s.Level(ref.GarageID, ref.LevelID)
	if !ok {
		return nil, false
	}
	_, d := l.deviceIndex(ref.DeviceID)
	return d, d != nil
}

// FindDevice returns the first device named name in site order.
func (s *Site) FindDevice(name string) (DeviceRef, bool) {
	for _, g := range s.Garages {
		for _, l := range g.Levels {
			if d := l.DeviceByName(name); d != nil {
				return DeviceRef{GarageID: g.ID, LevelID: l.ID, DeviceID: d.ID}, true
			}
		}
	}
	return DeviceRef{}, false
}

// Devices flattens every device in garage, level, device order.
func (s *Site) Devices() []SiteDevice {
	var out []SiteDevice
	for _, g := range s.Garages {
		out = append(out, g.devices()...)
	}
	return out
}

// GarageDevices flattens the devices of a single garage.
func (s *Site) GarageDevices(garageID int) []SiteDevice {
	g, ok := s.Garage(garageID)
	if !ok {
		return nil
	}
	return g.devices()
}

// DeviceCount total number of devices in the site.
func (s *Site) DeviceCount() int {
	n := 0
	for _, g := range s.Garages {
		for _, l := range g.Levels {
			n += len(l.Devices)
		}
	}
	return n
}

func (g *Garage) devices() []SiteDevice {
	var out []SiteDevice
	for _, l := range g.Levels {
		for _, d := range l.Devices {
			out = append(out, SiteDevice{
				Ref:    DeviceRef{GarageID: g.ID, LevelID: l.ID, DeviceID: d.ID},
				Device: d,
			})
		}
	}
	return out
}

// Server looks up a server by id.
func (g *Garage) Server(id int) (*Server, bool) {
	for i := range g.Servers {
		if g.Servers[i].ID == id {
			return &g.Servers[i], true
		}
	}
	return nil, false
}

// ServerByName looks up a server by name.
func (g *Garage) ServerByName(name string) (*Server, bool) {
	for i := range g.Servers {
		if g.Servers[i].Name == name {
			return &g.Servers[i], true
		}
	}
	return nil, false
}

// Level looks up a level of this garage by id.
func (g *Garage) Level(id int) (*Level, bool) {
	_, l := g.levelIndex(id)
	return l, l != nil
}

// DeviceByName returns the first device with the given name, or nil.
func (l *Level) DeviceByName(name string) *Device {
	if len(l.Devices) > nameIndexThreshold {
		if l.nameIndex == nil {
			l.nameIndex = make(map[string]int, len(l.Devices))
			for i := len(l.Devices) - 1; i >= 0; i-- {
				l.nameIndex[l.Devices[i].Name] = i
			}
		}
		if i, ok := l.nameIndex[name]; ok {
			return l.Devices[i]
		}
		return nil
	}
	for _, d := range l.Devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func (s *Site) garageIndex(id int) (int, *Garage) {
	for i, g := range s.Garages {
		if g.ID == id {
			return i, g
		}
	}
	return -1, nil
}

func (g *Garage) levelIndex(id int) (int, *Level) {
	for i, l := range g.Levels {
		if l.ID == id {
			return i, l
		}
	}
	return -1, nil
}

func (l *Level) deviceIndex(id int) (int, *Device) {
	for i, d := range l.Devices {
		if d.ID == id {
			return i, d
		}
	}
	return -1, nil
}

// Construction helpers. These attach freshly built, not yet shared values and
// allocate ids from the owning counter; the importer uses them to build a
// site without copy-on-write overhead.

// AppendGarage attaches g and assigns its id.
func (s *Site) AppendGarage(g *Garage) int {
	s.nextGarageID++
	g.ID = s.nextGarageID
	s.Garages = append(s.Garages, g)
	return g.ID
}

// AppendLevel attaches l to the garage and assigns its id.
func (g *Garage) AppendLevel(l *Level) int {
	g.nextLevelID++
	l.ID = g.nextLevelID
	g.Levels = append(g.Levels, l)
	return l.ID
}

// AppendServer attaches srv to the garage and assigns its id.
func (g *Garage) AppendServer(srv Server) int {
	g.nextServerID++
	srv.ID = g.nextServerID
	g.Servers = append(g.Servers, srv)
	return srv.ID
}

// AppendDevice attaches d to the level and assigns its id.
func (l *Level) AppendDevice(d *Device) int {
	l.nextDeviceID++
	d.ID = l.nextDeviceID
	l.Devices = append(l.Devices, d)
	l.nameIndex = nil
	return d.ID
}
