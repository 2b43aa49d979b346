package domain

import "fmt"

// Mutation helpers. Each one copies only the path from the site root down to
// the modified entity; untouched garages, levels and devices keep their
// pointer identity so callers can detect changes cheaply.

func (s *Site) withGarage(id int, fn func(g *Garage) error) error {
	i, g := s.garageIndex(id)
	if g == nil {
		return invalidOpf("garage %d not found", id)
	}
	cg := *g
	if err := fn(&cg); err != nil {
		return err
	}
	garages := append([]*Garage(nil), s.Garages...)
	garages[i] = &cg
	s.Garages = garages
	return nil
}

func (s *Site) withLevel(garageID, levelID int, fn func(g *Garage, l *Level) error) error {
	return s.withGarage(garageID, func(g *Garage) error {
		j, l := g.levelIndex(levelID)
		if l == nil {
			return invalidOpf("level %d not found in garage %d", levelID, garageID)
		}
		cl := *l
		cl.nameIndex = nil
		if err := fn(g, &cl); err != nil {
			return err
		}
		levels := append([]*Level(nil), g.Levels...)
		levels[j] = &cl
		g.Levels = levels
		return nil
	})
}

// AddGarage attaches a new garage and returns its id. Levels and servers must
// be added through AddLevel and AddServer.
func (s *Site) AddGarage(g Garage) (int, error) {
	if len(g.Levels) > 0 || len(g.Servers) > 0 {
		return 0, invalidOpf("garage %q: levels and servers are added separately", g.VisibleName)
	}
	cg := g
	cg.Contacts = append([]Contact(nil), g.Contacts...)
	cg.QuickLinks = append([]QuickLink(nil), g.QuickLinks...)
	cg.nextLevelID, cg.nextServerID = 0, 0
	s.nextGarageID++
	cg.ID = s.nextGarageID
	s.Garages = append(append([]*Garage(nil), s.Garages...), &cg)
	s.logf("garage.add", fmt.Sprintf("garage %d %q", cg.ID, cg.VisibleName))
	return cg.ID, nil
}

// UpdateGarage edits garage metadata. Levels, servers and the id are
// restored after fn runs.
func (s *Site) UpdateGarage(id int, fn func(g *Garage)) error {
	err := s.withGarage(id, func(g *Garage) error {
		levels, servers := g.Levels, g.Servers
		nl, ns := g.nextLevelID, g.nextServerID
		g.Contacts = append([]Contact(nil), g.Contacts...)
		g.QuickLinks = append([]QuickLink(nil), g.QuickLinks...)
		fn(g)
		g.ID, g.Levels, g.Servers = id, levels, servers
		g.nextLevelID, g.nextServerID = nl, ns
		return nil
	})
	if err == nil {
		s.logf("garage.update", fmt.Sprintf("garage %d", id))
	}
	return err
}

// RemoveGarage drops a garage with everything it owns.
func (s *Site) RemoveGarage(id int) error {
	i, g := s.garageIndex(id)
	if g == nil {
		return invalidOpf("garage %d not found", id)
	}
	garages := make([]*Garage, 0, len(s.Garages)-1)
	garages = append(garages, s.Garages[:i]...)
	s.Garages = append(garages, s.Garages[i+1:]...)
	s.logf("garage.remove", fmt.Sprintf("garage %d %q", id, g.VisibleName))
	return nil
}

// AddLevel attaches a new, empty level to a garage.
func (s *Site) AddLevel(garageID int, l Level) (int, error) {
	if len(l.Devices) > 0 {
		return 0, invalidOpf("level %q: devices are added separately", l.VisibleName)
	}
	var id int
	err := s.withGarage(garageID, func(g *Garage) error {
		cl := l
		cl.Devices, cl.nextDeviceID, cl.nameIndex = nil, 0, nil
		g.nextLevelID++
		cl.ID = g.nextLevelID
		g.Levels = append(append([]*Level(nil), g.Levels...), &cl)
		id = cl.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logf("level.add", fmt.Sprintf("garage %d level %d %q", garageID, id, l.VisibleName))
	return id, nil
}

// UpdateLevel edits level attributes and config. Devices and the id are
// restored after fn runs.
func (s *Site) UpdateLevel(garageID, levelID int, fn func(l *Level)) error {
	err := s.withLevel(garageID, levelID, func(_ *Garage, l *Level) error {
		devices, next := l.Devices, l.nextDeviceID
		fn(l)
		l.ID, l.Devices, l.nextDeviceID, l.nameIndex = levelID, devices, next, nil
		return nil
	})
	if err == nil {
		s.logf("level.update", fmt.Sprintf("garage %d level %d", garageID, levelID))
	}
	return err
}

// RemoveLevel drops a level and its devices. Flow destinations pointing at
// it are left dangling; Validate reports them.
func (s *Site) RemoveLevel(garageID, levelID int) error {
	err := s.withGarage(garageID, func(g *Garage) error {
		j, l := g.levelIndex(levelID)
		if l == nil {
			return invalidOpf("level %d not found in garage %d", levelID, garageID)
		}
		levels := make([]*Level, 0, len(g.Levels)-1)
		levels = append(levels, g.Levels[:j]...)
		g.Levels = append(levels, g.Levels[j+1:]...)
		return nil
	})
	if err == nil {
		s.logf("level.remove", fmt.Sprintf("garage %d level %d", garageID, levelID))
	}
	return err
}

// AddServer registers a server with a garage. Names are unique per garage.
func (s *Site) AddServer(garageID int, srv Server) (int, error) {
	if srv.Name == "" {
		return 0, invalidOpf("server name is required")
	}
	var id int
	err := s.withGarage(garageID, func(g *Garage) error {
		if _, dup := g.ServerByName(srv.Name); dup {
			return invalidOpf("server %q already exists in garage %d", srv.Name, garageID)
		}
		g.nextServerID++
		srv.ID = g.nextServerID
		g.Servers = append(append([]Server(nil), g.Servers...), srv)
		id = srv.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logf("server.add", fmt.Sprintf("garage %d server %d %q", garageID, id, srv.Name))
	return id, nil
}

// UpdateServer edits a server in place.
func (s *Site) UpdateServer(garageID, serverID int, fn func(srv *Server)) error {
	err := s.withGarage(garageID, func(g *Garage) error {
		servers := append([]Server(nil), g.Servers...)
		for i := range servers {
			if servers[i].ID != serverID {
				continue
			}
			fn(&servers[i])
			servers[i].ID = serverID
			for j := range servers {
				if j != i && servers[j].Name == servers[i].Name {
					return invalidOpf("server %q already exists in garage %d", servers[i].Name, garageID)
				}
			}
			g.Servers = servers
			return nil
		}
		return invalidOpf("server %d not found in garage %d", serverID, garageID)
	})
	if err == nil {
		s.logf("server.update", fmt.Sprintf("garage %d server %d", garageID, serverID))
	}
	return err
}

// RemoveServer drops a server. It is refused while any device references it.
func (s *Site) RemoveServer(garageID, serverID int) error {
	err := s.withGarage(garageID, func(g *Garage) error {
		if _, ok := g.Server(serverID); !ok {
			return invalidOpf("server %d not found in garage %d", serverID, garageID)
		}
		for _, l := range g.Levels {
			for _, d := range l.Devices {
				if d.ServerID != nil && *d.ServerID == serverID {
					return invalidOpf("server %d is still referenced by device %q", serverID, d.Name)
				}
			}
		}
		servers := make([]Server, 0, len(g.Servers)-1)
		for _, srv := range g.Servers {
			if srv.ID != serverID {
				servers = append(servers, srv)
			}
		}
		g.Servers = servers
		return nil
	})
	if err == nil {
		s.logf("server.remove", fmt.Sprintf("garage %d server %d", garageID, serverID))
	}
	return err
}

func checkServerRef(g *Garage, d *Device) error {
	if d.ServerID == nil {
		return nil
	}
	if _, ok := g.Server(*d.ServerID); !ok {
		return invalidOpf("device %q: server %d is not owned by garage %d", d.Name, *d.ServerID, g.ID)
	}
	return nil
}

// AddDevice attaches a copy of d to a level and returns its id.
func (s *Site) AddDevice(garageID, levelID int, d Device) (int, error) {
	nd := d.Clone()
	if err := nd.checkShape(); err != nil {
		return 0, err
	}
	var id int
	err := s.withLevel(garageID, levelID, func(g *Garage, l *Level) error {
		if err := checkServerRef(g, nd); err != nil {
			return err
		}
		if l.DeviceByName(nd.Name) != nil {
			return invalidOpf("device %q already exists on level %d", nd.Name, levelID)
		}
		devices := make([]*Device, len(l.Devices), len(l.Devices)+1)
		copy(devices, l.Devices)
		l.Devices = devices
		id = l.AppendDevice(nd)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logf("device.add", fmt.Sprintf("garage %d level %d device %d %q", garageID, levelID, id, nd.Name))
	return id, nil
}

// UpdateDevice edits a copy of the device and commits it if every invariant
// still holds.
func (s *Site) UpdateDevice(ref DeviceRef, fn func(d *Device)) error {
	err := s.withLevel(ref.GarageID, ref.LevelID, func(g *Garage, l *Level) error {
		k, d := l.deviceIndex(ref.DeviceID)
		if d == nil {
			return invalidOpf("device %d not found on level %d", ref.DeviceID, ref.LevelID)
		}
		nd := d.Clone()
		fn(nd)
		nd.ID = ref.DeviceID
		if err := nd.checkShape(); err != nil {
			return err
		}
		if err := checkServerRef(g, nd); err != nil {
			return err
		}
		if nd.Name != d.Name {
			if other := l.DeviceByName(nd.Name); other != nil && other.ID != nd.ID {
				return invalidOpf("device %q already exists on level %d", nd.Name, ref.LevelID)
			}
		}
		devices := append([]*Device(nil), l.Devices...)
		devices[k] = nd
		l.Devices = devices
		return nil
	})
	if err == nil {
		s.logf("device.update", fmt.Sprintf("garage %d level %d device %d", ref.GarageID, ref.LevelID, ref.DeviceID))
	}
	return err
}

// RemoveDevice drops a device from its level.
func (s *Site) RemoveDevice(ref DeviceRef) error {
	err := s.withLevel(ref.GarageID, ref.LevelID, func(_ *Garage, l *Level) error {
		k, d := l.deviceIndex(ref.DeviceID)
		if d == nil {
			return invalidOpf("device %d not found on level %d", ref.DeviceID, ref.LevelID)
		}
		devices := make([]*Device, 0, len(l.Devices)-1)
		devices = append(devices, l.Devices[:k]...)
		l.Devices = append(devices, l.Devices[k+1:]...)
		return nil
	})
	if err == nil {
		s.logf("device.remove", fmt.Sprintf("garage %d level %d device %d", ref.GarageID, ref.LevelID, ref.DeviceID))
	}
	return err
}

// PlaceDevice positions a device on the level background.
func (s *Site) PlaceDevice(ref DeviceRef, x, y float64) error {
	return s.UpdateDevice(ref, func(d *Device) {
		d.X, d.Y = &x, &y
		d.PendingPlacement = false
	})
}

// UnplaceDevice returns a device to the pending-placement tray.
func (s *Site) UnplaceDevice(ref DeviceRef) error {
	return s.UpdateDevice(ref, func(d *Device) {
		d.X, d.Y = nil, nil
		d.PendingPlacement = true
	})
}

// MergeResult summary of MergeDevices
type MergeResult struct {
	Added   int      `json:"added"`
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped,omitempty"`
}

// MergeDevices folds parser output into a level. A device whose name already
// exists on the level with the same kind has its addressing and schema
// fields refreshed and keeps its placement; other devices are appended as
// pending. Name matches of a different kind are skipped.
func (s *Site) MergeDevices(garageID, levelID int, devs []Device) (MergeResult, error) {
	var res MergeResult
	err := s.withLevel(garageID, levelID, func(g *Garage, l *Level) error {
		devices := append([]*Device(nil), l.Devices...)
		l.Devices = devices
		for i := range devs {
			in := devs[i].Clone()
			in.PendingPlacement, in.X, in.Y = true, nil, nil
			in.ServerID = nil
			if err := in.checkShape(); err != nil {
				return err
			}
			existing := l.DeviceByName(in.Name)
			if existing == nil {
				l.AppendDevice(in)
				res.Added++
				continue
			}
			if existing.Kind != in.Kind {
				res.Skipped = append(res.Skipped, in.Name)
				continue
			}
			k, _ := l.deviceIndex(existing.ID)
			nd := existing.Clone()
			refreshFrom(nd, in)
			if err := nd.checkShape(); err != nil {
				return err
			}
			l.Devices[k] = nd
			l.nameIndex = nil
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}
	s.logf("device.merge", fmt.Sprintf("garage %d level %d added %d updated %d", garageID, levelID, res.Added, res.Updated))
	return res, nil
}

// refreshFrom copies the fields the XML schemas carry from src into dst.
func refreshFrom(dst, src *Device) {
	dst.SubKind = src.SubKind
	dst.IPAddress = src.IPAddress
	dst.Port = src.Port
	dst.MACAddress = src.MACAddress
	dst.ExternalURL = src.ExternalURL
	switch dst.Kind {
	case KindCamera:
		dc, sc := dst.Camera, src.Camera
		dc.FPS, dc.RecordRawClips, dc.Enabled, dc.MotionThreshold = sc.FPS, sc.RecordRawClips, sc.Enabled, sc.MotionThreshold
		if sc.HardwareType == HardwareDualLens {
			dc.HardwareType = HardwareDualLens
			dc.Stream1 = mergeStream(dc.Stream1, sc.Stream1)
			dc.Stream2 = mergeStream(dc.Stream2, sc.Stream2)
		}
	case KindSensor:
		ds, ss := dst.Sensor, src.Sensor
		ds.SensorID, ds.ControllerAddress, ds.ControllerKey = ss.SensorID, ss.ControllerAddress, ss.ControllerKey
		ds.ParkingType, ds.TempParkingTimeMinutes = ss.ParkingType, ss.TempParkingTimeMinutes
	}
}

// mergeStream refreshes addressing but keeps rotation, direction and flow.
func mergeStream(dst, src *Stream) *Stream {
	if src == nil {
		return dst
	}
	if dst == nil {
		s := *src
		return &s
	}
	s := *dst
	s.SubKind, s.IPAddress, s.Port, s.ExternalURL = src.SubKind, src.IPAddress, src.Port, src.ExternalURL
	return &s
}
