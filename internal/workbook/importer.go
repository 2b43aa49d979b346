package workbook

import (
	"strings"

	"garage-layout/internal/domain"

	"go.uber.org/zap"
)

// Result of a workbook import.
type Result struct {
	Site       *domain.Site
	Raw        *RawData
	SheetNames []string
}

// Importer turns a site-definition workbook into a SiteModel. It is a pure
// function over its input; the logger only records cross-level collisions.
type Importer struct {
	limits Limits
	clock  domain.Clock
	logger *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLimits lowers the import caps.
func WithLimits(l Limits) Option {
	return func(i *Importer) { i.limits = l.normalized() }
}

// WithClock sets the clock of the produced site.
func WithClock(c domain.Clock) Option {
	return func(i *Importer) { i.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Importer) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewImporter creates an Importer with the hard caps and a no-op logger.
func NewImporter(opts ...Option) *Importer {
	imp := &Importer{limits: DefaultLimits(), logger: zap.NewNop()}
	for _, o := range opts {
		o(imp)
	}
	return imp
}

// ImportWorkbook imports with default settings.
func ImportWorkbook(data []byte) (*Result, error) {
	return NewImporter().Import(data)
}

// Import parses data and builds the site. Limit and parse failures abort the
// whole import; no partial model is returned.
func (imp *Importer) Import(data []byte) (*Result, error) {
	raw, names, err := readWorkbook(data, imp.limits)
	if err != nil {
		return nil, err
	}
	j := newJoiner(raw, imp.limits.MaxDevices, imp.logger)
	site := domain.NewSite(imp.clock)
	if err := j.build(site); err != nil {
		return nil, err
	}
	imp.logger.Info("Workbook imported",
		zap.Int("garages", len(site.Garages)),
		zap.Int("devices", site.DeviceCount()),
		zap.Int("sheets", len(names)),
	)
	return &Result{Site: site, Raw: raw, SheetNames: names}, nil
}

type pairKey struct{ garage, level string }

func rowPair(r Row) pairKey {
	return pairKey{garage: r.Str("Garage"), level: r.Str("Level")}
}

// joiner holds the per-sheet indexes used by the join.
type joiner struct {
	raw        *RawData
	maxDevices int
	logger     *zap.Logger
	total      int

	levelsByGarage     map[string][]Row
	camerasByName      map[string]Row
	camerasByServer    map[string][]Row
	fliNames           map[string]bool
	fliByPair          map[pairKey][]Row
	sensorGroupsByPair map[pairKey][]Row
	sensorsByGroup     map[string][]Row
	displaysByPair     map[pairKey][]Row
	controllersByName  map[string]Row
	contactsByGarage   map[string][]Row
	linksByGarage      map[string][]Row
}

func newJoiner(raw *RawData, maxDevices int, logger *zap.Logger) *joiner {
	j := &joiner{
		raw:                raw,
		maxDevices:         maxDevices,
		logger:             logger,
		levelsByGarage:     make(map[string][]Row),
		camerasByName:      make(map[string]Row),
		camerasByServer:    make(map[string][]Row),
		fliNames:           make(map[string]bool),
		fliByPair:          make(map[pairKey][]Row),
		sensorGroupsByPair: make(map[pairKey][]Row),
		sensorsByGroup:     make(map[string][]Row),
		displaysByPair:     make(map[pairKey][]Row),
		controllersByName:  make(map[string]Row),
		contactsByGarage:   make(map[string][]Row),
		linksByGarage:      make(map[string][]Row),
	}
	for _, r := range raw.rows(SheetGarageLevels) {
		g := r.Str("Garage")
		j.levelsByGarage[g] = append(j.levelsByGarage[g], r)
	}
	for _, r := range raw.rows(SheetCameras) {
		name := r.Str("Name")
		if name == "" {
			continue
		}
		if _, dup := j.camerasByName[name]; !dup {
			j.camerasByName[name] = r
		}
		if srv := r.Str("Server"); srv != "" {
			j.camerasByServer[srv] = append(j.camerasByServer[srv], r)
		}
	}
	for _, r := range raw.rows(SheetFLICameras) {
		name := r.Str("CameraName")
		if name == "" {
			continue
		}
		j.fliNames[name] = true
		j.fliByPair[rowPair(r)] = append(j.fliByPair[rowPair(r)], r)
	}
	for _, r := range raw.rows(SheetSensorGroups) {
		j.sensorGroupsByPair[rowPair(r)] = append(j.sensorGroupsByPair[rowPair(r)], r)
	}
	for _, r := range raw.rows(SheetSensors) {
		gid := r.Str("SensorGroupID")
		j.sensorsByGroup[gid] = append(j.sensorsByGroup[gid], r)
	}
	for _, r := range raw.rows(SheetDisplayLevels) {
		j.displaysByPair[rowPair(r)] = append(j.displaysByPair[rowPair(r)], r)
	}
	for _, r := range raw.rows(SheetDisplayControllers) {
		name := r.Str("DisplayName")
		if _, dup := j.controllersByName[name]; name != "" && !dup {
			j.controllersByName[name] = r
		}
	}
	for _, r := range raw.rows(SheetContacts) {
		j.contactsByGarage[r.Str("Garage")] = append(j.contactsByGarage[r.Str("Garage")], r)
	}
	for _, r := range raw.rows(SheetQuickLinks) {
		j.linksByGarage[r.Str("Garage")] = append(j.linksByGarage[r.Str("Garage")], r)
	}
	return j
}

func (j *joiner) build(site *domain.Site) error {
	for _, gr := range j.raw.rows(SheetGarages) {
		if err := j.buildGarage(site, gr); err != nil {
			return err
		}
	}
	return nil
}

func (j *joiner) buildGarage(site *domain.Site, gr Row) error {
	key := gr.Str("Garage")
	g := &domain.Garage{
		VisibleName:  gr.TextOr("VisibleGarageName", key),
		InternalName: key,
		Address:      gr.Text("Address"),
		City:         gr.Text("City"),
		State:        gr.Text("State"),
		Zip:          gr.Text("Zip"),
		CoverImage:   gr.Str("CoverImage"),
		Stage:        gr.Text("Stage"),
	}
	for _, r := range j.contactsByGarage[key] {
		g.Contacts = append(g.Contacts, domain.Contact{
			Name:  r.Text("Name"),
			Role:  r.Text("Role"),
			Phone: r.Text("Phone"),
			Email: r.Text("Email"),
		})
	}
	for _, r := range j.linksByGarage[key] {
		g.QuickLinks = append(g.QuickLinks, domain.QuickLink{Title: r.Text("Title"), URL: r.Str("Url")})
	}
	site.AppendGarage(g)

	levelRows := j.levelsByGarage[key]
	for _, lr := range levelRows {
		if srv := lr.Str("Server"); srv != "" {
			if _, ok := g.ServerByName(srv); !ok {
				g.AppendServer(domain.Server{Name: srv, Type: domain.ServerProcessing})
			}
		}
	}

	cameraLevel := make(map[string]string)
	for _, lr := range levelRows {
		l := newLevel(lr)
		g.AppendLevel(l)
		if err := j.buildDevices(g, l, lr, cameraLevel); err != nil {
			return err
		}
	}
	return nil
}

func newLevel(r Row) *domain.Level {
	maxOcc := r.Int("MaximumOccupancy", 0)
	return &domain.Level{
		VisibleName:     r.TextOr("VisibleLevelName", r.Str("Level")),
		InternalName:    r.Str("Level"),
		TotalSpots:      r.Int("TotalSpots", maxOcc),
		EVSpots:         r.Int("EVSpots", 0),
		ADASpots:        r.Int("ADASpots", 0),
		BackgroundImage: r.Str("BackgroundImage"),
		Config: domain.LevelConfig{
			Server:            r.Str("Server"),
			LevelType:         r.Text("LevelType"),
			VisibleOnPortal:   r.Bool("VisibleOnPortal"),
			MaximumOccupancy:  maxOcc,
			AutoResetEnabled:  r.Bool("AutoResetEnabled"),
			AutoResetTime:     r.Str("AutoResetTime"),
			AutoResetValue:    r.Int("AutoResetValue", 0),
			DisplayOrder:      r.Int("DisplayOrder", 0),
			PortalOrder:       r.Int("PortalOrder", 0),
			NearFullThreshold: r.Int("NearFullThreshold", 0),
			FullThreshold:     r.Int("FullThreshold", 0),
		},
	}
}

// buildDevices synthesises the devices of one (garage, level) pair in the
// order FLI cameras, server cameras, sensor groups, display controllers.
// Duplicate names on the level are dropped (first wins).
func (j *joiner) buildDevices(g *domain.Garage, l *domain.Level, lr Row, cameraLevel map[string]string) error {
	pair := pairKey{garage: g.InternalName, level: l.InternalName}
	onLevel := make(map[string]bool)

	add := func(d *domain.Device) error {
		if onLevel[d.Name] {
			return nil
		}
		if j.total == j.maxDevices {
			return &domain.LimitError{Scope: "site devices", Cap: j.maxDevices, Observed: j.total + 1}
		}
		onLevel[d.Name] = true
		l.AppendDevice(d)
		j.total++
		if d.Kind == domain.KindCamera {
			if prev, ok := cameraLevel[d.Name]; ok && prev != l.InternalName {
				j.logger.Warn("Camera appears on more than one level",
					zap.String("garage", g.InternalName),
					zap.String("device_name", d.Name),
					zap.String("first_level", prev),
					zap.String("level", l.InternalName),
				)
			} else if !ok {
				cameraLevel[d.Name] = l.InternalName
			}
		}
		return nil
	}

	// a. FLI-assigned cameras
	for _, fr := range j.fliByPair[pair] {
		cr, ok := j.camerasByName[fr.Str("CameraName")]
		if !ok {
			continue
		}
		d := newCamera(g, cr)
		d.Camera.BackOfCarIs = fr.Str("BackOfCarIs")
		d.Camera.IsEntryExitCamera = fr.Bool("IsEntryExitCamera")
		d.Camera.DependentCameraName = fr.Str("DependentCameraName")
		if err := add(d); err != nil {
			return err
		}
	}

	// b. server-assigned cameras not claimed by any FLI row
	if srv := lr.Str("Server"); srv != "" {
		for _, cr := range j.camerasByServer[srv] {
			name := cr.Str("Name")
			if onLevel[name] || j.fliNames[name] {
				continue
			}
			if err := add(newCamera(g, cr)); err != nil {
				return err
			}
		}
	}

	// c. sensor groups with at least one member
	for _, sr := range j.sensorGroupsByPair[pair] {
		members := j.sensorsByGroup[sr.Str("GroupID")]
		if sr.Str("GroupID") == "" || len(members) == 0 {
			continue
		}
		if err := add(newSensorGroup(sr, members)); err != nil {
			return err
		}
	}

	// d. display controllers
	for _, dr := range j.displaysByPair[pair] {
		cr, ok := j.controllersByName[dr.Str("DisplayName")]
		if !ok {
			continue
		}
		if err := add(newSign(cr)); err != nil {
			return err
		}
	}
	return nil
}

func newCamera(g *domain.Garage, r Row) *domain.Device {
	name := r.Str("Name")
	sub := CameraSubKind(r.Str("DetectionType"))
	var d domain.Device
	if isDualLens(r.Str("HardwareType")) {
		d = domain.NewDualLensCamera(name,
			domain.Stream{
				SubKind:     sub,
				IPAddress:   r.Str("IPAddress"),
				Port:        r.Str("Port"),
				ExternalURL: r.Str("ExternalUrl"),
			},
			domain.Stream{
				SubKind:     CameraSubKind(r.Str("Stream2DetectionType")),
				IPAddress:   r.Str("Stream2IPAddress"),
				Port:        r.Str("Stream2Port"),
				ExternalURL: r.Str("Stream2ExternalUrl"),
			},
		)
	} else {
		d = domain.NewCamera(name, sub)
		d.ExternalURL = r.Str("ExternalUrl")
	}
	d.IPAddress = r.Str("IPAddress")
	d.Port = r.Str("Port")
	d.MACAddress = r.Str("MACAddress")
	if srv, ok := g.ServerByName(r.Str("Server")); ok {
		id := srv.ID
		d.ServerID = &id
	}
	return &d
}

func newSensorGroup(r Row, members []Row) *domain.Device {
	d := domain.NewSensor(r.StrOr("GroupName", r.Str("GroupID")), SensorSubKind(r.Str("SensorProtocol")))
	d.IPAddress = r.Str("IPAddress")
	d.Port = r.Str("Port")
	d.Sensor.SensorID = r.Str("GroupID")
	d.Sensor.ControllerKey = r.Str("ControllerKey")
	d.Sensor.ControllerAddress = r.Str("ControllerAddress")
	d.Sensor.ParkingType = r.Str("ParkingType")
	d.Sensor.TempParkingTimeMinutes = r.Int("TempParkingTimeMinutes", 0)
	for _, m := range members {
		d.Sensor.Members = append(d.Sensor.Members, domain.SpaceSensor{
			SensorID:               m.Str("SensorID"),
			Name:                   m.Text("SensorName"),
			ParkingType:            m.Str("ParkingType"),
			TempParkingTimeMinutes: m.Int("TempParkingTimeMinutes", 0),
		})
	}
	return &d
}

func newSign(r Row) *domain.Device {
	d := domain.NewSign(r.Str("DisplayName"), SignSubKind(r.Str("DisplayProtocol")))
	d.IPAddress = r.Str("IPAddress")
	d.Port = r.Str("Port")
	d.MACAddress = r.Str("MACAddress")
	d.ExternalURL = r.Str("PreviewUrl")
	d.Sign.Protocol = r.Str("DisplayProtocol")
	switch s := domain.OverrideState(strings.ToUpper(r.Str("OverrideState"))); s {
	case domain.OverrideOpen, domain.OverrideFull, domain.OverrideClosed:
		d.Sign.OverrideState = s
	}
	return &d
}

// CameraSubKind maps a DetectionType cell: FLI, LPR, PEOPLE/PEOPLECOUNTING;
// anything else is fli.
func CameraSubKind(v string) domain.SubKind {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "LPR":
		return domain.SubKindLPR
	case "PEOPLE", "PEOPLECOUNTING":
		return domain.SubKindPeople
	default:
		return domain.SubKindFLI
	}
}

// SensorSubKind maps a SensorProtocol cell (case-insensitive); default nwave.
// "space" is what WriteWorkbook writes for standalone space sensors.
func SensorSubKind(v string) domain.SubKind {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "parksol", "parksolution":
		return domain.SubKindParksol
	case "proco":
		return domain.SubKindProco
	case "ensight":
		return domain.SubKindEnsight
	case "space":
		return domain.SubKindSpace
	default:
		return domain.SubKindNwave
	}
}

// SignSubKind maps a DisplayProtocol cell: LED, DESIGNABLE; else static.
func SignSubKind(v string) domain.SubKind {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "LED":
		return domain.SubKindLED
	case "DESIGNABLE":
		return domain.SubKindDesignable
	default:
		return domain.SubKindStatic
	}
}

func isDualLens(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "DUAL", "DUAL-LENS", "DUALLENS", "DUAL_LENS":
		return true
	}
	return false
}
