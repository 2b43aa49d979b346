package workbook

import (
	"fmt"
	"testing"

	"garage-layout/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func importSheets(t *testing.T, sheets ...sheet) *Result {
	t.Helper()
	res, err := ImportWorkbook(buildWorkbook(t, sheets...))
	require.NoError(t, err)
	return res
}

func onlyLevel(t *testing.T, res *Result) *domain.Level {
	t.Helper()
	require.Len(t, res.Site.Garages, 1)
	require.Len(t, res.Site.Garages[0].Levels, 1)
	return res.Site.Garages[0].Levels[0]
}

func TestImport_MinimalSite(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet([]string{"A", "L1", "Ground", "150", "srv1"}),
	)

	g := res.Site.Garages[0]
	assert.Equal(t, "Alpha", g.VisibleName)
	assert.Equal(t, "A", g.InternalName)

	l := onlyLevel(t, res)
	assert.Equal(t, "Ground", l.VisibleName)
	assert.Equal(t, 150, l.TotalSpots)
	assert.Equal(t, 150, l.Config.MaximumOccupancy)
	assert.Equal(t, "srv1", l.Config.Server)
	assert.Empty(t, l.Devices)

	require.Len(t, g.Servers, 1)
	assert.Equal(t, "srv1", g.Servers[0].Name)
	assert.Equal(t, domain.ServerProcessing, g.Servers[0].Type)

	assert.Equal(t, []string{SheetGarages, SheetGarageLevels}, res.SheetNames)
}

func TestImport_FLIJoin(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet([]string{"A", "L1", "Ground", "150", "srv1"}),
		fliSheet([]string{"A", "L1", "CAM-1", "true"}),
		camerasSheet([]string{"CAM-1", "FLI", "10.0.0.5", "80", "srv1"}),
	)

	l := onlyLevel(t, res)
	require.Len(t, l.Devices, 1)
	d := l.Devices[0]
	assert.Equal(t, domain.KindCamera, d.Kind)
	assert.Equal(t, domain.SubKindFLI, d.SubKind)
	assert.Equal(t, "10.0.0.5", d.IPAddress)
	assert.Equal(t, "80", d.Port)
	assert.True(t, d.Camera.IsEntryExitCamera)
	assert.True(t, d.PendingPlacement)
	assert.Nil(t, d.X)
	assert.Nil(t, d.Y)
	require.NotNil(t, d.ServerID)
	assert.Equal(t, res.Site.Garages[0].Servers[0].ID, *d.ServerID)
}

func TestImport_ServerPickupWithoutDuplication(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet([]string{"A", "L1", "Ground", "150", "srv1"}),
		fliSheet([]string{"A", "L1", "CAM-1", "true"}),
		camerasSheet(
			[]string{"CAM-1", "FLI", "10.0.0.5", "80", "srv1"},
			[]string{"CAM-2", "LPR", "10.0.0.6", "", "srv1"},
		),
	)

	l := onlyLevel(t, res)
	require.Len(t, l.Devices, 2)
	assert.Equal(t, "CAM-1", l.Devices[0].Name)
	assert.Equal(t, domain.SubKindFLI, l.Devices[0].SubKind)
	assert.Equal(t, "CAM-2", l.Devices[1].Name)
	assert.Equal(t, domain.SubKindLPR, l.Devices[1].SubKind)
	assert.Equal(t, 1, l.Devices[0].ID)
	assert.Equal(t, 2, l.Devices[1].ID)
}

func TestImport_FLIListedCameraIsNotPickedUpByServerElsewhere(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet(
			[]string{"A", "L1", "Ground", "150", "srv1"},
			[]string{"A", "L2", "Upper", "100", "srv1"},
		),
		fliSheet([]string{"A", "L1", "CAM-1", "false"}),
		camerasSheet([]string{"CAM-1", "FLI", "10.0.0.5", "80", "srv1"}),
	)

	levels := res.Site.Garages[0].Levels
	require.Len(t, levels, 2)
	assert.Len(t, levels[0].Devices, 1)
	assert.Empty(t, levels[1].Devices)
}

func TestImport_NwaveSensorGroup(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet([]string{"A", "L1", "Ground", "150", "srv1"}),
		sheet{name: SheetSensorGroups, rows: [][]string{
			{"Garage", "Level", "GroupID", "SensorProtocol", "ControllerKey"},
			{"A", "L1", "G1", "nwave", "KEY"},
		}},
		sheet{name: SheetSensors, rows: [][]string{
			{"SensorGroupID", "SensorName", "ParkingType"},
			{"G1", "S-1", "ada"},
		}},
	)

	l := onlyLevel(t, res)
	require.Len(t, l.Devices, 1)
	d := l.Devices[0]
	assert.Equal(t, domain.KindSensor, d.Kind)
	assert.Equal(t, domain.SubKindNwave, d.SubKind)
	assert.Equal(t, "KEY", d.Sensor.ControllerKey)
	assert.Equal(t, "G1", d.Sensor.SensorID)
	require.Len(t, d.Sensor.Members, 1)
	assert.Equal(t, "S-1", d.Sensor.Members[0].Name)
	assert.Equal(t, "ada", d.Sensor.Members[0].ParkingType)
}

func TestImport_DisplayControllers(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet([]string{"A", "L1", "Ground", "150", ""}),
		sheet{name: SheetDisplayControllers, rows: [][]string{
			{"DisplayName", "DisplayProtocol", "IPAddress", "Port", "OverrideState"},
			{"SIGN-LED", "LED", "10.1.0.1", "10001", "full"},
			{"SIGN-D", "DESIGNABLE", "10.1.0.2", "", ""},
			{"SIGN-S", "whatever", "10.1.0.3", "", "bogus"},
		}},
		sheet{name: SheetDisplayLevels, rows: [][]string{
			{"Garage", "Level", "DisplayName"},
			{"A", "L1", "SIGN-LED"},
			{"A", "L1", "SIGN-D"},
			{"A", "L1", "SIGN-S"},
			{"A", "L1", "SIGN-LED"},
			{"A", "L1", "GHOST"},
		}},
	)

	l := onlyLevel(t, res)
	require.Len(t, l.Devices, 3)
	assert.Equal(t, domain.SubKindLED, l.Devices[0].SubKind)
	assert.Equal(t, domain.OverrideFull, l.Devices[0].Sign.OverrideState)
	assert.Equal(t, domain.SubKindDesignable, l.Devices[1].SubKind)
	assert.Equal(t, domain.SubKindStatic, l.Devices[2].SubKind)
	assert.Equal(t, domain.OverrideNone, l.Devices[2].Sign.OverrideState)
	for _, d := range l.Devices {
		assert.Equal(t, domain.KindSign, d.Kind)
		assert.True(t, d.PendingPlacement)
	}
}

func TestImport_DanglingReferencesAreSkipped(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet([]string{"A", "L1", "Ground", "150", ""}),
		fliSheet([]string{"A", "L1", "NO-SUCH-CAM", "true"}),
		sheet{name: SheetSensorGroups, rows: [][]string{
			{"Garage", "Level", "GroupID", "SensorProtocol"},
			{"A", "L1", "EMPTY", "proco"},
		}},
		sheet{name: SheetDisplayLevels, rows: [][]string{
			{"Garage", "Level", "DisplayName"},
			{"A", "L1", "GHOST"},
		}},
	)

	l := onlyLevel(t, res)
	assert.Empty(t, l.Devices)
	assert.Len(t, res.Raw.Sheets[SheetFLICameras], 1)
	assert.Len(t, res.Raw.Sheets[SheetSensorGroups], 1)
	assert.Len(t, res.Raw.Sheets[SheetDisplayLevels], 1)
}

func TestImport_DuplicateNamesPerLevel(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet(
			[]string{"A", "L1", "Ground", "150", "srv1"},
			[]string{"A", "L2", "Upper", "150", "srv2"},
		),
		fliSheet(
			[]string{"A", "L1", "CAM-1", "true"},
			[]string{"A", "L1", "CAM-1", "false"},
			[]string{"A", "L2", "CAM-1", "false"},
		),
		camerasSheet([]string{"CAM-1", "FLI", "10.0.0.5", "80", "srv1"}),
	)

	levels := res.Site.Garages[0].Levels
	require.Len(t, levels[0].Devices, 1, "first wins within a level")
	assert.True(t, levels[0].Devices[0].Camera.IsEntryExitCamera)
	require.Len(t, levels[1].Devices, 1, "duplicates across levels are permitted")
	require.NotNil(t, levels[1].Devices[0].ServerID, "server resolved by the camera's own Server cell")
	assert.Equal(t, levels[0].Devices[0].ServerID, levels[1].Devices[0].ServerID)
}

func TestImport_CrossLevelServerCollisionIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	imp := NewImporter(WithLogger(zap.New(core)))

	res, err := imp.Import(buildWorkbook(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet(
			[]string{"A", "L1", "Ground", "150", "srv1"},
			[]string{"A", "L2", "Upper", "150", "srv1"},
		),
		camerasSheet([]string{"CAM-9", "LPR", "10.0.0.9", "", "srv1"}),
	))
	require.NoError(t, err)

	levels := res.Site.Garages[0].Levels
	assert.Len(t, levels[0].Devices, 1)
	assert.Len(t, levels[1].Devices, 1, "behavior is preserved, only logged")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "CAM-9", entry.ContextMap()["device_name"])
}

func TestImport_DualLensCamera(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet([]string{"A", "L1", "Ground", "150", "srv1"}),
		sheet{name: SheetCameras, rows: [][]string{
			{"Name", "DetectionType", "IPAddress", "Port", "Server", "HardwareType", "Stream2IPAddress", "Stream2Port", "Stream2DetectionType"},
			{"DL", "FLI", "1.1.1.1", "80", "srv1", "Dual-Lens", "1.1.1.2", "80", "LPR"},
		}},
	)

	d := onlyLevel(t, res).Devices[0]
	require.True(t, d.IsDualLens())
	assert.Equal(t, "1.1.1.1", d.Camera.Stream1.IPAddress)
	assert.Equal(t, domain.SubKindFLI, d.Camera.Stream1.SubKind)
	assert.Equal(t, "1.1.1.2", d.Camera.Stream2.IPAddress)
	assert.Equal(t, domain.SubKindLPR, d.Camera.Stream2.SubKind)
}

func TestImport_EscapesDisplayTextOnly(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A&B", `Tom's <Garage>`}),
		levelsSheet([]string{"A&B", "L1", `"Roof"`, "10", "srv&1"}),
		fliSheet([]string{"A&B", "L1", "CAM<1>", "yes"}),
		camerasSheet([]string{"CAM<1>", "FLI", "10.0.0.5", "80", "srv&1"}),
	)

	g := res.Site.Garages[0]
	assert.Equal(t, "Tom&#39;s &lt;Garage&gt;", g.VisibleName)
	assert.Equal(t, "A&B", g.InternalName)
	l := g.Levels[0]
	assert.Equal(t, "&#34;Roof&#34;", l.VisibleName)
	assert.Equal(t, "srv&1", l.Config.Server)
	require.Len(t, l.Devices, 1)
	assert.Equal(t, "CAM<1>", l.Devices[0].Name)
}

func TestImport_GaragesWithoutLevels(t *testing.T) {
	res := importSheets(t, garagesSheet([]string{"A", "Alpha"}, []string{"B", "Beta"}))

	require.Len(t, res.Site.Garages, 2)
	for _, g := range res.Site.Garages {
		assert.Empty(t, g.Levels)
	}
	assert.Equal(t, 1, res.Site.Garages[0].ID)
	assert.Equal(t, 2, res.Site.Garages[1].ID)
}

func TestImport_UnknownSheetsAreEchoed(t *testing.T) {
	res := importSheets(t,
		sheet{name: "Notes", rows: [][]string{{"Text"}, {"hello"}}},
		garagesSheet([]string{"A", "Alpha"}),
	)

	assert.Equal(t, []string{"Notes", SheetGarages}, res.SheetNames)
	require.Len(t, res.Raw.Others["Notes"], 1)
	assert.Equal(t, "hello", res.Raw.Others["Notes"][0]["Text"])
	assert.NotNil(t, res.Raw.Sheets[SheetCameras], "missing recognized sheets read as empty")
	assert.Empty(t, res.Raw.Sheets[SheetCameras])
}

func TestImport_ContactsAndQuickLinks(t *testing.T) {
	res := importSheets(t,
		garagesSheet([]string{"A", "Alpha"}),
		sheet{name: SheetContacts, rows: [][]string{{"Garage", "Name", "Phone"}, {"A", "Ops Desk", "555-0100"}}},
		sheet{name: SheetQuickLinks, rows: [][]string{{"Garage", "Title", "Url"}, {"A", "Portal", "https://portal.example/?a=1&b=2"}}},
	)

	g := res.Site.Garages[0]
	require.Len(t, g.Contacts, 1)
	assert.Equal(t, "Ops Desk", g.Contacts[0].Name)
	require.Len(t, g.QuickLinks, 1)
	assert.Equal(t, "https://portal.example/?a=1&b=2", g.QuickLinks[0].URL)
}

func TestImport_BadInput(t *testing.T) {
	_, err := ImportWorkbook(nil)
	assert.ErrorIs(t, err, domain.ErrBadInput)

	_, err = ImportWorkbook([]byte{})
	assert.ErrorIs(t, err, domain.ErrBadInput)

	_, err = ImportWorkbook([]byte("Garage,VisibleGarageName\nA,Alpha\n"))
	assert.ErrorIs(t, err, domain.ErrBadInput)
}

func TestImport_SheetRowLimit(t *testing.T) {
	rows := func(n int) sheet {
		return camerasSheet(numberedRows(n, func(i int) []string {
			return []string{camName(i), "FLI", "10.0.0.1", "80", "srv1"}
		})...)
	}

	res, err := ImportWorkbook(buildWorkbook(t, garagesSheet([]string{"A", "Alpha"}), rows(MaxSheetRows)))
	require.NoError(t, err, "exactly 10 000 rows is accepted")
	assert.Len(t, res.Raw.Sheets[SheetCameras], MaxSheetRows)

	_, err = ImportWorkbook(buildWorkbook(t, garagesSheet([]string{"A", "Alpha"}), rows(MaxSheetRows+1)))
	require.ErrorIs(t, err, domain.ErrLimitExceeded)
	var le *domain.LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, MaxSheetRows, le.Cap)
	assert.Equal(t, MaxSheetRows+1, le.Observed)
}

func TestImport_UnknownSheetsCountTowardRowLimit(t *testing.T) {
	imp := NewImporter(WithLimits(Limits{MaxSheetRows: 3}))
	_, err := imp.Import(buildWorkbook(t,
		garagesSheet([]string{"A", "Alpha"}),
		sheet{name: "Scratch", rows: [][]string{{"X"}, {"1"}, {"2"}, {"3"}, {"4"}}},
	))
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)
}

func TestImport_SiteDeviceLimit(t *testing.T) {
	// 5 levels share srv1 and each picks up all 10 000 cameras (50 000 devices);
	// a sixth level adds one sensor group, which is one too many.
	levelRows := numberedRows(5, func(i int) []string {
		return []string{"A", fmt.Sprintf("L%d", i+1), "", "0", "srv1"}
	})
	cams := camerasSheet(numberedRows(MaxSheetRows, func(i int) []string {
		return []string{camName(i), "LPR", "", "", "srv1"}
	})...)

	atCap := buildWorkbook(t, garagesSheet([]string{"A", "Alpha"}), levelsSheet(levelRows...), cams)
	res, err := ImportWorkbook(atCap)
	require.NoError(t, err)
	assert.Equal(t, MaxDevices, res.Site.DeviceCount())

	overCap := buildWorkbook(t,
		garagesSheet([]string{"A", "Alpha"}),
		levelsSheet(append(levelRows, []string{"A", "L6", "", "0", ""})...),
		cams,
		sheet{name: SheetSensorGroups, rows: [][]string{{"Garage", "Level", "GroupID"}, {"A", "L6", "G1"}}},
		sheet{name: SheetSensors, rows: [][]string{{"SensorGroupID", "SensorID"}, {"G1", "1"}}},
	)
	res, err = ImportWorkbook(overCap)
	require.ErrorIs(t, err, domain.ErrLimitExceeded)
	assert.Nil(t, res, "no partial model on abort")
	var le *domain.LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, MaxDevices, le.Cap)
	assert.Equal(t, MaxDevices+1, le.Observed)
}

func TestImport_LimitsCannotBeRaised(t *testing.T) {
	l := Limits{MaxSheetRows: 1_000_000, MaxDevices: -1}.normalized()
	assert.Equal(t, DefaultLimits(), l)
	assert.Equal(t, Limits{MaxSheetRows: 5, MaxDevices: 7}, Limits{MaxSheetRows: 5, MaxDevices: 7}.normalized())
}
