package workbook

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"garage-layout/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Template returns a workbook containing only the header row of every
// recognized sheet.
func Template() ([]byte, error) {
	return writeSheets(map[string][][]string{})
}

// Omission a device WriteWorkbook wrote but the importer will not bring back.
type Omission struct {
	Garage string `json:"garage"`
	Level  string `json:"level"`
	Device string `json:"device"`
	Reason string `json:"reason"`
}

// Omission reasons
const (
	ReasonNoMembers = "sensor group has no member sensors"
)

// WriteWorkbook lays a site back out as a workbook that the importer turns
// into an equivalent site. Every camera is listed in FLICameras so that it
// lands on its own level again; display text is unescaped so it is not
// escaped twice on re-import.
//
// Cameras, DisplayControllers and Sensors rows are keyed by name across the
// whole workbook. A name reused on several levels is written once when every
// copy carries the same settings, and is an ErrInvalidOperation otherwise.
// Sensor groups without members are written but listed as omissions.
func WriteWorkbook(site *domain.Site) ([]byte, []Omission, error) {
	data := map[string][][]string{}
	put := func(sheet string, cells ...string) {
		data[sheet] = append(data[sheet], cells)
	}
	var omitted []Omission
	cameras, signs, groups := keyedRows{}, keyedRows{}, keyedRows{}
	u := html.UnescapeString
	itoa := strconv.Itoa
	yes := func(b bool) string {
		if b {
			return "true"
		}
		return "false"
	}

	for _, g := range site.Garages {
		gkey := g.InternalName
		if gkey == "" {
			gkey = fmt.Sprintf("G%d", g.ID)
		}
		put(SheetGarages, gkey, u(g.VisibleName), u(g.Address), u(g.City), u(g.State), u(g.Zip), g.CoverImage, u(g.Stage))
		for _, c := range g.Contacts {
			put(SheetContacts, gkey, u(c.Name), u(c.Role), u(c.Phone), u(c.Email))
		}
		for _, q := range g.QuickLinks {
			put(SheetQuickLinks, gkey, u(q.Title), q.URL)
		}
		for _, l := range g.Levels {
			lkey := l.InternalName
			if lkey == "" {
				lkey = fmt.Sprintf("L%d", l.ID)
			}
			c := l.Config
			put(SheetGarageLevels, gkey, lkey, u(l.VisibleName), itoa(l.TotalSpots), itoa(l.EVSpots), itoa(l.ADASpots),
				l.BackgroundImage, c.Server, u(c.LevelType), yes(c.VisibleOnPortal), itoa(c.MaximumOccupancy),
				yes(c.AutoResetEnabled), c.AutoResetTime, itoa(c.AutoResetValue), itoa(c.DisplayOrder),
				itoa(c.PortalOrder), itoa(c.NearFullThreshold), itoa(c.FullThreshold))

			for _, d := range l.Devices {
				switch d.Kind {
				case domain.KindCamera:
					cells := cameraCells(g, d)
					first, err := cameras.claim("camera", d.Name, cells)
					if err != nil {
						return nil, nil, err
					}
					if first {
						put(SheetCameras, cells...)
					}
					put(SheetFLICameras, gkey, lkey, d.Name, d.Camera.BackOfCarIs, yes(d.Camera.IsEntryExitCamera), d.Camera.DependentCameraName)
				case domain.KindSign:
					cells := []string{d.Name, signProtocol(d), d.IPAddress, d.Port, d.MACAddress, d.ExternalURL, string(d.Sign.OverrideState)}
					first, err := signs.claim("display controller", d.Name, cells)
					if err != nil {
						return nil, nil, err
					}
					if first {
						put(SheetDisplayControllers, cells...)
					}
					put(SheetDisplayLevels, gkey, lkey, d.Name)
				case domain.KindSensor:
					s := d.Sensor
					groupID := s.SensorID
					if groupID == "" {
						groupID = d.Name
					}
					put(SheetSensorGroups, gkey, lkey, groupID, d.Name, string(d.SubKind), s.ControllerKey, s.ControllerAddress,
						d.IPAddress, d.Port, s.ParkingType, itoa(s.TempParkingTimeMinutes))
					if len(s.Members) == 0 {
						omitted = append(omitted, Omission{Garage: gkey, Level: lkey, Device: d.Name, Reason: ReasonNoMembers})
						continue
					}
					var members []string
					for _, m := range s.Members {
						members = append(members, m.SensorID, u(m.Name), m.ParkingType, itoa(m.TempParkingTimeMinutes))
					}
					first, err := groups.claim("sensor group", groupID, members)
					if err != nil {
						return nil, nil, err
					}
					if !first {
						continue
					}
					for _, m := range s.Members {
						put(SheetSensors, groupID, m.SensorID, u(m.Name), m.ParkingType, itoa(m.TempParkingTimeMinutes))
					}
				}
			}
		}
	}
	out, err := writeSheets(data)
	if err != nil {
		return nil, nil, err
	}
	return out, omitted, nil
}

// keyedRows remembers the cells written under each name of a name-keyed sheet.
type keyedRows map[string]string

// claim reports whether key is new. A known key with different cells is an
// error.
func (k keyedRows) claim(what, key string, cells []string) (bool, error) {
	sig := strings.Join(cells, "\x1f")
	prev, ok := k[key]
	if !ok {
		k[key] = sig
		return true, nil
	}
	if prev != sig {
		return false, fmt.Errorf("%w: %s %q appears on several levels with different settings", domain.ErrInvalidOperation, what, key)
	}
	return false, nil
}

func cameraCells(g *domain.Garage, d *domain.Device) []string {
	server := ""
	if d.ServerID != nil {
		if srv, ok := g.Server(*d.ServerID); ok {
			server = srv.Name
		}
	}
	cells := []string{d.Name, detectionType(d.SubKind), d.IPAddress, d.Port, d.MACAddress, d.ExternalURL, server, "", "", "", "", ""}
	if d.IsDualLens() {
		s1, s2 := d.Camera.Stream1, d.Camera.Stream2
		cells[1], cells[2], cells[3], cells[5] = detectionType(s1.SubKind), s1.IPAddress, s1.Port, s1.ExternalURL
		cells[7] = "DUAL-LENS"
		cells[8], cells[9], cells[10], cells[11] = s2.IPAddress, s2.Port, detectionType(s2.SubKind), s2.ExternalURL
	}
	return cells
}

func detectionType(sub domain.SubKind) string {
	switch sub {
	case domain.SubKindLPR:
		return "LPR"
	case domain.SubKindPeople:
		return "PEOPLE"
	default:
		return "FLI"
	}
}

func signProtocol(d *domain.Device) string {
	switch d.SubKind {
	case domain.SubKindLED:
		return "LED"
	case domain.SubKindDesignable:
		return "DESIGNABLE"
	default:
		return "STATIC"
	}
}

// writeSheets writes every recognized sheet with a styled, frozen header row.
func writeSheets(data map[string][][]string) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sheet := range RecognizedSheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, sheetColumns[sheet], data[sheet], headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]string, headerStyle int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, float64(max(12, len(header)+4))); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, cells := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := make([]any, len(cells))
		for k, v := range cells {
			values[k] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, sheet, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}
