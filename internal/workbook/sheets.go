package workbook

// Recognized sheet names (case-sensitive).
const (
	SheetGarages            = "Garages"
	SheetGarageLevels       = "GarageLevels"
	SheetDisplayGroups      = "DisplayGroups"
	SheetDisplayControllers = "DisplayControllers"
	SheetDisplayLevels      = "DisplayLevels"
	SheetDisplaySchedules   = "DisplaySchedules"
	SheetCameras            = "Cameras"
	SheetFLICameras         = "FLICameras"
	SheetSensorGroups       = "SensorGroups"
	SheetSensors            = "Sensors"
	SheetContacts           = "Contacts"
	SheetQuickLinks         = "QuickLinks"
)

// RecognizedSheets in workbook order. Contacts and QuickLinks are optional
// carry-through sheets for garage UI state.
var RecognizedSheets = []string{
	SheetGarages,
	SheetGarageLevels,
	SheetDisplayGroups,
	SheetDisplayControllers,
	SheetDisplayLevels,
	SheetDisplaySchedules,
	SheetCameras,
	SheetFLICameras,
	SheetSensorGroups,
	SheetSensors,
	SheetContacts,
	SheetQuickLinks,
}

func isRecognized(name string) bool {
	for _, s := range RecognizedSheets {
		if s == name {
			return true
		}
	}
	return false
}

// Column headers per sheet, in the order the workbook writer lays them out.
var sheetColumns = map[string][]string{
	SheetGarages: {
		"Garage", "VisibleGarageName", "Address", "City", "State", "Zip", "CoverImage", "Stage",
	},
	SheetGarageLevels: {
		"Garage", "Level", "VisibleLevelName", "TotalSpots", "EVSpots", "ADASpots", "BackgroundImage",
		"Server", "LevelType", "VisibleOnPortal", "MaximumOccupancy", "AutoResetEnabled", "AutoResetTime",
		"AutoResetValue", "DisplayOrder", "PortalOrder", "NearFullThreshold", "FullThreshold",
	},
	SheetDisplayGroups:    {"Garage", "Level", "DisplayGroup"},
	SheetDisplaySchedules: {"DisplayName", "Schedule"},
	SheetDisplayControllers: {
		"DisplayName", "DisplayProtocol", "IPAddress", "Port", "MACAddress", "PreviewUrl", "OverrideState",
	},
	SheetDisplayLevels: {"Garage", "Level", "DisplayName"},
	SheetCameras: {
		"Name", "DetectionType", "IPAddress", "Port", "MACAddress", "ExternalUrl", "Server", "HardwareType",
		"Stream2IPAddress", "Stream2Port", "Stream2DetectionType", "Stream2ExternalUrl",
	},
	SheetFLICameras: {
		"Garage", "Level", "CameraName", "BackOfCarIs", "IsEntryExitCamera", "DependentCameraName",
	},
	SheetSensorGroups: {
		"Garage", "Level", "GroupID", "GroupName", "SensorProtocol", "ControllerKey", "ControllerAddress",
		"IPAddress", "Port", "ParkingType", "TempParkingTimeMinutes",
	},
	SheetSensors: {
		"SensorGroupID", "SensorID", "SensorName", "ParkingType", "TempParkingTimeMinutes",
	},
	SheetContacts:   {"Garage", "Name", "Role", "Phone", "Email"},
	SheetQuickLinks: {"Garage", "Title", "Url"},
}

// Columns returns the header row the writer uses for sheet.
func Columns(sheet string) []string {
	return append([]string(nil), sheetColumns[sheet]...)
}
