package domain

import "fmt"

// FindingCode identifies a non-fatal model inconsistency.
type FindingCode string

const (
	FindingSpotCount          FindingCode = "spot-count-mismatch"
	FindingDanglingFlowLevel  FindingCode = "dangling-flow-level"
	FindingDanglingServer     FindingCode = "dangling-server"
	FindingMissingCoordinates FindingCode = "missing-coordinates"
	FindingStrayCoordinates   FindingCode = "unexpected-coordinates"
	FindingDuplicateName      FindingCode = "duplicate-device-name"
	FindingDualLensStreams    FindingCode = "dual-lens-streams"
	FindingInvalidSubKind     FindingCode = "invalid-subkind"
)

// Finding one validation result. LevelID and DeviceID are zero when the
// finding is not about a level or device.
type Finding struct {
	Code     FindingCode `json:"code"`
	GarageID int         `json:"garage_id"`
	LevelID  int         `json:"level_id,omitempty"`
	DeviceID int         `json:"device_id,omitempty"`
	Message  string      `json:"message"`
}

// Validate reports every invariant the model does not currently satisfy.
// It never mutates the site.
func (s *Site) Validate() []Finding {
	var out []Finding
	for _, g := range s.Garages {
		levelIDs := make(map[int]bool, len(g.Levels))
		for _, l := range g.Levels {
			levelIDs[l.ID] = true
		}
		for _, l := range g.Levels {
			if l.TotalSpots < l.EVSpots+l.ADASpots {
				out = append(out, Finding{
					Code: FindingSpotCount, GarageID: g.ID, LevelID: l.ID,
					Message: fmt.Sprintf("level %q: total spots %d < ev %d + ada %d", l.VisibleName, l.TotalSpots, l.EVSpots, l.ADASpots),
				})
			}
			seen := make(map[string]bool, len(l.Devices))
			for _, d := range l.Devices {
				f := Finding{GarageID: g.ID, LevelID: l.ID, DeviceID: d.ID}
				add := func(code FindingCode, format string, args ...any) {
					f.Code = code
					f.Message = fmt.Sprintf("device %q: ", d.Name) + fmt.Sprintf(format, args...)
					out = append(out, f)
				}
				if seen[d.Name] {
					add(FindingDuplicateName, "name appears more than once on level %q", l.VisibleName)
				}
				seen[d.Name] = true
				if !ValidSubKind(d.Kind, d.SubKind) {
					add(FindingInvalidSubKind, "sub-kind %q is not valid for %q", d.SubKind, d.Kind)
				}
				if d.PendingPlacement && (d.X != nil || d.Y != nil) {
					add(FindingStrayCoordinates, "pending placement but has coordinates")
				}
				if !d.PendingPlacement && (d.X == nil || d.Y == nil) {
					add(FindingMissingCoordinates, "placed but missing coordinates")
				}
				if d.ServerID != nil {
					if _, ok := g.Server(*d.ServerID); !ok {
						add(FindingDanglingServer, "server %d is not owned by garage %d", *d.ServerID, g.ID)
					}
				}
				if d.IsDualLens() && (d.Camera.Stream1 == nil || d.Camera.Stream2 == nil) {
					add(FindingDualLensStreams, "dual-lens camera must have two streams")
				}
				if d.Camera != nil {
					for i, st := range []*Stream{d.Camera.Stream1, d.Camera.Stream2} {
						if st != nil && st.Flow.LevelID != 0 && !levelIDs[st.Flow.LevelID] {
							add(FindingDanglingFlowLevel, "stream%d flows to unknown level %d", i+1, st.Flow.LevelID)
						}
					}
				}
			}
		}
	}
	return out
}
