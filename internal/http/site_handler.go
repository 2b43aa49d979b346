package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"garage-layout/internal/domain"
	"garage-layout/internal/service"

	"go.uber.org/zap"
)

// MaxUploadBytes cap on uploaded workbooks.
const MaxUploadBytes = 64 << 20

// OmittedHeader response header of the workbook download.
const OmittedHeader = "X-Workbook-Omitted-Devices"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SiteHandler exposes the site service over HTTP.
type SiteHandler struct {
	svc    *service.SiteService
	logger *zap.Logger
}

// NewSiteHandler wires the handler to the service. A nil logger discards logs.
func NewSiteHandler(svc *service.SiteService, logger *zap.Logger) *SiteHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteHandler{svc: svc, logger: logger}
}

// Health reports liveness.
func (h *SiteHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
}

// Import accepts the workbook as a multipart "file" field or as the raw body.
func (h *SiteHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	var data []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, fmt.Errorf("%w: %v", domain.ErrBadInput, err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, domain.BadInputf("missing file field"))
			return
		}
		defer file.Close()
		h.logger.Info("Workbook upload", zap.String("filename", header.Filename), zap.Int64("size", header.Size))
		data, err = io.ReadAll(file)
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		var err error
		data, err = io.ReadAll(r.Body)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	sum, err := h.svc.Import(data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(sum))
}

// ImportRemote body: {"url": "..."}; an empty body uses the configured URL.
func (h *SiteHandler) ImportRemote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, err)
		return
	}
	sum, err := h.svc.ImportRemote(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("Remote import failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(sum))
}

func (h *SiteHandler) GetSite(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.svc.Site()))
}

func (h *SiteHandler) Validate(w http.ResponseWriter, r *http.Request) {
	findings := h.svc.Validate()
	if findings == nil {
		findings = []domain.Finding{}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"findings": findings,
		"total":    len(findings),
	}))
}

// Export writes the whole site, or one garage with ?garage_id=.
func (h *SiteHandler) Export(w http.ResponseWriter, r *http.Request) {
	var (
		res *service.ExportResult
		err error
	)
	if gid := parseInt(r.URL.Query().Get("garage_id"), 0); gid > 0 {
		res, err = h.svc.ExportGarage(r.Context(), gid)
	} else {
		res, err = h.svc.ExportSite(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func (h *SiteHandler) ExportDevice(w http.ResponseWriter, r *http.Request) {
	ref, err := deviceRef(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.svc.ExportDevice(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// PlaceDevice body: {"x": 1.5, "y": 2}. Both coordinates are required.
func (h *SiteHandler) PlaceDevice(w http.ResponseWriter, r *http.Request) {
	ref, err := deviceRef(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, domain.BadInputf("x and y are required"))
		return
	}
	d, err := h.svc.PlaceDevice(ref, *req.X, *req.Y)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(d))
}

func (h *SiteHandler) UnplaceDevice(w http.ResponseWriter, r *http.Request) {
	ref, err := deviceRef(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := h.svc.UnplaceDevice(ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(d))
}

func (h *SiteHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	gid, err := urlInt(r, "gid")
	if err != nil {
		writeError(w, err)
		return
	}
	lid, err := urlInt(r, "lid")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.svc.Bootstrap(r.Context(), gid, lid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func (h *SiteHandler) Template(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Template()
	if err != nil {
		h.logger.Error("Template generation failed", zap.Error(err))
		writeError(w, err)
		return
	}
	writeXLSX(w, "site_template.xlsx", data)
}

// Workbook downloads the current site as a workbook. OmittedHeader carries
// the number of devices a re-import will not restore.
func (h *SiteHandler) Workbook(w http.ResponseWriter, r *http.Request) {
	data, omitted, err := h.svc.Workbook()
	if err != nil {
		h.logger.Error("Workbook export failed", zap.Error(err))
		writeError(w, err)
		return
	}
	w.Header().Set(OmittedHeader, strconv.Itoa(len(omitted)))
	writeXLSX(w, "site.xlsx", data)
}

func writeXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func deviceRef(r *http.Request) (domain.DeviceRef, error) {
	var ref domain.DeviceRef
	var err error
	if ref.GarageID, err = urlInt(r, "gid"); err != nil {
		return ref, err
	}
	if ref.LevelID, err = urlInt(r, "lid"); err != nil {
		return ref, err
	}
	if ref.DeviceID, err = urlInt(r, "did"); err != nil {
		return ref, err
	}
	return ref, nil
}
