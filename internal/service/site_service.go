package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"garage-layout/internal/dispatch"
	"garage-layout/internal/domain"
	"garage-layout/internal/mqtt"
	"garage-layout/internal/workbook"

	"go.uber.org/zap"
)

// ErrNoWorkbookSource remote import was asked for without a URL.
var ErrNoWorkbookSource = errors.New("no workbook url configured")

// Fetcher downloads a workbook. WorkbookClient implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Batcher groups the notices of one export under a single id.
type Batcher interface {
	Batch(batchID string) *mqtt.BatchWriter
}

// SiteServiceConfig collaborators of a SiteService. Writer is required for
// exports, Reader for bootstrap; the rest are optional.
type SiteServiceConfig struct {
	Importer   *workbook.Importer
	Dispatcher *dispatch.Dispatcher
	Writer     dispatch.Writer
	Reader     dispatch.Reader
	Notifier   Batcher
	Fetcher    Fetcher
	// DefaultURL used by ImportRemote when no URL is given.
	DefaultURL string
	Clock      domain.Clock
	Logger     *zap.Logger
}

// SiteService owns the one SiteModel of the process. Readers get snapshots;
// mutations run on a copy that replaces the current model only on success.
type SiteService struct {
	mu   sync.RWMutex
	site *domain.Site

	importer   *workbook.Importer
	dispatcher *dispatch.Dispatcher
	writer     dispatch.Writer
	reader     dispatch.Reader
	notifier   Batcher
	fetcher    Fetcher
	defaultURL string
	logger     *zap.Logger
}

// ImportSummary what an import produced.
type ImportSummary struct {
	Garages  int              `json:"garages"`
	Levels   int              `json:"levels"`
	Devices  int              `json:"devices"`
	Sheets   []string         `json:"sheets"`
	Findings []domain.Finding `json:"findings"`
}

// ExportedFile one document handed to the writer.
type ExportedFile struct {
	LogicalPath string `json:"logical_path"`
	Bytes       int    `json:"bytes"`
}

// ExportResult files written by one export. BatchID is empty without a notifier.
type ExportResult struct {
	BatchID string         `json:"batch_id,omitempty"`
	Files   []ExportedFile `json:"files"`
}

// NewSiteService starts with an empty site.
func NewSiteService(cfg SiteServiceConfig) *SiteService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	importer := cfg.Importer
	if importer == nil {
		importer = workbook.NewImporter(workbook.WithLogger(logger), workbook.WithClock(cfg.Clock))
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = dispatch.New(logger)
	}
	return &SiteService{
		site:       domain.NewSite(cfg.Clock),
		importer:   importer,
		dispatcher: dispatcher,
		writer:     cfg.Writer,
		reader:     cfg.Reader,
		notifier:   cfg.Notifier,
		fetcher:    cfg.Fetcher,
		defaultURL: cfg.DefaultURL,
		logger:     logger,
	}
}

// Site returns the current model. Callers must not mutate it.
func (s *SiteService) Site() *domain.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.site
}

func (s *SiteService) mutate(fn func(site *domain.Site) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.site
	if err := fn(&next); err != nil {
		return err
	}
	s.site = &next
	return nil
}

// Import replaces the model with the site read from a workbook. On failure
// the current model is kept.
func (s *SiteService) Import(data []byte) (*ImportSummary, error) {
	res, err := s.importer.Import(data)
	if err != nil {
		s.logger.Warn("Workbook import failed", zap.Error(err))
		return nil, err
	}
	s.mu.Lock()
	s.site = res.Site
	s.mu.Unlock()

	sum := &ImportSummary{
		Garages:  len(res.Site.Garages),
		Devices:  res.Site.DeviceCount(),
		Sheets:   res.SheetNames,
		Findings: res.Site.Validate(),
	}
	for _, g := range res.Site.Garages {
		sum.Levels += len(g.Levels)
	}
	return sum, nil
}

// ImportRemote downloads a workbook and imports it. An empty url uses the
// configured default.
func (s *SiteService) ImportRemote(ctx context.Context, url string) (*ImportSummary, error) {
	if url == "" {
		url = s.defaultURL
	}
	if url == "" || s.fetcher == nil {
		return nil, ErrNoWorkbookSource
	}
	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.Import(data)
}

// Validate runs the model checks on the current site.
func (s *SiteService) Validate() []domain.Finding {
	return s.Site().Validate()
}

// ExportSite writes every document of the site.
func (s *SiteService) ExportSite(ctx context.Context) (*ExportResult, error) {
	site := s.Site()
	return s.export(func(w dispatch.Writer) ([]dispatch.File, error) {
		return s.dispatcher.ExportSite(ctx, site, w)
	})
}

// ExportGarage writes the documents of one garage.
func (s *SiteService) ExportGarage(ctx context.Context, garageID int) (*ExportResult, error) {
	site := s.Site()
	return s.export(func(w dispatch.Writer) ([]dispatch.File, error) {
		return s.dispatcher.ExportGarage(ctx, site, garageID, w)
	})
}

// ExportDevice rewrites the documents that mention one device.
func (s *SiteService) ExportDevice(ctx context.Context, ref domain.DeviceRef) (*ExportResult, error) {
	site := s.Site()
	return s.export(func(w dispatch.Writer) ([]dispatch.File, error) {
		return s.dispatcher.ExportDevice(ctx, site, ref, w)
	})
}

func (s *SiteService) export(run func(w dispatch.Writer) ([]dispatch.File, error)) (*ExportResult, error) {
	if s.writer == nil {
		return nil, fmt.Errorf("%w: no writer configured", domain.ErrInvalidOperation)
	}
	out := &ExportResult{}
	w := s.writer
	if s.notifier != nil {
		bw := s.notifier.Batch("")
		out.BatchID = bw.ID()
		w = bw
	}
	files, err := run(w)
	if err != nil {
		s.logger.Error("Export failed", zap.String("batch_id", out.BatchID), zap.Error(err))
		return nil, err
	}
	out.Files = make([]ExportedFile, 0, len(files))
	for _, f := range files {
		out.Files = append(out.Files, ExportedFile{LogicalPath: f.Path, Bytes: len(f.Content)})
	}
	s.logger.Info("Export finished", zap.String("batch_id", out.BatchID), zap.Int("files", len(files)))
	return out, nil
}

// PlaceDevice sets a device's coordinates.
func (s *SiteService) PlaceDevice(ref domain.DeviceRef, x, y float64) (*domain.Device, error) {
	var placed *domain.Device
	err := s.mutate(func(site *domain.Site) error {
		if err := site.PlaceDevice(ref, x, y); err != nil {
			return err
		}
		placed, _ = site.Device(ref)
		return nil
	})
	return placed, err
}

// UnplaceDevice returns a device to the pending tray.
func (s *SiteService) UnplaceDevice(ref domain.DeviceRef) (*domain.Device, error) {
	var d *domain.Device
	err := s.mutate(func(site *domain.Site) error {
		if err := site.UnplaceDevice(ref); err != nil {
			return err
		}
		d, _ = site.Device(ref)
		return nil
	})
	return d, err
}

// Bootstrap reads an existing install through the reader and merges its
// devices into one level.
func (s *SiteService) Bootstrap(ctx context.Context, garageID, levelID int) (domain.MergeResult, error) {
	if s.reader == nil {
		return domain.MergeResult{}, fmt.Errorf("%w: no reader configured", domain.ErrInvalidOperation)
	}
	if _, ok := s.Site().Level(garageID, levelID); !ok {
		return domain.MergeResult{}, fmt.Errorf("%w: level %d not found in garage %d", domain.ErrInvalidOperation, levelID, garageID)
	}
	devs, err := s.dispatcher.Collect(ctx, s.reader)
	if err != nil {
		return domain.MergeResult{}, err
	}
	var res domain.MergeResult
	err = s.mutate(func(site *domain.Site) error {
		r, err := site.MergeDevices(garageID, levelID, devs)
		res = r
		return err
	})
	if err != nil {
		return domain.MergeResult{}, err
	}
	s.logger.Info("Bootstrap merged devices",
		zap.Int("garage_id", garageID),
		zap.Int("level_id", levelID),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// Workbook writes the current site back into a workbook. Devices the
// workbook cannot bring back on re-import are returned and logged.
func (s *SiteService) Workbook() ([]byte, []workbook.Omission, error) {
	data, omitted, err := workbook.WriteWorkbook(s.Site())
	if err != nil {
		s.logger.Warn("Workbook export refused", zap.Error(err))
		return nil, nil, err
	}
	for _, o := range omitted {
		s.logger.Warn("Device will not survive workbook re-import",
			zap.String("garage", o.Garage),
			zap.String("level", o.Level),
			zap.String("device_name", o.Device),
			zap.String("reason", o.Reason),
		)
	}
	return data, omitted, nil
}

// Template returns an empty workbook with every recognized sheet.
func (s *SiteService) Template() ([]byte, error) {
	return workbook.Template()
}
