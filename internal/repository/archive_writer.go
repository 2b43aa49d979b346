package repository

import (
	"context"

	"garage-layout/internal/domain"
)

// ArchiveWriter records every written document as a new config version.
type ArchiveWriter struct {
	repo  ConfigVersionsRepository
	clock domain.Clock
}

// NewArchiveWriter creates the writer. A nil clock uses the wall clock.
func NewArchiveWriter(repo ConfigVersionsRepository, clock domain.Clock) *ArchiveWriter {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ArchiveWriter{repo: repo, clock: clock}
}

// Write implements dispatch.Writer.
func (w *ArchiveWriter) Write(ctx context.Context, logicalPath string, content []byte) error {
	_, err := w.repo.CreateConfigVersion(ctx, &ConfigVersion{
		LogicalPath: logicalPath,
		Content:     content,
		ValidFrom:   w.clock.Now(),
	})
	return err
}
