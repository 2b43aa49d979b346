package store

import (
	"context"

	"garage-layout/internal/dispatch"
)

// MultiWriter writes every document to each writer in order and stops at
// the first error, which is returned unchanged.
type MultiWriter []dispatch.Writer

func (m MultiWriter) Write(ctx context.Context, logicalPath string, content []byte) error {
	for _, w := range m {
		if err := w.Write(ctx, logicalPath, content); err != nil {
			return err
		}
	}
	return nil
}
