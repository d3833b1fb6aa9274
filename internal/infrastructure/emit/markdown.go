package emit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"RssDigest/internal/domain"
	"RssDigest/internal/ports"
)

// MarkdownEmitter writes one digest artifact per period into the output
// directory, keyed by the period end date. External renderers (HTML, mail)
// pick the files up from there.
type MarkdownEmitter struct {
	outputDir string
}

var _ ports.DigestEmitter = (*MarkdownEmitter)(nil)

// NewMarkdownEmitter targets the given output directory.
func NewMarkdownEmitter(outputDir string) *MarkdownEmitter {
	return &MarkdownEmitter{outputDir: outputDir}
}

// Emit writes the digest content and returns the artifact path. Re-emitting
// the same period overwrites the prior file.
func (e *MarkdownEmitter) Emit(ctx context.Context, digest domain.Digest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := fmt.Sprintf("digest_%s.md", digest.PeriodEnd.UTC().Format("20060102"))
	path := filepath.Join(e.outputDir, name)

	if err := os.WriteFile(path, []byte(digest.Content), 0o644); err != nil {
		return "", fmt.Errorf("write digest artifact: %w", err)
	}
	return path, nil
}
