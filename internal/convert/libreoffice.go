// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/onenote2epub/internal/runner"
)

// LibreOfficeConverter converts documents with LibreOffice's headless
// converter. It depends on a runner.Runner for the soffice binary injected
// at construction time.
type LibreOfficeConverter struct {
	soffice runner.Runner
}

// NewLibreOfficeConverter creates a converter backed by rn. It verifies that
// the binary can be located before returning.
func NewLibreOfficeConverter(rn runner.Runner) (*LibreOfficeConverter, error) {
	if !rn.Available() {
		return nil, fmt.Errorf("libreoffice binary %q not found", rn.Name())
	}
	return &LibreOfficeConverter{soffice: rn}, nil
}

// Args returns the fixed soffice argument list for one conversion.
func Args(docxPath, outDir string) []string {
	return []string{
		"--headless",
		"--convert-to", "epub",
		"--outdir", outDir,
		docxPath,
	}
}

// OutputPath returns where LibreOffice writes the EPUB for docxPath.
func OutputPath(docxPath, outDir string) string {
	name := filepath.Base(docxPath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(outDir, stem+".epub")
}

// Convert runs soffice for docxPath and returns the path of the EPUB it
// produced. A clean exit without the expected file is ErrOutputMissing.
func (l *LibreOfficeConverter) Convert(ctx context.Context, docxPath, outDir string) (string, error) {
	if _, err := l.soffice.Run(ctx, Args(docxPath, outDir)...); err != nil {
		return "", fmt.Errorf("converting %s: %w", filepath.Base(docxPath), err)
	}

	epubPath := OutputPath(docxPath, outDir)
	if _, err := os.Stat(epubPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutputMissing, epubPath)
	}
	return epubPath, nil
}
