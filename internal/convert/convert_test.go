// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/onenote2epub/pkg/types"
)

// fakeConverter implements Converter for testing. It writes an empty EPUB
// next to the expected output path or returns an error.
type fakeConverter struct {
	err   error
	calls []string
}

func (f *fakeConverter) Convert(ctx context.Context, docxPath, outDir string) (string, error) {
	f.calls = append(f.calls, docxPath)
	if f.err != nil {
		return "", f.err
	}
	out := OutputPath(docxPath, outDir)
	if err := os.WriteFile(out, []byte("epub"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// selectiveConverter fails for the listed base names and succeeds otherwise.
type selectiveConverter struct {
	fakeConverter
	failures map[string]error
}

func (s *selectiveConverter) Convert(ctx context.Context, docxPath, outDir string) (string, error) {
	if err, ok := s.failures[filepath.Base(docxPath)]; ok {
		return "", err
	}
	return s.fakeConverter.Convert(ctx, docxPath, outDir)
}

// writeDocx creates a minimal Word package that the DOCX reader accepts.
func writeDocx(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
			`<w:body><w:p><w:r><w:t>Page title</w:t></w:r></w:p></w:body></w:document>`,
	}
	for name, body := range files {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func acceptAll(string) error { return nil }

func TestConvertFile(t *testing.T) {
	tests := []struct {
		name       string
		converter  Converter
		validate   func(string) error
		wantStatus types.ConversionStatus
		wantLog    string
	}{
		{
			name:       "successful conversion",
			converter:  &fakeConverter{},
			validate:   acceptAll,
			wantStatus: types.ConversionDone,
			wantLog:    "converted:",
		},
		{
			name:       "converter failure",
			converter:  &fakeConverter{err: errors.New("soffice crashed")},
			validate:   acceptAll,
			wantStatus: types.ConversionFailed,
			wantLog:    "failed:",
		},
		{
			name:       "invalid document is not converted",
			converter:  &fakeConverter{},
			validate:   func(string) error { return errors.New("truncated") },
			wantStatus: types.ConversionFailed,
			wantLog:    "truncated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			src := filepath.Join(tmp, "src", "000_Page.docx")
			writeDocx(t, src)
			outDir := filepath.Join(tmp, "out")

			var log bytes.Buffer
			doc := ConvertFile(context.Background(), tt.converter, src, outDir, Options{Validate: tt.validate}, &log)

			if doc.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", doc.Status, tt.wantStatus)
			}
			if !strings.Contains(log.String(), tt.wantLog) {
				t.Errorf("log output %q does not contain %q", log.String(), tt.wantLog)
			}
			if doc.Stage != types.StageConvert {
				t.Errorf("stage = %q, want %q", doc.Stage, types.StageConvert)
			}
			if tt.wantStatus == types.ConversionDone && doc.Output != filepath.Join(outDir, "000_Page.epub") {
				t.Errorf("output = %q", doc.Output)
			}
			if tt.wantStatus == types.ConversionFailed && doc.Detail == "" {
				t.Error("failed record should carry detail")
			}
		})
	}
}

func TestConvertFile_ValidationSkipsConverter(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "bad.docx")
	if err := os.WriteFile(src, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	conv := &fakeConverter{}

	var log bytes.Buffer
	doc := ConvertFile(context.Background(), conv, src, filepath.Join(tmp, "out"), Options{}, &log)

	if doc.Status != types.ConversionFailed {
		t.Fatalf("status = %q, want failed", doc.Status)
	}
	if len(conv.calls) != 0 {
		t.Errorf("converter should not run for an invalid docx, got %v", conv.calls)
	}
}

func TestConvertFile_DeleteOriginal(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "page.docx")
	writeDocx(t, src)

	var log bytes.Buffer
	doc := ConvertFile(context.Background(), &fakeConverter{}, src, filepath.Join(tmp, "out"),
		Options{DeleteOriginal: true}, &log)

	if doc.Status != types.ConversionDone {
		t.Fatalf("status = %q, want converted", doc.Status)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("original should be deleted, stat err = %v", err)
	}
}

func TestConvertFolder(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "Section")
	for _, name := range []string{"a.docx", "b.docx", "c.docx", "~$a.docx"} {
		writeDocx(t, filepath.Join(src, name))
	}

	conv := &selectiveConverter{failures: map[string]error{"c.docx": errors.New("bad page")}}

	var log bytes.Buffer
	result, err := ConvertFolder(context.Background(), conv, src, filepath.Join(tmp, "out"), Options{}, &log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Converted != 2 {
		t.Errorf("converted = %d, want 2", result.Converted)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if !result.HasFailures() {
		t.Error("HasFailures should be true")
	}
	if result.Total() != 3 {
		t.Errorf("total = %d, want 3", result.Total())
	}
	if len(result.Documents) != 3 {
		t.Errorf("documents = %d, want 3", len(result.Documents))
	}
	if !strings.Contains(log.String(), "converted 2/3 from Section") {
		t.Errorf("folder summary missing from %q", log.String())
	}
}

func TestConvertFolder_Empty(t *testing.T) {
	tmp := t.TempDir()
	var log bytes.Buffer
	result, err := ConvertFolder(context.Background(), &fakeConverter{}, tmp, filepath.Join(tmp, "out"), Options{}, &log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total() != 0 {
		t.Errorf("total = %d, want 0", result.Total())
	}
	if _, err := os.Stat(filepath.Join(tmp, "out")); !os.IsNotExist(err) {
		t.Error("output directory should not be created for an empty folder")
	}
}

func TestConvertFolder_Missing(t *testing.T) {
	tmp := t.TempDir()
	var log bytes.Buffer
	_, err := ConvertFolder(context.Background(), &fakeConverter{}, filepath.Join(tmp, "nope"), tmp, Options{}, &log)
	if err == nil {
		t.Fatal("expected error for missing folder")
	}
}

func TestValidateDocx(t *testing.T) {
	tmp := t.TempDir()
	good := filepath.Join(tmp, "good.docx")
	writeDocx(t, good)
	if err := ValidateDocx(good); err != nil {
		t.Errorf("valid docx rejected: %v", err)
	}

	bad := filepath.Join(tmp, "bad.docx")
	if err := os.WriteFile(bad, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateDocx(bad); err == nil {
		t.Error("expected error for garbage docx")
	}
}
