// Package export renders validated tables and the rules document into
// downloadable artifacts.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/alchemist/internal/core"
)

// RulesFileName is the name of the rules document inside every bundle.
const RulesFileName = "rules.json"

// Artifact is one named file of an export.
type Artifact struct {
	Name string
	Data []byte
}

// Build renders every workbook followed by rules.json.
func Build(tables []core.Table, rules Rules) ([]Artifact, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	books, err := Workbooks(tables)
	if err != nil {
		return nil, err
	}

	artifacts := make([]Artifact, 0, len(books)+1)
	for _, b := range books {
		artifacts = append(artifacts, Artifact{Name: b.FileName(), Data: b.Data})
	}

	doc, err := WriteRulesJSON(rules)
	if err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	artifacts = append(artifacts, Artifact{Name: RulesFileName, Data: doc})
	return artifacts, nil
}

// WriteZip writes artifacts as a zip archive.
func WriteZip(w io.Writer, artifacts []Artifact) error {
	zw := zip.NewWriter(w)
	now := time.Now()
	for _, a := range artifacts {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     a.Name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("zip %s: %w", a.Name, err)
		}
		if _, err := fw.Write(a.Data); err != nil {
			return fmt.Errorf("zip %s: %w", a.Name, err)
		}
	}
	return zw.Close()
}

// WriteDir writes artifacts into dir, creating it if needed.
// Existing files with the same names are replaced.
func WriteDir(dir string, artifacts []Artifact) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, a := range artifacts {
		path := filepath.Join(dir, filepath.Base(a.Name))
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", a.Name, err)
		}
	}
	return nil
}
