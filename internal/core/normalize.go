package core

// normalize.go turns uploaded files into Tables.
//
// Each file is handled independently: the extension picks the parser, the
// filename picks the kind. A batch fans out across goroutines but the result
// keeps upload order, and one bad file never sinks the rest.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnreadableFile is returned when a file's bytes cannot be parsed in its declared format.
	ErrUnreadableFile = errors.New("unreadable file")

	// ErrFileTooLarge is returned when a file exceeds the normalizer's size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// Format is the parser chosen for a file.
type Format string

const (
	FormatDelimited   Format = "csv"
	FormatSpreadsheet Format = "xlsx"
	FormatUnsupported Format = ""
)

// DetectFormat picks a format from the file extension (case-insensitive).
func DetectFormat(name string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "csv":
		return FormatDelimited
	case "xlsx":
		return FormatSpreadsheet
	default:
		return FormatUnsupported
	}
}

// DefaultParallelism bounds concurrent file parsing within one batch.
const DefaultParallelism = 4

// Normalizer converts files to tables.
type Normalizer struct {
	catalog     *Catalog
	maxFileSize int64
	parallelism int
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithMaxFileSize rejects files larger than n bytes (0 disables the check).
func WithMaxFileSize(n int64) NormalizerOption {
	return func(nz *Normalizer) { nz.maxFileSize = n }
}

// WithParallelism sets how many files of a batch are parsed at once.
func WithParallelism(n int) NormalizerOption {
	return func(nz *Normalizer) {
		if n > 0 {
			nz.parallelism = n
		}
	}
}

// NewNormalizer creates a normalizer that infers kinds from catalog.
func NewNormalizer(catalog *Catalog, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		catalog:     catalog,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Catalog returns the catalog used for kind inference.
func (n *Normalizer) Catalog() *Catalog {
	return n.catalog
}

// Normalize converts one file. Unsupported extensions yield an empty table
// and no error.
func (n *Normalizer) Normalize(f File) (Table, error) {
	table := Table{
		Kind: n.catalog.InferKind(f.Name),
		Name: f.Name,
	}

	format := DetectFormat(f.Name)
	if format != FormatUnsupported && n.maxFileSize > 0 && int64(len(f.Data)) > n.maxFileSize {
		return Table{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(f.Data), n.maxFileSize)
	}

	var (
		columns []string
		rows    []Row
		err     error
	)

	switch format {
	case FormatDelimited:
		if len(f.Data) > 0 && !isTextual(f.Data) {
			return Table{}, fmt.Errorf("%w: content is %s, not delimited text", ErrUnreadableFile, detectMIME(f.Data))
		}
		columns, rows, err = parseDelimited(f.Data)
	case FormatSpreadsheet:
		columns, rows, err = parseSpreadsheet(f.Data)
	default:
		slog.Debug("ignoring unsupported file", "file", f.Name)
	}
	if err != nil {
		return Table{}, err
	}

	table.Columns = columns
	table.Rows = rows
	if table.Columns == nil {
		table.Columns = []string{}
	}
	if table.Rows == nil {
		table.Rows = []Row{}
	}
	return table, nil
}

// NormalizeBatch converts every file. Tables keep upload order regardless of
// completion order; files that fail are reported in Failures.
func (n *Normalizer) NormalizeBatch(ctx context.Context, files []File) BatchResult {
	tables := make([]Table, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.parallelism)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			tables[i], errs[i] = n.Normalize(f)
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{Tables: make([]Table, 0, len(files))}
	for i, f := range files {
		if errs[i] != nil {
			slog.Warn("file normalization failed", "file", f.Name, "index", i, "error", errs[i])
			result.Failures = append(result.Failures, FileError{Index: i, Name: f.Name, Err: errs[i]})
			continue
		}
		slog.Debug("file normalized",
			"file", f.Name,
			"kind", tables[i].Kind,
			"rows", len(tables[i].Rows),
			"columns", len(tables[i].Columns),
		)
		result.Tables = append(result.Tables, tables[i])
	}
	return result
}

// detectMIME determines a MIME type using stdlib detection first and
// falling back to the broader mimetype library when ambiguous.
func detectMIME(head []byte) string {
	if len(head) == 0 {
		return "application/octet-stream"
	}
	mt := http.DetectContentType(head)
	if mt != "application/octet-stream" {
		return mt
	}
	return mimetype.Detect(head).String()
}

// isTextual reports whether data sniffs as some kind of text.
func isTextual(data []byte) bool {
	if strings.HasPrefix(detectMIME(data), "text/") {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
