package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/JonMunkholm/alchemist/internal/logging"
	"github.com/JonMunkholm/alchemist/internal/workspace"
)

// multipartMemory is how much of a form is buffered in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

// uploadFields are the multipart field names files are accepted under.
var uploadFields = []string{"files", "file"}

// readUpload collects every uploaded file from a multipart request, in
// form order. The body as a whole is capped at the file size limit times the
// file limit; oversized single files are left to the normalizer, which
// reports them per file.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]core.File, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	maxFiles := s.cfg.Upload.MaxFiles
	r.Body = http.MaxBytesReader(w, r.Body, maxSize*int64(maxFiles)+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, fmt.Errorf("%w: request body exceeds %d bytes", core.ErrFileTooLarge, tooBig.Limit)
		}
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	defer r.MultipartForm.RemoveAll()

	var headers []*multipart.FileHeader
	for _, field := range uploadFields {
		headers = append(headers, r.MultipartForm.File[field]...)
	}
	switch {
	case len(headers) == 0:
		return nil, errNoFiles
	case len(headers) > maxFiles:
		return nil, fmt.Errorf("%w: %d files, limit is %d", errTooManyFiles, len(headers), maxFiles)
	}

	files := make([]core.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		files = append(files, core.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ingest normalizes files into sess while holding a batch slot. Per-file
// failures end up in the session snapshot, not in the returned error.
func (s *Server) ingest(r *http.Request, sess *workspace.Session, files []core.File) error {
	ctx := r.Context()
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.Release()

	res := s.normalizer.NormalizeBatch(ctx, files)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.metrics.ObserveBatch(files, res)

	start := time.Now()
	findings := sess.ReplaceTables(res)
	s.metrics.ObserveValidation(findings, time.Since(start))

	summary := core.Summarize(findings)
	logging.WithFields(ctx, "session_id", sess.ID).Info("files ingested",
		"files", len(files),
		"tables", len(res.Tables),
		"failed", len(res.Failures),
		"errors", summary.Errors,
		"warnings", summary.Warnings,
	)
	return nil
}
