package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/JonMunkholm/alchemist/internal/export"
	"github.com/JonMunkholm/alchemist/internal/logging"
	"github.com/JonMunkholm/alchemist/internal/workspace"
	"github.com/go-chi/chi/v5"
)

// maxEditBody caps the JSON body of edits and rules documents.
const maxEditBody = 1 << 20

// session resolves the {sessionID} parameter, writing the error response
// itself when there is none.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*workspace.Session, bool) {
	sess, err := s.store.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

// cellRef resolves the {table} and {row} parameters against sess.
func cellRef(r *http.Request, sess *workspace.Session) (table, row int, err error) {
	table, err = sess.TableIndex(chi.URLParam(r, "table"))
	if err != nil {
		return 0, 0, err
	}
	row, err = strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: row must be an integer", errInvalidRequest)
	}
	return table, row, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	files, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	sess := s.store.Create()
	if err := s.ingest(r, sess, files); err != nil {
		_ = s.store.Delete(sess.ID)
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReplaceFiles swaps the session's tables for a fresh upload.
// Edits made to the previous tables are discarded.
func (s *Server) handleReplaceFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	files, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err := s.ingest(r, sess, files); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newFindingsResponse(sess.Findings()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": sess.History()})
}

type cellEdit struct {
	Column string     `json:"column"`
	Value  core.Value `json:"value"`
}

func (s *Server) handleUpdateCell(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	table, row, err := cellRef(r, sess)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	var edit cellEdit
	if err := decodeJSON(w, r, maxEditBody, &edit); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	findings, err := sess.UpdateCell(table, row, edit.Column, edit.Value)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	logging.WithFields(r.Context(), "session_id", sess.ID).Debug("cell updated",
		"table", table, "row", row, "column", edit.Column)
	writeJSON(w, http.StatusOK, newFindingsResponse(findings))
}

func (s *Server) handleReplaceRow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	table, row, err := cellRef(r, sess)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	var data core.Row
	if err := decodeJSON(w, r, maxEditBody, &data); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	findings, err := sess.ReplaceRow(table, row, data)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, newFindingsResponse(findings))
}

func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Rules())
}

func (s *Server) handlePutRules(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEditBody))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errInvalidRequest, err), 0)
		return
	}
	rules, err := export.ParseRules(body)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err := sess.SetRules(rules); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, sess.Rules())
}

// handleExport streams the session's workbooks and rules as one zip.
// Sessions with blocking findings cannot be exported.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if summary := sess.Summary(); summary.Blocking {
		s.respondError(w, r, fmt.Errorf("%w: %d validation errors remain", errExportBlocked, summary.Errors), 0)
		return
	}

	artifacts, err := export.Build(sess.Tables(), sess.Rules())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="alchemist-%s.zip"`, sess.ID))
	if err := export.WriteZip(w, artifacts); err != nil {
		logging.FromContext(r.Context()).Error("export write failed", "session_id", sess.ID, "error", err)
	}
}
