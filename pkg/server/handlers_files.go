package server

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/sitekeeper/sitekeeper/pkg/fsops"
	"github.com/sitekeeper/sitekeeper/pkg/logging"
)

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("path")
	entries, err := s.files.List(dir)
	if err != nil {
		respondError(w, err)
		return
	}
	metricFileOperations.WithLabelValues("list").Inc()
	respondJSON(w, http.StatusOK, map[string]any{"path": fsops.Clean(dir), "entries": entries})
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	data, err := s.files.Read(path)
	if err != nil {
		respondError(w, err)
		return
	}
	metricFileOperations.WithLabelValues("read").Inc()
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type writeFileRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	var req writeFileRequest
	if status, err := decodeJSONBody(w, r, &req, s.cfg.Server.UploadMaxBytes); err != nil {
		respondStatusError(w, status, err.Error())
		return
	}
	if err := s.files.Write(path, []byte(req.Content)); err != nil {
		s.recordAudit(r, "file.write", fsops.Clean(path), false, err.Error())
		respondError(w, err)
		return
	}
	metricFileOperations.WithLabelValues("write").Inc()
	s.logger.Info(logging.CategoryFiles, "write", "file written", map[string]any{"path": fsops.Clean(path)})
	s.recordAudit(r, "file.write", fsops.Clean(path), true, "")
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "File saved"})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if err := s.files.Delete(path); err != nil {
		s.recordAudit(r, "file.delete", fsops.Clean(path), false, err.Error())
		respondError(w, err)
		return
	}
	metricFileOperations.WithLabelValues("delete").Inc()
	s.logger.Info(logging.CategoryFiles, "delete", "path deleted", map[string]any{"path": fsops.Clean(path)})
	s.recordAudit(r, "file.delete", fsops.Clean(path), true, "")
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Deleted"})
}

type moveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondStatusError(w, status, err.Error())
		return
	}
	if err := s.files.Move(req.From, req.To); err != nil {
		s.recordAudit(r, "file.move", fsops.Clean(req.From), false, err.Error())
		respondError(w, err)
		return
	}
	metricFileOperations.WithLabelValues("move").Inc()
	s.logger.Info(logging.CategoryFiles, "move", "path moved", map[string]any{
		"from": fsops.Clean(req.From),
		"to":   fsops.Clean(req.To),
	})
	s.recordAudit(r, "file.move", fsops.Clean(req.From), true, "moved to "+fsops.Clean(req.To))
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Moved"})
}

// handleUpload accepts a multipart form: an optional "path" field naming the
// destination directory plus any number of file parts.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.UploadMaxBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		respondStatusError(w, http.StatusBadRequest, "multipart form required")
		return
	}

	basePath := ""
	var files []fsops.UploadFile
	written := 0
	var uploadErr error
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		if part.FormName() == "path" {
			raw, err := io.ReadAll(io.LimitReader(part, maxBodyBytesTiny))
			part.Close()
			if err != nil {
				respondStatusError(w, http.StatusBadRequest, "unreadable path field")
				return
			}
			basePath = string(raw)
			continue
		}
		// Streamed one part at a time; the store's stop-at-first-failure
		// policy is preserved by feeding single-element batches.
		files = files[:0]
		files = append(files, fsops.UploadFile{Name: part.FileName(), Reader: part})
		n, err := s.files.Upload(basePath, files)
		written += n
		part.Close()
		if err != nil {
			uploadErr = err
			break
		}
	}

	metricUploadedFiles.Add(float64(written))
	if uploadErr != nil {
		s.recordAudit(r, "file.upload", fsops.Clean(basePath), false, uploadErr.Error())
		respondError(w, uploadErr)
		return
	}
	s.logger.Info(logging.CategoryFiles, "upload", "upload complete", map[string]any{
		"path":  fsops.Clean(basePath),
		"count": written,
	})
	s.recordAudit(r, "file.upload", fsops.Clean(basePath), true, "")
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "uploaded": written})
}
