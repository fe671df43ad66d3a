package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/secureshare/secureshare/internal/common"
	"github.com/secureshare/secureshare/internal/server/models"
	"github.com/secureshare/secureshare/internal/server/services"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	specs := make([]services.FileSpec, len(req.Files))
	for i, f := range req.Files {
		specs[i] = services.FileSpec{Filename: f.Filename, SizeBytes: f.SizeBytes, MimeType: f.MimeType}
	}

	t, err := s.transfers.Register(r.Context(), userIDFrom(r.Context()), specs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSummary(t, time.Now()))
}

// handleUploadContent accepts the raw payloads as a multipart body, one file
// part per registered file, in registration order. Parts are spooled to
// temporary files so the service sees exact sizes without the handler
// holding payloads in memory.
func (s *Server) handleUploadContent(w http.ResponseWriter, r *http.Request) {
	transferID := chi.URLParam(r, "transferID")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart body required"})
		return
	}

	var parts []services.Part
	var spools []*os.File
	defer func() {
		for _, f := range spools {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed multipart body"})
			return
		}
		if part.FileName() == "" {
			continue
		}

		spool, err := os.CreateTemp("", "secureshare-upload-*")
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: creating spool file: %v", common.ErrInternal, err))
			return
		}
		spools = append(spools, spool)

		size, err := io.Copy(spool, part)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reading upload"})
			return
		}
		if _, err := spool.Seek(0, io.SeekStart); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: rewinding spool file: %v", common.ErrInternal, err))
			return
		}

		parts = append(parts, services.Part{
			Filename:  part.FileName(),
			SizeBytes: size,
			Body:      spool,
		})
	}

	t, err := s.transfers.UploadContent(r.Context(), transferID, userIDFrom(r.Context()), parts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummary(t, time.Now()))
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	t, err := s.transfers.GetTransfer(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "transferID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummary(t, time.Now()))
}

func (s *Server) handleShareLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.transfers.GetShareLink(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "transferID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shareLinkResponse{Token: link.Token, Password: link.Password, URL: link.URL})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.transfers.GetHistory(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponse(h, time.Now()))
}

func (s *Server) handleDownloadInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.downloads.Info(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDownloadInfo(info))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.downloads.Download(r.Context(), chi.URLParam(r, "token"), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.DisplayName}))
	w.WriteHeader(http.StatusOK)

	// A client disconnect mid-stream surfaces here as a write error; the
	// count increment already committed stays, and Body is still closed.
	if _, err := io.Copy(w, result.Body); err != nil {
		s.logger.Warn(r.Context(), "download stream aborted", "error", err)
	}
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	status := models.PaymentStatus(req.Status)
	switch status {
	case models.PaymentSucceeded, models.PaymentFailed, models.PaymentCanceled, models.PaymentRefunded:
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid settlement status"})
		return
	}

	if err := s.payments.RecordSettlement(r.Context(), req.ProviderRef, status); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto HTTP statuses. Server
// faults are logged here; client errors are not.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrSizeMismatch):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrSizeLimitExceeded):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "size exceeds 5GB limit"})
	case errors.Is(err, common.ErrPaymentRequired):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "payment required"})
	case errors.Is(err, common.ErrInvalidCredentials):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "invalid password"})
	case errors.Is(err, common.ErrExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "transfer has expired"})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflicting operation in progress"})
	case errors.Is(err, common.ErrAssembly):
		s.logger.Error(r.Context(), "archive assembly fault", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "archive assembly failed, retry the upload"})
	case errors.Is(err, common.ErrContentMissing):
		s.logger.Error(r.Context(), "content integrity fault", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "stored content unavailable"})
	default:
		s.logger.Error(r.Context(), "internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
