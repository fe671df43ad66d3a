package httpapi

import (
	"time"

	"github.com/secureshare/secureshare/internal/common"
	"github.com/secureshare/secureshare/internal/server/models"
	"github.com/secureshare/secureshare/internal/server/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

type fileSpecRequest struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type,omitempty"`
}

type registerRequest struct {
	Files []fileSpecRequest `json:"files"`
}

// transferSummary is the owner-facing view of a transfer. It includes the
// share credentials; the public download surface never uses this type.
type transferSummary struct {
	ID               string     `json:"id"`
	DisplayName      string     `json:"display_name"`
	TotalSizeBytes   int64      `json:"total_size_bytes"`
	TotalSizeDisplay string     `json:"total_size_display"`
	MimeType         string     `json:"mime_type"`
	Status           string     `json:"status"`
	PricingTier      string     `json:"pricing_tier"`
	RequiresPayment  bool       `json:"requires_payment"`
	DownloadToken    string     `json:"download_token"`
	DownloadPassword string     `json:"download_password"`
	ExpiresAt        time.Time  `json:"expires_at"`
	DownloadCount    int64      `json:"download_count"`
	LastDownloadedAt *time.Time `json:"last_downloaded_at,omitempty"`
	BatchID          string     `json:"batch_id,omitempty"`
	MemberFilenames  []string   `json:"member_filenames,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toSummary(t *models.Transfer, now time.Time) transferSummary {
	return transferSummary{
		ID:               t.ID,
		DisplayName:      t.DisplayName,
		TotalSizeBytes:   t.TotalSizeBytes,
		TotalSizeDisplay: common.FormatSize(t.TotalSizeBytes),
		MimeType:         t.MimeType,
		Status:           string(t.EffectiveStatus(now)),
		PricingTier:      string(t.PricingTier),
		RequiresPayment:  t.RequiresPayment,
		DownloadToken:    t.DownloadToken,
		DownloadPassword: t.DownloadPassword,
		ExpiresAt:        t.ExpiresAt,
		DownloadCount:    t.DownloadCount,
		LastDownloadedAt: t.LastDownloadedAt,
		BatchID:          t.BatchID,
		MemberFilenames:  t.MemberFilenames,
		CreatedAt:        t.CreatedAt,
	}
}

type downloadInfoResponse struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	SizeBytes     int64     `json:"file_size"`
	SizeDisplay   string    `json:"file_size_display"`
	MimeType      string    `json:"mime_type"`
	ExpiresAt     time.Time `json:"expires_at"`
	DownloadCount int64     `json:"download_count"`
}

func toDownloadInfo(m *services.PublicMetadata) downloadInfoResponse {
	return downloadInfoResponse{
		ID:            m.ID,
		Filename:      m.Filename,
		SizeBytes:     m.SizeBytes,
		SizeDisplay:   m.SizeDisplay,
		MimeType:      m.MimeType,
		ExpiresAt:     m.ExpiresAt,
		DownloadCount: m.DownloadCount,
	}
}

type downloadRequest struct {
	Password string `json:"password"`
}

type shareLinkResponse struct {
	Token    string `json:"download_token"`
	Password string `json:"download_password"`
	URL      string `json:"download_url"`
}

type settleRequest struct {
	ProviderRef string `json:"provider_ref"`
	Status      string `json:"status"`
}

type historyBatchResponse struct {
	BatchID          string            `json:"batch_id"`
	FileCount        int               `json:"file_count"`
	TotalSizeBytes   int64             `json:"total_size"`
	TotalSizeDisplay string            `json:"total_size_display"`
	TotalDownloads   int64             `json:"total_downloads"`
	PricingTier      string            `json:"pricing_tier"`
	CreatedAt        time.Time         `json:"created_at"`
	Transfers        []transferSummary `json:"transfers"`
}

type historyResponse struct {
	Statistics struct {
		TotalUploads        int    `json:"total_uploads"`
		TotalDownloads      int64  `json:"total_downloads"`
		TotalStorageBytes   int64  `json:"total_storage_bytes"`
		TotalStorageDisplay string `json:"total_storage_display"`
	} `json:"statistics"`
	Batches      []historyBatchResponse `json:"grouped_batches"`
	TotalBatches int                    `json:"total_batches"`
}

func toHistoryResponse(h *services.History, now time.Time) historyResponse {
	var resp historyResponse
	resp.Statistics.TotalUploads = h.Statistics.TotalUploads
	resp.Statistics.TotalDownloads = h.Statistics.TotalDownloads
	resp.Statistics.TotalStorageBytes = h.Statistics.TotalStorageBytes
	resp.Statistics.TotalStorageDisplay = h.Statistics.TotalStorageDisplay

	resp.Batches = make([]historyBatchResponse, 0, len(h.Batches))
	for _, b := range h.Batches {
		hb := historyBatchResponse{
			BatchID:          b.BatchID,
			FileCount:        b.FileCount,
			TotalSizeBytes:   b.TotalSizeBytes,
			TotalSizeDisplay: b.TotalSizeDisplay,
			TotalDownloads:   b.TotalDownloads,
			PricingTier:      string(b.PricingTier),
			CreatedAt:        b.CreatedAt,
		}
		for _, t := range b.Transfers {
			hb.Transfers = append(hb.Transfers, toSummary(t, now))
		}
		resp.Batches = append(resp.Batches, hb)
	}
	resp.TotalBatches = len(resp.Batches)
	return resp
}
