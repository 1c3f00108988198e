package models

import "time"

// DownloadStatus is the state of a model download.
type DownloadStatus string

const (
	DownloadNotStarted  DownloadStatus = "not_started"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
)

// DownloadRecord is the tracker's state for one model.
type DownloadRecord struct {
	ModelName       string         `json:"model_name"`
	Provider        string         `json:"provider"`
	Status          DownloadStatus `json:"status"`
	Progress        float64        `json:"progress"`
	BytesDownloaded int64          `json:"bytes_downloaded"`
	TotalBytes      int64          `json:"total_bytes"`
	StartTime       time.Time      `json:"start_time"`
	Message         string         `json:"message"`
	DownloadSize    string         `json:"download_size"`
}

// ModelDownloadRequest is the body of POST /models/download.
type ModelDownloadRequest struct {
	ModelName       string `json:"model_name" validate:"required"`
	Provider        string `json:"provider"`
	ForceRedownload bool   `json:"force_redownload"`
}

// ModelDownloadResponse is the polled view of a DownloadRecord.
type ModelDownloadResponse struct {
	ModelName     string         `json:"model_name"`
	Provider      string         `json:"provider"`
	Status        DownloadStatus `json:"status"`
	Progress      float64        `json:"progress"`
	Message       string         `json:"message"`
	DownloadSize  string         `json:"download_size"`
	EstimatedTime string         `json:"estimated_time"`
	Timestamp     time.Time      `json:"timestamp"`
}
