// Package progress publishes typed pipeline events to connected
// WebSocket clients. Every payload shape on the event stream is defined
// here so subscribers have a single contract to code against.
package progress

import (
	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/store"
)

// Event types on the stream.
const (
	EventScanProgress     = "scan:progress"
	EventScanDone         = "scan:done"
	EventOrganizeProgress = "organize:progress"
	EventOrganizeDone     = "organize:done"
)

// Broadcaster fans a typed message out to all subscribers.
type Broadcaster interface {
	Broadcast(msgType string, data interface{})
}

// ScanProgressPayload is emitted after each file the scan engine handles.
type ScanProgressPayload struct {
	JobID          int64  `json:"jobId"`
	TotalFiles     int    `json:"totalFiles"`
	ProcessedFiles int    `json:"processedFiles"`
	CurrentFolder  string `json:"currentFolder,omitempty"`
	NewItems       int    `json:"newItems"`
	ErrorsCount    int    `json:"errorsCount"`
}

// OrganizeProgressPayload is emitted after each item the executor handles.
type OrganizeProgressPayload struct {
	JobID          int64  `json:"jobId"`
	TotalFiles     int    `json:"totalFiles"`
	ProcessedFiles int    `json:"processedFiles"`
	CurrentFile    string `json:"currentFile,omitempty"`
	SuccessCount   int    `json:"successCount"`
	FailedCount    int    `json:"failedCount"`
}

// DonePayload closes out a job on the stream.
type DonePayload struct {
	JobID  int64           `json:"jobId"`
	Status store.JobStatus `json:"status"`
}

// Publisher translates job state into stream events. A nil hub is
// tolerated so the pipeline can run headless in tests.
type Publisher struct {
	hub    Broadcaster
	logger zerolog.Logger
}

// NewPublisher creates a publisher bound to the given hub.
func NewPublisher(hub Broadcaster, logger zerolog.Logger) *Publisher {
	return &Publisher{
		hub:    hub,
		logger: logger.With().Str("component", "progress").Logger(),
	}
}

// ScanProgress publishes the current state of a running scan job.
func (p *Publisher) ScanProgress(job *store.ScanJob) {
	if p == nil || p.hub == nil || job == nil {
		return
	}
	p.hub.Broadcast(EventScanProgress, ScanProgressPayload{
		JobID:          job.ID,
		TotalFiles:     job.TotalFiles,
		ProcessedFiles: job.ProcessedFiles,
		CurrentFolder:  job.CurrentFolder,
		NewItems:       job.NewItems,
		ErrorsCount:    job.ErrorsCount,
	})
}

// ScanDone publishes the terminal status of a scan job.
func (p *Publisher) ScanDone(jobID int64, status store.JobStatus) {
	if p == nil || p.hub == nil {
		return
	}
	p.hub.Broadcast(EventScanDone, DonePayload{JobID: jobID, Status: status})
	p.logger.Debug().Int64("jobId", jobID).Str("status", string(status)).Msg("Scan finished")
}

// OrganizeProgress publishes the current state of a running organize job.
func (p *Publisher) OrganizeProgress(job *store.OrganizeJob) {
	if p == nil || p.hub == nil || job == nil {
		return
	}
	p.hub.Broadcast(EventOrganizeProgress, OrganizeProgressPayload{
		JobID:          job.ID,
		TotalFiles:     job.TotalFiles,
		ProcessedFiles: job.ProcessedFiles,
		CurrentFile:    job.CurrentFile,
		SuccessCount:   job.SuccessCount,
		FailedCount:    job.FailedCount,
	})
}

// OrganizeDone publishes the terminal status of an organize job.
func (p *Publisher) OrganizeDone(jobID int64, status store.JobStatus) {
	if p == nil || p.hub == nil {
		return
	}
	p.hub.Broadcast(EventOrganizeDone, DonePayload{JobID: jobID, Status: status})
	p.logger.Debug().Int64("jobId", jobID).Str("status", string(status)).Msg("Organize finished")
}
