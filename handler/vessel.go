package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/berthwatch/backend/model"
	"github.com/berthwatch/backend/pkg/logger"
	"github.com/berthwatch/backend/service"
	"github.com/gin-gonic/gin"
)

// Extractor turns a schedule PDF into accepted vessel records
type Extractor interface {
	Run(ctx context.Context, data []byte) ([]model.VesselRecord, service.Stats, error)
}

// ScheduleFetcher downloads the published schedule
type ScheduleFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// BatchStore appends and reads versioned record batches
type BatchStore interface {
	Append(ctx context.Context, source string, records []model.VesselRecord) (*model.Batch, error)
	Latest(ctx context.Context) (*model.Batch, error)
}

// Archiver keeps a copy of uploaded documents
type Archiver interface {
	Archive(ctx context.Context, batchID, filename string, data []byte) (string, error)
}

// multipartOverhead is the allowance for form boundaries and part
// headers on top of the file size limit.
const multipartOverhead = 64 << 10

type VesselHandler struct {
	extractor Extractor
	fetcher   ScheduleFetcher
	batches   BatchStore
	archive   Archiver
	maxUpload int64
}

// NewVesselHandler wires the schedule endpoints. archive may be nil.
func NewVesselHandler(extractor Extractor, fetcher ScheduleFetcher, batches BatchStore, archive Archiver, maxUploadBytes int64) *VesselHandler {
	return &VesselHandler{
		extractor: extractor,
		fetcher:   fetcher,
		batches:   batches,
		archive:   archive,
		maxUpload: maxUploadBytes,
	}
}

// Ships runs the pipeline over the published schedule without storing anything
func (h *VesselHandler) Ships(c *gin.Context) {
	ctx := c.Request.Context()

	data, err := h.fetcher.Fetch(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch schedule: " + err.Error()})
		return
	}

	records, _, err := h.extractor.Run(ctx, data)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrParse) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": "Failed to read schedule: " + err.Error()})
		return
	}

	logger.Info(ctx, "ships extracted", "count", len(records))
	c.JSON(http.StatusOK, nonNil(records))
}

// UploadPDF extracts an uploaded schedule and stores the result as a new batch
func (h *VesselHandler) UploadPDF(c *gin.Context) {
	ctx := c.Request.Context()

	if h.maxUpload > 0 {
		limit := h.maxUpload + multipartOverhead
		if c.Request.ContentLength > limit {
			h.tooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.tooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if strings.ToLower(filepath.Ext(header.Filename)) != ".pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are allowed"})
		return
	}
	if h.maxUpload > 0 && header.Size > h.maxUpload {
		h.tooLarge(c)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	records, stats, err := h.extractor.Run(ctx, data)
	if err != nil {
		if errors.Is(err, service.ErrParse) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to parse PDF: " + err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process PDF: " + err.Error()})
		return
	}

	batch, err := h.batches.Append(ctx, header.Filename, records)
	if errors.Is(err, service.ErrEmptyBatch) {
		logger.Info(ctx, "upload produced no records", "filename", header.Filename, "rows", stats.Rows)
		c.JSON(http.StatusOK, gin.H{"message": "No valid ships found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The batch is committed at this point. Archive failures are only logged.
	if h.archive != nil {
		actx := logger.WithBatchID(ctx, batch.BatchID)
		if _, err := h.archive.Archive(actx, batch.BatchID, header.Filename, data); err != nil {
			logger.Warn(actx, "failed to archive uploaded document", "error", err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "PDF processed successfully",
		"count":    len(batch.Records),
		"batch_id": batch.BatchID,
	})
}

func (h *VesselHandler) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File exceeds %d bytes", h.maxUpload)})
}

// LatestShip returns the records of the most recent batch
func (h *VesselHandler) LatestShip(c *gin.Context) {
	batch, err := h.batches.Latest(c.Request.Context())
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No ship data found. Upload a schedule first."})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, nonNil(batch.Records))
}

func nonNil(records []model.VesselRecord) []model.VesselRecord {
	if records == nil {
		return []model.VesselRecord{}
	}
	return records
}
