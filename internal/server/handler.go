package server

import (
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"streamform/pkg/bandwidth"
	"streamform/pkg/config"
	"streamform/pkg/multipart"
)

// partSummary is what the demo reports back per uploaded part.
type partSummary struct {
	Name     string `json:"name"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size"`
	Value    string `json:"value,omitempty"`
}

type uploadSummary struct {
	Parts    []partSummary `json:"parts"`
	Received int64         `json:"received"`
	AvgSpeed string        `json:"avgSpeed"`
}

// handleUpload streams the request body chunk by chunk into a Streamer.
// The read loop is strictly sequential, which gives the parser the
// one-call-at-a-time ordering it requires.
func (s *Server) handleUpload(c *gin.Context) {
	log := s.log.WithField("remote", c.ClientIP())

	boundary, err := requestBoundary(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	total := c.Request.ContentLength
	if total < 0 {
		total = 0
	}
	if total > s.cfg.Upload.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "request exceeds upload size limit",
		})
		return
	}

	monitor := bandwidth.NewMonitor(total)
	var lastReported int64
	progress := func(received, _ int64) {
		monitor.DataReceived(int(received - lastReported))
		lastReported = received
	}

	streamer, err := multipart.New(total, boundary,
		multipart.WithPartFactory(partFactory(&s.cfg.Upload)),
		multipart.WithSizeSlack(s.cfg.Upload.SizeSlack),
		multipart.WithMaxHeaderBytes(s.cfg.Upload.MaxHeaderBytes),
		multipart.WithProgressFunc(progress),
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer func() {
		if err := streamer.ReleaseParts(); err != nil {
			log.Warn("failed to release parts", "error", err)
		}
	}()

	buf := make([]byte, s.cfg.Upload.ChunkSize)
	for {
		n, readErr := c.Request.Body.Read(buf)
		if n > 0 {
			if err := streamer.DataReceived(buf[:n]); err != nil {
				status := http.StatusBadRequest
				if multipart.IsStorageError(err) {
					status = http.StatusInternalServerError
				}
				c.JSON(status, gin.H{"error": err.Error()})
				return
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			log.Warn("body read aborted", "error", readErr)
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body read failed"})
			return
		}
	}

	if err := streamer.DataComplete(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary := uploadSummary{
		Parts:    make([]partSummary, 0, len(streamer.Parts())),
		Received: streamer.ReceivedSize(),
		AvgSpeed: bandwidth.FormatSpeed(monitor.AvgSpeed()),
	}
	for _, part := range streamer.Parts() {
		ps := partSummary{
			Name:     part.Name(),
			Filename: part.Filename(),
			Size:     part.Size(),
		}
		if !part.IsFile() {
			ps.Value = partValue(part, s.cfg.Upload.MemoryPartLimit)
		}
		summary.Parts = append(summary.Parts, ps)
	}

	log.Info("upload complete",
		"parts", len(summary.Parts),
		"received", summary.Received,
		"avgSpeed", summary.AvgSpeed)
	c.JSON(http.StatusOK, summary)
}

// requestBoundary extracts the multipart boundary from the request's
// Content-Type header.
func requestBoundary(req *http.Request) (string, error) {
	contentType := req.Header.Get("Content-Type")
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil || mt != "multipart/form-data" {
		return "", http.ErrNotMultipart
	}
	boundary, ok := params["boundary"]
	if !ok {
		return "", http.ErrMissingBoundary
	}
	return boundary, nil
}

// partFactory routes plain form values into memory and file inputs onto
// disk, optionally through a compressor.
func partFactory(cfg *config.UploadConfig) multipart.PartFactory {
	return func(h multipart.Header) (multipart.Part, error) {
		if !h.IsFile() {
			return multipart.NewMemoryPart(h), nil
		}
		if cfg.Compression != "" {
			return multipart.NewCompressedFilePart(h, cfg.TempDir, cfg.Compression)
		}
		return multipart.NewFilePart(h, cfg.TempDir)
	}
}

// partValue reads back a form value for the response, truncated to the
// configured in-memory limit.
func partValue(part multipart.Part, limit int64) string {
	rc, err := part.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	if limit <= 0 {
		limit = 64 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return ""
	}
	return string(data)
}
