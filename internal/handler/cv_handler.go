package handler

import (
	"io"
	"net/http"
	"strconv"

	"cv-chat-go/internal/service"

	"github.com/gin-gonic/gin"
)

// maxUploadSize bounds the size of an uploaded CV.
const maxUploadSize = 20 << 20

// CVHandler serves CV uploads, listing, retrieval and deletion.
type CVHandler struct {
	corpusService    service.CorpusService
	ingestionService service.IngestionService
}

func NewCVHandler(corpusService service.CorpusService, ingestionService service.IngestionService) *CVHandler {
	return &CVHandler{corpusService: corpusService, ingestionService: ingestionService}
}

// Upload ingests the multipart fields "name" and "file". With async=true the
// upload is queued and 202 is returned with the ingestion id.
func (h *CVHandler) Upload(c *gin.Context) {
	name := c.PostForm("name")
	fileHeader, err := c.FormFile("file")
	if err != nil || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both file and name are required"})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		respondError(c, err)
		return
	}

	upload := service.Upload{Name: name, FileName: fileHeader.Filename, Data: data}
	if async, _ := strconv.ParseBool(c.DefaultPostForm("async", c.Query("async"))); async {
		id, err := h.ingestionService.Submit(c.Request.Context(), upload)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"ingestion_id": id})
		return
	}

	corpus, err := h.ingestionService.Ingest(c.Request.Context(), upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, corpus)
}

func (h *CVHandler) List(c *gin.Context) {
	corpora, err := h.corpusService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, corpora)
}

func (h *CVHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	corpus, err := h.corpusService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, corpus)
}

func (h *CVHandler) Chunks(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	segments, err := h.corpusService.Segments(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, segments)
}

// Download redirects to a temporary link to the archived original.
func (h *CVHandler) Download(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	url, err := h.corpusService.DownloadURL(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h *CVHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.corpusService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
