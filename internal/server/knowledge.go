package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hireloop/screener/internal/rag"
	"github.com/hireloop/screener/internal/store"
	"github.com/hireloop/screener/provider"
)

type chunkIndexer interface {
	IndexChunks(ctx context.Context, batch []rag.Chunk) (rag.IndexReport, error)
}

// KnowledgeHandler manages the knowledge base the question generator retrieves
// from.
type KnowledgeHandler struct {
	Store    *store.Store
	Chunker  *rag.Chunker
	Indexer  chunkIndexer
	Provider provider.Provider
	TopK     int
	MaxBytes int64
}

func (h *KnowledgeHandler) Register(g *echo.Group) {
	g.POST("", h.upload)
	g.GET("/search", h.search)
	g.DELETE("", h.remove)
}

// upload ingests one document: extract text, chunk, embed, upsert. Chunks that
// fail to index are reported individually; the rest stay committed.
func (h *KnowledgeHandler) upload(c echo.Context) error {
	req, err := h.readDocument(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	docID, err := h.Store.CreateKnowledgeDocument(ctx, req.Name, req.SourcePath)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	chunks, err := h.Chunker.Chunk(docID, req.Name, req.Text)
	if errors.Is(err, rag.ErrNothingToIndex) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "document contains no indexable text")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	report, err := h.Indexer.IndexChunks(ctx, chunks)
	if err != nil {
		return mapModelError(err)
	}

	resp := KnowledgeUploadResponse{DocumentID: docID, Indexed: report.Indexed}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, KnowledgeFailure{ChunkID: f.ChunkID, Reason: f.Reason})
	}
	status := http.StatusCreated
	if len(resp.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, resp)
}

// readDocument accepts either a multipart file upload or a JSON body with the
// text inline.
func (h *KnowledgeHandler) readDocument(c echo.Context) (UploadKnowledgeRequest, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return UploadKnowledgeRequest{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		defer f.Close()
		text, err := rag.ExtractText(f, fh.Filename, h.MaxBytes)
		if err != nil {
			return UploadKnowledgeRequest{}, echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		name := c.FormValue("name")
		if name == "" {
			name = fh.Filename
		}
		sourcePath := c.FormValue("source_path")
		if sourcePath == "" {
			sourcePath = fh.Filename
		}
		return UploadKnowledgeRequest{Name: name, SourcePath: sourcePath, Text: text}, nil
	}

	var req UploadKnowledgeRequest
	if err := c.Bind(&req); err != nil {
		return UploadKnowledgeRequest{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.SourcePath) == "" {
		return UploadKnowledgeRequest{}, echo.NewHTTPError(http.StatusBadRequest, "source_path required")
	}
	if req.Name == "" {
		req.Name = req.SourcePath
	}
	return req, nil
}

func (h *KnowledgeHandler) search(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	ctx := c.Request().Context()
	vectors, err := h.Provider.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return mapModelError(err)
	}
	if len(vectors) != 1 {
		return echo.NewHTTPError(http.StatusBadGateway, "embedding service returned unexpected vector count")
	}
	hits, err := h.Store.SearchChunks(ctx, vectors[0], c.QueryParam("source_id"), h.TopK, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]KnowledgeSearchResponse, 0, len(hits))
	for _, hit := range hits {
		out = append(out, KnowledgeSearchResponse{
			ChunkID:      hit.ChunkID,
			DocumentName: hit.DocumentName,
			Text:         hit.Text,
			Distance:     hit.Distance,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// remove deletes a document and its chunks by source path. Removing the file
// from disk does not cascade; this endpoint is the only way chunks leave the
// index.
func (h *KnowledgeHandler) remove(c echo.Context) error {
	sourcePath := strings.TrimSpace(c.QueryParam("source_path"))
	if sourcePath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_path required")
	}
	removed, err := h.Store.DeleteDocumentBySource(c.Request().Context(), sourcePath)
	if errors.Is(err, store.ErrNoChunksForSource) {
		return echo.NewHTTPError(http.StatusNotFound, "no chunks indexed for that source")
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown source")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int64{"removed_chunks": removed})
}
