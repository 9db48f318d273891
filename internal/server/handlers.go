package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"

	"github.com/pixelcrate/pixelcrate/internal/imagename"
	"github.com/pixelcrate/pixelcrate/internal/metadata"
	"github.com/pixelcrate/pixelcrate/internal/reconcile"
	"github.com/pixelcrate/pixelcrate/internal/scrape"
	"github.com/pixelcrate/pixelcrate/internal/storage"
)

const maxUploadBytes = 10 << 20 // per file

// imageEntry is one row of the enriched listing.
type imageEntry struct {
	Filename        string    `json:"filename"`
	ProductName     string    `json:"productName"`
	Title           string    `json:"title"`
	ProductURL      string    `json:"productUrl,omitempty"`
	ProductImageURL string    `json:"productImageUrl,omitempty"`
	Description     string    `json:"description,omitempty"`
	UploadedAt      time.Time `json:"uploadedAt"`
	SizeBytes       int64     `json:"sizeBytes"`
}

type uploadFileResult struct {
	Original string `json:"original"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleUpload accepts multipart image files plus an optional product URL
// whose scraped details enrich every file in the batch.
func (s *Server) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "malformed multipart request")
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		respondError(c, http.StatusBadRequest, "no image files supplied")
		return
	}

	batchID := ksuid.New().String()
	productURL := strings.TrimSpace(c.PostForm("productUrl"))

	// Scrape once per batch, not per file. A failed scrape never fails
	// the upload; the files just stay unenriched.
	var scraped *scrape.Result
	scrapeErr := ""
	if productURL != "" {
		if result, err := s.scraper.Scrape(c.Request.Context(), productURL); err != nil {
			scrapeErr = err.Error()
			s.logger.Warn("batch %s: scrape %s failed: %v", batchID, productURL, err)
		} else {
			scraped = &result
		}
	}

	records := s.meta.Load(c.Request.Context())
	dirty := false

	var results []uploadFileResult
	var stored []string

	for _, file := range files {
		res := uploadFileResult{Original: file.Filename}

		switch {
		case !imagename.Allowed(file.Filename):
			res.Error = "extension not allowed: only jpg, jpeg, png, webp accepted"
		case file.Size == 0:
			res.Error = "empty file"
		case file.Size > maxUploadBytes:
			res.Error = fmt.Sprintf("file exceeds %d MB limit", maxUploadBytes>>20)
		}
		if res.Error != "" {
			results = append(results, res)
			continue
		}

		src, err := file.Open()
		if err != nil {
			res.Error = "unreadable file"
			results = append(results, res)
			continue
		}
		data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
		_ = src.Close()
		if err != nil || int64(len(data)) > maxUploadBytes {
			res.Error = "unreadable file"
			results = append(results, res)
			continue
		}

		name := imagename.Generate(file.Filename)
		contentType, _ := imagename.ContentType(name)
		physical, err := s.store.Put(c.Request.Context(), name, data, contentType)
		if err != nil {
			if errors.Is(err, storage.ErrNotConfigured) {
				respondError(c, http.StatusServiceUnavailable, "storage not configured")
				return
			}
			s.logger.Error("batch %s: store %s: %v", batchID, name, err)
			res.Error = "failed to store file"
			results = append(results, res)
			continue
		}

		rec := metadata.Record{UploadedAt: time.Now().UTC()}
		if productURL != "" {
			rec.SourceURL = productURL
		}
		if scraped != nil {
			rec.SourceURL = scraped.CanonicalURL
			rec.ProductName = scraped.ProductName
			rec.ProductDescription = scraped.ProductDescription
			rec.ProductImageURL = scraped.ProductImageURL
		}
		records[physical] = rec
		dirty = true

		res.Filename = physical
		stored = append(stored, physical)
		results = append(results, res)
	}

	if dirty {
		// Swallowed on failure: the upload already succeeded.
		s.meta.SaveBestEffort(c.Request.Context(), records)
	}

	// A batch where every file was rejected is a client error, not a
	// partial success.
	if len(stored) == 0 {
		respondError(c, http.StatusBadRequest, results[0].Error)
		return
	}

	data := gin.H{
		"batchId":  batchID,
		"uploaded": len(stored),
		"failed":   len(results) - len(stored),
		"files":    stored,
		"results":  results,
	}
	if scrapeErr != "" {
		data["scrapeError"] = scrapeErr
	}
	respondOK(c, data)
}

type extractURLRequest struct {
	ProductURL string `json:"productUrl"`
}

// handleExtractURL scrapes a product page, persists its primary image and
// returns the extracted details. Unsupported domains and malformed URLs
// are hard 400s; everything else degrades.
func (s *Server) handleExtractURL(c *gin.Context) {
	var req extractURLRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProductURL) == "" {
		respondError(c, http.StatusBadRequest, "productUrl is required")
		return
	}

	result, err := s.scraper.Scrape(c.Request.Context(), req.ProductURL)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	data := gin.H{
		"imageUrl":           result.ProductImageURL,
		"productUrl":         result.CanonicalURL,
		"productName":        result.ProductName,
		"productDescription": result.ProductDescription,
	}

	// The image download is its own error domain: losing it omits the
	// stored copy but the extraction still succeeds.
	if result.ProductImageURL != "" {
		if filename, err := s.storeScrapedImage(c, result); err != nil {
			s.logger.Warn("store scraped image from %s: %v", result.CanonicalURL, err)
		} else {
			data["filename"] = filename
		}
	}

	respondOK(c, data)
}

func (s *Server) storeScrapedImage(c *gin.Context, result scrape.Result) (string, error) {
	ctx := c.Request.Context()

	imgData, ext, err := s.scraper.DownloadImage(ctx, result.ProductImageURL, result.CanonicalURL)
	if err != nil {
		return "", err
	}

	name := imagename.GenerateFromProduct(result.ProductName, ext)
	contentType, _ := imagename.ContentType(name)
	physical, err := s.store.Put(ctx, name, imgData, contentType)
	if err != nil {
		return "", err
	}

	records := s.meta.Load(ctx)
	records[physical] = metadata.Record{
		SourceURL:          result.CanonicalURL,
		ProductName:        result.ProductName,
		ProductDescription: result.ProductDescription,
		ProductImageURL:    result.ProductImageURL,
		UploadedAt:         time.Now().UTC(),
	}
	s.meta.SaveBestEffort(ctx, records)

	return physical, nil
}

// handleListImages joins every stored object with its metadata record via
// the reconciler and returns the enriched listing sorted by title.
func (s *Server) handleListImages(c *gin.Context) {
	ctx := c.Request.Context()

	objects, err := s.store.List(ctx)
	if err != nil {
		respondStorageError(c, err)
		return
	}

	records := s.meta.Load(ctx)
	dirty := false

	entries := make([]imageEntry, 0, len(objects))
	for _, obj := range objects {
		// The metadata document itself and any stray non-image objects
		// stay out of the listing.
		if !imagename.Allowed(obj.Key) {
			continue
		}

		entry := imageEntry{
			Filename:   obj.Key,
			Title:      imagename.DisplayName(obj.Key),
			UploadedAt: obj.LastModified,
			SizeBytes:  obj.Size,
		}

		if m, ok := reconcile.ResolveRecord(obj.Key, records); ok {
			entry.ProductName = m.Record.ProductName
			entry.ProductURL = m.Record.SourceURL
			entry.ProductImageURL = m.Record.ProductImageURL
			entry.Description = m.Record.ProductDescription
			if !m.Record.UploadedAt.IsZero() {
				entry.UploadedAt = m.Record.UploadedAt
			}
			if m.Updated {
				// Rewrite under the physical name so the next lookup
				// hits the exact rule instead of a weak heuristic.
				delete(records, m.Key)
				records[obj.Key] = m.Record
				dirty = true
			}
		}

		if entry.ProductName == "" {
			entry.ProductName = entry.Title
		}

		entries = append(entries, entry)
	}

	if dirty {
		s.meta.SaveBestEffort(ctx, records)
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Title) < strings.ToLower(entries[j].Title)
	})

	respondOK(c, entries)
}

// resolveObject fetches bytes by requested name, falling back to the
// reconciler cascade over the listed keys when the exact name misses.
func (s *Server) resolveObject(c *gin.Context, name string) ([]byte, storage.ObjectInfo, error) {
	ctx := c.Request.Context()

	data, info, err := s.store.Get(ctx, name)
	if err == nil {
		return data, info, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ObjectInfo{}, err
	}

	objects, listErr := s.store.List(ctx)
	if listErr != nil {
		return nil, storage.ObjectInfo{}, listErr
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}

	if key, strategy, ok := reconcile.ResolveKey(name, keys); ok {
		s.logger.Debug("resolved %q to %q via %s", name, key, strategy)
		return s.store.Get(ctx, key)
	}
	return nil, storage.ObjectInfo{}, storage.ErrNotFound
}

// handleGetImage streams the raw bytes with long-lived cache headers.
func (s *Server) handleGetImage(c *gin.Context) {
	name := c.Param("filename")
	if !imagename.Allowed(name) {
		respondError(c, http.StatusBadRequest, "extension not allowed: only jpg, jpeg, png, webp accepted")
		return
	}

	data, info, err := s.resolveObject(c, name)
	if err != nil {
		respondStorageError(c, err)
		return
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType, _ = imagename.ContentType(info.Key)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, data)
}

// handleImageInfo returns the enriched metadata without the bytes.
func (s *Server) handleImageInfo(c *gin.Context) {
	name := c.Param("filename")
	if !imagename.Allowed(name) {
		respondError(c, http.StatusBadRequest, "extension not allowed: only jpg, jpeg, png, webp accepted")
		return
	}

	_, info, err := s.resolveObject(c, name)
	if err != nil {
		respondStorageError(c, err)
		return
	}

	entry := imageEntry{
		Filename:   info.Key,
		Title:      imagename.DisplayName(info.Key),
		UploadedAt: info.LastModified,
		SizeBytes:  info.Size,
	}

	records := s.meta.Load(c.Request.Context())
	if m, ok := reconcile.ResolveRecord(info.Key, records); ok {
		entry.ProductName = m.Record.ProductName
		entry.ProductURL = m.Record.SourceURL
		entry.ProductImageURL = m.Record.ProductImageURL
		entry.Description = m.Record.ProductDescription
		if !m.Record.UploadedAt.IsZero() {
			entry.UploadedAt = m.Record.UploadedAt
		}
	}
	if entry.ProductName == "" {
		entry.ProductName = entry.Title
	}

	respondOK(c, entry)
}

// deleteOne removes an object, trying the exact name first and the
// cascade second. Returns the physical name actually deleted.
func (s *Server) deleteOne(c *gin.Context, name string) (string, error) {
	ctx := c.Request.Context()

	if err := s.store.Delete(ctx, name); err == nil {
		return name, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	objects, err := s.store.List(ctx)
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}
	if key, _, ok := reconcile.ResolveKey(name, keys); ok {
		if err := s.store.Delete(ctx, key); err != nil {
			return "", err
		}
		return key, nil
	}
	return "", storage.ErrNotFound
}

// removeRecords drops the metadata entries for deleted objects so no
// dangling references survive the next listing.
func (s *Server) removeRecords(c *gin.Context, deleted []string) {
	if len(deleted) == 0 {
		return
	}
	ctx := c.Request.Context()

	records := s.meta.Load(ctx)
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}

	dirty := false
	for _, name := range deleted {
		if key, _, ok := reconcile.ResolveKey(name, keys); ok {
			delete(records, key)
			dirty = true
		}
	}
	if dirty {
		s.meta.SaveBestEffort(ctx, records)
	}
}

// handleDeleteImage removes one object and its metadata record.
func (s *Server) handleDeleteImage(c *gin.Context) {
	name := c.Param("filename")
	if !imagename.Allowed(name) {
		respondError(c, http.StatusBadRequest, "extension not allowed: only jpg, jpeg, png, webp accepted")
		return
	}

	physical, err := s.deleteOne(c, name)
	if err != nil {
		respondStorageError(c, err)
		return
	}

	s.removeRecords(c, []string{physical})
	respondOK(c, gin.H{"deleted": physical})
}

type bulkDeleteRequest struct {
	Filenames []string `json:"filenames"`
}

// handleBulkDelete deletes a batch concurrently, tolerating partial
// failure: the response carries counts, no rollback happens.
func (s *Server) handleBulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Filenames) == 0 {
		respondError(c, http.StatusBadRequest, "filenames list is required")
		return
	}

	var (
		mu      sync.Mutex
		deleted []string
		failed  []string
		wg      sync.WaitGroup
	)

	for _, name := range req.Filenames {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if !imagename.Allowed(name) {
				mu.Lock()
				failed = append(failed, name)
				mu.Unlock()
				return
			}
			physical, err := s.deleteOne(c, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, name)
				return
			}
			deleted = append(deleted, physical)
		}(name)
	}
	wg.Wait()

	s.removeRecords(c, deleted)

	respondOK(c, gin.H{
		"successful": len(deleted),
		"failed":     len(failed),
		"deleted":    deleted,
		"failures":   failed,
	})
}
