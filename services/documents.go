package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docquery-platform/internal/config"
	"docquery-platform/internal/ingest"
	"docquery-platform/internal/logger"
	"docquery-platform/internal/queue"
	"docquery-platform/internal/scraper"
	"docquery-platform/internal/youtube"
	"docquery-platform/models"
	"docquery-platform/utils"
)

var (
	ErrDuplicateDocument = errors.New("document with identical content already exists")
	ErrFileTooLarge      = errors.New("file exceeds the maximum upload size")
	ErrUnsupportedType   = errors.New("unsupported file type")
)

// Transcripts shorter than this are almost always an auto-caption
// fragment, not usable document content.
const minTranscriptChars = 100

// DocumentService owns document intake: uploads, pasted text, URL and
// YouTube transcript imports. Small files are processed inline, large
// ones queued.
type DocumentService struct {
	cfg         *config.Config
	documents   *mongo.Collection
	coordinator *ingest.Coordinator
	asynqClient *asynq.Client // nil disables the async path
	youtube     *youtube.Client
}

func NewDocumentService(cfg *config.Config, db *mongo.Database, coordinator *ingest.Coordinator, asynqClient *asynq.Client) *DocumentService {
	return &DocumentService{
		cfg:         cfg,
		documents:   db.Collection("documents"),
		coordinator: coordinator,
		asynqClient: asynqClient,
		youtube:     youtube.NewClient(),
	}
}

// Upload stores a file and runs or enqueues ingestion. Identical
// content for the same user is rejected before anything is written.
func (s *DocumentService) Upload(ctx context.Context, userID primitive.ObjectID, fileHeader *multipart.FileHeader) (*models.UploadResponse, error) {
	if fileHeader.Size > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, fileHeader.Size)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileHeader.Filename), "."))
	if !s.extensionAllowed(ext) {
		return nil, fmt.Errorf("%w: .%s", ErrUnsupportedType, ext)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	hash := utils.ContentHash(data)
	if err := s.checkDuplicate(ctx, userID, hash); err != nil {
		return nil, err
	}

	storedName := uuid.NewString() + "." + ext
	path, err := s.storeFile(storedName, data)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		UserID:           userID,
		Filename:         storedName,
		OriginalFilename: fileHeader.Filename,
		FilePath:         path,
		FileType:         ext,
		FileSize:         fileHeader.Size,
		SourceType:       models.SourceUpload,
		ContentHash:      hash,
		Status:           models.StatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := s.insertDocument(ctx, doc); err != nil {
		os.Remove(path)
		return nil, err
	}

	return s.dispatch(ctx, doc, fileHeader.Size > s.cfg.SyncProcessingLimit)
}

// ImportText ingests pasted text as a document.
func (s *DocumentService) ImportText(ctx context.Context, userID primitive.ObjectID, req models.TextImportRequest) (*models.UploadResponse, error) {
	data := []byte(req.Content)
	hash := utils.ContentHash(data)
	if err := s.checkDuplicate(ctx, userID, hash); err != nil {
		return nil, err
	}

	storedName := uuid.NewString() + ".txt"
	path, err := s.storeFile(storedName, data)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		UserID:           userID,
		Filename:         storedName,
		OriginalFilename: req.Title,
		FilePath:         path,
		FileType:         "txt",
		FileSize:         int64(len(data)),
		SourceType:       models.SourceText,
		Title:            req.Title,
		ContentHash:      hash,
		Status:           models.StatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := s.insertDocument(ctx, doc); err != nil {
		os.Remove(path)
		return nil, err
	}
	return s.dispatch(ctx, doc, false)
}

// ImportURL scrapes a page (or site, when crawling) and ingests the
// captured text as one document.
func (s *DocumentService) ImportURL(ctx context.Context, userID primitive.ObjectID, req models.URLImportRequest) (*models.UploadResponse, error) {
	maxPages := req.MaxPages
	if maxPages <= 0 || maxPages > s.cfg.CrawlMaxPages {
		maxPages = s.cfg.CrawlMaxPages
	}

	result, err := scraper.Scrape(scraper.Config{
		URL:      req.URL,
		Crawl:    req.Crawl,
		MaxPages: maxPages,
	})
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}

	data := []byte(result.Text())
	hash := utils.ContentHash(data)
	if err := s.checkDuplicate(ctx, userID, hash); err != nil {
		return nil, err
	}

	storedName := uuid.NewString() + ".txt"
	path, err := s.storeFile(storedName, data)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		UserID:           userID,
		Filename:         storedName,
		OriginalFilename: result.Title,
		FilePath:         path,
		FileType:         "txt",
		FileSize:         int64(len(data)),
		SourceType:       models.SourceURL,
		SourceURL:        req.URL,
		Title:            result.Title,
		ContentHash:      hash,
		Status:           models.StatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := s.insertDocument(ctx, doc); err != nil {
		os.Remove(path)
		return nil, err
	}

	logger.Info("URL imported", "url", req.URL, "pages", result.PagesCrawled, "bytes", len(data))
	return s.dispatch(ctx, doc, false)
}

// ImportYouTube fetches a video's transcript and ingests it as a
// document, with the video URL kept as the source.
func (s *DocumentService) ImportYouTube(ctx context.Context, userID primitive.ObjectID, req models.YouTubeImportRequest) (*models.UploadResponse, error) {
	videoID, err := youtube.ExtractVideoID(req.URL)
	if err != nil {
		return nil, err
	}

	transcript, err := s.youtube.FetchTranscript(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	if len(strings.TrimSpace(transcript)) < minTranscriptChars {
		return nil, fmt.Errorf("transcript too short or empty")
	}

	data := []byte(transcript)
	hash := utils.ContentHash(data)
	if err := s.checkDuplicate(ctx, userID, hash); err != nil {
		return nil, err
	}

	storedName := uuid.NewString() + ".txt"
	path, err := s.storeFile(storedName, data)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = "YouTube Video - " + videoID
	}

	doc := &models.Document{
		UserID:           userID,
		Filename:         storedName,
		OriginalFilename: title,
		FilePath:         path,
		FileType:         "txt",
		FileSize:         int64(len(data)),
		SourceType:       models.SourceYouTube,
		SourceURL:        "https://youtube.com/watch?v=" + videoID,
		Title:            title,
		Description:      "Transcript from YouTube video: " + videoID,
		ContentHash:      hash,
		Status:           models.StatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := s.insertDocument(ctx, doc); err != nil {
		os.Remove(path)
		return nil, err
	}

	logger.Info("YouTube transcript imported", "video_id", videoID, "bytes", len(data))
	return s.dispatch(ctx, doc, false)
}

// Reprocess re-runs ingestion for a completed or failed document.
func (s *DocumentService) Reprocess(ctx context.Context, userID, documentID primitive.ObjectID) (*models.UploadResponse, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": documentID, "user_id": userID}).Decode(&doc)
	if err != nil {
		return nil, err
	}
	if doc.Status == models.StatusProcessing {
		return nil, fmt.Errorf("document is already being processed")
	}

	if s.asynqClient != nil {
		task, err := queue.NewReprocessTask(documentID.Hex(), userID.Hex())
		if err != nil {
			return nil, err
		}
		info, err := s.asynqClient.EnqueueContext(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("enqueue reprocess: %w", err)
		}
		return &models.UploadResponse{
			ID:      documentID.Hex(),
			Status:  models.StatusPending,
			Message: "reprocessing queued",
			TaskID:  info.ID,
		}, nil
	}

	if err := s.coordinator.Reprocess(ctx, documentID); err != nil {
		return nil, err
	}
	return &models.UploadResponse{
		ID:      documentID.Hex(),
		Status:  models.StatusCompleted,
		Message: "document reprocessed",
	}, nil
}

// Delete removes a document and all its derived data.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID primitive.ObjectID) error {
	return s.coordinator.Delete(ctx, userID, documentID)
}

// List returns the user's documents, newest first, optionally filtered
// by status.
func (s *DocumentService) List(ctx context.Context, userID primitive.ObjectID, status string, page, pageSize int) ([]models.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := bson.M{"user_id": userID}
	if status != "" {
		filter["status"] = status
	}

	total, err := s.documents.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))
	cursor, err := s.documents.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Get fetches one document scoped to its owner.
func (s *DocumentService) Get(ctx context.Context, userID, documentID primitive.ObjectID) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": documentID, "user_id": userID}).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Chunks exposes a document's chunk rows, owner-scoped.
func (s *DocumentService) Chunks(ctx context.Context, userID, documentID primitive.ObjectID) ([]models.DocumentChunk, error) {
	if _, err := s.Get(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.coordinator.Chunks(ctx, documentID)
}

func (s *DocumentService) extensionAllowed(ext string) bool {
	for _, allowed := range s.cfg.AllowedExtensions {
		if strings.EqualFold(strings.TrimSpace(allowed), ext) {
			return true
		}
	}
	return false
}

func (s *DocumentService) checkDuplicate(ctx context.Context, userID primitive.ObjectID, hash string) error {
	count, err := s.documents.CountDocuments(ctx, bson.M{"user_id": userID, "content_hash": hash})
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if count > 0 {
		return ErrDuplicateDocument
	}
	return nil
}

func (s *DocumentService) storeFile(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.cfg.FileStorageDir, 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}
	path := filepath.Join(s.cfg.FileStorageDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("store file: %w", err)
	}
	return path, nil
}

func (s *DocumentService) insertDocument(ctx context.Context, doc *models.Document) error {
	res, err := s.documents.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// dispatch routes ingestion to the queue for large files when a queue
// client is wired, otherwise processes inline.
func (s *DocumentService) dispatch(ctx context.Context, doc *models.Document, preferAsync bool) (*models.UploadResponse, error) {
	if preferAsync && s.asynqClient != nil {
		task, err := queue.NewProcessTask(doc.ID.Hex(), doc.UserID.Hex())
		if err != nil {
			return nil, err
		}
		info, err := s.asynqClient.EnqueueContext(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("enqueue processing: %w", err)
		}
		return &models.UploadResponse{
			ID:       doc.ID.Hex(),
			Filename: doc.OriginalFilename,
			Status:   models.StatusPending,
			Message:  "document queued for processing",
			TaskID:   info.ID,
		}, nil
	}

	if err := s.coordinator.Process(ctx, doc.ID); err != nil {
		return nil, err
	}

	var processed models.Document
	if err := s.documents.FindOne(ctx, bson.M{"_id": doc.ID}).Decode(&processed); err != nil {
		return nil, err
	}
	return &models.UploadResponse{
		ID:         processed.ID.Hex(),
		Filename:   processed.OriginalFilename,
		Status:     processed.Status,
		ChunkCount: processed.ChunkCount,
		Message:    "document processed",
	}, nil
}
