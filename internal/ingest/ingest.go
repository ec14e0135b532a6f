package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docquery-platform/internal/chunker"
	"docquery-platform/internal/embeddings"
	"docquery-platform/internal/extract"
	"docquery-platform/internal/logger"
	"docquery-platform/internal/vectorstore"
	"docquery-platform/models"
	"docquery-platform/utils"
)

var tracer = otel.Tracer("docquery/ingest")

// Chunk rows above this size are stored gzip-compressed in Mongo.
const compressThresholdBytes = 1024

// Embedding requests are batched to stay under provider payload limits.
const embedBatchSize = 64

// Summarizer is the optional post-processing hook. Failures are logged
// and never affect document status.
type Summarizer interface {
	Summarize(ctx context.Context, doc *models.Document, text string) error
}

// documentCollection and chunkCollection narrow *mongo.Collection to
// the calls the coordinator makes, so the pipeline can be exercised
// against in-memory fakes.
type documentCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateByID(ctx context.Context, id interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

type chunkCollection interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// Coordinator drives a document through the processing pipeline:
// extract, chunk, persist chunk rows, embed, index, mark completed.
// Each step only runs after the previous one fully succeeded, so a
// completed document always has both its chunk rows and its vectors.
type Coordinator struct {
	documents  documentCollection
	chunks     chunkCollection
	store      vectorstore.Store
	embedder   embeddings.Embedder
	chunker    *chunker.Chunker
	summarizer Summarizer
}

func NewCoordinator(db *mongo.Database, store vectorstore.Store, embedder embeddings.Embedder, ch *chunker.Chunker, summarizer Summarizer) *Coordinator {
	return &Coordinator{
		documents:  db.Collection("documents"),
		chunks:     db.Collection("document_chunks"),
		store:      store,
		embedder:   embedder,
		chunker:    ch,
		summarizer: summarizer,
	}
}

// Process runs the full pipeline for one document. Any failure marks
// the document failed with a reason and is returned to the caller; a
// failed run leaves no completed status behind.
func (c *Coordinator) Process(ctx context.Context, documentID primitive.ObjectID) error {
	ctx, span := tracer.Start(ctx, "ingest.process")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID.Hex()))

	var doc models.Document
	if err := c.documents.FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc); err != nil {
		return fmt.Errorf("load document %s: %w", documentID.Hex(), err)
	}

	if err := c.setStatus(ctx, documentID, models.StatusProcessing, ""); err != nil {
		return err
	}

	pages, err := extract.FromFile(doc.FilePath)
	if err != nil {
		return c.fail(ctx, documentID, fmt.Errorf("extract text: %w", err))
	}
	if len(pages) == 0 {
		return c.fail(ctx, documentID, fmt.Errorf("no extractable text in document"))
	}

	rows, contents := c.chunkPages(doc, pages)
	if len(rows) == 0 {
		return c.fail(ctx, documentID, fmt.Errorf("text produced no usable chunks"))
	}

	chunkIDs, err := c.persistChunks(ctx, rows)
	if err != nil {
		return c.fail(ctx, documentID, fmt.Errorf("persist chunks: %w", err))
	}

	vectorIDs, err := c.embedAndIndex(ctx, doc, rows, contents)
	if err != nil {
		return c.fail(ctx, documentID, err)
	}

	if err := c.linkVectors(ctx, chunkIDs, vectorIDs); err != nil {
		return c.fail(ctx, documentID, fmt.Errorf("link vector ids: %w", err))
	}

	wordCount := extract.WordCount(pages)
	now := time.Now()
	_, err = c.documents.UpdateByID(ctx, documentID, bson.M{"$set": bson.M{
		"status":               models.StatusCompleted,
		"error_message":        "",
		"chunk_count":          len(rows),
		"word_count":           wordCount,
		"reading_time_minutes": readingTime(wordCount),
		"processed_at":         now,
		"updated_at":           now,
	}})
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	logger.Info("Document processed",
		"document_id", documentID.Hex(),
		"chunks", len(rows),
		"words", wordCount)

	c.summarize(ctx, &doc, pages)
	return nil
}

// Reprocess wipes a document's derived data and runs the pipeline
// again. Old vectors and chunk rows are removed first so a reprocess
// can never leave duplicates behind.
func (c *Coordinator) Reprocess(ctx context.Context, documentID primitive.ObjectID) error {
	if err := c.store.DeleteByDocument(ctx, documentID.Hex()); err != nil {
		return c.fail(ctx, documentID, fmt.Errorf("clear old vectors: %w", err))
	}
	if _, err := c.chunks.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return c.fail(ctx, documentID, fmt.Errorf("clear old chunks: %w", err))
	}
	if err := c.setStatus(ctx, documentID, models.StatusPending, ""); err != nil {
		return err
	}
	return c.Process(ctx, documentID)
}

// Delete removes a document and all derived data: vectors, chunk rows,
// the metadata row and the stored file. Vector deletion goes first so a
// partial failure cannot leave orphaned searchable chunks.
func (c *Coordinator) Delete(ctx context.Context, userID, documentID primitive.ObjectID) error {
	var doc models.Document
	err := c.documents.FindOne(ctx, bson.M{"_id": documentID, "user_id": userID}).Decode(&doc)
	if err != nil {
		return err
	}

	if err := c.store.DeleteByDocument(ctx, documentID.Hex()); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if _, err := c.chunks.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := c.documents.DeleteOne(ctx, bson.M{"_id": documentID}); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Could not remove stored file", "path", doc.FilePath, "error", err)
		}
	}

	logger.Info("Document deleted", "document_id", documentID.Hex(), "user_id", userID.Hex())
	return nil
}

// Chunks returns a document's chunk rows in order, with compressed
// content transparently expanded.
func (c *Coordinator) Chunks(ctx context.Context, documentID primitive.ObjectID) ([]models.DocumentChunk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}})
	cursor, err := c.chunks.Find(ctx, bson.M{"document_id": documentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []models.DocumentChunk
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Compressed {
			raw, err := utils.Decompress([]byte(rows[i].Content), rows[i].Compression)
			if err != nil {
				return nil, fmt.Errorf("decompress chunk %d: %w", rows[i].ChunkIndex, err)
			}
			rows[i].Content = string(raw)
			rows[i].Compressed = false
			rows[i].Compression = ""
		}
	}
	return rows, nil
}

// chunkPages chunks each page separately so every chunk knows its page,
// with one document-wide running index. contents keeps the plain text
// for embedding regardless of row compression.
func (c *Coordinator) chunkPages(doc models.Document, pages []extract.Page) ([]models.DocumentChunk, []string) {
	var rows []models.DocumentChunk
	var contents []string
	now := time.Now()

	for _, page := range pages {
		for _, ch := range c.chunker.Chunk(page.Text) {
			row := models.DocumentChunk{
				DocumentID: doc.ID,
				UserID:     doc.UserID,
				ChunkIndex: len(rows),
				Content:    ch.Content,
				CreatedAt:  now,
			}
			if page.Number > 0 {
				p := page.Number
				row.StartPage = &p
				row.EndPage = &p
			}
			contents = append(contents, ch.Content)
			rows = append(rows, row)
		}
	}
	return rows, contents
}

func (c *Coordinator) persistChunks(ctx context.Context, rows []models.DocumentChunk) ([]primitive.ObjectID, error) {
	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		if len(row.Content) > compressThresholdBytes {
			compressed, err := utils.Compress([]byte(row.Content), utils.CodecGzip)
			if err == nil && len(compressed) < len(row.Content) {
				row.Content = string(compressed)
				row.Compressed = true
				row.Compression = utils.CodecGzip
			}
		}
		docs = append(docs, row)
	}

	res, err := c.chunks.InsertMany(ctx, docs)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(res.InsertedIDs))
	for _, id := range res.InsertedIDs {
		ids = append(ids, id.(primitive.ObjectID))
	}
	return ids, nil
}

func (c *Coordinator) embedAndIndex(ctx context.Context, doc models.Document, rows []models.DocumentChunk, contents []string) ([]string, error) {
	name := doc.OriginalFilename
	if name == "" {
		name = doc.Title
	}

	var vectorIDs []string
	for start := 0; start < len(contents); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(contents) {
			end = len(contents)
		}

		vectors, err := c.embedder.EmbedPassages(ctx, contents[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}

		records := make([]vectorstore.Record, 0, end-start)
		for i, vec := range vectors {
			row := rows[start+i]
			pageNumber := 0
			if row.StartPage != nil {
				pageNumber = *row.StartPage
			}
			records = append(records, vectorstore.Record{
				Content:      contents[start+i],
				DocumentID:   doc.ID.Hex(),
				UserID:       doc.UserID.Hex(),
				ChunkIndex:   row.ChunkIndex,
				DocumentName: name,
				PageNumber:   pageNumber,
				Vector:       vec,
			})
		}

		ids, err := c.store.Insert(ctx, records)
		if err != nil {
			return nil, fmt.Errorf("index chunks %d-%d: %w", start, end-1, err)
		}
		vectorIDs = append(vectorIDs, ids...)
	}
	return vectorIDs, nil
}

func (c *Coordinator) linkVectors(ctx context.Context, chunkIDs []primitive.ObjectID, vectorIDs []string) error {
	if len(chunkIDs) != len(vectorIDs) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunkIDs), len(vectorIDs))
	}
	writes := make([]mongo.WriteModel, 0, len(chunkIDs))
	for i, id := range chunkIDs {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{"$set": bson.M{"vector_id": vectorIDs[i]}}))
	}
	_, err := c.chunks.BulkWrite(ctx, writes)
	return err
}

func (c *Coordinator) summarize(ctx context.Context, doc *models.Document, pages []extract.Page) {
	if c.summarizer == nil {
		return
	}
	var text string
	for _, p := range pages {
		text += p.Text + "\n\n"
	}
	if err := c.summarizer.Summarize(ctx, doc, text); err != nil {
		logger.Warn("Summarization failed", "document_id", doc.ID.Hex(), "error", err)
	}
}

func (c *Coordinator) setStatus(ctx context.Context, documentID primitive.ObjectID, status, errMsg string) error {
	_, err := c.documents.UpdateByID(ctx, documentID, bson.M{"$set": bson.M{
		"status":        status,
		"error_message": errMsg,
		"updated_at":    time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("set status %s: %w", status, err)
	}
	return nil
}

// fail records the failure reason on the document, then propagates it.
func (c *Coordinator) fail(ctx context.Context, documentID primitive.ObjectID, cause error) error {
	logger.Error("Document processing failed", "document_id", documentID.Hex(), "error", cause)
	if err := c.setStatus(ctx, documentID, models.StatusFailed, cause.Error()); err != nil {
		logger.Error("Could not record failure status", "document_id", documentID.Hex(), "error", err)
	}
	return cause
}

func readingTime(wordCount int) int {
	minutes := (wordCount + 199) / 200
	if minutes < 1 && wordCount > 0 {
		minutes = 1
	}
	return minutes
}
