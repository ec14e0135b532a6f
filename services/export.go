package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docquery-platform/models"
)

const (
	FormatJSON  = "json"
	FormatExcel = "excel"
)

// ExportFile is a generated download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	RecordCount int
}

// ExportService renders a user's query history or a chat session as a
// downloadable file.
type ExportService struct {
	queries  *mongo.Collection
	sessions *mongo.Collection
	messages *mongo.Collection
}

func NewExportService(db *mongo.Database) *ExportService {
	return &ExportService{
		queries:  db.Collection("queries"),
		sessions: db.Collection("chat_sessions"),
		messages: db.Collection("chat_messages"),
	}
}

// ExportQueries exports the user's query history, newest first, in the
// requested format. from/to bound the window when non-zero.
func (es *ExportService) ExportQueries(ctx context.Context, userID primitive.ObjectID, format string, from, to time.Time) (*ExportFile, error) {
	filter := bson.M{"user_id": userID}
	dateFilter := bson.M{}
	if !from.IsZero() {
		dateFilter["$gte"] = from
	}
	if !to.IsZero() {
		dateFilter["$lte"] = to
	}
	if len(dateFilter) > 0 {
		filter["created_at"] = dateFilter
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(10000)
	cursor, err := es.queries.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("load queries: %w", err)
	}
	defer cursor.Close(ctx)

	var queries []models.Query
	if err := cursor.All(ctx, &queries); err != nil {
		return nil, fmt.Errorf("decode queries: %w", err)
	}

	stamp := time.Now().Format("2006-01-02")
	switch format {
	case FormatJSON, "":
		data, err := exportJSON(queries)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Filename:    "queries-" + stamp + ".json",
			ContentType: "application/json",
			Data:        data,
			RecordCount: len(queries),
		}, nil
	case FormatExcel:
		data, err := exportExcel(queries)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Filename:    "queries-" + stamp + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
			RecordCount: len(queries),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportSession renders one chat session as a Markdown transcript with
// the sources each assistant answer was grounded on.
func (es *ExportService) ExportSession(ctx context.Context, userID, sessionID primitive.ObjectID) (*ExportFile, error) {
	var session models.ChatSession
	err := es.sessions.FindOne(ctx, bson.M{
		"_id":     sessionID,
		"user_id": userID,
	}).Decode(&session)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := es.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []models.ChatMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", session.Title)
	if session.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", session.Description)
	}
	fmt.Fprintf(&b, "Exported %s · %d messages\n\n---\n\n",
		time.Now().Format("2006-01-02 15:04"), len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case "user":
			fmt.Fprintf(&b, "**You** (%s):\n\n%s\n\n", msg.CreatedAt.Format("15:04"), msg.Content)
		case "assistant":
			fmt.Fprintf(&b, "**Assistant** (%s):\n\n%s\n\n", msg.CreatedAt.Format("15:04"), msg.Content)
			if len(msg.Sources) > 0 {
				b.WriteString("*Sources:*\n")
				for _, src := range msg.Sources {
					if src.Page != nil {
						fmt.Fprintf(&b, "- %s (page %d)\n", src.DocumentName, *src.Page)
					} else {
						fmt.Fprintf(&b, "- %s\n", src.DocumentName)
					}
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("---\n\n")
	}

	return &ExportFile{
		Filename:    "session-" + sessionID.Hex() + ".md",
		ContentType: "text/markdown; charset=utf-8",
		Data:        b.Bytes(),
		RecordCount: len(messages),
	}, nil
}

func exportJSON(queries []models.Query) ([]byte, error) {
	payload := map[string]any{
		"export_date":   time.Now(),
		"total_records": len(queries),
		"queries":       queries,
	}
	return json.MarshalIndent(payload, "", "  ")
}

func exportExcel(queries []models.Query) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Queries"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"Date", "Question", "Answer", "Confidence", "Sources", "Rating", "Total ms"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, q := range queries {
		sourceNames := make([]string, 0, len(q.Sources))
		for _, src := range q.Sources {
			sourceNames = append(sourceNames, src.DocumentName)
		}
		rating := ""
		if q.Rating != nil {
			rating = fmt.Sprintf("%d", *q.Rating)
		}

		values := []any{
			q.CreatedAt.Format(time.RFC3339),
			q.QueryText,
			q.ResponseText,
			q.ConfidenceScore,
			joinUnique(sourceNames),
			rating,
			q.TotalTimeMs,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func joinUnique(names []string) string {
	seen := map[string]bool{}
	out := ""
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		if out != "" {
			out += ", "
		}
		out += n
	}
	return out
}
