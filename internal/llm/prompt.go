package llm

import (
	"fmt"
	"strings"

	"docquery-platform/models"
)

// RefusalMessage is the exact sentence the model is instructed to use
// when the retrieved evidence cannot answer the question. Clients match
// on it, so it must stay stable.
const RefusalMessage = "I couldn't find information about that in the provided documents."

const systemInstruction = `You are a helpful assistant that answers questions based on the user's documents.

Rules:
- Answer ONLY using the information in the provided document excerpts.
- If the excerpts do not contain the answer, reply exactly: "` + RefusalMessage + `"
- Cite the source document name when it supports your answer.
- Be concise and factual. Do not invent details.`

// maxHistoryTurns bounds how much prior conversation is rendered into
// the prompt. Older turns are dropped, newest kept.
const maxHistoryTurns = 5

// BuildPrompt assembles the grounded generation prompt. Order is fixed:
// conversation history, then evidence excerpts, then the question.
func BuildPrompt(question string, sources []models.SourceChunk, history []models.ChatTurn) (system, prompt string) {
	var b strings.Builder

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, turn := range history {
			label := "User"
			if turn.Role == "assistant" {
				label = "Assistant"
			}
			b.WriteString(fmt.Sprintf("%s: %s\n", label, turn.Content))
		}
		b.WriteString("\n")
	}

	if len(sources) > 0 {
		b.WriteString("Document excerpts:\n\n")
		parts := make([]string, 0, len(sources))
		for i, src := range sources {
			header := fmt.Sprintf("[Source %d: %s]", i+1, src.DocumentName)
			if src.Page != nil {
				header += fmt.Sprintf(" (Page %d)", *src.Page)
			}
			parts = append(parts, header+"\n"+src.Content)
		}
		b.WriteString(strings.Join(parts, "\n\n---\n\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)

	return systemInstruction, b.String()
}
