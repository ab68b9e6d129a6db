package summary

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/liwenzhu/kali-chat/internal/model/chat"
)

const summaryPrompt = "Summarize this conversation, preserving:\n" +
	"1. Key technical details\n" +
	"2. User intentions\n" +
	"3. Important context\n" +
	"Format: Clear bullet points"

// Service condenses a conversation transcript into a bounded summary.
type Service struct {
	chatModel model.ChatModel
	maxWords  int
}

// NewService wires the summarization model.
func NewService(chatModel model.ChatModel, maxWords int) *Service {
	return &Service{chatModel: chatModel, maxWords: maxWords}
}

// Generate asks the model for a summary and truncates it to the word budget.
func (s *Service) Generate(ctx context.Context, messages []chat.Message) (string, error) {
	if s.chatModel == nil {
		return "", fmt.Errorf("summarization model not configured")
	}

	prompt := buildPrompt(messages)
	response, err := s.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	summary := truncateWords(response.Content, s.maxWords)
	log.Printf("[summary] generated summary, %d chars from %d messages", len(summary), len(messages))
	return summary, nil
}

func buildPrompt(messages []chat.Message) string {
	var b strings.Builder
	b.WriteString(summaryPrompt)
	b.WriteString("\n\nConversation:\n")
	for _, msg := range messages {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func truncateWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}
	return strings.Join(words[:max], " ")
}
