package llm

import (
	"context"
	"fmt"
	"strings"

	"cv-chat-go/internal/config"
	"cv-chat-go/pkg/log"
)

// DefaultSystemPrompt instructs the model to answer from the CV text only.
const DefaultSystemPrompt = "You are an intelligent AI assistant that reviews a candidate's CV and answers questions about their experience. " +
	"Use only the provided CV text. Generate a natural, concise answer based on what's present. " +
	"If the CV mentions something, summarize it clearly and refer to specific projects or sections if applicable. " +
	"If something is not in the CV, state that it's not mentioned, but do not guess or invent information. " +
	"Keep your response brief and factual."

// DefaultFailureText is shown to callers when no answer could be generated.
const DefaultFailureText = "Sorry, an answer could not be generated right now. Please try again later."

// Answer is the outcome of one generation. When Failed is set, Text holds the
// user-facing failure message and Cause the provider error.
type Answer struct {
	Text   string
	Failed bool
	Cause  error
}

// Generator turns retrieved CV context and a question into an Answer.
type Generator struct {
	client       Client
	systemPrompt string
	failureText  string
}

// NewGenerator wraps client with the prompts from cfg, falling back to the
// built-in prompts for empty fields.
func NewGenerator(client Client, cfg config.LLMPromptConfig) *Generator {
	g := &Generator{client: client, systemPrompt: DefaultSystemPrompt, failureText: DefaultFailureText}
	if cfg.System != "" {
		g.systemPrompt = cfg.System
	}
	if cfg.FailureText != "" {
		g.failureText = cfg.FailureText
	}
	return g
}

// UserPrompt renders the question prompt around the CV context.
func UserPrompt(cvContext, question string) string {
	return fmt.Sprintf("CV:\n%s\n\nQ: %s\nA:", cvContext, question)
}

// Generate never returns an error: provider failures produce a failed Answer.
func (g *Generator) Generate(ctx context.Context, cvContext, question string) Answer {
	messages := []Message{
		{Role: RoleSystem, Content: g.systemPrompt},
		{Role: RoleUser, Content: UserPrompt(cvContext, question)},
	}
	reply, err := g.client.Chat(ctx, messages)
	if err != nil {
		log.Warnw("[Generator] answer generation failed", "error", err)
		return Answer{Text: g.failureText, Failed: true, Cause: err}
	}
	return Answer{Text: strings.TrimSpace(reply)}
}
