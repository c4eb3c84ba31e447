// Package answer turns retrieval results into a grounded natural-language
// reply. The generation model is constrained to the supplied contexts and
// every provider failure is converted into a fixed apology; end users
// never see an error detail.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/afinal/feira-rag/internal/retrieval"
)

// Status classifies the outcome of an Answer call.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusNoResults Status = "no_results"
	StatusError     Status = "error"
)

// Fixed user-facing texts. The end user always gets natural language,
// never a stack trace.
const (
	noResultsText = "Não encontrei informações específicas para responder a essa pergunta."
	errorText     = "Desculpe, ocorreu um erro ao gerar a resposta."
)

const systemPrompt = `Você é um assistente especializado em feiras e eventos.
Seu objetivo é fornecer informações precisas e relevantes com base nos contextos disponíveis.

Diretrizes:
1. Use APENAS as informações fornecidas nos contextos para responder à pergunta do usuário.
2. Não invente ou adicione informações que não estejam explicitamente nos contextos.
3. Se os contextos não contiverem informações suficientes, informe que não há dados disponíveis.
4. Priorize informações dos contextos com pontuação (relevância) mais alta.
5. Mantenha suas respostas concisas e diretas.`

// ContextUsed is one retrieval result echoed back to the caller for
// citation in the UI.
type ContextUsed struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}

// Response is the synthesized answer plus the contexts that grounded it.
type Response struct {
	Text     string        `json:"text"`
	Contexts []ContextUsed `json:"contexts"`
	Status   Status        `json:"status"`
}

// Completer is the chat-completion boundary. llm.Client implements it.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Synthesizer produces grounded answers from ranked retrieval results.
type Synthesizer struct {
	completer   Completer
	temperature float64
	logger      *slog.Logger
}

// NewSynthesizer creates a Synthesizer using the given completion client.
func NewSynthesizer(completer Completer, temperature float64, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		completer:   completer,
		temperature: temperature,
		logger:      logger,
	}
}

// Answer generates a reply to query grounded in results. With zero
// results it returns the fixed "no information" text without calling the
// generation API.
func (s *Synthesizer) Answer(ctx context.Context, query string, results []retrieval.Result) Response {
	if len(results) == 0 {
		return Response{
			Text:     noResultsText,
			Contexts: []ContextUsed{},
			Status:   StatusNoResults,
		}
	}

	contexts := make([]ContextUsed, len(results))
	for i, r := range results {
		contexts[i] = ContextUsed{
			Question: r.Question,
			Answer:   r.Answer,
			Score:    r.Score,
		}
	}

	text, err := s.completer.Complete(ctx, systemPrompt, buildUserPrompt(query, contexts), s.temperature)
	if err != nil {
		s.logger.Error("answer generation failed",
			"query_len", len(query), "contexts", len(contexts), "error", err)
		return Response{
			Text:     errorText,
			Contexts: contexts,
			Status:   StatusError,
		}
	}

	return Response{
		Text:     text,
		Contexts: contexts,
		Status:   StatusSuccess,
	}
}

// buildUserPrompt formats the contexts in rank order and appends the
// user's question.
func buildUserPrompt(query string, contexts []ContextUsed) string {
	var b strings.Builder
	b.WriteString("Contextos recuperados do banco de conhecimento:\n")
	for i, ctx := range contexts {
		fmt.Fprintf(&b, "\nContexto %d (Relevância: %.2f):\nPergunta: %s\nResposta: %s\n",
			i+1, ctx.Score, ctx.Question, ctx.Answer)
	}
	fmt.Fprintf(&b, "\nPergunta do usuário: %s\n", query)
	b.WriteString("\nPor favor, responda à pergunta baseando-se exclusivamente nos contextos fornecidos.")
	return b.String()
}
