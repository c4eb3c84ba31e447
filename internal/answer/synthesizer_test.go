package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afinal/feira-rag/internal/retrieval"
)

type fakeCompleter struct {
	reply string
	err   error

	calls      int
	lastSystem string
	lastUser   string
	lastTemp   float64
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string, temperature float64) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	f.lastTemp = temperature
	return f.reply, f.err
}

func sampleResults() []retrieval.Result {
	return []retrieval.Result{
		{Question: "Qual a altura máxima do estande?", Answer: "3 metros.", Score: 0.85},
		{Question: "Posso usar estrutura aérea?", Answer: "Somente com aprovação prévia.", Score: 0.52},
	}
}

func TestAnswer_NoResults(t *testing.T) {
	completer := &fakeCompleter{}
	s := NewSynthesizer(completer, 0.3, nil)

	resp := s.Answer(context.Background(), "horário de estacionamento", nil)

	assert.Equal(t, StatusNoResults, resp.Status)
	assert.Equal(t, "Não encontrei informações específicas para responder a essa pergunta.", resp.Text)
	assert.Empty(t, resp.Contexts)
	assert.Zero(t, completer.calls, "no generation call without contexts")
}

func TestAnswer_Success(t *testing.T) {
	completer := &fakeCompleter{reply: "A altura máxima permitida é de 3 metros."}
	s := NewSynthesizer(completer, 0.3, nil)

	resp := s.Answer(context.Background(), "qual a altura máxima?", sampleResults())

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "A altura máxima permitida é de 3 metros.", resp.Text)
	require.Len(t, resp.Contexts, 2)
	assert.Equal(t, "Qual a altura máxima do estande?", resp.Contexts[0].Question)
	assert.InDelta(t, 0.85, resp.Contexts[0].Score, 1e-9)
	assert.InDelta(t, 0.3, completer.lastTemp, 1e-9)
}

func TestAnswer_PromptIsGroundedInContexts(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	s := NewSynthesizer(completer, 0.3, nil)

	s.Answer(context.Background(), "qual a altura máxima?", sampleResults())

	assert.Contains(t, completer.lastSystem, "APENAS as informações fornecidas nos contextos")
	assert.Contains(t, completer.lastUser, "Contexto 1 (Relevância: 0.85):")
	assert.Contains(t, completer.lastUser, "Pergunta: Qual a altura máxima do estande?")
	assert.Contains(t, completer.lastUser, "Resposta: 3 metros.")
	assert.Contains(t, completer.lastUser, "Contexto 2 (Relevância: 0.52):")
	assert.Contains(t, completer.lastUser, "Pergunta do usuário: qual a altura máxima?")
}

func TestAnswer_ProviderFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("rate limited")}
	s := NewSynthesizer(completer, 0.3, nil)

	resp := s.Answer(context.Background(), "qual a altura máxima?", sampleResults())

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "Desculpe, ocorreu um erro ao gerar a resposta.", resp.Text)
	assert.Len(t, resp.Contexts, 2, "contexts are still reported for citation")
	assert.NotContains(t, resp.Text, "rate limited", "provider details never reach the user")
}
