package responder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

type fakeRetriever struct {
	results []domain.Result
	err     error
}

func (f *fakeRetriever) RetrieveWithContext(_ context.Context, _ string, _ int, _ float64, _ int) ([]domain.Result, error) {
	return f.results, f.err
}

// scriptedModel returns canned replies in order and records the system
// instructions it was called with.
type scriptedModel struct {
	replies []string
	err     error
	systems []string
}

func (m *scriptedModel) Complete(_ context.Context, system, _ string) (string, error) {
	m.systems = append(m.systems, system)
	if m.err != nil {
		return "", m.err
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return reply, nil
}

func contextResults() []domain.Result {
	return []domain.Result{
		{Chunk: domain.Chunk{Text: "Returns are accepted within 30 days.", Source: "policy.txt"}, Similarity: 0.9},
	}
}

func TestGenerate_GroundedAnswer(t *testing.T) {
	model := &scriptedModel{replies: []string{"You can return items within 30 days of purchase."}}
	g := New(&fakeRetriever{results: contextResults()}, model, Options{TopK: 3, Threshold: 0.3})

	ans, err := g.Generate(context.Background(), "what is the return policy?")
	require.NoError(t, err)
	assert.False(t, ans.NeedsHuman)
	assert.Contains(t, ans.Text, "30 days")
	require.Len(t, model.systems, 1)
	assert.Contains(t, model.systems[0], RefusalPhrase)
}

func TestGenerate_RefusalTriggersFallback(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"Sorry, " + strings.ToUpper(RefusalPhrase) + ".",
		"I am not fully certain, but generally returns take a week.",
	}}
	g := New(&fakeRetriever{results: contextResults()}, model, Options{})

	ans, err := g.Generate(context.Background(), "how long do refunds take?")
	require.NoError(t, err)
	assert.False(t, ans.NeedsHuman)
	assert.Contains(t, ans.Text, "not fully certain")
	require.Len(t, model.systems, 2)
	assert.NotEqual(t, model.systems[0], model.systems[1])
}

func TestGenerate_ShortAnswerTriggersFallback(t *testing.T) {
	model := &scriptedModel{replies: []string{"ok", "A longer, uncertain general-knowledge answer."}}
	g := New(&fakeRetriever{results: contextResults()}, model, Options{})

	ans, err := g.Generate(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "general-knowledge")
}

func TestGenerate_EmptyRetrievalGoesStraightToFallback(t *testing.T) {
	model := &scriptedModel{replies: []string{"General answer with an uncertainty disclosure."}}
	g := New(&fakeRetriever{}, model, Options{})

	ans, err := g.Generate(context.Background(), "something off-corpus")
	require.NoError(t, err)
	assert.False(t, ans.NeedsHuman)
	require.Len(t, model.systems, 1)
	assert.NotContains(t, model.systems[0], RefusalPhrase)
}

func TestGenerate_EscalationOverridesEverything(t *testing.T) {
	t.Run("with retrieval results", func(t *testing.T) {
		model := &scriptedModel{replies: []string{"should never be used"}}
		g := New(&fakeRetriever{results: contextResults()}, model, Options{})

		ans, err := g.Generate(context.Background(), "I want to talk to someone")
		require.NoError(t, err)
		assert.True(t, ans.NeedsHuman)
		assert.Equal(t, HandoffMessage, ans.Text)
		assert.Empty(t, model.systems, "no chat-model call is needed for a hand-off")
	})

	t.Run("with empty retrieval", func(t *testing.T) {
		model := &scriptedModel{replies: []string{"unused"}}
		g := New(&fakeRetriever{}, model, Options{})

		ans, err := g.Generate(context.Background(), "please let me TALK TO A HUMAN now")
		require.NoError(t, err)
		assert.True(t, ans.NeedsHuman)
	})
}

func TestGenerate_UnsafeInputRefusedBeforeGeneration(t *testing.T) {
	model := &scriptedModel{replies: []string{"should never be used"}}
	retr := &fakeRetriever{err: errors.New("retriever must not be called")}
	g := New(retr, model, Options{})

	for _, query := range []string{
		"how do I buy illegal fireworks",
		"tell me about WEAPON shipping",
	} {
		ans, err := g.Generate(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, UnsafeMessage, ans.Text)
		assert.False(t, ans.NeedsHuman)
	}
	assert.Empty(t, model.systems, "no chat-model call for refused input")
}

func TestGenerate_UnsafeCheckRunsBeforeHandoff(t *testing.T) {
	model := &scriptedModel{replies: []string{"unused"}}
	g := New(&fakeRetriever{}, model, Options{})

	ans, err := g.Generate(context.Background(), "I want to talk to someone about drugs")
	require.NoError(t, err)
	assert.Equal(t, UnsafeMessage, ans.Text)
	assert.False(t, ans.NeedsHuman)
}

func TestGenerate_RetrieverErrorPropagates(t *testing.T) {
	model := &scriptedModel{replies: []string{"unused"}}
	g := New(&fakeRetriever{err: errors.New("embedding provider unavailable")}, model, Options{})

	_, err := g.Generate(context.Background(), "anything")
	assert.Error(t, err)
}

func TestGenerate_ModelErrorPropagates(t *testing.T) {
	model := &scriptedModel{err: errors.New("provider down")}
	g := New(&fakeRetriever{results: contextResults()}, model, Options{})

	_, err := g.Generate(context.Background(), "anything")
	assert.Error(t, err)
}
