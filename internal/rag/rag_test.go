package rag

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/contractiq/server/internal/llm"
	"github.com/contractiq/server/internal/vectorstore"
)

type fakeLLM struct {
	text    string
	object  string
	textErr error
	objErr  error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	return f.text, f.textErr
}

func (f *fakeLLM) GenerateObject(ctx context.Context, prompt, schemaName string, schema map[string]any, out any, opts llm.GenerateOptions) error {
	if f.objErr != nil {
		return f.objErr
	}
	return json.Unmarshal([]byte(f.object), out)
}

type fakeStore struct {
	results  []vectorstore.SearchResult
	err      error
	searched int
}

func (f *fakeStore) IndexChunks(ctx context.Context, workspaceID, documentID, documentName string, chunks []vectorstore.IndexChunk) (int, error) {
	return 0, nil
}

func (f *fakeStore) Search(ctx context.Context, workspaceID, query string, nResults int, filter map[string]string) ([]vectorstore.SearchResult, error) {
	f.searched++
	return f.results, f.err
}

func (f *fakeStore) DeleteDocument(ctx context.Context, workspaceID, documentID string) error {
	return nil
}

func (f *fakeStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	return nil
}

func chunk(docID string, similarity float32) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		ID:           "chunk_1_0",
		Text:         "Either party may terminate with 30 days written notice.",
		Similarity:   similarity,
		DocumentID:   docID,
		DocumentName: "msa.pdf",
		PageNumber:   5,
		SectionName:  "TERMINATION",
		Metadata:     map[string]string{},
	}
}

func TestAsk_GreetingSkipsRetrieval(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{chunk("d1", 0.9)}}
	p := NewPipeline(&fakeLLM{text: "greeting"}, "m", store)

	res := p.Ask(context.Background(), "  Hello  ", "ws1", nil, nil)

	if store.searched != 0 {
		t.Error("greeting should not hit the vector store")
	}
	if !strings.Contains(res.Answer, "help you understand your contracts") {
		t.Errorf("expected greeting answer, got %q", res.Answer)
	}
	if res.RetrievedChunkCount != 0 {
		t.Errorf("expected 0 retrieved chunks, got %d", res.RetrievedChunkCount)
	}
}

func TestAsk_OffTopicRedirect(t *testing.T) {
	p := NewPipeline(&fakeLLM{text: "off_topic"}, "m", &fakeStore{})

	res := p.Ask(context.Background(), "What is the weather today?", "ws1", nil, nil)

	if !strings.Contains(res.Answer, "specialized in helping with contract analysis") {
		t.Errorf("expected off-topic redirect, got %q", res.Answer)
	}
	if res.Err != "" {
		t.Errorf("off-topic answer should not set error, got %q", res.Err)
	}
}

func TestAsk_NoChunksFound(t *testing.T) {
	p := NewPipeline(&fakeLLM{text: "needs_context"}, "m", &fakeStore{})

	res := p.Ask(context.Background(), "What is the liability cap?", "ws1", nil, nil)

	if !strings.Contains(res.Answer, "couldn't find any relevant information") {
		t.Errorf("expected no-context answer, got %q", res.Answer)
	}
	if res.Err != "No relevant chunks found" {
		t.Errorf("expected chunk-miss error, got %q", res.Err)
	}
}

func TestAsk_ClassifierFailureFallsBack(t *testing.T) {
	p := NewPipeline(&fakeLLM{textErr: errors.New("unavailable")}, "m", &fakeStore{})

	res := p.Ask(context.Background(), "anything", "ws1", nil, nil)

	if !strings.Contains(res.Answer, "couldn't find any relevant information") {
		t.Errorf("expected fallback answer, got %q", res.Answer)
	}
}

func TestRetrieve_FiltersByDocumentIDs(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		chunk("keep", 0.9),
		chunk("drop", 0.8),
	}}
	p := NewPipeline(&fakeLLM{}, "m", store)

	chunks := p.retrieve(context.Background(), "termination terms?", "ws1", []string{"keep"})

	if len(chunks) != 1 || chunks[0].DocumentID != "keep" {
		t.Errorf("expected only requested document, got %+v", chunks)
	}
}

func TestRetrieve_SimilarityThresholdAndTop5(t *testing.T) {
	results := make([]vectorstore.SearchResult, 0, 8)
	for i := 0; i < 7; i++ {
		results = append(results, chunk("d1", float32(0.9)-float32(i)*0.1))
	}
	results = append(results, chunk("d1", -0.5))
	store := &fakeStore{results: results}
	p := NewPipeline(&fakeLLM{}, "m", store)

	chunks := p.retrieve(context.Background(), "termination?", "ws1", nil)

	if len(chunks) != 5 {
		t.Fatalf("expected top 5 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if float64(c.Similarity) <= minSimilarity {
			t.Errorf("low similarity chunk survived: %f", c.Similarity)
		}
	}
}

func TestRetrieve_AllBelowThresholdKeepsTop5(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		chunk("d1", -0.5), chunk("d1", -0.6), chunk("d1", -0.4),
	}}
	p := NewPipeline(&fakeLLM{}, "m", store)

	chunks := p.retrieve(context.Background(), "termination?", "ws1", nil)

	if len(chunks) != 3 {
		t.Fatalf("expected all 3 low-score chunks as fallback, got %d", len(chunks))
	}
	if chunks[0].Similarity != -0.4 {
		t.Errorf("fallback chunks should be sorted by score, got first %f", chunks[0].Similarity)
	}
}

func TestAsk_GeneratesAnswerWithCitations(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{chunk("d1", 0.85)}}
	fake := &fakeLLM{object: `{"answer":"Termination requires 30 days notice [Source 1].","cited_sources":[1],"confidence":0.9,"answer_notes":""}`}
	p := NewPipeline(fake, "m", store)

	res := p.Ask(context.Background(), "What are the termination terms?", "ws1", nil, nil)

	if res.Err != "" {
		t.Fatalf("unexpected error %q", res.Err)
	}
	if len(res.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(res.Citations))
	}
	c := res.Citations[0]
	if c.DocumentID != "d1" || c.PageNumber != 5 || c.SectionName != "TERMINATION" {
		t.Errorf("unexpected citation %+v", c)
	}
	if res.RetrievedChunkCount != 1 {
		t.Errorf("expected retrieved count 1, got %d", res.RetrievedChunkCount)
	}
}

func TestAsk_GenerationFailure(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{chunk("d1", 0.85)}}
	p := NewPipeline(&fakeLLM{objErr: errors.New("model overloaded")}, "m", store)

	res := p.Ask(context.Background(), "terms?", "ws1", nil, nil)

	if !strings.HasPrefix(res.Answer, "Error generating answer:") {
		t.Errorf("expected error answer, got %q", res.Answer)
	}
	if res.Err == "" {
		t.Error("expected error recorded in result")
	}
}

func TestUserPrompt_HistoryWindow(t *testing.T) {
	history := []HistoryMessage{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: "third"},
		{Role: "assistant", Content: "fourth"},
		{Role: "user", Content: "fifth"},
	}

	prompt := userPrompt("q", []string{"[Source 1]\ncontent"}, history)

	if strings.Contains(prompt, "first") {
		t.Error("messages beyond the window should be dropped")
	}
	if !strings.Contains(prompt, "Assistant: second") {
		t.Error("expected capitalized role prefix for history")
	}
	if !strings.Contains(prompt, "User: fifth") {
		t.Error("expected most recent message in history")
	}
}

func TestCitationFor_ExcerptAndCoordinates(t *testing.T) {
	c := chunk("d1", 0.7)
	c.Text = strings.Repeat("x", 600)
	c.Metadata["coordinates"] = `{"x0":72,"y0":100,"x1":500,"y1":140,"page":5}`

	got := citationFor(c)

	if len(got.TextExcerpt) != 500 {
		t.Errorf("expected 500-char excerpt, got %d", len(got.TextExcerpt))
	}
	if got.Coordinates == nil || got.Coordinates["page"] != float64(5) {
		t.Errorf("expected parsed coordinates, got %v", got.Coordinates)
	}
}
