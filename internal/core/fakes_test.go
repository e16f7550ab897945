// ABOUTME: Offline fakes for LLM, embedder, and generator used across core tests
// ABOUTME: The fake LLM routes canned replies by prompt substring
package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// stubReply pairs a prompt marker with a canned response. A marker may join
// several required substrings with " && ".
type stubReply struct {
	marker string
	reply  string
}

func (s stubReply) matches(prompt string) bool {
	if s.marker == "" {
		return false
	}
	for _, part := range strings.Split(s.marker, " && ") {
		if !strings.Contains(prompt, part) {
			return false
		}
	}
	return true
}

// fakeLLM answers prompts by matching markers in order. Unmatched prompts get
// the fallback (default "{}").
type fakeLLM struct {
	mu       sync.Mutex
	stubs    []stubReply
	fallback string
	err      error
	calls    []string
}

func newFakeLLM(stubs ...stubReply) *fakeLLM {
	return &fakeLLM{stubs: stubs, fallback: "{}"}
}

func (f *fakeLLM) Query(ctx context.Context, prompt string) (string, error) {
	return f.QueryJSON(ctx, prompt)
}

func (f *fakeLLM) QueryJSON(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, prompt)
	if f.err != nil {
		return "", f.err
	}
	for _, stub := range f.stubs {
		if stub.matches(prompt) {
			return stub.reply, nil
		}
	}
	return f.fallback, nil
}

// fakeEmbedder returns fixed vectors for known texts and a default for the
// rest. Vectors are tiny so similarity is easy to reason about.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
	base    []float64
	err     error
	calls   int
	failFor int // fail the first N calls, then succeed
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: make(map[string][]float64),
		base:    []float64{1, 0, 0, 0},
	}
}

func (f *fakeEmbedder) set(text string, vector []float64) {
	f.vectors[text] = vector
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFor > 0 && f.calls <= f.failFor {
		return nil, fmt.Errorf("embedding unavailable")
	}
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.base, nil
}

// fakeGenerator echoes a fixed reply and records the prompt it saw.
type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.reply == "" {
		return "ok", nil
	}
	return f.reply, nil
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}
