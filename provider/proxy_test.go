package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gridpilot/model"
)

func TestRelayCompleteFinalText(t *testing.T) {
	var received relayEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		json.NewEncoder(w).Encode(relayResponse{Text: "the total is 300", OutputTokens: 7})
	}))
	defer srv.Close()

	r := newRelay(srv.URL, ProviderTypeOpenAI)

	var streamed strings.Builder
	req := &model.CompletionRequest{
		Model:     "gpt-4o-mini",
		MaxTokens: 256,
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "sum B2:B4"},
			{Role: model.RoleTool, Content: "read ok"},
		},
		OnDelta: func(chunk string) { streamed.WriteString(chunk) },
	}
	resp, err := r.Complete(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if received.Backend != "openai" {
		t.Errorf("envelope backend = %q", received.Backend)
	}
	if received.Payload.Model != "gpt-4o-mini" {
		t.Errorf("envelope model = %q", received.Payload.Model)
	}
	if received.Payload.Messages[1].Role != model.RoleUser {
		t.Errorf("tool message not folded into user role: %q", received.Payload.Messages[1].Role)
	}

	if resp.Kind != model.CompletionFinal || resp.Text != "the total is 300" {
		t.Errorf("completion = %+v", resp)
	}
	if resp.EstimatedOutputTokens != 7 {
		t.Errorf("EstimatedOutputTokens = %d", resp.EstimatedOutputTokens)
	}
	// The streaming illusion must reproduce the final text exactly.
	if streamed.String() != "the total is 300" {
		t.Errorf("streamed %q", streamed.String())
	}
}

func TestRelayCompleteToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tool_call": {"name": "read_range", "arguments": {"address": "Sheet1!B2:B4"}, "reason": "inspect"}, "output_tokens": 12}`))
	}))
	defer srv.Close()

	r := newRelay(srv.URL, ProviderTypeAnthropic)
	resp, err := r.Complete(context.Background(), &model.CompletionRequest{Model: "claude-sonnet-4-5"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Kind != model.CompletionToolCall {
		t.Fatalf("Kind = %v", resp.Kind)
	}
	if resp.Call.Name != "read_range" || resp.Call.Arguments["address"] != "Sheet1!B2:B4" {
		t.Errorf("Call = %+v", resp.Call)
	}
}

func TestRelayCompleteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	r := newRelay(srv.URL, ProviderTypeOpenAI)
	_, err := r.Complete(context.Background(), &model.CompletionRequest{Model: "gpt-4o-mini"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "upstream unavailable") {
		t.Errorf("error should carry status and body: %v", err)
	}
}

func TestSynthesizeStreamReassembles(t *testing.T) {
	text := strings.Repeat("abcdefgh", 10)
	var got strings.Builder
	synthesizeStream(text, func(chunk string) {
		if len(chunk) > streamChunkSize {
			t.Errorf("chunk too large: %d", len(chunk))
		}
		got.WriteString(chunk)
	})
	if got.String() != text {
		t.Error("chunks do not reassemble to the original text")
	}
}
