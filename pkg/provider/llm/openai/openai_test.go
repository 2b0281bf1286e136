package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/parley/pkg/provider/llm"
)

// labelRequest is the request shape the dialogue-act classifier sends.
var labelRequest = llm.CompletionRequest{
	SystemPrompt: `Label the utterance. Respond with {"act": "<label>"}.`,
	Messages:     []llm.Message{{Role: llm.RoleUser, Content: "who is taking notes"}},
	Temperature:  0,
	MaxTokens:    32,
}

func TestParams_LabelRequest(t *testing.T) {
	t.Parallel()

	p, err := New("sk-test", "gpt-4o-mini", WithJSONReplies(true), WithSeed(7))
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	params, err := p.params(labelRequest)
	if err != nil {
		t.Fatalf("params: unexpected error: %v", err)
	}

	if len(params.Messages) != 2 || params.Messages[0].OfSystem == nil || params.Messages[1].OfUser == nil {
		t.Fatalf("messages = %+v, want system prompt then user utterance", params.Messages)
	}
	if string(params.Model) != "gpt-4o-mini" {
		t.Errorf("model = %q", params.Model)
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0 {
		t.Errorf("temperature = %+v, want an explicit 0", params.Temperature)
	}
	if params.MaxCompletionTokens.Value != 32 {
		t.Errorf("max tokens = %d, want 32", params.MaxCompletionTokens.Value)
	}
	if params.Seed.Value != 7 {
		t.Errorf("seed = %d, want 7", params.Seed.Value)
	}
	if params.ResponseFormat.OfJSONObject == nil {
		t.Error("JSON object reply format not requested")
	}
}

func TestParams_Roles(t *testing.T) {
	t.Parallel()

	p, _ := New("sk-test", "gpt-4o-mini")
	params, err := p.params(llm.CompletionRequest{Messages: []llm.Message{
		{Role: llm.RoleSystem, Content: "label utterances"},
		{Role: llm.RoleUser, Content: "are we live"},
		{Role: llm.RoleAssistant, Content: `{"act":"ynQuestion"}`},
	}})
	if err != nil {
		t.Fatalf("params: unexpected error: %v", err)
	}
	m := params.Messages
	if len(m) != 3 || m[0].OfSystem == nil || m[1].OfUser == nil || m[2].OfAssistant == nil {
		t.Errorf("messages = %+v, want system, user, assistant", m)
	}
	if params.ResponseFormat.OfJSONObject != nil {
		t.Error("JSON replies requested without WithJSONReplies")
	}

	_, err = p.params(llm.CompletionRequest{Messages: []llm.Message{
		{Role: llm.RoleUser, Content: "ok"},
		{Role: "tool", Content: "x"},
	}})
	if err == nil || !strings.Contains(err.Error(), "message 1") {
		t.Errorf("unknown role: err = %v, want it to name message 1", err)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ key, model string }{{"", "gpt-4o"}, {"sk-test", ""}} {
		if _, err := New(tc.key, tc.model); err == nil {
			t.Errorf("New(%q, %q): expected error", tc.key, tc.model)
		}
	}
}

// chatServer answers every chat completion with content and finishReason
// and stores the decoded request body in *body.
func chatServer(t *testing.T, content, finishReason string, body *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, body)
		reply, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": finishReason,
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_AgainstFakeServer(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := chatServer(t, `{"act":"whQuestion"}`, "stop", &body)

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"), WithMaxRetries(0), WithJSONReplies(true))
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	resp, err := p.Complete(context.Background(), labelRequest)
	if err != nil {
		t.Fatalf("Complete: unexpected error: %v", err)
	}
	if resp.Content != `{"act":"whQuestion"}` || resp.Usage.TotalTokens != 17 {
		t.Errorf("response = %+v", resp)
	}

	if body["model"] != "gpt-4o-mini" {
		t.Errorf("request model = %v", body["model"])
	}
	if temp, ok := body["temperature"]; !ok || temp != float64(0) {
		t.Errorf("request temperature = %v (sent %v), want an explicit 0", temp, ok)
	}
	if rf, _ := body["response_format"].(map[string]any); rf["type"] != "json_object" {
		t.Errorf("request response_format = %v, want json_object", body["response_format"])
	}
}

func TestComplete_Truncated(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := chatServer(t, `{"act": "whQu`, "length", &body)

	p, _ := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
	resp, err := p.Complete(context.Background(), labelRequest)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("Complete error = %v, want ErrTruncated", err)
	}
	if resp == nil || resp.Content != `{"act": "whQu` {
		t.Errorf("partial response = %+v, want the truncated content", resp)
	}
}
