package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"companion/internal/chat"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

const okCompletion = `{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Hi there!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*OpenAIGateway, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	g := NewOpenAIGateway(OpenAIConfig{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		Model:         "default-model",
		TimeoutMS:     2000,
		MaxRetries:    2,
		VisionModel:   "vision-model",
		SpeechBaseURL: srv.URL,
		SpeechAPIKey:  "speech-key",
		SpeechModel:   "tts-1",
		SpeechVoice:   "alloy",
	})
	return g, &calls
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `{"error":{"message":"`+msg+`","type":"error"}}`)
}

func TestSend_Success(t *testing.T) {
	var got capturedRequest
	g, calls := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path=%s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization=%q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, okCompletion)
	})

	turns := []chat.Turn{chat.AssistantTurn("greeting"), chat.UserTurn("Hello")}
	reply, err := g.Send(context.Background(), "You are Rafiq.", turns, "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "Hi there!" {
		t.Fatalf("reply=%q", reply)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d", calls.Load())
	}
	if got.Model != "default-model" {
		t.Fatalf("model=%q", got.Model)
	}
	if got.Temperature < 0.69 || got.Temperature > 0.71 {
		t.Fatalf("temperature=%v", got.Temperature)
	}
	if len(got.Messages) != 3 || got.Messages[0].Role != "system" || got.Messages[2].Role != "user" {
		t.Fatalf("messages=%+v", got.Messages)
	}
}

func TestSend_ExplicitModel(t *testing.T) {
	var got capturedRequest
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, okCompletion)
	})
	if _, err := g.Send(context.Background(), "", []chat.Turn{chat.UserTurn("x")}, "other/model"); err != nil {
		t.Fatal(err)
	}
	if got.Model != "other/model" {
		t.Fatalf("model=%q", got.Model)
	}
}

func TestSend_AuthNotRetried(t *testing.T) {
	g, calls := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "invalid key")
	})
	_, err := g.Send(context.Background(), "d", []chat.Turn{chat.UserTurn("x")}, "")
	var f *Failure
	if !errors.As(err, &f) || f.Kind != FailureAuth {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("auth failure retried: calls=%d", calls.Load())
	}
}

func TestSend_ServerErrorRetried(t *testing.T) {
	g, calls := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadGateway, "upstream")
	})
	_, err := g.Send(context.Background(), "d", []chat.Turn{chat.UserTurn("x")}, "")
	if KindOf(err) != FailureProvider {
		t.Fatalf("expected provider failure, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls=%d, want 3", calls.Load())
	}
}

func TestSend_RateLimitThenSuccess(t *testing.T) {
	var n atomic.Int32
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			writeError(w, http.StatusTooManyRequests, "slow down")
			return
		}
		_, _ = io.WriteString(w, okCompletion)
	})
	reply, err := g.Send(context.Background(), "d", []chat.Turn{chat.UserTurn("x")}, "")
	if err != nil || reply != "Hi there!" {
		t.Fatalf("reply=%q err=%v", reply, err)
	}
}

func TestSend_BadRequestNotRetried(t *testing.T) {
	g, calls := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "unknown model")
	})
	_, err := g.Send(context.Background(), "d", []chat.Turn{chat.UserTurn("x")}, "")
	var f *Failure
	if !errors.As(err, &f) || f.Kind != FailureProvider {
		t.Fatalf("expected provider failure, got %v", err)
	}
	if !strings.Contains(f.Detail, "unknown model") {
		t.Fatalf("detail=%q", f.Detail)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d", calls.Load())
	}
}

func TestSend_EmptyChoices(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	})
	_, err := g.Send(context.Background(), "d", []chat.Turn{chat.UserTurn("x")}, "")
	if KindOf(err) != FailureProvider {
		t.Fatalf("expected provider failure, got %v", err)
	}
}

func TestSend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	g := NewOpenAIGateway(OpenAIConfig{BaseURL: url, APIKey: "k", Model: "m", TimeoutMS: 500})
	_, err := g.Send(context.Background(), "d", []chat.Turn{chat.UserTurn("x")}, "")
	if KindOf(err) != FailureNetwork {
		t.Fatalf("expected network failure, got %v", err)
	}
}

func TestMissingAPIKeyNeverCallsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()
	g := NewOpenAIGateway(OpenAIConfig{BaseURL: srv.URL, Model: "m", SpeechBaseURL: srv.URL})

	_, err := g.Send(context.Background(), "d", []chat.Turn{chat.UserTurn("x")}, "")
	if !errors.Is(err, ErrNoAPIKey) || KindOf(err) != FailureAuth {
		t.Fatalf("Send err=%v", err)
	}
	if _, err := g.Describe(context.Background(), "p", []byte{1}, "image/png"); KindOf(err) != FailureAuth {
		t.Fatalf("Describe err=%v", err)
	}
	if _, err := g.Speak(context.Background(), "hi"); KindOf(err) != FailureAuth {
		t.Fatalf("Speak err=%v", err)
	}
	if _, err := g.ListModels(context.Background()); KindOf(err) != FailureAuth {
		t.Fatalf("ListModels err=%v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("network reached %d times", calls.Load())
	}
}

func TestDescribe(t *testing.T) {
	var got capturedRequest
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, okCompletion)
	})
	reply, err := g.Describe(context.Background(), "What is this?", []byte("png-bytes"), "image/png")
	if err != nil || reply != "Hi there!" {
		t.Fatalf("reply=%q err=%v", reply, err)
	}
	if got.Model != "vision-model" || got.MaxTokens != 500 {
		t.Fatalf("model=%q max_tokens=%d", got.Model, got.MaxTokens)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("messages=%+v", got.Messages)
	}
	content := string(got.Messages[0].Content)
	if !strings.Contains(content, "What is this?") || !strings.Contains(content, "data:image/png;base64,") {
		t.Fatalf("content=%s", content)
	}
}

func TestSpeak(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			t.Errorf("path=%s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer speech-key" {
			t.Errorf("Authorization=%q", auth)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-mp3"))
	})
	rc, err := g.Speak(context.Background(), "مرحبا")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "ID3-mp3" {
		t.Fatalf("audio=%q", data)
	}
}

func TestListModels(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"a/b","object":"model","owned_by":"a"},{"id":"c/d","object":"model","owned_by":"c"}]}`)
	})
	models, err := g.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].ID != "a/b" {
		t.Fatalf("models=%+v", models)
	}
}

func TestSetModel(t *testing.T) {
	g := &OpenAIGateway{model: "m1"}
	if g.CurrentModel() != "m1" {
		t.Fatalf("CurrentModel()=%q", g.CurrentModel())
	}
	if err := g.SetModel(" m2 "); err != nil {
		t.Fatalf("SetModel: %v", err)
	}
	if g.CurrentModel() != "m2" {
		t.Fatalf("CurrentModel()=%q", g.CurrentModel())
	}
	if err := g.SetModel(""); err == nil {
		t.Fatal("SetModel empty should error")
	}
}

func TestFailureError(t *testing.T) {
	f := &Failure{Kind: FailureNetwork, Detail: "timeout"}
	if f.Error() != "network failure: timeout" {
		t.Fatalf("Error()=%q", f.Error())
	}
	if KindOf(errors.New("plain")) != FailureProvider {
		t.Fatal("plain errors classify as provider")
	}
}
