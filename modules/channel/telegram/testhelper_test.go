package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func writeAPIError(t *testing.T, w http.ResponseWriter, code int, desc string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(APIResponse[json.RawMessage]{ErrorCode: code, Description: desc}); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// fakeAPI is a minimal Bot API server. getUpdates serves the queued
// batches in order, then empty results.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	batches  [][]Update
	conflict bool
	members  map[string]string
	calls    map[string]int
	sent     []SendMessageRequest
	deleted  []int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, members: map[string]string{}, calls: map[string]int{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) URL() string { return f.srv.URL }

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeAPI) sentMessages() []SendMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SendMessageRequest(nil), f.sent...)
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()

	switch method {
	case "getMe":
		writeJSON(f.t, w, APIResponse[User]{OK: true, Result: User{ID: 1, IsBot: true, FirstName: "Lookup", Username: "lookup_bot"}})

	case "deleteWebhook", "answerCallbackQuery":
		writeJSON(f.t, w, APIResponse[bool]{OK: true, Result: true})

	case "getUpdates":
		f.mu.Lock()
		conflict := f.conflict
		var batch []Update
		if len(f.batches) > 0 {
			batch, f.batches = f.batches[0], f.batches[1:]
		}
		f.mu.Unlock()

		if conflict {
			writeAPIError(f.t, w, http.StatusConflict, "Conflict: terminated by other getUpdates request")
			return
		}
		if batch == nil {
			time.Sleep(10 * time.Millisecond)
			batch = []Update{}
		}
		writeJSON(f.t, w, APIResponse[[]Update]{OK: true, Result: batch})

	case "sendMessage":
		var req SendMessageRequest
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.sent = append(f.sent, req)
		id := len(f.sent)
		f.mu.Unlock()
		writeJSON(f.t, w, APIResponse[Message]{OK: true, Result: Message{MessageID: id, Chat: Chat{ID: req.ChatID}, Text: req.Text}})

	case "editMessageText":
		var req EditMessageTextRequest
		_ = json.Unmarshal(body, &req)
		writeJSON(f.t, w, APIResponse[Message]{OK: true, Result: Message{MessageID: req.MessageID, Text: req.Text}})

	case "deleteMessage":
		var req deleteMessageRequest
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.deleted = append(f.deleted, req.MessageID)
		f.mu.Unlock()
		writeJSON(f.t, w, APIResponse[bool]{OK: true, Result: true})

	case "getChatMember":
		var req getChatMemberRequest
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		status, ok := f.members[req.ChatID]
		f.mu.Unlock()
		if !ok {
			writeAPIError(f.t, w, http.StatusBadRequest, "Bad Request: chat not found")
			return
		}
		writeJSON(f.t, w, APIResponse[ChatMember]{OK: true, Result: ChatMember{Status: status, User: User{ID: req.UserID}}})

	default:
		writeAPIError(f.t, w, http.StatusNotFound, "Not Found: method "+method)
	}
}
