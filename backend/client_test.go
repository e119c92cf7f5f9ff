package backend

import (
	"chat-bridge/contract"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(slog.Default(), srv.URL+"/", "flow-1", "Alice",
		map[string]string{"channel": "web"}, 5*time.Second)
}

func TestClient_StartChat(t *testing.T) {
	req := require.New(t)

	var captured map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/api/chat/start", r.URL.Path)
		req.NoError(json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ConnectionToken":  "conn-token",
			"WebsocketUrl":     "wss://stream.example/chat",
			"ChatId":           "chat-1",
			"ParticipantToken": "part-token",
			"ParticipantId":    "part-1",
		})
	}))

	started, err := client.StartChat(context.Background(), map[string]string{"topic": "billing"})
	req.NoError(err)
	req.Equal(contract.StartedChat{
		ConnectionToken:   "conn-token",
		TransportEndpoint: "wss://stream.example/chat",
		ChatID:            "chat-1",
		ParticipantToken:  "part-token",
		ParticipantID:     "part-1",
	}, started)

	req.Equal("flow-1", captured["contactFlowId"])
	details, ok := captured["participantDetails"].(map[string]any)
	req.True(ok)
	req.Equal("Alice", details["displayName"])

	// Caller attributes are merged over the configured defaults
	attrs, ok := captured["attributes"].(map[string]any)
	req.True(ok)
	req.Equal("web", attrs["channel"])
	req.Equal("billing", attrs["topic"])
}

func TestClient_StartChat_BackendFailure(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance unavailable", http.StatusServiceUnavailable)
	}))

	_, err := client.StartChat(context.Background(), nil)
	req.ErrorContains(err, "503")
	req.ErrorContains(err, "instance unavailable")
}

func TestClient_PostMessage_CarriesBearerToken(t *testing.T) {
	req := require.New(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/chat/message", r.URL.Path)
		req.Equal("Bearer part-token", r.Header.Get("Authorization"))

		var body map[string]string
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("conn-token", body["connectionToken"])
		req.Equal("hello", body["content"])
		req.Equal("text/plain", body["contentType"])
		w.WriteHeader(http.StatusOK)
	}))

	creds := contract.Credentials{ConnectionToken: "conn-token", ParticipantToken: "part-token"}
	req.NoError(client.PostMessage(context.Background(), creds, "hello", "text/plain"))
}

func TestClient_AttachmentFlow(t *testing.T) {
	req := require.New(t)

	var uploadedName string
	var uploadedBytes []byte
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/api/chat/attachment/upload", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("report.pdf", body["fileName"])
		req.Equal(float64(4), body["fileSize"])
		_ = json.NewEncoder(w).Encode(map[string]string{
			"uploadUrl":    srv.URL + "/upload-slot",
			"attachmentId": "att-42",
		})
	})
	mux.HandleFunc("/upload-slot", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		req.NoError(err)
		defer file.Close()
		uploadedName = header.Filename
		buf := make([]byte, header.Size)
		_, _ = file.Read(buf)
		uploadedBytes = buf
		w.WriteHeader(http.StatusOK)
	})

	client := NewClient(slog.Default(), srv.URL+"/", "flow-1", "Alice", nil, 5*time.Second)
	creds := contract.Credentials{ConnectionToken: "conn-token", ParticipantToken: "part-token"}

	slot, err := client.RequestUpload(context.Background(), creds, "report.pdf", 4, "application/pdf")
	req.NoError(err)
	req.Equal("att-42", slot.AttachmentID)

	req.NoError(client.Upload(context.Background(), slot, "report.pdf", []byte("data")))
	req.Equal("report.pdf", uploadedName)
	req.Equal([]byte("data"), uploadedBytes)
}

func TestClient_Upload_RejectedStatus(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(slog.Default(), srv.URL+"/", "flow-1", "Alice", nil, 5*time.Second)
	err := client.Upload(context.Background(), contract.UploadSlot{UploadURL: srv.URL + "/slot"}, "f", []byte("x"))
	req.ErrorContains(err, "403")
}

func TestClient_Transcript(t *testing.T) {
	req := require.New(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodGet, r.Method)
		req.Equal("/api/chat/transcript", r.URL.Path)
		req.Equal("25", r.URL.Query().Get("maxResults"))
		req.Equal("Bearer part-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Transcript": []map[string]string{
				{"Id": "m1", "Type": "MESSAGE", "Content": "hello", "AbsoluteTime": "2026-08-28T10:00:00Z"},
			},
		})
	}))

	creds := contract.Credentials{ParticipantToken: "part-token"}
	items, err := client.Transcript(context.Background(), creds, 25)
	req.NoError(err)
	req.Len(items, 1)
	req.Equal("m1", items[0].ID)
	req.Equal("MESSAGE", items[0].Type)
}

func TestClient_Disconnect(t *testing.T) {
	req := require.New(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/chat/disconnect", r.URL.Path)
		var body map[string]string
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("conn-token", body["connectionToken"])
		w.WriteHeader(http.StatusOK)
	}))

	creds := contract.Credentials{ConnectionToken: "conn-token", ParticipantToken: "part-token"}
	req.NoError(client.Disconnect(context.Background(), creds))
}

func TestExtractInstanceID(t *testing.T) {
	req := require.New(t)
	req.Equal("acme", extractInstanceID("https://acme.my.connect.aws/"))
	req.Equal("", extractInstanceID("https://example.com/"))
}
