// Package backend is the REST surface of the remote contact-center chat
// service: session creation, message submission, attachment upload slots,
// transcript fetch and disconnect.
package backend

import (
	"bytes"
	"chat-bridge/contract"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AttachmentContentType marks the reference message that carries an
// attachment ID instead of text.
const AttachmentContentType = "application/vnd.amazonaws.connect.message.interactive"

var instanceIDPattern = regexp.MustCompile(`https://([^.]+)\.my\.connect\.aws/`)

// Client talks to one contact-center instance.
type Client struct {
	log           *slog.Logger
	httpClient    *http.Client
	instanceURL   string
	contactFlowID string
	displayName   string
	defaultAttrs  map[string]string
}

func NewClient(log *slog.Logger, instanceURL, contactFlowID, displayName string,
	defaultAttrs map[string]string, timeout time.Duration) *Client {
	return &Client{
		log:           log,
		httpClient:    &http.Client{Timeout: timeout},
		instanceURL:   instanceURL,
		contactFlowID: contactFlowID,
		displayName:   displayName,
		defaultAttrs:  defaultAttrs,
	}
}

type startChatRequest struct {
	InstanceID         string             `json:"instanceId"`
	ContactFlowID      string             `json:"contactFlowId"`
	Attributes         map[string]string  `json:"attributes"`
	ParticipantDetails participantDetails `json:"participantDetails"`
}

type participantDetails struct {
	DisplayName string `json:"displayName"`
}

type startChatResponse struct {
	ConnectionToken  string `json:"ConnectionToken"`
	WebsocketURL     string `json:"WebsocketUrl"`
	ChatID           string `json:"ChatId"`
	ParticipantToken string `json:"ParticipantToken"`
	ParticipantID    string `json:"ParticipantId"`
}

// StartChat requests a new conversation. Caller attributes override the
// configured defaults key by key.
func (c *Client) StartChat(ctx context.Context, attributes map[string]string) (contract.StartedChat, error) {
	merged := make(map[string]string, len(c.defaultAttrs)+len(attributes))
	for k, v := range c.defaultAttrs {
		merged[k] = v
	}
	for k, v := range attributes {
		merged[k] = v
	}

	body := startChatRequest{
		InstanceID:         extractInstanceID(c.instanceURL),
		ContactFlowID:      c.contactFlowID,
		Attributes:         merged,
		ParticipantDetails: participantDetails{DisplayName: c.displayName},
	}

	var resp startChatResponse
	if err := c.postJSON(ctx, "api/chat/start", "", body, &resp); err != nil {
		return contract.StartedChat{}, err
	}
	return contract.StartedChat{
		ConnectionToken:   resp.ConnectionToken,
		TransportEndpoint: resp.WebsocketURL,
		ChatID:            resp.ChatID,
		ParticipantToken:  resp.ParticipantToken,
		ParticipantID:     resp.ParticipantID,
	}, nil
}

type postMessageRequest struct {
	ConnectionToken string `json:"connectionToken"`
	Content         string `json:"content"`
	ContentType     string `json:"contentType"`
}

// PostMessage submits one message. Delivery confirmation, if any, arrives
// asynchronously on the streaming channel.
func (c *Client) PostMessage(ctx context.Context, creds contract.Credentials, content, contentType string) error {
	body := postMessageRequest{
		ConnectionToken: creds.ConnectionToken,
		Content:         content,
		ContentType:     contentType,
	}
	return c.postJSON(ctx, "api/chat/message", creds.ParticipantToken, body, nil)
}

type uploadRequest struct {
	ConnectionToken string `json:"connectionToken"`
	FileName        string `json:"fileName"`
	FileSize        int64  `json:"fileSize"`
	ContentType     string `json:"contentType"`
}

type uploadResponse struct {
	UploadURL    string `json:"uploadUrl"`
	AttachmentID string `json:"attachmentId"`
}

// RequestUpload asks for an upload slot before the direct byte upload.
func (c *Client) RequestUpload(ctx context.Context, creds contract.Credentials,
	fileName string, fileSize int64, contentType string) (contract.UploadSlot, error) {
	body := uploadRequest{
		ConnectionToken: creds.ConnectionToken,
		FileName:        fileName,
		FileSize:        fileSize,
		ContentType:     contentType,
	}
	var resp uploadResponse
	if err := c.postJSON(ctx, "api/chat/attachment/upload", creds.ParticipantToken, body, &resp); err != nil {
		return contract.UploadSlot{}, err
	}
	return contract.UploadSlot{UploadURL: resp.UploadURL, AttachmentID: resp.AttachmentID}, nil
}

// Upload pushes the attachment bytes to the granted slot as a multipart
// form, field name "file".
func (c *Client) Upload(ctx context.Context, slot contract.UploadSlot, fileName string, data []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slot.UploadURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload returned %s", resp.Status)
	}
	return nil
}

type transcriptResponse struct {
	Transcript []contract.TranscriptItem `json:"Transcript"`
}

// Transcript fetches the durable backend record of the conversation.
func (c *Client) Transcript(ctx context.Context, creds contract.Credentials, maxResults int) ([]contract.TranscriptItem, error) {
	endpoint := c.instanceURL + "api/chat/transcript?maxResults=" + strconv.Itoa(maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.ParticipantToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript returned %s", resp.Status)
	}

	var payload transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	return payload.Transcript, nil
}

type disconnectRequest struct {
	ConnectionToken string `json:"connectionToken"`
}

// Disconnect notifies the backend the conversation is over.
func (c *Client) Disconnect(ctx context.Context, creds contract.Credentials) error {
	body := disconnectRequest{ConnectionToken: creds.ConnectionToken}
	return c.postJSON(ctx, "api/chat/disconnect", creds.ParticipantToken, body, nil)
}

func (c *Client) postJSON(ctx context.Context, path, bearer string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.instanceURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("Backend call failed", "path", path, "status", resp.Status, "request_id", requestID)
		return fmt.Errorf("%s returned %s: %s", path, resp.Status, bytes.TrimSpace(detail))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// extractInstanceID pulls the instance identifier out of the configured
// instance URL.
func extractInstanceID(instanceURL string) string {
	match := instanceIDPattern.FindStringSubmatch(instanceURL)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}
