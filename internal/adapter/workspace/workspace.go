// Package workspace talks to the collaboration platform's HTTP API. One
// client per tenant workspace; the factory binds clients to workspaces as the
// registry builds tenant runtimes.
package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"relaydesk/internal/sentinel"
	"relaydesk/internal/tenant"
	"relaydesk/internal/ticket"
	"relaydesk/pkg/domain"
)

// Factory builds per-workspace clients.
type Factory struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

func NewFactory(baseURL, token string, logger *slog.Logger) *Factory {
	return &Factory{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// NewChannelClient implements tenant.ChannelClientFactory.
func (f *Factory) NewChannelClient(t tenant.Tenant) ticket.ChannelClient {
	return &Client{factory: f, workspaceID: t.WorkspaceID}
}

// Transcripts returns the transcript collaborator, which rides the same API.
func (f *Factory) Transcripts() ticket.TranscriptGenerator {
	return &Client{factory: f}
}

// Client is the channel surface of one workspace.
type Client struct {
	factory     *Factory
	workspaceID domain.WorkspaceID
}

type createChannelRequest struct {
	Name       string `json:"name"`
	CategoryID string `json:"categoryId,omitempty"`
}

type createChannelResponse struct {
	ID string `json:"id"`
}

func (c *Client) CreateChannel(ctx context.Context, name, categoryID string) (domain.ChannelID, error) {
	var out createChannelResponse
	path := fmt.Sprintf("/v1/workspaces/%s/channels", c.workspaceID.String())
	err := c.doJSON(ctx, http.MethodPost, path, createChannelRequest{Name: name, CategoryID: categoryID}, &out)
	if err != nil {
		return "", err
	}
	return domain.ParseChannelID(out.ID)
}

// DeleteChannel treats an already-missing channel as deleted.
func (c *Client) DeleteChannel(ctx context.Context, channelID domain.ChannelID) error {
	err := c.doJSON(ctx, http.MethodDelete, "/v1/channels/"+channelID.String(), nil, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (c *Client) SendMessage(ctx context.Context, channelID domain.ChannelID, text string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/channels/"+channelID.String()+"/messages", sendMessageRequest{Content: text}, nil)
}

func (c *Client) UploadFile(ctx context.Context, channelID domain.ChannelID, filename string, data []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("build upload body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("build upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build upload body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/channels/"+channelID.String()+"/files", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.execute(req, nil)
}

func (c *Client) ChannelExists(ctx context.Context, channelID domain.ChannelID) (bool, error) {
	err := c.doJSON(ctx, http.MethodGet, "/v1/channels/"+channelID.String(), nil, nil)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type transcriptRequest struct {
	RequestedBy string `json:"requestedBy,omitempty"`
}

// Generate implements ticket.TranscriptGenerator.
func (c *Client) Generate(ctx context.Context, channelID domain.ChannelID, closedBy string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/channels/"+channelID.String()+"/transcripts", transcriptRequest{RequestedBy: closedBy}, nil)
}

// apiError carries the platform's status code and unwraps to the matching
// sentinel so callers can branch with errors.Is.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("workspace API returned %d: %s", e.Status, e.Body)
}

func (e *apiError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return sentinel.ErrNotFound
	case e.Status == http.StatusConflict:
		return sentinel.ErrConflict
	case e.Status >= 500:
		return sentinel.ErrUnavailable
	default:
		return nil
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.execute(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.factory.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build workspace request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.factory.token)
	return req, nil
}

func (c *Client) execute(req *http.Request, out any) error {
	resp, err := c.factory.http.Do(req)
	if err != nil {
		return fmt.Errorf("workspace API call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode workspace response: %w", err)
	}
	return nil
}
