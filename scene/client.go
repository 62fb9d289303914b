package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient talks to the share server.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type saveResponse struct {
	ID string `json:"id"`
}

func (c *HTTPClient) SaveScene(ctx context.Context, doc Document) (string, error) {
	var body bytes.Buffer
	if err := Encode(&body, doc); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/scenes", &body)
	if err != nil {
		return "", fmt.Errorf("scene: save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("scene: save: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scene: save: %s: %s", resp.Status, readSnippet(resp.Body))
	}
	var out saveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("scene: save response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("scene: save response without id")
	}
	return out.ID, nil
}

func (c *HTTPClient) GetScene(ctx context.Context, id string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/scenes/"+url.PathEscape(id), nil)
	if err != nil {
		return Document{}, fmt.Errorf("scene: get request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("scene: get %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Document{}, fmt.Errorf("scene: get %s: %w", id, ErrNotFound)
	default:
		return Document{}, fmt.Errorf("scene: get %s: %s: %s", id, resp.Status, readSnippet(resp.Body))
	}
	return Decode(resp.Body)
}

// ShareURL is the link a user can hand out for a saved scene id.
func ShareURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/?scene=" + url.QueryEscape(id)
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
