package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deadlinemaster/internal/domain"
)

// Fetcher loads the assignments to display.
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.Assignment, error)
}

// Client reads assignments from a running server.
type Client struct {
	Base string
	HTTP *http.Client
}

func NewClient(base string) *Client {
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: &http.Client{Timeout: 5 * time.Second}}
}

func (c *Client) Fetch(ctx context.Context) ([]domain.Assignment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/api/assignments?sort=dueDate", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch assignments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch assignments: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var list []domain.Assignment
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode assignments: %w", err)
	}
	return list, nil
}
