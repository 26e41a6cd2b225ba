// Package telegram is a narrow Bot API client covering exactly what the bot
// needs: long-poll updates, text replies, and document downloads.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// ErrConflict is returned when another instance of the bot is polling with
// the same token. The caller is expected to back off and retry, not abort.
var ErrConflict = errors.New("telegram: conflicting getUpdates request")

// Client talks to the Telegram Bot API over HTTP.
type Client struct {
	token   string
	baseURL string
	httpc   *http.Client
}

// NewClient creates a Bot API client. baseURL is optional and exists for
// tests; empty selects the public endpoint.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		// Long polls block server-side for up to the poll timeout, so the
		// client timeout must comfortably exceed it.
		httpc: &http.Client{Timeout: 90 * time.Second},
	}
}

// GetUpdates long-polls for updates with IDs >= offset, blocking server-side
// for up to timeoutSec. A 409 from the API maps to ErrConflict.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(timeoutSec))
	params.Set("allowed_updates", `["message"]`)

	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends a plain-text message to the chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	return c.call(ctx, "sendMessage", params, nil)
}

// DownloadFile fetches the document bytes behind fileID and writes them to
// destPath. On failure destPath may hold a partial write; removal is the
// caller's responsibility.
func (c *Client) DownloadFile(ctx context.Context, fileID, destPath string) error {
	params := url.Values{}
	params.Set("file_id", fileID)

	var f file
	if err := c.call(ctx, "getFile", params, &f); err != nil {
		return err
	}
	if f.FilePath == "" {
		return errors.New("telegram: getFile returned no file path")
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, f.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("telegram: building download request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: downloading file: unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("telegram: creating %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("telegram: writing %s: %w", destPath, err)
	}
	return out.Close()
}

// call invokes one Bot API method and decodes the enveloped result into out,
// when out is non-nil.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("telegram: building %s request: %w", method, err)
	}
	req.URL.RawQuery = params.Encode()

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return ErrConflict
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram: decoding %s response: %w", method, err)
	}
	if !envelope.OK {
		if envelope.ErrorCode == http.StatusConflict {
			return ErrConflict
		}
		return fmt.Errorf("telegram: %s failed: %d %s", method, envelope.ErrorCode, envelope.Description)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram: decoding %s result: %w", method, err)
		}
	}
	return nil
}
