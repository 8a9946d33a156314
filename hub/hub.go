// Package hub implements the small slice of the Hugging Face Hub API
// this module needs: resolving files out of a model repository and
// committing an adapter artifact directory back to one.
//
// Downloads work anonymously for public repositories; publishing
// always requires an access token, read from the HF_TOKEN environment
// variable.
package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// TokenEnv is the environment variable holding the Hub access token.
const TokenEnv = "HF_TOKEN"

// DefaultEndpoint is the public Hugging Face Hub.
const DefaultEndpoint = "https://huggingface.co"

// ErrMissingToken is returned before any network activity when an
// authenticated operation is attempted without a token.
var ErrMissingToken = errors.New("hub: " + TokenEnv + " is not set; create an access token at https://huggingface.co/settings/tokens")

// Client talks to one Hub endpoint.
type Client struct {
	endpoint string
	token    string
	hc       *http.Client
}

// NewClient builds a client. An empty token is valid for anonymous
// downloads but rejects publishing operations.
func NewClient(token string) *Client {
	return &Client{
		endpoint: DefaultEndpoint,
		token:    token,
		hc:       &http.Client{Timeout: 10 * time.Minute},
	}
}

// NewFromEnv builds a client from the HF_TOKEN environment variable
// and fails when it is absent or empty.
func NewFromEnv() (*Client, error) {
	token := os.Getenv(TokenEnv)
	if token == "" {
		return nil, ErrMissingToken
	}
	return NewClient(token), nil
}

// WithEndpoint points the client at a different Hub endpoint. Used by
// tests and private mirrors.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = strings.TrimRight(endpoint, "/")
	return c
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.hc.Do(req)
}

// DownloadFile resolves one file from a model repository into destDir
// and returns its local path. Files already present are not fetched
// again.
func (c *Client) DownloadFile(ctx context.Context, repoID, revision, name, destDir string) (string, error) {
	if revision == "" {
		revision = "main"
	}
	dest := filepath.Join(destDir, name)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/%s/resolve/%s/%s", c.endpoint, repoID, revision, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("hub: downloading %s from %s: %w", name, repoID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hub: downloading %s from %s: %s", name, repoID, resp.Status)
	}
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return dest, os.Rename(tmp, dest)
}

// CreateRepo creates a model repository, treating an already-existing
// repository as success.
func (c *Client) CreateRepo(ctx context.Context, repoID string, private bool) error {
	if c.token == "" {
		return ErrMissingToken
	}
	body := map[string]any{"type": "model", "private": private}
	if org, name, ok := strings.Cut(repoID, "/"); ok {
		body["organization"] = org
		body["name"] = name
	} else {
		body["name"] = repoID
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/repos/create", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("hub: creating repo %s: %w", repoID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("hub: creating repo %s: %s", repoID, resp.Status)
	}
	return nil
}

type commitOp struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
}

type commitFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// UploadFolder commits every regular file in dir to the root of the
// model repository in a single commit on main. The token is checked
// before the payload is built or any request is made.
func (c *Client) UploadFolder(ctx context.Context, repoID, dir, message string) error {
	if c.token == "" {
		return ErrMissingToken
	}
	if message == "" {
		message = "Upload adapter"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("hub: reading artifact dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("hub: artifact dir %s has no files to upload", dir)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(commitOp{Key: "header", Value: commitHeader{Summary: message}}); err != nil {
		return err
	}
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		op := commitOp{Key: "file", Value: commitFile{
			Path:     name,
			Content:  base64.StdEncoding.EncodeToString(raw),
			Encoding: "base64",
		}}
		if err := enc.Encode(op); err != nil {
			return err
		}
	}

	url := fmt.Sprintf("%s/api/models/%s/commit/main", c.endpoint, repoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("hub: committing to %s: %w", repoID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("hub: committing to %s: %s", repoID, resp.Status)
	}
	return nil
}
