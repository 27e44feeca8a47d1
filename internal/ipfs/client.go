// Package ipfs uploads content to IPFS through the NFT.Storage HTTP
// API, degrading deterministically to local pseudo-identifiers when no
// credential is configured.
package ipfs

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/vanta-studio/vanta/internal/log"
)

// DefaultEndpoint is the NFT.Storage upload API.
const DefaultEndpoint = "https://api.nft.storage/upload"

const uploadTimeout = 60 * time.Second

// Client uploads artifacts and metadata documents. Mock mode is a
// construction-time capability check: no API key means every upload
// resolves locally, without a network call and without error.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      zerolog.Logger
}

// New creates an uploader. An empty apiKey selects mock mode.
func New(endpoint, apiKey string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: uploadTimeout},
		log:      log.IPFS,
	}
}

// MockMode reports whether uploads resolve to local pseudo-CIDs.
func (c *Client) MockMode() bool {
	return c.apiKey == ""
}

// uploadResponse is the NFT.Storage API response envelope.
type uploadResponse struct {
	OK    bool `json:"ok"`
	Value struct {
		CID string `json:"cid"`
	} `json:"value"`
}

// Upload stores raw bytes and returns their ipfs:// URI.
func (c *Client) Upload(ctx context.Context, data []byte) (string, error) {
	if c.MockMode() {
		return c.mockURI(data), nil
	}
	return c.post(ctx, bytes.NewReader(data), "application/octet-stream")
}

// UploadFile stores a file's contents and returns their ipfs:// URI.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return c.Upload(ctx, data)
}

// UploadJSON stores a document as JSON and returns its ipfs:// URI.
func (c *Client) UploadJSON(ctx context.Context, doc any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	if c.MockMode() {
		return c.mockURI(data), nil
	}
	return c.post(ctx, bytes.NewReader(data), "application/json")
}

func (c *Client) post(ctx context.Context, body io.Reader, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload: status %d: %s", resp.StatusCode, raw)
	}

	var ur uploadResponse
	if err := json.Unmarshal(raw, &ur); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if ur.Value.CID == "" {
		return "", fmt.Errorf("upload: response has no cid")
	}

	c.log.Info().Str("cid", ur.Value.CID).Msg("uploaded")
	return "ipfs://" + ur.Value.CID, nil
}

// mockURI derives a content-addressed pseudo-CID so the rest of the
// pipeline can run without credentials.
func (c *Client) mockURI(data []byte) string {
	sum := blake3.Sum256(data)
	cid := hex.EncodeToString(sum[:8])
	c.log.Debug().Str("cid", cid).Msg("mock upload")
	return "ipfs://" + cid
}
