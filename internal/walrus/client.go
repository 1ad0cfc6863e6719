package walrus

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lgulliver/git-lfs-walrus/pkg/config"
	"github.com/lgulliver/git-lfs-walrus/pkg/types"
)

// MinCLIVersion is the oldest walrus CLI whose json protocol this client
// understands
const MinCLIVersion = ">= 1.0.0"

// Client drives the walrus CLI in json mode. Each operation spawns one
// subprocess, writes a single command document on stdin and parses the
// typed response from stdout.
type Client struct {
	binaryPath    string
	configPath    string
	defaultEpochs uint64
	timeout       time.Duration
}

// NewClient creates a walrus client from configuration
func NewClient(cfg *config.WalrusConfig) *Client {
	return &Client{
		binaryPath:    cfg.BinaryPath,
		configPath:    cfg.ConfigPath,
		defaultEpochs: cfg.DefaultEpochs,
		timeout:       cfg.Timeout,
	}
}

// Store uploads the file at path and returns the Walrus blob ID
func (c *Client) Store(ctx context.Context, path string) (string, error) {
	startTime := time.Now()

	doc := commandDocument{
		Config: c.configPath,
		Command: commandBody{
			Store: &storeParams{Files: []string{path}, Epochs: c.defaultEpochs},
		},
	}

	out, err := c.run(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("walrus store failed: %w", err)
	}

	var responses []storeResponse
	if err := json.Unmarshal(out, &responses); err != nil {
		return "", fmt.Errorf("failed to parse walrus store response: %w", err)
	}
	if len(responses) == 0 {
		return "", fmt.Errorf("empty walrus store response")
	}

	blobID, err := responses[0].BlobStoreResult.resolveBlobID()
	if err != nil {
		return "", err
	}

	log.Info().
		Str("path", path).
		Str("blob_id", blobID).
		Uint64("end_epoch", responses[0].BlobStoreResult.endEpoch()).
		Dur("duration", time.Since(startTime)).
		Msg("blob stored")

	return blobID, nil
}

// StoreBytes uploads raw bytes by staging them through a temp file, since
// the walrus CLI only takes file paths
func (c *Client) StoreBytes(ctx context.Context, data []byte) (string, error) {
	stagingDir, err := os.MkdirTemp("", "lfs-walrus-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	stagingPath := filepath.Join(stagingDir, uuid.NewString())
	if err := os.WriteFile(stagingPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to stage blob: %w", err)
	}

	return c.Store(ctx, stagingPath)
}

// Fetch downloads a blob to destPath and returns the byte count
func (c *Client) Fetch(ctx context.Context, blobID, destPath string) (int64, error) {
	data, err := c.FetchBytes(ctx, blobID)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create download directory: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write blob to %s: %w", destPath, err)
	}
	return int64(len(data)), nil
}

// FetchBytes downloads a blob into memory
func (c *Client) FetchBytes(ctx context.Context, blobID string) ([]byte, error) {
	doc := commandDocument{
		Config:  c.configPath,
		Command: commandBody{Read: &readParams{BlobID: blobID}},
	}

	out, err := c.run(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("walrus read failed: %w", err)
	}

	var resp readResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse walrus read response: %w", err)
	}
	if resp.Blob == "" {
		return nil, fmt.Errorf("no blob data in walrus response for %s", blobID)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode blob payload: %w", err)
	}

	log.Debug().Str("blob_id", blobID).Int("size", len(data)).Msg("blob fetched")
	return data, nil
}

// Status reports the storage state of a blob
func (c *Client) Status(ctx context.Context, blobID string) (types.BlobStatus, error) {
	doc := commandDocument{
		Config:  c.configPath,
		Command: commandBody{BlobStatus: &statusParams{BlobID: blobID}},
	}

	out, err := c.run(ctx, doc)
	if err != nil {
		return types.BlobStatus{}, fmt.Errorf("walrus blob-status failed: %w", err)
	}

	var resp statusResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return types.BlobStatus{}, fmt.Errorf("failed to parse walrus status response: %w", err)
	}

	return types.BlobStatus{
		BlobID:   blobID,
		Valid:    resp.Status.Exists,
		EndEpoch: resp.Status.EndEpoch,
	}, nil
}

// CurrentEpoch reports the storage epoch Walrus is currently in
func (c *Client) CurrentEpoch(ctx context.Context) (uint64, error) {
	doc := commandDocument{
		Config:  c.configPath,
		Command: commandBody{Info: &infoParams{}},
	}

	out, err := c.run(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("walrus info failed: %w", err)
	}

	var resp infoResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse walrus info response: %w", err)
	}
	return resp.CurrentEpoch, nil
}

// VerifyVersion checks the installed walrus CLI against MinCLIVersion
func (c *Client) VerifyVersion(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.binaryPath, "--version")
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to run %s --version: %w", c.binaryPath, err)
	}

	version, err := parseVersionOutput(string(out))
	if err != nil {
		return err
	}

	constraint, err := semver.NewConstraint(MinCLIVersion)
	if err != nil {
		return fmt.Errorf("invalid version constraint: %w", err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("walrus CLI %s is older than required %s", version, MinCLIVersion)
	}

	log.Debug().Str("version", version.String()).Msg("walrus CLI version ok")
	return nil
}

// parseVersionOutput extracts a semver from output like "walrus 1.18.2"
func parseVersionOutput(out string) (*semver.Version, error) {
	for _, field := range strings.Fields(out) {
		if version, err := semver.NewVersion(field); err == nil {
			return version, nil
		}
	}
	return nil, fmt.Errorf("no version number in %q", strings.TrimSpace(out))
}

func (c *Client) run(ctx context.Context, doc commandDocument) ([]byte, error) {
	input, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal walrus command: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.binaryPath, "json")
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
