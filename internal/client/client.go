package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"podrepo-agent/internal/constants"
	"podrepo-agent/internal/version"
	"podrepo-agent/pkg/models"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Client talks to CDN-backed spec repositories
type Client struct {
	client *resty.Client
	logger *logrus.Logger
}

// cdnVersionFile mirrors CocoaPods-version.yml at the root of a CDN repo
type cdnVersionFile struct {
	Min  string `yaml:"min"`
	Last string `yaml:"last"`
}

// New creates a new HTTP client
func New(cfg *models.Config, logger *logrus.Logger) *Client {
	timeout := time.Duration(cfg.CDNTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("User-Agent", fmt.Sprintf("podrepo-agent/%s", version.Version))

	if cfg.SkipSSLVerify {
		logger.Warn("TLS verification disabled for CDN requests")
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{
		client: client,
		logger: logger,
	}
}

// VersionURL returns the URL of the CocoaPods-version.yml file of a CDN repo
func VersionURL(address string) string {
	return strings.TrimRight(address, "/") + "/" + constants.CDNVersionFile
}

// FetchVersion downloads and parses CocoaPods-version.yml from a CDN repo.
// The raw body is returned alongside the parsed status so callers can store it.
func (c *Client) FetchVersion(ctx context.Context, address string) (*models.CDNStatus, []byte, error) {
	url := VersionURL(address)
	c.logger.WithField("url", url).Debug("Fetching CDN version file")

	resp, err := c.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, nil, fmt.Errorf("request to %s failed: %w", url, err)
	}

	status := &models.CDNStatus{
		Address:    address,
		StatusCode: resp.StatusCode(),
	}
	if resp.StatusCode() != http.StatusOK {
		return status, nil, fmt.Errorf("CDN returned status %d for %s", resp.StatusCode(), url)
	}
	status.Reachable = true

	var versions cdnVersionFile
	if err := yaml.Unmarshal(resp.Body(), &versions); err != nil {
		return status, nil, fmt.Errorf("failed to parse %s: %w", constants.CDNVersionFile, err)
	}
	status.MinVersion = versions.Min
	status.LastVersion = versions.Last

	return status, resp.Body(), nil
}

// Ping checks that a CDN repo answers, without failing on a bad body
func (c *Client) Ping(ctx context.Context, address string) *models.CDNStatus {
	status, _, err := c.FetchVersion(ctx, address)
	if status == nil {
		status = &models.CDNStatus{Address: address}
	}
	if err != nil {
		c.logger.WithError(err).WithField("address", address).Debug("CDN ping failed")
	}
	return status
}
