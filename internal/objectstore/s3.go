// Package objectstore provides the S3-compatible image bucket client.
//
// Keys are client-generated, flat, and never derived from content
// (images/<generated-key>.jpg). Images must exist remotely before any
// record referencing them is created, so Upload is always called first.
package objectstore

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/bookyo/client/internal/errors"
)

// Config holds bucket connection configuration.
type Config struct {
	Endpoint       string
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
	ForcePathStyle bool // Use path-style URLs (minio, localstack)
}

// Client uploads and downloads objects by key.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// New creates a bucket client.
func New(config *Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// Upload stores data under key.
func (c *Client) Upload(ctx context.Context, key string, data []byte) error {
	req, err := c.createRequest(ctx, http.MethodPut, key, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(errors.ErrUploadFailed, "upload request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.New(errors.ErrUploadFailed,
			fmt.Sprintf("upload failed with status %d: %s", resp.StatusCode, string(body)))
	}

	return nil
}

// UploadFile stores the file at path under key.
func (c *Client) UploadFile(ctx context.Context, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to read local file", err)
	}
	return c.Upload(ctx, key, data)
}

// Download retrieves the object stored under key.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	req, err := c.createRequest(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(errors.ErrDownloadFailed, "download request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.New(errors.ErrNotFound, "object not found: "+key)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.New(errors.ErrDownloadFailed,
			fmt.Sprintf("download failed with status %d: %s", resp.StatusCode, string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(errors.ErrDownloadFailed, "failed to read response body", err)
	}

	return data, nil
}

// Delete removes the object stored under key.
func (c *Client) Delete(ctx context.Context, key string) error {
	req, err := c.createRequest(ctx, http.MethodDelete, key, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(errors.ErrStorage, "delete request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.New(errors.ErrStorage,
			fmt.Sprintf("delete failed with status %d: %s", resp.StatusCode, string(body)))
	}

	return nil
}

// createRequest creates a signed request for the object at key.
func (c *Client) createRequest(ctx context.Context, method, key string, body io.Reader) (*http.Request, error) {
	var urlStr string
	if c.config.ForcePathStyle {
		// Path-style: http://endpoint/bucket/key
		urlStr = fmt.Sprintf("%s/%s/%s", c.config.Endpoint, c.config.Bucket, key)
	} else {
		// Virtual-host-style: http://bucket.endpoint/key
		urlStr = fmt.Sprintf("%s.%s/%s", c.config.Bucket, c.config.Endpoint, key)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to build storage request", err)
	}

	if !c.config.ForcePathStyle {
		req.Host = fmt.Sprintf("%s.%s", c.config.Bucket, c.config.Endpoint)
	}

	timestamp := time.Now().UTC()
	amzDate := timestamp.Format("20060102T150405Z")

	req.Header.Set("Host", req.Host)
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Content-Sha256", "UNSIGNED-PAYLOAD")

	authorization := c.calculateAuthorization(method, key, amzDate)
	req.Header.Set("Authorization", authorization)

	return req, nil
}

// calculateAuthorization calculates the AWS V4 signature authorization
// header. Simplified signing: host and date are the only signed headers.
func (c *Client) calculateAuthorization(method, key, amzDate string) string {
	dateStamp := amzDate[:8]
	scope := fmt.Sprintf("%s/%s/s3/aws4_request", dateStamp, c.config.Region)

	canonicalURI := "/" + c.config.Bucket + "/" + key
	canonicalQuery := ""
	canonicalHeaders := fmt.Sprintf("host:%s\nx-amz-date:%s\n",
		c.config.Bucket+"."+c.config.Endpoint, amzDate)
	signedHeaders := "host;x-amz-date"

	payloadHash := "UNSIGNED-PAYLOAD"

	canonicalRequest := fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		method, canonicalURI, canonicalQuery, canonicalHeaders, signedHeaders+" "+payloadHash)

	algorithm := "AWS4-HMAC-SHA256"
	stringToSign := fmt.Sprintf("%s\n%s\n%s\n%s",
		algorithm, amzDate, scope, hex.EncodeToString(hashSHA256([]byte(canonicalRequest))))

	kSecret := []byte("AWS4" + c.config.SecretKey)
	kDate := hmacSHA256(kSecret, dateStamp)
	kRegion := hmacSHA256(kDate, c.config.Region)
	kService := hmacSHA256(kRegion, "s3")
	kSigning := hmacSHA256(kService, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(kSigning, stringToSign))

	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, c.config.AccessKey, scope, signedHeaders, signature)
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func hashSHA256(data []byte) []byte {
	h := sha256.New()
	h.Write(data)
	return h.Sum(nil)
}

// classify tags transport failures so that submit paths can route
// network-class upload errors to the offline queue.
func classify(code errors.ErrorCode, message string, err error) *errors.AppError {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		var opErr *net.OpError
		var dnsErr *net.DNSError
		if urlErr.Timeout() || stderrors.As(urlErr.Err, &opErr) || stderrors.As(urlErr.Err, &dnsErr) {
			return errors.Wrap(errors.ErrNetwork, message, err)
		}
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrNetwork, message, err)
	}
	return errors.Wrap(code, message, err)
}
