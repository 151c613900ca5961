package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	// Per-attempt timeout. Documents are small; source audio can be tens of MB.
	requestTimeout = 120 * time.Second

	maxRetries     = 4
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second

	DocumentContentType = "text/x-ssa; charset=utf-8"
)

// Storage is a Supabase Storage client for one bucket.
type Storage struct {
	url        string
	serviceKey string
	Bucket     string
	client     *http.Client

	retries   int
	baseDelay time.Duration
}

func New(url, serviceKey, bucket string) *Storage {
	return &Storage{
		url:        strings.TrimRight(url, "/"),
		serviceKey: serviceKey,
		Bucket:     bucket,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retries:   maxRetries,
		baseDelay: baseRetryDelay,
	}
}

// DocumentPath is where the rendered document of a caption job is stored.
func DocumentPath(jobID uuid.UUID) string {
	return path.Join("captions", jobID.String(), "captions.ass")
}

// UploadDocument stores a rendered document for a job and returns its path.
func (s *Storage) UploadDocument(ctx context.Context, jobID uuid.UUID, document string) (string, error) {
	p := DocumentPath(jobID)
	if err := s.Upload(ctx, p, []byte(document), DocumentContentType); err != nil {
		return "", err
	}
	return p, nil
}

// Upload stores data at objectPath, overwriting any existing object.
func (s *Storage) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	_, err := s.do(ctx, "Upload", objectPath, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(objectPath), bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-upsert", "true")
		return req, nil
	})
	return err
}

// Download fetches the object at objectPath.
func (s *Storage) Download(ctx context.Context, objectPath string) ([]byte, error) {
	return s.do(ctx, "Download", objectPath, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(objectPath), nil)
	})
}

// GetPublicURL returns the public URL for a file
func (s *Storage) GetPublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.Bucket, objectPath)
}

func (s *Storage) objectURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, strings.TrimLeft(objectPath, "/"))
}

// do runs one storage request with retries and exponential backoff. Network
// failures and 408/429/5xx gateway statuses are retried; anything else fails at once.
func (s *Storage) do(ctx context.Context, op, objectPath string, newRequest func(context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay(attempt)
			log.Printf("[Storage] %s retry %d/%d for %s (waiting %v)...", op, attempt, s.retries, objectPath, delay)

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%s cancelled: %w", strings.ToLower(op), ctx.Err())
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		req, err := newRequest(attemptCtx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)

		resp, err := s.client.Do(req)
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("%s request failed: %w", strings.ToLower(op), err)
			if ctx.Err() == nil && isRetryableError(err) {
				log.Printf("[Storage] %s attempt %d failed (retryable): %v", op, attempt+1, err)
				continue
			}
			return nil, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read %s body: %w", strings.ToLower(op), readErr)
				continue
			}
			if attempt > 0 {
				log.Printf("[Storage] %s succeeded on attempt %d for %s", op, attempt+1, objectPath)
			}
			return body, nil
		}

		lastErr = fmt.Errorf("%s failed with status %d: %s", strings.ToLower(op), resp.StatusCode, truncate(string(body), 200))
		if isRetryableStatus(resp.StatusCode) {
			log.Printf("[Storage] %s attempt %d returned status %d (retryable)", op, attempt+1, resp.StatusCode)
			continue
		}

		return nil, lastErr
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", strings.ToLower(op), s.retries+1, lastErr)
}

// retryDelay is base * 2^(attempt-1), capped, plus up to 25% jitter.
func (s *Storage) retryDelay(attempt int) time.Duration {
	delay := float64(s.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

func isRetryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || // 429
		status == http.StatusRequestTimeout || // 408
		status == http.StatusBadGateway || // 502
		status == http.StatusServiceUnavailable || // 503
		status == http.StatusGatewayTimeout // 504
}

// truncate limits a string to maxLen characters for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
