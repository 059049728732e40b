package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"reel-recipe-go/internal/logger"
)

var (
	ErrServiceNotConfigured = errors.New("transcription service url not set")
	ErrTranscriptionFailed  = errors.New("transcription failed")
	ErrTranscriptionTimeout = errors.New("transcription did not complete")
)

// Job statuses reported by the service.
const (
	StatusSuccess    = "Success"
	StatusQueued     = "Queued"
	StatusProcessing = "Processing"
	StatusFailed     = "Failed"
)

type publishResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		MediaID          string `json:"MediaId"`
		Status           string `json:"Status"`
		TranscriptionURL string `json:"TranscriptionURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

type statusResponse struct {
	Code int `json:"Code"`
	Data struct {
		Status               string `json:"Status"`
		TranscriptionTextURL string `json:"TranscriptionTextURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

type ServiceConfig struct {
	// URL is the service root; /transcribe and /getstatus hang off it.
	URL          string
	Language     string
	PollInterval time.Duration
	MaxPolls     int
	MaxRetryTime time.Duration
}

// Service uploads audio to a remote transcription service and polls until
// the transcript is ready.
type Service struct {
	cfg        ServiceConfig
	httpClient *http.Client
	log        *logrus.Entry
}

type ServiceOption func(*Service)

func WithServiceHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.httpClient = c
		}
	}
}

func WithServiceLogger(log *logrus.Entry) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1500 * time.Millisecond
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 40
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 12 * time.Second
	}
	s := &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		log:        logger.New().WithField("module", "transcription"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(s.cfg.URL) == "" {
		return "", ErrServiceNotConfigured
	}
	log := s.log.WithField("audio", audioPath)

	mediaID, readyURL, err := s.publish(ctx, audioPath)
	if err != nil {
		return "", err
	}
	if readyURL != "" {
		log.WithField("url", readyURL).Info("transcription already exists, downloading text")
		return s.download(ctx, readyURL)
	}

	finalURL, err := s.poll(ctx, mediaID, log)
	if err != nil {
		return "", err
	}
	log.WithField("url", finalURL).Info("transcription completed, downloading text")
	return s.download(ctx, finalURL)
}

func (s *Service) endpoint(path string) string {
	return strings.TrimRight(s.cfg.URL, "/") + path
}

func (s *Service) publish(ctx context.Context, audioPath string) (string, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", "", fmt.Errorf("read audio: %w", err)
	}
	if s.cfg.Language != "" {
		_ = w.WriteField("language", s.cfg.Language)
	}
	_ = w.Close()
	body := b.Bytes()
	contentType := w.FormDataContentType()

	var resp publishResponse
	err = s.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("/transcribe"), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, &resp)
	if err != nil {
		return "", "", fmt.Errorf("transcribe publish: %w", err)
	}
	if resp.Code != http.StatusOK {
		return "", "", fmt.Errorf("transcribe publish error: code=%d reason=%s", resp.Code, resp.Reason)
	}
	if resp.Data.TranscriptionURL != "" && strings.EqualFold(resp.Data.Status, StatusSuccess) {
		return "", resp.Data.TranscriptionURL, nil
	}
	if resp.Data.MediaID == "" {
		return "", "", fmt.Errorf("transcribe publish: response has no media id")
	}
	return resp.Data.MediaID, "", nil
}

func (s *Service) poll(ctx context.Context, mediaID string, log *logrus.Entry) (string, error) {
	u, err := url.Parse(s.endpoint("/getstatus"))
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("mediaId", mediaID)
	u.RawQuery = q.Encode()
	statusURL := u.String()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for i := 0; i < s.cfg.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		var st statusResponse
		err := s.doJSON(ctx, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		}, &st)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.WithError(err).Warn("polling failed")
			continue
		}

		log.WithFields(logrus.Fields{"media_id": mediaID, "status": st.Data.Status}).Debug("polling transcription")
		switch st.Data.Status {
		case StatusSuccess:
			return st.Data.TranscriptionTextURL, nil
		case StatusQueued, StatusProcessing:
			continue
		case StatusFailed:
			return "", fmt.Errorf("%w: %s", ErrTranscriptionFailed, st.Reason)
		}
	}
	return "", fmt.Errorf("%w after %d polls", ErrTranscriptionTimeout, s.cfg.MaxPolls)
}

func (s *Service) download(ctx context.Context, textURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, textURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download transcript: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("download transcript: read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download transcript: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return strings.TrimSpace(string(b)), nil
}

// doJSON retries transport errors and 5xx responses; 4xx is permanent.
func (s *Service) doJSON(ctx context.Context, newReq func() (*http.Request, error), target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.cfg.MaxRetryTime

	var lastErr error
	op := func() error {
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			return lastErr
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("client error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
			return backoff.Permanent(lastErr)
		}
		if len(body) == 0 {
			lastErr = errors.New("empty body")
			return lastErr
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(body))
			return backoff.Permanent(lastErr)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
