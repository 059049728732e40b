package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"reel-recipe-go/internal/logger"
	"reel-recipe-go/internal/shortcode"
)

const (
	DefaultGraphQLURL = "https://www.instagram.com/graphql/query"
	DefaultDocID      = "8845758582119845"
	DefaultAppID      = "936619743392459"
	DefaultUserAgent  = "Mozilla/5.0"

	chunkSize = 1024 * 1024
)

var (
	ErrNoShortcode      = errors.New("shortcode is empty")
	ErrInvalidShortcode = errors.New("shortcode is not a valid file name")
	ErrNotFound         = errors.New("post not found or not public")
	ErrNotVideo         = errors.New("post is not a video")
	ErrNoVideoURL       = errors.New("post has no video url")
	ErrBadStatus        = errors.New("unexpected http status")
)

// Video is a downloaded reel and its caption. Caption is empty when the post has none.
type Video struct {
	Shortcode string
	Path      string
	Caption   string
	SourceURL string
}

type Config struct {
	GraphQLURL  string
	DocID       string
	AppID       string
	UserAgent   string
	DownloadDir string
	// MaxRetryTime bounds metadata lookup retries; zero disables retrying.
	MaxRetryTime time.Duration
}

// Client looks up a post by shortcode and downloads its video.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = DefaultGraphQLURL
	}
	if cfg.DocID == "" {
		cfg.DocID = DefaultDocID
	}
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		log:        logger.New().WithField("module", "fetcher"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type mediaResponse struct {
	Data struct {
		Media *struct {
			IsVideo  bool   `json:"is_video"`
			VideoURL string `json:"video_url"`
			Caption  struct {
				Edges []struct {
					Node struct {
						Text string `json:"text"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"edge_media_to_caption"`
		} `json:"xdt_shortcode_media"`
	} `json:"data"`
	Status string `json:"status"`
}

// Fetch downloads the reel to <DownloadDir>/<shortcode>.mp4.
func (c *Client) Fetch(ctx context.Context, code string) (Video, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Video{}, ErrNoShortcode
	}
	if !shortcode.IsFileSafe(code) {
		return Video{}, fmt.Errorf("%q: %w", code, ErrInvalidShortcode)
	}
	log := c.log.WithField("shortcode", code)

	media, err := c.lookup(ctx, code)
	if err != nil {
		return Video{}, err
	}
	if media.Data.Media == nil {
		return Video{}, fmt.Errorf("%s: %w", code, ErrNotFound)
	}
	m := media.Data.Media
	if !m.IsVideo {
		return Video{}, fmt.Errorf("%s: %w", code, ErrNotVideo)
	}
	if strings.TrimSpace(m.VideoURL) == "" {
		return Video{}, fmt.Errorf("%s: %w", code, ErrNoVideoURL)
	}

	caption := ""
	if len(m.Caption.Edges) > 0 {
		caption = m.Caption.Edges[0].Node.Text
	}

	path := filepath.Join(c.cfg.DownloadDir, code+".mp4")
	log.WithField("path", path).Info("downloading video")
	n, err := c.download(ctx, m.VideoURL, path)
	if err != nil {
		return Video{}, err
	}
	log.WithField("bytes", n).Info("video downloaded")

	return Video{Shortcode: code, Path: path, Caption: caption, SourceURL: m.VideoURL}, nil
}

func (c *Client) lookup(ctx context.Context, shortcode string) (mediaResponse, error) {
	vars, _ := json.Marshal(map[string]string{"shortcode": shortcode})
	form := url.Values{}
	form.Set("variables", string(vars))
	form.Set("doc_id", c.cfg.DocID)
	body := form.Encode()

	var out mediaResponse
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphQLURL, strings.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("X-IG-App-ID", c.cfg.AppID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("media lookup: read body: %w", err)
			if ctx.Err() != nil {
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("media lookup: %w: %d", ErrBadStatus, resp.StatusCode)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return lastErr
			}
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			lastErr = fmt.Errorf("media lookup: json decode error: %v body=%s", err, snippet(data))
			return backoff.Permanent(lastErr)
		}
		lastErr = nil
		return nil
	}

	var bo backoff.BackOff = &backoff.StopBackOff{}
	if c.cfg.MaxRetryTime > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = c.cfg.MaxRetryTime
		bo = eb
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr != nil {
			return mediaResponse{}, lastErr
		}
		return mediaResponse{}, err
	}
	return out, nil
}

func (c *Client) download(ctx context.Context, videoURL, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download video: %w: %d", ErrBadStatus, resp.StatusCode)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create download dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create video file: %w", err)
	}
	n, err := io.CopyBuffer(f, resp.Body, make([]byte, chunkSize))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("write video file: %w", err)
	}
	return n, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
