// Package captcha solves gift code captchas through an OCR service and records every attempt.
package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"giftcode/internal/gameapi"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/segmentio/encoding/json"
)

var ErrNoSolution = errors.New("captcha solver returned no text")

// Recorder stores a solved captcha and returns the id used for feedback.
type Recorder interface {
	RecordCaptcha(ctx context.Context, name string, img []byte) (int64, error)
}

type Config struct {
	URL     string
	Timeout time.Duration
	Retries int
	Logger  *slog.Logger
}

type Solver struct {
	url      string
	http     *httpclient.Client
	recorder Recorder
	logger   *slog.Logger
}

func NewSolver(cfg Config, recorder Recorder) *Solver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := heimdall.NewConstantBackoff(500*time.Millisecond, 100*time.Millisecond)
	return &Solver{
		url: cfg.URL,
		http: httpclient.NewClient(
			httpclient.WithHTTPTimeout(cfg.Timeout),
			httpclient.WithRetryCount(cfg.Retries),
			httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
		),
		recorder: recorder,
		logger:   logger.With("component", "captcha"),
	}
}

type solveRequest struct {
	Image string `json:"image"`
}

type solveResponse struct {
	Result string `json:"result"`
}

// Solve sends the image to the OCR service. The returned id is 0 when the captcha could not be recorded.
func (s *Solver) Solve(ctx context.Context, image string) (string, int64, error) {
	img, err := (&gameapi.CaptchaChallenge{Image: image}).Bytes()
	if err != nil {
		return "", 0, fmt.Errorf("decode captcha: %w", err)
	}

	body, err := json.Marshal(solveRequest{Image: base64.StdEncoding.EncodeToString(img)})
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("call captcha solver: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("captcha solver status %d", resp.StatusCode)
	}

	var out solveResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return "", 0, fmt.Errorf("decode captcha solver response: %w", err)
	}
	text := strings.TrimSpace(out.Result)
	if text == "" {
		return "", 0, ErrNoSolution
	}

	var id int64
	if s.recorder != nil {
		id, err = s.recorder.RecordCaptcha(ctx, text, img)
		if err != nil {
			s.logger.Warn("record captcha", "err", err)
			id = 0
		}
	}
	return text, id, nil
}
