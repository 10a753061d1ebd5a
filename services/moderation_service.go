package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ModerationFinding is one category flagged by the classifier.
type ModerationFinding struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ModerationError rejects an image. It matches ErrValidation.
type ModerationError struct {
	Findings []ModerationFinding
}

func (e *ModerationError) Error() string {
	messages := make([]string, 0, len(e.Findings))
	for _, f := range e.Findings {
		messages = append(messages, f.Message)
	}
	return "image rejected: " + strings.Join(messages, "; ")
}

func (e *ModerationError) Unwrap() error {
	return ErrValidation
}

type classifyResponse struct {
	Error          string `json:"error"`
	PornModeration *struct {
		PornContent bool `json:"porn_content"`
	} `json:"porn_moderation"`
	DrugModeration *struct {
		DrugContent bool `json:"drug_content"`
	} `json:"drug_moderation"`
	GoreModeration *struct {
		GoreContent bool `json:"gore_content"`
	} `json:"gore_moderation"`
}

// ModerationService sends images to an external classifier before they are
// published.
type ModerationService struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewModerationService creates a moderation client. An empty endpoint
// disables moderation.
func NewModerationService(endpoint string, timeout time.Duration, logger *zap.Logger) *ModerationService {
	logger = logger.Named("moderation")

	settings := gobreaker.Settings{
		Name:        "moderation",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &ModerationService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker:  gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
	}
}

// Enabled reports whether an endpoint is configured.
func (m *ModerationService) Enabled() bool {
	return m != nil && m.endpoint != ""
}

// Check classifies the image and returns a *ModerationError when any
// category is flagged.
func (m *ModerationService) Check(ctx context.Context, name string, image []byte) error {
	if !m.Enabled() {
		return nil
	}

	result, err := m.breaker.Execute(func() (any, error) {
		return m.classify(ctx, name, image)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: moderation circuit open: %w", ErrUnavailable, err)
		}
		m.logger.Warn("Moderation request failed", zap.String("file", name), zap.Error(err))
		return fmt.Errorf("%w: moderation: %w", ErrUnavailable, err)
	}

	resp := result.(*classifyResponse)
	var findings []ModerationFinding
	if resp.PornModeration != nil && resp.DrugModeration != nil && resp.GoreModeration != nil {
		if resp.PornModeration.PornContent {
			findings = append(findings, ModerationFinding{Type: "porn", Message: "Porn Content Detected in your Media"})
		}
		if resp.DrugModeration.DrugContent {
			findings = append(findings, ModerationFinding{Type: "drug", Message: "Drug Content Detected in your Media"})
		}
		if resp.GoreModeration.GoreContent {
			findings = append(findings, ModerationFinding{Type: "gore", Message: "Gore Content Detected in your Media"})
		}
	}

	if len(findings) > 0 {
		m.logger.Info("Image rejected by moderation",
			zap.String("file", name),
			zap.Int("findings", len(findings)))
		return &ModerationError{Findings: findings}
	}
	return nil
}

func (m *ModerationService) classify(ctx context.Context, name string, image []byte) (*classifyResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	res, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned %d %s", res.StatusCode, http.StatusText(res.StatusCode))
	}

	var out classifyResponse
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	return &out, nil
}
