// Package vision reads licence plates from photos using an OpenRouter
// vision model.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"
	"github.com/prometheus/client_golang/prometheus"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

var ErrNoPlate = errors.New("vision: no licence plate found")

const defaultModel = "qwen/qwen-2.5-vl-7b-instruct"

const systemPrompt = `You read Dutch licence plates from photos. ` +
	`Reply with the plate characters only, without dashes or spaces. ` +
	`If no licence plate is visible, reply with exactly NONE.`

type Recognizer struct {
	BaseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(apiKey, model string, logger *slog.Logger) *Recognizer {
	if model == "" {
		model = defaultModel
	}
	return &Recognizer{
		BaseURL: "https://openrouter.ai/api/v1",
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Transport: roundtripper.New(
				roundtripper.WithRequestMetrics(requestMetrics),
				roundtripper.WithRoundTripper(http.DefaultTransport),
			),
		},
		logger: logger,
	}
}

var requestMetrics = metrics.NewRequestMetrics(metrics.Options{
	Namespace: "bezoekersparkeren",
	Subsystem: "vision",
})

func init() {
	prometheus.MustRegister(requestMetrics)
}

// Plate downloads the image at url and asks the model to read the plate.
func (r *Recognizer) Plate(ctx context.Context, url string) (string, error) {
	image, err := r.download(ctx, url)
	if err != nil {
		return "", fmt.Errorf("vision: download image: %w", err)
	}

	answer, err := r.complete(ctx, image)
	if err != nil {
		return "", fmt.Errorf("vision: %w", err)
	}

	plate := normalize(answer)
	if plate == "" {
		r.logger.Info("no plate recognized", "answer", answer)
		return "", ErrNoPlate
	}
	r.logger.Info("plate recognized", "plate", plate)
	return plate, nil
}

func (r *Recognizer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r *Recognizer) complete(ctx context.Context, image []byte) (string, error) {
	payload := chatRequest{
		Model: r.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: "What is the licence plate in this photo?"},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
				}},
			}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New(resp.Status)
	}

	var response chatResponse
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", err
	}
	if response.Error != nil {
		return "", errors.New(response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("empty response")
	}
	return response.Choices[0].Message.Content, nil
}

var (
	plateChars = regexp.MustCompile(`[^A-Z0-9]`)
	plateToken = regexp.MustCompile(`\b[A-Z0-9]{1,3}(?:-[A-Z0-9]{1,3}){1,2}\b|\b[A-Z0-9]{6}\b`)
)

// normalize reduces the model's answer to plate characters. Dutch plates
// have six characters; a chatty answer is scanned for a plate-like token,
// anything wildly off is treated as a non-answer.
func normalize(answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" || strings.EqualFold(answer, "NONE") {
		return ""
	}

	candidate := plateChars.ReplaceAllString(strings.ToUpper(answer), "")
	if len(candidate) < 6 || len(candidate) > 8 {
		// the model answered in a sentence. look for a plate inside it.
		// plain words match the token pattern too, so require a digit.
		token := plateToken.FindString(strings.ToUpper(answer))
		candidate = plateChars.ReplaceAllString(token, "")
		if len(candidate) < 6 || len(candidate) > 8 || !strings.ContainsAny(candidate, "0123456789") {
			return ""
		}
	}
	return parking.NormalizePlate(candidate)
}
