package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"weather-agent/internal/models"
	"weather-agent/shared/config"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// ErrNoRewrite means the model answered but gave nothing usable
var ErrNoRewrite = errors.New("model returned no usable rewrite")

const systemInstruction = "You are a creative weather alert enhancer. Make weather notifications engaging, helpful, and memorable while keeping safety information intact."

// contentGenerator is the part of the Gemini client the rewriter uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Rewriter asks Gemini for a livelier title and body for an alert
type Rewriter struct {
	gen     contentGenerator
	model   string
	breaker *gobreaker.CircuitBreaker[models.Rewrite]
	logger  *slog.Logger
}

// NewRewriter returns nil when enrichment is disabled or no API key is set.
// Callers must not store a nil *Rewriter in an alerts.Enricher.
func NewRewriter(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (*Rewriter, error) {
	if !cfg.Enabled || cfg.GeminiAPIKey == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newRewriter(client.Models, cfg.Model, logger), nil
}

func newRewriter(gen contentGenerator, model string, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Rewriter{
		gen:    gen,
		model:  model,
		logger: logger.With("component", "ai.rewriter"),
	}
	r.breaker = gobreaker.NewCircuitBreaker[models.Rewrite](gobreaker.Settings{
		Name:        "gemini-rewriter",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return r
}

// Rewrite implements alerts.Enricher
func (r *Rewriter) Rewrite(ctx context.Context, alert models.CandidateAlert) (models.Rewrite, error) {
	rw, err := r.breaker.Execute(func() (models.Rewrite, error) {
		return r.generate(ctx, alert)
	})
	if err != nil {
		return models.Rewrite{}, fmt.Errorf("failed to rewrite alert %s: %w", alert.ID, err)
	}
	return rw, nil
}

func (r *Rewriter) generate(ctx context.Context, alert models.CandidateAlert) (models.Rewrite, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(buildPrompt(alert))}, genai.RoleUser),
	}
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.8),
	}

	result, err := r.gen.GenerateContent(ctx, r.model, contents, genCfg)
	if err != nil {
		return models.Rewrite{}, err
	}
	if result == nil {
		return models.Rewrite{}, ErrNoRewrite
	}

	text := result.Text()
	if text == "" {
		return models.Rewrite{}, ErrNoRewrite
	}
	return r.parseRewrite(text)
}

func buildPrompt(alert models.CandidateAlert) string {
	return fmt.Sprintf(`Enhance this weather alert to make it more creative, engaging, and helpful:

Original Alert:
- Type: %s
- Severity: %s
- Title: %s
- Message: %s
- Conditions: %s

Make it:
1. More creative and engaging
2. Include practical advice
3. Add personality and humor where appropriate
4. Keep the important safety information
5. Make it memorable and fun to read

Return JSON format:
{
  "title": "Enhanced creative title with emoji (max 50 chars)",
  "body": "Enhanced message with personality and practical advice (max 150 chars)"
}

Examples of enhanced style:
- Instead of "Rain Alert" → "☔ Umbrella Squad Assemble!"
- Instead of "Hot weather" → "🔥 Sizzle Alert: Your AC's Time to Shine!"
- Instead of "Perfect weather" → "🌟 Weather Jackpot: Nature's Showing Off!"`,
		alert.Category, alert.Severity, alert.Title, alert.Message, strings.Join(alert.ConditionTags, ", "))
}

func (r *Rewriter) parseRewrite(response string) (models.Rewrite, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx < startIdx {
		return models.Rewrite{}, fmt.Errorf("%w: no JSON found in response", ErrNoRewrite)
	}

	jsonStr := response[startIdx : endIdx+1]

	var rw models.Rewrite
	if err := json.Unmarshal([]byte(jsonStr), &rw); err != nil {
		sanitized := sanitizeJSON(jsonStr)
		if sanitizedErr := json.Unmarshal([]byte(sanitized), &rw); sanitizedErr != nil {
			return models.Rewrite{}, fmt.Errorf("failed to unmarshal rewrite JSON: %w (sanitized version also failed: %v)", err, sanitizedErr)
		}
		r.logger.Warn("had to sanitize malformed rewrite JSON")
	}

	rw.Title = strings.TrimSpace(rw.Title)
	rw.Body = strings.TrimSpace(rw.Body)
	if rw.Title == "" || rw.Body == "" {
		return models.Rewrite{}, fmt.Errorf("%w: title or body empty", ErrNoRewrite)
	}
	return rw, nil
}

// sanitizeJSON escapes stray quotes inside one-line string values,
// the most common way model output breaks JSON.
func sanitizeJSON(jsonStr string) string {
	lines := strings.Split(jsonStr, "\n")
	sanitized := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx != -1 && strings.Contains(line, "\"") {
			key := line[:colonIdx+1]
			value := strings.TrimSpace(line[colonIdx+1:])

			if strings.HasPrefix(value, "\"") {
				if lastQuote := strings.LastIndex(value, "\""); lastQuote > 0 {
					content := strings.ReplaceAll(value[1:lastQuote], `\"`, `"`)
					content = strings.ReplaceAll(content, `"`, `\"`)
					line = key + " \"" + content + "\"" + value[lastQuote+1:]
				}
			}
		}

		sanitized = append(sanitized, line)
	}

	return strings.Join(sanitized, "\n")
}
