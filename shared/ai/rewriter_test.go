package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"weather-agent/internal/models"
	"weather-agent/shared/config"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	reply      string
	err        error
	calls      int
	lastModel  string
	lastPrompt string
	lastConfig *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.lastModel = model
	f.lastConfig = cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.lastPrompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(f.reply, genai.RoleModel)},
		},
	}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rainAlert() models.CandidateAlert {
	return models.CandidateAlert{
		ID:            "rain-warning-1",
		Category:      models.CategoryWarning,
		Severity:      models.SeverityHigh,
		Title:         "☔ Rain Alert!",
		Message:       "Heavy rain detected!",
		ConditionTags: []string{models.TagRain},
		GeneratedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRewriteParsesResponses(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantTitle string
		wantBody  string
		wantErr   error
	}{
		{
			name:      "plain JSON",
			reply:     `{"title": "☔ Umbrella Squad Assemble!", "body": "Heavy rain today, bring a coat."}`,
			wantTitle: "☔ Umbrella Squad Assemble!",
			wantBody:  "Heavy rain today, bring a coat.",
		},
		{
			name:      "fenced JSON with prose",
			reply:     "Here you go:\n```json\n{\n  \"title\": \"  Splash Zone \",\n  \"body\": \"Puddles everywhere.\"\n}\n```",
			wantTitle: "Splash Zone",
			wantBody:  "Puddles everywhere.",
		},
		{
			name:      "unescaped quotes are sanitized",
			reply:     "{\n\"title\": \"The \"Big\" Soak\",\n\"body\": \"Stay dry\"\n}",
			wantTitle: `The "Big" Soak`,
			wantBody:  "Stay dry",
		},
		{
			name:    "no JSON",
			reply:   "I cannot help with that.",
			wantErr: ErrNoRewrite,
		},
		{
			name:    "empty body",
			reply:   `{"title": "Rain", "body": "   "}`,
			wantErr: ErrNoRewrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: tt.reply}
			r := newRewriter(gen, "gemini-test", quietLogger())

			rw, err := r.Rewrite(context.Background(), rainAlert())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, rw.Title)
			assert.Equal(t, tt.wantBody, rw.Body)
		})
	}
}

func TestRewritePromptCarriesAlert(t *testing.T) {
	gen := &fakeGenerator{reply: `{"title": "t", "body": "b"}`}
	r := newRewriter(gen, "gemini-test", quietLogger())

	alert := rainAlert()
	alert.ConditionTags = []string{models.TagRain, "storm"}
	_, err := r.Rewrite(context.Background(), alert)
	require.NoError(t, err)

	assert.Equal(t, "gemini-test", gen.lastModel)
	assert.Contains(t, gen.lastPrompt, "- Type: warning")
	assert.Contains(t, gen.lastPrompt, "- Severity: high")
	assert.Contains(t, gen.lastPrompt, "- Title: ☔ Rain Alert!")
	assert.Contains(t, gen.lastPrompt, "- Message: Heavy rain detected!")
	assert.Contains(t, gen.lastPrompt, "- Conditions: rain, storm")
	assert.Contains(t, gen.lastPrompt, "max 50 chars")
	assert.Contains(t, gen.lastPrompt, "max 150 chars")
	require.NotNil(t, gen.lastConfig)
	require.NotNil(t, gen.lastConfig.SystemInstruction)
}

func TestRewriteWrapsGeneratorError(t *testing.T) {
	boom := errors.New("quota exceeded")
	r := newRewriter(&fakeGenerator{err: boom}, "gemini-test", quietLogger())

	_, err := r.Rewrite(context.Background(), rainAlert())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "rain-warning-1")
}

func TestRewriteBreakerOpensAfterFailures(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("unavailable")}
	r := newRewriter(gen, "gemini-test", quietLogger())

	for range 3 {
		_, err := r.Rewrite(context.Background(), rainAlert())
		require.Error(t, err)
	}
	assert.Equal(t, 3, gen.calls)

	_, err := r.Rewrite(context.Background(), rainAlert())
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, gen.calls, "open breaker must not reach the model")
}

func TestRewriteCanceledDoesNotTrip(t *testing.T) {
	gen := &fakeGenerator{err: context.Canceled}
	r := newRewriter(gen, "gemini-test", quietLogger())

	for range 5 {
		_, err := r.Rewrite(context.Background(), rainAlert())
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, 5, gen.calls)
}

func TestNewRewriterDisabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AIConfig
	}{
		{name: "disabled", cfg: config.AIConfig{Enabled: false, GeminiAPIKey: "key"}},
		{name: "no key", cfg: config.AIConfig{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRewriter(context.Background(), tt.cfg, quietLogger())
			require.NoError(t, err)
			assert.Nil(t, r)
		})
	}
}

func TestSanitizeJSON(t *testing.T) {
	in := "{\n  \"title\": \"Say \"hi\"\",\n  \"body\": \"ok\"\n}"
	want := "{\n\"title\": \"Say \\\"hi\\\"\",\n\"body\": \"ok\"\n}"
	assert.Equal(t, want, sanitizeJSON(in))
}
