package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/option"

	"github.com/vladimiradmaev/calorie-helper/internal/config"
	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	apperrors "github.com/vladimiradmaev/calorie-helper/internal/errors"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"
	tracerName  = "calorie-helper/ai"
)

const parseSystemPrompt = "You are a helpful assistant that parses food data into JSON. Return ONLY valid JSON array, no explanations."

const parsePromptTemplate = `Parse this food list into JSON. Return ONLY the JSON array, no explanations.

Input: %s

Rules:
1. Extract food name in Russian (lowercase). Use singular form where possible.
2. IMPORTANT: Do NOT include weight or "kcal" in the "name" field.
3. IMPORTANT: Keep fat percentage in the name (e.g., 'творог 5%%').
4. Extract weight in grams.
5. SPECIAL RULES for calories:
   - Numbers in parentheses like "(X)" (e.g. "Product (150)") are ALWAYS "kcal_type": "per_100".
   - If the input is "Product X ккал" OR "Product Yг - X ккал", set "manual_kcal" = X and "kcal_type": "total".
   - If weight is not specified but there is "(X)", set weight=100.
6. TIME and DATE extraction:
   - Extract date in 'YYYY-MM-DD' format if mentioned (e.g. "1/22/26" or "23/01/26" -> "2026-01-23").
   - IMPORTANT: If a date appears, it applies to ALL following items until a new date is found.
   - Extract time in 'HH:MM' format if mentioned (e.g. "03:05").
   - Associate items with the most recent time/date mentioned above them. If none mentioned, use null.
7. Return ONLY this JSON format:
[{"name": "str", "weight": number, "manual_kcal": number or null, "kcal_type": "per_100" | "total" | null, "date": "str or null", "time": "str or null"}]

Example:
Input: "1/22/26\n03:05\nТворожная масса 200г - 304 ккал\n5:00\nКумыс 500г (100)"
Output: [
  {"name": "творожная масса", "weight": 200, "manual_kcal": 304, "kcal_type": "total", "date": "2026-01-22", "time": "03:05"},
  {"name": "кумыс", "weight": 500, "manual_kcal": 100, "kcal_type": "per_100", "date": "2026-01-22", "time": "05:00"}
]
`

const kcalSystemPrompt = "You are a nutrition expert. Answer with numbers only."

const kcalPromptTemplate = `Сколько калорий в продукте '%s' на 100 грамм?

Важно:
- ОБЯЗАТЕЛЬНО учитывай жирность/процент, если они указаны в названии (например, для 'творог 5%%' и 'творог 9%%' значения разные).
- Если название неполное (например, "гречка"), предполагай самую распространённую приготовленную версию.
- НИКОГДА не возвращай 0 для съедобных продуктов.
- Если не уверен, предоставь среднюю оценку для этой категории еды.
- Выведи только одно целое число.`

// completion is one chat request to a language model
type completion struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// completer is a language model provider
type completer interface {
	Name() string
	Complete(ctx context.Context, req completion) (string, error)
}

type groqCompleter struct {
	client *openai.Client
	model  string
}

func (g *groqCompleter) Name() string { return "groq" }

func (g *groqCompleter) Complete(ctx context.Context, req completion) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

type geminiCompleter struct {
	client *genai.Client
	model  string
}

func (g *geminiCompleter) Name() string { return "gemini" }

func (g *geminiCompleter) Complete(ctx context.Context, req completion) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	model.SetTemperature(req.Temperature)
	model.SetMaxOutputTokens(int32(req.MaxTokens))

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty completion")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// AIService implements the parsing and calorie estimation oracles. Providers
// are tried in order; the next one is used only when the previous call failed.
type AIService struct {
	providers []completer
	timeout   time.Duration
}

// NewAIService builds Groq and Gemini providers for every configured key
func NewAIService(ctx context.Context, cfg config.AIConfig) (*AIService, error) {
	var providers []completer

	if cfg.GroqAPIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.GroqAPIKey)
		clientCfg.BaseURL = groqBaseURL
		providers = append(providers, &groqCompleter{
			client: openai.NewClientWithConfig(clientCfg),
			model:  cfg.GroqModel,
		})
	}

	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		providers = append(providers, &geminiCompleter{client: client, model: cfg.GeminiModel})
	}

	if len(providers) == 0 {
		return nil, apperrors.NewValidationError("no language model provider configured")
	}
	return newAIService(cfg.Timeout, providers...), nil
}

func newAIService(timeout time.Duration, providers ...completer) *AIService {
	return &AIService{providers: providers, timeout: timeout}
}

func (s *AIService) complete(ctx context.Context, operation string, req completion) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, operation)
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var errs []error
	for _, p := range s.providers {
		text, err := p.Complete(ctx, req)
		if err == nil {
			span.SetAttributes(attribute.String("ai.provider", p.Name()))
			return text, nil
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			errs = append(errs, apperrors.NewTimeoutError(operation))
			break
		}
		logger.WithContext(ctx).Warn("Language model call failed", "provider", p.Name(), "operation", operation, "error", err)
		errs = append(errs, apperrors.NewExternalAPIError(err, p.Name()))
	}

	err := errors.Join(errs...)
	span.RecordError(err)
	span.SetStatus(codes.Error, "all providers failed")
	return "", err
}

// ParseFood turns free text into food items. Any failure or malformed answer
// gives an empty result.
func (s *AIService) ParseFood(ctx context.Context, text string) []domain.ParsedItem {
	answer, err := s.complete(ctx, "ai.parse_food", completion{
		System:      parseSystemPrompt,
		Prompt:      fmt.Sprintf(parsePromptTemplate, text),
		Temperature: 0,
		MaxTokens:   4000,
	})
	if err != nil {
		logger.WithContext(ctx).Error("Food parsing failed", "error", err)
		return nil
	}

	items, err := decodeParsedItems(answer)
	if err != nil {
		logger.WithContext(ctx).Warn("Discarding malformed parse result", "error", err, "answer", answer)
		return nil
	}
	logger.Debug("Food parsed", "input", text, "items", len(items))
	return items
}

// EstimateKcal asks for the calorie density of a product
func (s *AIService) EstimateKcal(ctx context.Context, productName string) (int, bool) {
	answer, err := s.complete(ctx, "ai.estimate_kcal", completion{
		System:      kcalSystemPrompt,
		Prompt:      fmt.Sprintf(kcalPromptTemplate, productName),
		Temperature: 0.1,
		MaxTokens:   50,
	})
	if err != nil {
		logger.Error("Calorie estimation failed", "product", productName, "error", err)
		return 0, false
	}

	kcal, ok := parseKcalAnswer(answer)
	if ok {
		logger.Info("Calories estimated", "product", productName, "kcal_per_100g", kcal)
	}
	return kcal, ok
}

var firstIntRe = regexp.MustCompile(`\d+`)

// parseKcalAnswer takes the first integer of the answer; zero is no answer
func parseKcalAnswer(answer string) (int, bool) {
	m := firstIntRe.FindString(answer)
	if m == "" {
		return 0, false
	}
	kcal, err := strconv.Atoi(m)
	if err != nil || kcal <= 0 {
		return 0, false
	}
	return kcal, true
}

// extractJSONArray strips markdown fences and keeps the outermost [...] span
func extractJSONArray(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end <= start {
		return s
	}
	return s[start : end+1]
}

type rawParsedItem struct {
	Name       *string  `json:"name"`
	Weight     *float64 `json:"weight"`
	ManualKcal *float64 `json:"manual_kcal"`
	KcalType   *string  `json:"kcal_type"`
	Date       *string  `json:"date"`
	Time       *string  `json:"time"`
}

// decodeParsedItems validates the whole answer; one bad record rejects all
func decodeParsedItems(answer string) ([]domain.ParsedItem, error) {
	var raw []rawParsedItem
	if err := json.Unmarshal([]byte(extractJSONArray(answer)), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	items := make([]domain.ParsedItem, 0, len(raw))
	for i, r := range raw {
		item, err := r.validate()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (r rawParsedItem) validate() (domain.ParsedItem, error) {
	var item domain.ParsedItem

	if r.Name == nil || strings.TrimSpace(*r.Name) == "" {
		return item, errors.New("name is required")
	}
	item.Name = strings.ToLower(strings.TrimSpace(*r.Name))

	if r.Weight != nil {
		if *r.Weight < 0 {
			return item, errors.New("weight is negative")
		}
		item.Weight = *r.Weight
	}

	if r.ManualKcal != nil {
		if *r.ManualKcal < 0 {
			return item, errors.New("manual_kcal is negative")
		}
		v := *r.ManualKcal
		item.ManualKcal = &v
	}

	if r.KcalType != nil {
		switch mode := domain.KcalMode(*r.KcalType); mode {
		case domain.KcalModeTotal, domain.KcalModePer100:
			item.KcalMode = mode
		case "", "null":
		default:
			return item, fmt.Errorf("unknown kcal_type %q", *r.KcalType)
		}
	}

	if r.Date != nil && *r.Date != "" && *r.Date != "null" {
		if _, err := time.Parse("2006-01-02", *r.Date); err != nil {
			return item, fmt.Errorf("bad date %q", *r.Date)
		}
		item.Date = *r.Date
	}

	if r.Time != nil && *r.Time != "" && *r.Time != "null" {
		t, err := time.Parse("15:04", *r.Time)
		if err != nil {
			return item, fmt.Errorf("bad time %q", *r.Time)
		}
		item.Time = t.Format("15:04")
	}

	return item, nil
}
