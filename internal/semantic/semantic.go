package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"

	"smartquote/internal/logging"
	"smartquote/internal/util"
)

var ErrNoCandidates = errors.New("semantic: empty model response")

// Normalizer maps raw exam strings to standard exam names in one call. The
// result may be partial; terms it does not know are absent.
type Normalizer interface {
	NormalizeBatch(ctx context.Context, terms []string) (map[string]string, error)
}

// Noop is used when no model is configured.
type Noop struct{}

func (Noop) NormalizeBatch(context.Context, []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (Noop) Active() bool { return false }

type Gemini struct {
	svc    *generativelanguage.Service
	model  string
	logger *zap.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger, opts ...option.ClientOption) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := generativelanguage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("semantic: create gemini client: %w", err)
	}
	return &Gemini{svc: svc, model: model, logger: logging.OrNop(logger)}, nil
}

func (g *Gemini) Active() bool { return true }

func (g *Gemini) NormalizeBatch(ctx context.Context, terms []string) (map[string]string, error) {
	valid := make([]string, 0, len(terms))
	for _, t := range terms {
		if util.RuneLen(strings.TrimSpace(t)) > 3 {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return map[string]string{}, nil
	}

	prompt, err := buildPrompt(valid)
	if err != nil {
		return nil, err
	}

	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
		GenerationConfig: &generativelanguage.GenerationConfig{ResponseMimeType: "application/json"},
	}
	resp, err := g.svc.Models.GenerateContent("models/"+g.model, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("semantic: generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, ErrNoCandidates
	}
	mapping, err := ParseMapping(text)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("semantic batch normalized", zap.Int("terms", len(valid)), zap.Int("mapped", len(mapping)))
	return mapping, nil
}

func responseText(resp *generativelanguage.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

var codeFence = regexp.MustCompile("```(?:json)?")

// ParseMapping decodes the model reply, tolerating markdown code fences and
// dropping empty or non-string values.
func ParseMapping(text string) (map[string]string, error) {
	text = strings.TrimSpace(codeFence.ReplaceAllString(text, ""))
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("semantic: decode reply: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out[k] = strings.TrimSpace(s)
	}
	return out, nil
}

func buildPrompt(terms []string) (string, error) {
	blob, err := json.Marshal(terms)
	if err != nil {
		return "", err
	}
	return `You are a medical billing expert specialized in Brazilian TUSS/CBHPM coding.

Task: normalize these raw strings (from OCR or handwriting) into the exact standard TUSS/CBHPM exam name.

Examples:
- "Ac. Anti-TPO" -> "Anti-Tireoperoxidase"
- "EAS" -> "Urina Tipo I"
- "H. Pylori" -> "Pesquisa de Helicobacter Pylori"
- "Vit D" -> "25 Hidroxivitamina D"
- "TSH Ultra" -> "Hormonio Tireoestimulante"
- "Glicemia Jejum" -> "Glicose"

Rules:
1. Return ONLY a JSON object {"original": "standard name"}.
2. If the term names a specific antibody class (IgG/IgM), keep it in the name.
3. Correct typos ("Hemagroma" -> "Hemograma").
4. Expand abbreviations.

Input terms:
` + string(blob), nil
}
