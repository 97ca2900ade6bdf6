package planner

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode"

	"nutriplan/internal/llm"
	"nutriplan/internal/shared"
)

//go:embed menu_prompt.md
var menuPrompt string

const agentName = "MenuPlanner"

var menuTemplate = template.Must(template.New("menu").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(menuPrompt))

// LLMGenerator asks a language model for the plan.
type LLMGenerator struct {
	textGen llm.TextGenerator
}

// NewLLMGenerator creates a Generator backed by textGen.
func NewLLMGenerator(textGen llm.TextGenerator) *LLMGenerator {
	return &LLMGenerator{textGen: textGen}
}

func (g *LLMGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	prompt, err := buildMenuPrompt(req)
	if err != nil {
		return Response{}, err
	}

	resp, err := g.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return Response{}, err
	}

	meta := shared.AgentMeta{
		AgentName: agentName,
		Usage:     resp.Usage,
		Latency:   time.Since(start),
	}

	slots, err := parseSlots(resp.Content)
	if err != nil {
		return Response{Meta: meta}, fmt.Errorf(
			"failed to parse menu response %w. Response: %s",
			err,
			resp.Content,
		)
	}

	return Response{Slots: slots, Meta: meta}, nil
}

func buildMenuPrompt(req Request) (string, error) {
	var buf bytes.Buffer
	if err := menuTemplate.Execute(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// parseSlots accepts a bare array or an object holding it under "days".
func parseSlots(content string) ([]Slot, error) {
	content = stripFences(content)

	switch {
	case strings.HasPrefix(content, "["):
		var slots []Slot
		if err := json.Unmarshal([]byte(content), &slots); err != nil {
			return nil, err
		}
		return slots, nil
	case strings.HasPrefix(content, "{"):
		var wrapped struct {
			Days []Slot `json:"days"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Days == nil {
			return nil, fmt.Errorf("missing days array")
		}
		return wrapped.Days, nil
	default:
		return nil, fmt.Errorf("response is not JSON")
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")

	// The opening fence may carry any language tag: json, JSON, javascript.
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "[{") {
		s = s[i+1:]
	} else if i < 0 {
		s = strings.TrimLeftFunc(s, unicode.IsLetter)
	}

	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
