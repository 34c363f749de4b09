package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Zereker/talentmatch/internal/domain"
	"github.com/Zereker/talentmatch/internal/matching"
)

// Handler handles MCP tool calls
type Handler struct {
	engine *matching.Engine
}

// NewHandler creates a new MCP handler
func NewHandler(engine *matching.Engine) *Handler {
	return &Handler{
		engine: engine,
	}
}

// ToolCallRequest represents an MCP tool call request
type ToolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResponse represents an MCP tool call response
type ToolCallResponse struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type indexArgs struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

type findArgs struct {
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

// HandleToolCall handles an MCP tool call
func (h *Handler) HandleToolCall(ctx context.Context, req ToolCallRequest) ToolCallResponse {
	switch req.Name {
	case "index_job":
		return h.handleIndex(ctx, domain.EntityJob, req.Arguments)
	case "index_candidate":
		return h.handleIndex(ctx, domain.EntityCandidate, req.Arguments)
	case "find_candidates":
		return h.handleFind(ctx, domain.EntityCandidate, req.Arguments)
	case "find_jobs":
		return h.handleFind(ctx, domain.EntityJob, req.Arguments)
	default:
		return errorResponse(fmt.Sprintf("unknown tool: %s", req.Name))
	}
}

// handleIndex handles index_job / index_candidate
func (h *Handler) handleIndex(ctx context.Context, typ domain.EntityType, raw json.RawMessage) ToolCallResponse {
	var args indexArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return errorResponse(fmt.Sprintf("invalid arguments: %v", err))
	}
	if strings.TrimSpace(args.Text) == "" {
		return errorResponse("text is required")
	}
	if args.ID == "" {
		args.ID = matching.NewID(typ)
	}

	if err := h.engine.Index(ctx, typ, args.ID, args.Text, args.Metadata); err != nil {
		return errorResponse(fmt.Sprintf("index failed: %v", err))
	}

	return successResponse(fmt.Sprintf("已索引%s: %s", typeLabel(typ), args.ID))
}

// handleFind handles find_candidates / find_jobs
func (h *Handler) handleFind(ctx context.Context, target domain.EntityType, raw json.RawMessage) ToolCallResponse {
	var args findArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return errorResponse(fmt.Sprintf("invalid arguments: %v", err))
	}
	if strings.TrimSpace(args.Text) == "" {
		return errorResponse("text is required")
	}

	matches, err := h.engine.Search(ctx, args.Text, target, args.TopK)
	if err != nil {
		return errorResponse(fmt.Sprintf("search failed: %v", err))
	}

	return successResponse(formatMatches(target, matches))
}

func unmarshalArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// formatMatches 格式化检索结果
func formatMatches(target domain.EntityType, matches []domain.Match) string {
	if len(matches) == 0 {
		return fmt.Sprintf("没有找到匹配的%s。", typeLabel(target))
	}

	parts := []string{fmt.Sprintf("## 匹配的%s (%d)", typeLabel(target), len(matches))}
	for i, m := range matches {
		line := fmt.Sprintf("%d. %s  %.2f%%", i+1, m.ID, m.Percent())
		if len(m.MatchedKeywords) > 0 {
			line += "  [" + strings.Join(m.MatchedKeywords, ", ") + "]"
		}
		parts = append(parts, line)
		if text := m.Text(); text != "" {
			parts = append(parts, "   "+truncate(text, 100))
		}
	}

	return strings.Join(parts, "\n")
}

func typeLabel(t domain.EntityType) string {
	if t == domain.EntityJob {
		return "职位"
	}
	return "候选人"
}

// Helper functions

func successResponse(text string) ToolCallResponse {
	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
	}
}

func errorResponse(text string) ToolCallResponse {
	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
		IsError: true,
	}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
