package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/talentmatch/internal/matching"
	"github.com/Zereker/talentmatch/pkg/embedding"
	"github.com/Zereker/talentmatch/pkg/log"
	"github.com/Zereker/talentmatch/pkg/vector"
)

func newTestServer(t *testing.T) (*Server, *vector.MemoryStore) {
	t.Helper()
	store := vector.NewMemoryStore(vector.WithLogger(log.Discard()))
	engine := matching.NewEngine(
		embedding.NewFingerprintEmbedder(embedding.DefaultDimensions),
		store,
		matching.WithLogger(log.Discard()),
	)
	s := NewServer(engine, ServerConfig{Name: "talentmatch", Version: "test"})
	s.logger = log.Discard()
	return s, store
}

type rpcResponse struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

func serve(t *testing.T, s *Server, lines ...string) []rpcResponse {
	t.Helper()

	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n"))
	require.NoError(t, s.Serve(context.Background(), in, &out))

	var responses []rpcResponse
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r rpcResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		responses = append(responses, r)
	}
	return responses
}

func toolCall(id int, name string, args any) string {
	data, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	return string(data)
}

func callResult(t *testing.T, r rpcResponse) ToolCallResponse {
	t.Helper()
	require.Nil(t, r.Error)
	var res ToolCallResponse
	require.NoError(t, json.Unmarshal(r.Result, &res))
	require.Len(t, res.Content, 1)
	return res
}

func TestServer_Handshake(t *testing.T) {
	s, _ := newTestServer(t)

	responses := serve(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":4,"method":"resources/list"}`,
		`not json`,
	)
	require.Len(t, responses, 5, "notifications get no response")

	var init initializeResult
	require.NoError(t, json.Unmarshal(responses[0].Result, &init))
	assert.Equal(t, "talentmatch", init.ServerInfo.Name)
	assert.Equal(t, "2024-11-05", init.ProtocolVersion)

	var list toolsListResult
	require.NoError(t, json.Unmarshal(responses[1].Result, &list))
	names := make([]string, len(list.Tools))
	for i, tool := range list.Tools {
		names[i] = tool.Name
		assert.Equal(t, []string{"text"}, tool.InputSchema.Required)
	}
	assert.Equal(t, []string{"index_job", "index_candidate", "find_candidates", "find_jobs"}, names)

	assert.Nil(t, responses[2].Error)

	require.NotNil(t, responses[3].Error)
	assert.Equal(t, -32601, responses[3].Error.Code)

	require.NotNil(t, responses[4].Error)
	assert.Equal(t, -32700, responses[4].Error.Code)
}

func TestServer_IndexAndFind(t *testing.T) {
	s, store := newTestServer(t)

	responses := serve(t, s,
		toolCall(1, "index_candidate", map[string]any{"id": "cand_1", "text": "Senior Python developer with Flask and REST API experience"}),
		toolCall(2, "index_candidate", map[string]any{"id": "cand_2", "text": "Watercolor painting instructor"}),
		toolCall(3, "index_job", map[string]any{"text": "Python Flask backend developer"}),
		toolCall(4, "find_candidates", map[string]any{"text": "Python Flask backend developer", "top_k": 1}),
		toolCall(5, "find_jobs", map[string]any{"text": "Python developer"}),
	)
	require.Len(t, responses, 5)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, 2, store.Count("candidate"))

	for _, r := range responses[:3] {
		assert.False(t, callResult(t, r).IsError)
	}
	assert.Contains(t, callResult(t, responses[0]).Content[0].Text, "cand_1")
	assert.Contains(t, callResult(t, responses[2]).Content[0].Text, "job_")

	found := callResult(t, responses[3])
	assert.False(t, found.IsError)
	assert.Contains(t, found.Content[0].Text, "1. cand_1")
	assert.Contains(t, found.Content[0].Text, "[python, flask, developer]")
	assert.NotContains(t, found.Content[0].Text, "cand_2")

	jobs := callResult(t, responses[4])
	assert.Contains(t, jobs.Content[0].Text, "1. job_")
}

func TestServer_ToolErrors(t *testing.T) {
	s, store := newTestServer(t)

	responses := serve(t, s,
		toolCall(1, "index_job", map[string]any{"id": "job_1"}),
		toolCall(2, "find_jobs", map[string]any{"text": " "}),
		toolCall(3, "delete_everything", map[string]any{}),
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":"oops"}`,
		toolCall(5, "find_jobs", map[string]any{"text": "Go developer"}),
	)
	require.Len(t, responses, 5)
	assert.Equal(t, 0, store.Len())

	for _, r := range responses[:3] {
		assert.True(t, callResult(t, r).IsError)
	}
	assert.Contains(t, callResult(t, responses[2]).Content[0].Text, "unknown tool")

	require.NotNil(t, responses[3].Error)
	assert.Equal(t, -32602, responses[3].Error.Code)

	empty := callResult(t, responses[4])
	assert.False(t, empty.IsError)
	assert.Equal(t, "没有找到匹配的职位。", empty.Content[0].Text)
}

func TestServer_StopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "岗位...", truncate("岗位描述", 2))
}
