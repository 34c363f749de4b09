package mcp

// Tool represents an MCP tool definition
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema defines the JSON schema for tool input
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a property in the schema
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Default     any                 `json:"default,omitempty"`
}

func indexSchema(what string) InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"id": {
				Type:        "string",
				Description: what + " ID，留空则自动生成；相同 ID 会覆盖旧记录",
			},
			"text": {
				Type:        "string",
				Description: what + "全文",
			},
			"metadata": {
				Type:        "object",
				Description: "额外元数据，随结果原样返回",
			},
		},
		Required: []string{"text"},
	}
}

func findSchema(defaultTopK int) InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"text": {
				Type:        "string",
				Description: "查询文本",
			},
			"top_k": {
				Type:        "integer",
				Description: "返回的最大数量",
				Default:     defaultTopK,
			},
		},
		Required: []string{"text"},
	}
}

// MatchingTools defines all available MCP tools for job/candidate matching
var MatchingTools = []Tool{
	{
		Name:        "index_job",
		Description: "索引一个职位描述，之后可被 find_jobs 检索到。",
		InputSchema: indexSchema("职位"),
	},
	{
		Name:        "index_candidate",
		Description: "索引一份候选人简历，之后可被 find_candidates 检索到。",
		InputSchema: indexSchema("简历"),
	},
	{
		Name:        "find_candidates",
		Description: "根据职位描述查找最匹配的候选人，按相似度降序返回。",
		InputSchema: findSchema(10),
	},
	{
		Name:        "find_jobs",
		Description: "根据简历查找最匹配的职位，按相似度降序返回。",
		InputSchema: findSchema(5),
	},
}
