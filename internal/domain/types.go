package domain

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// ============================================================================
// 实体类型
// ============================================================================

// EntityType 区分职位与候选人，写入记录 metadata 的 type 字段
type EntityType string

const (
	EntityJob       EntityType = "job"
	EntityCandidate EntityType = "candidate"
)

// ErrInvalidType 非 job / candidate 的实体类型
var ErrInvalidType = errors.New("invalid entity type")

// Valid 是否为已知类型
func (t EntityType) Valid() bool {
	return t == EntityJob || t == EntityCandidate
}

// Opposite 返回匹配方向上的另一种类型
func (t EntityType) Opposite() EntityType {
	switch t {
	case EntityJob:
		return EntityCandidate
	case EntityCandidate:
		return EntityJob
	default:
		return ""
	}
}

// ParseEntityType 解析类型字符串
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", errors.WithMessagef(ErrInvalidType, "%q", s)
	}
	return t, nil
}

// ============================================================================
// Metadata 约定字段
// ============================================================================

const (
	MetaType = "type" // 实体类型，由引擎写入，覆盖调用方的值
	MetaText = "text" // 原文前 PreviewLength 个字符
)

// PreviewLength 存入 metadata 的原文长度（按 rune 计）
const PreviewLength = 1000

// ============================================================================
// 检索结果
// ============================================================================

// Match 一条匹配结果，所有存储后端返回同一形状
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"` // 余弦相似度 [-1, 1]
	Metadata map[string]any `json:"metadata,omitempty"`

	// 查询文本与存储文本共有的关键词
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// Percent 将分数换算为百分比，保留两位小数
func (m Match) Percent() float64 {
	return math.Round(m.Score*100*100) / 100
}

// Type 返回记录的实体类型
func (m Match) Type() EntityType {
	t, _ := m.Metadata[MetaType].(string)
	return EntityType(t)
}

// Text 返回存储的原文预览
func (m Match) Text() string {
	s, _ := m.Metadata[MetaText].(string)
	return s
}

// ============================================================================
// 文档
// ============================================================================

// Document 一份待索引或已存储的职位/简历
type Document struct {
	ID       string         `json:"id"`
	Type     EntityType     `json:"type"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// JobProfile metadata 中职位字段的类型化视图
type JobProfile struct {
	Title           string    `json:"title,omitempty"`
	Company         string    `json:"company,omitempty"`
	Location        string    `json:"location,omitempty"`
	Description     string    `json:"description,omitempty"`
	RequiredSkills  []string  `json:"required_skills,omitempty"`
	PreferredSkills []string  `json:"preferred_skills,omitempty"`
	ExperienceLevel string    `json:"experience_level,omitempty"` // entry / mid / senior
	Status          string    `json:"status,omitempty"`           // draft / active / closed
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// CandidateProfile metadata 中候选人字段的类型化视图
type CandidateProfile struct {
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Position   string    `json:"position,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Experience string    `json:"experience,omitempty"`
	Skills     []string  `json:"skills,omitempty"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// ============================================================================
// 异步索引事件（消息队列）
// ============================================================================

// IndexEvent 通过 MQ 投递的索引请求
type IndexEvent struct {
	Type     EntityType     `json:"type"`
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate 校验事件
func (e *IndexEvent) Validate() error {
	if !e.Type.Valid() {
		return errors.WithMessagef(ErrInvalidType, "%q", e.Type)
	}
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

// ============================================================================
// API Request/Response
// ============================================================================

// StorageStatus 索引结果
const (
	StorageSuccess = "success"
	StoragePartial = "partial" // 索引失败但请求仍返回了结果
)

// IndexRequest 索引职位/候选人请求，ID 为空时由服务端生成
type IndexRequest struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IndexResponse 索引响应
type IndexResponse struct {
	ID            string        `json:"id"`
	Type          EntityType    `json:"type"`
	StorageStatus string        `json:"storage_status"`
	Matches       []MatchResult `json:"matches,omitempty"` // 仅职位索引时返回候选人
}

// BatchIndexRequest 批量上传候选人
type BatchIndexRequest struct {
	Candidates []IndexRequest `json:"candidates"`
}

// BatchIndexResponse 批量上传响应
type BatchIndexResponse struct {
	IDs           []string `json:"ids"`
	Indexed       int      `json:"indexed"`
	Total         int      `json:"total"`
	StorageStatus string   `json:"storage_status"`
}

// AsyncIndexResponse 异步索引响应
type AsyncIndexResponse struct {
	ID     string `json:"id"`
	Queued bool   `json:"queued"`
}

// MatchRequest 文本检索请求
type MatchRequest struct {
	Text     string   `json:"text"`
	TopK     int      `json:"top_k,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"` // 调用方阈值，nil 表示不过滤；余弦可为负
}

// MatchResult 对外展示的匹配结果
type MatchResult struct {
	ID              string            `json:"id"`
	Type            EntityType        `json:"type"`
	Score           float64           `json:"score"`
	Percent         float64           `json:"match_percentage"`
	MatchedKeywords []string          `json:"matched_keywords,omitempty"`
	Job             *JobProfile       `json:"job,omitempty"`
	Candidate       *CandidateProfile `json:"candidate,omitempty"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
}

// MatchResponse 检索响应
type MatchResponse struct {
	Matches  []MatchResult `json:"matches"`
	Total    int           `json:"total"`
	Degraded bool          `json:"degraded,omitempty"` // 检索失败，结果为空不代表没有匹配
}

// ============================================================================
// 面试题
// ============================================================================

// 面试题来源
const (
	QuestionSourceModel    = "model"    // LLM 生成
	QuestionSourceTemplate = "template" // 技能模板兜底
)

// EvaluationStatusEvaluated 评估完成
const EvaluationStatusEvaluated = "evaluated"

// QuestionRequest 生成面试题请求
type QuestionRequest struct {
	JobDescription  string   `json:"job_description"`
	JobSkills       []string `json:"job_skills,omitempty"`
	CandidateSkills []string `json:"candidate_skills,omitempty"`
}

// QuestionSet 生成的面试题
type QuestionSet struct {
	Questions []string `json:"questions"`
	Count     int      `json:"count"`
	Source    string   `json:"source"`
	Note      string   `json:"note,omitempty"` // 兜底原因
}

// AnswerRequest 提交回答请求
type AnswerRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Context  string `json:"context,omitempty"` // 职位描述等上下文
}

// Evaluation 回答评估，score 取值 1-10
type Evaluation struct {
	Score        int    `json:"score"`
	Feedback     string `json:"feedback"`
	Improvements string `json:"improvements"`
}

// EvaluationResponse 评估响应
type EvaluationResponse struct {
	Status     string     `json:"status"`
	Evaluation Evaluation `json:"evaluation"`
}
