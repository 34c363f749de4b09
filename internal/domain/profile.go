package domain

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DecodeJobProfile 将 metadata 解码为 JobProfile
func DecodeJobProfile(meta map[string]any) (JobProfile, error) {
	var p JobProfile
	if err := decodeMetadata(meta, &p); err != nil {
		return JobProfile{}, fmt.Errorf("decode job profile: %w", err)
	}
	return p, nil
}

// DecodeCandidateProfile 将 metadata 解码为 CandidateProfile
func DecodeCandidateProfile(meta map[string]any) (CandidateProfile, error) {
	var p CandidateProfile
	if err := decodeMetadata(meta, &p); err != nil {
		return CandidateProfile{}, fmt.Errorf("decode candidate profile: %w", err)
	}
	return p, nil
}

// NewMatchResult 构造对外结果，按类型附带解码后的 profile
// profile 解码失败时只保留原始 metadata
func NewMatchResult(m Match) MatchResult {
	r := MatchResult{
		ID:              m.ID,
		Type:            m.Type(),
		Score:           m.Score,
		Percent:         m.Percent(),
		MatchedKeywords: m.MatchedKeywords,
		Metadata:        m.Metadata,
	}

	switch r.Type {
	case EntityJob:
		if p, err := DecodeJobProfile(m.Metadata); err == nil {
			r.Job = &p
		}
	case EntityCandidate:
		if p, err := DecodeCandidateProfile(m.Metadata); err == nil {
			r.Candidate = &p
		}
	}

	return r
}

// NewMatchResults 批量转换，空输入返回空切片
func NewMatchResults(matches []Match) []MatchResult {
	out := make([]MatchResult, len(matches))
	for i, m := range matches {
		out[i] = NewMatchResult(m)
	}
	return out
}

func decodeMetadata(meta map[string]any, result any) error {
	config := &mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(stringSliceHook, timeHook),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(meta)
}

// stringSliceHook 处理 []any / "a, b" -> []string 转换
func stringSliceHook(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]string{}) {
		return data, nil
	}

	switch v := data.(type) {
	case []string:
		return v, nil
	case string:
		var result []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
		return result, nil
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result, nil
	default:
		return data, nil
	}
}

// timeHook 处理 string -> time.Time 转换
func timeHook(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}

	if t, ok := data.(time.Time); ok {
		return t, nil
	}

	str, ok := data.(string)
	if !ok {
		return data, nil
	}

	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, str); err == nil {
			return t, nil
		}
	}

	return data, fmt.Errorf("unable to parse time: %s", str)
}
