package callbacks

import (
	"strconv"

	"github.com/tmc/langchaingo/llms"
)

// Usage is the token accounting of one generation.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Providers report token counts under different GenerationInfo keys.
var (
	inputKeys  = []string{"PromptTokens", "InputTokens", "input_tokens", "prompt_tokens"}
	outputKeys = []string{"CompletionTokens", "OutputTokens", "output_tokens", "completion_tokens"}
	totalKeys  = []string{"TotalTokens", "total_tokens"}
)

// UsageFromResponse sums the token counts of every choice in resp.
func UsageFromResponse(resp *llms.ContentResponse) Usage {
	var u Usage
	if resp == nil {
		return u
	}
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		c := usageFromInfo(choice.GenerationInfo)
		u.InputTokens += c.InputTokens
		u.OutputTokens += c.OutputTokens
		u.TotalTokens += c.TotalTokens
	}
	return u
}

func usageFromInfo(info map[string]any) Usage {
	u := Usage{
		InputTokens:  firstInt(info, inputKeys),
		OutputTokens: firstInt(info, outputKeys),
		TotalTokens:  firstInt(info, totalKeys),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

func firstInt(info map[string]any, keys []string) int64 {
	for _, k := range keys {
		v, ok := info[k]
		if !ok {
			continue
		}
		if n, ok := toInt64(v); ok {
			return n
		}
	}
	return 0
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
