package intura

import "fmt"

// Experiment is a dashboard experiment and its treatment arms.
type Experiment struct {
	ID          string      `json:"experiment_id,omitempty"`
	Name        string      `json:"experiment_name"`
	Description string      `json:"description,omitempty"`
	Treatments  []Treatment `json:"treatment_list"`
}

// Treatment is one arm of an experiment: a model, its provider and a prompt.
type Treatment struct {
	ID            string `json:"treatment_id,omitempty"`
	Name          string `json:"treatment_name"`
	ModelName     string `json:"model_name"`
	ModelProvider string `json:"model_provider"`
	Prompt        string `json:"prompt"`
}

// Model is an entry of the dashboard model catalogue.
type Model struct {
	Name     string `json:"model_name"`
	Provider string `json:"model_provider"`
	Label    string `json:"display_name,omitempty"`
}

// SDKConfig carries the client library hints the dashboard attaches to a
// treatment. ClassName is used to pick a provider when ModelProvider is not
// recognised.
type SDKConfig struct {
	ModulePath string `json:"module_path"`
	ClassName  string `json:"class_name"`
}

// ChatModelConfig is a treatment selected by the dashboard for a build
// request, ready to be turned into a chat model.
type ChatModelConfig struct {
	TreatmentID        string         `json:"treatment_id"`
	TreatmentName      string         `json:"treatment_name"`
	ModelProvider      string         `json:"model_provider"`
	Prompt             string         `json:"prompt"`
	SDKConfig          SDKConfig      `json:"sdk_config"`
	ModelConfiguration map[string]any `json:"model_configuration"`
}

// ModelName returns model_configuration["model"], or "" when unset.
func (c ChatModelConfig) ModelName() string {
	v, ok := c.ModelConfiguration["model"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Reward categories and event names understood by the track endpoint.
const (
	RewardTypeReserved = "RESERVED_REWARD"

	CategoryChatLog   = "CHAT_LOG"
	CategoryChatUsage = "CHAT_USAGE"

	EventChatInput  = "CHAT_MODEL_INPUT"
	EventChatOutput = "CHAT_MODEL_OUTPUT"
	EventChatUsage  = "CHAT_MODEL_USAGE"
)

// TrackRequest is the body of a reward tracking call.
type TrackRequest struct {
	Body           TrackBody `json:"body"`
	RewardType     string    `json:"reward_type"`
	RewardCategory string    `json:"reward_category"`
}

type TrackBody struct {
	EventName    string         `json:"event_name"`
	EventValue   any            `json:"event_value"`
	Attributes   map[string]any `json:"attributes"`
	PredictionID string         `json:"prediction_id"`
}
