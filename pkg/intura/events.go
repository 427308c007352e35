package intura

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// InsertInference records a raw inference log entry.
func (c *Client) InsertInference(ctx context.Context, payload map[string]any) error {
	sessionID, _ := payload["session_id"].(string)
	if sessionID == "" {
		sessionID = "unknown"
	}
	c.logger.Debug("logging inference", "session_id", sessionID)
	_, err := c.do(ctx, http.MethodPost, endpointInsertInference, nil, payload)
	return err
}

// TrackEvent sends a reward event. An empty predictionID gets a fresh one.
func (c *Client) TrackEvent(ctx context.Context, name string, value any, category, predictionID string) error {
	if predictionID == "" {
		predictionID = uuid.NewString()
	}
	req := TrackRequest{
		Body: TrackBody{
			EventName:    name,
			EventValue:   value,
			Attributes:   map[string]any{},
			PredictionID: predictionID,
		},
		RewardType:     RewardTypeReserved,
		RewardCategory: category,
	}
	c.logger.Debug("tracking event", "event", name, "category", category)
	_, err := c.do(ctx, http.MethodPost, endpointTrackReward, nil, req)
	return err
}

// InsertChatInput logs the messages sent to a chat model.
func (c *Client) InsertChatInput(ctx context.Context, value any) error {
	return c.TrackEvent(ctx, EventChatInput, value, CategoryChatLog, "")
}

// InsertChatOutput logs a chat model answer.
func (c *Client) InsertChatOutput(ctx context.Context, value any) error {
	return c.TrackEvent(ctx, EventChatOutput, value, CategoryChatLog, "")
}

// InsertChatUsage logs token usage. Without WithUsageUpload it is a no-op.
func (c *Client) InsertChatUsage(ctx context.Context, value any) error {
	if !c.uploadUsage {
		c.logger.Debug("chat usage upload disabled")
		return nil
	}
	return c.TrackEvent(ctx, EventChatUsage, value, CategoryChatUsage, "")
}
