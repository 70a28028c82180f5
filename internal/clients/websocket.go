package clients

import (
	"context"
	"fmt"

	ws "girodesk/internal/transport/websocket"
)

type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

// NotifyClearingRecorded pushes a freshly recorded clearing attempt and
// the resulting derived state to the recording user's dashboard.
func (c *WebSocketClient) NotifyClearingRecorded(ctx context.Context, userID int64, giroID, recordID, status, remaining string) error {
	if c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "clearing_recorded",
		Channel: fmt.Sprintf("giro_clearing#%d", userID),
		Data: map[string]interface{}{
			"giro_id":   giroID,
			"record_id": recordID,
			"status":    status,
			"remaining": remaining,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}

func (c *WebSocketClient) NotifyGiroStatusChanged(ctx context.Context, userID int64, giroID, status, remaining string) error {
	if c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "giro_status_changed",
		Channel: fmt.Sprintf("giro_status#%d", userID),
		Data: map[string]interface{}{
			"giro_id":   giroID,
			"status":    status,
			"remaining": remaining,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}

func (c *WebSocketClient) NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error {
	if c.hub == nil {
		return nil
	}

	data := map[string]interface{}{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	message := &ws.Message{
		Type:    "export_progress",
		Channel: fmt.Sprintf("export_progress#%d", userID),
		Data:    data,
	}

	c.hub.Broadcast(userID, message)
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(ctx context.Context, userID int64, exportID, url, filename string) error {
	if c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "export_complete",
		Channel: fmt.Sprintf("export_complete#%d", userID),
		Data: map[string]interface{}{
			"id":       exportID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}

func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, userID int64, exportID, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "export_failed",
		Channel: fmt.Sprintf("export_failed#%d", userID),
		Data: map[string]interface{}{
			"id":      exportID,
			"message": errMsg,
			"user_id": userID,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}
