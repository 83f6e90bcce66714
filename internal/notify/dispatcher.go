package notify

import (
	"context"
	"time"

	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/models"
)

// Result reports the outcome of one notification action.
type Result struct {
	ActionID  string                  `json:"actionId"`
	Type      models.NotificationType `json:"type"`
	Delivered bool                    `json:"delivered"`
	Channels  []Channel               `json:"channels,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  logger.Logger
}

func NewDispatcher(sender Sender, timeout time.Duration, log logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{sender: sender, timeout: timeout, logger: log}
}

// Dispatch sends each action in order with its own timeout. A failed action does
// not stop the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, actions []models.NotificationAction) []Result {
	results := make([]Result, 0, len(actions))
	for _, action := range actions {
		results = append(results, d.send(ctx, action))
	}
	return results
}

func (d *Dispatcher) send(ctx context.Context, action models.NotificationAction) Result {
	res := Result{ActionID: action.ID, Type: action.Type}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	channels, err := d.sender.Send(sendCtx, action)
	if err != nil {
		res.Error = err.Error()
		d.logger.Warn("Notification not delivered", map[string]interface{}{
			"action_id": action.ID,
			"type":      string(action.Type),
			"role":      string(action.Recipient.Role),
			"error":     err.Error(),
		})
		return res
	}

	res.Delivered = true
	res.Channels = channels
	return res
}
