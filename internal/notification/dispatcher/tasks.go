package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/smallbiznis/turnos/internal/notification/domain"
)

const (
	// TaskTypeNotify is the asynq task type carrying a notification event.
	TaskTypeNotify = "turnos:notify"
	// QueueDefault is used when no queue is configured.
	QueueDefault = "default"

	defaultMaxRetry = 5
)

// TaskPayload is the JSON body of a notify task. Metadata carries the
// correlation and trace identifiers of the producer.
type TaskPayload struct {
	Event    domain.Event      `json:"event"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func NewNotifyTask(payload TaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal notify payload: %w", err)
	}
	return asynq.NewTask(TaskTypeNotify, data), nil
}
