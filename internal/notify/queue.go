package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/apperr"
)

const (
	TypeDonationRequest = "donation_request:send"
	QueueName           = "notifications"
	maxRetry            = 5
)

// Enqueuer is the part of *asynq.Client the queue notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier hands requests to the worker through an asynq queue, so a
// slow or failing email function is retried off the request path.
type QueueNotifier struct {
	client Enqueuer
}

func NewQueueNotifier(client Enqueuer) *QueueNotifier {
	return &QueueNotifier{client: client}
}

func NewDonationRequestTask(req Request) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDonationRequest, payload, asynq.MaxRetry(maxRetry), asynq.Queue(QueueName)), nil
}

func (q *QueueNotifier) Send(ctx context.Context, emails []string, subject, message string) error {
	task, err := NewDonationRequestTask(Request{Emails: emails, Subject: subject, Message: message})
	if err != nil {
		return fmt.Errorf("encode donation request task: %w", err)
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return apperr.Dependency("enqueue donation request", err)
	}
	return nil
}

// HandleDonationRequest delivers queued requests through c. Client errors
// (4xx) are not retried.
func HandleDonationRequest(c *Client, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var req Request
		if err := json.Unmarshal(task.Payload(), &req); err != nil {
			logger.Error("invalid donation request payload", zap.Error(err))
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}

		err := c.Deliver(ctx, req)
		if err == nil {
			logger.Info("donation request delivered", zap.Int("recipients", len(req.Emails)))
			return nil
		}

		var se *StatusError
		if errors.As(err, &se) && se.Code >= http.StatusBadRequest && se.Code < http.StatusInternalServerError {
			logger.Error("donation request rejected", zap.Int("status", se.Code), zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.Warn("donation request delivery failed, will retry", zap.Error(err))
		return err
	}
}

// NewMux routes every task type the worker handles.
func NewMux(c *Client, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDonationRequest, HandleDonationRequest(c, logger))
	return mux
}
