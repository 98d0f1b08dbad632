package roster_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"task-registry-service/internal/contextkeys"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/port"
)

// Client - клиент сервиса-коллаборатора (пула исполнителей).
// Оповещение fire-and-forget: к моменту вызова запись в реестр уже
// зафиксирована, поэтому любые сбои здесь только логируются. Ретраев нет —
// принятое ограничение, семантика доставки "как получится, хотя бы один раз
// при живом коллабораторе".
type Client struct {
	baseURL       string
	publicBaseURL string
	httpClient    *http.Client
}

func NewClient(baseURL, publicBaseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		publicBaseURL: publicBaseURL,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) doRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	traceID := contextkeys.TraceIDFromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	if traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// NotifyTaskAdded отправляет коллаборатору оповещение о новой задаче
func (c *Client) NotifyTaskAdded(ctx context.Context, event domain.TaskAddedEvent) {
	logger := contextkeys.LoggerFromContext(ctx)
	clientLogger := logger.WithFields(port.Fields{
		"component": "RosterClient",
		"method":    "NotifyTaskAdded",
		"task_id":   event.TaskID,
	})

	notification := newTaskNotification{
		Location:     c.publicBaseURL + "/tasks/" + event.TaskID,
		TaskListName: event.TaskListName,
	}
	reqBody, _ := json.Marshal(notification)

	url := c.baseURL + "/roster/newtask/"
	clientLogger.Debug("Sending new task notification", port.Fields{"url": url, "location": notification.Location})

	resp, err := c.doRequest(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		// Запись уже зафиксирована, откатывать нечего — только логируем
		clientLogger.Error("Failed to notify roster about new task", err, nil)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("roster returned non-success status code %d: %s", resp.StatusCode, string(bodyBytes))
		clientLogger.Error("Received error response from roster", err, port.Fields{"status_code": resp.StatusCode})
		return
	}

	clientLogger.Info("Roster notified about new task", nil)
}
