package httpapi

import (
	"context"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"speaker-transcriber/internal/domain"
	"speaker-transcriber/internal/jobs"
)

const writeWait = 10 * time.Second

// events streams a job's events over a websocket until the job reaches a
// terminal state or the client goes away. ?since= resumes after a sequence number.
func (h *Handler) events(c echo.Context) error {
	jobID := c.Param("id")
	ctx := c.Request().Context()
	if _, err := h.svc.Status(ctx, jobID); err != nil {
		return h.fail(c, err)
	}
	since, _ := strconv.ParseInt(c.QueryParam("since"), 10, 64)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warnf("job %s: websocket upgrade: %v", jobID, err)
		return nil
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		done, last, err := h.flush(conn, jobID, since)
		if err != nil {
			h.logger.Warnf("job %s: websocket write: %v", jobID, err)
			return nil
		}
		since = last
		if !done {
			done, err = h.finishIfTerminal(ctx, conn, jobID, since)
			if err != nil {
				h.logger.Warnf("job %s: websocket write: %v", jobID, err)
				return nil
			}
		}
		if done {
			deadline := time.Now().Add(writeWait)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			return nil
		}

		select {
		case <-ticker.C:
		case <-gone:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// flush writes events newer than since and reports whether a terminal one was sent.
func (h *Handler) flush(conn *websocket.Conn, jobID string, since int64) (bool, int64, error) {
	for _, event := range h.svc.JobEvents(jobID, since) {
		if err := writeEvent(conn, event); err != nil {
			return false, since, err
		}
		since = event.Seq
		if event.Terminal() {
			return true, since, nil
		}
	}
	return false, since, nil
}

// finishIfTerminal covers jobs whose terminal event is no longer buffered,
// such as jobs loaded from the durable store after a restart.
func (h *Handler) finishIfTerminal(ctx context.Context, conn *websocket.Conn, jobID string, since int64) (bool, error) {
	job, err := h.svc.Status(ctx, jobID)
	if err != nil || !job.Status.IsTerminal() {
		return false, nil
	}

	// The terminal event is published just after the state changes.
	done, _, err := h.flush(conn, jobID, since)
	if err != nil || done {
		return done, err
	}

	kind := jobs.EventTypeResult
	if job.Status == domain.JobStatusFailed {
		kind = jobs.EventTypeError
	}
	return true, writeEvent(conn, jobs.Event{
		Timestamp: job.UpdatedAt,
		JobID:     job.ID,
		Type:      kind,
		Status:    job.Status,
		Progress:  job.Progress,
		Message:   job.Message,
		Error:     job.Error,
	})
}

func writeEvent(conn *websocket.Conn, event jobs.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
