// Package check executes health checks and evaluates their results.
package check

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"projectmonitor/internal/criteria"
	"projectmonitor/internal/logging"
	"projectmonitor/internal/models"
	"projectmonitor/internal/transport"
	"projectmonitor/internal/tree"
)

// Recorder observes executed checks.
type Recorder interface {
	ObserveCheck(projectName string, up bool, elapsed time.Duration)
}

// Executor runs health checks through a transport.Sender.
type Executor struct {
	sender   transport.Sender
	recorder Recorder
	log      *logrus.Entry
}

// NewExecutor creates an executor. recorder may be nil.
func NewExecutor(sender transport.Sender, recorder Recorder) *Executor {
	return &Executor{
		sender:   sender,
		recorder: recorder,
		log:      logging.WithPrefix("check"),
	}
}

// Execute performs hc for projectName. Failures never escape: they resolve
// into a status that is down. token is sent as a bearer token when the check
// opts into the general token.
func (e *Executor) Execute(ctx context.Context, hc models.HealthCheck, projectName, token string) models.HealthCheckStatus {
	started := time.Now()
	method := strings.ToUpper(strings.TrimSpace(hc.Method))
	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string, len(hc.Headers)+1)
	for key, value := range hc.Headers {
		headers[key] = value
	}
	if hc.UseGeneralToken {
		headers["Authorization"] = models.TokenTypeBearer + " " + token
	}

	var (
		status *int
		body   any
	)
	resp, err := e.sender.Send(ctx, transport.Request{
		Method:  method,
		URL:     hc.Path,
		Headers: headers,
		Body:    hc.RequestBody,
	})
	if err != nil {
		if code, ok := transport.StatusCodeOf(err); ok {
			status = &code
		}
		body = errorMessage(err)
		e.log.WithError(err).WithFields(logrus.Fields{
			"project": projectName,
			"path":    hc.Path,
		}).Debug("health check call failed")
	} else {
		code := resp.StatusCode
		status = &code
		body = transport.DecodeBody(resp.Body)
	}

	result := criteria.Evaluate(hc.SuccessCriteria, status, body)
	if e.recorder != nil {
		e.recorder.ObserveCheck(projectName, result.Up, time.Since(started))
	}

	return models.HealthCheckStatus{
		ResponseBody:        body,
		Status:              status,
		Path:                hc.Path,
		Method:              method,
		Timestamp:           started.UTC().Format(time.RFC3339Nano),
		Up:                  result.Up,
		ProjectName:         projectName,
		InvalidResponseBody: result.InvalidResponseBody,
		SuccessCriteria:     hc.SuccessCriteria,
		HealthCheckName:     hc.Name,
	}
}

// Dispatch runs all executions concurrently and waits for every one to
// finish. Results are in the order of executions.
func (e *Executor) Dispatch(ctx context.Context, executions []tree.Execution, token string) []models.HealthCheckStatus {
	results := make([]models.HealthCheckStatus, len(executions))

	var g errgroup.Group
	for i, execution := range executions {
		g.Go(func() error {
			results[i] = e.Execute(ctx, execution.HealthCheck, execution.ProjectName, token)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func errorMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return err.Error()
}
