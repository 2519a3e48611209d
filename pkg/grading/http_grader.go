package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/pkg/config"
)

// ErrUnavailable is returned when the grader cannot produce a verdict.
var ErrUnavailable = errors.New("grading: service unavailable")

type gradeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type gradeResponse struct {
	Result string `json:"result"`
	Passed *bool  `json:"passed,omitempty"`
}

// HTTPGrader calls an external grading service over HTTP.
type HTTPGrader struct {
	client *resty.Client
}

// NewHTTPGrader configures a resty client against cfg.URL.
func NewHTTPGrader(cfg config.GradingConfig) *HTTPGrader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &HTTPGrader{client: client}
}

// Grade posts the submission to /grade and maps the verdict. Transport
// failures, non 2xx statuses and unknown verdicts wrap ErrUnavailable.
func (g *HTTPGrader) Grade(ctx context.Context, code, language string) (models.SubmissionResult, error) {
	var out gradeResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(gradeRequest{Code: code, Language: language}).
		SetResult(&out).
		Post("/grade")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	return out.verdict()
}

func (r gradeResponse) verdict() (models.SubmissionResult, error) {
	result := models.SubmissionResult(strings.ToLower(strings.TrimSpace(r.Result)))
	if result.Valid() {
		return result, nil
	}
	if r.Result == "" && r.Passed != nil {
		if *r.Passed {
			return models.SubmissionPass, nil
		}
		return models.SubmissionFail, nil
	}
	return "", fmt.Errorf("%w: unexpected verdict %q", ErrUnavailable, r.Result)
}
