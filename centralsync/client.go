package centralsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// RemoteService is the central change-management API surface the coordinator
// consumes. Implemented by centralClient; faked in tests.
type RemoteService interface {
	ListChangeRequests(ctx context.Context, token string, params url.Values) (listResponse, error)
	SubmitInspection(ctx context.Context, token string, ticketId string, payload InspectionPayload) (pushEnvelope, error)
	SubmitSchedule(ctx context.Context, token string, ticketId string, payload SchedulePayload) (pushEnvelope, error)
	SubmitImplementationResult(ctx context.Context, token string, ticketId string, payload ImplementationResultPayload) (pushEnvelope, error)
	PushToExternalSystem(ctx context.Context, token string, payload ExternalPushPayload) (pushEnvelope, error)
}

const defaultBaseURL = "https://central.changedesk.io"

type centralClient struct {
	baseURL string
	http    *http.Client
	limiter <-chan time.Time
}

func NewCentralClient() RemoteService {
	baseURL := strings.TrimSpace(os.Getenv("CENTRAL_API_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("CENTRAL_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &centralClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: time.Tick(interval),
	}
}

func (c *centralClient) ListChangeRequests(ctx context.Context, token string, params url.Values) (listResponse, error) {
	<-c.limiter
	endpoint := c.baseURL + "/v1/change-requests"
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return listResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return listResponse{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		return listResponse{}, ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return listResponse{}, fmt.Errorf("%w: status %d: %s", ErrRemoteRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return listResponse{}, err
	}
	return parsed, nil
}

func (c *centralClient) SubmitInspection(ctx context.Context, token string, ticketId string, payload InspectionPayload) (pushEnvelope, error) {
	return c.post(ctx, token, "/v1/change-requests/"+url.PathEscape(ticketId)+"/inspection", payload)
}

func (c *centralClient) SubmitSchedule(ctx context.Context, token string, ticketId string, payload SchedulePayload) (pushEnvelope, error) {
	return c.post(ctx, token, "/v1/change-requests/"+url.PathEscape(ticketId)+"/schedule", payload)
}

func (c *centralClient) SubmitImplementationResult(ctx context.Context, token string, ticketId string, payload ImplementationResultPayload) (pushEnvelope, error) {
	return c.post(ctx, token, "/v1/change-requests/"+url.PathEscape(ticketId)+"/implementation-result", payload)
}

func (c *centralClient) PushToExternalSystem(ctx context.Context, token string, payload ExternalPushPayload) (pushEnvelope, error) {
	return c.post(ctx, token, "/v1/external-systems/push", payload)
}

func (c *centralClient) post(ctx context.Context, token string, path string, payload interface{}) (pushEnvelope, error) {
	<-c.limiter
	data, err := json.Marshal(payload)
	if err != nil {
		return pushEnvelope{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return pushEnvelope{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pushEnvelope{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		return pushEnvelope{}, ErrSessionExpired
	}

	var envelope pushEnvelope
	_ = json.Unmarshal(body, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(envelope.Message)
		if message == "" {
			message = strings.TrimSpace(string(body))
		}
		return envelope, fmt.Errorf("%w: status %d: %s", ErrRemoteRejected, resp.StatusCode, message)
	}
	if !envelope.Success && strings.TrimSpace(envelope.Message) != "" {
		return envelope, fmt.Errorf("%w: %s", ErrRemoteRejected, envelope.Message)
	}
	return envelope, nil
}
