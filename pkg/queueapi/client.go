package queueapi

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/andrei1031/dash-q-v2-front-sub000/config"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	pkgErrors "github.com/andrei1031/dash-q-v2-front-sub000/pkg/errors"
)

// Client is the customer-facing surface of the queue server.
type Client interface {
	Snapshot(ctx context.Context, barberID int64) ([]models.Ticket, error)
	GetTicket(ctx context.Context, ticketID int64) (*models.Ticket, error)
	MissedEvent(ctx context.Context, customerID string) (*models.TicketStatus, error)
	ConfirmAttendance(ctx context.Context, ticketID int64) error
	UploadLocation(ctx context.Context, ticketID int64, distanceMeters float64) error
	JoinQueue(ctx context.Context, req JoinRequest) (*models.Ticket, error)
	LeaveQueue(ctx context.Context, ticketID int64) error
	ListBarbers(ctx context.Context) ([]models.Barber, error)
}

type httpClient struct {
	baseURL string
	hc      *http.Client
}

func NewClient(cfg config.APIConfig) Client {
	return NewClientWithHTTP(cfg.BaseURL, &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

func NewClientWithHTTP(baseURL string, hc *http.Client) Client {
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      hc,
	}
}

func (c *httpClient) Snapshot(ctx context.Context, barberID int64) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/queue/%d", barberID), nil, &tickets); err != nil {
		return nil, err
	}

	// The list endpoint is documented as active-only; drop anything else a
	// lagging view might still carry.
	active := tickets[:0]
	for _, t := range tickets {
		if t.IsActive() {
			active = append(active, t)
		}
	}

	return active, nil
}

func (c *httpClient) GetTicket(ctx context.Context, ticketID int64) (*models.Ticket, error) {
	var t models.Ticket
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tickets/%d", ticketID), nil, &t); err != nil {
		var httpErr *pkgErrors.HTTPError
		if stderrors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, errors.ErrTicketNotFound
		}
		return nil, err
	}

	return &t, nil
}

func (c *httpClient) MissedEvent(ctx context.Context, customerID string) (*models.TicketStatus, error) {
	var out models.MissedEvent
	if err := c.do(ctx, http.MethodGet, "/api/missed-event/"+url.PathEscape(customerID), nil, &out); err != nil {
		return nil, err
	}

	return out.Event, nil
}

func (c *httpClient) ConfirmAttendance(ctx context.Context, ticketID int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/tickets/%d/confirm", ticketID), nil, nil)
}

func (c *httpClient) UploadLocation(ctx context.Context, ticketID int64, distanceMeters float64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/tickets/%d/location", ticketID), locationRequest{
		DistanceMeters: distanceMeters,
	}, nil)
}

func (c *httpClient) JoinQueue(ctx context.Context, req JoinRequest) (*models.Ticket, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal join request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/queue", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrNetworkTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		var cr conflictResponse
		_ = json.NewDecoder(resp.Body).Decode(&cr)
		return nil, &ConflictError{Message: cr.Error, Existing: cr.ExistingTicket}
	}

	if err := checkStatus(resp, http.MethodPost, "/api/queue"); err != nil {
		return nil, err
	}

	var out joinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode join response: %w", err)
	}

	if out.Ticket == nil {
		return nil, fmt.Errorf("join response carried no ticket")
	}

	return out.Ticket, nil
}

func (c *httpClient) LeaveQueue(ctx context.Context, ticketID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/queue/%d", ticketID), nil, nil)
}

func (c *httpClient) ListBarbers(ctx context.Context) ([]models.Barber, error) {
	var barbers []models.Barber
	if err := c.do(ctx, http.MethodGet, "/api/barbers/availability", nil, &barbers); err != nil {
		return nil, err
	}

	return barbers, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrNetworkTransient, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, method, path); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}

	return nil
}

func checkStatus(resp *http.Response, method, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var er errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&er)

	httpErr := pkgErrors.NewHTTPError(method, path, resp.StatusCode, er.Error)
	if httpErr.Temporary() {
		return fmt.Errorf("%w: %w", errors.ErrNetworkTransient, httpErr)
	}

	return httpErr
}
