package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/hupe1980/vaxmesh/logging"
)

// DefaultTimeout bounds every store request.
const DefaultTimeout = 10 * time.Second

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the store (e.g. "http://127.0.0.1:8000").
	BaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with Timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual requests. Defaults to 10 seconds.
	Timeout time.Duration

	// Logger defaults to NoOp when nil.
	Logger logging.Logger
}

// Client is an HTTP client for the vaccination store.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	logger  logging.Logger
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("booking: BaseURL is required")
	}

	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("booking: invalid BaseURL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
		logger:  logger,
	}, nil
}

// ---------------------------------------------------------------------------
// Bookings
// ---------------------------------------------------------------------------

// AvailableSlots lists unbooked slots matching q.
func (c *Client) AvailableSlots(ctx context.Context, auth map[string]string, q SlotQuery) ([]AvailableSlot, error) {
	params := url.Values{}
	params.Set("vaccine_name", q.VaccineName)

	if q.PolyclinicName != "" {
		params.Set("polyclinic_name", q.PolyclinicName)
	}
	if q.StartDate != "" {
		params.Set("start_datetime", q.StartDate)
	}
	if q.EndDate != "" {
		params.Set("end_datetime", q.EndDate)
	}
	if q.PolyclinicLimit > 0 {
		params.Set("polyclinic_limit", strconv.Itoa(q.PolyclinicLimit))
	}
	if q.TimeslotLimit > 0 {
		params.Set("timeslot_limit", strconv.Itoa(q.TimeslotLimit))
	}

	var resp []AvailableSlot
	if err := c.get(ctx, auth, "/bookings/available?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// BookingSlot retrieves a slot with its clinic and vaccine.
func (c *Client) BookingSlot(ctx context.Context, auth map[string]string, id int) (*BookingSlot, error) {
	var resp BookingSlot
	if err := c.get(ctx, auth, "/bookings/"+strconv.Itoa(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Schedule books a slot for the caller.
func (c *Client) Schedule(ctx context.Context, auth map[string]string, bookingSlotID int) (*VaccineRecord, error) {
	body := map[string]any{"booking_slot_id": bookingSlotID}
	var resp VaccineRecord
	if err := c.post(ctx, auth, "/bookings/schedule", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel cancels the booking identified by its vaccine record id.
func (c *Client) Cancel(ctx context.Context, auth map[string]string, recordID int) (map[string]any, error) {
	var resp map[string]any
	if err := c.doDelete(ctx, auth, "/bookings/cancel/"+strconv.Itoa(recordID), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Reschedule moves an existing booking to a new slot.
func (c *Client) Reschedule(ctx context.Context, auth map[string]string, recordID, newSlotID int) (*VaccineRecord, error) {
	body := map[string]any{"vaccine_record_id": recordID, "new_slot_id": newSlotID}
	var resp VaccineRecord
	if err := c.post(ctx, auth, "/bookings/reschedule", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Records, vaccines and clinics
// ---------------------------------------------------------------------------

// Records returns the caller's vaccination records. A store answering
// "No records found." yields an empty list.
func (c *Client) Records(ctx context.Context, auth map[string]string) ([]VaccineRecord, error) {
	var resp []VaccineRecord
	if err := c.get(ctx, auth, "/records", &resp); err != nil {
		if isNoRecords(err) {
			return []VaccineRecord{}, nil
		}
		return nil, err
	}
	return resp, nil
}

// Recommendations returns the vaccines recommended for the caller.
func (c *Client) Recommendations(ctx context.Context, auth map[string]string) ([]Vaccine, error) {
	var resp []Vaccine
	if err := c.get(ctx, auth, "/vaccines/recommendations", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// NearestClinics returns up to limit clinics of type kind closest to the
// caller's address.
func (c *Client) NearestClinics(ctx context.Context, auth map[string]string, kind ClinicType, limit int) ([]Clinic, error) {
	if limit <= 0 {
		limit = 3
	}

	params := url.Values{}
	params.Set(string(kind)+"_limit", strconv.Itoa(limit))

	var resp []Clinic
	if err := c.get(ctx, auth, "/clinic/"+string(kind)+"/nearest?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) post(ctx context.Context, auth map[string]string, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("booking: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("booking: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, auth, dest)
}

func (c *Client) get(ctx context.Context, auth map[string]string, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("booking: create request: %w", err)
	}

	return c.doRequest(req, auth, dest)
}

func (c *Client) doDelete(ctx context.Context, auth map[string]string, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("booking: create request: %w", err)
	}

	return c.doRequest(req, auth, dest)
}

func (c *Client) doRequest(req *http.Request, auth map[string]string, dest any) error {
	for k, v := range auth {
		// The forwarded Content-Type belongs to the caller's request, not ours.
		if strings.EqualFold(k, "Content-Type") && req.Body == nil {
			continue
		}
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")

	otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))

	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("booking.request.failed", "method", req.Method, "path", req.URL.Path, "error", err.Error())
		return fmt.Errorf("booking: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("booking.request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("booking: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return fmt.Errorf("booking: decode response: %w", err)
	}

	return nil
}
