package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var testAuth = map[string]string{
	"Authorization": "Bearer token-123",
	"Content-Type":  "application/json",
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestClient_AvailableSlots(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/bookings/available", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Content-Type"), "no body, no content type")

		q := r.URL.Query()
		assert.Equal(t, "Influenza (INF)", q.Get("vaccine_name"))
		assert.Equal(t, "Bukit Batok Polyclinic", q.Get("polyclinic_name"))
		assert.Equal(t, "2024-06-29", q.Get("start_datetime"))
		assert.Equal(t, "2024-07-02", q.Get("end_datetime"))
		assert.Equal(t, "3", q.Get("polyclinic_limit"))
		assert.False(t, q.Has("timeslot_limit"))

		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 7, "datetime": "2024-06-30T09:00:00", "vaccine_id": 1, "polyclinic": map[string]any{"id": 2, "name": "Bukit Batok Polyclinic"}},
		})
	})

	slots, err := c.AvailableSlots(context.Background(), testAuth, SlotQuery{
		VaccineName:     "Influenza (INF)",
		PolyclinicName:  "Bukit Batok Polyclinic",
		StartDate:       "2024-06-29",
		EndDate:         "2024-07-02",
		PolyclinicLimit: 3,
	})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 7, slots[0].ID)
	assert.Equal(t, "Bukit Batok Polyclinic", slots[0].Polyclinic.Name)
}

func TestClient_Schedule(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bookings/schedule", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 7, body["booking_slot_id"])

		writeJSON(w, http.StatusCreated, map[string]any{"id": 11, "user_id": 1, "booking_slot_id": 7, "status": "booked"})
	})

	rec, err := c.Schedule(context.Background(), testAuth, 7)
	require.NoError(t, err)
	assert.Equal(t, 11, rec.ID)
	assert.Equal(t, "booked", rec.Status)
}

func TestClient_Reschedule(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookings/reschedule", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 11, body["vaccine_record_id"])
		assert.EqualValues(t, 8, body["new_slot_id"])

		writeJSON(w, http.StatusOK, map[string]any{"id": 11, "booking_slot_id": 8, "status": "booked"})
	})

	rec, err := c.Reschedule(context.Background(), nil, 11, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, rec.BookingSlotID)
}

func TestClient_Cancel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/bookings/cancel/11", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"message": "Booking cancelled"})
	})

	resp, err := c.Cancel(context.Background(), testAuth, 11)
	require.NoError(t, err)
	assert.Equal(t, "Booking cancelled", resp["message"])
}

func TestClient_ErrorDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Booking slot is already taken."})
	})

	_, err := c.Schedule(context.Background(), testAuth, 7)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Booking slot is already taken.", apiErr.Detail)
	assert.False(t, IsNotFound(err))
}

func TestClient_ErrorWithoutDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Recommendations(context.Background(), testAuth)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Detail)
}

func TestClient_Records(t *testing.T) {
	t.Run("no records is empty", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": NoRecordsDetail})
		})

		recs, err := c.Records(context.Background(), testAuth)
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.NotNil(t, recs)
	})

	t.Run("other 404 is an error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "User not found."})
		})

		_, err := c.Records(context.Background(), testAuth)
		assert.True(t, IsNotFound(err))
	})
}

func TestClient_NearestClinics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/clinic/gp/nearest", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("gp_limit"))
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "Healthway Medical", "address": "1 Jurong West"}})
	})

	clinics, err := c.NearestClinics(context.Background(), testAuth, ClinicGP, 0)
	require.NoError(t, err)
	require.Len(t, clinics, 1)
	assert.Equal(t, "1 Jurong West", clinics[0].Address)
}
