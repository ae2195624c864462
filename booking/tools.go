package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/tool"
)

// CapabilityID names a direct tool. The set is closed: the catalog built by
// NewCatalog accepts exactly these ids.
type CapabilityID string

const (
	StandardiseVaccineNameID    CapabilityID = "standardise_vaccine_name"
	GetClinicNameResponseHelper CapabilityID = "get_clinic_name_response_helper"
	GetNearestClinics           CapabilityID = "get_nearest_clinics"
	GetAvailableSlots           CapabilityID = "get_available_slots"
	GetBookingSlot              CapabilityID = "get_booking_slot"
	NewAppointment              CapabilityID = "new_appointment"
	CancelAppointment           CapabilityID = "cancel_appointment"
	RescheduleAppointment       CapabilityID = "reschedule_appointment"
	FetchVaccinationHistory     CapabilityID = "fetch_vaccination_history"
	RecommendVaccines           CapabilityID = "recommend_vaccines"
)

// Capabilities returns every capability id.
func Capabilities() []CapabilityID {
	return []CapabilityID{
		StandardiseVaccineNameID,
		GetClinicNameResponseHelper,
		GetNearestClinics,
		GetAvailableSlots,
		GetBookingSlot,
		NewAppointment,
		CancelAppointment,
		RescheduleAppointment,
		FetchVaccinationHistory,
		RecommendVaccines,
	}
}

// String implements fmt.Stringer.
func (id CapabilityID) String() string { return string(id) }

// NewCatalog builds the closed tool catalog with every capability bound to client.
func NewCatalog(client *Client) (*tool.Catalog, error) {
	ids := Capabilities()

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}

	catalog := tool.NewCatalog(names...)

	for _, t := range NewTools(client) {
		if err := catalog.Register(t); err != nil {
			return nil, err
		}
	}

	return catalog, nil
}

// NewTools returns the tools of every capability bound to client.
func NewTools(client *Client) []tool.Tool {
	t := &tools{client: client}

	return []tool.Tool{
		tool.NewFunctionToolFromStruct(StandardiseVaccineNameID.String(),
			"Convert the vaccine name the user mentioned to its official name.",
			standardiseArgs{}, t.standardiseVaccineName),
		tool.NewFunctionToolFromStruct(GetClinicNameResponseHelper.String(),
			"Record the clinic the user named, or get the question to ask when no clinic was named. Pass 'Not found' if the user did not name a clinic.",
			clinicNameArgs{}, t.clinicNameResponseHelper),
		tool.NewFunctionToolFromStruct(GetNearestClinics.String(),
			"List the clinics nearest to the user's address.",
			nearestClinicsArgs{}, t.nearestClinics),
		tool.NewFunctionToolFromStruct(GetAvailableSlots.String(),
			"List available vaccination slots. Vaccine, clinic and dates default to what the conversation already established.",
			availableSlotsArgs{}, t.availableSlots),
		tool.NewFunctionToolFromStruct(GetBookingSlot.String(),
			"Get the details of a booking slot by id.",
			bookingSlotArgs{}, t.bookingSlot),
		tool.NewFunctionToolFromStruct(NewAppointment.String(),
			"Book the vaccination slot with the given booking slot id.",
			bookingSlotArgs{}, t.newAppointment),
		tool.NewFunctionToolFromStruct(CancelAppointment.String(),
			"Cancel an existing appointment by its vaccination record id.",
			cancelArgs{}, t.cancelAppointment),
		tool.NewFunctionToolFromStruct(RescheduleAppointment.String(),
			"Move an existing appointment to a new booking slot.",
			rescheduleArgs{}, t.rescheduleAppointment),
		tool.NewFunctionTool(FetchVaccinationHistory.String(),
			"Get the user's past vaccinations and bookings.",
			nil, t.fetchVaccinationHistory),
		tool.NewFunctionTool(RecommendVaccines.String(),
			"Get vaccine recommendations for the user.",
			nil, t.recommendVaccines),
	}
}

type standardiseArgs struct {
	VaccineName string `json:"vaccine_name" description:"Vaccine name as mentioned by the user"`
}

type clinicNameArgs struct {
	ClinicName string `json:"clinic_name" description:"Clinic name found in the conversation, or 'Not found'"`
}

type nearestClinicsArgs struct {
	ClinicType string `json:"clinic_type,omitempty" description:"polyclinic (default) or gp" enum:"polyclinic,gp"`
	Limit      int    `json:"limit,omitempty" description:"Maximum number of clinics (default 3)"`
}

type availableSlotsArgs struct {
	VaccineName    string `json:"vaccine_name,omitempty" description:"Official vaccine name"`
	PolyclinicName string `json:"polyclinic_name,omitempty" description:"Polyclinic name"`
	StartDate      string `json:"start_date,omitempty" description:"First day to search, YYYY-MM-DD"`
	EndDate        string `json:"end_date,omitempty" description:"Last day to search, YYYY-MM-DD"`
	TimeslotLimit  int    `json:"timeslot_limit,omitempty" description:"Maximum slots per clinic"`
}

type bookingSlotArgs struct {
	BookingSlotID int `json:"booking_slot_id" description:"Booking slot id"`
}

type cancelArgs struct {
	RecordID int `json:"record_id" description:"Vaccination record id of the appointment"`
}

type rescheduleArgs struct {
	VaccineRecordID int `json:"vaccine_record_id" description:"Vaccination record id of the appointment"`
	NewSlotID       int `json:"new_slot_id" description:"Booking slot id to move to"`
}

// NameMatch is the result of standardise_vaccine_name.
type NameMatch struct {
	Matched  bool     `json:"matched"`
	Vaccine  string   `json:"vaccine,omitempty"`
	Vaccines []string `json:"vaccines,omitempty"`
	Message  string   `json:"message"`
}

// BookingConfirmation is returned by appointment changes.
type BookingConfirmation struct {
	Record VaccineRecord `json:"record"`
	Slot   *BookingSlot  `json:"slot,omitempty"`
}

const (
	noMatchMessage = "The vaccine name does not match any vaccine we offer. Hand off to recommender_agent."
	askClinic      = "Which clinic would you like to get vaccinated at? You can name a polyclinic, or ask for the clinics nearest to you."
)

type tools struct {
	client *Client
}

func (t *tools) standardiseVaccineName(tc *core.ToolContext, args map[string]any) (any, error) {
	input, _ := args["vaccine_name"].(string)

	name, ok := StandardiseVaccineName(input)
	if !ok {
		tc.SetDataType(core.DataTypeVaccineList)
		tc.LogDebug("booking.vaccine.unmatched", "input", input)

		return NameMatch{Vaccines: append([]string(nil), CanonicalVaccines...), Message: noMatchMessage}, nil
	}

	tc.UpdateSession(func(s *core.UserSessionContext) { s.Vaccine = name })

	return NameMatch{Matched: true, Vaccine: name, Message: name}, nil
}

func (t *tools) clinicNameResponseHelper(tc *core.ToolContext, args map[string]any) (any, error) {
	clinic := strings.TrimSpace(stringArg(args, "clinic_name"))

	if clinic == "" || strings.EqualFold(clinic, "not found") {
		return askClinic, nil
	}

	tc.UpdateSession(func(s *core.UserSessionContext) { s.Clinic = clinic })

	return clinic, nil
}

func (t *tools) nearestClinics(tc *core.ToolContext, args map[string]any) (any, error) {
	kind := ClinicPolyclinic
	if strings.EqualFold(stringArg(args, "clinic_type"), string(ClinicGP)) {
		kind = ClinicGP
	}

	clinics, err := t.client.NearestClinics(tc.Context(), tc.AuthHeader(), kind, intArg(args, "limit"))
	if err != nil {
		return nil, storeError(GetNearestClinics, err)
	}

	tc.SetDataType(core.DataTypeClinicList)

	return clinics, nil
}

func (t *tools) availableSlots(tc *core.ToolContext, args map[string]any) (any, error) {
	sess := tc.Session()

	vaccine := stringArg(args, "vaccine_name")
	if name, ok := StandardiseVaccineName(vaccine); ok {
		vaccine = name
	}
	if vaccine == "" {
		vaccine = sess.Vaccine
	}
	if vaccine == "" {
		return nil, tool.NewToolError(GetAvailableSlots.String(), "no vaccine chosen yet; ask the user which vaccine they want", tool.CodeValidation)
	}

	clinic := firstNonEmpty(stringArg(args, "polyclinic_name"), sess.Clinic)
	start := firstNonEmpty(stringArg(args, "start_date"), sess.Date)
	end := stringArg(args, "end_date")

	if end == "" && start != "" {
		if d, err := time.Parse(core.DateLayout, start); err == nil {
			end = d.AddDate(0, 0, 3).Format(core.DateLayout)
		}
	}

	slots, err := t.client.AvailableSlots(tc.Context(), tc.AuthHeader(), SlotQuery{
		VaccineName:     vaccine,
		PolyclinicName:  clinic,
		StartDate:       start,
		EndDate:         end,
		PolyclinicLimit: 3,
		TimeslotLimit:   intArg(args, "timeslot_limit"),
	})
	if err != nil {
		return nil, storeError(GetAvailableSlots, err)
	}

	options := make([]SlotOption, len(slots))
	for i, s := range slots {
		options[i] = SlotOption{
			BookingSlotID:  s.ID,
			Datetime:       s.Datetime,
			PolyclinicName: s.Polyclinic.Name,
			PolyclinicID:   s.Polyclinic.ID,
			VaccineID:      s.VaccineID,
		}
	}

	tc.UpdateSession(func(s *core.UserSessionContext) {
		s.Vaccine = vaccine
		if clinic != "" {
			s.Clinic = clinic
		}
	})
	tc.SetDataType(core.DataTypeSlotList)

	return options, nil
}

func (t *tools) bookingSlot(tc *core.ToolContext, args map[string]any) (any, error) {
	slot, err := t.client.BookingSlot(tc.Context(), tc.AuthHeader(), intArg(args, "booking_slot_id"))
	if err != nil {
		return nil, storeError(GetBookingSlot, err)
	}

	tc.SetDataType(core.DataTypeBooking)

	return slot, nil
}

func (t *tools) newAppointment(tc *core.ToolContext, args map[string]any) (any, error) {
	slotID := intArg(args, "booking_slot_id")

	record, err := t.client.Schedule(tc.Context(), tc.AuthHeader(), slotID)
	if err != nil {
		return nil, storeError(NewAppointment, err)
	}

	return t.confirm(tc, *record, record.BookingSlotID), nil
}

func (t *tools) cancelAppointment(tc *core.ToolContext, args map[string]any) (any, error) {
	recordID := intArg(args, "record_id")

	resp, err := t.client.Cancel(tc.Context(), tc.AuthHeader(), recordID)
	if err != nil {
		return nil, storeError(CancelAppointment, err)
	}

	finishBooking(tc)

	return resp, nil
}

func (t *tools) rescheduleAppointment(tc *core.ToolContext, args map[string]any) (any, error) {
	record, err := t.client.Reschedule(tc.Context(), tc.AuthHeader(), intArg(args, "vaccine_record_id"), intArg(args, "new_slot_id"))
	if err != nil {
		return nil, storeError(RescheduleAppointment, err)
	}

	return t.confirm(tc, *record, record.BookingSlotID), nil
}

// confirm attaches the slot details to a changed booking. A failed lookup
// still confirms the change.
func (t *tools) confirm(tc *core.ToolContext, record VaccineRecord, slotID int) BookingConfirmation {
	conf := BookingConfirmation{Record: record}

	if slotID > 0 {
		slot, err := t.client.BookingSlot(tc.Context(), tc.AuthHeader(), slotID)
		if err != nil {
			tc.LogWarn("booking.confirm.slot_lookup_failed", "booking_slot_id", slotID, "error", err.Error())
		} else {
			conf.Slot = slot
		}
	}

	finishBooking(tc)

	return conf
}

// finishBooking clears the half-filled booking and routes the next message
// back to the top-level agent.
func finishBooking(tc *core.ToolContext) {
	tc.UpdateSession(func(s *core.UserSessionContext) {
		s.Vaccine = ""
		s.Clinic = ""
		s.Restart = true
	})
	tc.SetDataType(core.DataTypeBooking)
}

func (t *tools) fetchVaccinationHistory(tc *core.ToolContext, _ map[string]any) (any, error) {
	auth := tc.AuthHeader()

	records, err := t.client.Records(tc.Context(), auth)
	if err != nil {
		return nil, storeError(FetchVaccinationHistory, err)
	}

	history := make([]HistoryEntry, len(records))

	var g errgroup.Group
	g.SetLimit(4)

	for i, r := range records {
		history[i] = HistoryEntry{
			VaccinationBookingID: r.ID,
			Status:               r.Status,
			BookingSlotID:        r.BookingSlotID,
		}

		g.Go(func() error {
			slot, err := t.client.BookingSlot(tc.Context(), auth, r.BookingSlotID)
			if err != nil {
				tc.LogDebug("booking.history.slot_lookup_failed", "booking_slot_id", r.BookingSlotID, "error", err.Error())
				return nil
			}

			history[i].VaccineName = slot.Vaccine.Name
			history[i].Datetime = slot.Datetime
			history[i].Polyclinic = slot.Polyclinic.Name

			return nil
		})
	}

	_ = g.Wait()

	tc.SetDataType(core.DataTypeRecords)

	return history, nil
}

func (t *tools) recommendVaccines(tc *core.ToolContext, _ map[string]any) (any, error) {
	vaccines, err := t.client.Recommendations(tc.Context(), tc.AuthHeader())
	if err != nil {
		return nil, storeError(RecommendVaccines, err)
	}

	names := make([]string, len(vaccines))
	for i, v := range vaccines {
		names[i] = v.Name
	}

	tc.UpdateSession(func(s *core.UserSessionContext) {
		s.VaccineRecommendations = strings.Join(names, ", ")
	})
	tc.SetDataType(core.DataTypeRecommendations)

	return vaccines, nil
}

// storeError converts a client error into a recoverable STORE_ERROR carrying
// the store's detail message.
func storeError(id CapabilityID, err error) error {
	te := tool.WrapToolError(id.String(), tool.CodeStore, err)

	var apiErr *Error
	if errors.As(err, &apiErr) {
		te.Message = apiErr.Detail
		te.Details = map[string]any{"status": apiErr.StatusCode}
	}

	return te
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
