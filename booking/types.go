package booking

// Clinic is a polyclinic or general practitioner.
type Clinic struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Vaccine is a vaccine offered by the store.
type Vaccine struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price,omitempty"`
	DosesRequired  int     `json:"doses_required,omitempty"`
	AgeCriteria    string  `json:"age_criteria,omitempty"`
	GenderCriteria string  `json:"gender_criteria,omitempty"`
}

// AvailableSlot is an unbooked slot as listed by /bookings/available.
type AvailableSlot struct {
	ID         int    `json:"id"`
	Datetime   string `json:"datetime"`
	VaccineID  int    `json:"vaccine_id"`
	Polyclinic Clinic `json:"polyclinic"`
}

// BookingSlot is a slot with its clinic and vaccine resolved.
type BookingSlot struct {
	ID         int     `json:"id"`
	Datetime   string  `json:"datetime"`
	Polyclinic Clinic  `json:"polyclinic"`
	Vaccine    Vaccine `json:"vaccine"`
}

// VaccineRecord is a user's booking or completed vaccination.
type VaccineRecord struct {
	ID            int    `json:"id"`
	UserID        int    `json:"user_id"`
	BookingSlotID int    `json:"booking_slot_id"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// ClinicType selects the nearest-clinic endpoint.
type ClinicType string

const (
	ClinicPolyclinic ClinicType = "polyclinic"
	ClinicGP         ClinicType = "gp"
)

// SlotQuery filters available slots. Empty fields are omitted.
type SlotQuery struct {
	VaccineName     string
	PolyclinicName  string
	StartDate       string
	EndDate         string
	PolyclinicLimit int
	TimeslotLimit   int
}

// SlotOption is the compact slot shape handed to the model.
type SlotOption struct {
	BookingSlotID  int    `json:"booking_slot_id"`
	Datetime       string `json:"datetime"`
	PolyclinicName string `json:"polyclinic_name"`
	PolyclinicID   int    `json:"polyclinic_id"`
	VaccineID      int    `json:"vaccine_id"`
}

// HistoryEntry is a vaccination record enriched with the vaccine name.
type HistoryEntry struct {
	VaccinationBookingID int    `json:"vaccination_booking_id"`
	Status               string `json:"status"`
	BookingSlotID        int    `json:"booking_slot_id"`
	VaccineName          string `json:"vaccine_name,omitempty"`
	Datetime             string `json:"datetime,omitempty"`
	Polyclinic           string `json:"polyclinic,omitempty"`
}
