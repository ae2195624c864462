// Package roster defines the vaccination assistant's agents: who routes,
// who books, who answers, and which agent may hand a conversation to which.
package roster

import (
	"github.com/hupe1980/vaxmesh/agent"
	"github.com/hupe1980/vaxmesh/booking"
	"github.com/hupe1980/vaxmesh/tool"
)

// Agent names. Each doubles as the agent's bus topic.
const (
	Orchestrator        = "orchestrator_agent"
	Appointments        = "appointments_agent"
	HandleVaccineNames  = "handle_vaccine_names_agent"
	IdentifyClinic      = "identify_clinic_agent"
	CheckAvailableSlots = "check_available_slots_agent"
	ManageAppointment   = "manage_appointment_agent"
	VaccinationRecords  = "vaccination_records_agent"
	Recommender         = "recommender_agent"
	GeneralQuestions    = "general_questions_agent"
)

// Definitions returns the roster. The orchestrator comes first.
func Definitions() []agent.Definition {
	return []agent.Definition{
		{
			Name:        Orchestrator,
			Description: "Routes the user to the agent that can help.",
			Instruction: agent.NewInstructionFromText(handoffPreamble + orchestratorInstruction),
			Delegates:   []string{Appointments, Recommender, VaccinationRecords, GeneralQuestions},
			Resumable:   true,
		},
		{
			Name:        Appointments,
			Description: "Handles booking, rescheduling and cancelling vaccination appointments.",
			Instruction: agent.NewInstructionFromText(handoffPreamble + appointmentsInstruction),
			Delegates:   []string{HandleVaccineNames, ManageAppointment},
			Resumable:   true,
		},
		{
			Name:        HandleVaccineNames,
			Description: "Works out which vaccine the user wants to book.",
			Instruction: agent.NewInstructionFromText(bookingTeamPreamble + handleVaccineNamesInstruction),
			Tools:       []string{booking.StandardiseVaccineNameID.String()},
			Delegates:   []string{IdentifyClinic, Recommender},
			Resumable:   true,
		},
		{
			Name:        IdentifyClinic,
			Description: "Works out at which clinic the user wants to be vaccinated.",
			Instruction: agent.NewInstructionFromText(bookingTeamPreamble + identifyClinicInstruction),
			Tools:       []string{booking.GetClinicNameResponseHelper.String(), booking.GetNearestClinics.String()},
			Delegates:   []string{CheckAvailableSlots},
			Resumable:   true,
		},
		{
			Name:        CheckAvailableSlots,
			Description: "Finds available vaccination slots at the chosen clinic.",
			Instruction: agent.NewInstructionFromText(bookingTeamPreamble + checkAvailableSlotsInstruction),
			Tools:       []string{booking.GetAvailableSlots.String()},
			Delegates:   []string{ManageAppointment},
			Resumable:   true,
		},
		{
			Name:        ManageAppointment,
			Description: "Books, reschedules or cancels a vaccination appointment.",
			Instruction: agent.NewInstructionFromText(manageAppointmentInstruction),
			Tools: []string{
				booking.NewAppointment.String(),
				booking.CancelAppointment.String(),
				booking.RescheduleAppointment.String(),
				booking.GetBookingSlot.String(),
			},
			OneShot: true,
		},
		{
			Name:        VaccinationRecords,
			Description: "Shows the user's past vaccinations and bookings.",
			Instruction: agent.NewInstructionFromText(vaccinationRecordsInstruction),
			Tools:       []string{booking.FetchVaccinationHistory.String()},
			OneShot:     true,
		},
		{
			Name:        Recommender,
			Description: "Recommends vaccines for the user.",
			Instruction: agent.NewInstructionFromText(recommenderInstruction),
			Tools:       []string{booking.RecommendVaccines.String(), booking.FetchVaccinationHistory.String()},
			OneShot:     true,
		},
		{
			Name:        GeneralQuestions,
			Description: "Answers general questions about vaccination.",
			Instruction: agent.NewInstructionFromText(generalQuestionsInstruction),
			OneShot:     true,
		},
	}
}

// NewRegistry validates the roster against catalog.
func NewRegistry(catalog *tool.Catalog) (*agent.Registry, error) {
	return agent.NewRegistry(catalog, Orchestrator, Definitions()...)
}
