package tools

import "github.com/wolfman30/medspa-concierge/internal/llm"

func str(desc string) *llm.Schema { return &llm.Schema{Type: "string", Description: desc} }

func object(required []string, props map[string]*llm.Schema) *llm.Schema {
	return &llm.Schema{Type: "object", Properties: props, Required: required}
}

// Definitions returns the tool declarations sent with every model request.
func Definitions() []llm.ToolSpec {
	return []llm.ToolSpec{
		{
			Name:        string(GetAvailability),
			Description: "List open appointment start times for a provider on a date, in clinic-local HH:MM.",
			Parameters: object([]string{"provider", "date"}, map[string]*llm.Schema{
				"provider": str("Provider name as the patient said it"),
				"date":     str("Calendar date, YYYY-MM-DD"),
			}),
		},
		{
			Name:        string(CreateAppointment),
			Description: "Book an appointment. Only call after the patient picked a time.",
			Parameters: object([]string{"patient_contact", "provider", "service", "start"}, map[string]*llm.Schema{
				"patient_contact":   str("Patient phone number or email"),
				"provider":          str("Provider name"),
				"service":           str("Requested service, e.g. Botox"),
				"start":             str("Start time, YYYY-MM-DDTHH:MM in clinic time or RFC 3339"),
				"patient_confirmed": {Type: "boolean", Description: "True once the patient explicitly agreed to the booking details"},
			}),
		},
		{
			Name:        string(RescheduleAppointment),
			Description: "Move an existing appointment to a new start time.",
			Parameters: object([]string{"id", "new_start"}, map[string]*llm.Schema{
				"id":        str("Appointment id"),
				"new_start": str("New start time, YYYY-MM-DDTHH:MM in clinic time or RFC 3339"),
			}),
		},
		{
			Name:        string(CancelAppointment),
			Description: "Cancel an appointment.",
			Parameters: object([]string{"id"}, map[string]*llm.Schema{
				"id": str("Appointment id"),
			}),
		},
		{
			Name:        string(ConfirmAppointment),
			Description: "Confirm an appointment, or restore a cancelled one if its time is still free.",
			Parameters: object([]string{"id"}, map[string]*llm.Schema{
				"id": str("Appointment id"),
			}),
		},
		{
			Name:        string(FAQ),
			Description: "Look up clinic information: address, pricing or payment plans.",
			Parameters: object([]string{"topic"}, map[string]*llm.Schema{
				"topic":    {Type: "string", Enum: []string{"address", "price", "plans"}},
				"question": str("The patient's question in their own words"),
			}),
		},
	}
}
