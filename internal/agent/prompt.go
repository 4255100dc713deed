package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/medspa-concierge/internal/policy"
)

// BuildSystemPrompt composes the per-turn instructions from the clinic policy.
func BuildSystemPrompt(cfg *policy.Config, now time.Time, callerContact string) string {
	loc := cfg.Location()
	local := now.In(loc)

	var b strings.Builder
	b.WriteString(strings.TrimSpace(cfg.Persona))
	b.WriteString("\n\n")
	b.WriteString(cfg.Tone.Guidance())
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "BUSINESS HOURS: %s (%s)\n", cfg.HoursSummary(), loc.String())
	fmt.Fprintf(&b, "CURRENT TIME: %s (%s)\n", local.Format("Monday, January 2, 2006 15:04"), local.Format("2006-01-02"))

	b.WriteString("\nBOOKING RULES:\n")
	fmt.Fprintf(&b, "- Appointments need at least %d minutes notice and must fall inside business hours.\n", int(cfg.MinNotice()/time.Minute))
	b.WriteString("- Always call get_availability before offering times. Never invent a time or an appointment id.\n")
	b.WriteString("- Send times to tools as YYYY-MM-DDTHH:MM in clinic time.\n")
	if cfg.AutoConfirm() {
		b.WriteString("- Bookings made with create_appointment are confirmed immediately.\n")
	} else {
		b.WriteString("- Read the provider, service, date and time back to the patient and only set patient_confirmed=true after they agree.\n")
	}
	if providers := cfg.Providers(); len(providers) > 0 {
		fmt.Fprintf(&b, "- Providers: %s.\n", strings.Join(providers, ", "))
	}

	if contact := strings.TrimSpace(callerContact); contact != "" {
		fmt.Fprintf(&b, "\nCALLER CONTACT: %s (use as patient_contact)\n", contact)
	}
	if disclaimer := cfg.FirstDisclaimer(); disclaimer != "" {
		fmt.Fprintf(&b, "\nWhen a patient asks anything medical, include this phrase: %q\n", disclaimer)
	}
	return strings.TrimSpace(b.String())
}
