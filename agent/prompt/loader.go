package prompt

import (
	_ "embed"
	"strings"

	"github.com/mechanigo/chatbot/agent/state"
)

var (
	//go:embed template/orchestrator.txt
	orchestratorRaw string

	//go:embed template/guardrail.txt
	guardrailRaw string

	//go:embed template/knowledge.txt
	knowledgeRaw string

	//go:embed template/faq.txt
	faqRaw string

	//go:embed template/refusal.txt
	refusalRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Orchestrator string
	Guardrail    string
	Knowledge    string
	FAQ          string
	Refusal      string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Orchestrator: strings.TrimSpace(orchestratorRaw),
		Guardrail:    strings.TrimSpace(guardrailRaw),
		Knowledge:    strings.TrimSpace(knowledgeRaw),
		FAQ:          strings.TrimSpace(faqRaw),
		Refusal:      strings.TrimSpace(refusalRaw),
	}
}

// OrchestratorInstructions appends the current conversation state to the
// base prompt: a snapshot of every tracked field plus a STATUS line telling
// the model what is still missing. Rebuilt on every turn because any field
// may change on any turn.
func (p PromptSet) OrchestratorInstructions(sc *state.SharedContext) string {
	var b strings.Builder
	b.WriteString(p.Orchestrator)
	b.WriteString("\n\nCURRENT STATE SNAPSHOT:\n")

	user := sc.User
	car := sc.SyncVehicle()

	writeLine := func(label, value, fallback string) {
		b.WriteString("- ")
		b.WriteString(label)
		b.WriteString(": ")
		if strings.TrimSpace(value) == "" {
			b.WriteString(fallback)
		} else {
			b.WriteString(value)
		}
		b.WriteString("\n")
	}

	writeLine("User", user.Name, "Unknown user")
	writeLine("Email", user.Email, "Unknown email")
	writeLine("Contact", user.ContactNum, "No contact")
	writeLine("Service", user.ServiceType, "No service type")
	writeLine("Car", car, "No car specified")
	writeLine("Location", user.Address, "No address")

	date := strings.TrimSpace(user.ScheduleDate)
	clock := strings.TrimSpace(user.ScheduleTime)
	if date == "" {
		date = "Unknown date"
	}
	if clock == "" {
		clock = "Unknown time"
	}
	b.WriteString("- Schedule: " + date + " @" + clock + "\n")
	writeLine("Payment", user.Payment, "No payment")

	missing, ready := state.Evaluate(sc)
	if ready {
		b.WriteString(
			"STATUS: All required information is complete — Booking is ready!\n\n" +
				"- Present a concise final confirmation of service need, car, location, date, time, and payment.\n" +
				"- Thank the user and avoid calling any tools unless they request changes.\n")
	} else {
		b.WriteString("STATUS: Incomplete - still missing: " + strings.Join(missing, ", ") + ".\n")
	}
	return b.String()
}
