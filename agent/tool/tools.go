package tool

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/mechanigo/chatbot/agent/contract"
	"github.com/mechanigo/chatbot/agent/state"
)

// Builtin tool names.
const (
	ToolExtractUserInfo = "user_extract_info"
	ToolGetUserInfo     = "user_get_info"
	ToolExtractCarInfo  = "extract_car_info"
	ToolExtractSchedule = "bookings_extract_schedule"
	ToolExtractPayment  = "bookings_extract_payment"
	ToolExtractService  = "bookings_extract_service"
	ToolLookup          = "lookup"
	ToolFAQ             = "faq_tool"
)

// Scope tags used to slice the registry per agent suite.
const (
	ScopeDefault  = "default"
	ScopeUser     = "user_suite"
	ScopeMechanic = "mechanic_suite"
	ScopeBooking  = "booking_suite"
	ScopeFAQ      = "faq_suite"
)

const (
	statusSuccess  = "success"
	statusNotFound = "not_found"
	statusError    = "error"
)

func mergeToolResult(tool string, res state.MergeResult) contract.ToolResult {
	out := contract.ToolResult{
		Tool:    tool,
		Status:  string(res.Status),
		Message: res.Message,
	}
	if len(res.Changed) > 0 {
		out.Data = map[string]any{"changed_fields": res.Changed}
	}
	return out
}

// RegisterBuiltins wires the full tool suite into the registry. Knowledge
// and FAQ lookups are optional collaborators; their tools degrade to a
// structured error payload when absent. Registration failures are programmer
// errors and bubble up to wiring time.
func RegisterBuiltins(r *Registry, knowledge, faq contract.Lookup) error {
	entries := []struct {
		name   string
		target Handler
		reg    Registration
	}{
		{
			name:   ToolExtractUserInfo,
			target: extractUserInfo,
			reg: Registration{
				Category:    "user",
				Description: "Parses user information in conversation context.",
				Scopes:      []string{ScopeUser, ScopeDefault},
				Spec: contract.ToolSpec{
					Name:        ToolExtractUserInfo,
					Description: "Save or update the customer's details: name, email, contact number, address, car, service type, schedule (date and time), payment.",
					Params: []contract.Param{
						{Name: "name", Type: "string"},
						{Name: "email", Type: "string"},
						{Name: "address", Type: "string"},
						{Name: "contact_num", Type: "string"},
						{Name: "service_type", Type: "string"},
						{Name: "schedule_date", Type: "string"},
						{Name: "schedule_time", Type: "string"},
						{Name: "payment", Type: "string"},
						{Name: "car", Type: "string"},
					},
				},
			},
		},
		{
			name:   ToolGetUserInfo,
			target: getUserInfo,
			reg: Registration{
				Category:    "user",
				Description: "Retrieves user info from memory in conversation context.",
				Scopes:      []string{ScopeUser, ScopeDefault},
				Spec: contract.ToolSpec{
					Name:        ToolGetUserInfo,
					Description: "Recall the customer details saved so far.",
				},
			},
		},
		{
			name:   ToolExtractCarInfo,
			target: extractCarInfo,
			reg: Registration{
				Category:    "mechanic",
				Description: "Parses and stores user car details in conversation context.",
				Scopes:      []string{ScopeMechanic, ScopeDefault},
				Spec: contract.ToolSpec{
					Name:        ToolExtractCarInfo,
					Description: "Save or update the customer's car details.",
					Params: []contract.Param{
						{Name: "make", Type: "string"},
						{Name: "model", Type: "string"},
						{Name: "year", Type: "integer"},
						{Name: "fuel_type", Type: "string"},
						{Name: "transmission", Type: "string"},
					},
				},
			},
		},
		{
			name:   ToolExtractSchedule,
			target: extractSchedule,
			reg: Registration{
				Category:    "booking",
				Description: "Parses and stores user schedule.",
				Scopes:      []string{ScopeBooking, ScopeDefault},
				Spec: contract.ToolSpec{
					Name:        ToolExtractSchedule,
					Description: "Save the booking schedule. Pass the exact date and time strings the customer confirmed; a stored half is reused when only the other changes.",
					Params: []contract.Param{
						{Name: "schedule_date", Type: "string"},
						{Name: "schedule_time", Type: "string"},
					},
				},
			},
		},
		{
			name:   ToolExtractPayment,
			target: extractPayment,
			reg: Registration{
				Category:    "booking",
				Description: "Extracts the user payment type.",
				Scopes:      []string{ScopeBooking, ScopeDefault},
				Spec: contract.ToolSpec{
					Name:        ToolExtractPayment,
					Description: "Save the preferred payment method (GCash, Cash, or Credit).",
					Params: []contract.Param{
						{Name: "payment", Type: "string", Required: true},
					},
				},
			},
		},
		{
			name:   ToolExtractService,
			target: extractService,
			reg: Registration{
				Category:    "booking",
				Description: "Extracts the user service type.",
				Scopes:      []string{ScopeBooking, ScopeDefault},
				Spec: contract.ToolSpec{
					Name:        ToolExtractService,
					Description: "Save the requested service type (pms, secondhand car-buying inspection, parts replacement, car diagnosis).",
					Params: []contract.Param{
						{Name: "service_type", Type: "string", Required: true},
					},
				},
			},
		},
		{
			name:   ToolLookup,
			target: lookupHandler(ToolLookup, knowledge),
			reg: Registration{
				Category:    "mechanic",
				Description: "Mechanic knowledge lookup for diagnosis and maintenance questions.",
				Scopes:      []string{ScopeMechanic, ScopeDefault},
				Spec: contract.ToolSpec{
					Name:        ToolLookup,
					Description: "Look up car symptoms, diagnosis, maintenance, and parts questions.",
					Params: []contract.Param{
						{Name: "question", Type: "string", Required: true},
					},
				},
			},
		},
		{
			name:   ToolFAQ,
			target: lookupHandler(ToolFAQ, faq),
			reg: Registration{
				Category:    "faq",
				Description: "Searches the FAQ knowledge base for official answers.",
				Scopes:      []string{ScopeFAQ, ScopeDefault},
				Spec: contract.ToolSpec{
					Name:        ToolFAQ,
					Description: "Answer general MechaniGo questions: services, coverage, pricing, availability.",
					Params: []contract.Param{
						{Name: "question", Type: "string", Required: true},
					},
				},
			},
		},
	}

	for _, e := range entries {
		if err := r.Register(e.name, e.target, e.reg); err != nil {
			return err
		}
	}
	return nil
}

func extractUserInfo(_ context.Context, sc *state.SharedContext, args map[string]any) contract.ToolResult {
	res := state.MergeUser(sc.User, args)
	if res.Status == state.StatusUpdated {
		log.Debug().Interface("changed", res.Changed).Msg("user memory updated")
	}
	return mergeToolResult(ToolExtractUserInfo, res)
}

func getUserInfo(_ context.Context, sc *state.SharedContext, _ map[string]any) contract.ToolResult {
	user := sc.User
	if user == nil || (user.Name == "" && user.Email == "" && user.Address == "" && user.Car == "" && user.UID == "") {
		return contract.ToolResult{Tool: ToolGetUserInfo, Status: statusNotFound, Message: "No user data yet."}
	}
	return contract.ToolResult{
		Tool:   ToolGetUserInfo,
		Status: statusSuccess,
		Data: map[string]any{
			"user": user,
			"car":  sc.Vehicle,
		},
	}
}

func extractCarInfo(_ context.Context, sc *state.SharedContext, args map[string]any) contract.ToolResult {
	res := state.MergeVehicle(sc.Vehicle, args)
	if res.Status == state.StatusUpdated {
		// keep the flat descriptor on the profile in step with the details
		sc.SyncVehicle()
	}
	out := mergeToolResult(ToolExtractCarInfo, res)
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	out.Data["car_details"] = sc.Vehicle
	return out
}

func extractSchedule(_ context.Context, sc *state.SharedContext, args map[string]any) contract.ToolResult {
	return mergeToolResult(ToolExtractSchedule, state.MergeSchedule(sc.User, args))
}

func extractPayment(_ context.Context, sc *state.SharedContext, args map[string]any) contract.ToolResult {
	return mergeToolResult(ToolExtractPayment, state.MergePayment(sc.User, args))
}

func extractService(_ context.Context, sc *state.SharedContext, args map[string]any) contract.ToolResult {
	return mergeToolResult(ToolExtractService, state.MergeService(sc.User, args))
}

// lookupHandler adapts a Lookup collaborator into a tool. The shared context
// is untouched; lookups are pure from the conversation's perspective.
func lookupHandler(name string, source contract.Lookup) Handler {
	return func(ctx context.Context, _ *state.SharedContext, args map[string]any) contract.ToolResult {
		question, _ := args["question"].(string)
		if question == "" {
			return contract.ToolResult{Tool: name, Status: statusError, Message: "No question provided."}
		}
		if source == nil {
			return contract.ToolResult{Tool: name, Status: statusError, Message: "Knowledge source is not configured."}
		}

		answer, err := source.Lookup(ctx, question)
		if errors.Is(err, contract.ErrLookupMiss) {
			return contract.ToolResult{Tool: name, Status: statusNotFound, Message: "No relevant information found."}
		}
		if err != nil {
			log.Error().Err(err).Str("tool", name).Msg("lookup failed")
			return contract.ToolResult{Tool: name, Status: statusError, Message: "Error retrieving answer."}
		}
		return contract.ToolResult{Tool: name, Status: statusSuccess, Data: map[string]any{"answer": answer}}
	}
}
