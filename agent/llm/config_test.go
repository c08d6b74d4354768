package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation without api key, got %v", err)
	}
	if err := (Config{APIKey: "k"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation without model, got %v", err)
	}
	if err := (Config{APIKey: "k", Model: "m"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestOpenRouterForOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{
		APIKey:               " key ",
		Model:                "default-model",
		MaxCompletionToken:   512,
		Temperature:          0.3,
		PlannerTemperature:   0,
		BookingModel:         "booking-model",
		BookingTemperature:   -1,
		ConciergeTemperature: 0.9,
	}

	planner := cfg.OpenRouterFor(contractx.AgentTypePlanner)
	if planner.Model != "default-model" || planner.Temperature != 0 {
		t.Fatalf("planner = %s/%v", planner.Model, planner.Temperature)
	}
	if planner.APIKey != "key" {
		t.Fatalf("api key not trimmed: %q", planner.APIKey)
	}
	if planner.MaxCompletionToken == nil || *planner.MaxCompletionToken != 512 {
		t.Fatalf("max tokens = %v", planner.MaxCompletionToken)
	}

	booking := cfg.OpenRouterFor(contractx.AgentTypeBooking)
	if booking.Model != "booking-model" || booking.Temperature != 0.3 {
		t.Fatalf("booking = %s/%v", booking.Model, booking.Temperature)
	}

	concierge := cfg.OpenRouterFor(contractx.AgentTypeConcierge)
	if concierge.Model != "default-model" || concierge.Temperature != 0.9 {
		t.Fatalf("concierge = %s/%v", concierge.Model, concierge.Temperature)
	}
}
