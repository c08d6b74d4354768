package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	openrouterx "github.com/tanpawarit/foodiespot-agent/pkg/openrouter"
)

// Config is read with the LLM prefix, e.g. LLM_API_KEY, LLM_BOOKING_MODEL.
type Config struct {
	BaseURL            string        `split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `split_words:"true" required:"true"`
	Model              string        `required:"true"`
	MaxCompletionToken int           `split_words:"true" default:"2000"`
	Temperature        float32       `default:"0.3"`
	Timeout            time.Duration `default:"30s"`
	SiteURL            string        `split_words:"true"`
	SiteName           string        `split_words:"true" default:"FoodieSpot"`

	PlannerModel         string  `split_words:"true"`
	BookingModel         string  `split_words:"true"`
	ConciergeModel       string  `split_words:"true"`
	PlannerTemperature   float32 `split_words:"true" default:"0"`
	BookingTemperature   float32 `split_words:"true" default:"-1"`
	ConciergeTemperature float32 `split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model and temperature of one agent. Per-agent
// values override the defaults; a negative temperature means unset.
func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(model string, t float32) {
		if v := strings.TrimSpace(model); v != "" {
			modelName = v
		}
		if t >= 0 {
			temp = t
		}
	}
	switch agentType {
	case contractx.AgentTypePlanner:
		override(c.PlannerModel, c.PlannerTemperature)
	case contractx.AgentTypeBooking:
		override(c.BookingModel, c.BookingTemperature)
	case contractx.AgentTypeConcierge:
		override(c.ConciergeModel, c.ConciergeTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
