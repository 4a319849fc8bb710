package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/albayt/ordering-agent/agent/contract"
	openrouterx "github.com/albayt/ordering-agent/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.4"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	// Per-stage overrides. The ordering stage benefits from a stronger
	// model; greeting can run on something cheap.
	GreetingModel       string  `envconfig:"GREETING_MODEL" split_words:"true"`
	LocationModel       string  `envconfig:"LOCATION_MODEL" split_words:"true"`
	OrderingModel       string  `envconfig:"ORDERING_MODEL" split_words:"true"`
	CheckoutModel       string  `envconfig:"CHECKOUT_MODEL" split_words:"true"`
	GreetingTemperature float32 `envconfig:"GREETING_TEMPERATURE" split_words:"true" default:"-1"`
	LocationTemperature float32 `envconfig:"LOCATION_TEMPERATURE" split_words:"true" default:"-1"`
	OrderingTemperature float32 `envconfig:"ORDERING_TEMPERATURE" split_words:"true" default:"-1"`
	CheckoutTemperature float32 `envconfig:"CHECKOUT_TEMPERATURE" split_words:"true" default:"-1"`
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

func (c Config) OpenRouterFor(stage contractx.Stage) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(name string, t float32) {
		if v := strings.TrimSpace(name); v != "" {
			modelName = v
		}
		if t >= 0 {
			temp = t
		}
	}
	switch stage {
	case contractx.StageGreeting:
		override(c.GreetingModel, c.GreetingTemperature)
	case contractx.StageLocation:
		override(c.LocationModel, c.LocationTemperature)
	case contractx.StageOrdering:
		override(c.OrderingModel, c.OrderingTemperature)
	case contractx.StageCheckout:
		override(c.CheckoutModel, c.CheckoutTemperature)
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
