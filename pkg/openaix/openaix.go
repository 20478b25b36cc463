package openaix

import (
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true"`
	APIKey  string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	OrgID   string        `envconfig:"ORG_ID" split_words:"true"`
}

// NewClient creates an OpenAI SDK client. Returns nil when no API key is set
// so callers can treat the capability as absent.
func NewClient(cfg Config) *openaisdk.Client {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if timeout := cfg.Timeout; timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	if org := strings.TrimSpace(cfg.OrgID); org != "" {
		opts = append(opts, option.WithOrganization(org))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}
