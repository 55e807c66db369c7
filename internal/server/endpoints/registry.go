package endpoints

import (
	"github.com/jackzampolin/quill/internal/api"
)

// All returns all endpoint instances in registration order.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Credits
		&GetCreditsEndpoint{},
		&TopupEndpoint{},

		// Course pipeline
		&DiscoverEndpoint{},
		&OutlineEndpoint{},
		&GenerateEndpoint{},
		&CRMEndpoint{},
		&DocsEndpoint{},
		&ExportEndpoint{},

		// Journal
		&ListLLMCallsEndpoint{},
		&LLMCallCountsEndpoint{},
		&GetLLMCallEndpoint{},

		// Prompts
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},

		// Settings
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},

		// Swagger/OpenAPI
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},

		// Static files (catch-all, must be last)
		&StaticEndpoint{},
	}
}
