package endpoints

import (
	"errors"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/config"
	"github.com/jackzampolin/quill/internal/svcctx"
)

// Setting is a config entry with its effective value.
type Setting struct {
	Key         string   `json:"key"`
	Value       any      `json:"value"`
	Default     any      `json:"default"`
	Env         []string `json:"env,omitempty"`
	Description string   `json:"description"`
}

// SettingsResponse contains every known setting.
type SettingsResponse struct {
	ConfigFile string    `json:"config_file,omitempty"`
	Settings   []Setting `json:"settings"`
}

const redacted = "********"

// secretKeys never leave the server in clear text.
var secretKeys = map[string]bool{
	"credits.secret": true,
	"llm.api_key":    true,
}

func settingFor(cm *config.Manager, entry config.Entry) Setting {
	s := Setting{
		Key:         entry.Key,
		Default:     entry.Value,
		Env:         entry.Env,
		Description: entry.Description,
	}
	if v, err := cm.Value(entry.Key); err == nil {
		s.Value = v
	} else {
		s.Value = entry.Value
	}
	if secretKeys[entry.Key] {
		if str, _ := s.Value.(string); str != "" {
			s.Value = redacted
		}
	}
	return s
}

// ListSettingsEndpoint handles GET /api/settings.
type ListSettingsEndpoint struct{}

func (e *ListSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings", e.handler
}

func (e *ListSettingsEndpoint) RequiresLLM() bool { return false }

func (e *ListSettingsEndpoint) CommandGroup() (string, string) {
	return "settings", "Inspect server configuration"
}

// handler godoc
//
//	@Summary		List all settings
//	@Description	Effective configuration with defaults and env overrides. Secrets are redacted.
//	@Tags			settings
//	@Produce		json
//	@Param			prefix	query		string	false	"Only keys starting with this prefix (e.g. credits.)"
//	@Success		200		{object}	SettingsResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/settings [get]
func (e *ListSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cm := svcctx.ConfigManagerFrom(r.Context())
	if cm == nil {
		writeError(w, http.StatusInternalServerError, "config manager not available")
		return
	}

	prefix := r.URL.Query().Get("prefix")
	resp := SettingsResponse{
		ConfigFile: cm.ConfigFileUsed(),
		Settings:   []Setting{},
	}
	for _, entry := range config.DefaultEntries() {
		if strings.HasPrefix(entry.Key, prefix) {
			resp.Settings = append(resp.Settings, settingFor(cm, entry))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/settings"
			if prefix != "" {
				path += "?prefix=" + prefix
			}
			client := api.NewClient(getServerURL())
			var resp SettingsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Filter by key prefix (e.g. llm.)")
	return cmd
}

// GetSettingEndpoint handles GET /api/settings/{key}.
type GetSettingEndpoint struct{}

func (e *GetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings/{key}", e.handler
}

func (e *GetSettingEndpoint) RequiresLLM() bool { return false }

func (e *GetSettingEndpoint) CommandGroup() (string, string) {
	return "settings", "Inspect server configuration"
}

// handler godoc
//
//	@Summary		Get a setting
//	@Description	Effective value of one configuration key
//	@Tags			settings
//	@Produce		json
//	@Param			key	path		string	true	"Setting key (e.g., llm.model)"
//	@Success		200	{object}	Setting
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/{key} [get]
func (e *GetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := config.ValidateKey(key); err != nil {
		if errors.Is(err, config.ErrInvalidKey) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cm := svcctx.ConfigManagerFrom(r.Context())
	if cm == nil {
		writeError(w, http.StatusInternalServerError, "config manager not available")
		return
	}

	entry := config.GetDefault(key)
	if entry == nil {
		writeError(w, http.StatusNotFound, "setting not found: "+key)
		return
	}
	writeJSON(w, http.StatusOK, settingFor(cm, *entry))
}

func (e *GetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a setting by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp Setting
			if err := client.Get(cmd.Context(), "/api/settings/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
