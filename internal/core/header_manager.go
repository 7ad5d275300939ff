package core

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/poharvest/internal/models"
	"github.com/RecoveryAshes/poharvest/internal/utils"
)

// DefaultAcceptLanguage keeps labels and number formats stable across users.
const DefaultAcceptLanguage = "en-US,en;q=0.9"

// HeaderManager merges the extra request headers sent by every browser context.
// Precedence is default < config < cli.
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator *utils.HeaderValidator
	redactor  *utils.Redactor
	logger    zerolog.Logger
}

// NewHeaderManager creates a manager from the config headers section and the
// raw --header values. It fails when a --header value is malformed.
func NewHeaderManager(configHeaders map[string]string, cliHeaders []string, logger zerolog.Logger) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:  getDefaultHeaders(),
		config:    make(http.Header),
		cli:       make(http.Header),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewRedactor(),
		logger:    logger,
	}

	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

func getDefaultHeaders() http.Header {
	return http.Header{
		"Accept-Language": []string{DefaultAcceptLanguage},
	}
}

// Validate checks every layer in order default, config, cli.
func (hm *HeaderManager) Validate() error {
	if err := hm.validator.Validate(hm.defaults); err != nil {
		return err
	}
	if err := hm.validator.Validate(hm.config); err != nil {
		hm.logger.Error().Err(err).Msg("invalid header in config file")
		return err
	}
	if err := hm.validator.Validate(hm.cli); err != nil {
		hm.logger.Error().Err(err).Msg("invalid --header value")
		return err
	}
	return nil
}

// GetMergedHeaders returns the merged headers without validating them.
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = append([]string(nil), values...)
		}
	}
	return result
}

// GetHeaders validates and merges. The result is what the request filter applies.
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	merged := hm.GetMergedHeaders()
	hm.logger.Debug().Str("headers", hm.redactor.RedactToString(merged)).Msg("extra request headers")
	return merged, nil
}

// GetSafeHeaders returns the merged headers with sensitive values masked.
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.RedactHeaders(hm.GetMergedHeaders())
}
