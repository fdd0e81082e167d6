// Package messages renders the text of notifications
package messages

import (
	"embed"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

const (
	ReminderConfirm       = "reminder_confirm"
	EscalationUnconfirmed = "escalation_unconfirmed"
	AssignmentApproved    = "assignment_approved"
)

// Catalog wraps a go-i18n bundle loaded from the embedded translation files
type Catalog struct {
	bundle *i18n.Bundle
	locale language.Tag
	logger *zap.Logger
}

// NewCatalog builds a catalog whose default locale is locale ("en" when unparseable)
func NewCatalog(locale string, logger *zap.Logger) (*Catalog, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		logger.Warn("Unknown locale, using English", zap.String("locale", locale))
		tag = language.English
	}
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range []string{"active.en.toml", "active.fr.toml"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return &Catalog{bundle: bundle, locale: tag, logger: logger}, nil
}

// Render returns the message id in the catalog locale, falling back to English
// and then to the id itself
func (c *Catalog) Render(id string, data map[string]any) string {
	localizer := i18n.NewLocalizer(c.bundle, c.locale.String(), language.English.String())
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		c.logger.Warn("Failed to localize message", zap.String("id", id), zap.Error(err))
		return id
	}
	return msg
}
