package config

import "github.com/vk/xfiber/internal/registry"

// Localization resolves the i18n settings carried by the root store.
func Localization(d *Discovery) registry.I18n {
	return registry.I18n{
		DefaultLanguage:    d.GetString("services.localization.defaultLanguage", "en"),
		FallbackLanguage:   d.GetString("services.localization.fallbackLanguage", "en"),
		SupportedLanguages: d.GetStringSlice("services.localization.supportedLanguages", []string{"en"}),
	}
}
