package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cookiecraze/backend/internal/domain"
)

func DefaultStoreSettings() domain.StoreSettings {
	return domain.StoreSettings{
		StoreName:      "Cookie Craze",
		CurrencySymbol: "₱",
		TopItemsLimit:  10,
	}
}

// LoadStoreSettings reads the YAML settings file. An empty path yields the
// defaults; keys absent from the file keep their default values.
func LoadStoreSettings(path string) (domain.StoreSettings, error) {
	settings := DefaultStoreSettings()
	if strings.TrimSpace(path) == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read store settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse store settings %s: %w", path, err)
	}

	if strings.TrimSpace(settings.StoreName) == "" {
		settings.StoreName = "Cookie Craze"
	}
	if strings.TrimSpace(settings.CurrencySymbol) == "" {
		settings.CurrencySymbol = "₱"
	}
	if settings.TopItemsLimit < 1 {
		settings.TopItemsLimit = 10
	}
	if settings.TaxRate < 0 || settings.TaxRate > 100 {
		return settings, fmt.Errorf("store settings: tax_rate must be between 0 and 100")
	}
	return settings, nil
}
