package backend

import (
	"fmt"

	"finanzas/internal/config"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	incomeID := appConfig.GoogleIncomeSpreadsheetID
	if incomeID == "" {
		incomeID = appConfig.GoogleSpreadsheetID
	}

	return Config{
		Type: backendType,

		CredentialsJSON: appConfig.GoogleServiceAccountJSON,
		CredentialsFile: appConfig.GoogleServiceAccountFile,
		Worksheets: map[sheets.Feed]gsheet.Worksheet{
			sheets.FeedHistoricExpenses:     {SpreadsheetID: appConfig.GoogleSpreadsheetID, Sheet: appConfig.SheetHistoricExpenses},
			sheets.FeedCurrentMonthExpenses: {SpreadsheetID: appConfig.GoogleSpreadsheetID, Sheet: appConfig.SheetCurrentMonthExpenses},
			sheets.FeedHistoricIncomes:      {SpreadsheetID: incomeID, Sheet: appConfig.SheetHistoricIncomes},
			sheets.FeedCurrentMonthIncomes:  {SpreadsheetID: incomeID, Sheet: appConfig.SheetCurrentMonthIncomes},
		},

		FeedFile: appConfig.MemoryFeedFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	if c.Type == SheetsBackend {
		if c.CredentialsJSON == "" && c.CredentialsFile == "" {
			return fmt.Errorf("service account credentials are required for sheets backend")
		}
		for _, feed := range sheets.Feeds {
			ws, ok := c.Worksheets[feed]
			if !ok || ws.SpreadsheetID == "" || ws.Sheet == "" {
				return fmt.Errorf("feed %s has no worksheet configured", feed)
			}
		}
	}
	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	return []string{SheetsBackend.String(), MemoryBackend.String()}
}
