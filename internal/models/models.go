package models

// All lists every table for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&JobRequest{},
		&Quotation{},
		&NegotiationMessage{},
		&InternalNote{},
		&Attachment{},
		&Review{},
		&Payment{},
		&AdminSettings{},
		&LedgerEntry{},
		&ProviderBalance{},
		&Withdrawal{},
		&WithdrawalNote{},
		&WebhookEvent{},
	}
}
