package services

import (
	"context"
	"log/slog"

	"sheetexpense/internal/amqp"
	"sheetexpense/internal/log"
	"sheetexpense/internal/sheets"
	"sheetexpense/internal/storage"
)

// Cache is the identifier cache the provisioners read and write.
type Cache interface {
	GetSpreadsheet(ctx context.Context, userID int64, year int) (storage.UserSpreadsheet, error)
	CreateSpreadsheet(ctx context.Context, userID int64, year int, spreadsheetID string) (storage.UserSpreadsheet, error)
	GetSheet(ctx context.Context, spreadsheetRowID int64, month string) (storage.UserSheet, error)
	CreateSheet(ctx context.Context, spreadsheetRowID int64, month string, sheetID int64) (storage.UserSheet, error)
	DeleteSheet(ctx context.Context, spreadsheetRowID int64, month string) error
	DeleteSpreadsheet(ctx context.Context, userID int64, year int, spreadsheetID string) error
}

// Runner executes spreadsheet work with a user's credentials. auth.Guard
// implements it.
type Runner interface {
	Do(ctx context.Context, userID int64, fn func(ctx context.Context, wb sheets.Workbook) error) error
}

// EventPublisher announces structural changes. A nil publisher disables
// events.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.Event) error
}

func publish(ctx context.Context, p EventPublisher, logger *slog.Logger, ev *amqp.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.WarnContext(ctx, "Failed to publish event",
			log.FieldEventType, ev.Type,
			log.FieldUserID, ev.UserID,
			log.FieldError, err)
	}
}
