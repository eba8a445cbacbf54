package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/billing"
)

type (
	webhookEventRow struct {
		EventID        string      `db:"event_id"`
		EventType      string      `db:"event_type"`
		Processed      bool        `db:"processed"`
		ProcessedAt    null.Time   `db:"processed_at"`
		UserID         null.String `db:"user_id"`
		CreditsApplied int         `db:"credits_applied"`
		ErrorMessage   null.String `db:"error_message"`
		RetryCount     int         `db:"retry_count"`
		CreatedAt      time.Time   `db:"created_at"`
	}

	creditTransactionRow struct {
		ID              string      `db:"id"`
		UserID          string      `db:"user_id"`
		Credits         int         `db:"credits"`
		PackageID       null.String `db:"package_id"`
		StripeSessionID null.String `db:"stripe_session_id"`
		StripePaymentID null.String `db:"stripe_payment_id"`
		CreatedAt       time.Time   `db:"created_at"`
	}
)

func (r webhookEventRow) event() billing.WebhookEvent {
	return billing.WebhookEvent{
		EventID:        r.EventID,
		EventType:      r.EventType,
		Processed:      r.Processed,
		ProcessedAt:    r.ProcessedAt.Time,
		UserID:         r.UserID.String,
		CreditsApplied: r.CreditsApplied,
		ErrorMessage:   r.ErrorMessage.String,
		RetryCount:     r.RetryCount,
		CreatedAt:      r.CreatedAt,
	}
}

type billingRepository struct {
	db *sqlx.DB
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *sqlx.DB) *billingRepository {
	return &billingRepository{db: db}
}

func (repo billingRepository) InsertEvent(ctx context.Context, event billing.WebhookEvent) error {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO webhook_events (event_id, event_type, created_at) VALUES ($1, $2, $3)",
		event.EventID, event.EventType, event.CreatedAt.UTC())
	if err != nil {
		// unique violation on event_id is the idempotency signal
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return billing.ErrEventExists
		}
		return errors.Wrap(err, "inserting webhook event")
	}
	return nil
}

func (repo billingRepository) GetEvent(ctx context.Context, eventID string) (billing.WebhookEvent, error) {
	var row webhookEventRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM webhook_events WHERE event_id = $1", eventID)
	if err != nil {
		return billing.WebhookEvent{}, errors.Wrap(err, "fetching webhook event")
	}
	return row.event(), nil
}

func (repo billingRepository) MarkEventProcessed(ctx context.Context, eventID, userID string, credits int, errMsg string) error {
	_, err := repo.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET processed = TRUE, processed_at = $1, user_id = $2, credits_applied = $3, error_message = $4
		WHERE event_id = $5`,
		time.Now().UTC(), null.NewString(userID, userID != ""), credits,
		null.NewString(errMsg, errMsg != ""), eventID)
	return errors.Wrap(err, "marking webhook event processed")
}

func (repo billingRepository) RecordEventError(ctx context.Context, eventID, errMsg string) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE webhook_events SET error_message = $1, retry_count = retry_count + 1 WHERE event_id = $2",
		errMsg, eventID)
	return errors.Wrap(err, "recording webhook event error")
}

func (repo billingRepository) GetBalance(ctx context.Context, userID string) (billing.CreditBalance, error) {
	var balance billing.CreditBalance
	err := repo.db.QueryRowContext(ctx,
		"SELECT user_id, credits, updated_at FROM credit_balances WHERE user_id = $1", userID).
		Scan(&balance.UserID, &balance.Credits, &balance.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return billing.CreditBalance{UserID: userID}, nil
		}
		return billing.CreditBalance{}, errors.Wrap(err, "fetching credit balance")
	}
	return balance, nil
}

func (repo billingRepository) SaveBalance(ctx context.Context, balance billing.CreditBalance) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO credit_balances (user_id, credits, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET credits = EXCLUDED.credits, updated_at = EXCLUDED.updated_at`,
		balance.UserID, balance.Credits, balance.UpdatedAt.UTC())
	return errors.Wrap(err, "saving credit balance")
}

func (repo billingRepository) CreateTransaction(ctx context.Context, tx billing.CreditTransaction) (billing.CreditTransaction, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, credits, package_id, stripe_session_id, stripe_payment_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ID, tx.UserID, tx.Credits, null.NewString(tx.PackageID, tx.PackageID != ""),
		null.NewString(tx.StripeSessionID, tx.StripeSessionID != ""),
		null.NewString(tx.StripePaymentID, tx.StripePaymentID != ""), tx.CreatedAt.UTC())
	if err != nil {
		return billing.CreditTransaction{}, errors.Wrap(err, "inserting credit transaction")
	}
	return tx, nil
}

func (repo billingRepository) QueryTransactions(ctx context.Context, userID string) ([]billing.CreditTransaction, error) {
	var rows []creditTransactionRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT * FROM credit_transactions WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying credit transactions")
	}
	txs := make([]billing.CreditTransaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, billing.CreditTransaction{
			ID:              row.ID,
			UserID:          row.UserID,
			Credits:         row.Credits,
			PackageID:       row.PackageID.String,
			StripeSessionID: row.StripeSessionID.String,
			StripePaymentID: row.StripePaymentID.String,
			CreatedAt:       row.CreatedAt,
		})
	}
	return txs, nil
}
