package billing

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

var (
	// ErrEventExists signals a unique-constraint conflict on the ledger's
	// event id; it is the idempotency signal for duplicate deliveries.
	ErrEventExists = errors.New("webhook event already recorded")

	// ErrMalformedPayload rejects a body that is not a valid event envelope.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

type (
	Repository interface {
		// InsertEvent records a new ledger row. A pre-existing row with the
		// same event id yields ErrEventExists; the insert itself is the
		// serialization point, there is no separate existence check.
		InsertEvent(ctx context.Context, event WebhookEvent) error
		GetEvent(ctx context.Context, eventID string) (WebhookEvent, error)
		// MarkEventProcessed flips the row to processed and records the
		// outcome. errMsg is kept for provider-side failure events.
		MarkEventProcessed(ctx context.Context, eventID, userID string, credits int, errMsg string) error
		// RecordEventError stores the error and bumps the retry counter; the
		// row stays unprocessed so a redelivery re-attempts the effect.
		RecordEventError(ctx context.Context, eventID, errMsg string) error

		// GetBalance returns a zero balance (no error) for unknown users.
		GetBalance(ctx context.Context, userID string) (CreditBalance, error)
		SaveBalance(ctx context.Context, balance CreditBalance) error
		CreateTransaction(ctx context.Context, tx CreditTransaction) (CreditTransaction, error)
		QueryTransactions(ctx context.Context, userID string) ([]CreditTransaction, error)
	}

	Service struct {
		repo      Repository
		logger    core.Logger
		secret    string
		tolerance time.Duration
	}
)

func NewService(repo Repository, logger core.Logger, conf core.BillingConfig) *Service {
	return &Service{
		repo:      repo,
		logger:    logger,
		secret:    conf.StripeWebhookSecret,
		tolerance: conf.SignatureTolerance,
	}
}

// HandleEvent verifies, records and applies one webhook delivery.
//
// Error mapping for the HTTP layer: ErrBadSignature and ErrMalformedPayload
// are the caller's fault (400, terminal); nil means accepted or an idempotent
// replay (200); anything else is an internal failure (500) so the provider
// redelivers.
func (svc *Service) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	if err := VerifySignature(payload, sigHeader, svc.secret, svc.tolerance, time.Now()); err != nil {
		return err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil || event.ID == "" || event.Type == "" {
		return ErrMalformedPayload
	}

	err := svc.repo.InsertEvent(ctx, WebhookEvent{
		EventID:   event.ID,
		EventType: event.Type,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) != ErrEventExists {
			return errors.Wrap(err, "recording webhook event")
		}
		// duplicate delivery: a processed row is a safe no-op; an
		// unprocessed one means the previous attempt failed before the
		// effect completed, so this redelivery re-attempts it
		prior, gErr := svc.repo.GetEvent(ctx, event.ID)
		if gErr != nil {
			return errors.Wrap(gErr, "loading prior webhook event")
		}
		if prior.Processed {
			svc.logger.Info("webhook replay ignored", map[string]interface{}{"event_id": event.ID})
			return nil
		}
	}

	if err := svc.apply(ctx, event); err != nil {
		if rErr := svc.repo.RecordEventError(ctx, event.ID, err.Error()); rErr != nil {
			svc.logger.Error("recording webhook error", rErr)
		}
		return err
	}
	return nil
}

func (svc *Service) apply(ctx context.Context, event Event) error {
	switch event.Type {
	case EventCheckoutCompleted:
		return svc.applyCheckoutCompleted(ctx, event)

	case EventPaymentSucceeded:
		svc.logger.Info("payment succeeded", map[string]interface{}{"event_id": event.ID})
		return svc.repo.MarkEventProcessed(ctx, event.ID, "", 0, "")

	case EventPaymentFailed:
		var intent PaymentIntent
		_ = json.Unmarshal(event.Data.Object, &intent)
		msg := intent.LastPaymentError.Message
		if msg == "" {
			msg = "payment failed"
		}
		// there are no prior balance changes to roll back: the ledger row is
		// recorded before any mutation
		return svc.repo.MarkEventProcessed(ctx, event.ID, intent.Metadata["user_id"], 0, msg)

	default:
		svc.logger.Info("unhandled webhook event type", map[string]interface{}{"event_id": event.ID, "type": event.Type})
		return svc.repo.MarkEventProcessed(ctx, event.ID, "", 0, "")
	}
}

func (svc *Service) applyCheckoutCompleted(ctx context.Context, event Event) error {
	var session CheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return errors.Wrap(err, "decoding checkout session")
	}

	userID := session.Metadata["user_id"]
	if userID == "" {
		return errors.New("checkout session metadata is missing user_id")
	}
	credits, err := strconv.Atoi(session.Metadata["credits"])
	if err != nil || credits <= 0 {
		return errors.Errorf("checkout session metadata has invalid credits %q", session.Metadata["credits"])
	}
	packageID := session.Metadata["package_id"]

	balance, err := svc.repo.GetBalance(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "fetching credit balance")
	}
	balance.UserID = userID
	balance.Credits += credits
	balance.UpdatedAt = time.Now().UTC()
	if err = svc.repo.SaveBalance(ctx, balance); err != nil {
		return errors.Wrap(err, "saving credit balance")
	}

	if _, err = svc.repo.CreateTransaction(ctx, CreditTransaction{
		ID:              uuid.NewString(),
		UserID:          userID,
		Credits:         credits,
		PackageID:       packageID,
		StripeSessionID: session.ID,
		StripePaymentID: session.PaymentIntent,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		return errors.Wrap(err, "recording credit transaction")
	}

	if err = svc.repo.MarkEventProcessed(ctx, event.ID, userID, credits, ""); err != nil {
		return errors.Wrap(err, "marking webhook event processed")
	}

	svc.logger.Info("credits applied", map[string]interface{}{
		"event_id": event.ID, "user_id": userID, "credits": credits, "package_id": packageID,
	})
	return nil
}

// Balance exposes a user's current credit balance to the API layer.
func (svc *Service) Balance(ctx context.Context, userID string) (CreditBalance, error) {
	return svc.repo.GetBalance(ctx, userID)
}

// Transactions lists a user's credit transactions, newest first.
func (svc *Service) Transactions(ctx context.Context, userID string) ([]CreditTransaction, error) {
	return svc.repo.QueryTransactions(ctx, userID)
}
