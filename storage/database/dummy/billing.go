package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/billing"
)

type billingRepository struct {
	db *billingTables
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *DB) billing.Repository {
	return &billingRepository{db: db.billing}
}

func (repo *billingRepository) InsertEvent(_ context.Context, event billing.WebhookEvent) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.events[event.EventID]; ok {
		return billing.ErrEventExists
	}
	repo.db.events[event.EventID] = &event
	return nil
}

func (repo *billingRepository) GetEvent(_ context.Context, eventID string) (billing.WebhookEvent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if event, ok := repo.db.events[eventID]; ok {
		return *event, nil
	}
	return billing.WebhookEvent{}, errors.New("webhook event not found")
}

func (repo *billingRepository) MarkEventProcessed(_ context.Context, eventID, userID string, credits int, errMsg string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	event, ok := repo.db.events[eventID]
	if !ok {
		return errors.New("webhook event not found")
	}
	event.Processed = true
	event.ProcessedAt = time.Now().UTC()
	event.UserID = userID
	event.CreditsApplied = credits
	event.ErrorMessage = errMsg
	return nil
}

func (repo *billingRepository) RecordEventError(_ context.Context, eventID, errMsg string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	event, ok := repo.db.events[eventID]
	if !ok {
		return errors.New("webhook event not found")
	}
	event.ErrorMessage = errMsg
	event.RetryCount++
	return nil
}

func (repo *billingRepository) GetBalance(_ context.Context, userID string) (billing.CreditBalance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if balance, ok := repo.db.balances[userID]; ok {
		return *balance, nil
	}
	return billing.CreditBalance{UserID: userID}, nil
}

func (repo *billingRepository) SaveBalance(_ context.Context, balance billing.CreditBalance) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.balances[balance.UserID] = &balance
	return nil
}

func (repo *billingRepository) CreateTransaction(_ context.Context, tx billing.CreditTransaction) (billing.CreditTransaction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.transactions[tx.ID] = &tx
	return tx, nil
}

func (repo *billingRepository) QueryTransactions(_ context.Context, userID string) ([]billing.CreditTransaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	txs := make([]billing.CreditTransaction, 0)
	for _, tx := range repo.db.transactions {
		if tx.UserID == userID {
			txs = append(txs, *tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs, nil
}
