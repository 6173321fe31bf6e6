package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"storebot/internal/models"
	"storebot/internal/store"
	"storebot/internal/util"

	"go.uber.org/zap"
)

const maxHistoryLimit = 50

// WalletService manages GrowID registrations and World Lock balances
type WalletService struct {
	repo      Repository
	events    Publisher
	maxAmount int64
	logger    *zap.Logger
}

// NewWalletService creates a new wallet service. maxAmount bounds a single
// admin adjustment in World Locks.
func NewWalletService(repo Repository, events Publisher, maxAmount int64) *WalletService {
	return &WalletService{
		repo:      repo,
		events:    publisherOrNoop(events),
		maxAmount: maxAmount,
		logger:    util.GetLogger(),
	}
}

type growIDRequest struct {
	GrowID string `validate:"growid"`
}

// DonationResult describes a credited donation
type DonationResult struct {
	Transaction *models.Transaction
	Deposit     models.Balance
	CreditedWL  int64
	NewBalance  int64
}

func validateGrowID(growID string) error {
	if errs := util.ValidateStruct(&growIDRequest{GrowID: growID}); len(errs) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidGrowID, growID)
	}
	return nil
}

// RegisterGrowID links a Discord account to a GrowID. Re-linking to a
// different GrowID records a GROWID_CHANGE entry on the new GrowID.
func (s *WalletService) RegisterGrowID(ctx context.Context, discordID, growID string) error {
	ctx, span := util.StartSpan(ctx, "WalletService.RegisterGrowID")
	defer span.End()

	growID = strings.TrimSpace(growID)
	if err := validateGrowID(growID); err != nil {
		return err
	}

	previous, err := s.repo.RegisterGrowID(ctx, discordID, growID)
	if err != nil {
		return err
	}

	s.logger.Info("GrowID registered",
		zap.String("discord_id", discordID),
		zap.String("growid", growID),
		zap.String("previous", previous))

	if previous == "" || previous == growID {
		return nil
	}

	user, err := s.repo.GetUser(ctx, growID)
	if err != nil {
		return err
	}
	trx := &models.Transaction{
		GrowID:     growID,
		Type:       models.TransactionTypeGrowIDChange,
		Details:    fmt.Sprintf("GrowID changed from %s to %s by %s", previous, growID, discordID),
		OldBalance: user.Balance,
		NewBalance: user.Balance,
	}
	return s.repo.RecordTransaction(ctx, trx)
}

// GetGrowID returns the GrowID linked to a Discord account
func (s *WalletService) GetGrowID(ctx context.Context, discordID string) (string, error) {
	return s.repo.GetGrowID(ctx, discordID)
}

// GetBalance returns the balance of a GrowID
func (s *WalletService) GetBalance(ctx context.Context, growID string) (models.Balance, error) {
	user, err := s.repo.GetUser(ctx, growID)
	if err != nil {
		return models.Balance{}, err
	}
	return models.BalanceFromWLs(user.Balance), nil
}

// AdjustBalance adds amount World Locks (negative to remove) on behalf of an admin
func (s *WalletService) AdjustBalance(ctx context.Context, growID string, amount int64, admin string) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.AdjustBalance")
	defer span.End()

	if amount == 0 || amount > s.maxAmount || amount < -s.maxAmount {
		return nil, fmt.Errorf("%w: must be between 1 and %s", ErrInvalidAmount, models.FormatWL(s.maxAmount))
	}

	trxType := models.TransactionTypeAdminAdd
	details := fmt.Sprintf("Admin %s added %s", admin, models.FormatWL(amount))
	if amount < 0 {
		trxType = models.TransactionTypeAdminRemove
		details = fmt.Sprintf("Admin %s removed %s", admin, models.FormatWL(-amount))
	}

	var trx *models.Transaction
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		if amount > 0 {
			if err := tx.EnsureUser(ctx, growID); err != nil {
				return err
			}
		}
		oldBalance, newBalance, err := tx.AdjustBalance(ctx, growID, amount)
		if err != nil {
			return err
		}
		trx = &models.Transaction{
			GrowID:     growID,
			Type:       trxType,
			Details:    details,
			OldBalance: oldBalance,
			NewBalance: newBalance,
		}
		return tx.RecordTransaction(ctx, trx)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Balance adjusted",
		zap.String("growid", growID),
		zap.Int64("amount", amount),
		zap.String("admin", admin))
	s.publishBalanceChanged(ctx, trx, admin)
	return trx, nil
}

// ResetBalance sets the balance of a GrowID to zero
func (s *WalletService) ResetBalance(ctx context.Context, growID, admin string) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.ResetBalance")
	defer span.End()

	var trx *models.Transaction
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		oldBalance, err := tx.SetBalance(ctx, growID, 0)
		if err != nil {
			return err
		}
		trx = &models.Transaction{
			GrowID:     growID,
			Type:       models.TransactionTypeAdminReset,
			Details:    fmt.Sprintf("Admin %s reset balance", admin),
			OldBalance: oldBalance,
			NewBalance: 0,
		}
		return tx.RecordTransaction(ctx, trx)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Balance reset", zap.String("growid", growID), zap.String("admin", admin))
	s.publishBalanceChanged(ctx, trx, admin)
	return trx, nil
}

// MaxDepositUnits caps how many locks of each type one deposit may carry
const MaxDepositUnits int64 = 1_000_000

// ParseDeposit parses a deposit such as "5 World Lock, 2 Diamond Lock, 1 Blue Gem Lock"
func ParseDeposit(deposit string) (models.Balance, error) {
	var bal models.Balance
	for _, part := range strings.Split(deposit, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		fields := strings.Fields(part)
		amount, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil || amount < 0 {
			return models.Balance{}, fmt.Errorf("%w: bad amount in %q", ErrInvalidDeposit, part)
		}

		var count *int64
		unit := strings.ToLower(strings.Join(fields[1:], " "))
		switch {
		case strings.HasPrefix(unit, "world lock"):
			count = &bal.WL
		case strings.HasPrefix(unit, "diamond lock"):
			count = &bal.DL
		case strings.HasPrefix(unit, "blue gem lock"):
			count = &bal.BGL
		default:
			return models.Balance{}, fmt.Errorf("%w: unknown unit in %q", ErrInvalidDeposit, part)
		}
		if amount > MaxDepositUnits-*count {
			return models.Balance{}, fmt.Errorf("%w: more than %d of one lock type", ErrInvalidDeposit, MaxDepositUnits)
		}
		*count += amount
	}

	if bal.TotalWLs() <= 0 {
		return models.Balance{}, fmt.Errorf("%w: nothing deposited", ErrInvalidDeposit)
	}
	return bal, nil
}

// Donate credits a deposit to a GrowID, creating the user if needed
func (s *WalletService) Donate(ctx context.Context, growID, deposit string) (*DonationResult, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.Donate")
	defer span.End()

	growID = strings.TrimSpace(growID)
	if err := validateGrowID(growID); err != nil {
		return nil, err
	}

	bal, err := ParseDeposit(deposit)
	if err != nil {
		return nil, err
	}
	credited := bal.TotalWLs()

	var trx *models.Transaction
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.EnsureUser(ctx, growID); err != nil {
			return err
		}
		oldBalance, newBalance, err := tx.AdjustBalance(ctx, growID, credited)
		if err != nil {
			return err
		}
		trx = &models.Transaction{
			GrowID:     growID,
			Type:       models.TransactionTypeDonation,
			Details:    fmt.Sprintf("Donation: %d WL, %d DL, %d BGL", bal.WL, bal.DL, bal.BGL),
			OldBalance: oldBalance,
			NewBalance: newBalance,
			TotalPrice: credited,
		}
		return tx.RecordTransaction(ctx, trx)
	})
	if err != nil {
		return nil, err
	}

	util.DonationsTotal.Inc()
	util.DonatedWLTotal.Add(float64(credited))
	s.logger.Info("Donation received",
		zap.String("growid", growID),
		zap.Int64("credited_wl", credited))

	event := &models.DonationReceivedEvent{
		TransactionID: trx.ID,
		GrowID:        growID,
		Deposit:       bal,
		CreditedWL:    credited,
		NewBalance:    trx.NewBalance,
	}
	if err := s.events.PublishDonationReceived(ctx, event); err != nil {
		s.logger.Error("Failed to publish DonationReceived event", zap.Error(err))
	}

	return &DonationResult{
		Transaction: trx,
		Deposit:     bal,
		CreditedWL:  credited,
		NewBalance:  trx.NewBalance,
	}, nil
}

// History returns the newest ledger entries of a GrowID
func (s *WalletService) History(ctx context.Context, growID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.TransactionHistory(ctx, growID, limit)
}

func (s *WalletService) publishBalanceChanged(ctx context.Context, trx *models.Transaction, admin string) {
	event := &models.BalanceChangedEvent{
		TransactionID: trx.ID,
		GrowID:        trx.GrowID,
		Type:          trx.Type,
		OldBalance:    trx.OldBalance,
		NewBalance:    trx.NewBalance,
		Actor:         admin,
	}
	if err := s.events.PublishBalanceChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish BalanceChanged event", zap.Error(err))
	}
}
