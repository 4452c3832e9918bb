package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"referral_rewards/internal/model"
	"referral_rewards/internal/repository"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8

	// 36^8 candidate codes make collisions negligible; the cap only guards
	// against a misbehaving store reporting every insert as a duplicate.
	maxGenerateAttempts = 10
)

type ReferralService struct {
	repo ReferralRepository
}

func NewReferralService(repo ReferralRepository) *ReferralService {
	return &ReferralService{
		repo: repo,
	}
}

// GenerateCode returns the caller's referral code, creating one on first call.
// Uniqueness is delegated to the store: insert a candidate, retry on a code
// collision, and treat a lost concurrent first-call race as "already exists".
func (s *ReferralService) GenerateCode(ctx context.Context, userID int64) (string, error) {
	referral, err := s.repo.GetReferralByUserID(ctx, userID)
	if err == nil {
		return referral.Code, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to get referral record: %w", err)
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate code candidate: %w", err)
		}

		err = s.repo.CreateReferral(ctx, userID, code)
		switch {
		case err == nil:
			return code, nil
		case errors.Is(err, repository.ErrCodeTaken):
			continue
		case errors.Is(err, repository.ErrUserExists):
			referral, err := s.repo.GetReferralByUserID(ctx, userID)
			if err != nil {
				return "", fmt.Errorf("failed to re-read referral record: %w", err)
			}
			return referral.Code, nil
		default:
			return "", fmt.Errorf("failed to create referral record: %w", err)
		}
	}

	return "", fmt.Errorf("failed to generate a unique code after %d attempts", maxGenerateAttempts)
}

func (s *ReferralService) RedeemCode(ctx context.Context, userID int64, code string) (*model.Redemption, error) {
	if code == "" {
		return nil, ErrInvalidCode
	}

	redemption, err := s.repo.RedeemCode(ctx, userID, code)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCodeNotFound):
			return nil, ErrInvalidCode
		case errors.Is(err, repository.ErrSelfRedemption):
			return nil, ErrSelfRedemption
		case errors.Is(err, repository.ErrNoReferralRecord):
			return nil, ErrNoReferralRecord
		case errors.Is(err, repository.ErrAlreadyRedeemed):
			return nil, ErrAlreadyRedeemed
		case errors.Is(err, repository.ErrRedemptionLimit):
			return nil, ErrRedemptionLimit
		}
		return nil, fmt.Errorf("failed to redeem code: %w", err)
	}

	return redemption, nil
}

func (s *ReferralService) GetReferralStatus(ctx context.Context, userID int64) (*model.Referral, error) {
	referral, err := s.repo.GetReferralByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoReferralRecord
		}
		return nil, fmt.Errorf("failed to get referral record: %w", err)
	}
	return referral, nil
}

func randomCode(length int) (string, error) {
	code := make([]byte, length)
	alphabetSize := big.NewInt(int64(len(codeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
