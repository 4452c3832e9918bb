package service

import (
	"context"
	"errors"

	"referral_rewards/internal/model"
)

var (
	ErrUserNotFound = errors.New("user not found")

	ErrInvalidCode      = errors.New("invalid referral code")
	ErrSelfRedemption   = errors.New("cannot use your own referral code")
	ErrNoReferralRecord = errors.New("generate your own referral code before redeeming one")
	ErrAlreadyRedeemed  = errors.New("you have already used this referral code")
	ErrRedemptionLimit  = errors.New("referral redemption limit reached")
)

type UserServiceI interface {
	RegisterUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	IncrementCoins(ctx context.Context, userID int64, delta int) error
}

type ReferralServiceI interface {
	GenerateCode(ctx context.Context, userID int64) (string, error)
	RedeemCode(ctx context.Context, userID int64, code string) (*model.Redemption, error)
	GetReferralStatus(ctx context.Context, userID int64) (*model.Referral, error)
}

type ReferralRepository interface {
	GetReferralByUserID(ctx context.Context, userID int64) (*model.Referral, error)
	CreateReferral(ctx context.Context, userID int64, code string) error
	RedeemCode(ctx context.Context, userID int64, code string) (*model.Redemption, error)
}
