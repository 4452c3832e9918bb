package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"referral_rewards/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// maxRedemptions is the lifetime cap on codes a single user may redeem.
const maxRedemptions = 6

const (
	uniqueViolation      = "23505"
	codeUniqueConstraint = "referrals_referral_code_key"
	userUniqueConstraint = "referrals_user_id_key"
)

const (
	ownerRewardCoins    = 100
	redeemerRewardCoins = 50
)

type referralRow struct {
	UserID        int64          `db:"user_id"`
	Code          string         `db:"referral_code"`
	ReferralCount int            `db:"referral_count"`
	RedeemedCodes pq.StringArray `db:"redeemed_codes"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (row *referralRow) toModel() *model.Referral {
	return &model.Referral{
		UserID:        row.UserID,
		Code:          row.Code,
		ReferralCount: row.ReferralCount,
		RedeemedCodes: []string(row.RedeemedCodes),
		CreatedAt:     row.CreatedAt,
	}
}

func (r *Repository) GetReferralByUserID(ctx context.Context, userID int64) (*model.Referral, error) {
	var row referralRow
	query, args, err := squirrel.
		Select("user_id", "referral_code", "referral_count", "redeemed_codes", "created_at").
		From("referrals").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return row.toModel(), nil
}

// CreateReferral inserts a fresh referral record for userID. The store's
// uniqueness constraints are the concurrency-safety mechanism: a duplicate
// code surfaces as ErrCodeTaken (caller retries with a new candidate), a
// duplicate user as ErrUserExists (caller lost a concurrent first-generation
// race and should re-read the winning row).
func (r *Repository) CreateReferral(ctx context.Context, userID int64, code string) error {
	query, args, err := squirrel.
		Insert("referrals").
		SetMap(map[string]interface{}{
			"user_id":       userID,
			"referral_code": code,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build referral insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case codeUniqueConstraint:
				return ErrCodeTaken
			case userUniqueConstraint:
				return ErrUserExists
			}
		}
		return fmt.Errorf("failed to insert referral: %w", err)
	}

	return nil
}

type referralOwner struct {
	UserID   int64  `db:"user_id"`
	Username string `db:"username"`
}

// RedeemCode validates and applies a redemption as a single transaction.
// Validation order is part of the contract: code existence, self-redemption,
// redeemer record existence, repeat redemption, lifetime limit. On success the
// caller's redeemed list, the owner's referral count and both coin balances
// are updated together or not at all.
func (r *Repository) RedeemCode(ctx context.Context, userID int64, code string) (*model.Redemption, error) {
	var result *model.Redemption

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		owner, err := getCodeOwnerTx(ctx, tx, code)
		if err != nil {
			return err
		}

		if owner.UserID == userID {
			return ErrSelfRedemption
		}

		redeemer, err := lockReferralRowsTx(ctx, tx, owner.UserID, userID)
		if err != nil {
			return err
		}

		if err := checkRedemption(redeemer, code); err != nil {
			return err
		}

		if err := appendRedeemedCodeTx(ctx, tx, userID, code); err != nil {
			return err
		}

		if err := incrementReferralCountTx(ctx, tx, owner.UserID); err != nil {
			return err
		}

		if err := r.incrementCoinsTx(ctx, tx, owner.UserID, ownerRewardCoins); err != nil {
			return err
		}

		if err := r.incrementCoinsTx(ctx, tx, userID, redeemerRewardCoins); err != nil {
			return err
		}

		result = &model.Redemption{
			AppliedCode:   code,
			OwnerUsername: owner.Username,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// checkRedemption enforces the per-redeemer invariants. The repeat check runs
// before the limit check so a duplicate attempt is reported as such even when
// the redeemer is already at the cap.
func checkRedemption(redeemer *referralRow, code string) error {
	for _, redeemed := range redeemer.RedeemedCodes {
		if redeemed == code {
			return ErrAlreadyRedeemed
		}
	}

	if len(redeemer.RedeemedCodes) >= maxRedemptions {
		return ErrRedemptionLimit
	}

	return nil
}

func getCodeOwnerTx(ctx context.Context, tx *sqlx.Tx, code string) (*referralOwner, error) {
	query, args, err := squirrel.
		Select("r.user_id", "u.username").
		From("referrals r").
		Join("users u ON u.id = r.user_id").
		Where(squirrel.Eq{"r.referral_code": code}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var owner referralOwner
	err = tx.GetContext(ctx, &owner, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get code owner: %w", err)
	}

	return &owner, nil
}

// lockReferralRowsTx takes row locks on both referral rows. Ordering by
// user_id keeps the lock order deterministic, so two users redeeming each
// other's codes concurrently cannot deadlock. Returns the redeemer's row.
func lockReferralRowsTx(ctx context.Context, tx *sqlx.Tx, ownerID, redeemerID int64) (*referralRow, error) {
	query, args, err := squirrel.
		Select("user_id", "referral_code", "referral_count", "redeemed_codes", "created_at").
		From("referrals").
		Where(squirrel.Eq{"user_id": []int64{ownerID, redeemerID}}).
		OrderBy("user_id").
		Suffix("FOR UPDATE").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []referralRow
	err = tx.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to lock referral rows: %w", err)
	}

	for i := range rows {
		if rows[i].UserID == redeemerID {
			return &rows[i], nil
		}
	}

	return nil, ErrNoReferralRecord
}

func appendRedeemedCodeTx(ctx context.Context, tx *sqlx.Tx, userID int64, code string) error {
	query, args, err := squirrel.
		Update("referrals").
		Set("redeemed_codes", squirrel.Expr("array_append(redeemed_codes, ?)", code)).
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to append redeemed code: %w", err)
	}

	return nil
}

func incrementReferralCountTx(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	query, args, err := squirrel.
		Update("referrals").
		Set("referral_count", squirrel.Expr("referral_count + 1")).
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to increment referral count: %w", err)
	}

	return nil
}
