package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"referral_rewards/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type userRow struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	Coins     int       `db:"coins"`
	AuthType  string    `db:"auth_type"`
	CreatedAt time.Time `db:"created_at"`
}

func (u *userRow) toModel() *model.User {
	return &model.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Coins:     u.Coins,
		AuthType:  u.AuthType,
		CreatedAt: u.CreatedAt,
	}
}

func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query, args, err := squirrel.
		Insert("users").
		SetMap(map[string]interface{}{
			"username":  user.Username,
			"email":     user.Email,
			"auth_type": user.AuthType,
		}).
		Suffix("RETURNING id, created_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user insert query: %w", err)
	}

	row := r.db.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&user.ID, &user.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

func (r *Repository) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	var user userRow
	query, args, err := squirrel.
		Select("id", "username", "email", "coins", "auth_type", "created_at").
		From("users").
		Where(squirrel.Eq{"id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return user.toModel(), nil
}

// IncrementCoins applies an atomic relative update so concurrent writers never
// overwrite each other's balance.
func (r *Repository) IncrementCoins(ctx context.Context, userID int64, delta int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		return r.incrementCoinsTx(ctx, tx, userID, delta)
	})
}

func (r *Repository) incrementCoinsTx(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	query, args, err := squirrel.
		Update("users").
		Set("coins", squirrel.Expr("coins + ?", delta)).
		Where(squirrel.Eq{"id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update coins: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
