package storage

import (
	"context"

	"github.com/careslot/careslot/libs/db"
	"github.com/jackc/pgx/v5"
)

type User struct {
	ID             string
	Fullname       string
	Email          string
	PasswordHash   string
	Phone          string
	Birthdate      string
	Avatar         string
	Role           string
	StripeCustomer string
}

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, fullname, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Fullname, user.Email, user.PasswordHash, user.Role)
	return err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.get(ctx, "email = $1", email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, fullname, email, password_hash,
		       COALESCE(phone, ''), COALESCE(birthdate, ''), COALESCE(avatar, ''),
		       role, COALESCE(stripe_customer, '')
		FROM users
		WHERE `+where, arg).Scan(
		&u.ID, &u.Fullname, &u.Email, &u.PasswordHash,
		&u.Phone, &u.Birthdate, &u.Avatar,
		&u.Role, &u.StripeCustomer,
	)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, fullname, phone, birthdate, avatar string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET fullname = $2, phone = $3, birthdate = $4, avatar = $5
		WHERE id = $1
	`, id, fullname, phone, birthdate, avatar)
	return err
}

// SetStripeCustomer binds the processor customer once; later calls
// with a different id are ignored so the first binding wins.
func (r *UserRepository) SetStripeCustomer(ctx context.Context, id, customer string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET stripe_customer = $2
		WHERE id = $1 AND (stripe_customer IS NULL OR stripe_customer = '')
	`, id, customer)
	return err
}

func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}
