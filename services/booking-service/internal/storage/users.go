package storage

import "context"

// UserBilling is the slice of the user row the payment endpoints need.
type UserBilling struct {
	ID             string
	Fullname       string
	Email          string
	StripeCustomer string
}

func (r *BookingRepository) GetUserBilling(ctx context.Context, userID string) (UserBilling, error) {
	var u UserBilling
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, fullname, email, COALESCE(stripe_customer, '')
		FROM users
		WHERE id = $1
	`, userID).Scan(&u.ID, &u.Fullname, &u.Email, &u.StripeCustomer)
	if err != nil {
		return UserBilling{}, err
	}
	return u, nil
}

func (r *BookingRepository) SetUserCustomer(ctx context.Context, userID, customerID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET stripe_customer = $2
		WHERE id = $1 AND (stripe_customer IS NULL OR stripe_customer = '')
	`, userID, customerID)
	return err
}
