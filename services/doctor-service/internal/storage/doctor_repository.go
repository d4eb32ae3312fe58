package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/careslot/careslot/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

type DoctorSummary struct {
	ID           string  `json:"id"`
	Fullname     string  `json:"fullname"`
	Specialty    string  `json:"specialty"`
	Photo        string  `json:"photo"`
	Price        float64 `json:"price"`
	AvgRating    float64 `json:"avg_rating"`
	TotalRating  int     `json:"total_rating"`
	TotalPatient int     `json:"total_patient"`
	Experience   int     `json:"experience"`
	LocationX    float64 `json:"location_x"`
	LocationY    float64 `json:"location_y"`
}

type DaySlots struct {
	Day   string   `json:"day"`
	Slots []string `json:"slots"`
}

type Review struct {
	ID        string  `json:"id"`
	Reviewer  string  `json:"reviewer"`
	Rate      float64 `json:"rate"`
	Comment   string  `json:"comment"`
	CreatedAt string  `json:"created_at"`
}

type DoctorDetails struct {
	DoctorSummary
	About          string     `json:"about"`
	StartTime      string     `json:"start_time"`
	EndTime        string     `json:"end_time"`
	AvailableSlots []DaySlots `json:"available_slots"`
	Reviews        []Review   `json:"reviews"`
	IsFavourite    bool       `json:"is_favourite"`
}

const summaryColumns = `
	id::text, fullname, specialty, COALESCE(photo, ''), price,
	COALESCE(avg_rating, 0), COALESCE(total_rating, 0),
	COALESCE(total_patient, 0), COALESCE(experience, 0),
	COALESCE(location_x, 0), COALESCE(location_y, 0)`

func scanSummary(row pgx.Row, d *DoctorSummary) error {
	return row.Scan(
		&d.ID, &d.Fullname, &d.Specialty, &d.Photo, &d.Price,
		&d.AvgRating, &d.TotalRating,
		&d.TotalPatient, &d.Experience,
		&d.LocationX, &d.LocationY,
	)
}

func (r *Repository) Search(ctx context.Context, name, specialty string) ([]DoctorSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM doctors
		WHERE ($1 = '' OR fullname ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR specialty ILIKE $2)
		ORDER BY fullname
	`, name, specialty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []DoctorSummary
	for rows.Next() {
		var d DoctorSummary
		if err := scanSummary(rows, &d); err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func (r *Repository) TopRated(ctx context.Context, limit int) ([]DoctorSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM doctors
		ORDER BY avg_rating DESC, total_rating DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []DoctorSummary
	for rows.Next() {
		var d DoctorSummary
		if err := scanSummary(rows, &d); err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func (r *Repository) GetDetails(ctx context.Context, doctorID, userID string) (DoctorDetails, error) {
	var d DoctorDetails
	var slotsJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT `+summaryColumns+`,
		       COALESCE(about, ''), COALESCE(start_time, ''), COALESCE(end_time, ''),
		       COALESCE(available_slots, '[]'::jsonb)
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(
		&d.ID, &d.Fullname, &d.Specialty, &d.Photo, &d.Price,
		&d.AvgRating, &d.TotalRating,
		&d.TotalPatient, &d.Experience,
		&d.LocationX, &d.LocationY,
		&d.About, &d.StartTime, &d.EndTime,
		&slotsJSON,
	)
	if err != nil {
		return DoctorDetails{}, err
	}
	if err := json.Unmarshal(slotsJSON, &d.AvailableSlots); err != nil {
		return DoctorDetails{}, err
	}

	reviews, err := r.reviews(ctx, doctorID)
	if err != nil {
		return DoctorDetails{}, err
	}
	d.Reviews = reviews

	if userID != "" {
		err = r.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM favourites WHERE doctor_id = $1 AND user_id = $2
			)
		`, doctorID, userID).Scan(&d.IsFavourite)
		if err != nil {
			return DoctorDetails{}, err
		}
	}
	return d, nil
}

func (r *Repository) reviews(ctx context.Context, doctorID string) ([]Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rv.id::text, u.fullname, rv.rate, rv.comment, rv.created_at::text
		FROM reviews rv
		JOIN users u ON u.id = rv.user_id
		WHERE rv.doctor_id = $1
		ORDER BY rv.created_at DESC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.Reviewer, &rv.Rate, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

// AddReview inserts the review and refreshes the doctor's aggregate
// rating in the same transaction.
func (r *Repository) AddReview(ctx context.Context, doctorID, userID string, rate float64, comment string) error {
	return r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO reviews (id, doctor_id, user_id, rate, comment)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), doctorID, userID, rate, comment); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE doctors
			SET avg_rating = sub.avg, total_rating = sub.cnt
			FROM (
				SELECT AVG(rate) AS avg, COUNT(*) AS cnt
				FROM reviews
				WHERE doctor_id = $1
			) sub
			WHERE id = $1
		`, doctorID)
		return err
	})
}

// ToggleFavourite flips the favourite flag and reports its new state.
func (r *Repository) ToggleFavourite(ctx context.Context, doctorID, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM favourites WHERE doctor_id = $1 AND user_id = $2
	`, doctorID, userID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO favourites (doctor_id, user_id)
		VALUES ($1, $2)
	`, doctorID, userID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) Exists(ctx context.Context, doctorID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)
	`, doctorID).Scan(&exists)
	return exists, err
}

func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}
