package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RideRepo struct {
	db *pgxpool.Pool
}

func NewRideRepo(db *pgxpool.Pool) *RideRepo {
	return &RideRepo{db: db}
}

// Create inserts a pending ride and fills the generated fields.
func (r *RideRepo) Create(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	q := txOrPool(ctx, r.db)

	query := `
		INSERT INTO rides (passenger_user_id, status, start_x, start_y, end_x, end_y, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at, version;`

	err := q.QueryRow(ctx, query,
		ride.PassengerID,
		ride.Status,
		ride.Start.X,
		ride.Start.Y,
		ride.End.X,
		ride.End.Y,
		ride.Price,
	).Scan(&ride.ID, &ride.CreatedAt, &ride.UpdatedAt, &ride.Version)
	if err != nil {
		// Гонка двух создателей: частичный индекс активных поездок строже,
		// чем предварительная проверка в сервисе.
		if postgres.IsUniqueViolation(err) {
			return nil, types.ErrActiveRideExists
		}
		return nil, fmt.Errorf("ride repo: Create: %w", err)
	}

	return ride, nil
}

func (r *RideRepo) GetByID(ctx context.Context, rideID int64) (*models.Ride, error) {
	q := txOrPool(ctx, r.db)

	var ride models.Ride
	query := `
		SELECT id, passenger_user_id, driver_user_id, status,
		       start_x, start_y, end_x, end_y, price,
		       created_at, updated_at, version
		FROM rides
		WHERE id = $1;`

	err := q.QueryRow(ctx, query, rideID).Scan(
		&ride.ID, &ride.PassengerID, &ride.DriverID, &ride.Status,
		&ride.Start.X, &ride.Start.Y, &ride.End.X, &ride.End.Y, &ride.Price,
		&ride.CreatedAt, &ride.UpdatedAt, &ride.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, fmt.Errorf("ride repo: GetByID: %w", err)
	}

	return &ride, nil
}

// AssignDriver moves a pending ride to driver_assigned and records the driver.
// The status guard makes stale assignments lose; the partial unique index on
// active rides per driver is the authoritative double-assignment guard.
func (r *RideRepo) AssignDriver(ctx context.Context, rideID, driverID int64) error {
	q := txOrPool(ctx, r.db)

	query := `
		UPDATE rides
		SET
			status = $3,
			driver_user_id = $2,
			updated_at = now(),
			version = version + 1
		WHERE id = $1 AND status = $4;`

	cmdTag, err := q.Exec(ctx, query, rideID, driverID, types.StatusDriverAssigned, types.StatusPending)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return types.ErrActiveRideExists
		}
		return fmt.Errorf("ride repo: AssignDriver: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return types.ErrRideStateConflict
	}

	return nil
}

// UpdateStatus performs one guarded transition from→to. Zero affected rows
// means somebody moved the ride first.
func (r *RideRepo) UpdateStatus(ctx context.Context, rideID int64, from, to types.RideStatus) error {
	q := txOrPool(ctx, r.db)

	query := `
		UPDATE rides
		SET
			status = $3,
			updated_at = now(),
			version = version + 1
		WHERE id = $1 AND status = $2;`

	cmdTag, err := q.Exec(ctx, query, rideID, from, to)
	if err != nil {
		return fmt.Errorf("ride repo: UpdateStatus: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return types.ErrRideStateConflict
	}

	return nil
}

func (r *RideRepo) ActiveByPassenger(ctx context.Context, passengerID int64) (*models.Ride, error) {
	q := txOrPool(ctx, r.db)

	var ride models.Ride
	query := `
		SELECT id, passenger_user_id, driver_user_id, status,
		       start_x, start_y, end_x, end_y, price,
		       created_at, updated_at, version
		FROM rides
		WHERE passenger_user_id = $1 AND status NOT IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1;`

	err := q.QueryRow(ctx, query, passengerID, types.StatusCompleted, types.StatusCancelled).Scan(
		&ride.ID, &ride.PassengerID, &ride.DriverID, &ride.Status,
		&ride.Start.X, &ride.Start.Y, &ride.End.X, &ride.End.Y, &ride.Price,
		&ride.CreatedAt, &ride.UpdatedAt, &ride.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNoActiveRide
		}
		return nil, fmt.Errorf("ride repo: ActiveByPassenger: %w", err)
	}

	return &ride, nil
}

func (r *RideRepo) ActiveByDriver(ctx context.Context, driverID int64) (*models.Ride, error) {
	q := txOrPool(ctx, r.db)

	var ride models.Ride
	query := `
		SELECT id, passenger_user_id, driver_user_id, status,
		       start_x, start_y, end_x, end_y, price,
		       created_at, updated_at, version
		FROM rides
		WHERE driver_user_id = $1 AND status NOT IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1;`

	err := q.QueryRow(ctx, query, driverID, types.StatusCompleted, types.StatusCancelled).Scan(
		&ride.ID, &ride.PassengerID, &ride.DriverID, &ride.Status,
		&ride.Start.X, &ride.Start.Y, &ride.End.X, &ride.End.Y, &ride.Price,
		&ride.CreatedAt, &ride.UpdatedAt, &ride.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNoActiveRide
		}
		return nil, fmt.Errorf("ride repo: ActiveByDriver: %w", err)
	}

	return &ride, nil
}

func (r *RideRepo) ListByPassenger(ctx context.Context, passengerID int64, limit, offset int) ([]models.Ride, error) {
	rides, err := r.list(ctx, "passenger_user_id", passengerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ride repo: ListByPassenger: %w", err)
	}
	return rides, nil
}

func (r *RideRepo) ListByDriver(ctx context.Context, driverID int64, limit, offset int) ([]models.Ride, error) {
	rides, err := r.list(ctx, "driver_user_id", driverID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ride repo: ListByDriver: %w", err)
	}
	return rides, nil
}

// list: column приходит только из двух вызовов выше, не из запроса.
func (r *RideRepo) list(ctx context.Context, column string, userID int64, limit, offset int) ([]models.Ride, error) {
	q := txOrPool(ctx, r.db)

	query := fmt.Sprintf(`
		SELECT id, passenger_user_id, driver_user_id, status,
		       start_x, start_y, end_x, end_y, price,
		       created_at, updated_at, version
		FROM rides
		WHERE %s = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3;`, column)

	rows, err := q.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rides := make([]models.Ride, 0, limit)
	for rows.Next() {
		var ride models.Ride
		if err := rows.Scan(
			&ride.ID, &ride.PassengerID, &ride.DriverID, &ride.Status,
			&ride.Start.X, &ride.Start.Y, &ride.End.X, &ride.End.Y, &ride.Price,
			&ride.CreatedAt, &ride.UpdatedAt, &ride.Version,
		); err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rides, nil
}
