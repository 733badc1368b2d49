package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/prodev-core/internal/dbaccess"
)

// Queries over user_data. Every listing is ordered by user_id so that
// streams, batches and pages agree on row order.
const (
	selectUsers = "SELECT user_id, name, email, age FROM user_data"
	orderByID   = " ORDER BY user_id"
	listUsers   = selectUsers + orderByID
	olderUsers  = selectUsers + " WHERE age > ?" + orderByID
	selectAges  = "SELECT age FROM user_data"
	countUsers  = "SELECT COUNT(*) AS n FROM user_data"
	userByID    = selectUsers + " WHERE user_id = ?"
	idExists    = "SELECT 1 FROM user_data WHERE user_id = ?"
	emailTaken  = "SELECT 1 FROM user_data WHERE email = ? AND user_id <> ?"
	insertUser  = "INSERT INTO user_data (user_id, name, email, age) VALUES (?, ?, ?, ?)"
	updateEmail = "UPDATE user_data SET email = ? WHERE user_id = ?"
	deleteByID  = "DELETE FROM user_data WHERE user_id = ?"
	ageColumn   = "age"
	countColumn = "n"
	idColumn    = "user_id"
	nameColumn  = "name"
	emailColumn = "email"
)

// Logger defines the logging interface used by the Repository.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Notifier announces committed changes. *mqtt.Client implements it.
type Notifier interface {
	PublishChange(entity, op, id string) error
}

// Options configures a Repository.
type Options struct {
	// Logger defaults to a no-op logger.
	Logger Logger

	// Notifier, if set, is told about every committed write.
	Notifier Notifier

	// IsUniqueViolation recognises the driver's duplicate-key error.
	// Without it, a duplicate email that slips past the pre-check
	// surfaces as a plain query error.
	IsUniqueViolation func(error) bool

	// ClearCacheOnWrite empties the layer's query cache after each write.
	ClearCacheOnWrite bool
}

// Repository reads and writes user_data through a dbaccess.Layer.
type Repository struct {
	layer    *dbaccess.Layer
	logger   Logger
	notifier Notifier
	isUnique func(error) bool
	clear    bool
}

// NewRepository creates a Repository on top of layer.
func NewRepository(layer *dbaccess.Layer, opts Options) *Repository {
	r := &Repository{
		layer:    layer,
		logger:   opts.Logger,
		notifier: opts.Notifier,
		isUnique: opts.IsUniqueViolation,
		clear:    opts.ClearCacheOnWrite,
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	if r.isUnique == nil {
		r.isUnique = func(error) bool { return false }
	}
	return r
}

// Create inserts u, assigning a new UUID when u.ID is empty.
// Returns ErrUserExists or ErrEmailExists on conflicts.
func (r *Repository) Create(ctx context.Context, u *User) error {
	if err := Validate(u); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Name = strings.TrimSpace(u.Name)

	err := r.layer.InTx(ctx, func(ctx context.Context, q dbaccess.Querier) error {
		exists, err := rowExists(ctx, q, idExists, u.ID)
		if err != nil {
			return err
		}
		if exists {
			return rejected(ErrUserExists)
		}
		return r.insert(ctx, q, u)
	})
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	r.changed(OpCreated, u.ID)
	return nil
}

// GetByID retrieves a user by ID. Returns ErrUserNotFound if absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	row, err := r.layer.QueryRow(ctx, userByID, id)
	if errors.Is(err, dbaccess.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by id: %w", err)
	}

	u, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateEmail changes the email of user id.
// Returns ErrUserNotFound or ErrEmailExists.
func (r *Repository) UpdateEmail(ctx context.Context, id, email string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}

	err := r.layer.InTx(ctx, func(ctx context.Context, q dbaccess.Querier) error {
		taken, err := rowExists(ctx, q, emailTaken, email, id)
		if err != nil {
			return err
		}
		if taken {
			return rejected(ErrEmailExists)
		}

		res, err := q.ExecContext(ctx, updateEmail, email, id)
		if err != nil {
			if r.isUnique(err) {
				return rejected(ErrEmailExists)
			}
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return missing(ErrUserNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating email: %w", err)
	}

	r.changed(OpUpdated, id)
	return nil
}

// Delete removes user id. Returns ErrUserNotFound if absent.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	n, err := r.layer.Exec(ctx, deleteByID, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}

	r.changed(OpDeleted, id)
	return nil
}

// List returns every user. The result is served from the query cache
// after the first call, until the cache is cleared.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.layer.QueryCached(ctx, listUsers)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return fromRows(rows)
}

// Count returns the number of users.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	row, err := r.layer.QueryRow(ctx, countUsers)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return row.Int64(countColumn)
}

// Stats returns the user count and average age. An empty table reports
// an average of 0.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	count, err := r.Count(ctx)
	if err != nil {
		return Stats{}, err
	}

	avg, err := r.AverageAge(ctx)
	if err != nil && !errors.Is(err, dbaccess.ErrNoData) {
		return Stats{}, err
	}
	return Stats{Count: count, AverageAge: avg}, nil
}

// Stream yields users one at a time from a single cursor.
// The caller must Close the producer.
func (r *Repository) Stream(ctx context.Context) (dbaccess.Producer[User], error) {
	rows, err := r.layer.StreamRows(ctx, listUsers)
	if err != nil {
		return nil, fmt.Errorf("streaming users: %w", err)
	}
	return dbaccess.Map[dbaccess.Row, User](rows, fromRow), nil
}

// Batches yields users in batches of up to size.
// The caller must Close the producer.
func (r *Repository) Batches(ctx context.Context, size int) (dbaccess.Producer[[]User], error) {
	batches, err := r.layer.StreamBatches(ctx, size, listUsers)
	if err != nil {
		return nil, fmt.Errorf("streaming user batches: %w", err)
	}
	return dbaccess.Map[[]dbaccess.Row, []User](batches, fromRows), nil
}

// Pages yields users a page at a time, each page on its own connection.
func (r *Repository) Pages(size int) (dbaccess.Producer[[]User], error) {
	pages, err := r.layer.Pages(listUsers, size)
	if err != nil {
		return nil, fmt.Errorf("paging users: %w", err)
	}
	return dbaccess.Map[dbaccess.Page, []User](pages, func(p dbaccess.Page) ([]User, error) {
		return fromRows(p.Rows)
	}), nil
}

// Page fetches the users from offset, at most size of them.
func (r *Repository) Page(ctx context.Context, size, offset int) ([]User, error) {
	pages, err := r.layer.Pages(listUsers, size)
	if err != nil {
		return nil, fmt.Errorf("paging users: %w", err)
	}
	page, err := pages.Fetch(ctx, offset)
	if err != nil {
		return nil, fmt.Errorf("fetching user page: %w", err)
	}
	return fromRows(page.Rows)
}

// AverageAge streams every age once and returns the mean.
// Returns dbaccess.ErrNoData when there are no users.
func (r *Repository) AverageAge(ctx context.Context) (float64, error) {
	ages, err := r.layer.StreamRows(ctx, selectAges)
	if err != nil {
		return 0, fmt.Errorf("streaming ages: %w", err)
	}
	return dbaccess.Average(ctx, ages, ageColumn)
}

// OlderThan yields users strictly older than age, reading the table in
// batches of batchSize. Rows with an unreadable age are logged and skipped.
func (r *Repository) OlderThan(ctx context.Context, batchSize int, age int64) (dbaccess.Producer[User], error) {
	batches, err := r.layer.StreamBatches(ctx, batchSize, listUsers)
	if err != nil {
		return nil, fmt.Errorf("streaming user batches: %w", err)
	}

	older := dbaccess.Filter(batches, func(row dbaccess.Row) bool {
		a, err := row.Int64(ageColumn)
		if err != nil {
			r.logger.Warn("skipping user with unreadable age",
				"user_id", row.String(idColumn),
				"error", err,
			)
			return false
		}
		return a > age
	})
	return dbaccess.Map(older, fromRow), nil
}

// AllAndOlder reads all users and the users older than age concurrently,
// each on its own connection.
func (r *Repository) AllAndOlder(ctx context.Context, age int64) (all, older []User, err error) {
	sets, err := r.layer.QueryAll(ctx,
		dbaccess.Statement{Query: listUsers},
		dbaccess.Statement{Query: olderUsers, Args: []any{age}},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching users concurrently: %w", err)
	}

	if all, err = fromRows(sets[0]); err != nil {
		return nil, nil, err
	}
	if older, err = fromRows(sets[1]); err != nil {
		return nil, nil, err
	}
	return all, older, nil
}

// insert writes u, mapping a duplicate email to ErrEmailExists.
func (r *Repository) insert(ctx context.Context, q dbaccess.Querier, u *User) error {
	taken, err := rowExists(ctx, q, emailTaken, u.Email, u.ID)
	if err != nil {
		return err
	}
	if taken {
		return rejected(ErrEmailExists)
	}

	if _, err := q.ExecContext(ctx, insertUser, u.ID, u.Name, u.Email, u.Age); err != nil {
		if r.isUnique(err) {
			return rejected(ErrEmailExists)
		}
		return err
	}
	return nil
}

// changed runs the post-commit side effects of a write.
func (r *Repository) changed(op, id string) {
	if r.clear {
		r.layer.Cache().Clear()
	}
	if r.notifier == nil {
		return
	}
	if err := r.notifier.PublishChange(Entity, op, id); err != nil {
		r.logger.Warn("publishing user change failed",
			"op", op,
			"user_id", id,
			"error", err,
		)
	}
}

// rowExists reports whether query returns at least one row.
func rowExists(ctx context.Context, q dbaccess.Querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

// fromRow maps a user_data row onto a User.
func fromRow(row dbaccess.Row) (User, error) {
	age, err := row.Int64(ageColumn)
	if err != nil {
		return User{}, fmt.Errorf("reading user %s: %w", row.String(idColumn), err)
	}
	return User{
		ID:    row.String(idColumn),
		Name:  row.String(nameColumn),
		Email: row.String(emailColumn),
		Age:   age,
	}, nil
}

// fromRows maps a batch of rows.
func fromRows(rows []dbaccess.Row) ([]User, error) {
	users := make([]User, 0, len(rows))
	for _, row := range rows {
		u, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}
