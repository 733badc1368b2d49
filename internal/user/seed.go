package user

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/prodev-core/internal/dbaccess"
)

// seedColumns maps CSV header names onto record indexes.
// id is -1 when the file has no user_id column.
type seedColumns struct {
	id, name, email, age int
}

// Seed loads users from CSV. The header must name the name, email and
// age columns, in any order; user_id is optional and generated when
// absent. Each row is written in its own transaction, so a bad row
// never undoes the rows before it.
//
// Rows whose user_id already exists are skipped. Rows that cannot be
// parsed or fail validation are counted as malformed. Rows whose email
// is already taken are counted as rejected. Seeding the same file twice
// inserts nothing the second time.
func (r *Repository) Seed(ctx context.Context, src io.Reader) (SeedResult, error) {
	var res SeedResult

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return res, fmt.Errorf("%w: empty file", ErrInvalidCSV)
	}
	if err != nil {
		return res, fmt.Errorf("%w: reading header: %w", ErrInvalidCSV, err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return res, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			res.Malformed++
			r.logger.Warn("skipping unparseable csv row", "line", parseErr.Line, "error", err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("reading csv: %w", err)
		}

		u, err := cols.user(record)
		if err != nil {
			res.Malformed++
			line, _ := reader.FieldPos(0)
			r.logger.Warn("skipping malformed csv row", "line", line, "error", err)
			continue
		}

		inserted, err := r.seedOne(ctx, &u)
		switch {
		case errors.Is(err, ErrEmailExists):
			res.Rejected++
			r.logger.Warn("skipping csv row with duplicate email", "user_id", u.ID, "email", u.Email)
		case err != nil:
			return res, fmt.Errorf("seeding user %s: %w", u.ID, err)
		case inserted:
			res.Inserted++
		default:
			res.Skipped++
		}
	}

	r.logger.Info("seed complete",
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"malformed", res.Malformed,
		"rejected", res.Rejected,
	)
	if res.Inserted > 0 {
		r.changed(OpSeeded, "")
	}
	return res, nil
}

// seedOne inserts u unless its ID is already present.
func (r *Repository) seedOne(ctx context.Context, u *User) (bool, error) {
	var inserted bool
	err := r.layer.InTx(ctx, func(ctx context.Context, q dbaccess.Querier) error {
		inserted = false
		exists, err := rowExists(ctx, q, idExists, u.ID)
		if err != nil || exists {
			return err
		}
		if err := r.insert(ctx, q, u); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func parseHeader(header []string) (seedColumns, error) {
	cols := seedColumns{id: -1, name: -1, email: -1, age: -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		switch h {
		case idColumn:
			cols.id = i
		case nameColumn:
			cols.name = i
		case emailColumn:
			cols.email = i
		case ageColumn:
			cols.age = i
		}
	}

	var absent []string
	if cols.name < 0 {
		absent = append(absent, nameColumn)
	}
	if cols.email < 0 {
		absent = append(absent, emailColumn)
	}
	if cols.age < 0 {
		absent = append(absent, ageColumn)
	}
	if len(absent) > 0 {
		return cols, fmt.Errorf("%w: missing column(s) %s", ErrInvalidCSV, strings.Join(absent, ", "))
	}
	return cols, nil
}

// user builds a validated User from one record.
func (c seedColumns) user(record []string) (User, error) {
	last := max(c.id, c.name, c.email, c.age)
	if len(record) <= last {
		return User{}, fmt.Errorf("%w: %d fields, want at least %d", ErrInvalidUser, len(record), last+1)
	}

	age, err := parseAge(record[c.age])
	if err != nil {
		return User{}, err
	}

	u := User{
		Name:  strings.TrimSpace(record[c.name]),
		Email: strings.TrimSpace(record[c.email]),
		Age:   age,
	}
	if c.id >= 0 {
		u.ID = strings.TrimSpace(record[c.id])
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	if err := Validate(&u); err != nil {
		return User{}, err
	}
	return u, nil
}

// parseAge accepts integer and decimal text, rounding to a whole year.
func parseAge(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: age %q is not a number", ErrInvalidUser, s)
	}
	if f < 0 || f > maxAge {
		return 0, fmt.Errorf("%w: age %s out of range 0..%d", ErrInvalidUser, s, maxAge)
	}
	return int64(math.Round(f)), nil
}
