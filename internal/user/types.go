package user

// User is one row of user_data.
type User struct {
	ID    string `json:"user_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int64  `json:"age"`
}

// Change operations reported to a Notifier.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
	OpSeeded  = "seeded"
)

// Entity is the name change events are published under.
const Entity = "user"

// SeedResult summarises one Seed run.
type SeedResult struct {
	// Inserted counts new rows written.
	Inserted int `json:"inserted"`

	// Skipped counts rows whose user_id already existed.
	Skipped int `json:"skipped"`

	// Malformed counts rows that could not be parsed or failed validation.
	Malformed int `json:"malformed"`

	// Rejected counts rows the store refused, such as a duplicate email.
	Rejected int `json:"rejected"`
}

// Stats summarises the table.
type Stats struct {
	Count      int64   `json:"count"`
	AverageAge float64 `json:"average_age"`
}
