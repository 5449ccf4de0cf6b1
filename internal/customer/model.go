package customer

import (
	"time"

	"github.com/gofrs/uuid"
)

// Customer owns orders through orders.customer_id.
type Customer struct {
	ID        uuid.UUID
	FullName  string
	Email     string
	Address   string
	CreatedAt time.Time
	UpdatedAt *time.Time
}
