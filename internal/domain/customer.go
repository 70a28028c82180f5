package domain

import "time"

type Customer struct {
	ID      string
	Name    string
	Address *string
	Phone   *string
	Route   *string

	CreatedAt *time.Time
	UpdatedAt *time.Time
}
