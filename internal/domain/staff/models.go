package staff

import (
	"errors"
	"time"

	"opsdesk/internal/domain/location"
)

var (
	ErrStaffNotFound   = errors.New("staff not found")
	ErrNameRequired    = errors.New("staff name required")
	ErrInvalidLocation = errors.New("invalid work location")
)

// Profile is a staff directory entry. The embedded location config is what
// the resolver reads.
type Profile struct {
	ID          string `json:"id" firestore:"id"`
	UserID      string `json:"userId,omitempty" firestore:"userId"`
	Name        string `json:"name" firestore:"name"`
	Email       string `json:"email,omitempty" firestore:"email"`
	Phone       string `json:"phone,omitempty" firestore:"phone"`
	Designation string `json:"designation,omitempty" firestore:"designation"`
	Active      bool   `json:"active" firestore:"active"`
	location.StaffConfig
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

func (p Profile) Config() *location.StaffConfig {
	cfg := p.StaffConfig
	return &cfg
}
