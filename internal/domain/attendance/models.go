package attendance

import "time"

const (
	StatusPresent = "PRESENT"
	StatusLate    = "LATE"
	StatusAbsent  = "ABSENT"
	StatusLeave   = "LEAVE"
)

// DayLayout is the calendar-day key format used for Record.Date.
const DayLayout = "2006-01-02"

type LocationSnapshot struct {
	Lat     float64 `json:"lat" firestore:"lat"`
	Lng     float64 `json:"lng" firestore:"lng"`
	Address string  `json:"address" firestore:"address"`
}

type Record struct {
	ID              string            `json:"id" firestore:"id"`
	StaffID         string            `json:"staffId" firestore:"staffId"`
	StaffName       string            `json:"staffName" firestore:"staffName"`
	Date            string            `json:"date" firestore:"date"`
	CheckInTime     *time.Time        `json:"checkInTime,omitempty" firestore:"checkInTime"`
	CheckOutTime    *time.Time        `json:"checkOutTime,omitempty" firestore:"checkOutTime"`
	Status          string            `json:"status" firestore:"status"`
	IsManualByAdmin bool              `json:"isManualByAdmin" firestore:"isManualByAdmin"`
	Note            string            `json:"note,omitempty" firestore:"note"`
	Location        *LocationSnapshot `json:"location" firestore:"location"`
	CreatedAt       time.Time         `json:"createdAt" firestore:"createdAt"`
}

func (r Record) CheckedIn() bool {
	return r.CheckInTime != nil
}

func (r Record) CheckedOut() bool {
	return r.CheckOutTime != nil
}

func ValidStatus(status string) bool {
	switch status {
	case StatusPresent, StatusLate, StatusAbsent, StatusLeave:
		return true
	}
	return false
}

// Subject is the staff member an attendance action applies to.
type Subject struct {
	StaffID                 string
	StaffName               string
	RequireCheckoutLocation bool
}

// Roster entry for absence marking.
type Member struct {
	StaffID   string
	StaffName string
}
