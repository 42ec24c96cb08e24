package model

import "time"

// Day types used to select the ticket price column.  The classification
// is assigned by the catalog when the showtime is scheduled.
const (
	DayTypeWeekday = "WEEKDAY"
	DayTypeWeekend = "WEEKEND"
	DayTypeHoliday = "HOLIDAY"
)

// Showtime is a scheduled screening of a movie in a specific hall at a
// specific start time.  The header is owned by the catalog; this
// service only maintains the derived AvailableSeats counter, which is a
// cache for list views.  The per-seat state table is authoritative for
// booking correctness.
//
// Fields:
//  ID             – primary key identifier.
//  HallID         – hall where the screening takes place.
//  MovieTitle     – title of the movie being screened.
//  StartsAt       – start of the screening.
//  DayType        – WEEKDAY, WEEKEND or HOLIDAY.
//  TotalSeats     – number of sellable seats in the hall.
//  AvailableSeats – TotalSeats minus seats currently HELD or CONFIRMED.
type Showtime struct {
	ID             uint64    // showtimes.id
	HallID         uint64    // showtimes.hall_id
	MovieTitle     string    // showtimes.movie_title
	StartsAt       time.Time // showtimes.starts_at
	DayType        string    // showtimes.day_type
	TotalSeats     uint32    // showtimes.total_seats
	AvailableSeats uint32    // showtimes.available_seats
}
