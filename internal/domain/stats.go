package domain

import "math"

// GuestStats is the host's summary of an event's responses.
type GuestStats struct {
	AttendingCount     int `json:"attendingCount"`
	DeclinedCount      int `json:"declinedCount"`
	AttendingHeadcount int `json:"attendingHeadcount"`
	TotalInvited       int `json:"totalInvited"`
	ResponseRate       int `json:"responseRate"`
}

// ComputeStats summarizes guests. TotalInvited is the number of guest records.
func ComputeStats(guests []*Guest) GuestStats {
	var s GuestStats
	s.TotalInvited = len(guests)
	for _, g := range guests {
		switch g.Response {
		case ResponseAttending:
			s.AttendingCount++
			s.AttendingHeadcount += g.Headcount()
		case ResponseDeclined:
			s.DeclinedCount++
		}
	}
	if s.TotalInvited > 0 {
		responded := s.AttendingCount + s.DeclinedCount
		s.ResponseRate = int(math.Round(100 * float64(responded) / float64(s.TotalInvited)))
	}
	return s
}
