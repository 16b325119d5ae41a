package provider

type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type ConfigRequest struct {
	StartHour int   `json:"start_hour" binding:"required"`
	EndHour   int   `json:"end_hour" binding:"required"`
	WorkDays  []int `json:"work_days" binding:"required"`
}

type ConfigResponse struct {
	StartHour int   `json:"start_hour"`
	EndHour   int   `json:"end_hour"`
	WorkDays  []int `json:"work_days"`
}

type SlotRequest struct {
	Slot string `json:"slot" binding:"required"`
}

type BookingView struct {
	ID       int64    `json:"id"`
	Time     string   `json:"time"`
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Services []string `json:"services"`
	Minutes  int      `json:"minutes"`
	Status   string   `json:"status"`
}

type DayView struct {
	Date     string        `json:"date"`
	Workday  bool          `json:"workday"`
	Bookings []BookingView `json:"bookings"`
	Blocked  []string      `json:"blocked"`
}
