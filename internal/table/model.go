package table

// Status is the current state of a physical table on the floor.
type Status string

const (
	StatusFree         Status = "free"
	StatusOccupied     Status = "occupied"
	StatusReserved     Status = "reserved"
	StatusOutOfService Status = "out_of_service"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusFree, StatusOccupied, StatusReserved, StatusOutOfService:
		return true
	}
	return false
}

// Table is a physical seating unit. IDs are human-issued labels ("T01"),
// not surrogate keys.
type Table struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Capacity int    `json:"capacity"`
	Zone     string `json:"zone"`
	Status   Status `json:"status"`
}
