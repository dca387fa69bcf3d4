package manager

// Administrative control-plane operations, answered synchronously. The
// admin package carries these over a local unix socket; the CLI issues
// exactly one request per invocation.

// Op identifies one administrative operation.
type Op string

const (
	OpCloseRoom   Op = "close_room"
	OpListRooms   Op = "list_rooms"
	OpCleanUnused Op = "clean_unused"
	// OpSave and OpLoad are declared for the control protocol but not
	// implemented; all state is in memory and lost on restart.
	OpSave Op = "save"
	OpLoad Op = "load"
)

// Request is one administrative request.
type Request struct {
	Op     Op     `json:"op"`
	RoomID string `json:"room_id,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Status is the outcome of an administrative request.
type Status string

const (
	StatusSuccessful   Status = "successful"
	StatusUnsuccessful Status = "unsuccessful"
)

// Answer is the synchronous reply to a Request.
type Answer struct {
	Status Status      `json:"status"`
	Rooms  []RoomIndex `json:"rooms,omitempty"`
}

// ProcessRequest executes one administrative operation.
func (m *Manager) ProcessRequest(req Request) Answer {
	switch req.Op {
	case OpCloseRoom:
		rm, ok := m.GetRoom(req.RoomID)
		if !ok {
			return Answer{Status: StatusUnsuccessful}
		}
		m.removeRoom(req.RoomID, rm)
		return Answer{Status: StatusSuccessful}

	case OpListRooms:
		rooms := make([]RoomIndex, 0)
		for id, rm := range m.snapshot() {
			rooms = append(rooms, RoomIndex{
				ID:       id,
				Players:  rm.Names(),
				Capacity: rm.Capacity(),
			})
		}
		return Answer{Status: StatusSuccessful, Rooms: rooms}

	case OpCleanUnused:
		m.Maintain()
		return Answer{Status: StatusSuccessful}

	case OpSave, OpLoad:
		// Declared but unimplemented.
		return Answer{Status: StatusUnsuccessful}

	default:
		return Answer{Status: StatusUnsuccessful}
	}
}
