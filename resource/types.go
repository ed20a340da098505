package resource

// Handle is an opaque reference to a value in a table.
// Handle 0 is reserved and always invalid.
//
// The low 24 bits hold the slot index plus one; the high 8 bits hold the slot
// generation, so a handle dropped once never resolves again even after its
// slot has been reused.
type Handle uint32

const (
	indexBits = 24
	indexMask = 1<<indexBits - 1
	maxSlots  = indexMask
)

func makeHandle(slot int, gen uint8) Handle {
	return Handle(gen)<<indexBits | Handle(slot+1)
}

func (h Handle) slot() int {
	return int(h&indexMask) - 1
}

func (h Handle) generation() uint8 {
	return uint8(h >> indexBits)
}

// Kind tags the type of value stored behind a handle.
type Kind uint32

// Event types for handle lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage mechanism for handles.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(kind Kind, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Drop removes a value and returns (value, true) if the handle was live.
	Drop(handle Handle) (any, bool)

	// Close releases all values held by the backend.
	Close() error
}

// Table manages handles with kind information and observer support.
type Table interface {
	Insert(kind Kind, value any) Handle
	Get(handle Handle) (any, bool)
	GetKind(handle Handle, kind Kind) (any, bool)
	Remove(handle Handle) (any, bool)
	Subscribe(Observer)
	Unsubscribe(Observer)
	Len() int
	Clear()
	Close() error
}

// Dropper is optionally implemented by values that need cleanup when their
// handle is removed or the table is closed.
type Dropper interface {
	Drop()
}
