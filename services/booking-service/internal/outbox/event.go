package outbox

// Event types; the Kafka topic name equals the event type.
const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentUpdated   = "booking.appointment.updated.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
)

// Event is the envelope written to the outbox table in the same
// transaction as the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
