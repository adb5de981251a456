package mock

// RawMessage is a simple core.Message implementation for testing.
type RawMessage struct {
	K       []byte
	V       []byte
	H       map[string]string
	Acked   bool
	Nacked  bool
	AckErr  error
	NackErr error
}

func (m *RawMessage) Key() []byte                { return m.K }
func (m *RawMessage) Value() []byte              { return m.V }
func (m *RawMessage) Headers() map[string]string { return m.H }

func (m *RawMessage) Ack() error {
	m.Acked = true
	return m.AckErr
}

func (m *RawMessage) Nack() error {
	m.Nacked = true
	return m.NackErr
}
