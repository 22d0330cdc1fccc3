package subscriber

// ConnectionStatus represents the state of the MQTT connection
type ConnectionStatus int32

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}
