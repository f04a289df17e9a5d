package transport

// RemotePeripheral is a simple Peripheral value for transports that
// discover peers by identifier and name. Transports with richer handles
// implement Peripheral directly.
type RemotePeripheral struct {
	// ID is the transport-level identifier.
	ID string

	// DisplayName is the advertised name.
	DisplayName string
}

// Identifier returns the transport-level identifier.
func (p RemotePeripheral) Identifier() string {
	return p.ID
}

// Name returns the advertised name.
func (p RemotePeripheral) Name() string {
	return p.DisplayName
}

// Compile-time interface satisfaction check.
var _ Peripheral = RemotePeripheral{}
