package runtime

import "fmt"

// ComponentID identifies a registered compiled component.
type ComponentID uint64

func (id ComponentID) String() string { return fmt.Sprintf("component-%d", uint64(id)) }

// PeerID identifies a remote peer: a stable logical identity independent of
// network address or transport.
type PeerID uint64

func (id PeerID) String() string { return fmt.Sprintf("peer-%d", uint64(id)) }

// InstanceID identifies a live instance.
type InstanceID uint64

func (id InstanceID) String() string { return fmt.Sprintf("instance-%d", uint64(id)) }
