// Package proto defines the wire-facing surface the session core
// depends on. Packets are plain structs; encoding and the network
// write loop live behind the Writer interface.
package proto

import (
	"github.com/blockhaven/classicd/pkg/classic/block"
	"github.com/blockhaven/classicd/pkg/classic/world"
)

// Packet is a server-to-client message.
type Packet interface{ packet() }

// SetBlock tells the client the authoritative state of one block.
// Sent both for broadcasts and to revert a rejected client placement.
type SetBlock struct {
	X, Y, Z int
	Block   block.Type
}

// Message is one line of chat shown to the client.
type Message struct {
	Text string
}

// Teleport moves the client's own player.
type Teleport struct {
	Pos world.Position
}

// Disconnect closes the connection after showing a reason.
type Disconnect struct {
	Reason string
}

func (SetBlock) packet()   {}
func (Message) packet()    {}
func (Teleport) packet()   {}
func (Disconnect) packet() {}

// Writer delivers packets to one client. Implementations queue and
// flush on their own goroutine.
type Writer interface {
	// Send queues the packet at normal priority.
	Send(p Packet)
	// SendNow writes the packet before any queued ones. Used for
	// kick and revert packets that must not wait behind bulk data.
	SendNow(p Packet)
	// SendLowPriority queues the packet behind all normal traffic.
	SendLowPriority(p Packet)
}
