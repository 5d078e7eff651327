package ban

import (
	"net"

	"github.com/blockhaven/classicd/pkg/classic/player"
)

// ChangeKind identifies which ban fact an operation touches.
type ChangeKind uint8

const (
	KindName ChangeKind = iota
	KindIP
	KindAll
)

func (k ChangeKind) String() string {
	switch k {
	case KindIP:
		return "ip"
	case KindAll:
		return "all"
	}
	return "name"
}

// ChangingEvent fires before a ban or unban mutates anything.
// Subscribers may veto the operation or rewrite the reason.
type ChangingEvent struct {
	Kind   ChangeKind
	Unban  bool
	Target *player.Record // nil for pure IP operations
	IP     net.IP         // nil for pure name operations
	Actor  string

	reason string
	denied bool
}

func (e *ChangingEvent) Reason() string          { return e.reason }
func (e *ChangingEvent) SetReason(reason string) { e.reason = reason }
func (e *ChangingEvent) Allowed() bool           { return !e.denied }
func (e *ChangingEvent) Deny()                   { e.denied = true }

// ChangedEvent fires after a ban or unban took effect. Observational.
type ChangedEvent struct {
	Kind   ChangeKind
	Unban  bool
	Target *player.Record
	IP     net.IP
	Actor  string
	Reason string
}
