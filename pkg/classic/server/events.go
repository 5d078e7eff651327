package server

import (
	"github.com/blockhaven/classicd/pkg/classic/block"
	"github.com/blockhaven/classicd/pkg/classic/player"
	"github.com/blockhaven/classicd/pkg/classic/rank"
)

// SessionConnectedEvent is fired after a session has registered with
// the server and its record processed the login.
type SessionConnectedEvent struct {
	session *Session
}

func (e *SessionConnectedEvent) Session() *Session { return e.session }

//
//
//
//
//

// SessionDisconnectedEvent is fired after a session has unregistered
// and its terminal stats were flushed into the record.
type SessionDisconnectedEvent struct {
	session     *Session
	leaveReason string
}

func (e *SessionDisconnectedEvent) Session() *Session   { return e.session }
func (e *SessionDisconnectedEvent) LeaveReason() string { return e.leaveReason }

//
//
//
//
//

// PlayerKickEvent is fired before a player is kicked.
// A subscriber may deny the kick or rewrite the reason.
type PlayerKickEvent struct {
	target *player.Record
	actor  string

	reason string
	denied bool
}

// Target returns the record being kicked.
func (e *PlayerKickEvent) Target() *player.Record { return e.target }

// Actor returns the name of who initiates the kick.
func (e *PlayerKickEvent) Actor() string { return e.actor }

// Reason returns the kick reason shown to the target.
func (e *PlayerKickEvent) Reason() string { return e.reason }

// SetReason rewrites the kick reason.
func (e *PlayerKickEvent) SetReason(reason string) { e.reason = reason }

// Allowed reports whether the kick will proceed.
func (e *PlayerKickEvent) Allowed() bool { return !e.denied }

// Deny cancels the kick.
func (e *PlayerKickEvent) Deny() { e.denied = true }

// KickedEvent is fired after a player was kicked. Observational.
type KickedEvent struct {
	Target *player.Record
	Actor  string
	Reason string
}

//
//
//
//
//

// ChatEvent is fired before a chat-like message is routed.
// A subscriber may suppress the message or rewrite its text.
type ChatEvent struct {
	session *Session
	kind    MessageKind

	message string
	denied  bool
}

func (e *ChatEvent) Session() *Session         { return e.session }
func (e *ChatEvent) Kind() MessageKind         { return e.kind }
func (e *ChatEvent) Message() string           { return e.message }
func (e *ChatEvent) SetMessage(message string) { e.message = message }
func (e *ChatEvent) Allowed() bool             { return !e.denied }
func (e *ChatEvent) Deny()                     { e.denied = true }

//
//
//
//
//

// BlockPlaceEvent is fired after the placement permission pipeline
// resolved a click and before the verdict is applied. A subscriber may
// override the result in either direction.
type BlockPlaceEvent struct {
	session    *Session
	x, y, z    int
	old, block block.Type

	result CanPlaceResult
}

func (e *BlockPlaceEvent) Session() *Session { return e.session }

// Coords returns the click coordinate, already shifted for the
// stair-stacking rule if it applied.
func (e *BlockPlaceEvent) Coords() (x, y, z int) { return e.x, e.y, e.z }

// OldBlock returns the block currently at the coordinate.
func (e *BlockPlaceEvent) OldBlock() block.Type { return e.old }

// NewBlock returns the block being placed.
func (e *BlockPlaceEvent) NewBlock() block.Type { return e.block }

// Result returns the pipeline's verdict.
func (e *BlockPlaceEvent) Result() CanPlaceResult { return e.result }

// SetResult overrides the pipeline's verdict.
func (e *BlockPlaceEvent) SetResult(r CanPlaceResult) { e.result = r }

//
//
//
//
//

// StatusOp names a moderation status transition.
type StatusOp uint8

const (
	StatusMute StatusOp = iota
	StatusUnmute
	StatusFreeze
	StatusUnfreeze
	StatusHide
	StatusUnhide
)

func (o StatusOp) String() string {
	switch o {
	case StatusMute:
		return "mute"
	case StatusUnmute:
		return "unmute"
	case StatusFreeze:
		return "freeze"
	case StatusUnfreeze:
		return "unfreeze"
	case StatusHide:
		return "hide"
	case StatusUnhide:
		return "unhide"
	}
	return "unknown"
}

// StatusChangingEvent is fired before a mute/freeze/hide transition.
type StatusChangingEvent struct {
	target *player.Record
	actor  string
	op     StatusOp

	denied bool
}

func (e *StatusChangingEvent) Target() *player.Record { return e.target }
func (e *StatusChangingEvent) Actor() string          { return e.actor }
func (e *StatusChangingEvent) Op() StatusOp           { return e.op }
func (e *StatusChangingEvent) Allowed() bool          { return !e.denied }
func (e *StatusChangingEvent) Deny()                  { e.denied = true }

// StatusChangedEvent is fired after a mute/freeze/hide transition.
// Observational.
type StatusChangedEvent struct {
	Target *player.Record
	Actor  string
	Op     StatusOp
}

//
//
//
//
//

// RankChangeEvent is fired before a player's rank changes.
type RankChangeEvent struct {
	target   *player.Record
	actor    string
	from, to *rank.Rank

	reason string
	denied bool
}

func (e *RankChangeEvent) Target() *player.Record  { return e.target }
func (e *RankChangeEvent) Actor() string           { return e.actor }
func (e *RankChangeEvent) From() *rank.Rank        { return e.from }
func (e *RankChangeEvent) To() *rank.Rank          { return e.to }
func (e *RankChangeEvent) Reason() string          { return e.reason }
func (e *RankChangeEvent) SetReason(reason string) { e.reason = reason }
func (e *RankChangeEvent) Allowed() bool           { return !e.denied }
func (e *RankChangeEvent) Deny()                   { e.denied = true }

// RankChangedEvent is fired after a player's rank changed.
// Observational.
type RankChangedEvent struct {
	Target   *player.Record
	Actor    string
	From, To *rank.Rank
	Reason   string
}
