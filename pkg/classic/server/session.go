package server

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/blockhaven/classicd/pkg/classic/block"
	"github.com/blockhaven/classicd/pkg/classic/chat"
	"github.com/blockhaven/classicd/pkg/classic/player"
	"github.com/blockhaven/classicd/pkg/classic/proto"
	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/classic/world"
	"github.com/blockhaven/classicd/pkg/util/sets"
)

// ConfirmationTimeout is how long a requested confirmation stays
// valid. Expiry is checked lazily at the next confirm attempt, there
// is no timer.
const ConfirmationTimeout = 60 * time.Second

// ConfirmFunc runs when the player confirms a dangerous action.
type ConfirmFunc func(s *Session, param any)

type pendingConfirm struct {
	fn          ConfirmFunc
	param       any
	requestedAt time.Time
}

// Mark is one collected selection coordinate.
type Mark struct {
	X, Y, Z int
}

// SelectionFunc runs once all expected marks were collected.
type SelectionFunc func(s *Session, marks []Mark)

type selection struct {
	fn       SelectionFunc
	expected int
	perms    []rank.Permission
	marks    []Mark
}

type invocation struct {
	name string
	args string
}

// Session is the volatile state of one live connection. All mutable
// fields are written by the connection's own goroutine; the private
// mutex covers the few reads other goroutines perform (spectate
// resolution, router fan-out).
type Session struct {
	id     uuid.UUID
	log    logr.Logger
	server *Server
	record *player.Record
	writer proto.Writer
	ip     net.IP

	connectedAt time.Time
	loggedOut   atomic.Bool

	mu             sync.Mutex
	world          world.World
	pos            world.Position
	bindings       [block.Count]block.Type
	paint          bool
	lastUsedBlock  block.Type
	pendingPartial string
	lastCommand    *invocation
	lastPMTarget   string
	confirmation   *pendingConfirm
	sel            *selection
	spectating     *Session
	lastSpectated  *Session
	spamWarnings   int
	deaf           bool

	chatWindow  *window
	blockWindow *window
	ignore      *sets.CappedSet[string]
}

func newSession(srv *Server, rec *player.Record, w proto.Writer, wld world.World, ip net.IP) *Session {
	s := &Session{
		id:          uuid.New(),
		server:      srv,
		record:      rec,
		writer:      w,
		world:       wld,
		ip:          ip,
		connectedAt: time.Now(),
		chatWindow:  newWindow(srv.cfg.AntispamMessageCount, srv.cfg.AntispamInterval),
		ignore:      sets.NewCappedSet[string](srv.cfg.IgnoreLimit),
	}
	s.log = srv.log.WithName("session").WithValues("player", rec.Name(), "sid", s.id)
	ag := rec.Rank().AntiGrief
	s.blockWindow = newWindow(ag.Blocks, time.Duration(ag.Seconds)*time.Second)
	s.resetBindings()
	return s
}

// ID is the connection's identifier, used for log correlation only.
func (s *Session) ID() uuid.UUID { return s.id }

// Record returns the persistent account behind this connection.
func (s *Session) Record() *player.Record { return s.record }

// Name returns the account name.
func (s *Session) Name() string { return s.record.Name() }

// Rank returns the account's current rank.
func (s *Session) Rank() *rank.Rank { return s.record.Rank() }

// IP returns the connection's remote address.
func (s *Session) IP() net.IP { return s.ip }

// DisplayName renders the session's decorated chat name.
func (s *Session) DisplayName() string {
	return s.record.DisplayName(player.DisplayNameOptions{RankPrefixes: false, RankColors: true})
}

// World returns the world the session is currently in.
func (s *Session) World() world.World {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world
}

// Position returns the player's current position.
func (s *Session) Position() world.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// UpdatePosition records a movement and teleports any spectators
// along.
func (s *Session) UpdatePosition(pos world.Position) {
	s.mu.Lock()
	s.pos = pos
	s.mu.Unlock()
	for _, other := range s.server.Sessions() {
		if other != s && other.SpectateTarget() == s {
			other.writer.SendLowPriority(&proto.Teleport{Pos: pos})
		}
	}
}

// SendMessage writes one chat line to the client.
func (s *Session) SendMessage(text string) {
	s.writer.Send(&proto.Message{Text: text})
}

func (s *Session) sendf(format string, args ...any) {
	s.SendMessage(fmt.Sprintf(format, args...))
}

// Kick disconnects the session with a reason. Safe to call from any
// goroutine; the packet is flushed ahead of queued traffic and the
// transport tears the connection down on its own.
func (s *Session) Kick(reason string) {
	s.writer.SendNow(&proto.Disconnect{Reason: reason})
}

// Bindings

func (s *Session) resetBindings() {
	for i := range s.bindings {
		s.bindings[i] = block.Type(i)
	}
}

// Bind substitutes placements of from with to.
func (s *Session) Bind(from, to block.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[from] = to
}

// ResetBind restores the identity binding for from.
func (s *Session) ResetBind(from block.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[from] = from
}

// ResetAllBinds restores identity bindings for every block type.
func (s *Session) ResetAllBinds() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetBindings()
}

// Bound returns the effective block placed when the client places t.
func (s *Session) Bound(t block.Type) block.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings[t]
}

// SetPaint toggles paint mode: delete clicks place the held block
// instead of air.
func (s *Session) SetPaint(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paint = on
}

func (s *Session) Paint() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paint
}

// LastUsedBlock returns the block of the most recent accepted
// placement.
func (s *Session) LastUsedBlock() block.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedBlock
}

// Deaf

// SetDeaf stops all chat delivery to this session.
func (s *Session) SetDeaf(deaf bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deaf = deaf
}

func (s *Session) IsDeaf() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deaf
}

// Ignore list

// Ignore blocks chat from name. Reports false when the list is full
// or the name was already ignored.
func (s *Session) Ignore(name string) bool {
	return s.ignore.Add(strings.ToLower(name))
}

// Unignore reports whether the name was ignored.
func (s *Session) Unignore(name string) bool {
	return s.ignore.Remove(strings.ToLower(name))
}

// IsIgnoring reports whether chat from name is blocked.
func (s *Session) IsIgnoring(name string) bool {
	return s.ignore.Has(strings.ToLower(name))
}

// Confirmation

// RequestConfirmation stores a pending action executed when the
// player types the confirm command within ConfirmationTimeout.
// A newer request replaces an older pending one.
func (s *Session) RequestConfirmation(prompt string, fn ConfirmFunc, param any) {
	s.mu.Lock()
	s.confirmation = &pendingConfirm{fn: fn, param: param, requestedAt: time.Now()}
	s.mu.Unlock()
	s.SendMessage(chat.Warning + prompt)
	s.SendMessage(chat.Sys + "Type /ok to continue, or /nvm to cancel.")
}

func (s *Session) confirm(now time.Time) {
	s.mu.Lock()
	pending := s.confirmation
	s.confirmation = nil
	s.mu.Unlock()
	switch {
	case pending == nil:
		s.SendMessage(chat.Sys + "There is nothing to confirm.")
	case now.Sub(pending.requestedAt) > ConfirmationTimeout:
		s.SendMessage(chat.Warning + "Confirmation timed out. Enter the original command again.")
	default:
		pending.fn(s, pending.param)
	}
}

// Selection

// StartSelection diverts the next expected block clicks into mark
// collection; fn runs once all marks arrived. Clicks made during a
// selection never edit the map.
func (s *Session) StartSelection(expected int, fn SelectionFunc, perms ...rank.Permission) {
	s.mu.Lock()
	s.sel = &selection{fn: fn, expected: expected, perms: perms}
	s.mu.Unlock()
	s.sendf(chat.Sys+"Click %d block(s) to select.", expected)
}

// CancelSelection reports whether a selection was pending.
func (s *Session) CancelSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.sel != nil
	s.sel = nil
	return had
}

// IsMakingSelection reports whether clicks are being diverted into
// mark collection.
func (s *Session) IsMakingSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel != nil
}

// addMark appends a selection mark, running the callback when the
// last expected mark arrives. Reports whether a selection was active.
func (s *Session) addMark(m Mark) bool {
	s.mu.Lock()
	sel := s.sel
	if sel == nil {
		s.mu.Unlock()
		return false
	}
	sel.marks = append(sel.marks, m)
	remaining := sel.expected - len(sel.marks)
	if remaining > 0 {
		s.mu.Unlock()
		s.sendf(chat.Sys+"Mark %d/%d placed. %d more to go.", len(sel.marks), sel.expected, remaining)
		return true
	}
	s.sel = nil
	s.mu.Unlock()
	for _, p := range sel.perms {
		if !s.Rank().Can(p) {
			s.SendMessage(chat.Warning + "You are no longer allowed to complete this action.")
			return true
		}
	}
	sel.fn(s, sel.marks)
	return true
}

// Spectating

// SpectateTarget returns the session being spectated, nil if none.
func (s *Session) SpectateTarget() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spectating
}

// LastSpectated returns the most recent spectate target, sticky after
// stopping.
func (s *Session) LastSpectated() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSpectated
}

// Spectate starts following target's position.
func (s *Session) Spectate(target *Session) error {
	if target == s {
		return fmt.Errorf("cannot spectate yourself")
	}
	s.mu.Lock()
	s.spectating = target
	s.lastSpectated = target
	s.mu.Unlock()
	s.writer.Send(&proto.Teleport{Pos: target.Position()})
	return nil
}

// StopSpectating reports whether the session was spectating.
func (s *Session) StopSpectating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.spectating != nil
	s.spectating = nil
	return was
}

// finishLogout flushes terminal session state into the record exactly
// once, no matter how many paths race to tear the session down.
func (s *Session) finishLogout(leaveReason string, at time.Time) bool {
	if !s.loggedOut.CompareAndSwap(false, true) {
		return false
	}
	s.record.ProcessLogout(leaveReason, at.Sub(s.connectedAt), at)
	return true
}

var _ player.LiveSession = (*Session)(nil)
