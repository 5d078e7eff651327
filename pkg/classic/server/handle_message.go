package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blockhaven/classicd/pkg/classic/ban"
	"github.com/blockhaven/classicd/pkg/classic/chat"
	"github.com/blockhaven/classicd/pkg/classic/command"
	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/util/suggest"
)

// MessageKind is the classification of one raw chat line.
type MessageKind uint8

const (
	KindInvalid MessageKind = iota
	KindChat
	KindCommand
	KindRepeat
	KindConfirmation
	KindPartial
	KindRankChat
	KindPrivateChat
)

func (k MessageKind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindCommand:
		return "command"
	case KindRepeat:
		return "repeat"
	case KindConfirmation:
		return "confirmation"
	case KindPartial:
		return "partial"
	case KindRankChat:
		return "rank-chat"
	case KindPrivateChat:
		return "private-chat"
	}
	return "invalid"
}

// cancelKeyword aborts a pending partial message, selection or
// confirmation.
const cancelKeyword = "/nvm"

// Classify determines a raw line's kind from its prefix and length
// alone. No session state is consulted.
func Classify(raw string) MessageKind {
	switch {
	case raw == "":
		return KindInvalid
	case strings.EqualFold(raw, "/ok"):
		return KindConfirmation
	case raw == "/":
		return KindRepeat
	case strings.HasPrefix(raw, "//"):
		return KindChat
	case raw[0] == '/':
		return KindCommand
	case strings.HasSuffix(raw, " /"):
		return KindPartial
	case strings.HasPrefix(raw, "@@"):
		if len(raw) < 3 {
			return KindInvalid
		}
		return KindRankChat
	case raw[0] == '@':
		if len(raw) < 2 {
			return KindInvalid
		}
		return KindPrivateChat
	default:
		return KindChat
	}
}

// HandleMessage classifies one raw line from the client and
// dispatches it.
func (s *Session) HandleMessage(ctx context.Context, raw string) {
	now := time.Now()
	raw = strings.TrimSpace(raw)

	if strings.EqualFold(raw, cancelKeyword) {
		s.cancelPending()
		return
	}

	s.mu.Lock()
	if s.pendingPartial != "" {
		raw = s.pendingPartial + raw
		s.pendingPartial = ""
	}
	s.mu.Unlock()

	switch Classify(raw) {
	case KindChat:
		s.handleChat(raw, now)
	case KindCommand:
		s.handleCommand(ctx, raw, true)
	case KindRepeat:
		s.handleRepeat(ctx)
	case KindConfirmation:
		s.confirm(now)
	case KindPartial:
		s.handlePartial(raw)
	case KindRankChat:
		s.handleRankChat(raw, now)
	case KindPrivateChat:
		s.handlePrivateChat(raw, now)
	default:
		s.SendMessage(chat.Warning + "Could not parse message.")
	}
}

func (s *Session) cancelPending() {
	s.mu.Lock()
	s.pendingPartial = ""
	s.confirmation = nil
	s.mu.Unlock()
	s.CancelSelection()
	s.SendMessage(chat.Sys + "Canceled.")
}

// canChat runs the mute, permission and anti-spam gates common to all
// chat-like messages. It messages the player itself on refusal.
func (s *Session) canChat(now time.Time) bool {
	if !s.Rank().Can(rank.Chat) {
		s.SendMessage(chat.Warning + "Your rank is not allowed to chat.")
		return false
	}
	if s.record.IsMuted(now) {
		info := s.record.MuteInfo()
		s.sendf(chat.Warning+"You are muted for another %s.", info.Until.Sub(now).Round(time.Second))
		return false
	}
	if s.chatWindow.Trip(now) {
		s.punishChatSpam(now)
		return false
	}
	return true
}

func (s *Session) punishChatSpam(now time.Time) {
	s.mu.Lock()
	s.spamWarnings++
	warnings := s.spamWarnings
	s.mu.Unlock()
	if warnings > s.server.cfg.AntispamMaxWarnings {
		s.log.Info("kicked for chat spam", "warnings", warnings)
		_ = s.server.Kick("(console)", s.server.ranks.Highest(), s.Name(), "You were kicked for repeated spamming.")
		return
	}
	d := s.server.cfg.AntispamMuteDuration
	s.record.Mute("(antispam)", now.Add(d))
	s.log.Info("muted for chat spam", "duration", d, "warnings", warnings)
	s.sendf(chat.Warning+"You are sending messages too fast. Muted for %s.", d)
}

// sanitizeChat strips color codes from players not allowed to use
// them.
func (s *Session) sanitizeChat(msg string) string {
	if s.Rank().Can(rank.UseColorCodes) {
		return msg
	}
	return chat.Strip(msg)
}

func (s *Session) handleChat(raw string, now time.Time) {
	if !s.canChat(now) {
		return
	}
	// Log what was actually typed before stripping the escape pair,
	// so the escape never hides input from the log.
	s.log.Info("chat", "raw", raw)
	msg := raw
	if strings.HasPrefix(msg, "//") {
		msg = msg[1:]
	}
	if strings.HasSuffix(msg, "//") {
		msg = msg[:len(msg)-1]
	}
	msg = s.sanitizeChat(msg)

	evt := &ChatEvent{session: s, kind: KindChat, message: msg}
	s.server.events.Fire(evt)
	if !evt.Allowed() {
		return
	}
	s.record.IncMessagesWritten()
	s.server.chat.SendGlobal(s, evt.Message())
}

func (s *Session) handleCommand(ctx context.Context, raw string, remember bool) {
	if strings.HasSuffix(raw, "//") {
		raw = raw[:len(raw)-1]
	}
	name, args, _ := strings.Cut(raw[1:], " ")
	args = strings.TrimSpace(args)

	cmd := s.server.commands.Get(name)
	if s.record.IsFrozen() && (cmd == nil || !cmd.UsableWhileFrozen) {
		s.SendMessage(chat.Warning + "You cannot use this command while frozen.")
		return
	}
	if cmd == nil {
		msg := fmt.Sprintf(chat.Warning+"Unknown command %q.", name)
		if hint := s.server.commands.Suggest(name); hint != "" {
			msg += fmt.Sprintf(" Did you mean /%s?", hint)
		}
		s.SendMessage(msg)
		return
	}

	if cmd.DisableLogging {
		s.log.Info("command", "name", cmd.Name, "args", "(hidden)")
	} else {
		s.log.Info("command", "name", cmd.Name, "args", args)
	}
	if remember && !cmd.NotRepeatable {
		s.mu.Lock()
		s.lastCommand = &invocation{name: cmd.Name, args: args}
		s.mu.Unlock()
	}

	if err := s.server.commands.Dispatch(ctx, s, cmd.Name, args); err != nil {
		var opErr *ban.OperationError
		if errors.As(err, &opErr) {
			s.SendMessage(opErr.ColoredMessage)
			return
		}
		s.SendMessage(chat.Warning + err.Error())
	}
}

func (s *Session) handleRepeat(ctx context.Context) {
	s.mu.Lock()
	last := s.lastCommand
	s.mu.Unlock()
	if last == nil {
		s.SendMessage(chat.Sys + "No command to repeat.")
		return
	}
	s.handleCommand(ctx, "/"+last.name+" "+last.args, false)
}

func (s *Session) handlePartial(raw string) {
	// Keep everything up to the trailing slash, including the space,
	// so the next line continues mid-sentence.
	partial := raw[:len(raw)-1]
	s.mu.Lock()
	s.pendingPartial = partial
	s.mu.Unlock()
	s.sendf(chat.Sys+"Partial: &f%s", partial)
}

func (s *Session) handleRankChat(raw string, now time.Time) {
	if !s.canChat(now) {
		return
	}
	rest := raw[2:]
	var target *rank.Rank
	var msg string
	if strings.HasPrefix(rest, " ") {
		// "@@ message" targets the sender's own rank.
		target = s.Rank()
		msg = strings.TrimSpace(rest)
	} else {
		name, body, _ := strings.Cut(rest, " ")
		target = s.server.ranks.ByName(name)
		if target == nil {
			s.sendf(chat.Warning+"No rank found matching %q.", name)
			return
		}
		msg = strings.TrimSpace(body)
	}
	if msg == "" {
		s.SendMessage(chat.Warning + "Could not parse message.")
		return
	}
	msg = s.sanitizeChat(msg)

	evt := &ChatEvent{session: s, kind: KindRankChat, message: msg}
	s.server.events.Fire(evt)
	if !evt.Allowed() {
		return
	}
	s.record.IncMessagesWritten()
	s.server.chat.SendRank(s, target, evt.Message())
}

func (s *Session) handlePrivateChat(raw string, now time.Time) {
	if !s.canChat(now) {
		return
	}
	name, msg, _ := strings.Cut(raw[1:], " ")
	msg = strings.TrimSpace(msg)
	if name == "" || msg == "" {
		s.SendMessage(chat.Warning + "Could not parse message.")
		return
	}
	if name == "-" {
		s.mu.Lock()
		name = s.lastPMTarget
		s.mu.Unlock()
		if name == "" {
			s.SendMessage(chat.Warning + "You have not messaged anyone yet.")
			return
		}
	}

	target := s.resolvePrivateTarget(name)
	if target == nil {
		return
	}
	if target.IsIgnoring(s.Name()) {
		s.sendf(chat.Warning+"%s is ignoring you.", target.Name())
		return
	}
	if target.IsDeaf() {
		s.sendf(chat.Warning+"%s is deaf and cannot hear you.", target.Name())
		return
	}
	msg = s.sanitizeChat(msg)

	evt := &ChatEvent{session: s, kind: KindPrivateChat, message: msg}
	s.server.events.Fire(evt)
	if !evt.Allowed() {
		return
	}
	s.mu.Lock()
	s.lastPMTarget = target.Name()
	s.mu.Unlock()
	s.record.IncMessagesWritten()
	s.server.chat.SendPrivate(s, target, evt.Message())
}

// resolvePrivateTarget matches a possibly abbreviated name against
// online players, preferring a unique match and retrying without
// hidden players when ambiguous. Messages the sender itself on
// failure.
func (s *Session) resolvePrivateTarget(name string) *Session {
	matches := s.server.FindSessionsPrefix(name)
	if len(matches) == 0 {
		msg := fmt.Sprintf(chat.Warning+"No player found matching %q.", name)
		if hint := s.suggestOnlineName(name); hint != "" {
			msg += fmt.Sprintf(" Did you mean %s?", hint)
		}
		s.SendMessage(msg)
		return nil
	}
	if len(matches) == 1 {
		return matches[0]
	}
	var visible []*Session
	for _, m := range matches {
		if !m.Record().IsHidden() {
			visible = append(visible, m)
		}
	}
	if len(visible) == 1 {
		return visible[0]
	}
	s.sendf(chat.Warning+"More than one player found matching %q.", name)
	return nil
}

func (s *Session) suggestOnlineName(name string) string {
	var names []string
	for _, sess := range s.server.Sessions() {
		if !sess.Record().IsHidden() {
			names = append(names, sess.Name())
		}
	}
	return suggest.Closest(strings.ToLower(name), names)
}

var _ command.Source = (*Session)(nil)
