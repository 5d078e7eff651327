package server

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/blockhaven/classicd/pkg/classic/ban"
	"github.com/blockhaven/classicd/pkg/classic/chat"
	"github.com/blockhaven/classicd/pkg/classic/rank"
)

// ChatRouter formats chat messages and fans them out to recipient
// sets. Delivery honors each recipient's ignore list and deaf flag;
// routing never consults session internals beyond those.
type ChatRouter struct {
	log    logr.Logger
	server *Server
}

func newChatRouter(s *Server) *ChatRouter {
	return &ChatRouter{log: s.log.WithName("chat"), server: s}
}

// hears reports whether to accepts chat from the named sender.
func hears(to *Session, fromName string) bool {
	return !to.IsDeaf() && !to.IsIgnoring(fromName)
}

// SendGlobal routes a plain chat line to everyone.
func (c *ChatRouter) SendGlobal(from *Session, message string) {
	line := fmt.Sprintf("%s&f: %s", from.DisplayName(), message)
	c.log.Info("chat", "from", from.Name(), "message", chat.Strip(message))
	for _, to := range c.server.Sessions() {
		if to == from || hears(to, from.Name()) {
			to.SendMessage(line)
		}
	}
}

// SendRank routes a message to every online member of r. The sender
// always receives the echo, whatever their rank.
func (c *ChatRouter) SendRank(from *Session, r *rank.Rank, message string) {
	line := fmt.Sprintf(chat.IRCBridge+"(%s)%s&f: %s", r.Name, from.DisplayName(), message)
	c.log.Info("rank chat", "from", from.Name(), "rank", r.Name, "message", chat.Strip(message))
	for _, to := range c.server.Sessions() {
		if to == from {
			to.SendMessage(line)
			continue
		}
		if to.Rank() == r && hears(to, from.Name()) {
			to.SendMessage(line)
		}
	}
}

// SendPrivate routes a direct message and echoes it to the sender.
// Callers must have resolved the target and checked deaf/ignore.
func (c *ChatRouter) SendPrivate(from, to *Session, message string) {
	c.log.Info("private chat", "from", from.Name(), "to", to.Name(), "message", chat.Strip(message))
	to.SendMessage(fmt.Sprintf(chat.PM+"from %s: %s", from.Name(), message))
	from.SendMessage(fmt.Sprintf(chat.PM+"to %s: %s", to.Name(), message))
}

// SendStaff routes a message to everyone who may read staff chat.
func (c *ChatRouter) SendStaff(from *Session, message string) {
	line := fmt.Sprintf(chat.PM+"(staff)%s&f: %s", from.DisplayName(), message)
	c.log.Info("staff chat", "from", from.Name(), "message", chat.Strip(message))
	for _, to := range c.server.Sessions() {
		if to == from || (to.Rank().Can(rank.ReadStaffChat) && hears(to, from.Name())) {
			to.SendMessage(line)
		}
	}
}

// BroadcastSys sends a system notice to everyone.
func (c *ChatRouter) BroadcastSys(message string) {
	c.log.Info("broadcast", "message", chat.Strip(message))
	for _, to := range c.server.Sessions() {
		to.SendMessage(chat.Sys + message)
	}
}

// Announce publishes a ban notice: the address-bearing variant to
// holders of the view-player-ips permission, the redacted one to
// everyone else.
func (c *ChatRouter) Announce(withIP, redacted string) {
	c.log.Info("announce", "message", chat.Strip(withIP))
	for _, to := range c.server.Sessions() {
		if to.Rank().Can(rank.ViewPlayerIPs) {
			to.SendMessage(chat.Announce + withIP)
		} else {
			to.SendMessage(chat.Announce + redacted)
		}
	}
}

var _ ban.Announcer = (*ChatRouter)(nil)
