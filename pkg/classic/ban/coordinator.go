package ban

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/robinbraemer/event"

	"github.com/blockhaven/classicd/pkg/classic/chat"
	"github.com/blockhaven/classicd/pkg/classic/player"
	"github.com/blockhaven/classicd/pkg/classic/rank"
)

// Actor identifies who invokes a ban operation. The console uses a
// nil IP and the registry's highest rank.
type Actor struct {
	Name string
	Rank *rank.Rank
	IP   net.IP
}

// Config controls coordinator policy.
type Config struct {
	// RequireBanReason refuses bans without a non-empty reason.
	RequireBanReason bool
	// RequireUnbanReason refuses unbans without a non-empty reason.
	RequireUnbanReason bool
}

// Announcer publishes a ban notice to chat. The withIP variant goes to
// players holding the view-player-ips permission, redacted to the rest.
type Announcer interface {
	Announce(withIP, redacted string)
}

// Coordinator sequences ban/unban transitions over three independent
// facts: a record's own ban flag, the IP ban list, and (for the
// combined operations) every record sharing an address. All guards of
// an operation run before any mutation, so a returned OperationError
// guarantees untouched state.
type Coordinator struct {
	log       logr.Logger
	events    event.Manager
	directory *player.Directory
	ipBans    *IPBanList
	announcer Announcer
	cfg       Config
}

func NewCoordinator(
	log logr.Logger,
	events event.Manager,
	directory *player.Directory,
	ipBans *IPBanList,
	announcer Announcer,
	cfg Config,
) *Coordinator {
	return &Coordinator{
		log:       log.WithName("ban"),
		events:    events,
		directory: directory,
		ipBans:    ipBans,
		announcer: announcer,
		cfg:       cfg,
	}
}

// IPBans exposes the coordinated IP ban list.
func (c *Coordinator) IPBans() *IPBanList { return c.ipBans }

// Ban bans an account by name, creating the record if the name was
// never seen. Kicks the matching live session.
func (c *Coordinator) Ban(actor Actor, targetName, reason string, announce bool) error {
	if targetName == "" {
		return fmt.Errorf("ban: empty target name")
	}
	if strings.EqualFold(actor.Name, targetName) {
		return opErr(CodeSelfTarget, chat.Warning+"You cannot ban yourself.")
	}
	target, _ := c.directory.FindOrCreate(targetName)
	if target.IsBanned() {
		return opErr(CodeNoActionNeeded,
			fmt.Sprintf(chat.Warning+"Player %s is already banned.", target.Name()))
	}
	if !actor.Rank.CanTarget(rank.Ban, target.Rank()) {
		return c.permissionErr("ban", actor, rank.Ban)
	}
	if err := c.requireReason(reason, c.cfg.RequireBanReason, "ban"); err != nil {
		return err
	}
	reason, err := c.firePreEvent(&ChangingEvent{
		Kind: KindName, Target: target, Actor: actor.Name, reason: reason,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	target.ApplyBan(actor.Name, reason, now)
	c.recordActorBan(actor)
	c.log.Info("player banned", "target", target.Name(), "by", actor.Name, "reason", reason)
	if s := target.Session(); s != nil {
		s.Kick(fmt.Sprintf("Banned by %s: %s", actor.Name, reason))
	}
	if announce {
		msg := fmt.Sprintf(chat.Warning+"%s was banned by %s: %s", target.Name(), actor.Name, reason)
		c.announcer.Announce(msg, msg)
	}
	c.events.Fire(&ChangedEvent{
		Kind: KindName, Target: target, Actor: actor.Name, Reason: reason,
	})
	return nil
}

// Unban lifts an account's name ban.
func (c *Coordinator) Unban(actor Actor, targetName, reason string, announce bool) error {
	if targetName == "" {
		return fmt.Errorf("unban: empty target name")
	}
	if strings.EqualFold(actor.Name, targetName) {
		return opErr(CodeSelfTarget, chat.Warning+"You cannot unban yourself.")
	}
	target := c.directory.Get(targetName)
	if target == nil || !target.IsBanned() {
		return opErr(CodeNoActionNeeded,
			fmt.Sprintf(chat.Warning+"Player %s is not banned.", targetName))
	}
	if !actor.Rank.CanTarget(rank.Ban, target.Rank()) {
		return c.permissionErr("unban", actor, rank.Ban)
	}
	if err := c.requireReason(reason, c.cfg.RequireUnbanReason, "unban"); err != nil {
		return err
	}
	reason, err := c.firePreEvent(&ChangingEvent{
		Kind: KindName, Unban: true, Target: target, Actor: actor.Name, reason: reason,
	})
	if err != nil {
		return err
	}

	target.ApplyUnban(actor.Name, reason, time.Now())
	c.log.Info("player unbanned", "target", target.Name(), "by", actor.Name, "reason", reason)
	if announce {
		msg := fmt.Sprintf(chat.Announce+"%s was unbanned by %s.", target.Name(), actor.Name)
		c.announcer.Announce(msg, msg)
	}
	c.events.Fire(&ChangedEvent{
		Kind: KindName, Unban: true, Target: target, Actor: actor.Name, Reason: reason,
	})
	return nil
}

// BanIP bans an address without touching the accounts on it, then
// kicks every non-exempt session connected from it.
func (c *Coordinator) BanIP(actor Actor, addr net.IP, reason string, announce bool) error {
	if addr == nil {
		return fmt.Errorf("banip: nil address")
	}
	if actor.IP != nil && actor.IP.Equal(addr) {
		return opErr(CodeSelfTarget, chat.Warning+"You cannot ban your own IP.")
	}
	if c.ipBans.Contains(addr) {
		return opErr(CodeNoActionNeeded,
			fmt.Sprintf(chat.Warning+"IP %s is already banned.", addr))
	}
	affected := c.directory.ByIP(addr)
	if err := c.checkLimitAll(actor, rank.BanIP, "IP-ban", affected); err != nil {
		return err
	}
	if err := c.requireReason(reason, c.cfg.RequireBanReason, "IP-ban"); err != nil {
		return err
	}
	reason, err := c.firePreEvent(&ChangingEvent{
		Kind: KindIP, IP: addr, Actor: actor.Name, reason: reason,
	})
	if err != nil {
		return err
	}

	if !c.ipBans.Add(IPBanEntry{Address: addr, BannedBy: actor.Name, Reason: reason, At: time.Now()}) {
		// Lost a race against a concurrent identical ban.
		return opErr(CodeNoActionNeeded,
			fmt.Sprintf(chat.Warning+"IP %s is already banned.", addr))
	}
	c.log.Info("ip banned", "address", addr.String(), "by", actor.Name, "reason", reason)
	c.kickAddress(addr, affected, fmt.Sprintf("IP-banned by %s: %s", actor.Name, reason))
	if announce {
		c.announcer.Announce(
			fmt.Sprintf(chat.Warning+"IP %s was banned by %s: %s", addr, actor.Name, reason),
			fmt.Sprintf(chat.Warning+"An IP was banned by %s: %s", actor.Name, reason),
		)
	}
	c.events.Fire(&ChangedEvent{Kind: KindIP, IP: addr, Actor: actor.Name, Reason: reason})
	return nil
}

// UnbanIP lifts an address ban.
func (c *Coordinator) UnbanIP(actor Actor, addr net.IP, reason string, announce bool) error {
	if addr == nil {
		return fmt.Errorf("unbanip: nil address")
	}
	if actor.IP != nil && actor.IP.Equal(addr) {
		return opErr(CodeSelfTarget, chat.Warning+"You cannot unban your own IP.")
	}
	if !c.ipBans.Contains(addr) {
		return opErr(CodeNoActionNeeded,
			fmt.Sprintf(chat.Warning+"IP %s is not banned.", addr))
	}
	if err := c.checkLimitAll(actor, rank.BanIP, "IP-unban", c.directory.ByIP(addr)); err != nil {
		return err
	}
	if err := c.requireReason(reason, c.cfg.RequireUnbanReason, "IP-unban"); err != nil {
		return err
	}
	reason, err := c.firePreEvent(&ChangingEvent{
		Kind: KindIP, Unban: true, IP: addr, Actor: actor.Name, reason: reason,
	})
	if err != nil {
		return err
	}

	if !c.ipBans.Remove(addr) {
		return opErr(CodeNoActionNeeded,
			fmt.Sprintf(chat.Warning+"IP %s is not banned.", addr))
	}
	c.log.Info("ip unbanned", "address", addr.String(), "by", actor.Name, "reason", reason)
	if announce {
		c.announcer.Announce(
			fmt.Sprintf(chat.Announce+"IP %s was unbanned by %s.", addr, actor.Name),
			fmt.Sprintf(chat.Announce+"An IP was unbanned by %s.", actor.Name),
		)
	}
	c.events.Fire(&ChangedEvent{Kind: KindIP, Unban: true, IP: addr, Actor: actor.Name, Reason: reason})
	return nil
}

// BanAll bans an address and every account ever seen on it. The
// permission check covers all affected accounts before anything
// mutates: if any one outranks the actor's limit, nothing happens.
// IP-ban-exempt accounts are passed over rather than banned.
func (c *Coordinator) BanAll(actor Actor, addr net.IP, reason string, announce bool) error {
	if addr == nil {
		return fmt.Errorf("banall: nil address")
	}
	if actor.IP != nil && actor.IP.Equal(addr) {
		return opErr(CodeSelfTarget, chat.Warning+"You cannot ban your own IP.")
	}
	affected := c.directory.ByIP(addr)
	for _, p := range affected {
		if strings.EqualFold(p.Name(), actor.Name) {
			return opErr(CodeSelfTarget, chat.Warning+"You cannot ban-all your own account.")
		}
	}
	if err := c.checkLimitAll(actor, rank.BanAll, "ban-all", affected); err != nil {
		return err
	}
	if err := c.requireReason(reason, c.cfg.RequireBanReason, "ban-all"); err != nil {
		return err
	}
	reason, err := c.firePreEvent(&ChangingEvent{
		Kind: KindAll, IP: addr, Actor: actor.Name, reason: reason,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	changed := c.ipBans.Add(IPBanEntry{Address: addr, BannedBy: actor.Name, Reason: reason, At: now})
	for _, p := range affected {
		switch p.BanStatus() {
		case player.Banned, player.IPBanExempt:
			continue
		}
		p.ApplyBan(actor.Name, reason, now)
		c.recordActorBan(actor)
		changed = true
	}
	if !changed {
		return opErr(CodeNoActionNeeded,
			fmt.Sprintf(chat.Warning+"Everything on %s is already banned.", addr))
	}
	c.log.Info("ip and accounts banned", "address", addr.String(), "accounts", len(affected),
		"by", actor.Name, "reason", reason)
	c.kickAddress(addr, affected, fmt.Sprintf("Banned by %s: %s", actor.Name, reason))
	if announce {
		c.announcer.Announce(
			fmt.Sprintf(chat.Warning+"%s and all accounts on it were banned by %s: %s", addr, actor.Name, reason),
			fmt.Sprintf(chat.Warning+"An IP and all accounts on it were banned by %s: %s", actor.Name, reason),
		)
	}
	c.events.Fire(&ChangedEvent{Kind: KindAll, IP: addr, Actor: actor.Name, Reason: reason})
	return nil
}

// UnbanAll lifts an address ban and unbans every account on it.
func (c *Coordinator) UnbanAll(actor Actor, addr net.IP, reason string, announce bool) error {
	if addr == nil {
		return fmt.Errorf("unbanall: nil address")
	}
	if actor.IP != nil && actor.IP.Equal(addr) {
		return opErr(CodeSelfTarget, chat.Warning+"You cannot unban your own IP.")
	}
	affected := c.directory.ByIP(addr)
	if err := c.checkLimitAll(actor, rank.BanAll, "unban-all", affected); err != nil {
		return err
	}
	if err := c.requireReason(reason, c.cfg.RequireUnbanReason, "unban-all"); err != nil {
		return err
	}
	reason, err := c.firePreEvent(&ChangingEvent{
		Kind: KindAll, Unban: true, IP: addr, Actor: actor.Name, reason: reason,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	changed := c.ipBans.Remove(addr)
	for _, p := range affected {
		if !p.IsBanned() {
			continue
		}
		p.ApplyUnban(actor.Name, reason, now)
		changed = true
	}
	if !changed {
		return opErr(CodeNoActionNeeded,
			fmt.Sprintf(chat.Warning+"Nothing on %s is banned.", addr))
	}
	c.log.Info("ip and accounts unbanned", "address", addr.String(), "by", actor.Name, "reason", reason)
	if announce {
		c.announcer.Announce(
			fmt.Sprintf(chat.Announce+"%s and all accounts on it were unbanned by %s.", addr, actor.Name),
			fmt.Sprintf(chat.Announce+"An IP and all accounts on it were unbanned by %s.", actor.Name),
		)
	}
	c.events.Fire(&ChangedEvent{Kind: KindAll, Unban: true, IP: addr, Actor: actor.Name, Reason: reason})
	return nil
}

// BanIPByName resolves a player name to their last known address and
// IP-bans it. Refused if the account is IP-ban-exempt.
func (c *Coordinator) BanIPByName(actor Actor, targetName, reason string, announce bool) error {
	addr, err := c.resolveAddr(targetName)
	if err != nil {
		return err
	}
	return c.BanIP(actor, addr, reason, announce)
}

// UnbanIPByName resolves a player name to their last known address and
// lifts its IP ban.
func (c *Coordinator) UnbanIPByName(actor Actor, targetName, reason string, announce bool) error {
	addr, err := c.resolveAddr(targetName)
	if err != nil {
		return err
	}
	return c.UnbanIP(actor, addr, reason, announce)
}

// BanAllByName resolves a player name and ban-alls their last address.
func (c *Coordinator) BanAllByName(actor Actor, targetName, reason string, announce bool) error {
	addr, err := c.resolveAddr(targetName)
	if err != nil {
		return err
	}
	return c.BanAll(actor, addr, reason, announce)
}

// UnbanAllByName resolves a player name and unban-alls their last address.
func (c *Coordinator) UnbanAllByName(actor Actor, targetName, reason string, announce bool) error {
	addr, err := c.resolveAddr(targetName)
	if err != nil {
		return err
	}
	return c.UnbanAll(actor, addr, reason, announce)
}

func (c *Coordinator) resolveAddr(targetName string) (net.IP, error) {
	target := c.directory.Get(targetName)
	if target == nil {
		return nil, fmt.Errorf("no player record for %q", targetName)
	}
	if target.BanStatus() == player.IPBanExempt {
		return nil, opErr(CodeTargetExempt,
			fmt.Sprintf(chat.Warning+"%s is exempt from IP bans.", target.Name()))
	}
	addr := target.LastIP()
	if addr == nil {
		return nil, fmt.Errorf("no known address for %q", target.Name())
	}
	return addr, nil
}

// checkLimitAll enforces the all-or-nothing rank limit over every
// affected record.
func (c *Coordinator) checkLimitAll(actor Actor, perm rank.Permission, verb string, affected []*player.Record) error {
	if !actor.Rank.Can(perm) {
		return c.permissionErr(verb, actor, perm)
	}
	for _, p := range affected {
		if !actor.Rank.CanTarget(perm, p.Rank()) {
			return opErr(CodePermissionLow,
				fmt.Sprintf(chat.Warning+"You cannot %s: %s (rank %s) is above your limit.",
					verb, p.Name(), p.Rank().Name))
		}
	}
	return nil
}

func (c *Coordinator) permissionErr(verb string, actor Actor, perm rank.Permission) *OperationError {
	limit := actor.Rank.Limit(perm)
	return opErr(CodePermissionLow,
		fmt.Sprintf(chat.Warning+"You can only %s players ranked %s or below.", verb, limit.Name))
}

func (c *Coordinator) requireReason(reason string, required bool, verb string) error {
	if required && strings.TrimSpace(reason) == "" {
		return opErr(CodeReasonRequired,
			fmt.Sprintf(chat.Warning+"Please specify a %s reason.", verb))
	}
	return nil
}

// firePreEvent runs the cancelable pre-event and returns the possibly
// rewritten reason.
func (c *Coordinator) firePreEvent(evt *ChangingEvent) (string, error) {
	c.events.Fire(evt)
	if !evt.Allowed() {
		return "", opErr(CodeCancelled, chat.Warning+"The operation was cancelled.")
	}
	return evt.Reason(), nil
}

// kickAddress signals every live session on addr to disconnect,
// skipping IP-ban-exempt accounts. Kicks are asynchronous: the
// caller's goroutine never waits on a target session.
func (c *Coordinator) kickAddress(addr net.IP, affected []*player.Record, reason string) {
	for _, p := range affected {
		if p.BanStatus() == player.IPBanExempt {
			continue
		}
		if s := p.Session(); s != nil && s.IP().Equal(addr) {
			s.Kick(reason)
		}
	}
}

func (c *Coordinator) recordActorBan(actor Actor) {
	if rec := c.directory.Get(actor.Name); rec != nil {
		rec.IncTimesBannedOthers()
	}
}
