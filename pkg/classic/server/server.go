// Package server ties the live pieces of the game core together: the
// server root owning the shared registries, the per-connection
// Session with its message and block pipelines, and the chat router.
package server

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jellydator/ttlcache/v3"
	"github.com/robinbraemer/event"

	"github.com/blockhaven/classicd/pkg/classic/ban"
	"github.com/blockhaven/classicd/pkg/classic/chat"
	"github.com/blockhaven/classicd/pkg/classic/command"
	"github.com/blockhaven/classicd/pkg/classic/player"
	"github.com/blockhaven/classicd/pkg/classic/proto"
	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/classic/world"
	"github.com/blockhaven/classicd/pkg/internal/addrquota"
)

// Config is the runtime policy of the session core.
type Config struct {
	// MaxReachDistance is the farthest coordinate distance a click is
	// accepted from, in blocks. Farther clicks are treated as a
	// possible hack and silently reverted. Zero disables the check.
	MaxReachDistance float64
	// AntispamMessageCount and AntispamInterval parameterize the chat
	// limiter: more than AntispamMessageCount chat messages within
	// AntispamInterval is spam.
	AntispamMessageCount int
	AntispamInterval     time.Duration
	// AntispamMuteDuration is how long a spammer is muted.
	AntispamMuteDuration time.Duration
	// AntispamMaxWarnings is how many mutes a session survives before
	// spam turns into a kick.
	AntispamMaxWarnings int
	// IgnoreLimit caps each session's ignore list.
	IgnoreLimit int
	// RejoinSuppression is how long after a disconnect a rejoin skips
	// the join announcement.
	RejoinSuppression time.Duration
	// RequireBanReason / RequireUnbanReason mandate non-empty reasons
	// on ban operations.
	RequireBanReason   bool
	RequireUnbanReason bool
	// ConnectionsPerSecond and ConnectionsBurst throttle connection
	// attempts per client address block. Zero disables the throttle.
	ConnectionsPerSecond float32
	ConnectionsBurst     int
	// MaxQuotaEntries caps the quota tracker's memory.
	MaxQuotaEntries int
}

// Options assembles a Server.
type Options struct {
	Log       logr.Logger
	Config    Config
	Ranks     *rank.Registry
	Directory *player.Directory
	IPBans    *ban.IPBanList
	Commands  *command.Registry
}

// Server is the root object owning all shared state of the game core.
type Server struct {
	log      logr.Logger
	cfg      Config
	events   event.Manager
	ranks    *rank.Registry
	dir      *player.Directory
	bans     *ban.Coordinator
	chat     *ChatRouter
	commands *command.Registry
	quota    *addrquota.Quota

	recentQuits *ttlcache.Cache[string, time.Time]

	mu       sync.RWMutex
	sessions map[string]*Session // keyed by lowercased name
}

// New assembles a server. Start must be called before registering
// sessions.
func New(opts Options) *Server {
	s := &Server{
		log:      opts.Log.WithName("server"),
		cfg:      opts.Config,
		events:   event.New(),
		ranks:    opts.Ranks,
		dir:      opts.Directory,
		commands: opts.Commands,
		sessions: map[string]*Session{},
		recentQuits: ttlcache.New[string, time.Time](
			ttlcache.WithTTL[string, time.Time](opts.Config.RejoinSuppression),
		),
	}
	if opts.Config.ConnectionsPerSecond > 0 {
		maxEntries := opts.Config.MaxQuotaEntries
		if maxEntries <= 0 {
			maxEntries = 1000
		}
		s.quota = addrquota.NewQuota(opts.Config.ConnectionsPerSecond, opts.Config.ConnectionsBurst, maxEntries)
	}
	s.chat = newChatRouter(s)
	s.bans = ban.NewCoordinator(s.log, s.events, opts.Directory, opts.IPBans, s.chat, ban.Config{
		RequireBanReason:   opts.Config.RequireBanReason,
		RequireUnbanReason: opts.Config.RequireUnbanReason,
	})
	return s
}

// Start runs the background reapers until stop is closed.
func (s *Server) Start(stop <-chan struct{}) {
	go s.recentQuits.Start()
	<-stop
	s.recentQuits.Stop()
}

// Event returns the server's event manager, the plugin extension
// point.
func (s *Server) Event() event.Manager { return s.events }

// Bans returns the ban coordinator.
func (s *Server) Bans() *ban.Coordinator { return s.bans }

// Directory returns the player directory.
func (s *Server) Directory() *player.Directory { return s.dir }

// Ranks returns the rank registry.
func (s *Server) Ranks() *rank.Registry { return s.ranks }

// Commands returns the command registry.
func (s *Server) Commands() *command.Registry { return s.commands }

// Chat returns the chat router.
func (s *Server) Chat() *ChatRouter { return s.chat }

// Sessions returns all live sessions.
func (s *Server) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// SessionByName returns the live session of the named account, nil if
// offline.
func (s *Server) SessionByName(name string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[strings.ToLower(name)]
}

// FindSessionsPrefix returns the live sessions whose names start with
// prefix, case-insensitively.
func (s *Server) FindSessionsPrefix(prefix string) []*Session {
	prefix = strings.ToLower(prefix)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Session
	for name, sess := range s.sessions {
		if strings.HasPrefix(name, prefix) {
			out = append(out, sess)
		}
	}
	return out
}

// RegisterSession admits a new connection: checks the address
// throttle and ban state, creates the session, processes the login on
// the record and announces the join. The returned session is live and
// owned by the caller's connection goroutine.
func (s *Server) RegisterSession(name string, w proto.Writer, wld world.World, ip net.IP) (*Session, error) {
	if s.quota != nil && s.quota.Blocked(ip) {
		return nil, fmt.Errorf("too many connection attempts from your address")
	}
	rec, created := s.dir.FindOrCreate(name)
	if rec.IsBanned() {
		info := rec.BanInfo()
		return nil, fmt.Errorf("you are banned: %s", chat.Strip(info.Reason))
	}
	if rec.BanStatus() != player.IPBanExempt && s.bans.IPBans().Contains(ip) {
		return nil, fmt.Errorf("your IP address is banned")
	}
	if !wld.AccessSecurity().Check(rec.Rank(), rec.Name()) {
		return nil, fmt.Errorf("you are not allowed to join this world")
	}
	if rec.IsOnline() {
		return nil, fmt.Errorf("account %s is already logged in", rec.Name())
	}

	sess := newSession(s, rec, w, wld, ip)
	rec.ProcessLogin(ip, time.Now())
	rec.SetSession(sess)

	s.mu.Lock()
	s.sessions[strings.ToLower(rec.Name())] = sess
	s.mu.Unlock()

	s.log.Info("player connected", "player", rec.Name(), "ip", ip.String(), "firstVisit", created)
	if !rec.IsHidden() && !s.recentlyQuit(rec.Name()) {
		s.chat.BroadcastSys(fmt.Sprintf("%s"+chat.Sys+" connected.", sess.DisplayName()))
	}
	s.events.Fire(&SessionConnectedEvent{session: sess})
	return sess, nil
}

// UnregisterSession tears down a session, flushing its terminal stats
// into the record exactly once.
func (s *Server) UnregisterSession(sess *Session, leaveReason string) {
	now := time.Now()
	if !sess.finishLogout(leaveReason, now) {
		return
	}
	s.mu.Lock()
	delete(s.sessions, strings.ToLower(sess.Name()))
	s.mu.Unlock()

	rec := sess.Record()
	if s.cfg.RejoinSuppression > 0 {
		s.recentQuits.Set(strings.ToLower(rec.Name()), now, ttlcache.DefaultTTL)
	}
	s.log.Info("player disconnected", "player", rec.Name(), "reason", leaveReason)
	if !rec.IsHidden() {
		s.chat.BroadcastSys(fmt.Sprintf("%s"+chat.Sys+" left the server.", sess.DisplayName()))
	}
	s.events.Fire(&SessionDisconnectedEvent{session: sess, leaveReason: leaveReason})
}

func (s *Server) recentlyQuit(name string) bool {
	if s.cfg.RejoinSuppression <= 0 {
		return false
	}
	return s.recentQuits.Get(strings.ToLower(name)) != nil
}

// Kick disconnects a target account. Counters are recorded on both
// sides and the pre-event may veto or rewrite the reason.
func (s *Server) Kick(actorName string, actorRank *rank.Rank, targetName, reason string) error {
	target := s.dir.Get(targetName)
	if target == nil {
		return fmt.Errorf("no player found matching %q", targetName)
	}
	if strings.EqualFold(actorName, target.Name()) {
		return fmt.Errorf("you cannot kick yourself")
	}
	if !actorRank.CanTarget(rank.Kick, target.Rank()) {
		return fmt.Errorf("you are not allowed to kick %s", target.Name())
	}
	sess := target.Session()
	if sess == nil {
		return fmt.Errorf("%s is not online", target.Name())
	}

	evt := &PlayerKickEvent{target: target, actor: actorName, reason: reason}
	s.events.Fire(evt)
	if !evt.Allowed() {
		return fmt.Errorf("kick of %s was cancelled", target.Name())
	}
	reason = evt.Reason()

	target.IncTimesKicked()
	if actor := s.dir.Get(actorName); actor != nil {
		actor.IncTimesKickedOthers()
	}
	s.log.Info("player kicked", "target", target.Name(), "actor", actorName, "reason", reason)
	s.chat.BroadcastSys(fmt.Sprintf(chat.Warning+"%s was kicked by %s: %s", target.Name(), actorName, reason))
	sess.Kick(reason)
	s.events.Fire(&KickedEvent{Target: target, Actor: actorName, Reason: reason})
	return nil
}

// Mute silences a target for the given duration.
func (s *Server) Mute(actorName string, actorRank *rank.Rank, targetName string, d time.Duration) error {
	target, err := s.moderationTarget(actorName, actorRank, rank.Mute, targetName, "mute")
	if err != nil {
		return err
	}
	evt := &StatusChangingEvent{target: target, actor: actorName, op: StatusMute}
	s.events.Fire(evt)
	if !evt.Allowed() {
		return fmt.Errorf("mute of %s was cancelled", target.Name())
	}
	target.Mute(actorName, time.Now().Add(d))
	s.log.Info("player muted", "target", target.Name(), "actor", actorName, "duration", d)
	if sess := target.Session(); sess != nil {
		sess.SendMessage(fmt.Sprintf(chat.Warning+"You were muted by %s for %s.", actorName, d))
	}
	s.events.Fire(&StatusChangedEvent{Target: target, Actor: actorName, Op: StatusMute})
	return nil
}

// Unmute lifts a target's mute.
func (s *Server) Unmute(actorName string, actorRank *rank.Rank, targetName string) error {
	target, err := s.moderationTarget(actorName, actorRank, rank.Mute, targetName, "unmute")
	if err != nil {
		return err
	}
	if !target.IsMuted(time.Now()) {
		return fmt.Errorf("%s is not muted", target.Name())
	}
	evt := &StatusChangingEvent{target: target, actor: actorName, op: StatusUnmute}
	s.events.Fire(evt)
	if !evt.Allowed() {
		return fmt.Errorf("unmute of %s was cancelled", target.Name())
	}
	target.Unmute()
	s.log.Info("player unmuted", "target", target.Name(), "actor", actorName)
	if sess := target.Session(); sess != nil {
		sess.SendMessage(fmt.Sprintf(chat.Sys+"You were unmuted by %s.", actorName))
	}
	s.events.Fire(&StatusChangedEvent{Target: target, Actor: actorName, Op: StatusUnmute})
	return nil
}

// Freeze stops a target from moving, building and using most
// commands.
func (s *Server) Freeze(actorName string, actorRank *rank.Rank, targetName string) error {
	target, err := s.moderationTarget(actorName, actorRank, rank.Freeze, targetName, "freeze")
	if err != nil {
		return err
	}
	if target.IsFrozen() {
		return fmt.Errorf("%s is already frozen", target.Name())
	}
	evt := &StatusChangingEvent{target: target, actor: actorName, op: StatusFreeze}
	s.events.Fire(evt)
	if !evt.Allowed() {
		return fmt.Errorf("freeze of %s was cancelled", target.Name())
	}
	target.Freeze(actorName, time.Now())
	s.log.Info("player frozen", "target", target.Name(), "actor", actorName)
	if sess := target.Session(); sess != nil {
		sess.SendMessage(fmt.Sprintf(chat.Warning+"You were frozen by %s.", actorName))
	}
	s.events.Fire(&StatusChangedEvent{Target: target, Actor: actorName, Op: StatusFreeze})
	return nil
}

// Unfreeze lifts a freeze.
func (s *Server) Unfreeze(actorName string, actorRank *rank.Rank, targetName string) error {
	target, err := s.moderationTarget(actorName, actorRank, rank.Freeze, targetName, "unfreeze")
	if err != nil {
		return err
	}
	if !target.IsFrozen() {
		return fmt.Errorf("%s is not frozen", target.Name())
	}
	evt := &StatusChangingEvent{target: target, actor: actorName, op: StatusUnfreeze}
	s.events.Fire(evt)
	if !evt.Allowed() {
		return fmt.Errorf("unfreeze of %s was cancelled", target.Name())
	}
	target.Unfreeze()
	s.log.Info("player unfrozen", "target", target.Name(), "actor", actorName)
	if sess := target.Session(); sess != nil {
		sess.SendMessage(fmt.Sprintf(chat.Sys+"You were unfrozen by %s.", actorName))
	}
	s.events.Fire(&StatusChangedEvent{Target: target, Actor: actorName, Op: StatusUnfreeze})
	return nil
}

// ChangeRank promotes or demotes a target.
func (s *Server) ChangeRank(actorName string, actorRank *rank.Rank, targetName string, to *rank.Rank, reason string) error {
	target, created := s.dir.FindOrCreate(targetName)
	if created {
		s.log.Info("rank change creates offline record", "target", target.Name())
	}
	from := target.Rank()
	if from == to {
		return fmt.Errorf("%s already holds rank %s", target.Name(), to.Name)
	}
	if to.HigherThan(actorRank) {
		return fmt.Errorf("you cannot promote above your own rank")
	}
	if from.HigherThan(actorRank) {
		return fmt.Errorf("you cannot change the rank of someone who outranks you")
	}

	evt := &RankChangeEvent{target: target, actor: actorName, from: from, to: to, reason: reason}
	s.events.Fire(evt)
	if !evt.Allowed() {
		return fmt.Errorf("rank change of %s was cancelled", target.Name())
	}
	reason = evt.Reason()

	typ := player.RankChangeDemoted
	if to.HigherThan(from) {
		typ = player.RankChangePromoted
	}
	target.SetRank(to, actorName, reason, typ)
	s.log.Info("rank changed", "target", target.Name(), "actor", actorName,
		"from", from.Name, "to", to.Name, "reason", reason)
	if sess := target.Session(); sess != nil {
		sess.SendMessage(fmt.Sprintf(chat.Sys+"%s set your rank to %s.", actorName, to.Name))
	}
	s.events.Fire(&RankChangedEvent{Target: target, Actor: actorName, From: from, To: to, Reason: reason})
	return nil
}

func (s *Server) moderationTarget(actorName string, actorRank *rank.Rank, perm rank.Permission, targetName, verb string) (*player.Record, error) {
	target := s.dir.Get(targetName)
	if target == nil {
		return nil, fmt.Errorf("no player found matching %q", targetName)
	}
	if strings.EqualFold(actorName, target.Name()) {
		return nil, fmt.Errorf("you cannot %s yourself", verb)
	}
	if !actorRank.CanTarget(perm, target.Rank()) {
		return nil, fmt.Errorf("you are not allowed to %s %s", verb, target.Name())
	}
	return target, nil
}
