// Package player holds the durable per-account state of the server:
// the Record of each account and the Directory indexing all records.
//
// Records outlive connections. A live session holds a checked-out
// *Record handle; all mutable state on a Record is serialized by the
// record's own lock, so concurrent administrative edits (one session
// banning another) never race. Rare conflicting writes to the same
// field are last-writer-wins.
package player

import (
	"net"
	"sync"
	"time"

	"github.com/blockhaven/classicd/pkg/classic/rank"
)

// ReservedIDs is the number of record IDs reserved for internal
// accounts (console, system). Real accounts start at 256.
const ReservedIDs = 256

// BanStatus is the tri-state ban flag of a record.
type BanStatus uint8

const (
	NotBanned BanStatus = iota
	Banned
	// IPBanExempt marks an account that IP-based kicks must skip even
	// when its address is banned.
	IPBanExempt
)

func (s BanStatus) String() string {
	switch s {
	case Banned:
		return "banned"
	case IPBanExempt:
		return "ip-ban-exempt"
	}
	return "not banned"
}

// RankChangeType records how a rank change came about.
type RankChangeType uint8

const (
	RankChangeDefault RankChangeType = iota
	RankChangePromoted
	RankChangeDemoted
	RankChangeAutoPromoted
	RankChangeAutoDemoted
)

// RankInfo is a record's rank state plus change metadata.
type RankInfo struct {
	Rank      *rank.Rank
	Previous  *rank.Rank
	ChangedBy string
	ChangedAt time.Time
	Reason    string
	Type      RankChangeType
}

// BanInfo is a record's ban state. Ban and unban metadata are kept
// separately so an unban does not erase who banned and why.
type BanInfo struct {
	Status      BanStatus
	By          string
	At          time.Time
	Reason      string
	UnbannedBy  string
	UnbannedAt  time.Time
	UnbanReason string
}

// MuteInfo is a record's mute state. A record is muted iff
// now < Until.
type MuteInfo struct {
	Until time.Time
	By    string
}

// FreezeInfo is a record's freeze state.
type FreezeInfo struct {
	Frozen bool
	By     string
	At     time.Time
}

// Stats are the lifetime counters of a record.
type Stats struct {
	TotalTime         time.Duration
	BlocksBuilt       int64
	BlocksDeleted     int64
	BlocksDrawn       int64
	MessagesWritten   int64
	TimesVisited      int64
	TimesKicked       int64
	TimesKickedOthers int64
	TimesBannedOthers int64
}

// LiveSession is the weak link from a record to its live connection.
// Implemented by the server's Session. Kick only signals the session's
// goroutine and never blocks on it.
type LiveSession interface {
	Kick(reason string)
	SendMessage(text string)
	IP() net.IP
}

// Record is the persistent identity of one account.
// Exactly one Record exists per case-insensitive name.
type Record struct {
	id   int
	name string

	mu      sync.RWMutex
	rankNfo RankInfo
	banNfo  BanInfo
	muteNfo MuteInfo
	frzNfo  FreezeInfo
	stats   Stats

	firstLogin  time.Time
	lastLogin   time.Time
	lastSeen    time.Time
	lastIP      net.IP
	leaveReason string
	hidden      bool

	session LiveSession // nil while offline
}

func newRecord(id int, name string, r *rank.Rank) *Record {
	return &Record{
		id:   id,
		name: name,
		rankNfo: RankInfo{
			Rank: r,
			Type: RankChangeDefault,
		},
	}
}

// ID returns the stable record ID.
func (p *Record) ID() int { return p.id }

// Name returns the immutable account name.
func (p *Record) Name() string { return p.name }

func (p *Record) Rank() *rank.Rank {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rankNfo.Rank
}

func (p *Record) RankInfo() RankInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rankNfo
}

// SetRank changes the record's rank and remembers the previous one.
func (p *Record) SetRank(r *rank.Rank, by, reason string, typ RankChangeType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rankNfo = RankInfo{
		Rank:      r,
		Previous:  p.rankNfo.Rank,
		ChangedBy: by,
		ChangedAt: time.Now(),
		Reason:    reason,
		Type:      typ,
	}
}

func (p *Record) BanStatus() BanStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.banNfo.Status
}

func (p *Record) IsBanned() bool { return p.BanStatus() == Banned }

func (p *Record) BanInfo() BanInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.banNfo
}

// ApplyBan sets the ban flag with its metadata. A banned record cannot
// stay frozen, muted or hidden.
func (p *Record) ApplyBan(by, reason string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.banNfo.Status = Banned
	p.banNfo.By = by
	p.banNfo.At = at
	p.banNfo.Reason = reason
	p.normalizeLocked()
}

// ApplyUnban clears the ban flag, keeping the historical ban metadata.
func (p *Record) ApplyUnban(by, reason string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.banNfo.Status = NotBanned
	p.banNfo.UnbannedBy = by
	p.banNfo.UnbannedAt = at
	p.banNfo.UnbanReason = reason
}

// SetBanExempt toggles the IP-ban exemption flag.
func (p *Record) SetBanExempt(exempt bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case exempt && p.banNfo.Status == NotBanned:
		p.banNfo.Status = IPBanExempt
	case !exempt && p.banNfo.Status == IPBanExempt:
		p.banNfo.Status = NotBanned
	}
}

func (p *Record) MuteInfo() MuteInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.muteNfo
}

// IsMuted reports whether the record is muted at the given instant.
func (p *Record) IsMuted(now time.Time) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return now.Before(p.muteNfo.Until)
}

// Mute silences the record until the given time.
func (p *Record) Mute(by string, until time.Time) {
	p.mu.Lock()
	p.muteNfo = MuteInfo{Until: until, By: by}
	p.mu.Unlock()
}

func (p *Record) Unmute() {
	p.mu.Lock()
	p.muteNfo = MuteInfo{}
	p.mu.Unlock()
}

func (p *Record) FreezeInfo() FreezeInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frzNfo
}

func (p *Record) IsFrozen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frzNfo.Frozen
}

func (p *Record) Freeze(by string, at time.Time) {
	p.mu.Lock()
	p.frzNfo = FreezeInfo{Frozen: true, By: by, At: at}
	p.mu.Unlock()
}

func (p *Record) Unfreeze() {
	p.mu.Lock()
	p.frzNfo = FreezeInfo{}
	p.mu.Unlock()
}

func (p *Record) IsHidden() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hidden
}

func (p *Record) SetHidden(hidden bool) {
	p.mu.Lock()
	p.hidden = hidden
	p.mu.Unlock()
}

func (p *Record) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// IncBlocks adds to the block counters.
func (p *Record) IncBlocks(built, deleted, drawn int64) {
	p.mu.Lock()
	p.stats.BlocksBuilt += built
	p.stats.BlocksDeleted += deleted
	p.stats.BlocksDrawn += drawn
	p.mu.Unlock()
}

func (p *Record) IncMessagesWritten() {
	p.mu.Lock()
	p.stats.MessagesWritten++
	p.mu.Unlock()
}

func (p *Record) IncTimesKicked() {
	p.mu.Lock()
	p.stats.TimesKicked++
	p.mu.Unlock()
}

func (p *Record) IncTimesKickedOthers() {
	p.mu.Lock()
	p.stats.TimesKickedOthers++
	p.mu.Unlock()
}

func (p *Record) IncTimesBannedOthers() {
	p.mu.Lock()
	p.stats.TimesBannedOthers++
	p.mu.Unlock()
}

func (p *Record) FirstLogin() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.firstLogin
}

func (p *Record) LastSeen() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSeen
}

func (p *Record) LastIP() net.IP {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastIP
}

// LeaveReason returns why the last session ended.
func (p *Record) LeaveReason() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.leaveReason
}

// ProcessLogin records a successful connection.
func (p *Record) ProcessLogin(ip net.IP, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.firstLogin.IsZero() {
		p.firstLogin = at
	}
	p.lastLogin = at
	p.lastSeen = at
	p.lastIP = ip
	p.stats.TimesVisited++
}

// ProcessLogout flushes a session's terminal state into the record.
// The session guarantees it calls this exactly once.
func (p *Record) ProcessLogout(leaveReason string, sessionTime time.Duration, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaveReason = leaveReason
	p.stats.TotalTime += sessionTime
	p.lastSeen = at
	p.session = nil
}

// Session returns the live session, nil while offline.
func (p *Record) Session() LiveSession {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

func (p *Record) SetSession(s LiveSession) {
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
}

// IsOnline reports whether a live session is attached.
func (p *Record) IsOnline() bool { return p.Session() != nil }

// normalizeLocked enforces the ban consistency invariant: a banned
// record is never simultaneously frozen, muted or hidden. Also applied
// to legacy data on directory load.
func (p *Record) normalizeLocked() {
	if p.banNfo.Status != Banned {
		return
	}
	p.frzNfo = FreezeInfo{}
	p.muteNfo = MuteInfo{}
	p.hidden = false
}
