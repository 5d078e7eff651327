// Package ban sequences the ban/unban state transitions across player
// records and the IP-ban list, keeping the two orthogonal facts
// logically consistent for the combined operations.
package ban

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/atomic"
)

// IPBanEntry is one banned address. A name ban and an IP ban are
// independent facts; PlayerName only links the entry to the account
// that caused it, for display.
type IPBanEntry struct {
	Address    net.IP
	PlayerName string // may be empty
	BannedBy   string
	Reason     string
	At         time.Time
}

// IPBanList holds at most one active entry per address. Mutations are
// serialized by a lock; a copy-on-write snapshot is published for
// lock-free readers, mirroring the player directory's discipline.
type IPBanList struct {
	log logr.Logger

	mu      sync.Mutex
	entries map[string]*IPBanEntry // key: ip.String()

	snapshot atomic.Pointer[[]*IPBanEntry]
}

func NewIPBanList(log logr.Logger) *IPBanList {
	l := &IPBanList{
		log:     log.WithName("ipbans"),
		entries: make(map[string]*IPBanEntry),
	}
	l.publishLocked()
	return l
}

func (l *IPBanList) publishLocked() {
	list := make([]*IPBanEntry, 0, len(l.entries))
	for _, e := range l.entries {
		list = append(list, e)
	}
	l.snapshot.Store(&list)
}

// Get returns the entry for addr, nil if it is not banned.
func (l *IPBanList) Get(addr net.IP) *IPBanEntry {
	if addr == nil {
		return nil
	}
	for _, e := range *l.snapshot.Load() {
		if e.Address.Equal(addr) {
			return e
		}
	}
	return nil
}

// Contains reports whether addr is banned.
func (l *IPBanList) Contains(addr net.IP) bool {
	return l.Get(addr) != nil
}

// Add inserts an entry and reports whether it was new. The
// check-then-act runs under the list lock so duplicate entries cannot
// race in.
func (l *IPBanList) Add(e IPBanEntry) bool {
	key := e.Address.String()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.entries[key]; exists {
		return false
	}
	l.entries[key] = &e
	l.publishLocked()
	return true
}

// Remove deletes the entry for addr and reports whether one existed.
func (l *IPBanList) Remove(addr net.IP) bool {
	key := addr.String()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.entries[key]; !exists {
		return false
	}
	delete(l.entries, key)
	l.publishLocked()
	return true
}

// All returns the published entry list. Do not mutate.
func (l *IPBanList) All() []*IPBanEntry {
	return *l.snapshot.Load()
}

// Count returns the number of banned addresses.
func (l *IPBanList) Count() int { return len(l.All()) }

const ipBanEscape = ''

// Save writes the list to path, one entry per line.
func (l *IPBanList) Save(path string) error {
	entries := l.All()
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create ipban file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, e := range entries {
		fmt.Fprintf(w, "%s,%s,%s,%s,%d\n",
			e.Address.String(),
			e.PlayerName,
			strings.ReplaceAll(e.BannedBy, ",", string(ipBanEscape)),
			strings.ReplaceAll(e.Reason, ",", string(ipBanEscape)),
			e.At.Unix())
	}
	if err = w.Flush(); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write ipban file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace ipban file: %w", err)
	}
	return nil
}

// Load reads entries from path, replacing the list contents. Bad
// lines are skipped and counted.
func (l *IPBanList) Load(path string) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open ipban file: %w", err)
	}
	defer f.Close()

	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make(map[string]*IPBanEntry)

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 5 {
			skipped++
			l.log.Info("skipping malformed ipban line", "line", lineNo)
			continue
		}
		addr := net.ParseIP(fields[0])
		if addr == nil {
			skipped++
			l.log.Info("skipping ipban line with bad address", "line", lineNo, "address", fields[0])
			continue
		}
		var at time.Time
		if sec, perr := strconv.ParseInt(fields[4], 10, 64); perr == nil {
			at = time.Unix(sec, 0).UTC()
		}
		entries[addr.String()] = &IPBanEntry{
			Address:    addr,
			PlayerName: fields[1],
			BannedBy:   strings.ReplaceAll(fields[2], string(ipBanEscape), ","),
			Reason:     strings.ReplaceAll(fields[3], string(ipBanEscape), ","),
			At:         at,
		}
	}
	if err = sc.Err(); err != nil {
		return skipped, fmt.Errorf("read ipban file: %w", err)
	}
	l.entries = entries
	l.publishLocked()
	l.log.Info("loaded ip bans", "count", len(entries), "skipped", skipped)
	return skipped, nil
}
