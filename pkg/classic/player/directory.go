package player

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/atomic"

	"github.com/blockhaven/classicd/pkg/classic/rank"
)

// Directory is the concurrent, indexed collection of all player
// records. A single coarse lock guards every mutation and the whole
// load/save cycle; after each mutation a fresh copy-on-write snapshot
// slice is published so readers never lock and always see an
// atomically consistent, possibly slightly stale view.
type Directory struct {
	log   logr.Logger
	ranks *rank.Registry

	mu     sync.Mutex
	byName map[string]*Record // canonical (lowered) name
	byID   map[int]*Record
	nextID int

	snapshot atomic.Pointer[[]*Record]
}

// NewDirectory returns an empty directory assigning IDs from
// ReservedIDs upward.
func NewDirectory(log logr.Logger, ranks *rank.Registry) *Directory {
	d := &Directory{
		log:    log.WithName("playerdb"),
		ranks:  ranks,
		byName: make(map[string]*Record),
		byID:   make(map[int]*Record),
		nextID: ReservedIDs,
	}
	d.publishLocked()
	return d
}

// publishLocked rebuilds the reader snapshot. Callers hold d.mu,
// except the constructor.
func (d *Directory) publishLocked() {
	list := make([]*Record, 0, len(d.byName))
	for _, p := range d.byName {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	d.snapshot.Store(&list)
}

// Snapshot returns the current published record list. The slice must
// not be mutated by the caller.
func (d *Directory) Snapshot() []*Record {
	return *d.snapshot.Load()
}

// Count returns the number of records.
func (d *Directory) Count() int {
	return len(d.Snapshot())
}

// Get finds a record by exact (case-insensitive) name, nil if absent.
func (d *Directory) Get(name string) *Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.byName[strings.ToLower(name)]
}

// ByID finds a record by ID, nil if absent.
func (d *Directory) ByID(id int) *Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.byID[id]
}

// FindOrCreate returns the record for name, creating it with the
// default rank and a fresh ID if none exists. Created records start
// with zero visits, which is how administrative offline operations
// (e.g. banning a name never seen) materialize accounts.
func (d *Directory) FindOrCreate(name string) (p *Record, created bool) {
	key := strings.ToLower(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	if p = d.byName[key]; p != nil {
		return p, false
	}
	p = newRecord(d.nextID, name, d.ranks.Default)
	d.nextID++
	d.byName[key] = p
	d.byID[p.id] = p
	d.publishLocked()
	return p, true
}

// FindPrefix returns all records whose name starts with prefix,
// case-insensitively.
func (d *Directory) FindPrefix(prefix string) []*Record {
	prefix = strings.ToLower(prefix)
	var out []*Record
	for _, p := range d.Snapshot() {
		if strings.HasPrefix(strings.ToLower(p.name), prefix) {
			out = append(out, p)
		}
	}
	return out
}

// FindRegex returns all records whose name matches the pattern.
func (d *Directory) FindRegex(expr string) ([]*Record, error) {
	re, err := regexp.Compile("(?i)^" + expr + "$")
	if err != nil {
		return nil, fmt.Errorf("invalid name pattern %q: %w", expr, err)
	}
	var out []*Record
	for _, p := range d.Snapshot() {
		if re.MatchString(p.name) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ByIP returns every record last seen on the given address.
func (d *Directory) ByIP(ip net.IP) []*Record {
	var out []*Record
	for _, p := range d.Snapshot() {
		if last := p.LastIP(); last != nil && last.Equal(ip) {
			out = append(out, p)
		}
	}
	return out
}

// Online returns every record with a live session attached.
func (d *Directory) Online() []*Record {
	var out []*Record
	for _, p := range d.Snapshot() {
		if p.IsOnline() {
			out = append(out, p)
		}
	}
	return out
}

// MassRankChange moves every record of rank from to rank to and
// returns the number of records changed.
func (d *Directory) MassRankChange(from, to *rank.Rank, by, reason string) int {
	var n int
	for _, p := range d.Snapshot() {
		if p.Rank() != from {
			continue
		}
		typ := RankChangePromoted
		if from.HigherThan(to) {
			typ = RankChangeDemoted
		}
		p.SetRank(to, by, reason, typ)
		n++
	}
	d.log.Info("mass rank change", "from", from.Name, "to", to.Name, "by", by, "count", n)
	return n
}

// Swap exchanges the mutable state of two records while each keeps its
// own name and ID. Refused while either is online.
func (d *Directory) Swap(a, b *Record) error {
	if a == b {
		return fmt.Errorf("cannot swap a record with itself")
	}
	if a.IsOnline() || b.IsOnline() {
		return fmt.Errorf("cannot swap records while either player is online")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	// Lock ordering by ID keeps concurrent swaps deadlock-free.
	first, second := a, b
	if second.id < first.id {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	a.rankNfo, b.rankNfo = b.rankNfo, a.rankNfo
	a.banNfo, b.banNfo = b.banNfo, a.banNfo
	a.muteNfo, b.muteNfo = b.muteNfo, a.muteNfo
	a.frzNfo, b.frzNfo = b.frzNfo, a.frzNfo
	a.stats, b.stats = b.stats, a.stats
	a.firstLogin, b.firstLogin = b.firstLogin, a.firstLogin
	a.lastLogin, b.lastLogin = b.lastLogin, a.lastLogin
	a.lastSeen, b.lastSeen = b.lastSeen, a.lastSeen
	a.lastIP, b.lastIP = b.lastIP, a.lastIP
	a.leaveReason, b.leaveReason = b.leaveReason, a.leaveReason
	a.hidden, b.hidden = b.hidden, a.hidden
	second.mu.Unlock()
	first.mu.Unlock()
	return nil
}

// Prune removes records that were never actually seen (zero visits) or
// whose last visit predates cutoff. Banned and online records are
// kept. Returns the number of removed records.
func (d *Directory) Prune(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int
	for key, p := range d.byName {
		if p.IsOnline() || p.BanStatus() != NotBanned {
			continue
		}
		stats := p.Stats()
		if stats.TimesVisited != 0 && !p.LastSeen().Before(cutoff) {
			continue
		}
		delete(d.byName, key)
		delete(d.byID, p.id)
		n++
	}
	if n != 0 {
		d.publishLocked()
		d.log.Info("pruned player records", "count", n)
	}
	return n
}

const fileHeaderPrefix = "playerdb"

// Save writes the directory to path. It copies the record list under
// the lock and serializes outside it, then atomically replaces the
// file.
func (d *Directory) Save(path string) error {
	records := d.Snapshot()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create playerdb file: %w", err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%s %d %d\n", fileHeaderPrefix, FormatVersion, len(records))
	for _, p := range records {
		w.WriteString(p.MarshalLine())
		w.WriteByte('\n')
	}
	if err = w.Flush(); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write playerdb file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace playerdb file: %w", err)
	}
	d.log.V(1).Info("saved player records", "count", len(records), "path", path)
	return nil
}

// Load reads records from path, replacing the directory contents.
// Unparseable lines are skipped and counted rather than aborting the
// load; the skipped count is returned.
func (d *Directory) Load(path string) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open playerdb file: %w", err)
	}
	defer f.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	byName := make(map[string]*Record)
	byID := make(map[int]*Record)
	nextID := ReservedIDs

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if lineNo == 1 && strings.HasPrefix(line, fileHeaderPrefix) {
			continue
		}
		if line == "" {
			continue
		}
		p, perr := parseLine(line, d.ranks)
		if perr != nil {
			skipped++
			d.log.Error(perr, "skipping unparseable player record", "line", lineNo)
			continue
		}
		key := strings.ToLower(p.name)
		if _, dup := byName[key]; dup {
			skipped++
			d.log.Info("skipping duplicate player record", "name", p.name, "line", lineNo)
			continue
		}
		byName[key] = p
		byID[p.id] = p
		if p.id >= nextID {
			nextID = p.id + 1
		}
	}
	if err = sc.Err(); err != nil {
		return skipped, fmt.Errorf("read playerdb file: %w", err)
	}

	d.byName = byName
	d.byID = byID
	d.nextID = nextID
	d.publishLocked()
	d.log.Info("loaded player records", "count", len(byName), "skipped", skipped)
	return skipped, nil
}
