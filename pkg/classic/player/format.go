package player

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/blockhaven/classicd/pkg/classic/rank"
)

// The directory persists one record per line, comma-delimited with a
// fixed field layout. The layout only ever grows: older files carry
// fewer trailing fields and parse with defaults. Commas inside
// free-text fields are swapped with a private-use codepoint instead of
// CSV quoting.

const (
	// FormatVersion is written to the directory file header.
	FormatVersion = 2

	// minFields is the smallest field count ever written by a
	// historical format version.
	minFields = 24

	// fieldCount is the current number of fields per line.
	fieldCount = 35

	commaSubstitute = '' // private use area
)

func escape(s string) string {
	return strings.ReplaceAll(s, ",", string(commaSubstitute))
}

func unescape(s string) string {
	return strings.ReplaceAll(s, string(commaSubstitute), ",")
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func fmtBool(b bool) string {
	if b {
		return "1"
	}
	return ""
}

func rankName(r *rank.Rank) string {
	if r == nil {
		return ""
	}
	return r.Name
}

// MarshalLine serializes the record to its one-line directory format.
func (p *Record) MarshalLine() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var ip string
	if p.lastIP != nil {
		ip = p.lastIP.String()
	}
	fields := [fieldCount]string{
		p.name,
		ip,
		rankName(p.rankNfo.Rank),
		fmtTime(p.rankNfo.ChangedAt),
		escape(p.rankNfo.ChangedBy),
		strconv.Itoa(int(p.banNfo.Status)),
		fmtTime(p.banNfo.At),
		escape(p.banNfo.By),
		escape(p.banNfo.Reason),
		fmtTime(p.banNfo.UnbannedAt),
		escape(p.banNfo.UnbannedBy),
		escape(p.banNfo.UnbanReason),
		fmtTime(p.firstLogin),
		fmtTime(p.lastLogin),
		fmtTime(p.lastSeen),
		strconv.FormatInt(int64(p.stats.TotalTime/time.Second), 10),
		strconv.FormatInt(p.stats.BlocksBuilt, 10),
		strconv.FormatInt(p.stats.BlocksDeleted, 10),
		strconv.FormatInt(p.stats.BlocksDrawn, 10),
		strconv.FormatInt(p.stats.MessagesWritten, 10),
		strconv.FormatInt(p.stats.TimesVisited, 10),
		strconv.FormatInt(p.stats.TimesKicked, 10),
		strconv.FormatInt(p.stats.TimesKickedOthers, 10),
		strconv.FormatInt(p.stats.TimesBannedOthers, 10),
		strconv.Itoa(p.id),
		rankName(p.rankNfo.Previous),
		escape(p.rankNfo.Reason),
		strconv.Itoa(int(p.rankNfo.Type)),
		fmtBool(p.frzNfo.Frozen),
		escape(p.frzNfo.By),
		fmtTime(p.frzNfo.At),
		fmtTime(p.muteNfo.Until),
		escape(p.muteNfo.By),
		escape(p.leaveReason),
		fmtBool(p.hidden),
	}
	return strings.Join(fields[:], ",")
}

// parseLine parses one directory line into a Record.
// Missing trailing fields (older format versions) default to zero
// values. Unknown rank names fall back to the registry default.
func parseLine(line string, ranks *rank.Registry) (*Record, error) {
	fields := strings.Split(line, ",")
	if len(fields) < minFields {
		return nil, fmt.Errorf("expected at least %d fields, got %d", minFields, len(fields))
	}
	// Pad to the current layout so older versions read uniformly.
	if len(fields) < fieldCount {
		padded := make([]string, fieldCount)
		copy(padded, fields)
		fields = padded
	}

	name := fields[0]
	if name == "" {
		return nil, fmt.Errorf("empty player name")
	}
	id, err := strconv.Atoi(fields[24])
	if err != nil || id < ReservedIDs {
		return nil, fmt.Errorf("invalid record id %q", fields[24])
	}

	r := ranks.ByName(fields[2])
	if r == nil {
		r = ranks.Default
	}
	p := newRecord(id, name, r)
	p.lastIP = net.ParseIP(fields[1])

	p.rankNfo.ChangedAt = parseTime(fields[3])
	p.rankNfo.ChangedBy = unescape(fields[4])
	p.rankNfo.Previous = ranks.ByName(fields[25])
	p.rankNfo.Reason = unescape(fields[26])
	// Out-of-range enum values in a hand-edited or corrupt file fall
	// back to the zero value rather than wrapping through the uint8.
	if n, err := strconv.Atoi(fields[27]); err == nil && n >= 0 && n <= int(RankChangeAutoDemoted) {
		p.rankNfo.Type = RankChangeType(n)
	}

	if n, err := strconv.Atoi(fields[5]); err == nil && n >= 0 && n <= int(IPBanExempt) {
		p.banNfo.Status = BanStatus(n)
	}
	p.banNfo.At = parseTime(fields[6])
	p.banNfo.By = unescape(fields[7])
	p.banNfo.Reason = unescape(fields[8])
	p.banNfo.UnbannedAt = parseTime(fields[9])
	p.banNfo.UnbannedBy = unescape(fields[10])
	p.banNfo.UnbanReason = unescape(fields[11])

	p.firstLogin = parseTime(fields[12])
	p.lastLogin = parseTime(fields[13])
	p.lastSeen = parseTime(fields[14])

	ints := func(i int) int64 {
		n, _ := strconv.ParseInt(fields[i], 10, 64)
		return n
	}
	p.stats = Stats{
		TotalTime:         time.Duration(ints(15)) * time.Second,
		BlocksBuilt:       ints(16),
		BlocksDeleted:     ints(17),
		BlocksDrawn:       ints(18),
		MessagesWritten:   ints(19),
		TimesVisited:      ints(20),
		TimesKicked:       ints(21),
		TimesKickedOthers: ints(22),
		TimesBannedOthers: ints(23),
	}

	p.frzNfo = FreezeInfo{
		Frozen: fields[28] != "",
		By:     unescape(fields[29]),
		At:     parseTime(fields[30]),
	}
	p.muteNfo = MuteInfo{
		Until: parseTime(fields[31]),
		By:    unescape(fields[32]),
	}
	p.leaveReason = unescape(fields[33])
	p.hidden = fields[34] != ""

	// Legacy files may carry impossible combinations.
	p.normalizeLocked()
	return p, nil
}
