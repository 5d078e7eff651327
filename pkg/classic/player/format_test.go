package player

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockhaven/classicd/pkg/classic/rank"
)

func testRegistry() *rank.Registry {
	owner := rank.New("owner", 0)
	builder := rank.New("builder", 1)
	guest := rank.New("guest", 2)
	return rank.NewRegistry(owner, builder, guest)
}

func TestMarshalLine_RoundTrip(t *testing.T) {
	ranks := testRegistry()
	now := time.Unix(time.Now().Unix(), 0).UTC() // format precision is seconds

	p := newRecord(300, "Notch", ranks.ByName("builder"))
	p.ProcessLogin(net.ParseIP("10.0.0.7"), now.Add(-2*time.Hour))
	p.SetRank(ranks.ByName("owner"), "console", "well, behaved", RankChangePromoted)
	p.IncBlocks(15, 3, 120)
	p.IncMessagesWritten()
	p.IncTimesKickedOthers()
	p.Mute("Admin", now.Add(10*time.Minute))
	p.ProcessLogout("quit", 90*time.Minute, now)

	parsed, err := parseLine(p.MarshalLine(), ranks)
	require.NoError(t, err)

	assert.Equal(t, p.ID(), parsed.ID())
	assert.Equal(t, p.Name(), parsed.Name())
	assert.Equal(t, "owner", parsed.Rank().Name)
	assert.Equal(t, "builder", parsed.RankInfo().Previous.Name)
	assert.Equal(t, "well, behaved", parsed.RankInfo().Reason)
	assert.Equal(t, RankChangePromoted, parsed.RankInfo().Type)
	assert.Equal(t, p.Stats(), parsed.Stats())
	assert.True(t, parsed.LastIP().Equal(net.ParseIP("10.0.0.7")))
	assert.Equal(t, p.FirstLogin(), parsed.FirstLogin())
	assert.Equal(t, p.LastSeen(), parsed.LastSeen())
	assert.Equal(t, p.MuteInfo(), parsed.MuteInfo())
}

func TestMarshalLine_BanStateRoundTrip(t *testing.T) {
	ranks := testRegistry()
	at := time.Unix(1700000000, 0).UTC()

	p := newRecord(256, "Griefer", ranks.Default)
	p.ApplyBan("Admin", "tnt, lava, the works", at)

	parsed, err := parseLine(p.MarshalLine(), ranks)
	require.NoError(t, err)
	assert.Equal(t, Banned, parsed.BanStatus())
	assert.Equal(t, "Admin", parsed.BanInfo().By)
	assert.Equal(t, "tnt, lava, the works", parsed.BanInfo().Reason)
	assert.Equal(t, at, parsed.BanInfo().At)
}

func TestParseLine_OlderFormatFewerFields(t *testing.T) {
	ranks := testRegistry()
	p := newRecord(400, "OldTimer", ranks.ByName("guest"))
	line := p.MarshalLine()

	// Simulate an older format version that wrote fewer trailing fields.
	fields := strings.Split(line, ",")
	short := strings.Join(fields[:minFields+1], ",")

	parsed, err := parseLine(short, ranks)
	require.NoError(t, err)
	assert.Equal(t, 400, parsed.ID())
	assert.False(t, parsed.IsFrozen())
	assert.False(t, parsed.IsHidden())
}

func TestParseLine_OutOfRangeEnums(t *testing.T) {
	ranks := testRegistry()
	p := newRecord(300, "Edited", ranks.Default)
	p.SetRank(ranks.ByName("owner"), "console", "", RankChangePromoted)
	p.ApplyBan("Admin", "grief", time.Unix(1700000000, 0).UTC())

	fields := strings.Split(p.MarshalLine(), ",")
	fields[5] = "-1"   // ban status
	fields[27] = "999" // rank change type

	parsed, err := parseLine(strings.Join(fields, ","), ranks)
	require.NoError(t, err)
	assert.Equal(t, NotBanned, parsed.BanStatus())
	assert.Equal(t, RankChangeDefault, parsed.RankInfo().Type)
}

func TestParseLine_Invalid(t *testing.T) {
	ranks := testRegistry()
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "a,b,c"},
		{"empty name", strings.Repeat(",", fieldCount-1)},
		{"reserved id", strings.Replace(newRecord(300, "X", ranks.Default).MarshalLine(), ",300,", ",12,", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLine(tt.line, ranks)
			assert.Error(t, err)
		})
	}
}

func TestNormalize_BannedClearsFrozenMutedHidden(t *testing.T) {
	ranks := testRegistry()
	p := newRecord(300, "Target", ranks.Default)
	p.Freeze("Mod", time.Now())
	p.Mute("Mod", time.Now().Add(time.Hour))
	p.SetHidden(true)

	p.ApplyBan("Admin", "bye", time.Now())

	assert.False(t, p.IsFrozen())
	assert.False(t, p.IsMuted(time.Now()))
	assert.False(t, p.IsHidden())
}
