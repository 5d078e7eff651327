// Package config defines the root classicd configuration for reading in
// files and environment variables with Viper.
package config

import (
	"fmt"
	"time"

	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/util/configutil"
)

// DefaultConfig is a default Config.
var DefaultConfig = func() Config {
	c := Config{
		ServerName:   "A Minecraft Classic Server",
		PlayerDB:     "players.txt",
		IPBanFile:    "ipbans.txt",
		SaveInterval: configutil.Duration(90 * time.Second),
		DefaultRank:  "guest",
		Ranks:        DefaultRanks(),
		Chat: Chat{
			AntispamMessageCount: 4,
			AntispamInterval:     configutil.Duration(5 * time.Second),
			AntispamMuteDuration: configutil.Duration(5 * time.Second),
			AntispamMaxWarnings:  2,
			IgnoreLimit:          64,
			RejoinSuppression:    configutil.Duration(3 * time.Minute),
		},
		Build: Build{
			MaxReachDistance: 7,
		},
		Net: Net{
			ConnectionsPerSecond: 5,
			ConnectionsBurst:     10,
			MaxQuotaEntries:      1000,
		},
		Bans: Bans{
			RequireBanReason:   false,
			RequireUnbanReason: false,
		},
	}
	return c
}()

// Config is the root configuration.
type Config struct {
	// ServerName is shown to players during the login handshake.
	ServerName string
	// Debug enables verbose development logging.
	Debug bool

	// PlayerDB is the path of the player record database file.
	PlayerDB string
	// IPBanFile is the path of the IP ban list file.
	IPBanFile string
	// SaveInterval is how often the player database and IP ban list are
	// written back to disk. Zero disables background saving.
	SaveInterval configutil.Duration

	// Ranks defines the permission tiers, highest authority first.
	Ranks []Rank
	// DefaultRank is the rank given to unknown players.
	DefaultRank string

	Chat  Chat
	Build Build
	Net   Net
	Bans  Bans
}

// Rank configures one permission tier.
type Rank struct {
	Name        string
	Prefix      string
	Color       string
	Permissions []string
	// AntiGriefBlocks/AntiGriefSeconds configure the block-spam window:
	// more than Blocks edits within Seconds kicks the player.
	// Zero disables the check for this rank.
	AntiGriefBlocks  int
	AntiGriefSeconds int
}

// Chat configures message handling.
type Chat struct {
	// More than AntispamMessageCount messages within AntispamInterval is
	// treated as spam. Zero disables the check.
	AntispamMessageCount int
	AntispamInterval     configutil.Duration
	// AntispamMuteDuration is the automatic mute applied on spam.
	AntispamMuteDuration configutil.Duration
	// AntispamMaxWarnings is how many automatic mutes are issued before
	// the player is kicked instead.
	AntispamMaxWarnings int
	// IgnoreLimit caps the per-session ignore list.
	IgnoreLimit int
	// RejoinSuppression suppresses join/leave announcements for players
	// reconnecting within this window. Zero disables suppression.
	RejoinSuppression configutil.Duration
}

// Build configures block placement.
type Build struct {
	// MaxReachDistance is the farthest click distance accepted from a
	// player, in blocks. Zero disables the check.
	MaxReachDistance int
}

// Net configures connection handling.
type Net struct {
	// ConnectionsPerSecond throttles connection attempts per /24 IP
	// block. Zero disables throttling.
	ConnectionsPerSecond float32
	ConnectionsBurst     int
	MaxQuotaEntries      int
}

// Bans configures ban bookkeeping.
type Bans struct {
	RequireBanReason   bool
	RequireUnbanReason bool
}

// DefaultRanks returns the stock four-tier rank ladder.
func DefaultRanks() []Rank {
	perms := func(ps ...rank.Permission) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = string(p)
		}
		return out
	}
	return []Rank{
		{
			Name: "owner", Prefix: "+", Color: "&c",
			Permissions: perms(rank.Permissions()...),
		},
		{
			Name: "op", Prefix: "-", Color: "&b",
			Permissions: perms(rank.Chat, rank.Build, rank.Delete,
				rank.PlaceAdmincrete, rank.DeleteAdmincrete, rank.PlaceWater,
				rank.PlaceLava, rank.Kick, rank.Mute, rank.Freeze,
				rank.ViewPlayerIPs, rank.ReadStaffChat, rank.UseColorCodes,
				rank.Draw, rank.Ban),
		},
		{
			Name: "builder", Color: "&a",
			Permissions: perms(rank.Chat, rank.Build, rank.Delete, rank.Draw),
		},
		{
			Name: "guest", Color: "&f",
			Permissions:     perms(rank.Chat, rank.Build, rank.Delete),
			AntiGriefBlocks: 35, AntiGriefSeconds: 5,
		},
	}
}

// SetDefaults sets Config defaults to use with Viper.
func SetDefaults(i configutil.SetDefault) {
	i.SetDefault("servername", "A Minecraft Classic Server")
	i.SetDefault("debug", false)
	i.SetDefault("playerdb", "players.txt")
	i.SetDefault("ipbanfile", "ipbans.txt")
	i.SetDefault("saveinterval", "90s")
	i.SetDefault("defaultrank", "guest")

	chat := configutil.Prefixed(i, "chat")
	chat.SetDefault("antispammessagecount", 4)
	chat.SetDefault("antispaminterval", "5s")
	chat.SetDefault("antispammuteduration", "5s")
	chat.SetDefault("antispammaxwarnings", 2)
	chat.SetDefault("ignorelimit", 64)
	chat.SetDefault("rejoinsuppression", "3m")

	configutil.Prefixed(i, "build").SetDefault("maxreachdistance", 7)

	net := configutil.Prefixed(i, "net")
	net.SetDefault("connectionspersecond", 5)
	net.SetDefault("connectionsburst", 10)
	net.SetDefault("maxquotaentries", 1000)

	bans := configutil.Prefixed(i, "bans")
	bans.SetDefault("requirebanreason", false)
	bans.SetDefault("requireunbanreason", false)
}

// Validate validates the Config and returns non-fatal warnings and
// fatal errors.
func (c *Config) Validate() (warns []error, errs []error) {
	e := func(m string, args ...any) { errs = append(errs, fmt.Errorf(m, args...)) }
	w := func(m string, args ...any) { warns = append(warns, fmt.Errorf(m, args...)) }
	if c == nil {
		e("config must not be nil")
		return
	}

	if c.ServerName == "" {
		w("ServerName is empty")
	}
	if c.PlayerDB == "" {
		e("PlayerDB file path must not be empty")
	}
	if c.IPBanFile == "" {
		e("IPBanFile path must not be empty")
	}

	if len(c.Ranks) == 0 {
		e("at least one rank must be defined")
		return
	}
	seen := map[string]bool{}
	for i, r := range c.Ranks {
		if r.Name == "" {
			e("rank at position %d has no name", i)
			continue
		}
		if seen[r.Name] {
			e("duplicate rank name %q", r.Name)
		}
		seen[r.Name] = true
		for _, p := range r.Permissions {
			if _, ok := rank.ParsePermission(p); !ok {
				e("rank %q: unknown permission %q", r.Name, p)
			}
		}
		if r.AntiGriefBlocks < 0 || r.AntiGriefSeconds < 0 {
			e("rank %q: anti-grief values must not be negative", r.Name)
		}
	}
	if c.DefaultRank == "" {
		e("DefaultRank must not be empty")
	} else if !seen[c.DefaultRank] {
		e("DefaultRank %q is not a defined rank", c.DefaultRank)
	}

	if c.Chat.AntispamMessageCount < 0 || c.Chat.AntispamInterval < 0 {
		e("chat anti-spam values must not be negative")
	}
	if c.Chat.AntispamMessageCount > 0 && c.Chat.AntispamMuteDuration <= 0 {
		w("chat anti-spam is enabled but AntispamMuteDuration is zero, offenders will only be warned")
	}
	if c.Build.MaxReachDistance < 0 {
		e("Build.MaxReachDistance must not be negative")
	}
	if c.Net.ConnectionsPerSecond < 0 {
		e("Net.ConnectionsPerSecond must not be negative")
	}
	if c.Net.ConnectionsPerSecond > 0 && c.Net.ConnectionsBurst < 1 {
		e("Net.ConnectionsBurst must be at least 1 when throttling is enabled")
	}

	return
}
