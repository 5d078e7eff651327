// Package classicd wires the classic server core together from a
// validated configuration: ranks, player database, IP ban list and the
// session server.
package classicd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/go-viper/mapstructure/v2"
	"github.com/robinbraemer/event"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blockhaven/classicd/internal/util/console"
	"github.com/blockhaven/classicd/pkg/classic/ban"
	"github.com/blockhaven/classicd/pkg/classic/command"
	"github.com/blockhaven/classicd/pkg/classic/player"
	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/classic/server"
	"github.com/blockhaven/classicd/pkg/classicd/config"
)

// Options are classicd options.
type Options struct {
	// Config requires a validated configuration.
	Config *config.Config
	// Logger is the logger used for classicd and all sub-components.
	// If not set, a no-op logger is used.
	Logger logr.Logger
}

// New returns a new Classicd instance from validated options.
func New(opts Options) (*Classicd, error) {
	if opts.Config == nil {
		return nil, errors.New("missing config")
	}
	log := opts.Logger

	ranks, err := buildRanks(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("error building rank registry: %w", err)
	}

	dir := player.NewDirectory(log, ranks)
	ipBans := ban.NewIPBanList(log)

	srv := server.New(server.Options{
		Log:       log,
		Ranks:     ranks,
		Directory: dir,
		IPBans:    ipBans,
		Commands:  command.NewRegistry(),
		Config: server.Config{
			MaxReachDistance:     float64(opts.Config.Build.MaxReachDistance),
			AntispamMessageCount: opts.Config.Chat.AntispamMessageCount,
			AntispamInterval:     time.Duration(opts.Config.Chat.AntispamInterval),
			AntispamMuteDuration: time.Duration(opts.Config.Chat.AntispamMuteDuration),
			AntispamMaxWarnings:  opts.Config.Chat.AntispamMaxWarnings,
			IgnoreLimit:          opts.Config.Chat.IgnoreLimit,
			RejoinSuppression:    time.Duration(opts.Config.Chat.RejoinSuppression),
			RequireBanReason:     opts.Config.Bans.RequireBanReason,
			RequireUnbanReason:   opts.Config.Bans.RequireUnbanReason,
			ConnectionsPerSecond: opts.Config.Net.ConnectionsPerSecond,
			ConnectionsBurst:     opts.Config.Net.ConnectionsBurst,
			MaxQuotaEntries:      opts.Config.Net.MaxQuotaEntries,
		},
	})

	mirrorChat(srv.Event())

	return &Classicd{
		log:    log,
		cfg:    opts.Config,
		ranks:  ranks,
		dir:    dir,
		ipBans: ipBans,
		srv:    srv,
	}, nil
}

// mirrorChat echoes global chat to the server console with the legacy
// '&' codes rendered as ANSI colors. Subscribed at the lowest priority
// so plugins rewriting or denying a message run first.
func mirrorChat(events event.Manager) {
	event.Subscribe(events, math.MinInt, func(e *server.ChatEvent) {
		if !e.Allowed() || e.Kind() != server.KindChat {
			return
		}
		line := fmt.Sprintf("%s&f: %s", e.Session().DisplayName(), e.Message())
		fmt.Fprintln(os.Stdout, console.AnsiFromLegacy(line))
	})
}

// Classicd is the root of a running classic server.
type Classicd struct {
	log    logr.Logger
	cfg    *config.Config
	ranks  *rank.Registry
	dir    *player.Directory
	ipBans *ban.IPBanList
	srv    *server.Server
}

// Server returns the session server.
func (c *Classicd) Server() *server.Server { return c.srv }

// Directory returns the player record database.
func (c *Classicd) Directory() *player.Directory { return c.dir }

// Ranks returns the configured rank registry.
func (c *Classicd) Ranks() *rank.Registry { return c.ranks }

// IPBans returns the IP ban list.
func (c *Classicd) IPBans() *ban.IPBanList { return c.ipBans }

// Start loads the persistent state, runs the server until ctx is
// canceled and writes the state back on the way out.
func (c *Classicd) Start(ctx context.Context) error {
	if err := c.load(); err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	go c.srv.Start(stop)

	var saveEvery <-chan time.Time
	if d := time.Duration(c.cfg.SaveInterval); d > 0 {
		t := time.NewTicker(d)
		defer t.Stop()
		saveEvery = t.C
	}

	for {
		select {
		case <-saveEvery:
			c.save()
		case <-ctx.Done():
			c.save()
			return nil
		}
	}
}

func (c *Classicd) load() error {
	if _, err := os.Stat(c.cfg.PlayerDB); err == nil {
		skipped, err := c.dir.Load(c.cfg.PlayerDB)
		if err != nil {
			return fmt.Errorf("error loading player database %q: %w", c.cfg.PlayerDB, err)
		}
		if skipped > 0 {
			c.log.Info("Skipped unreadable player records", "file", c.cfg.PlayerDB, "skipped", skipped)
		}
	}
	if _, err := os.Stat(c.cfg.IPBanFile); err == nil {
		skipped, err := c.ipBans.Load(c.cfg.IPBanFile)
		if err != nil {
			return fmt.Errorf("error loading IP ban list %q: %w", c.cfg.IPBanFile, err)
		}
		if skipped > 0 {
			c.log.Info("Skipped unreadable IP ban entries", "file", c.cfg.IPBanFile, "skipped", skipped)
		}
	}
	return nil
}

func (c *Classicd) save() {
	if err := c.dir.Save(c.cfg.PlayerDB); err != nil {
		c.log.Error(err, "Error saving player database", "file", c.cfg.PlayerDB)
	}
	if err := c.ipBans.Save(c.cfg.IPBanFile); err != nil {
		c.log.Error(err, "Error saving IP ban list", "file", c.cfg.IPBanFile)
	}
}

// buildRanks converts the configured rank list, highest authority
// first, into a registry.
func buildRanks(cfg *config.Config) (*rank.Registry, error) {
	ranks := make([]*rank.Rank, 0, len(cfg.Ranks))
	for i, rc := range cfg.Ranks {
		perms := make([]rank.Permission, 0, len(rc.Permissions))
		for _, s := range rc.Permissions {
			p, ok := rank.ParsePermission(s)
			if !ok {
				return nil, fmt.Errorf("rank %q: unknown permission %q", rc.Name, s)
			}
			perms = append(perms, p)
		}
		r := rank.New(rc.Name, i, perms...)
		r.Prefix = rc.Prefix
		r.Color = rc.Color
		r.AntiGrief = rank.AntiGrief{Blocks: rc.AntiGriefBlocks, Seconds: rc.AntiGriefSeconds}
		ranks = append(ranks, r)
	}
	reg := rank.NewRegistry(ranks...)
	if def := reg.ByName(cfg.DefaultRank); def != nil {
		reg.Default = def
	}
	return reg, nil
}

// LoadConfig loads the config file and environment variables bound to
// v into a validated-ready Config.
func LoadConfig(v *viper.Viper) (*config.Config, error) {
	config.SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if len(cfg.Ranks) == 0 {
		cfg.Ranks = config.DefaultRanks()
	}
	return cfg, nil
}

// NewLogger returns a console zap logger wrapped for logr.
func NewLogger(debug bool) (logr.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(l), nil
}
