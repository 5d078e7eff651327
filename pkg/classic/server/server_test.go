package server

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"

	"github.com/blockhaven/classicd/pkg/classic/ban"
	"github.com/blockhaven/classicd/pkg/classic/block"
	"github.com/blockhaven/classicd/pkg/classic/chat"
	"github.com/blockhaven/classicd/pkg/classic/command"
	"github.com/blockhaven/classicd/pkg/classic/player"
	"github.com/blockhaven/classicd/pkg/classic/proto"
	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/classic/security"
	"github.com/blockhaven/classicd/pkg/classic/world"
)

type fakeWriter struct {
	mu      sync.Mutex
	packets []proto.Packet
}

func (w *fakeWriter) Send(p proto.Packet) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.packets = append(w.packets, p)
}

func (w *fakeWriter) SendNow(p proto.Packet)         { w.Send(p) }
func (w *fakeWriter) SendLowPriority(p proto.Packet) { w.Send(p) }

func (w *fakeWriter) all() []proto.Packet {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]proto.Packet, len(w.packets))
	copy(out, w.packets)
	return out
}

func (w *fakeWriter) messages() []string {
	var out []string
	for _, p := range w.all() {
		if m, ok := p.(*proto.Message); ok {
			out = append(out, chat.Strip(m.Text))
		}
	}
	return out
}

func (w *fakeWriter) setBlocks() []*proto.SetBlock {
	var out []*proto.SetBlock
	for _, p := range w.all() {
		if sb, ok := p.(*proto.SetBlock); ok {
			out = append(out, sb)
		}
	}
	return out
}

func (w *fakeWriter) disconnected() bool {
	for _, p := range w.all() {
		if _, ok := p.(*proto.Disconnect); ok {
			return true
		}
	}
	return false
}

func (w *fakeWriter) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.packets = nil
}

type fakeMap struct {
	mu      sync.Mutex
	blocks  map[[3]int]block.Type
	updates []world.BlockUpdate
}

func newFakeMap() *fakeMap {
	return &fakeMap{blocks: map[[3]int]block.Type{}}
}

func (m *fakeMap) Block(x, y, z int) block.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocks[[3]int{x, y, z}]
}

func (m *fakeMap) QueueUpdate(u world.BlockUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
	m.blocks[[3]int{u.X, u.Y, u.Z}] = u.Block
}

func (m *fakeMap) InBounds(x, y, z int) bool {
	return x >= 0 && x < 128 && y >= 0 && y < 128 && z >= 0 && z < 128
}

func (m *fakeMap) set(x, y, z int, t block.Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[[3]int{x, y, z}] = t
}

func (m *fakeMap) queued() []world.BlockUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]world.BlockUpdate, len(m.updates))
	copy(out, m.updates)
	return out
}

type fakeWorld struct {
	name   string
	locked bool
	access *security.Controller
	build  *security.Controller
	zones  *world.ZoneCollection
	m      *fakeMap
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		name:   "main",
		access: security.NewController(),
		build:  security.NewController(),
		zones:  world.NewZoneCollection(),
		m:      newFakeMap(),
	}
}

func (w *fakeWorld) Name() string                         { return w.name }
func (w *fakeWorld) IsLocked() bool                       { return w.locked }
func (w *fakeWorld) AccessSecurity() *security.Controller { return w.access }
func (w *fakeWorld) BuildSecurity() *security.Controller  { return w.build }
func (w *fakeWorld) Zones() *world.ZoneCollection         { return w.zones }
func (w *fakeWorld) Map() world.Map                       { return w.m }

type fixture struct {
	srv     *Server
	world   *fakeWorld
	owner   *rank.Rank
	member  *rank.Rank
	guest   *rank.Rank
	writers []*fakeWriter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testr.New(t)
	owner := rank.New("owner", 0,
		rank.Chat, rank.Build, rank.Delete, rank.PlaceAdmincrete, rank.DeleteAdmincrete,
		rank.PlaceWater, rank.PlaceLava, rank.Ban, rank.BanIP, rank.BanAll,
		rank.Kick, rank.Mute, rank.Freeze, rank.Hide, rank.ViewPlayerIPs,
		rank.ReadStaffChat, rank.UseColorCodes, rank.Draw)
	member := rank.New("member", 1, rank.Chat, rank.Build, rank.Delete)
	guest := rank.New("guest", 2, rank.Chat)
	ranks := rank.NewRegistry(owner, member, guest)

	dir := player.NewDirectory(log, ranks)
	srv := New(Options{
		Log:       log,
		Ranks:     ranks,
		Directory: dir,
		IPBans:    ban.NewIPBanList(log),
		Commands:  command.NewRegistry(),
		Config: Config{
			MaxReachDistance:     50,
			AntispamMessageCount: 3,
			AntispamInterval:     4 * time.Second,
			AntispamMuteDuration: 10 * time.Second,
			AntispamMaxWarnings:  2,
			IgnoreLimit:          16,
		},
	})
	return &fixture{srv: srv, world: newFakeWorld(), owner: owner, member: member, guest: guest}
}

// join registers a live session at the given rank.
func (f *fixture) join(t *testing.T, name string, r *rank.Rank) (*Session, *fakeWriter) {
	t.Helper()
	rec, _ := f.srv.Directory().FindOrCreate(name)
	rec.SetRank(r, "test", "", player.RankChangeDefault)
	w := &fakeWriter{}
	sess, err := f.srv.RegisterSession(name, w, f.world, net.ParseIP("10.1.2.3"))
	require.NoError(t, err)
	// Join announcements are not what the tests assert on.
	f.writers = append(f.writers, w)
	for _, fw := range f.writers {
		fw.reset()
	}
	return sess, w
}
