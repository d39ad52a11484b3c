// Package telnet implements the line-oriented TCP front-end from spec
// §4.8: an accept goroutine and one reader goroutine per connection feed
// completed lines into per-connection queues; only the main loop, via
// PumpInput, ever touches the object table or interpreter, preserving
// the single-threaded cooperative model spec §5 requires.
package telnet

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kythorn/lpgo/internal/interp"
	"github.com/kythorn/lpgo/internal/master"
	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/value"
	"github.com/kythorn/lpgo/internal/worldstore"
)

// loginHook is the master blueprint function invoked per spec §4.8 to
// produce a player object for a freshly accepted connection.
const loginHook = "connect"

// commandDir is the standard command lookup location from spec §4.8
// step 3. A command file /cmds/<verb>.c is expected to define a
// function of the same name, invoked with the rest of the line.
const commandDir = "/cmds/"

type conn struct {
	id         string
	netConn    net.Conn
	remoteAddr string
	writer     *bufio.Writer

	player   *object.Object
	lines    chan string
	closedCh chan struct{}
	closed   bool

	linkdead   bool
	linkdeadAt time.Time

	outbox strings.Builder
}

func (c *conn) queueOutput(s string) { c.outbox.WriteString(s) }

func (c *conn) flush() {
	if c.outbox.Len() == 0 {
		return
	}
	text := c.outbox.String()
	c.outbox.Reset()
	c.writer.WriteString(text)
	c.writer.Flush()
}

// Server owns every live and linkdead connection. It implements
// scheduler.NetworkPump and the efun package's Output/Users interfaces.
type Server struct {
	it     *interp.Interp
	table  *object.Table
	master *master.Master
	store  *worldstore.Store
	log    *zap.Logger

	linkdeadGrace time.Duration

	listener net.Listener
	accepted chan *conn

	mu      sync.Mutex
	order   []string
	conns   map[string]*conn
	players map[*object.Object]*conn
}

// New constructs a Server. linkdeadGrace is how long a disconnected
// player object is kept off the destruct list awaiting reconnect; zero
// destructs immediately on disconnect.
func New(it *interp.Interp, tbl *object.Table, m *master.Master, store *worldstore.Store, linkdeadGrace time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		it: it, table: tbl, master: m, store: store, log: log,
		linkdeadGrace: linkdeadGrace,
		accepted:      make(chan *conn, 16),
		conns:         map[string]*conn{},
		players:       map[*object.Object]*conn{},
	}
}

// Listen opens the TCP socket. Call Serve afterward, in its own
// goroutine, to start accepting.
func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("telnet listen: %w", err)
	}
	s.listener = l
	return nil
}

// Serve runs the accept loop until the listener closes. Run it in its
// own goroutine; every connection it admits is only touched afterward
// from PumpInput on the main loop.
func (s *Server) Serve() {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			return
		}
		c := &conn{
			id:         uuid.New().String(),
			netConn:    nc,
			remoteAddr: nc.RemoteAddr().String(),
			writer:     bufio.NewWriter(nc),
			lines:      make(chan string, 64),
			closedCh:   make(chan struct{}),
		}
		go c.readLoop()
		s.accepted <- c
	}
}

func (c *conn) readLoop() {
	scanner := bufio.NewScanner(c.netConn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		select {
		case c.lines <- line:
		default:
			// connection produced input faster than the tick loop
			// drains it; drop the oldest queued line rather than
			// block the reader goroutine.
			select {
			case <-c.lines:
			default:
			}
			c.lines <- line
		}
	}
	close(c.closedCh)
}

// Close stops accepting new connections. Already-open connections are
// closed individually as PumpInput notices them, or immediately here.
func (s *Server) Close() error {
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.netConn.Close()
	}
	return nil
}

// PumpInput implements scheduler.NetworkPump: admits newly accepted
// connections, then drains at most one queued line per connection in
// stable round-robin order, and reaps connections whose reader goroutine
// observed EOF.
func (s *Server) PumpInput(now time.Time) {
	s.admitNew()

	s.mu.Lock()
	ids := append([]string(nil), s.order...)
	s.mu.Unlock()

	for _, id := range ids {
		s.mu.Lock()
		c := s.conns[id]
		s.mu.Unlock()
		if c == nil {
			continue
		}
		select {
		case <-c.closedCh:
			if !c.closed {
				c.closed = true
				s.handleDisconnect(c)
			}
			continue
		default:
		}
		select {
		case line := <-c.lines:
			s.dispatchLine(c, line)
			c.flush()
		default:
		}
	}

	s.reapLinkdead(now)
}

func (s *Server) admitNew() {
	for {
		select {
		case c := <-s.accepted:
			s.bindPlayer(c)
			s.mu.Lock()
			s.conns[c.id] = c
			s.order = append(s.order, c.id)
			s.mu.Unlock()
			if s.store != nil {
				if err := s.store.LogConnect(c.id, c.remoteAddr); err != nil {
					s.log.Warn("log connect failed", zap.Error(err))
				}
			}
			c.flush()
		default:
			return
		}
	}
}

// bindPlayer runs the master blueprint's login hook to obtain a player
// object, per spec §4.8, reusing a linkdead object instead of the fresh
// one when its saved name matches, per SPEC_FULL.md §3.8's reconnect
// supplement.
func (s *Server) bindPlayer(c *conn) {
	if s.master == nil {
		return
	}
	masterObj := s.master.MasterObject()
	if masterObj == nil {
		s.log.Warn("telnet connection accepted with no master blueprint loaded")
		return
	}
	fresh, err := s.it.Dispatch(masterObj, nil, loginHook, nil)
	if err != nil || fresh.Kind() != value.Object || fresh.Obj() == nil {
		s.log.Warn("master login hook failed", zap.Error(err))
		return
	}
	player := s.table.Resolve(fresh.Obj())
	if player == nil {
		return
	}
	if name, ok := playerName(player); ok {
		if old := s.takeLinkdead(name); old != nil {
			s.table.Destruct(player)
			player = old
			player.SetCwd("")
			s.log.Info("player reconnected", zap.String("name", name))
		}
	}
	c.player = player
	s.mu.Lock()
	s.players[player] = c
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.LogBindPlayer(c.id, player.ID()); err != nil {
			s.log.Warn("log bind player failed", zap.Error(err))
		}
	}
}

// playerName reads the conventional "name" string variable mudlib
// player objects declare, used only for the linkdead reconnect match.
func playerName(player *object.Object) (string, bool) {
	idx, ok := player.Blueprint().VarIndex("name")
	if !ok {
		return "", false
	}
	v := player.Slot(idx)
	if v.Kind() != value.String || v.Str() == "" {
		return "", false
	}
	return strings.ToLower(v.Str()), true
}

// takeLinkdead finds a linkdead connection's player object by saved
// name and retires that stale connection record entirely — it must not
// linger in s.conns, or PumpInput would later reap it and destruct the
// player object the new connection just took over.
func (s *Server) takeLinkdead(name string) *object.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.conns {
		if !c.linkdead || c.player == nil {
			continue
		}
		if n, ok := playerName(c.player); ok && n == name {
			player := c.player
			delete(s.players, player)
			delete(s.conns, id)
			for i, oid := range s.order {
				if oid == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
			return player
		}
	}
	return nil
}

func (s *Server) handleDisconnect(c *conn) {
	c.netConn.Close()
	if s.linkdeadGrace <= 0 {
		s.dropConnection(c, false)
		return
	}
	c.linkdead = true
	c.linkdeadAt = time.Now()
	if s.store != nil {
		if err := s.store.LogDisconnect(c.id, true); err != nil {
			s.log.Warn("log disconnect failed", zap.Error(err))
		}
	}
}

func (s *Server) reapLinkdead(now time.Time) {
	s.mu.Lock()
	var expired []*conn
	for _, c := range s.conns {
		if c.linkdead && now.Sub(c.linkdeadAt) > s.linkdeadGrace {
			expired = append(expired, c)
		}
	}
	s.mu.Unlock()
	for _, c := range expired {
		s.dropConnection(c, true)
	}
}

func (s *Server) dropConnection(c *conn, wasLinkdead bool) {
	s.mu.Lock()
	delete(s.conns, c.id)
	delete(s.players, c.player)
	for i, id := range s.order {
		if id == c.id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	if c.player != nil {
		s.table.Destruct(c.player)
	}
	if s.store != nil && !wasLinkdead {
		if err := s.store.LogDisconnect(c.id, false); err != nil {
			s.log.Warn("log disconnect failed", zap.Error(err))
		}
	}
}

// dispatchLine implements spec §4.8's per-line processing: alias
// substitution on the first token, verb/args split, then the three-tier
// command lookup.
func (s *Server) dispatchLine(c *conn, line string) {
	if c.player == nil || c.player.Destructed() {
		return
	}
	verb, args := splitVerb(applyAlias(c.player, line))
	if verb == "" {
		return
	}
	if s.store != nil {
		ok, detail := s.runVerb(c.player, verb, args)
		if err := s.store.LogCommand(c.player.ID(), verb, args, ok, detail); err != nil {
			s.log.Warn("log command failed", zap.Error(err))
		}
		return
	}
	s.runVerb(c.player, verb, args)
}

func (s *Server) runVerb(player *object.Object, verb, args string) (ok bool, detail string) {
	argv := []value.Value{value.NewString(args)}

	if entry, found := player.ActionFor(verb); found {
		v, err := s.it.Dispatch(entry.Registrant, player, entry.Fn, argv)
		if err != nil {
			s.reportError(player, err)
			return false, err.Error()
		}
		if v.Truthy() {
			return true, ""
		}
	}

	if fn, _ := player.Blueprint().FindFunction(verb); fn != nil {
		v, err := s.it.Dispatch(player, player, verb, argv)
		if err != nil {
			s.reportError(player, err)
			return false, err.Error()
		}
		if v.Truthy() {
			return true, ""
		}
	}

	if path, err := s.table.Canonicalize("", commandDir+verb); err == nil {
		if bp, err := s.table.LoadBlueprint(path); err == nil {
			if fn, _ := bp.Master.Blueprint().FindFunction(verb); fn != nil {
				v, err := s.it.Dispatch(bp.Master, player, verb, argv)
				if err != nil {
					s.reportError(player, err)
					return false, err.Error()
				}
				if v.Truthy() {
					return true, ""
				}
			}
		}
	}

	s.Write(player, "What?\n")
	return false, "unrecognized command"
}

func (s *Server) reportError(player *object.Object, err error) {
	s.Write(player, fmt.Sprintf("Error: %v\n", err))
	s.log.Warn("command dispatch error", zap.String("player", player.ID()), zap.Error(err))
}

func splitVerb(line string) (verb, args string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ""
	}
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i], strings.TrimSpace(line[i+1:])
	}
	return line, ""
}

// applyAlias consults the player's own "aliases" mapping variable, by
// convention a mapping from verb to expansion string, per spec §6.
func applyAlias(player *object.Object, line string) string {
	idx, ok := player.Blueprint().VarIndex("aliases")
	if !ok {
		return line
	}
	m := player.Slot(idx)
	if m.Kind() != value.Mapping {
		return line
	}
	verb, rest := splitVerb(line)
	if verb == "" {
		return line
	}
	expansion := m.MappingGet(value.NewString(verb))
	if expansion.Kind() != value.String || expansion.Str() == "" {
		return line
	}
	if rest == "" {
		return expansion.Str()
	}
	return expansion.Str() + " " + rest
}

// Write implements efun.Output: appends text to player's buffer without
// flushing it (flushed once by PumpInput at the end of the dispatch
// that produced it).
func (s *Server) Write(player *object.Object, text string) {
	if c := s.connFor(player); c != nil {
		c.queueOutput(text)
	}
}

// TellObject implements efun.Output.
func (s *Server) TellObject(obj *object.Object, text string) {
	s.Write(obj, text)
}

// TellRoom implements efun.Output: broadcasts to every interactive
// occupant of room except those listed in except.
func (s *Server) TellRoom(room *object.Object, text string, except []*object.Object) {
	if room == nil {
		return
	}
	skip := map[*object.Object]bool{}
	for _, o := range except {
		skip[o] = true
	}
	for _, occ := range room.Inventory() {
		if skip[occ] {
			continue
		}
		s.Write(occ, text)
	}
}

// Command implements efun.Output: the command(s) efun injects s as a
// synthetic input line for this_player(), reusing the same dispatch
// path a typed line takes. It does not flush; the enclosing dispatch's
// PumpInput call does that once.
func (s *Server) Command(player *object.Object, line string) {
	if player == nil || player.Destructed() {
		return
	}
	verb, args := splitVerb(applyAlias(player, line))
	if verb == "" {
		return
	}
	s.runVerb(player, verb, args)
}

// Users implements efun.Users: every currently connected (non-linkdead)
// player.
func (s *Server) Users() []*object.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*object.Object
	for _, c := range s.conns {
		if !c.linkdead && c.player != nil {
			out = append(out, c.player)
		}
	}
	return out
}

// LinkdeadUsers implements efun.Users.
func (s *Server) LinkdeadUsers() []*object.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*object.Object
	for _, c := range s.conns {
		if c.linkdead && c.player != nil {
			out = append(out, c.player)
		}
	}
	return out
}

func (s *Server) connFor(obj *object.Object) *conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[obj]
}
