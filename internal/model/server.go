package model

import "strings"

// ServerSet is the root of the server hierarchy.
type ServerSet struct {
	Object
	servers *Children[*Server]
}

func NewServerSet() *ServerSet {
	s := &ServerSet{}
	s.init(s, "servers")
	s.servers = newChildren(s, func(v *Server) string { return foldKey(v.name) })
	return s
}

func (s *ServerSet) children() []Node { return nodes(s.servers.items) }

func (s *ServerSet) Servers() *Children[*Server] { return s.servers }

// Server returns the server with the given name, or nil.
func (s *ServerSet) Server(name string) *Server {
	v, _ := s.servers.ByName(name)
	return v
}

// AddServer returns the existing server named name or attaches a new one.
func (s *ServerSet) AddServer(name string, port int) *Server {
	srv := NewServer(name, port)
	if s.servers.Add(srv) {
		return srv
	}
	return s.Server(name)
}

// CommitAll clears the modified flag on every entity of the aggregate.
func (s *ServerSet) CommitAll() { commitTree(s) }

// Server is one chat network endpoint.
type Server struct {
	Object
	port      int
	errorCode int
	channels  *Children[*Channel]
}

func NewServer(name string, port int) *Server {
	s := &Server{port: port}
	s.init(s, strings.TrimSpace(name))
	s.enabled = true
	s.channels = newChildren(s, func(v *Channel) string { return foldKey(v.name) })
	return s
}

func (s *Server) children() []Node { return nodes(s.channels.items) }

func (s *Server) Port() int          { return getValue(&s.Object, &s.port) }
func (s *Server) SetPort(v int)      { setValue(&s.Object, &s.port, v, "port") }
func (s *Server) ErrorCode() int     { return getValue(&s.Object, &s.errorCode) }
func (s *Server) SetErrorCode(v int) { setValue(&s.Object, &s.errorCode, v, "error_code") }

func (s *Server) Channels() *Children[*Channel] { return s.channels }

// NormalizeChannel trims and lower-cases name and ensures the '#' prefix.
func NormalizeChannel(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name != "" && !strings.HasPrefix(name, "#") {
		name = "#" + name
	}
	return name
}

// Channel returns the channel with the given (normalized) name, or nil.
func (s *Server) Channel(name string) *Channel {
	v, _ := s.channels.ByName(NormalizeChannel(name))
	return v
}

// AddChannel returns the existing channel or attaches a new one.
func (s *Server) AddChannel(name string) *Channel {
	ch := NewChannel(name)
	if s.channels.Add(ch) {
		return ch
	}
	return s.Channel(name)
}

// Bot searches every channel of the server for nick.
func (s *Server) Bot(nick string) *Bot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.channels.items {
		for _, b := range ch.bots.items {
			if strings.EqualFold(b.name, nick) {
				return b
			}
		}
	}
	return nil
}

// Bots returns every bot of every channel.
func (s *Server) Bots() []*Bot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Bot
	for _, ch := range s.channels.items {
		out = append(out, ch.bots.items...)
	}
	return out
}

// Channel is a chat room on a server.
type Channel struct {
	Object
	errorCode int
	bots      *Children[*Bot]
}

func NewChannel(name string) *Channel {
	c := &Channel{}
	c.init(c, NormalizeChannel(name))
	c.enabled = true
	c.bots = newChildren(c, func(v *Bot) string { return foldKey(v.name) })
	return c
}

func (c *Channel) children() []Node { return nodes(c.bots.items) }

func (c *Channel) ErrorCode() int     { return getValue(&c.Object, &c.errorCode) }
func (c *Channel) SetErrorCode(v int) { setValue(&c.Object, &c.errorCode, v, "error_code") }

func (c *Channel) Bots() *Children[*Bot] { return c.bots }

func (c *Channel) Bot(nick string) *Bot {
	v, _ := c.bots.ByName(nick)
	return v
}

// AddBot returns the existing bot or attaches a new one.
func (c *Channel) AddBot(nick string) *Bot {
	b := NewBot(nick)
	if c.bots.Add(b) {
		return b
	}
	return c.Bot(nick)
}

// Server returns the owning server, or nil when detached.
func (c *Channel) Server() *Server {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, _ := c.parent.(*Server)
	return s
}
