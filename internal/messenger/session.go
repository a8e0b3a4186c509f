package messenger

import (
	"context"
	"errors"
	"sync"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/service"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// DefaultMessageWindow is the bounded fetch size when a chat becomes active
const DefaultMessageWindow = 50

// ErrClosed is returned by intents on a closed session
var ErrClosed = errors.New("messenger session closed")

// Identity is the current user as seen by the session
type Identity interface {
	UserID() string
	IsAuthenticated() bool
}

// Permissions are the messenger predicates of the permission oracle. The
// session exposes them to clients and does not enforce them.
type Permissions interface {
	CanView() bool
	CanEdit() bool
	CanDelete() bool
}

// Services are the aggregation-layer collaborators a session drives
type Services struct {
	Chats       *service.ChatService
	Messages    *service.MessageService
	Contacts    *service.ContactService
	Statuses    *service.StatusService
	Preferences *service.PreferenceService
}

// Option configures a Session
type Option func(*Session)

// WithMessageWindow sets the bounded fetch size used by SetActiveChat
func WithMessageWindow(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.window = n
		}
	}
}

// Session is one client's synchronized view. State changes are serialized
// through dispatch; subscription callbacks and intents may run concurrently.
type Session struct {
	svc      Services
	identity Identity
	perms    Permissions
	window   int

	dispatchMu   sync.Mutex
	mu           sync.Mutex
	state        State
	listeners    map[int]func(State)
	nextListener int

	// subscription bookkeeping
	subMu        sync.Mutex
	scope        domain.Scope
	lastKey      string
	stopChats    func()
	stopContacts func()
	stopMessages func()
	scopeGen     uint64
	chatGen      uint64
	closed       bool
}

// NewSession creates a session. perms may be nil, which allows everything.
func NewSession(svc Services, identity Identity, perms Permissions, opts ...Option) *Session {
	if perms == nil {
		perms = allowAll{}
	}
	s := &Session{
		svc:       svc,
		identity:  identity,
		perms:     perms,
		window:    DefaultMessageWindow,
		state:     NewState(),
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type allowAll struct{}

func (allowAll) CanView() bool   { return true }
func (allowAll) CanEdit() bool   { return true }
func (allowAll) CanDelete() bool { return true }

// Permissions returns the permission oracle for the client to consult
func (s *Session) Permissions() Permissions {
	return s.perms
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange registers fn to receive every new state, in dispatch order. fn runs
// on the dispatching goroutine and must not call back into the session's
// intents. The returned func removes it.
func (s *Session) OnChange(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) dispatch(actions ...action) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	for _, a := range actions {
		s.state = reduce(s.state, a)
	}
	next := s.state
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

// fail records err as the session's single error string
func (s *Session) fail(op string, err error) {
	userID := ""
	if s.identity != nil {
		userID = s.identity.UserID()
	}
	pkglogger.GetLogger().Warn().Err(err).
		Str("op", op).
		Str("user_id", userID).
		Msg("messenger intent failed")
	s.dispatch(setError{message: err.Error()})
}

// ClearError dismisses the current error
func (s *Session) ClearError() {
	s.dispatch(clearError{})
}

// current returns the scope and user an intent runs under
func (s *Session) current() (domain.Scope, string, error) {
	if s.identity == nil || !s.identity.IsAuthenticated() || s.identity.UserID() == "" {
		return domain.Scope{}, "", common.ErrUnauthenticated
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return domain.Scope{}, "", ErrClosed
	}
	return s.scope, s.identity.UserID(), nil
}

// SetScope points the session at a tenant scope. The chat list is refreshed and
// resubscribed only when basePath+userID differs from the last key that did so.
func (s *Session) SetScope(ctx context.Context, scope domain.Scope) {
	basePath := scope.BasePath()
	userID := ""
	if s.identity != nil && s.identity.IsAuthenticated() {
		userID = s.identity.UserID()
	}
	key := basePath + "|" + userID

	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		return
	}
	s.scope = scope
	if key == s.lastKey {
		s.subMu.Unlock()
		return
	}
	s.lastKey = key
	s.stopLocked()
	s.scopeGen++
	s.chatGen++
	gen := s.scopeGen

	if basePath != "" && userID != "" {
		s.stopChats = s.svc.Chats.SubscribeUserChats(scope, userID, func() {
			if s.scopeCurrent(gen) {
				_ = s.RefreshChats(context.Background())
			}
		})
		s.stopContacts = s.svc.Contacts.Subscribe(userID, func() {
			if s.scopeCurrent(gen) {
				_ = s.RefreshContacts(context.Background())
			}
		})
	}
	s.subMu.Unlock()

	s.dispatch(resetScope{}, setBasePath{basePath: basePath})
	if basePath == "" || userID == "" {
		return
	}
	_ = s.RefreshChats(ctx)
	_ = s.RefreshContacts(ctx)
}

// stopLocked tears down every live subscription; subMu must be held
func (s *Session) stopLocked() {
	for _, stop := range []*func(){&s.stopChats, &s.stopContacts, &s.stopMessages} {
		if *stop != nil {
			(*stop)()
			*stop = nil
		}
	}
}

func (s *Session) scopeCurrent(gen uint64) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return !s.closed && s.scopeGen == gen
}

func (s *Session) chatCurrent(gen uint64) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return !s.closed && s.chatGen == gen
}

// RefreshChats reloads the chat list
func (s *Session) RefreshChats(ctx context.Context) error {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("refresh_chats", err)
		return err
	}
	s.dispatch(setLoading{loading: true})
	chats, err := s.svc.Chats.ListUserChats(ctx, scope, userID)
	if err != nil {
		s.fail("refresh_chats", err)
		return err
	}
	s.dispatch(setChats{chats: chats})
	return nil
}

// RefreshContacts reloads contacts and invitations
func (s *Session) RefreshContacts(ctx context.Context) error {
	_, userID, err := s.current()
	if err != nil {
		s.fail("refresh_contacts", err)
		return err
	}
	contacts, err := s.svc.Contacts.ListContacts(ctx, userID)
	if err != nil {
		s.fail("refresh_contacts", err)
		return err
	}
	invitations, err := s.svc.Contacts.ListInvitations(ctx, userID)
	if err != nil {
		s.fail("refresh_contacts", err)
		return err
	}
	s.dispatch(setContacts{contacts: contacts}, setInvitations{invitations: invitations})
	return nil
}

// SetActiveChat switches the active chat. The previous message subscription is
// torn down first, the most recent window is fetched, then a live subscription
// replaces the chat's messages on every change. An empty chatID only clears.
func (s *Session) SetActiveChat(ctx context.Context, chatID string) error {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("set_active_chat", err)
		return err
	}

	s.subMu.Lock()
	if s.stopMessages != nil {
		s.stopMessages()
		s.stopMessages = nil
	}
	s.chatGen++
	gen := s.chatGen
	s.subMu.Unlock()

	s.dispatch(setActiveChat{chatID: chatID})
	if chatID == "" {
		return nil
	}

	s.dispatch(setLoading{loading: true})
	msgs, err := s.svc.Messages.GetMessages(ctx, scope, userID, chatID, s.window)
	if err != nil {
		s.fail("set_active_chat", err)
		return err
	}
	if !s.chatCurrent(gen) {
		return nil
	}
	s.dispatch(setMessages{chatID: chatID, messages: msgs})
	s.loadChatPreferences(ctx, userID, chatID)

	stop := s.svc.Messages.SubscribeMessages(scope, chatID, func(msgs []*domain.Message, err error) {
		if !s.chatCurrent(gen) {
			return
		}
		if err != nil {
			s.fail("message_stream", err)
			return
		}
		s.dispatch(setMessages{chatID: chatID, messages: msgs})
	})

	s.subMu.Lock()
	if s.closed || s.chatGen != gen {
		s.subMu.Unlock()
		stop()
		return nil
	}
	s.stopMessages = stop
	s.subMu.Unlock()
	return nil
}

// loadChatPreferences pulls the viewer's settings and draft for chatID.
// Failures leave the defaults in place.
func (s *Session) loadChatPreferences(ctx context.Context, userID, chatID string) {
	var actions []action
	if settings, err := s.svc.Preferences.GetSettings(ctx, userID, chatID); err == nil {
		actions = append(actions, setSettings{settings: settings})
	}
	if draft, err := s.svc.Preferences.GetDraft(ctx, userID, chatID); err == nil {
		actions = append(actions, setDraft{chatID: chatID, draft: draft})
	}
	if len(actions) > 0 {
		s.dispatch(actions...)
	}
}

// Close tears down every subscription and drops all listeners
func (s *Session) Close() {
	s.subMu.Lock()
	s.closed = true
	s.stopLocked()
	s.scopeGen++
	s.chatGen++
	s.subMu.Unlock()

	s.mu.Lock()
	s.listeners = make(map[int]func(State))
	s.mu.Unlock()
}
