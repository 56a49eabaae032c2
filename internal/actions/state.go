package actions

import (
	"sync"

	"github.com/bilgisen/newsroom/internal/client"
	"github.com/bilgisen/newsroom/internal/models"
)

// State is the client-side view of the article admin
type State struct {
	List          *models.ArticlePage
	Current       *models.Article
	LoginRequired bool
}

// Action is a state transition applied by Store.Dispatch
type Action interface {
	apply(s State) State
}

// ListFetched replaces the current list page
type ListFetched struct {
	Page *models.ArticlePage
}

func (a ListFetched) apply(s State) State {
	s.List = a.Page
	return s
}

// OneFetched replaces the article being edited
type OneFetched struct {
	Article *models.Article
}

func (a OneFetched) apply(s State) State {
	s.Current = a.Article
	return s
}

// Removed drops the list entry at Index. The index is positional and an
// index outside the list leaves the state unchanged.
type Removed struct {
	Index int
}

func (a Removed) apply(s State) State {
	if s.List == nil || a.Index < 0 || a.Index >= len(s.List.List) {
		return s
	}

	page := *s.List
	list := make([]models.Article, 0, len(page.List)-1)
	list = append(list, page.List[:a.Index]...)
	list = append(list, page.List[a.Index+1:]...)
	page.List = list
	s.List = &page
	return s
}

// LoginRequested marks the session as needing authentication
type LoginRequested struct{}

func (LoginRequested) apply(s State) State {
	s.LoginRequired = true
	return s
}

// LoggedIn clears LoginRequired
type LoggedIn struct{}

func (LoggedIn) apply(s State) State {
	s.LoginRequired = false
	return s
}

// Store holds State and notifies subscribers after every dispatch.
// Transitions never mutate a State previously handed out.
type Store struct {
	mu    sync.Mutex
	state State
	subs  map[int]func(State)
	next  int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

// State returns the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = a.apply(s.state)
	state := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// Subscribe registers fn and returns a func that removes it
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Notifier wraps base so that a login prompt also dispatches LoginRequested
func (s *Store) Notifier(base client.Notifier) client.Notifier {
	if base == nil {
		base = client.NopNotifier{}
	}
	return loginNotifier{Notifier: base, store: s}
}

type loginNotifier struct {
	client.Notifier
	store *Store
}

func (n loginNotifier) ShowLogin() {
	n.store.Dispatch(LoginRequested{})
	n.Notifier.ShowLogin()
}
