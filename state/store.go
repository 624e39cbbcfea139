package state

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"kb-api/domain"
)

// Backend is the remote table store the Store delegates all persistence
// to. *storage.Storage and *storage.Cache both satisfy it.
type Backend interface {
	ListCards(ctx context.Context) ([]domain.Card, error)
	InsertCard(ctx context.Context, card domain.Card) (domain.Card, error)
	UpdateCard(ctx context.Context, id string, upd domain.CardUpdate, updatedAt int64) error
	DeleteCard(ctx context.Context, id string) error
	ReassignCategory(ctx context.Context, oldName, newName string) error
	ListCategories(ctx context.Context) ([]string, error)
	InsertCategory(ctx context.Context, name string) error
	DeleteCategory(ctx context.Context, name string) error
	ListUsers(ctx context.Context) ([]domain.User, error)
	InsertUser(ctx context.Context, user domain.User) (domain.User, error)
	UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) error
	DeleteUser(ctx context.Context, id string) error
	LookupCredentials(ctx context.Context, username, password string) (*domain.User, error)
}

// Store is the single source of truth for cards, categories, users, the
// current session and the transient search/filter state. Every action
// calls the remote store first and merges into the local cache only on
// success; on a remote failure the cache is left untouched and the error
// is returned for the caller to surface. All permission checks live
// here, not in the view layer.
type Store struct {
	backend  Backend
	sessions SessionStore
	logger   *log.Logger

	mu             sync.Mutex
	cards          []domain.Card
	categories     []string
	users          []domain.User
	current        *domain.User
	pendingSession string

	searchQuery      string
	selectedCategory string
}

// New creates a Store. A session id persisted by a previous run is held
// pending and resolved to its account during the first FetchAll.
func New(backend Backend, sessions SessionStore, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Store{backend: backend, sessions: sessions, logger: logger}
	if sessions != nil {
		id, err := sessions.Load()
		if err != nil {
			logger.WithError(err).Warn("restore session")
		} else {
			s.pendingSession = id
		}
	}
	return s
}

// FetchAll reloads categories, users and cards from the remote store and
// replaces the local cache wholesale. An empty remote category table
// falls back to the fixed default list.
func (s *Store) FetchAll(ctx context.Context) error {
	categories, err := s.backend.ListCategories(ctx)
	if err != nil {
		s.logger.WithError(err).Error("fetch categories")
		return err
	}
	if len(categories) == 0 {
		categories = append([]string(nil), domain.DefaultCategories...)
	}
	users, err := s.backend.ListUsers(ctx)
	if err != nil {
		s.logger.WithError(err).Error("fetch users")
		return err
	}
	cards, err := s.backend.ListCards(ctx)
	if err != nil {
		s.logger.WithError(err).Error("fetch cards")
		return err
	}
	// The table service returns rows in key order; the app shows newest
	// first.
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].CreatedAt > cards[j].CreatedAt
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = categories
	s.users = users
	s.cards = cards
	if s.current == nil && s.pendingSession != "" {
		for i := range users {
			if users[i].ID == s.pendingSession {
				u := users[i]
				s.current = &u
				break
			}
		}
		if s.current == nil {
			// The persisted account no longer exists.
			s.logger.WithField("user_id", s.pendingSession).Warn("stale persisted session")
			s.clearPersistedSession()
		}
		s.pendingSession = ""
	}
	return nil
}

// CreateCard stamps ownership and timestamps onto the draft, persists it
// and prepends the stored record to the local list.
func (s *Store) CreateCard(ctx context.Context, draft domain.CardDraft) (domain.Card, error) {
	current, ok := s.CurrentUser()
	if !ok {
		return domain.Card{}, ErrNotAuthenticated
	}
	if strings.TrimSpace(draft.Title) == "" {
		return domain.Card{}, ErrTitleRequired
	}
	if draft.Category == "" {
		draft.Category = domain.GeneralCategory
	}

	now := time.Now().UnixMilli()
	card := domain.Card{
		Title:     draft.Title,
		Content:   draft.Content,
		Links:     draft.Links,
		Category:  draft.Category,
		Color:     draft.Color,
		UserID:    current.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stored, err := s.backend.InsertCard(ctx, card)
	if err != nil {
		s.logger.WithError(err).Error("create card")
		return domain.Card{}, err
	}

	s.mu.Lock()
	s.cards = append([]domain.Card{stored}, s.cards...)
	s.mu.Unlock()
	return stored, nil
}

// UpdateCard merges the partial update into the card after checking that
// the current user owns it or is an admin. The owner field is never
// altered; the update timestamp is stamped here.
func (s *Store) UpdateCard(ctx context.Context, id string, upd domain.CardUpdate) (domain.Card, error) {
	current, ok := s.CurrentUser()
	if !ok {
		return domain.Card{}, ErrNotAuthenticated
	}
	if upd.Empty() {
		return domain.Card{}, ErrNoFields
	}

	s.mu.Lock()
	idx := s.findCard(id)
	var target domain.Card
	if idx >= 0 {
		target = s.cards[idx]
	}
	s.mu.Unlock()
	if idx < 0 {
		return domain.Card{}, ErrCardNotFound
	}
	if !target.EditableBy(current) {
		return domain.Card{}, ErrPermissionDenied
	}

	now := time.Now().UnixMilli()
	if err := s.backend.UpdateCard(ctx, id, upd, now); err != nil {
		s.logger.WithError(err).WithField("card", id).Error("update card")
		return domain.Card{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.findCard(id); idx >= 0 {
		upd.ApplyTo(&s.cards[idx])
		s.cards[idx].UpdatedAt = now
		return s.cards[idx], nil
	}
	upd.ApplyTo(&target)
	target.UpdatedAt = now
	return target, nil
}

// DeleteCard removes the card remotely and from the local list, owner or
// admin only.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	current, ok := s.CurrentUser()
	if !ok {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	idx := s.findCard(id)
	var target domain.Card
	if idx >= 0 {
		target = s.cards[idx]
	}
	s.mu.Unlock()
	if idx < 0 {
		return ErrCardNotFound
	}
	if !target.EditableBy(current) {
		return ErrPermissionDenied
	}

	if err := s.backend.DeleteCard(ctx, id); err != nil {
		s.logger.WithError(err).WithField("card", id).Error("delete card")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.findCard(id); idx >= 0 {
		s.cards = append(s.cards[:idx], s.cards[idx+1:]...)
	}
	return nil
}

// AddCategory appends a new category, admin only. Duplicate and blank
// names are rejected before any remote call.
func (s *Store) AddCategory(ctx context.Context, name string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	s.mu.Lock()
	err := domain.ValidateNewCategory(s.categories, name)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.backend.InsertCategory(ctx, name); err != nil {
		s.logger.WithError(err).WithField("category", name).Error("add category")
		return err
	}

	s.mu.Lock()
	s.categories = append(s.categories, name)
	s.mu.Unlock()
	return nil
}

// RenameCategory renames a category and rewrites every dependent card.
// The remote sequence is non-atomic: insert the new name, reassign the
// cards, delete the old name. A failed reassign aborts without rolling
// back the insert, leaving both names present until retried; a failed
// delete of the old name is logged and the rename still takes effect
// locally. The protected default cannot be renamed.
func (s *Store) RenameCategory(ctx context.Context, oldName, newName string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if oldName == domain.GeneralCategory {
		return domain.ErrProtectedCategory
	}

	s.mu.Lock()
	var err error
	if !domain.CategoryExists(s.categories, oldName) {
		err = domain.ErrUnknownCategory
	} else {
		err = domain.ValidateNewCategory(s.categories, newName)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.backend.InsertCategory(ctx, newName); err != nil {
		s.logger.WithError(err).WithField("category", newName).Error("rename: insert new name")
		return err
	}
	if err := s.backend.ReassignCategory(ctx, oldName, newName); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"from": oldName,
			"to":   newName,
		}).Error("rename: reassign cards")
		return err
	}
	if err := s.backend.DeleteCategory(ctx, oldName); err != nil {
		s.logger.WithError(err).WithField("category", oldName).Error("rename: delete old name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.categories {
		if c == oldName {
			s.categories[i] = newName
		}
	}
	for i := range s.cards {
		if s.cards[i].Category == oldName {
			s.cards[i].Category = newName
		}
	}
	if s.selectedCategory == oldName {
		s.selectedCategory = newName
	}
	return nil
}

// DeleteCategory removes a category and reassigns its cards to the
// protected default, remotely and locally. The default and the last
// remaining category are refused before any remote call.
func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	s.mu.Lock()
	err := domain.ValidateCategoryDelete(s.categories, name)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.backend.ReassignCategory(ctx, name, domain.GeneralCategory); err != nil {
		s.logger.WithError(err).WithField("category", name).Error("delete category: reassign cards")
		return err
	}
	if err := s.backend.DeleteCategory(ctx, name); err != nil {
		s.logger.WithError(err).WithField("category", name).Error("delete category")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.categories[:0]
	for _, c := range s.categories {
		if c != name {
			kept = append(kept, c)
		}
	}
	s.categories = kept
	for i := range s.cards {
		if s.cards[i].Category == name {
			s.cards[i].Category = domain.GeneralCategory
		}
	}
	if s.selectedCategory == name {
		s.selectedCategory = ""
	}
	return nil
}

// Login performs the exact-match credential lookup. On a match it sets
// the session, persists the user id and reloads all data; on a mismatch
// it returns false without distinguishing unknown user from wrong
// password.
func (s *Store) Login(ctx context.Context, username, password string) (bool, error) {
	user, err := s.backend.LookupCredentials(ctx, username, password)
	if err != nil {
		s.logger.WithError(err).Error("login lookup")
		return false, err
	}
	if user == nil {
		return false, nil
	}

	s.mu.Lock()
	u := *user
	s.current = &u
	s.pendingSession = ""
	s.mu.Unlock()

	if s.sessions != nil {
		if err := s.sessions.Save(user.ID); err != nil {
			s.logger.WithError(err).Warn("persist session")
		}
	}
	// Refresh failures are already logged and retryable with another
	// FetchAll; the login itself succeeded.
	_ = s.FetchAll(ctx)
	return true, nil
}

// Logout clears the session and the cached cards and users. Categories
// are kept.
func (s *Store) Logout() {
	s.mu.Lock()
	s.current = nil
	s.pendingSession = ""
	s.cards = nil
	s.users = nil
	s.clearPersistedSession()
	s.mu.Unlock()
}

// AddUser creates an account, admin only. A blank role defaults to
// member.
func (s *Store) AddUser(ctx context.Context, draft domain.UserDraft) (domain.User, error) {
	if err := s.requireAdmin(); err != nil {
		return domain.User{}, err
	}
	if strings.TrimSpace(draft.Username) == "" || draft.Password == "" {
		return domain.User{}, ErrCredentialsRequired
	}
	if draft.Role == "" {
		draft.Role = domain.RoleMember
	}
	if !draft.Role.Valid() {
		return domain.User{}, ErrInvalidRole
	}
	s.mu.Lock()
	taken := s.usernameTaken(draft.Username, "")
	s.mu.Unlock()
	if taken {
		return domain.User{}, ErrUsernameTaken
	}

	stored, err := s.backend.InsertUser(ctx, domain.User{
		Username: draft.Username,
		Password: draft.Password,
		FullName: draft.FullName,
		Role:     draft.Role,
	})
	if err != nil {
		s.logger.WithError(err).WithField("username", draft.Username).Error("add user")
		return domain.User{}, err
	}

	s.mu.Lock()
	s.users = append(s.users, stored)
	s.mu.Unlock()
	return stored, nil
}

// UpdateUser patches an account, admin only. Editing the account behind
// the current session also patches the session record.
func (s *Store) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	if err := s.requireAdmin(); err != nil {
		return domain.User{}, err
	}
	if upd.Empty() {
		return domain.User{}, ErrNoFields
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return domain.User{}, ErrInvalidRole
	}

	s.mu.Lock()
	idx := s.findUser(id)
	var taken bool
	if upd.Username != nil {
		taken = s.usernameTaken(*upd.Username, id)
	}
	s.mu.Unlock()
	if idx < 0 {
		return domain.User{}, ErrUserNotFound
	}
	if taken {
		return domain.User{}, ErrUsernameTaken
	}

	if err := s.backend.UpdateUser(ctx, id, upd); err != nil {
		s.logger.WithError(err).WithField("user", id).Error("update user")
		return domain.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var updated domain.User
	if idx := s.findUser(id); idx >= 0 {
		upd.ApplyTo(&s.users[idx])
		updated = s.users[idx]
	}
	if s.current != nil && s.current.ID == id {
		upd.ApplyTo(s.current)
	}
	return updated, nil
}

// DeleteUser removes an account, admin only. The current session's own
// account is refused.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	s.mu.Lock()
	self := s.current != nil && s.current.ID == id
	idx := s.findUser(id)
	s.mu.Unlock()
	if self {
		return ErrSelfDelete
	}
	if idx < 0 {
		return ErrUserNotFound
	}

	if err := s.backend.DeleteUser(ctx, id); err != nil {
		s.logger.WithError(err).WithField("user", id).Error("delete user")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.findUser(id); idx >= 0 {
		s.users = append(s.users[:idx], s.users[idx+1:]...)
	}
	return nil
}

// SetSearchQuery records the transient search text used by Cards.
func (s *Store) SetSearchQuery(query string) {
	s.mu.Lock()
	s.searchQuery = query
	s.mu.Unlock()
}

// SetSelectedCategory records the category filter; "" selects all.
func (s *Store) SetSelectedCategory(category string) {
	s.mu.Lock()
	s.selectedCategory = category
	s.mu.Unlock()
}

// CurrentUser returns the session's user, if any.
func (s *Store) CurrentUser() (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.User{}, false
	}
	return *s.current, true
}

// Cards returns the snapshot of cards visible to the current user,
// narrowed by the search query and selected category. Without a session
// nothing is visible.
func (s *Store) Cards() []domain.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return []domain.Card{}
	}
	return domain.FilterCards(s.cards, *s.current, s.searchQuery, s.selectedCategory)
}

// Categories returns a copy of the category list.
func (s *Store) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.categories...)
}

// Users returns sanitized copies of the cached accounts.
func (s *Store) Users() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Sanitized())
	}
	return out
}

func (s *Store) requireAdmin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNotAuthenticated
	}
	if !s.current.IsAdmin() {
		return ErrPermissionDenied
	}
	return nil
}

// findCard returns the index of the card with the given id, or -1.
// Callers hold s.mu.
func (s *Store) findCard(id string) int {
	for i := range s.cards {
		if s.cards[i].ID == id {
			return i
		}
	}
	return -1
}

// findUser returns the index of the user with the given id, or -1.
// Callers hold s.mu.
func (s *Store) findUser(id string) int {
	for i := range s.users {
		if s.users[i].ID == id {
			return i
		}
	}
	return -1
}

// usernameTaken reports whether another account already uses the name.
// Callers hold s.mu.
func (s *Store) usernameTaken(username, excludeID string) bool {
	for i := range s.users {
		if s.users[i].Username == username && s.users[i].ID != excludeID {
			return true
		}
	}
	return false
}

// clearPersistedSession removes the session file. Callers hold s.mu or
// run before the store is shared.
func (s *Store) clearPersistedSession() {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Clear(); err != nil {
		s.logger.WithError(err).Warn("clear persisted session")
	}
}
