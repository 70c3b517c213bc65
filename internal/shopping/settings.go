package shopping

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/id"
	"github.com/inesosoares6/shopping-list-v2/internal/normalize"
	"github.com/inesosoares6/shopping-list-v2/internal/notify"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/validation"
)

// Messages shown when the owner flips guest write access.
const (
	MsgWritingBlocked   = "Writing privileges blocked for guest users"
	MsgWritingUnblocked = "Writing privileges unblocked for guest users"
)

// list ids are generated or typed in by hand to join a shared list.
var listKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ProductSource is what CloneList copies from.
type ProductSource interface {
	Entries() []domain.Entry
	CreateProduct(ctx context.Context, p domain.Product) (string, error)
}

// Settings owns the signed-in user's settings, the lists they may open and
// those lists' metadata. Selecting a list rebinds the catalog and list
// controllers.
type Settings struct {
	store     remote.Store
	sink      notify.Sink
	logger    *slog.Logger
	validator *validation.Validator

	binders []Binder
	source  ProductSource

	mu          sync.Mutex
	uid         string
	bg          context.Context
	gen         uint64
	settings    domain.Settings
	ready       bool
	permissions map[string]domain.Role
	metadata    map[string]domain.ListMetadata
	metaSubs    map[string]remote.Group
	listKeys    map[string]struct{}
	keysLoaded  bool
	boundList   string
	subs        remote.Group
}

// NewSettings creates a settings controller. binders are rebound whenever the
// active list changes.
func NewSettings(store remote.Store, sink notify.Sink, logger *slog.Logger, binders ...Binder) *Settings {
	return &Settings{
		store:       store,
		sink:        sink,
		logger:      logger.With("controller", "settings"),
		validator:   validation.New(),
		binders:     binders,
		bg:          context.Background(),
		permissions: make(map[string]domain.Role),
		metadata:    make(map[string]domain.ListMetadata),
		metaSubs:    make(map[string]remote.Group),
		listKeys:    make(map[string]struct{}),
	}
}

// SetProductSource sets the catalog CloneList copies from.
func (s *Settings) SetProductSource(src ProductSource) {
	s.source = src
}

// ReadData subscribes to the user's settings, permissions and the global
// list index, performs the initial reads and binds the active list.
func (s *Settings) ReadData(ctx context.Context, uid string) error {
	if uid == "" {
		return s.fail(errors.Unauthorized("not signed in"))
	}
	s.Clear()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.uid = uid
	s.bg = context.WithoutCancel(ctx)
	s.mu.Unlock()

	var subs remote.Group
	for _, m := range []struct {
		path string
		hs   remote.Handlers
	}{
		{remote.User(uid), remote.Handlers{
			Added:   func(snap remote.Snapshot) { s.onSetting(gen, snap.Key, snap.Value) },
			Changed: func(snap remote.Snapshot) { s.onSetting(gen, snap.Key, snap.Value) },
			Removed: func(snap remote.Snapshot) { s.onSetting(gen, snap.Key, nil) },
		}},
		{remote.UserLists(uid), remote.Handlers{
			Added:   func(snap remote.Snapshot) { s.onPermission(gen, snap.Key, snap.Value) },
			Changed: func(snap remote.Snapshot) { s.onPermission(gen, snap.Key, snap.Value) },
			Removed: func(snap remote.Snapshot) { s.onPermissionRemoved(gen, snap.Key) },
		}},
		{remote.Lists(), remote.Handlers{
			Added:   func(snap remote.Snapshot) { s.onListKey(gen, snap.Key) },
			Removed: func(snap remote.Snapshot) { s.onListRemoved(gen, snap.Key) },
		}},
	} {
		g, err := remote.Mirror(ctx, s.store, m.path, m.hs)
		if err != nil {
			subs.Cancel()
			return s.fail(errors.Wrap(err, errors.CodeUnavailable, "failed to subscribe to settings"))
		}
		subs = append(subs, g...)
	}
	if !s.keep(gen, func() { s.subs = subs }) {
		subs.Cancel()
		return nil
	}

	user, err := s.store.ReadOnce(ctx, remote.User(uid))
	if err != nil {
		return s.fail(errors.Wrap(err, errors.CodeUnavailable, "failed to read settings"))
	}
	lists, err := s.store.ReadOnce(ctx, remote.Lists())
	if err != nil {
		return s.fail(errors.Wrap(err, errors.CodeUnavailable, "failed to read lists"))
	}

	for k, v := range user.Children() {
		s.onSetting(gen, k, v)
	}
	var perms map[string]any
	if raw, ok := user.Children()[domain.SettingLists].(map[string]any); ok {
		perms = raw
	}
	for listID, role := range perms {
		s.onPermission(gen, listID, role)
	}
	s.keep(gen, func() {
		for k := range lists.Children() {
			s.listKeys[k] = struct{}{}
		}
		s.keysLoaded = true
		s.ready = true
	})

	s.logger.Info("settings loaded", "uid", uid, "lists", len(perms))
	return s.ReconcilePermissions(ctx)
}

// keep runs fn under the lock if gen is still current.
func (s *Settings) keep(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	fn()
	return true
}

func (s *Settings) onSetting(gen uint64, key string, value any) {
	str, _ := value.(string)
	var activate bool
	ok := s.keep(gen, func() {
		switch key {
		case domain.SettingUsername:
			s.settings.Username = str
		case domain.SettingList:
			s.settings.List = str
			activate = s.boundList != str
		}
	})
	if ok && activate {
		s.activate(s.context(), str, false)
	}
}

func (s *Settings) onPermission(gen uint64, listID string, value any) {
	var subscribe bool
	s.keep(gen, func() {
		s.permissions[listID] = domain.ParseRole(value)
		if _, ok := s.metaSubs[listID]; !ok {
			s.metaSubs[listID] = nil
			subscribe = true
		}
	})
	if subscribe {
		s.subscribeMetadata(gen, listID)
	}
}

func (s *Settings) subscribeMetadata(gen uint64, listID string) {
	g, err := remote.Mirror(s.context(), s.store, remote.List(listID), remote.Handlers{
		Added:   func(snap remote.Snapshot) { s.onMetadata(gen, listID, snap.Key, snap.Value) },
		Changed: func(snap remote.Snapshot) { s.onMetadata(gen, listID, snap.Key, snap.Value) },
		Removed: func(snap remote.Snapshot) { s.onMetadata(gen, listID, snap.Key, nil) },
	})
	if err != nil {
		_ = s.fail(errors.Wrapf(err, errors.CodeUnavailable, "failed to subscribe to list %s", listID))
		return
	}
	kept := s.keep(gen, func() {
		if _, ok := s.metaSubs[listID]; ok {
			s.metaSubs[listID] = g
			g = nil
		}
	})
	if !kept || g != nil {
		g.Cancel()
	}
}

func (s *Settings) onMetadata(gen uint64, listID, key string, value any) {
	s.keep(gen, func() {
		if _, ok := s.permissions[listID]; !ok {
			return
		}
		m := s.metadata[listID]
		switch key {
		case domain.MetaName:
			m.Name, _ = value.(string)
		case domain.MetaOwner:
			m.Owner, _ = value.(string)
		case domain.MetaBlocked:
			m.Blocked, _ = value.(bool)
		default:
			return
		}
		s.metadata[listID] = m
	})
}

func (s *Settings) onPermissionRemoved(gen uint64, listID string) {
	var g remote.Group
	s.keep(gen, func() {
		delete(s.permissions, listID)
		delete(s.metadata, listID)
		g = s.metaSubs[listID]
		delete(s.metaSubs, listID)
	})
	g.Cancel()
}

func (s *Settings) onListKey(gen uint64, listID string) {
	s.keep(gen, func() { s.listKeys[listID] = struct{}{} })
}

func (s *Settings) onListRemoved(gen uint64, listID string) {
	var stale bool
	s.keep(gen, func() {
		delete(s.listKeys, listID)
		_, stale = s.permissions[listID]
	})
	if stale {
		_ = s.ReconcilePermissions(s.context())
	}
}

// activate binds the catalog and list controllers to listID. Unless force is
// set, a list that is already bound is left alone.
func (s *Settings) activate(ctx context.Context, listID string, force bool) error {
	s.mu.Lock()
	if !force && s.boundList == listID {
		s.mu.Unlock()
		return nil
	}
	s.boundList = listID
	s.mu.Unlock()

	var errs []error
	for _, b := range s.binders {
		if err := b.Bind(ctx, listID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SelectList makes value the active list and returns its id. value is either
// the id of an existing list, which is joined if needed, or the name of a
// list to create.
func (s *Settings) SelectList(ctx context.Context, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", s.fail(errors.Validation("list name is required"))
	}
	uid, err := s.requireUser()
	if err != nil {
		return "", err
	}

	// Empty both mirrors before anything is written for the new list.
	if err := s.activate(ctx, "", true); err != nil {
		return "", err
	}

	listID, created, err := s.resolveList(ctx, value)
	if err != nil {
		return "", s.fail(err)
	}

	if created {
		meta := domain.ListMetadata{Name: value, Owner: uid}
		if err := s.validator.Validate(meta); err != nil {
			return "", s.fail(err)
		}
		if err := s.store.Set(ctx, remote.List(listID), meta.Fields()); err != nil {
			return "", s.fail(err)
		}
		s.mu.Lock()
		s.listKeys[listID] = struct{}{}
		s.mu.Unlock()
		s.logger.Info("list created", "list_id", listID)
	}

	s.mu.Lock()
	_, permitted := s.permissions[listID]
	s.mu.Unlock()
	if !permitted {
		role := domain.RoleGuest
		if created {
			role = domain.RoleOwner
		}
		if err := s.store.Update(ctx, remote.UserLists(uid), map[string]any{listID: string(role)}); err != nil {
			return "", s.fail(err)
		}
	}

	// Claim the binding so the echo of the write below does not rebind.
	s.mu.Lock()
	s.boundList = listID
	s.mu.Unlock()
	if err := s.store.Update(ctx, remote.User(uid), map[string]any{domain.SettingList: listID}); err != nil {
		return "", s.fail(err)
	}

	if err := s.activate(ctx, listID, true); err != nil {
		return listID, err
	}
	return listID, nil
}

// resolveList tells an existing list id from the name of a new list.
func (s *Settings) resolveList(ctx context.Context, value string) (string, bool, error) {
	s.mu.Lock()
	_, known := s.listKeys[value]
	s.mu.Unlock()
	if known {
		return value, false, nil
	}

	if listKeyPattern.MatchString(value) {
		// The index may lag behind a list another user just shared.
		snap, err := s.store.ReadOnce(ctx, remote.List(value))
		if err != nil {
			return "", false, err
		}
		if _, ok := snap.Children()[domain.MetaName]; ok {
			return value, false, nil
		}
	}

	listID, err := id.Generate(id.PrefixList)
	if err != nil {
		return "", false, errors.Wrap(err, errors.CodeInternal, "failed to generate list id")
	}
	return listID, true, nil
}

// SetUsername writes the display name.
func (s *Settings) SetUsername(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if err := s.validator.Var("username", username, "required,max=50"); err != nil {
		return s.fail(err)
	}
	uid, err := s.requireUser()
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, remote.User(uid), map[string]any{domain.SettingUsername: username}); err != nil {
		return s.fail(err)
	}
	return nil
}

// UpdateListName renames the active list. Only its owner may.
func (s *Settings) UpdateListName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := s.validator.Var("name", name, "required,max=100"); err != nil {
		return s.fail(err)
	}
	listID, err := s.ownedActiveList()
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, remote.List(listID), map[string]any{domain.MetaName: name}); err != nil {
		return s.fail(err)
	}
	return nil
}

// ToggleWritingPrivileges flips guest write access to the active list.
func (s *Settings) ToggleWritingPrivileges(ctx context.Context) error {
	listID, err := s.ownedActiveList()
	if err != nil {
		return err
	}
	s.mu.Lock()
	blocked := s.metadata[listID].Blocked
	s.mu.Unlock()

	if err := s.store.Update(ctx, remote.List(listID), map[string]any{domain.MetaBlocked: !blocked}); err != nil {
		return s.fail(err)
	}
	if blocked {
		s.sink.Notify(MsgWritingUnblocked)
	} else {
		s.sink.Notify(MsgWritingBlocked)
	}
	return nil
}

// LeaveOrDeleteList drops the user's access to listID. Leaving the active list
// first selects another permitted list, or none. With deleteList the owner
// also removes the list itself.
func (s *Settings) LeaveOrDeleteList(ctx context.Context, listID string, deleteList bool) error {
	if listID == "" {
		return s.fail(errors.Validation("list id is required"))
	}
	uid, err := s.requireUser()
	if err != nil {
		return err
	}

	s.mu.Lock()
	active := s.settings.List
	owner := s.metadata[listID].Owner
	s.mu.Unlock()

	if deleteList && owner != uid {
		return s.fail(errors.Forbidden("only the list owner can delete it"))
	}

	if listID == active {
		fallback := ""
		for _, opt := range s.ListOptions() {
			if opt.Value != listID {
				fallback = opt.Value
				break
			}
		}
		if fallback != "" {
			if _, err := s.SelectList(ctx, fallback); err != nil {
				return err
			}
		} else {
			if err := s.store.Remove(ctx, remote.Join(remote.User(uid), domain.SettingList)); err != nil {
				return s.fail(err)
			}
			if err := s.activate(ctx, "", true); err != nil {
				return err
			}
		}
	}

	if err := s.store.Remove(ctx, remote.UserList(uid, listID)); err != nil {
		return s.fail(err)
	}
	if deleteList {
		if err := s.store.Remove(ctx, remote.List(listID)); err != nil {
			return s.fail(err)
		}
		s.logger.Info("list deleted", "list_id", listID)
	}
	return nil
}

// ReconcilePermissions removes permission entries of lists that no longer
// exist. It does nothing until the list index has been loaded.
func (s *Settings) ReconcilePermissions(ctx context.Context) error {
	s.mu.Lock()
	if !s.keysLoaded {
		s.mu.Unlock()
		return nil
	}
	var stale []string
	for listID := range s.permissions {
		if _, ok := s.listKeys[listID]; !ok {
			stale = append(stale, listID)
		}
	}
	s.mu.Unlock()
	sort.Strings(stale)

	var errs []error
	for _, listID := range stale {
		s.logger.Info("dropping permission for deleted list", "list_id", listID)
		if err := s.LeaveOrDeleteList(ctx, listID, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloneList creates a list called name holding a copy of the active catalog
// with fresh keys and every product out of the cart.
func (s *Settings) CloneList(ctx context.Context, name string) (string, error) {
	if s.source == nil {
		return "", s.fail(errors.Internal("no catalog to clone from"))
	}
	entries := s.source.Entries()

	listID, err := s.SelectList(ctx, name)
	if err != nil {
		return "", err
	}

	var errs []error
	for _, e := range entries {
		p := e.Product
		p.InList = false
		p.Completed = false
		p.Selected = false
		if _, err := s.source.CreateProduct(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return listID, errors.Join(errs...)
}

// Clear cancels every subscription, forgets all state and unbinds the
// catalog and list controllers.
func (s *Settings) Clear() {
	s.mu.Lock()
	s.gen++
	subs := s.subs
	for _, g := range s.metaSubs {
		subs = append(subs, g...)
	}
	s.subs = nil
	s.uid = ""
	s.bg = context.Background()
	s.settings = domain.Settings{}
	s.ready = false
	s.permissions = make(map[string]domain.Role)
	s.metadata = make(map[string]domain.ListMetadata)
	s.metaSubs = make(map[string]remote.Group)
	s.listKeys = make(map[string]struct{})
	s.keysLoaded = false
	s.mu.Unlock()

	subs.Cancel()
	_ = s.activate(context.Background(), "", true)
}

// UID returns the signed-in user, empty when signed out.
func (s *Settings) UID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uid
}

// Current returns the mirrored settings.
func (s *Settings) Current() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Username implements UsernameSource.
func (s *Settings) Username() string {
	return s.Current().Username
}

// ActiveList returns the active list id.
func (s *Settings) ActiveList() string {
	return s.Current().List
}

// Ready reports whether the initial settings read completed.
func (s *Settings) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Permissions returns a copy of the permission map.
func (s *Settings) Permissions() map[string]domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Role, len(s.permissions))
	for k, v := range s.permissions {
		out[k] = v
	}
	return out
}

// Metadata returns the mirrored metadata of a permitted list.
func (s *Settings) Metadata(listID string) (domain.ListMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metadata[listID]
	return m, ok && m.Name != ""
}

// ListOptions returns the permitted lists that have a name, ordered by name.
func (s *Settings) ListOptions() []domain.Option {
	s.mu.Lock()
	out := make([]domain.Option, 0, len(s.metadata))
	for listID, m := range s.metadata {
		if m.Name != "" {
			out = append(out, domain.Option{Label: m.Name, Value: listID})
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := normalize.Clean(out[i].Label), normalize.Clean(out[j].Label)
		if a != b {
			return a < b
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// ListName returns the name of the active list.
func (s *Settings) ListName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata[s.settings.List].Name
}

// IsListOwner reports whether the user owns the active list.
func (s *Settings) IsListOwner() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOwnerLocked()
}

func (s *Settings) isOwnerLocked() bool {
	m, ok := s.metadata[s.settings.List]
	return ok && s.uid != "" && m.Owner == s.uid
}

// IsListBlocked reports whether guests are locked out of the active list.
func (s *Settings) IsListBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata[s.settings.List].Blocked
}

// IsWritingBlocked reports whether the user may not write to the active
// list: it is blocked and they are not its owner.
func (s *Settings) IsWritingBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata[s.settings.List].Blocked && !s.isOwnerLocked()
}

// CanWrite implements WriteGuard.
func (s *Settings) CanWrite() error {
	if s.IsWritingBlocked() {
		return errors.Forbidden("writing privileges are blocked for guest users on this list")
	}
	return nil
}

// ShowOnboarding reports whether the user still has to pick a username or a
// list. It stays false until settings are loaded.
func (s *Settings) ShowOnboarding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && s.settings.Missing()
}

// OnboardingPrompts lists the questions ShowOnboarding stands for.
func (s *Settings) OnboardingPrompts() []domain.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil
	}
	var out []domain.Prompt
	if s.settings.Username == "" {
		out = append(out, domain.PromptUsername)
	}
	if s.settings.List == "" {
		out = append(out, domain.PromptList)
	}
	return out
}

func (s *Settings) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bg
}

func (s *Settings) requireUser() (string, error) {
	uid := s.UID()
	if uid == "" {
		return "", s.fail(errors.Unauthorized("not signed in"))
	}
	return uid, nil
}

func (s *Settings) ownedActiveList() (string, error) {
	s.mu.Lock()
	listID := s.settings.List
	owner := s.isOwnerLocked()
	s.mu.Unlock()

	if listID == "" {
		return "", s.fail(errors.Validation("no list selected"))
	}
	if !owner {
		return "", s.fail(errors.Forbidden("only the list owner can change this list"))
	}
	return listID, nil
}

func (s *Settings) fail(err error) error {
	s.logger.Warn("operation failed", "error", err)
	s.sink.Error(err.Error())
	return err
}
