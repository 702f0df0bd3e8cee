package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

type fakeConversations struct {
	mu    sync.Mutex
	seq   int
	items map[string]*entity.Conversation
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{items: make(map[string]*entity.Conversation)}
}

func (f *fakeConversations) Create(ctx context.Context, c *entity.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		f.seq++
		c.ID = fmt.Sprintf("c%d", f.seq)
	}
	c.ParticipantKey = c.Key()
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeConversations) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConversations) GetByIDs(ctx context.Context, ids []string) ([]*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Conversation
	for _, id := range ids {
		if c, ok := f.items[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeConversations) FindBetween(ctx context.Context, a, b string) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := entity.ParticipantKey(a, b)
	var best *entity.Conversation
	for _, c := range f.items {
		if c.ParticipantKey != key {
			continue
		}
		if best == nil || c.CreatedAt.Before(best.CreatedAt) || (c.CreatedAt.Equal(best.CreatedAt) && c.ID < best.ID) {
			best = c
		}
	}
	if best == nil {
		return nil, errors.NotFound("Conversation", nil)
	}
	cp := *best
	return &cp, nil
}

func (f *fakeConversations) ListForUser(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Conversation
	for _, c := range f.items {
		if c.HasParticipant(userID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeConversations) UpdateLastMessage(ctx context.Context, id, text string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	c.LastMessage = text
	c.LastMessageAt = at
	return nil
}

func (f *fakeConversations) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeConversations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type seenCall struct {
	conversationID string
	userID         string
	seen           bool
}

type fakeParticipants struct {
	mu      sync.Mutex
	items   map[string]*entity.Participant
	calls   []seenCall
	seenErr error
}

func newFakeParticipants() *fakeParticipants {
	return &fakeParticipants{items: make(map[string]*entity.Participant)}
}

func (f *fakeParticipants) Create(ctx context.Context, p *entity.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = entity.ParticipantRecordID(p.ConversationID, p.UserID)
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakeParticipants) ListForUser(ctx context.Context, userID string) ([]*entity.Participant, error) {
	return f.list(func(p *entity.Participant) bool { return p.UserID == userID }), nil
}

func (f *fakeParticipants) ListForConversation(ctx context.Context, conversationID string) ([]*entity.Participant, error) {
	return f.list(func(p *entity.Participant) bool { return p.ConversationID == conversationID }), nil
}

func (f *fakeParticipants) list(match func(*entity.Participant) bool) []*entity.Participant {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Participant
	for _, p := range f.items {
		if match(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeParticipants) SetSeen(ctx context.Context, conversationID, userID string, seen bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, seenCall{conversationID, userID, seen})
	if f.seenErr != nil {
		return f.seenErr
	}
	id := entity.ParticipantRecordID(conversationID, userID)
	p, ok := f.items[id]
	if !ok {
		p = &entity.Participant{ID: id, ConversationID: conversationID, UserID: userID}
		f.items[id] = p
	}
	p.Seen = seen
	return nil
}

func (f *fakeParticipants) DeleteForConversation(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.items {
		if p.ConversationID == conversationID {
			delete(f.items, id)
		}
	}
	return nil
}

func (f *fakeParticipants) seen(conversationID, userID string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[entity.ParticipantRecordID(conversationID, userID)]
	if !ok {
		return false, false
	}
	return p.Seen, true
}

func (f *fakeParticipants) setError(err error) {
	f.mu.Lock()
	f.seenErr = err
	f.mu.Unlock()
}

type fakeMessages struct {
	mu    sync.Mutex
	seq   int
	items map[string]*entity.Message
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{items: make(map[string]*entity.Message)}
}

func (f *fakeMessages) Create(ctx context.Context, m *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		f.seq++
		m.ID = fmt.Sprintf("m%03d", f.seq)
	}
	cp := *m
	f.items[m.ID] = &cp
	return nil
}

func (f *fakeMessages) inConversation(conversationID string) []*entity.Message {
	var out []*entity.Message
	for _, m := range f.items {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	entity.SortMessages(out)
	return out
}

func (f *fakeMessages) ListPage(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.inConversation(conversationID)
	n := len(all)
	end := n - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if limit <= 0 || start < 0 {
		start = 0
	}
	return all[start:end], int64(n), nil
}

func (f *fakeMessages) Latest(ctx context.Context, conversationID string) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.inConversation(conversationID)
	if len(all) == 0 {
		return nil, errors.NotFound("Message", nil)
	}
	return all[len(all)-1], nil
}

func (f *fakeMessages) Reassign(ctx context.Context, from, to string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	moved := 0
	for _, m := range f.items {
		if m.ConversationID == from {
			m.ConversationID = to
			moved++
		}
	}
	return moved, nil
}

func (f *fakeMessages) HasInquiry(ctx context.Context, conversationID, postID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.items {
		if m.ConversationID == conversationID && m.PostID == postID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMessages) all(conversationID string) []*entity.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inConversation(conversationID)
}

type fakeProfiles struct {
	mu    sync.Mutex
	items map[string]*entity.Profile
	err   error
}

func newFakeProfiles(profiles ...*entity.Profile) *fakeProfiles {
	f := &fakeProfiles{items: make(map[string]*entity.Profile)}
	for _, p := range profiles {
		f.items[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) Upsert(ctx context.Context, p *entity.Profile) (*entity.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.items[p.ID]; ok {
		existing.Email = p.Email
		cp := *existing
		return &cp, nil
	}
	cp := *p
	f.items[p.ID] = &cp
	return p, nil
}

func (f *fakeProfiles) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.items[id]
	if !ok {
		return nil, errors.NotFound("Profile", nil)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*entity.Profile)
	for _, id := range ids {
		if p, ok := f.items[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeProfiles) Update(ctx context.Context, p *entity.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakeProfiles) UpdateRoles(ctx context.Context, id string, roles []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return errors.NotFound("Profile", nil)
	}
	p.Roles = roles
	return nil
}

func (f *fakeProfiles) List(ctx context.Context, limit, offset int) ([]*entity.Profile, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Profile
	for _, p := range f.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

type fakePosts struct {
	mu        sync.Mutex
	seq       int
	items     map[string]*entity.Post
	createErr error
	updates   [][]string

	// expireGate holds ExpireLapsed until closed.
	expireGate chan struct{}
}

func newFakePosts(posts ...*entity.Post) *fakePosts {
	f := &fakePosts{items: make(map[string]*entity.Post)}
	for _, p := range posts {
		f.items[p.ID] = p
	}
	return f
}

func (f *fakePosts) Create(ctx context.Context, p *entity.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	p.ID = fmt.Sprintf("p%d", f.seq)
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakePosts) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, errors.NotFound("Post", nil)
	}
	cp := *p
	return &cp, nil
}

func (f *fakePosts) matching(filter repository.PostFilter, order repository.PostSort) []*entity.Post {
	var out []*entity.Post
	for _, p := range f.items {
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.LocationID != "" && p.LocationID != filter.LocationID {
			continue
		}
		if filter.AuthorID != "" && p.AuthorID != filter.AuthorID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		switch order {
		case repository.SortOldest:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case repository.SortPriceAsc:
			return out[i].Price < out[j].Price
		case repository.SortPriceDesc:
			return out[i].Price > out[j].Price
		default:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
	})
	return out
}

func (f *fakePosts) List(ctx context.Context, filter repository.PostFilter, order repository.PostSort, limit, offset int) ([]*entity.Post, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.matching(filter, order)
	end := len(all)
	if offset > end {
		offset = end
	}
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], int64(len(all)), nil
}

func (f *fakePosts) ListAll(ctx context.Context, filter repository.PostFilter, order repository.PostSort) ([]*entity.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matching(filter, order), nil
}

func (f *fakePosts) Update(ctx context.Context, p *entity.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakePosts) ExpireLapsed(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	if f.expireGate != nil {
		<-f.expireGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, append([]string(nil), ids...))
	var expired []string
	for _, id := range ids {
		if p, ok := f.items[id]; ok && p.IsLapsed(now) {
			p.Status = entity.PostExpired
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (f *fakePosts) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakePosts) stored(id string) *entity.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.items[id]
	return &cp
}

type fakeCatalog struct {
	categories map[string]*entity.Category
	locations  map[string]*entity.Location
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		categories: map[string]*entity.Category{"cat1": {ID: "cat1", Name: "Fashion"}},
		locations:  map[string]*entity.Location{"loc1": {ID: "loc1", Name: "Hanoi"}},
	}
}

type fakeCategories struct{ *fakeCatalog }
type fakeLocations struct{ *fakeCatalog }

func (f fakeCategories) List(ctx context.Context) ([]*entity.Category, error) {
	var out []*entity.Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f fakeCategories) GetByID(ctx context.Context, id string) (*entity.Category, error) {
	if c, ok := f.categories[id]; ok {
		return c, nil
	}
	return nil, errors.NotFound("Category", nil)
}

func (f fakeLocations) List(ctx context.Context) ([]*entity.Location, error) {
	var out []*entity.Location
	for _, l := range f.locations {
		out = append(out, l)
	}
	return out, nil
}

func (f fakeLocations) GetByID(ctx context.Context, id string) (*entity.Location, error) {
	if l, ok := f.locations[id]; ok {
		return l, nil
	}
	return nil, errors.NotFound("Location", nil)
}

type fakeNotifications struct {
	mu    sync.Mutex
	items []*entity.Notification
}

func (f *fakeNotifications) Create(ctx context.Context, n *entity.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = fmt.Sprintf("n%d", len(f.items)+1)
	f.items = append(f.items, n)
	return nil
}

func (f *fakeNotifications) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Notification
	for _, n := range f.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotifications) MarkRead(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return errors.NotFound("Notification", nil)
}

func (f *fakeNotifications) MarkAllRead(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (f *fakeNotifications) CountUnread(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, item := range f.items {
		if item.UserID == userID && !item.Read {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) ofType(kind entity.NotificationType) []*entity.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Notification
	for _, n := range f.items {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

type fakeFiles struct {
	mu        sync.Mutex
	uploads   []string
	deleted   []string
	uploadErr error
}

func (f *fakeFiles) UploadFile(ctx context.Context, r io.Reader, size int64, fileType, folder string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	url := fmt.Sprintf("https://files.test/%s/%d", strings.Trim(folder, "/"), len(f.uploads)+1)
	f.uploads = append(f.uploads, url)
	return url, nil
}

func (f *fakeFiles) DeleteFile(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeFiles) Close() error { return nil }

func (f *fakeFiles) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// pngBytes is a minimal PNG signature, enough for content sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func imageFile(name string, data []byte, contentType string) ListingImage {
	return ListingImage{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
