package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"famibot/internal/models"
	"famibot/internal/repository"
	"famibot/pkg/logger"
)

// memStore is an in-memory implementation of all four repositories with the
// same duplicate semantics as the postgres implementations.
type memStore struct {
	mu      sync.Mutex
	seq     int64
	clock   time.Time
	profiles []*models.Profile
	families []*models.Family
	members  []models.FamilyMember
	entries  []*models.ConversationEntry
	topics   []*models.DailyTopic

	// profileMissOnce makes the next GetByLineUserID miss even when the row
	// exists, simulating a concurrent writer whose insert is not yet
	// visible to the reader.
	profileMissOnce bool
	// familyMissOnce does the same for GetByLineGroupID.
	familyMissOnce bool
	// entryCreateErr fails conversation inserts.
	entryCreateErr error
	// topicCreateErr fails daily topic inserts.
	topicCreateErr error
}

func newMemStore() *memStore {
	return &memStore{clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *memStore) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *memStore) nextTime() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// --- ProfileRepository ---

func (m *memStore) Create(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.profiles {
		if existing.LineUserID == p.LineUserID {
			return nil, fmt.Errorf("profile: %w", repository.ErrDuplicate)
		}
	}
	p.ID = m.nextID()
	p.CreatedAt = m.nextTime()
	p.UpdatedAt = p.CreatedAt
	m.profiles = append(m.profiles, p)
	return p, nil
}

func (m *memStore) GetByLineUserID(ctx context.Context, lineUserID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profileMissOnce {
		m.profileMissOnce = false
		return nil, nil
	}
	for _, p := range m.profiles {
		if p.LineUserID == lineUserID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memStore) Update(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	return p, nil
}

func (m *memStore) GetMostRecent(ctx context.Context) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.profiles) == 0 {
		return nil, nil
	}
	return m.profiles[len(m.profiles)-1], nil
}

// --- FamilyRepository ---

// profileRepo/familyRepo views let one memStore serve both interfaces even
// though ProfileRepository and FamilyRepository both declare Create.
type familyView struct{ *memStore }

func (m *memStore) Families() repository.FamilyRepository { return familyView{m} }

func (v familyView) Create(ctx context.Context, f *models.Family) (*models.Family, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.LineGroupID != nil {
		for _, existing := range m.families {
			if existing.LineGroupID != nil && *existing.LineGroupID == *f.LineGroupID {
				return nil, fmt.Errorf("family: %w", repository.ErrDuplicate)
			}
		}
	}
	f.ID = m.nextID()
	f.CreatedAt = m.nextTime()
	f.UpdatedAt = f.CreatedAt
	m.families = append(m.families, f)
	return f, nil
}

func (v familyView) GetByLineGroupID(ctx context.Context, lineGroupID string) (*models.Family, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.familyMissOnce {
		m.familyMissOnce = false
		return nil, nil
	}
	for _, f := range m.families {
		if f.LineGroupID != nil && *f.LineGroupID == lineGroupID {
			return f, nil
		}
	}
	return nil, nil
}

func (v familyView) GetByID(ctx context.Context, id int64) (*models.Family, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.families {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, nil
}

func (v familyView) GetAll(ctx context.Context) ([]*models.Family, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Family(nil), m.families...), nil
}

func (v familyView) GetPersonalByProfile(ctx context.Context, profileID int64) (*models.Family, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fm := range m.members {
		if fm.ProfileID != profileID {
			continue
		}
		for _, f := range m.families {
			if f.ID == fm.FamilyID && f.LineGroupID == nil {
				return f, nil
			}
		}
	}
	return nil, nil
}

func (v familyView) GetFirstByProfile(ctx context.Context, profileID int64) (*models.Family, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fm := range m.members {
		if fm.ProfileID != profileID {
			continue
		}
		for _, f := range m.families {
			if f.ID == fm.FamilyID {
				return f, nil
			}
		}
	}
	return nil, nil
}

func (v familyView) AddMember(ctx context.Context, familyID, profileID int64) error {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fm := range m.members {
		if fm.FamilyID == familyID && fm.ProfileID == profileID {
			return nil
		}
	}
	m.members = append(m.members, models.FamilyMember{
		FamilyID:  familyID,
		ProfileID: profileID,
		JoinedAt:  m.nextTime(),
	})
	return nil
}

func (v familyView) GetMembers(ctx context.Context, familyID int64) ([]*models.Profile, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Profile
	for _, fm := range m.members {
		if fm.FamilyID != familyID {
			continue
		}
		for _, p := range m.profiles {
			if p.ID == fm.ProfileID {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// --- ConversationRepository ---

type conversationView struct{ *memStore }

func (m *memStore) Conversations() repository.ConversationRepository { return conversationView{m} }

func (v conversationView) Create(ctx context.Context, e *models.ConversationEntry) (*models.ConversationEntry, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entryCreateErr != nil {
		return nil, m.entryCreateErr
	}
	e.ID = m.nextID()
	e.SentAt = m.nextTime()
	m.entries = append(m.entries, e)
	return e, nil
}

func (v conversationView) RecentByFamily(ctx context.Context, familyID int64, limit int) ([]*models.ConversationEntry, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ConversationEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.entries[i]
		if e.FamilyID != nil && *e.FamilyID == familyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (v conversationView) RecentBySender(ctx context.Context, profileID int64, limit int) ([]*models.ConversationEntry, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ConversationEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].ProfileID == profileID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

// --- TopicRepository ---

type topicView struct{ *memStore }

func (m *memStore) Topics() repository.TopicRepository { return topicView{m} }

func (v topicView) Create(ctx context.Context, t *models.DailyTopic) (*models.DailyTopic, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.topicCreateErr != nil {
		return nil, m.topicCreateErr
	}
	t.ID = m.nextID()
	t.CreatedAt = m.nextTime()
	m.topics = append(m.topics, t)
	return t, nil
}

// --- Messenger fake ---

type push struct {
	To   string
	Text string
}

type fakeMessenger struct {
	mu          sync.Mutex
	pushes      []push
	replies     []push
	pushErrFor  map[string]error
	displayName string
	nameErr     error
}

func (f *fakeMessenger) Push(ctx context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.pushErrFor[to]; ok {
		return err
	}
	f.pushes = append(f.pushes, push{To: to, Text: text})
	return nil
}

func (f *fakeMessenger) Reply(ctx context.Context, replyToken, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, push{To: replyToken, Text: text})
	return nil
}

func (f *fakeMessenger) DisplayName(ctx context.Context, lineUserID string) (string, error) {
	if f.nameErr != nil {
		return "", f.nameErr
	}
	return f.displayName, nil
}

// --- TextGenerator fake ---

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	systems  []string
	prompts  []string
	generate func(call int, system, prompt string) (string, error)
}

func (f *fakeGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.systems = append(f.systems, systemPrompt)
	f.prompts = append(f.prompts, userPrompt)
	if f.generate != nil {
		return f.generate(f.calls, systemPrompt, userPrompt)
	}
	return "nice!", nil
}

// newTestService wires a Service onto the fakes with a deterministic trial
// that always participates.
func newTestService(store *memStore, msgr *fakeMessenger, gen *fakeGenerator) *Service {
	svc := New(logger.New("error"), Config{ParticipationRate: 0.3, HistoryLimit: 5},
		store, store.Families(), store.Conversations(), store.Topics(), msgr, gen)
	svc.rand = func() float64 { return 0 }
	return svc
}
