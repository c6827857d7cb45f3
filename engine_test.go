package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rescuelink/authcore/delivery"
	"github.com/rescuelink/authcore/password"
	"github.com/rescuelink/authcore/token"
)

// memStore is an inline CredentialStore for engine tests.
type memStore struct {
	mu           sync.RWMutex
	byIdentifier map[string]*PrincipalRecord
	byID         map[string]*PrincipalRecord
}

func newMemStore() *memStore {
	return &memStore{
		byIdentifier: make(map[string]*PrincipalRecord),
		byID:         make(map[string]*PrincipalRecord),
	}
}

func (s *memStore) seed(rec PrincipalRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rec
	s.byID[r.ID] = &r
	if r.Email != "" {
		s.byIdentifier[r.Email] = &r
	}
	if r.Phone != "" {
		s.byIdentifier[r.Phone] = &r
	}
}

func (s *memStore) get(id string) PrincipalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.byID[id]; ok {
		return *r
	}
	return PrincipalRecord{}
}

func (s *memStore) FindPrincipal(_ context.Context, identifier string) (PrincipalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.byIdentifier[identifier]; ok {
		return *r, nil
	}
	return PrincipalRecord{}, ErrPrincipalNotFound
}

func (s *memStore) FindPrincipalByID(_ context.Context, id string) (PrincipalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.byID[id]; ok {
		return *r, nil
	}
	return PrincipalRecord{}, ErrPrincipalNotFound
}

func (s *memStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	r.PasswordHash = hash
	return nil
}

func (s *memStore) MarkVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	r.Verified = true
	return nil
}

// captureGateway records every code it is asked to deliver.
type captureGateway struct {
	mu    sync.Mutex
	sends []capturedSend
	fail  bool
}

type capturedSend struct {
	Identifier string
	Code       string
	Channel    delivery.Channel
}

func (g *captureGateway) Send(_ context.Context, identifier, code string, channel delivery.Channel) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return context.DeadlineExceeded
	}
	g.sends = append(g.sends, capturedSend{identifier, code, channel})
	return nil
}

func (g *captureGateway) last(t *testing.T) capturedSend {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sends) == 0 {
		t.Fatal("no code was delivered")
	}
	return g.sends[len(g.sends)-1]
}

func (g *captureGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sends)
}

type testHarness struct {
	engine  *Engine
	store   *memStore
	gateway *captureGateway
	redis   *miniredis.Miniredis
	hasher  *password.Hasher
}

func testPasswordConfig() password.Config {
	return password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*testHarness, func()) {
	t.Helper()
	return newTestEngineSink(t, mutate, nil)
}

func newTestEngineWithSink(t *testing.T, sink AuditSink) (*testHarness, func()) {
	t.Helper()
	return newTestEngineSink(t, nil, sink)
}

func newTestEngineSink(t *testing.T, mutate func(*Config), sink AuditSink) (*testHarness, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := DefaultConfig()
	cfg.Token = token.Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Issuer:     "authcore-test",
	}
	cfg.Password = testPasswordConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := newMemStore()
	gateway := &captureGateway{}

	eng, err := NewEngine(cfg, Deps{
		Redis:       rdb,
		Credentials: store,
		Gateway:     gateway,
		AuditSink:   sink,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	h := &testHarness{
		engine:  eng,
		store:   store,
		gateway: gateway,
		redis:   mr,
	}
	h.hasher, err = password.New(testPasswordConfig())
	if err != nil {
		t.Fatalf("password.New failed: %v", err)
	}

	return h, func() {
		eng.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func (h *testHarness) mustHash(t *testing.T, plain string) string {
	t.Helper()
	hash, err := h.hasher.Hash(plain)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return hash
}

// seedUser stores a verified registered user and returns its record.
func (h *testHarness) seedUser(t *testing.T, email, plain string) PrincipalRecord {
	t.Helper()
	rec := PrincipalRecord{
		ID:           "u-" + email,
		Kind:         KindRegisteredUser,
		Email:        email,
		PasswordHash: h.mustHash(t, plain),
		Active:       true,
		Verified:     true,
	}
	h.store.seed(rec)
	return rec
}

// seedPersonnel stores an active firm staff member and returns its
// record.
func (h *testHarness) seedPersonnel(t *testing.T, email, plain, firmID, role string) PrincipalRecord {
	t.Helper()
	rec := PrincipalRecord{
		ID:           "p-" + email,
		Kind:         KindFirmPersonnel,
		Email:        email,
		PasswordHash: h.mustHash(t, plain),
		FirmID:       firmID,
		Role:         role,
		Active:       true,
		Verified:     true,
	}
	h.store.seed(rec)
	return rec
}
