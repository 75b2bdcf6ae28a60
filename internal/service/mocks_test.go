package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/repository"
	"github.com/prn-tf/pantry/internal/storage"
)

// MockUserRepository is an in-memory repository.UserRepository.
type MockUserRepository struct {
	users     map[int64]*domain.User
	nextID    int64
	createErr error
	getErr    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[int64]*domain.User), nextID: 1}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	if err == domain.ErrUserNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	for _, u := range m.users {
		if u.ID != user.ID && strings.EqualFold(u.Email, user.Email) {
			return domain.ErrUserAlreadyExists
		}
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *MockUserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := []*domain.User{}
	for i, id := range ids {
		if i < opts.Offset || len(items) >= opts.Limit {
			continue
		}
		items = append(items, m.users[id])
	}
	return &repository.ListResult[domain.User]{
		Items:  items,
		Total:  int64(len(ids)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// MockTokenRepository is an in-memory repository.TokenRepository.
type MockTokenRepository struct {
	byUser map[int64]string
}

func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{byUser: make(map[int64]string)}
}

func (m *MockTokenRepository) Replace(ctx context.Context, userID int64, tokenHash string) error {
	m.byUser[userID] = tokenHash
	return nil
}

func (m *MockTokenRepository) GetUserID(ctx context.Context, tokenHash string) (int64, error) {
	for uid, h := range m.byUser {
		if h == tokenHash {
			return uid, nil
		}
	}
	return 0, domain.ErrTokenNotFound
}

func (m *MockTokenRepository) Delete(ctx context.Context, userID int64) error {
	delete(m.byUser, userID)
	return nil
}

// MockAttributeRepository is an in-memory repository.AttributeRepository.
type MockAttributeRepository struct {
	kind   domain.AttributeKind
	attrs  map[int64]*domain.Attribute
	nextID int64
}

func NewMockAttributeRepository(kind domain.AttributeKind) *MockAttributeRepository {
	return &MockAttributeRepository{kind: kind, attrs: make(map[int64]*domain.Attribute), nextID: 1}
}

func (m *MockAttributeRepository) Kind() domain.AttributeKind {
	return m.kind
}

func (m *MockAttributeRepository) List(ctx context.Context, scope repository.Scope, assignedOnly bool) ([]*domain.Attribute, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	out := []*domain.Attribute{}
	for _, a := range m.attrs {
		if a.UserID == scope.UserID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func (m *MockAttributeRepository) Create(ctx context.Context, scope repository.Scope, attr *domain.Attribute) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	attr.ID = m.nextID
	attr.UserID = scope.UserID
	attr.Kind = m.kind
	m.nextID++
	copied := *attr
	m.attrs[attr.ID] = &copied
	return nil
}

func (m *MockAttributeRepository) GetByIDs(ctx context.Context, scope repository.Scope, ids []int64) ([]*domain.Attribute, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	out := []*domain.Attribute{}
	for _, id := range ids {
		if a, ok := m.attrs[id]; ok && a.UserID == scope.UserID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MockRecipeRepository is a testify mock of repository.RecipeRepository.
type MockRecipeRepository struct {
	mock.Mock
}

func (m *MockRecipeRepository) List(ctx context.Context, scope repository.Scope, filter domain.RecipeFilter) ([]*domain.Recipe, error) {
	args := m.Called(ctx, scope, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Recipe), args.Error(1)
}

func (m *MockRecipeRepository) GetByID(ctx context.Context, scope repository.Scope, id int64) (*domain.Recipe, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Recipe), args.Error(1)
}

func (m *MockRecipeRepository) Create(ctx context.Context, scope repository.Scope, recipe *domain.Recipe) error {
	args := m.Called(ctx, scope, recipe)
	return args.Error(0)
}

func (m *MockRecipeRepository) Update(ctx context.Context, scope repository.Scope, recipe *domain.Recipe) error {
	args := m.Called(ctx, scope, recipe)
	return args.Error(0)
}

func (m *MockRecipeRepository) SetImage(ctx context.Context, scope repository.Scope, id int64, key string) (string, error) {
	args := m.Called(ctx, scope, id, key)
	return args.String(0), args.Error(1)
}

func (m *MockRecipeRepository) Delete(ctx context.Context, scope repository.Scope, id int64) error {
	args := m.Called(ctx, scope, id)
	return args.Error(0)
}

// MemoryStorage is an in-memory storage.Backend.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func (m *MemoryStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MemoryStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStorage) URL(key string) string {
	return "/media/" + key
}

func (m *MemoryStorage) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
