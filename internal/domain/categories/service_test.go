package categories

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/get-me-through/server/internal/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	nextID     int64
	categories map[int64]*Category
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{categories: make(map[int64]*Category)}
}

func (r *fakeRepo) Create(_ context.Context, name string) (*Category, error) {
	for _, existing := range r.categories {
		if strings.EqualFold(existing.Name, name) {
			return nil, ErrDuplicate
		}
	}
	r.nextID++
	category := &Category{ID: r.nextID, Name: name, CreatedAt: time.Now()}
	r.categories[category.ID] = category
	return category, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*Category, error) {
	category, ok := r.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return category, nil
}

func (r *fakeRepo) List(_ context.Context) ([]*Category, error) {
	out := make([]*Category, 0, len(r.categories))
	for _, category := range r.categories {
		out = append(out, category)
	}
	return out, nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.categories[id]; !ok {
		return ErrNotFound
	}
	delete(r.categories, id)
	return nil
}

func admin() *auth.Identity {
	return &auth.Identity{UserID: "root", Role: auth.RoleAdmin}
}

func member() *auth.Identity {
	return &auth.Identity{UserID: "u1", Role: auth.RoleUser}
}

func TestCreateRequiresAdmin(t *testing.T) {
	svc := NewService(newFakeRepo(), zerolog.Nop())

	_, err := svc.Create(context.Background(), member(), "Tech")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), nil, "Tech")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreateTrimsName(t *testing.T) {
	svc := NewService(newFakeRepo(), zerolog.Nop())

	category, err := svc.Create(context.Background(), admin(), "  Tech  ")
	require.NoError(t, err)
	require.Equal(t, "Tech", category.Name)
}

func TestCreateRejectsEmptyName(t *testing.T) {
	svc := NewService(newFakeRepo(), zerolog.Nop())

	_, err := svc.Create(context.Background(), admin(), "   ")
	require.Error(t, err)
}

func TestCreateDuplicate(t *testing.T) {
	svc := NewService(newFakeRepo(), zerolog.Nop())

	_, err := svc.Create(context.Background(), admin(), "Tech")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), admin(), "tech")
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zerolog.Nop())

	category, err := svc.Create(context.Background(), admin(), "Tech")
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), member(), category.ID), ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), admin(), category.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), admin(), category.ID), ErrNotFound)
}

func TestGetAndListArePublic(t *testing.T) {
	svc := NewService(newFakeRepo(), zerolog.Nop())

	created, err := svc.Create(context.Background(), admin(), "Music")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "Music", got.Name)

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
}
