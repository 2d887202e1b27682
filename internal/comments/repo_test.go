package comments

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := NewRepo(filepath.Join(t.TempDir(), "comments.json"))
	require.NoError(t, err)
	return repo
}

func fakeAddParams(postSlug string) AddParams {
	return AddParams{
		PostSlug:    postSlug,
		Author:      gofakeit.Name(),
		AuthorColor: gofakeit.HexColor(),
		Content:     gofakeit.Sentence(8),
	}
}

func TestRepo_addAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	params := fakeAddParams("first-post")
	added, err := repo.Add(ctx, params)
	require.NoError(t, err)
	require.NotNil(t, added)
	assert.Positive(t, added.ID)
	assert.Equal(t, params.Author, added.Author)
	assert.Equal(t, params.Content, added.Content)
	assert.False(t, added.CreatedAt.IsZero())

	partition := repo.List(ctx, "first-post")
	require.Len(t, partition, 1)
	assert.Equal(t, added.ID, partition[0].ID)
}

func TestRepo_listUnknownSlug(t *testing.T) {
	repo := newTestRepo(t)

	partition := repo.List(context.Background(), "never-heard-of-it")
	assert.NotNil(t, partition)
	assert.Empty(t, partition)
}

func TestRepo_idsStrictlyIncreasing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// freeze the clock, all adds land on the same millisecond
	now := time.Now()
	repo.NowFunc = func() time.Time { return now }

	var prevID int64
	for i := 0; i < 5; i++ {
		added, err := repo.Add(ctx, fakeAddParams("busy-post"))
		require.NoError(t, err)
		assert.Greater(t, added.ID, prevID)
		prevID = added.ID
	}

	partition := repo.List(ctx, "busy-post")
	require.Len(t, partition, 5)
	for i := 1; i < len(partition); i++ {
		assert.Greater(t, partition[i].ID, partition[i-1].ID)
	}
}

func TestRepo_partitionsAreIsolated(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Add(ctx, fakeAddParams("post-a"))
		require.NoError(t, err)
	}
	added, err := repo.Add(ctx, fakeAddParams("post-b"))
	require.NoError(t, err)

	assert.Len(t, repo.List(ctx, "post-a"), 3)
	assert.Len(t, repo.List(ctx, "post-b"), 1)

	// removing from post-b leaves post-a alone
	partitionExisted, removed, err := repo.Remove(ctx, "post-b", added.ID)
	require.NoError(t, err)
	assert.True(t, partitionExisted)
	assert.True(t, removed)
	assert.Len(t, repo.List(ctx, "post-a"), 3)
	assert.Empty(t, repo.List(ctx, "post-b"))
}

func TestRepo_removeMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	added, err := repo.Add(ctx, fakeAddParams("the-post"))
	require.NoError(t, err)

	// unknown partition
	partitionExisted, removed, err := repo.Remove(ctx, "no-such-post", added.ID)
	require.NoError(t, err)
	assert.False(t, partitionExisted)
	assert.False(t, removed)

	// known partition, unknown id
	partitionExisted, removed, err = repo.Remove(ctx, "the-post", added.ID+1000)
	require.NoError(t, err)
	assert.True(t, partitionExisted)
	assert.False(t, removed)

	// the comment itself survived both
	assert.Len(t, repo.List(ctx, "the-post"), 1)
}

func TestRepo_persistsAcrossRestart(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "comments.json")
	ctx := context.Background()

	repo, err := NewRepo(filePath)
	require.NoError(t, err)

	added, err := repo.Add(ctx, fakeAddParams("survivor"))
	require.NoError(t, err)

	// a fresh repo over the same file sees the comment
	reloaded, err := NewRepo(filePath)
	require.NoError(t, err)

	partition := reloaded.List(ctx, "survivor")
	require.Len(t, partition, 1)
	assert.Equal(t, added.ID, partition[0].ID)
	assert.Equal(t, added.Author, partition[0].Author)
}

func TestRepo_storeFileIsValidJSON(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "comments.json")
	repo, err := NewRepo(filePath)
	require.NoError(t, err)

	_, err = repo.Add(context.Background(), fakeAddParams("some-post"))
	require.NoError(t, err)

	raw, err := os.ReadFile(filePath)
	require.NoError(t, err)

	var mapping map[string][]*Comment
	require.NoError(t, json.Unmarshal(raw, &mapping))
	assert.Len(t, mapping["some-post"], 1)
}

func TestRepo_malformedStoreFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "comments.json")
	require.NoError(t, os.WriteFile(filePath, []byte("{ this is not json"), 0o644))

	_, err := NewRepo(filePath)
	assert.Error(t, err)
}

func TestRepo_missingStoreFileIsFine(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "comments.json")

	repo, err := NewRepo(filePath)
	require.NoError(t, err)
	assert.Empty(t, repo.ListAll(context.Background()))

	// the file only appears after the first mutation
	_, statErr := os.Stat(filePath)
	assert.True(t, os.IsNotExist(statErr))

	_, err = repo.Add(context.Background(), fakeAddParams("first"))
	require.NoError(t, err)

	_, statErr = os.Stat(filePath)
	assert.NoError(t, statErr)
}
