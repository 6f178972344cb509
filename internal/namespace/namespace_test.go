package namespace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mermaidai/drive/internal/config"
	"github.com/mermaidai/drive/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "mermaid"

func testConfig() config.NamespaceConfig {
	return config.NamespaceConfig{
		AllowedExtensions: []string{".pdf", ".txt", ".docx"},
		MarkerName:        ".keep",
		MoveConcurrency:   4,
		OverwritePolicy:   config.OverwriteReject,
	}
}

func newTestManager(t *testing.T, keys ...string) (*storage.MemoryClient, Manager) {
	t.Helper()
	store := storage.NewMemoryClient("http://localhost:9000")
	store.CreateBucket(testBucket)
	for _, k := range keys {
		store.Seed(testBucket, k, []byte("data:"+k))
	}
	return store, NewManager(store, testConfig())
}

func paths(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

func TestList_SubjectsScenario(t *testing.T) {
	_, mgr := newTestManager(t,
		"subjects/math/unit1.pdf",
		"subjects/math/notes.txt",
		"subjects/physics/.keep",
	)

	listing, err := mgr.List(context.Background(), testBucket, "subjects/")
	require.NoError(t, err)
	assert.Equal(t, []string{"subjects/math", "subjects/physics"}, paths(listing.Folders))
	assert.Empty(t, listing.Files)
	for _, f := range listing.Folders {
		assert.Equal(t, EntryFolder, f.Type)
	}

	listing, err = mgr.List(context.Background(), testBucket, "subjects/math/")
	require.NoError(t, err)
	assert.Empty(t, listing.Folders)
	assert.ElementsMatch(t, []string{"subjects/math/unit1.pdf", "subjects/math/notes.txt"}, paths(listing.Files))
	for _, f := range listing.Files {
		assert.Equal(t, EntryFile, f.Type)
		assert.False(t, f.LastModified.IsZero())
	}
}

func TestList_NormalizesPrefix(t *testing.T) {
	_, mgr := newTestManager(t, "subjects/math/unit1.pdf", "subjectsX/other.pdf")

	listing, err := mgr.List(context.Background(), testBucket, "subjects")
	require.NoError(t, err)
	assert.Equal(t, "subjects/", listing.Prefix)
	assert.Equal(t, []string{"subjects/math"}, paths(listing.Folders))
}

func TestList_Root(t *testing.T) {
	_, mgr := newTestManager(t, "readme.txt", "image.png", "a/b.pdf", "c/.keep")

	listing, err := mgr.List(context.Background(), testBucket, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, paths(listing.Folders))
	assert.Equal(t, []string{"readme.txt"}, paths(listing.Files))
	assert.Equal(t, []string{"a", "c", "readme.txt"}, paths(listing.Entries()))
}

func TestList_DeduplicatesFolders(t *testing.T) {
	_, mgr := newTestManager(t, "a/b/x", "a/b/y", "a/b/c/z.pdf")

	listing, err := mgr.List(context.Background(), testBucket, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b"}, paths(listing.Folders))
}

func TestList_ExtensionFilter(t *testing.T) {
	_, mgr := newTestManager(t, "a/notes.md", "a/deep/notes.md", "a/Report.PDF", "a/.keep")

	listing, err := mgr.List(context.Background(), testBucket, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/Report.PDF"}, paths(listing.Files))
	// nested keys with unlisted extensions still produce their folder
	assert.Equal(t, []string{"a/deep"}, paths(listing.Folders))
}

func TestList_ExtensionsFromRawConfig(t *testing.T) {
	store := storage.NewMemoryClient("http://localhost:9000")
	store.CreateBucket(testBucket)
	store.Seed(testBucket, "a/notes.MD", nil)
	store.Seed(testBucket, "a/unit.pdf", nil)

	cfg := testConfig()
	cfg.AllowedExtensions = []string{" Md", ""}
	mgr := NewManager(store, cfg)

	listing, err := mgr.List(context.Background(), testBucket, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/notes.MD"}, paths(listing.Files))
}

func TestList_Partition(t *testing.T) {
	keys := []string{
		"p/a.txt", "p/b.pdf", "p/c.docx",
		"p/f1/x.txt", "p/f1/y/z.pdf",
		"p/f2/.keep",
		"q/outside.txt",
	}
	_, mgr := newTestManager(t, keys...)

	listing, err := mgr.List(context.Background(), testBucket, "p/")
	require.NoError(t, err)

	// every key under p/ is accounted for by exactly one entry
	covered := map[string]int{}
	for _, k := range keys {
		if !strings.HasPrefix(k, "p/") {
			continue
		}
		for _, f := range listing.Files {
			if f.Path == k {
				covered[k]++
			}
		}
		for _, d := range listing.Folders {
			if strings.HasPrefix(k, d.Path+"/") {
				covered[k]++
			}
		}
	}
	for _, k := range keys {
		if strings.HasPrefix(k, "p/") {
			assert.Equal(t, 1, covered[k], k)
		}
	}
	assert.NotContains(t, paths(listing.Files), "q/outside.txt")
}

func TestList_IgnoresEmptySegments(t *testing.T) {
	_, mgr := newTestManager(t, "a//b.txt", "a/c/d.txt")

	listing, err := mgr.List(context.Background(), testBucket, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/c"}, paths(listing.Folders))
}

func TestList_StoreFailureIsNotEmptyResult(t *testing.T) {
	store, mgr := newTestManager(t, "a/b.txt")
	store.FailList = func(string, string) error { return errors.New("connection refused") }

	listing, err := mgr.List(context.Background(), testBucket, "a/")
	require.Error(t, err)
	assert.Nil(t, listing)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
}

func TestList_RequiresBucket(t *testing.T) {
	_, mgr := newTestManager(t)
	_, err := mgr.List(context.Background(), "", "a/")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSearch(t *testing.T) {
	_, mgr := newTestManager(t, "docs/a.pdf", "docs/sub/b.txt", "docs/sub/c.png", "docsX/d.docx", "other/e.pdf")

	results, err := mgr.Search(context.Background(), testBucket, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.pdf", "docs/sub/b.txt", "docsX/d.docx"}, paths(results))
	assert.Equal(t, "b.txt", results[1].Name)

	results, err = mgr.Search(context.Background(), testBucket, "")
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestCreateFolder_Idempotent(t *testing.T) {
	store, mgr := newTestManager(t)
	ctx := context.Background()

	key, err := mgr.CreateFolder(ctx, testBucket, "new")
	require.NoError(t, err)
	assert.Equal(t, "new/.keep", key)

	_, err = mgr.CreateFolder(ctx, testBucket, "new/")
	require.NoError(t, err)

	assert.Equal(t, []string{"new/.keep"}, store.Keys(testBucket))
	data, ok := store.Get(testBucket, "new/.keep")
	require.True(t, ok)
	assert.Empty(t, data)
}

func TestCreateFolder_Validation(t *testing.T) {
	store, mgr := newTestManager(t)

	for _, in := range []string{"", "/", "  "} {
		_, err := mgr.CreateFolder(context.Background(), testBucket, in)
		assert.ErrorIs(t, err, ErrInvalidArgument, "input %q", in)
	}
	assert.Zero(t, store.Mutations())
}

func TestCreateFolder_StoreError(t *testing.T) {
	store, mgr := newTestManager(t)
	store.FailPut = func(string, string) error { return errors.New("disk full") }

	_, err := mgr.CreateFolder(context.Background(), testBucket, "x")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestDeleteFolder_All(t *testing.T) {
	store, mgr := newTestManager(t, "f/a.txt", "f/b/c.pdf", "f/.keep", "fx/keep.txt")

	manifest, err := mgr.DeleteFolder(context.Background(), testBucket, "f")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, manifest.Status())
	assert.Equal(t, []string{"f/.keep", "f/a.txt", "f/b/c.pdf"}, manifest.Succeeded)
	assert.Empty(t, manifest.Failed)
	assert.Equal(t, []string{"fx/keep.txt"}, store.Keys(testBucket))
}

func TestDeleteFolder_EmptyIsNotAnError(t *testing.T) {
	_, mgr := newTestManager(t, "other/a.txt")

	manifest, err := mgr.DeleteFolder(context.Background(), testBucket, "missing")
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, manifest.Status())
	assert.Zero(t, manifest.Total())
}

func TestDeleteFolder_PartialFailure(t *testing.T) {
	store, mgr := newTestManager(t, "f/a.txt", "f/b.txt", "f/c.txt")
	store.FailBulk = func(_, key string) error {
		if key == "f/b.txt" {
			return errors.New("object locked")
		}
		return nil
	}

	manifest, err := mgr.DeleteFolder(context.Background(), testBucket, "f/")
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, manifest.Status())
	assert.Equal(t, []string{"f/a.txt", "f/c.txt"}, manifest.Succeeded)
	require.Len(t, manifest.Failed, 1)
	assert.Equal(t, "f/b.txt", manifest.Failed[0].Key)
	assert.Contains(t, manifest.Failed[0].Reason, "object locked")
	assert.Equal(t, []string{"f/b.txt"}, store.Keys(testBucket))
}

func TestDeleteFolder_ListFailure(t *testing.T) {
	store, mgr := newTestManager(t, "f/a.txt")
	store.FailList = func(string, string) error { return errors.New("timeout") }

	manifest, err := mgr.DeleteFolder(context.Background(), testBucket, "f")
	assert.Nil(t, manifest)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, []string{"f/a.txt"}, store.Keys(testBucket))
}

func TestDeleteFolder_Validation(t *testing.T) {
	_, mgr := newTestManager(t)
	_, err := mgr.DeleteFolder(context.Background(), testBucket, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMoveFolder_ContainmentGuard(t *testing.T) {
	store, mgr := newTestManager(t, "docs/a.txt", "docs/archive/old.txt")

	for _, dst := range []string{"docs/archive", "docs", "docs/", "docs/a/b"} {
		_, err := mgr.MoveFolder(context.Background(), testBucket, "docs", dst)
		require.Error(t, err, dst)
		assert.ErrorIs(t, err, ErrInvalidOperation)
		assert.Equal(t, KindInvalidOperation, KindOf(err))
	}
	assert.Zero(t, store.Mutations())
}

func TestMoveFolder_SiblingWithSharedPrefixAllowed(t *testing.T) {
	store, mgr := newTestManager(t, "docs/a.txt")

	manifest, err := mgr.MoveFolder(context.Background(), testBucket, "docs", "docs2")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, manifest.Status())
	assert.Equal(t, []string{"docs2/a.txt"}, store.Keys(testBucket))
}

func TestMoveFolder_MovesEverything(t *testing.T) {
	store, mgr := newTestManager(t, "src/a.txt", "src/b/c.txt", "srcX/keep.txt")

	manifest, err := mgr.MoveFolder(context.Background(), testBucket, "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, manifest.Status())
	assert.Equal(t, []string{"src/a.txt", "src/b/c.txt"}, manifest.Succeeded)
	assert.Equal(t, []string{"dst/a.txt", "dst/b/c.txt", "srcX/keep.txt"}, store.Keys(testBucket))

	data, ok := store.Get(testBucket, "dst/b/c.txt")
	require.True(t, ok)
	assert.Equal(t, "data:src/b/c.txt", string(data))
}

func TestMoveFolder_TrailingSeparators(t *testing.T) {
	store, mgr := newTestManager(t, "src/a.txt")

	_, err := mgr.MoveFolder(context.Background(), testBucket, "src/", "archive/src/")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive/src/a.txt"}, store.Keys(testBucket))
}

func TestMoveFolder_EmptySourceWarns(t *testing.T) {
	store, mgr := newTestManager(t, "other/a.txt")

	manifest, err := mgr.MoveFolder(context.Background(), testBucket, "nothing", "dst")
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, manifest.Status())
	assert.NotEmpty(t, manifest.Warning)
	assert.Zero(t, store.Mutations())
}

func TestMoveFolder_Validation(t *testing.T) {
	_, mgr := newTestManager(t)

	_, err := mgr.MoveFolder(context.Background(), testBucket, "", "dst")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = mgr.MoveFolder(context.Background(), testBucket, "src", "/")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMoveFolder_CopyFailureKeepsSource(t *testing.T) {
	store, mgr := newTestManager(t, "src/a.txt", "src/b.txt", "src/c.txt")
	store.FailCopy = func(_, srcKey, _ string) error {
		if srcKey == "src/b.txt" {
			return errors.New("quota exceeded")
		}
		return nil
	}

	manifest, err := mgr.MoveFolder(context.Background(), testBucket, "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, manifest.Status())
	assert.Equal(t, []string{"src/a.txt", "src/c.txt"}, manifest.Succeeded)
	require.Len(t, manifest.Failed, 1)
	assert.Equal(t, KeyFailure{
		Key:         "src/b.txt",
		Destination: "dst/b.txt",
		Stage:       StageCopy,
		Reason:      "failed to copy object: quota exceeded",
	}, manifest.Failed[0])
	assert.Empty(t, manifest.DualPresent())
	assert.Equal(t, []string{"dst/a.txt", "dst/c.txt", "src/b.txt"}, store.Keys(testBucket))
}

func TestMoveFolder_DeleteFailureLeavesBothKeys(t *testing.T) {
	store, mgr := newTestManager(t, "src/a.txt", "src/b.txt")
	store.FailRemove = func(_, key string) error {
		if key == "src/a.txt" {
			return errors.New("access denied")
		}
		return nil
	}

	manifest, err := mgr.MoveFolder(context.Background(), testBucket, "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, manifest.Status())
	dual := manifest.DualPresent()
	require.Len(t, dual, 1)
	assert.Equal(t, "src/a.txt", dual[0].Key)
	assert.Equal(t, "dst/a.txt", dual[0].Destination)
	assert.Equal(t, []string{"dst/a.txt", "dst/b.txt", "src/a.txt"}, store.Keys(testBucket))
}

func TestMoveFolder_AllFail(t *testing.T) {
	store, mgr := newTestManager(t, "src/a.txt", "src/b.txt")
	store.FailCopy = func(string, string, string) error { return errors.New("down") }

	manifest, err := mgr.MoveFolder(context.Background(), testBucket, "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, manifest.Status())
	assert.Len(t, manifest.Failed, 2)
}

func TestMoveFolder_CopyBeforeDeletePerKey(t *testing.T) {
	keys := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		keys = append(keys, fmt.Sprintf("src/%02d.txt", i))
	}
	store, mgr := newTestManager(t, keys...)

	var copied sync.Map
	store.FailCopy = func(_, srcKey, _ string) error {
		copied.Store(srcKey, true)
		return nil
	}
	var violations atomic.Int32
	store.FailRemove = func(_, key string) error {
		if _, ok := copied.Load(key); !ok {
			violations.Add(1)
		}
		return nil
	}

	manifest, err := mgr.MoveFolder(context.Background(), testBucket, "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, manifest.Status())
	assert.Len(t, manifest.Succeeded, 40)
	assert.Zero(t, violations.Load())
	assert.True(t, sort.StringsAreSorted(manifest.Succeeded))
}

func TestMoveFolder_CollisionRejected(t *testing.T) {
	store, mgr := newTestManager(t, "src/a.txt", "src/.keep", "dst/a.txt", "dst/.keep")
	before := store.Keys(testBucket)

	_, err := mgr.MoveFolder(context.Background(), testBucket, "src", "dst")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDestinationExists)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Equal(t, KindDestinationExists, KindOf(err))

	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
	// markers never count as collisions
	assert.Equal(t, []string{"dst/a.txt"}, collision.Keys)
	assert.Equal(t, before, store.Keys(testBucket))
	assert.Zero(t, store.Mutations())
}

func TestMoveFolder_MarkerOnlyDestinationIsNotACollision(t *testing.T) {
	store, mgr := newTestManager(t, "src/a.txt", "src/.keep", "dst/.keep")

	manifest, err := mgr.MoveFolder(context.Background(), testBucket, "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, manifest.Status())
	assert.Equal(t, []string{"dst/.keep", "dst/a.txt"}, store.Keys(testBucket))
}

func TestMoveFolder_OverwritePolicy(t *testing.T) {
	store := storage.NewMemoryClient("http://localhost:9000")
	store.CreateBucket(testBucket)
	store.Seed(testBucket, "src/a.txt", []byte("new"))
	store.Seed(testBucket, "dst/a.txt", []byte("old"))

	cfg := testConfig()
	cfg.OverwritePolicy = config.OverwriteAllow
	mgr := NewManager(store, cfg)

	manifest, err := mgr.MoveFolder(context.Background(), testBucket, "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, manifest.Status())
	data, _ := store.Get(testBucket, "dst/a.txt")
	assert.Equal(t, "new", string(data))
}

func TestMoveFolder_IntoAncestorOverlappingKeys(t *testing.T) {
	for _, policy := range []string{config.OverwriteAllow, config.OverwriteReject} {
		for _, concurrency := range []int{1, 4} {
			t.Run(fmt.Sprintf("%s/%d", policy, concurrency), func(t *testing.T) {
				store := storage.NewMemoryClient("http://localhost:9000")
				store.CreateBucket(testBucket)
				store.Seed(testBucket, "a/b/x.txt", []byte("orig"))
				store.Seed(testBucket, "a/b/b/x.txt", []byte("nested"))

				cfg := testConfig()
				cfg.OverwritePolicy = policy
				cfg.MoveConcurrency = concurrency
				mgr := NewManager(store, cfg)

				manifest, err := mgr.MoveFolder(context.Background(), testBucket, "a/b", "a")
				require.Error(t, err)
				assert.Nil(t, manifest)
				assert.ErrorIs(t, err, ErrInvalidOperation)
				assert.Equal(t, 0, store.Mutations())

				data, ok := store.Get(testBucket, "a/b/x.txt")
				require.True(t, ok)
				assert.Equal(t, "orig", string(data))
				assert.Equal(t, []string{"a/b/b/x.txt", "a/b/x.txt"}, store.Keys(testBucket))
			})
		}
	}
}

func TestMoveFolder_IntoAncestorWithoutOverlap(t *testing.T) {
	store, mgr := newTestManager(t, "a/b/x.txt", "a/b/c/y.txt")

	manifest, err := mgr.MoveFolder(context.Background(), testBucket, "a/b", "a")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, manifest.Status())
	assert.Equal(t, []string{"a/c/y.txt", "a/x.txt"}, store.Keys(testBucket))
}

func TestMoveFolder_CanceledContextLeavesPartialState(t *testing.T) {
	store, mgr := newTestManager(t, "src/a.txt", "src/b.txt")

	ctx, cancel := context.WithCancel(context.Background())
	store.FailCopy = func(_, srcKey, _ string) error {
		if srcKey == "src/a.txt" {
			cancel()
		}
		return nil
	}

	mgr = NewManager(store, config.NamespaceConfig{
		AllowedExtensions: []string{".txt"},
		MoveConcurrency:   1,
		OverwritePolicy:   config.OverwriteReject,
	})

	manifest, err := mgr.MoveFolder(ctx, testBucket, "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, manifest.Status())
	// a.txt was copied before the cancel landed; its delete and b.txt's copy failed
	assert.Equal(t, []string{"dst/a.txt", "src/a.txt", "src/b.txt"}, store.Keys(testBucket))
	require.Len(t, manifest.Failed, 2)
	assert.Equal(t, StageDelete, manifest.Failed[0].Stage)
	assert.Equal(t, StageCopy, manifest.Failed[1].Stage)
}

func TestMoveFile(t *testing.T) {
	store, mgr := newTestManager(t, "a/report.pdf", "b/report.pdf")

	require.NoError(t, mgr.MoveFile(context.Background(), testBucket, "a/report.pdf", "b/report.pdf"))
	assert.Equal(t, []string{"b/report.pdf"}, store.Keys(testBucket))
	data, _ := store.Get(testBucket, "b/report.pdf")
	assert.Equal(t, "data:a/report.pdf", string(data))
}

func TestMoveFile_Validation(t *testing.T) {
	store, mgr := newTestManager(t, "a.txt")
	ctx := context.Background()

	assert.ErrorIs(t, mgr.MoveFile(ctx, testBucket, "", "b.txt"), ErrInvalidArgument)
	assert.ErrorIs(t, mgr.MoveFile(ctx, testBucket, "a.txt", ""), ErrInvalidArgument)
	assert.ErrorIs(t, mgr.MoveFile(ctx, testBucket, "a.txt", "dir/"), ErrInvalidArgument)
	assert.ErrorIs(t, mgr.MoveFile(ctx, testBucket, "a.txt", "a.txt"), ErrInvalidOperation)
	assert.Zero(t, store.Mutations())
}

func TestMoveFile_MissingSource(t *testing.T) {
	_, mgr := newTestManager(t)

	err := mgr.MoveFile(context.Background(), testBucket, "ghost.txt", "b.txt")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestMoveFile_DeleteFailureKeepsCopy(t *testing.T) {
	store, mgr := newTestManager(t, "a.txt")
	store.FailRemove = func(string, string) error { return errors.New("denied") }

	err := mgr.MoveFile(context.Background(), testBucket, "a.txt", "b.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both keys present")
	assert.Equal(t, []string{"a.txt", "b.txt"}, store.Keys(testBucket))
}

func TestUpload(t *testing.T) {
	store, mgr := newTestManager(t)

	res, err := mgr.Upload(context.Background(), testBucket, UploadInput{
		Prefix:   "subjects/math",
		Filename: "unit2.pdf",
		Body:     strings.NewReader("%PDF"),
		Size:     4,
	})
	require.NoError(t, err)
	assert.Equal(t, "subjects/math/unit2.pdf", res.Key)
	assert.Equal(t, "http://localhost:9000/mermaid/subjects/math/unit2.pdf", res.URL)
	assert.Equal(t, []string{"subjects/math/unit2.pdf"}, store.Keys(testBucket))
}

func TestUpload_StripsClientPath(t *testing.T) {
	_, mgr := newTestManager(t)

	res, err := mgr.Upload(context.Background(), testBucket, UploadInput{
		Filename: `..\..\windows\notes.txt`,
		Body:     strings.NewReader("x"),
		Size:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", res.Key)
}

func TestUpload_Validation(t *testing.T) {
	_, mgr := newTestManager(t)

	for _, name := range []string{"", "..", "dir/..", "."} {
		_, err := mgr.Upload(context.Background(), testBucket, UploadInput{Filename: name, Body: strings.NewReader("")})
		assert.ErrorIs(t, err, ErrInvalidArgument, "name %q", name)
	}
	_, err := mgr.Upload(context.Background(), testBucket, UploadInput{Filename: "a.txt"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("docs", "docs"))
	assert.True(t, Contains("docs", "docs/archive"))
	assert.True(t, Contains("docs/", "docs/archive/"))
	assert.False(t, Contains("docs", "docs2"))
	assert.False(t, Contains("docs/archive", "docs"))
}

func TestManifestStatus(t *testing.T) {
	assert.Equal(t, StatusEmpty, (&Manifest{}).Status())
	assert.Equal(t, StatusComplete, (&Manifest{Succeeded: []string{"a"}}).Status())
	assert.Equal(t, StatusFailed, (&Manifest{Failed: []KeyFailure{{Key: "a"}}}).Status())
	assert.Equal(t, StatusPartial, (&Manifest{Succeeded: []string{"a"}, Failed: []KeyFailure{{Key: "b"}}}).Status())
}

func TestCollisionError_Message(t *testing.T) {
	err := &CollisionError{Source: "a", Destination: "b", Keys: []string{"b/1", "b/2", "b/3", "b/4", "b/5", "b/6", "b/7"}}
	assert.Contains(t, err.Error(), "7 destination keys already exist")
	assert.Contains(t, err.Error(), "and 2 more")
}
