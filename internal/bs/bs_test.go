package bs

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeConn is a minimal in-memory stand-in for Redis, used so the suite
// never requires a live server.
type fakeConn struct {
	data   map[string][]byte
	closed bool
}

func newFakeConn() *fakeConn { return &fakeConn{data: make(map[string][]byte)} }

func (f *fakeConn) mset(ctx context.Context, entries map[string][]byte) error {
	for k, v := range entries {
		cp := make([]byte, len(v))
		copy(cp, v)
		f.data[k] = cp
	}
	return nil
}

func (f *fakeConn) mget(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, k := range keys {
		if v, ok := f.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *fakeConn) del(ctx context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func (f *fakeConn) scanKeys(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(f.data))
	for k := range f.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeConn) close() error {
	f.closed = true
	return nil
}

func newTestStore(t *testing.T, prefix string) (*Store, *fakeConn) {
	t.Helper()
	fc := newFakeConn()
	s, err := open(nil, fc, prefix)
	require.NoError(t, err)
	return s, fc
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, "coll")
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "a", []byte("1")))
	v, ok, err := s.Read(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
}

func TestReadAbsentIsSentinelNotError(t *testing.T) {
	s, _ := newTestStore(t, "coll")
	_, ok, err := s.Read(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWriteManyAtomicUnit(t *testing.T) {
	s, _ := newTestStore(t, "coll")
	ctx := context.Background()
	require.NoError(t, s.WriteMany(ctx, map[string][]byte{
		"b": []byte("2"), "c": []byte("3"),
	}))

	res, err := s.ReadMany(ctx, []string{"b", "c", "missing"})
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"b": []byte("2"), "c": []byte("3")}, res)
}

func TestKeysEnumeratesCollectionOnly(t *testing.T) {
	s, fc := newTestStore(t, "coll")
	ctx := context.Background()
	require.NoError(t, s.WriteMany(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}))
	// a key under a different prefix must not leak into this collection's Keys().
	fc.data["other:z"] = []byte("9")

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, []string{"a", "b"}, keys)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t, "coll")
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "a", []byte("1")))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	_, ok, _ := s.Read(ctx, "a")
	require.False(t, ok)
}

func TestCloseReleasesConn(t *testing.T) {
	s, fc := newTestStore(t, "coll")
	require.NoError(t, s.Close())
	require.True(t, fc.closed)
}

func TestOpenRejectsEmptyPrefix(t *testing.T) {
	_, err := open(nil, newFakeConn(), "")
	require.Error(t, err)
}
