package etcd

import (
	"context"
	"sort"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/knodir/SOL/paths"
	"github.com/knodir/SOL/traffic"
)

func TestRouteKey(t *testing.T) {
	tc := traffic.NewTrafficClass(7, "allTraffic", 1, 4, 100, 1000)
	assert.Equal(t, "/sol/routes/1-4/7", RouteKey(DefaultRoutePrefix, tc))
	assert.Equal(t, "/sol/routes/1-4/7", RouteKey(DefaultRoutePrefix+"/", tc))

	src, dst, id, err := ParseRouteKey(DefaultRoutePrefix, RouteKey(DefaultRoutePrefix, tc))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 7}, []int{src, dst, id})
}

func TestParseRouteKeyErrors(t *testing.T) {
	for _, key := range []string{
		"/other/1-4/7",
		"/sol/routes/1-4",
		"/sol/routes/14/7",
		"/sol/routes/a-4/7",
		"/sol/routes/1-b/7",
		"/sol/routes/1-4/x",
	} {
		t.Run(key, func(t *testing.T) {
			_, _, _, err := ParseRouteKey(DefaultRoutePrefix, key)
			assert.True(t, errors.Is(err, ErrBadRouteKey))
		})
	}
}

func TestRouteUpdateEncoding(t *testing.T) {
	tc := traffic.NewTrafficClass(0, "allTraffic", 0, 2, 100, 1000)
	p0, err := paths.New(0, []int{0, 1, 2})
	require.NoError(t, err)
	p1, err := paths.NewWithMbox(1, []int{0, 2}, []int{2})
	require.NoError(t, err)

	ft := paths.NewFlowTable()
	ft.Set(0, 75)
	u := NewRouteUpdate(tc, []paths.Routable{p0, p1}, ft)
	require.Len(t, u.Paths, 2)
	assert.Equal(t, 75.0, u.Paths[0].NumFlows)
	assert.Equal(t, 0.0, u.Paths[1].NumFlows)

	data, err := EncodeUpdate(u)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tcID":0`)
	assert.Contains(t, string(data), `"useMBoxes":[2]`)

	got, err := DecodeUpdate(data)
	require.NoError(t, err)
	assert.Equal(t, u.Src, got.Src)
	assert.Equal(t, u.Dst, got.Dst)
	assert.Equal(t, u.Paths, got.Paths)
	assert.True(t, u.UpdatedAt.Equal(got.UpdatedAt))

	r, err := got.Paths[1].Routable()
	require.NoError(t, err)
	assert.True(t, r.Equal(p1))

	_, err = DecodeUpdate([]byte("{"))
	assert.Error(t, err)
}

func TestWatcherHandle(t *testing.T) {
	w := &RouteWatcher{watcherID: "test", config: DefaultEtcdConfig()}
	tc := traffic.NewTrafficClass(3, "allTraffic", 1, 2, 10, 10)
	p, err := paths.New(0, []int{1, 2})
	require.NoError(t, err)
	data, err := EncodeUpdate(NewRouteUpdate(tc, []paths.Routable{p}, paths.NewFlowTable()))
	require.NoError(t, err)

	type call struct {
		u       RouteUpdate
		deleted bool
	}
	var calls []call
	handler := func(u RouteUpdate, deleted bool) error {
		calls = append(calls, call{u, deleted})
		return nil
	}

	w.handle(RouteKey(DefaultRoutePrefix, tc), data, false, handler)
	w.handle(RouteKey(DefaultRoutePrefix, tc), nil, true, handler)
	w.handle("/elsewhere/1-2/3", data, false, handler)
	w.handle(RouteKey(DefaultRoutePrefix, tc), []byte("not json"), false, handler)

	require.Len(t, calls, 2)
	assert.False(t, calls[0].deleted)
	assert.Len(t, calls[0].u.Paths, 1)
	assert.True(t, calls[1].deleted)
	assert.Equal(t, RouteUpdate{TrafficClass: 3, Src: 1, Dst: 2}, calls[1].u)
}

func TestNewClientsNeedEndpoints(t *testing.T) {
	_, err := NewRoutePublisher(EtcdConfig{})
	assert.Error(t, err)
	_, err = NewRouteWatcher(EtcdConfig{})
	assert.Error(t, err)
}

// memKV keeps keys in a map and honours key ranges such as WithPrefix
type memKV struct {
	clientv3.KV
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) match(op clientv3.Op) []string {
	key, end := string(op.KeyBytes()), string(op.RangeBytes())
	var keys []string
	for k := range m.data {
		if k == key || (end != "" && k >= key && k < end) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *memKV) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	m.data[key] = val
	return &clientv3.PutResponse{}, nil
}

func (m *memKV) Get(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	var kvs []*mvccpb.KeyValue
	for _, k := range m.match(clientv3.OpGet(key, opts...)) {
		kvs = append(kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(m.data[k])})
	}
	return &clientv3.GetResponse{Kvs: kvs, Count: int64(len(kvs))}, nil
}

func (m *memKV) Delete(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	keys := m.match(clientv3.OpDelete(key, opts...))
	for _, k := range keys {
		delete(m.data, k)
	}
	return &clientv3.DeleteResponse{Deleted: int64(len(keys))}, nil
}

func TestPublishFetchClear(t *testing.T) {
	kv := newMemKV()
	pub := &RoutePublisher{kv: kv, publisherID: "test", config: DefaultEtcdConfig()}
	ctx := context.Background()

	first := traffic.NewTrafficClass(0, "allTraffic", 0, 2, 100, 1000)
	second := traffic.NewTrafficClass(1, "allTraffic", 1, 2, 50, 500)
	p0, err := paths.New(0, []int{0, 1, 2})
	require.NoError(t, err)
	p1, err := paths.New(0, []int{1, 2})
	require.NoError(t, err)
	pptc := traffic.NewPPTC()
	require.NoError(t, pptc.Add(first, p0))
	require.NoError(t, pptc.Add(second, p1))

	ft := paths.NewFlowTable()
	ft.Set(0, 100)
	require.NoError(t, pub.Publish(ctx, pptc, map[int]paths.FlowTable{first.ID: ft}))
	assert.Len(t, kv.data, 2)

	kv.data[DefaultRoutePrefix+"/junk"] = "{}"
	kv.data["/elsewhere/0-2/0"] = "{}"

	got, err := pub.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].TrafficClass)
	assert.Equal(t, 100.0, got[0].Paths[0].NumFlows)
	assert.Equal(t, second.ID, got[1].TrafficClass)
	assert.Equal(t, 0.0, got[1].Paths[0].NumFlows)

	deleted, err := pub.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, map[string]string{"/elsewhere/0-2/0": "{}"}, kv.data)

	got, err = pub.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
