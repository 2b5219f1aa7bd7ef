package etcd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// RouteHandler receives every route update seen by a watcher. deleted is
// set when the key was removed; u then only carries the key fields.
type RouteHandler func(u RouteUpdate, deleted bool) error

// RouteWatcher follows the route prefix, e.g. on a forwarding node that
// installs the paths it is given
type RouteWatcher struct {
	client    *clientv3.Client
	watcherID string
	config    EtcdConfig
}

func NewRouteWatcher(config EtcdConfig) (*RouteWatcher, error) {
	if len(config.Endpoints) == 0 {
		return nil, errors.New("[etcd] - no endpoints configured")
	}
	if config.Prefix == "" {
		config.Prefix = DefaultRoutePrefix
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create etcd client")
	}

	return &RouteWatcher{
		client:    client,
		watcherID: fmt.Sprintf("watcher-%d", time.Now().Unix()),
		config:    config,
	}, nil
}

func (w *RouteWatcher) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// Watch delivers the current routes, then every change, until ctx is done
func (w *RouteWatcher) Watch(ctx context.Context, handler RouteHandler) error {
	prefix := strings.TrimRight(w.config.Prefix, "/") + "/"
	log.Infof("[%s] Watching %s", w.watcherID, prefix)

	resp, err := w.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return errors.Wrap(err, "failed to read current routes")
	}
	for _, kv := range resp.Kvs {
		w.handle(string(kv.Key), kv.Value, false, handler)
	}

	watchChan := w.client.Watch(ctx, prefix, clientv3.WithPrefix(), clientv3.WithRev(resp.Header.Revision+1))
	for {
		select {
		case <-ctx.Done():
			log.Infof("[%s] Watcher shutting down", w.watcherID)
			return nil

		case resp, ok := <-watchChan:
			if !ok {
				return errors.New("[etcd] - watch channel closed")
			}
			if err := resp.Err(); err != nil {
				return errors.Wrap(err, "watch")
			}
			for _, event := range resp.Events {
				w.handle(string(event.Kv.Key), event.Kv.Value, event.Type == clientv3.EventTypeDelete, handler)
			}
		}
	}
}

func (w *RouteWatcher) handle(key string, value []byte, deleted bool, handler RouteHandler) {
	src, dst, tc, err := ParseRouteKey(w.config.Prefix, key)
	if err != nil {
		log.Warnf("[%s] Skipping key: %v", w.watcherID, err)
		return
	}

	u := RouteUpdate{TrafficClass: tc, Src: src, Dst: dst}
	if !deleted {
		if u, err = DecodeUpdate(value); err != nil {
			log.Errorf("[%s] %s: %v", w.watcherID, key, err)
			return
		}
	}
	if err := handler(u, deleted); err != nil {
		log.Errorf("[%s] Handler failed for %s: %v", w.watcherID, key, err)
	}
}
