package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/knodir/SOL/paths"
	"github.com/knodir/SOL/traffic"
)

const DefaultRoutePrefix = "/sol/routes"

var ErrBadRouteKey = errors.New("[etcd] - malformed route key")

// RouteUpdate is the value stored under a traffic class key
type RouteUpdate struct {
	TrafficClass int            `json:"tcID"`
	Name         string         `json:"name"`
	Src          int            `json:"src"`
	Dst          int            `json:"dst"`
	VolFlows     float64        `json:"volFlows"`
	Paths        []paths.Record `json:"paths"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type EtcdConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	Prefix      string
}

func DefaultEtcdConfig() EtcdConfig {
	return EtcdConfig{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		Prefix:      DefaultRoutePrefix,
	}
}

// RouteKey is <prefix>/<src>-<dst>/<tc>
func RouteKey(prefix string, tc *traffic.TrafficClass) string {
	return fmt.Sprintf("%s/%d-%d/%d", strings.TrimRight(prefix, "/"), tc.Src, tc.Dst, tc.ID)
}

// ParseRouteKey splits a key written by RouteKey
func ParseRouteKey(prefix, key string) (src, dst, tc int, err error) {
	rest, ok := strings.CutPrefix(key, strings.TrimRight(prefix, "/")+"/")
	if !ok {
		return 0, 0, 0, errors.Wrapf(ErrBadRouteKey, "%q outside %q", key, prefix)
	}
	pair, id, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, 0, errors.Wrapf(ErrBadRouteKey, "%q", key)
	}
	s, d, ok := strings.Cut(pair, "-")
	if !ok {
		return 0, 0, 0, errors.Wrapf(ErrBadRouteKey, "%q", key)
	}
	if src, err = strconv.Atoi(s); err != nil {
		return 0, 0, 0, errors.Wrapf(ErrBadRouteKey, "%q: src", key)
	}
	if dst, err = strconv.Atoi(d); err != nil {
		return 0, 0, 0, errors.Wrapf(ErrBadRouteKey, "%q: dst", key)
	}
	if tc, err = strconv.Atoi(id); err != nil {
		return 0, 0, 0, errors.Wrapf(ErrBadRouteKey, "%q: traffic class", key)
	}
	return src, dst, tc, nil
}

// NewRouteUpdate pairs every path of tc with its flow count. Paths the
// solution left unused are kept with zero flows.
func NewRouteUpdate(tc *traffic.TrafficClass, routes []paths.Routable, flows paths.FlowTable) RouteUpdate {
	return RouteUpdate{
		TrafficClass: tc.ID,
		Name:         tc.Name,
		Src:          tc.Src,
		Dst:          tc.Dst,
		VolFlows:     tc.VolFlows,
		Paths:        flows.Records(routes),
		UpdatedAt:    time.Now().UTC(),
	}
}

func EncodeUpdate(u RouteUpdate) ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal route update")
	}
	return data, nil
}

func DecodeUpdate(data []byte) (RouteUpdate, error) {
	var u RouteUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return RouteUpdate{}, errors.Wrap(err, "failed to unmarshal route update")
	}
	return u, nil
}

// RoutePublisher writes solved routes to etcd, one key per traffic class
type RoutePublisher struct {
	client      *clientv3.Client
	kv          clientv3.KV
	publisherID string
	config      EtcdConfig
}

func NewRoutePublisher(config EtcdConfig) (*RoutePublisher, error) {
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

	return &RoutePublisher{
		client:      client,
		kv:          client,
		publisherID: fmt.Sprintf("publisher-%d", time.Now().Unix()),
		config:      config,
	}, nil
}

func (p *RoutePublisher) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func (p *RoutePublisher) prefix() string {
	return strings.TrimRight(p.config.Prefix, "/") + "/"
}

// Publish stores the routes of every class in pptc. flows is keyed by
// traffic class id; classes without a table are published with zero flows.
func (p *RoutePublisher) Publish(ctx context.Context, pptc *traffic.PPTC, flows map[int]paths.FlowTable) error {
	published := 0
	for tc, routes := range pptc.All() {
		ft, ok := flows[tc.ID]
		if !ok {
			ft = paths.NewFlowTable()
		}
		data, err := EncodeUpdate(NewRouteUpdate(tc, routes, ft))
		if err != nil {
			return err
		}
		key := RouteKey(p.config.Prefix, tc)
		if _, err := p.kv.Put(ctx, key, string(data)); err != nil {
			return errors.Wrapf(err, "failed to publish %s", key)
		}
		published++
	}
	log.Infof("[%s] Published routes of %d traffic classes under %s", p.publisherID, published, p.config.Prefix)
	return nil
}

// Fetch reads back every route under the prefix, in key order. Keys that
// do not parse as routes are skipped.
func (p *RoutePublisher) Fetch(ctx context.Context) ([]RouteUpdate, error) {
	resp, err := p.kv.Get(ctx, p.prefix(), clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s", p.prefix())
	}
	updates := make([]RouteUpdate, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if _, _, _, err := ParseRouteKey(p.config.Prefix, string(kv.Key)); err != nil {
			log.Warnf("[%s] Skipping %s: %v", p.publisherID, kv.Key, err)
			continue
		}
		u, err := DecodeUpdate(kv.Value)
		if err != nil {
			log.Warnf("[%s] Skipping %s: %v", p.publisherID, kv.Key, err)
			continue
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// Clear removes every route under the prefix and returns how many keys
// were deleted
func (p *RoutePublisher) Clear(ctx context.Context) (int64, error) {
	resp, err := p.kv.Delete(ctx, p.prefix(), clientv3.WithPrefix())
	if err != nil {
		return 0, errors.Wrap(err, "failed to clear routes")
	}
	log.Infof("[%s] Cleared %d route keys", p.publisherID, resp.Deleted)
	return resp.Deleted, nil
}
