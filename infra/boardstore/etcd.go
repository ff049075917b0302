package boardstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	core "github.com/kilianp07/fieldboard/core/boardstore"
)

// EtcdConfig configures the etcd board store.
type EtcdConfig struct {
	Endpoints          []string `json:"endpoints"`
	Prefix             string   `json:"prefix"`
	DialTimeoutSeconds int      `json:"dial_timeout_seconds"`
	Username           string   `json:"username"`
	Password           string   `json:"password"`
}

// DefaultEtcdPrefix is used when EtcdConfig.Prefix is empty.
const DefaultEtcdPrefix = "/fieldboard/boards"

// ErrConflict is returned when concurrent writers kept the key busy.
var ErrConflict = errors.New("board key modified concurrently")

// kv is the subset of etcd used by the store.
type kv interface {
	get(ctx context.Context, key string) (value []byte, rev int64, found bool, err error)
	// putIf writes value when the key's mod revision is still rev. Zero
	// means the key must not exist.
	putIf(ctx context.Context, key string, value []byte, rev int64) (bool, error)
}

type etcdKV struct{ kv clientv3.KV }

func (e etcdKV) get(ctx context.Context, key string) ([]byte, int64, bool, error) {
	resp, err := e.kv.Get(ctx, key)
	if err != nil {
		return nil, 0, false, err
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, false, nil
	}
	return resp.Kvs[0].Value, resp.Kvs[0].ModRevision, true, nil
}

func (e etcdKV) putIf(ctx context.Context, key string, value []byte, rev int64) (bool, error) {
	resp, err := e.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", rev)).
		Then(clientv3.OpPut(key, string(value))).
		Commit()
	if err != nil {
		return false, err
	}
	return resp.Succeeded, nil
}

// EtcdStore keeps one key per day under a prefix. Saves are compare-and-swap
// on the key revision so an older version never overwrites a newer one.
type EtcdStore struct {
	cli    *clientv3.Client
	kv     kv
	prefix string
}

var _ core.Store = (*EtcdStore)(nil)

// NewEtcdStore connects to the cluster.
func NewEtcdStore(cfg EtcdConfig) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd store requires endpoints")
	}
	dial := time.Duration(cfg.DialTimeoutSeconds) * time.Second
	if dial <= 0 {
		dial = 5 * time.Second
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dial,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialOptions: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return &EtcdStore{cli: cli, kv: etcdKV{kv: cli}, prefix: etcdPrefix(cfg.Prefix)}, nil
}

func etcdPrefix(p string) string {
	if p == "" {
		return DefaultEtcdPrefix
	}
	return strings.TrimSuffix(p, "/")
}

func (s *EtcdStore) key(day string) string { return s.prefix + "/" + day }

// Load returns the stored state of day.
func (s *EtcdStore) Load(ctx context.Context, day string) (core.State, bool, error) {
	val, _, found, err := s.kv.get(ctx, s.key(day))
	if err != nil || !found {
		return core.State{}, false, err
	}
	var st core.State
	if err := json.Unmarshal(val, &st); err != nil {
		return core.State{}, false, fmt.Errorf("decode board %s: %w", day, err)
	}
	return st, true, nil
}

// Save writes st unless the stored version is newer.
func (s *EtcdStore) Save(ctx context.Context, st core.State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	key := s.key(st.Date)
	for attempt := 0; attempt < 3; attempt++ {
		val, rev, found, err := s.kv.get(ctx, key)
		if err != nil {
			return err
		}
		if found {
			var cur core.State
			if err := json.Unmarshal(val, &cur); err == nil && cur.Version > st.Version {
				return nil
			}
		}
		ok, err := s.kv.putIf(ctx, key, b, rev)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrConflict, key)
}

// Close releases the client connection.
func (s *EtcdStore) Close() error {
	if s.cli == nil {
		return nil
	}
	return s.cli.Close()
}
