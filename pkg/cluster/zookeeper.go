package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/google/uuid"

	"rangedb/pkg/listener"
	"rangedb/pkg/routing"
)

// ZKMetadata reads partition metadata from ZooKeeper. Layout under rootPath:
//
//	<root>/collections/<name>           data: collection unique id
//	<root>/collections/<name>/ranges/<id>  data: RangeDescriptor JSON
type ZKMetadata struct {
	conn     *zk.Conn
	rootPath string
}

// servers: ["zk1:2181", "zk2:2181"]
func NewZKMetadata(servers []string, rootPath string, sessionTimeout time.Duration) (*ZKMetadata, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("zk connect: %w", err)
	}
	m := &ZKMetadata{conn: conn, rootPath: rootPath}
	if err := m.waitConnected(10 * time.Second); err != nil {
		conn.Close()
		return nil, err
	}
	return m, nil
}

func (m *ZKMetadata) Close() error {
	m.conn.Close()
	return nil
}

func (m *ZKMetadata) collectionPath(collection string) string {
	return m.rootPath + "/collections/" + collection
}

func (m *ZKMetadata) ensurePath(path string) error {
	parts := strings.Split(path, "/")
	cur := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = cur + "/" + p
		exists, _, err := m.conn.Exists(cur)
		if err != nil {
			return err
		}
		if !exists {
			_, err = m.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
			if err != nil && err != zk.ErrNodeExists {
				return err
			}
		}
	}
	return nil
}

func (m *ZKMetadata) waitConnected(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		st := m.conn.State()
		if st == zk.StateConnected || st == zk.StateHasSession {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("zk: not connected after %s, state=%v", timeout, st)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// CreateCollection registers a collection and assigns it a fresh unique id.
// If the collection already exists, the existing id is returned.
func (m *ZKMetadata) CreateCollection(collection string) (string, error) {
	path := m.collectionPath(collection)
	if err := m.ensurePath(path + "/ranges"); err != nil {
		return "", fmt.Errorf("ensure collection path: %w", err)
	}

	data, stat, err := m.conn.Get(path)
	if err != nil {
		return "", fmt.Errorf("read collection node: %w", err)
	}
	if len(data) > 0 {
		return string(data), nil
	}

	id := uuid.NewString()
	if _, err := m.conn.Set(path, []byte(id), stat.Version); err != nil {
		if err == zk.ErrBadVersion {
			// concurrent creator won, read its id
			data, _, gerr := m.conn.Get(path)
			if gerr != nil {
				return "", fmt.Errorf("re-read collection node: %w", gerr)
			}
			return string(data), nil
		}
		return "", fmt.Errorf("write collection id: %w", err)
	}

	slog.Info("collection registered", "collection", collection, "uniqueId", id)
	return id, nil
}

// RegisterRange writes one range descriptor. Re-registering the same id
// overwrites the previous descriptor, which is how splits hand off ownership.
func (m *ZKMetadata) RegisterRange(collection string, desc RangeDescriptor) error {
	if desc.ID == "" {
		return fmt.Errorf("register range: empty id")
	}
	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}

	path := m.collectionPath(collection) + "/ranges/" + desc.ID
	_, err = m.conn.Create(path, data, 0, zk.WorldACL(zk.PermAll))
	if err == zk.ErrNodeExists {
		_, err = m.conn.Set(path, data, -1)
	}
	if err != nil {
		return fmt.Errorf("write range descriptor: %w", err)
	}
	return nil
}

// FetchRanges reads all range descriptors of a collection together with the
// collection unique id identifying this metadata snapshot.
func (m *ZKMetadata) FetchRanges(ctx context.Context, collection string) ([]routing.Pair[Partition], string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	path := m.collectionPath(collection)
	uniqueID, _, err := m.conn.Get(path)
	if err != nil {
		return nil, "", fmt.Errorf("read collection node: %w", err)
	}

	children, _, err := m.conn.Children(path + "/ranges")
	if err != nil {
		return nil, "", fmt.Errorf("list ranges: %w", err)
	}

	descs := make([]RangeDescriptor, 0, len(children))
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		data, _, err := m.conn.Get(path + "/ranges/" + child)
		if err == zk.ErrNoNode {
			// deleted between list and read; the snapshot will simply be
			// incomplete and the caller retries
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("read range %s: %w", child, err)
		}
		var d RangeDescriptor
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, "", fmt.Errorf("decode range %s: %w", child, err)
		}
		descs = append(descs, d)
	}

	pairs, err := PairsFromDescriptors(descs)
	if err != nil {
		return nil, "", err
	}
	return pairs, string(uniqueID), nil
}

// RunWatch follows range membership changes of a collection and refreshes the
// provider on every event. It returns a Job wrapping the drain loop; watch
// re-subscription runs until ctx is cancelled.
func (m *ZKMetadata) RunWatch(ctx context.Context, collection string, p *Provider) listener.Job {
	events := make(chan zk.Event, 1)

	l := listener.New(events, func(ev zk.Event) error {
		slog.Debug("metadata event", "collection", collection, "type", ev.Type)
		if err := p.Refresh(ctx, collection); err != nil {
			return fmt.Errorf("refresh %s: %w", collection, err)
		}
		return nil
	})
	l.Start(ctx)

	go func() {
		path := m.collectionPath(collection) + "/ranges"
		for {
			_, _, ch, err := m.conn.ChildrenW(path)
			if err != nil {
				slog.Warn("zk watch subscribe failed", "path", path, "error", err)
				select {
				case <-time.After(2 * time.Second):
					continue
				case <-ctx.Done():
					return
				}
			}

			select {
			case ev := <-ch:
				select {
				case events <- ev:
				default:
					// a refresh is already pending, coalesce
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return l
}
