package docstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	docKeyPrefix     = "doc:" // JSON body: doc:{path}
	colKeyPrefix     = "col:" // SET of document ids: col:{collection path}
	counterKeyPrefix = "ctr:" // integer counter: ctr:{path}#{field}
	mergeRetries     = 5
)

// RedisStore implements Store on plain Redis keys. Documents are JSON encoded;
// each collection keeps a SET of its ids so queries can enumerate it. Filtering
// and ordering happen client side, which is fine for per-user collections.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, path string, dst any) error {
	if _, _, err := splitDocPath(path); err != nil {
		return err
	}
	data, err := s.client.Get(ctx, s.docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Set(ctx context.Context, path string, src any) error {
	coll, id, err := splitDocPath(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.docKey(path), data, 0)
	pipe.SAdd(ctx, s.colKey(coll), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Merge(ctx context.Context, path string, fields map[string]any) error {
	if _, _, err := splitDocPath(path); err != nil {
		return err
	}
	key := s.docKey(path)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		doc := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		for k, v := range fields {
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode field %s: %w", k, err)
			}
			doc[k] = b
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < mergeRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("redis merge %s: %w", path, err)
		}
		return err
	}
	return fmt.Errorf("redis merge %s: too much contention", path)
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	coll, id, err := splitDocPath(path)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.docKey(path))
	pipe.SRem(ctx, s.colKey(coll), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	ids, err := s.client.SMembers(ctx, s.colKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection + "/" + id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget %s: %w", collection, err)
	}

	wants := make([]any, len(q.Where))
	for i, f := range q.Where {
		w, err := normalize(f.Value)
		if err != nil {
			return nil, err
		}
		wants[i] = w
	}

	type entry struct {
		doc    redisDoc
		fields map[string]any
	}
	var matched []entry
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// id left in the index without a body
			continue
		}
		fields := map[string]any{}
		if err := json.Unmarshal([]byte(str), &fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, ids[i], err)
		}
		keep := true
		for j, f := range q.Where {
			if !reflect.DeepEqual(fields[f.Field], wants[j]) {
				keep = false
				break
			}
		}
		if keep {
			matched = append(matched, entry{doc: redisDoc{id: ids[i], raw: []byte(str)}, fields: fields})
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareValues(matched[i].fields[q.OrderBy], matched[j].fields[q.OrderBy])
			if q.Dir == Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]Doc, len(matched))
	for i, m := range matched {
		out[i] = m.doc
	}
	return out, nil
}

func (s *RedisStore) Increment(ctx context.Context, path, field string, delta int64) (int64, error) {
	if _, _, err := splitDocPath(path); err != nil {
		return 0, err
	}
	n, err := s.client.IncrBy(ctx, s.counterKey(path, field), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", path, err)
	}
	return n, nil
}

func (s *RedisStore) docKey(path string) string { return s.prefix + docKeyPrefix + path }
func (s *RedisStore) colKey(coll string) string { return s.prefix + colKeyPrefix + coll }
func (s *RedisStore) counterKey(path, field string) string {
	return s.prefix + counterKeyPrefix + path + "#" + field
}

type redisDoc struct {
	id  string
	raw []byte
}

func (d redisDoc) ID() string           { return d.id }
func (d redisDoc) DataTo(dst any) error { return json.Unmarshal(d.raw, dst) }

// normalize round-trips v through JSON so it compares equal to decoded fields.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// compareValues orders decoded JSON values. RFC 3339 strings compare as
// instants; nil sorts first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			ta, errA := time.Parse(time.RFC3339Nano, av)
			tb, errB := time.Parse(time.RFC3339Nano, bv)
			if errA == nil && errB == nil {
				return ta.Compare(tb)
			}
			return strings.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
