package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is the production Store backed by Cloud Firestore.
// Domain types carry `firestore` struct tags matching their `json` tags.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Get(ctx context.Context, path string, dst any) error {
	if _, _, err := splitDocPath(path); err != nil {
		return err
	}
	snap, err := s.client.Doc(path).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("firestore get %s: %w", path, err)
	}
	return snap.DataTo(dst)
}

func (s *FirestoreStore) Set(ctx context.Context, path string, src any) error {
	if _, _, err := splitDocPath(path); err != nil {
		return err
	}
	if _, err := s.client.Doc(path).Set(ctx, src); err != nil {
		return fmt.Errorf("firestore set %s: %w", path, err)
	}
	return nil
}

func (s *FirestoreStore) Merge(ctx context.Context, path string, fields map[string]any) error {
	if _, _, err := splitDocPath(path); err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	if _, err := s.client.Doc(path).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("firestore update %s: %w", path, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, path string) error {
	if _, _, err := splitDocPath(path); err != nil {
		return err
	}
	if _, err := s.client.Doc(path).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %s: %w", path, err)
	}
	return nil
}

func (s *FirestoreStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	fq := s.client.Collection(collection).Query
	for _, f := range q.Where {
		fq = fq.Where(f.Field, "==", f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Dir == Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}

	iter := fq.Documents(ctx)
	defer iter.Stop()

	var out []Doc
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore query %s: %w", collection, err)
		}
		out = append(out, snapshotDoc{snap: snap})
	}
	return out, nil
}

func (s *FirestoreStore) Increment(ctx context.Context, path, field string, delta int64) (int64, error) {
	if _, _, err := splitDocPath(path); err != nil {
		return 0, err
	}
	ref := s.client.Doc(path)
	var next int64
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var cur int64
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if snap != nil && snap.Exists() {
			if v, err := snap.DataAt(field); err == nil {
				if n, ok := v.(int64); ok {
					cur = n
				}
			}
		}
		next = cur + delta
		return tx.Set(ref, map[string]any{field: next}, firestore.MergeAll)
	})
	if err != nil {
		return 0, fmt.Errorf("firestore increment %s: %w", path, err)
	}
	return next, nil
}

type snapshotDoc struct {
	snap *firestore.DocumentSnapshot
}

func (d snapshotDoc) ID() string           { return d.snap.Ref.ID }
func (d snapshotDoc) DataTo(dst any) error { return d.snap.DataTo(dst) }
