// Package mongostore 文档库后端：无多文档事务，计数用聚合管道原子更新，评论创建用先写后验证补偿。
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quillpress/internal/domain"
)

type Store struct {
	db  *mongo.Database
	now func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }}
}

func (s *Store) Users() *UserRepo       { return &UserRepo{s: s, c: s.db.Collection("users")} }
func (s *Store) Posts() *PostRepo       { return &PostRepo{s: s, c: s.db.Collection("posts")} }
func (s *Store) Tags() *TagRepo         { return &TagRepo{s: s, c: s.db.Collection("tags")} }
func (s *Store) Comments() *CommentRepo { return &CommentRepo{s: s, c: s.db.Collection("comments")} }

// EnsureIndexes 唯一约束由索引保证
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		"posts": {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "authorId", Value: 1}}},
			{Keys: bson.D{{Key: "tagIds", Value: 1}}},
		},
		"tags": {
			{Keys: bson.D{{Key: "nameKey", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique},
		},
		"comments": {
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "parentId", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.NotFound(entity)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return err
}

// dupField 从冲突信息里的索引名判断字段
func dupField(err error, entity string, fields ...string) error {
	if !mongo.IsDuplicateKeyError(err) {
		return translate(err, entity)
	}
	msg := err.Error()
	for _, f := range fields {
		if strings.Contains(msg, f+"_1") {
			return &domain.DuplicateKeyError{Field: strings.TrimSuffix(f, "Key"), Err: err}
		}
	}
	return &domain.DuplicateKeyError{Field: fields[0], Err: err}
}

// floorInc 聚合管道更新：field = max(0, field + delta)
func floorInc(field string, delta int64, extra ...bson.E) mongo.Pipeline {
	set := bson.D{{Key: field, Value: bson.D{{Key: "$max", Value: bson.A{0, bson.D{{Key: "$add", Value: bson.A{"$" + field, delta}}}}}}}}
	set = append(set, extra...)
	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}

func matched(res *mongo.UpdateResult, err error, entity string) error {
	if err != nil {
		return translate(err, entity)
	}
	if res.MatchedCount == 0 {
		return domain.NotFound(entity)
	}
	return nil
}

// swapped 条件更新没匹配时再查一次，区分文档不存在与计数已变
func swapped(ctx context.Context, c *mongo.Collection, res *mongo.UpdateResult, err error, entity, id string) error {
	if err != nil {
		return translate(err, entity)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := c.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return translate(err, entity)
	}
	if n == 0 {
		return domain.NotFound(entity)
	}
	return domain.ErrCounterMoved
}

func pageOpts(offset, limit int, sort bson.D) *options.FindOptions {
	o := options.Find().SetSort(sort)
	if offset > 0 {
		o.SetSkip(int64(offset))
	}
	if limit > 0 {
		o.SetLimit(int64(limit))
	}
	return o
}

func slugFamily(base string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"slug": base},
		bson.M{"slug": bson.M{"$regex": "^" + regexp.QuoteMeta(base) + "-"}},
	}}
}

func pluckSlugs(ctx context.Context, c *mongo.Collection, base, entity string) ([]string, error) {
	cur, err := c.Find(ctx, slugFamily(base), options.Find().SetProjection(bson.M{"slug": 1}).SetSort(bson.D{{Key: "slug", Value: 1}}))
	if err != nil {
		return nil, translate(err, entity)
	}
	var rows []struct {
		Slug string `bson:"slug"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, translate(err, entity)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Slug)
	}
	return out, nil
}
