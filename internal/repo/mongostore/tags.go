package mongostore

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quillpress/internal/domain"
)

type tagDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	NameKey   string    `bson:"nameKey"`
	Slug      string    `bson:"slug"`
	PostCount int64     `bson:"postCount"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d *tagDoc) domain() *domain.Tag {
	return &domain.Tag{ID: d.ID, Name: d.Name, Slug: d.Slug, PostCount: d.PostCount, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func nameKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

type TagRepo struct {
	s *Store
	c *mongo.Collection
}

var _ domain.TagRepository = (*TagRepo)(nil)

func (r *TagRepo) Insert(ctx context.Context, t *domain.Tag) error {
	now := r.s.now()
	t.CreatedAt, t.UpdatedAt, t.PostCount = now, now, 0
	_, err := r.c.InsertOne(ctx, tagDoc{ID: t.ID, Name: t.Name, NameKey: nameKey(t.Name), Slug: t.Slug, CreatedAt: now, UpdatedAt: now})
	return dupField(err, "tag", "nameKey", "slug")
}

func (r *TagRepo) findOne(ctx context.Context, filter bson.M) (*domain.Tag, error) {
	var d tagDoc
	if err := r.c.FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, translate(err, "tag")
	}
	return d.domain(), nil
}

func (r *TagRepo) FindByID(ctx context.Context, id string) (*domain.Tag, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *TagRepo) FindBySlug(ctx context.Context, slug string) (*domain.Tag, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *TagRepo) FindByName(ctx context.Context, name string) (*domain.Tag, error) {
	return r.findOne(ctx, bson.M{"nameKey": nameKey(name)})
}

func (r *TagRepo) SlugsWithPrefix(ctx context.Context, base string) ([]string, error) {
	return pluckSlugs(ctx, r.c, base, "tag")
}

func (r *TagRepo) Update(ctx context.Context, t *domain.Tag) error {
	t.UpdatedAt = r.s.now()
	res, err := r.c.UpdateByID(ctx, t.ID, bson.M{"$set": bson.M{
		"name": t.Name, "nameKey": nameKey(t.Name), "slug": t.Slug, "updatedAt": t.UpdatedAt,
	}})
	if err != nil {
		return dupField(err, "tag", "nameKey", "slug")
	}
	return matched(res, nil, "tag")
}

// Delete 先删标签，再从文章的 tagIds 里摘掉
func (r *TagRepo) Delete(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "tag")
	}
	if res.DeletedCount == 0 {
		return domain.NotFound("tag")
	}
	_, err = r.s.db.Collection("posts").UpdateMany(ctx, bson.M{"tagIds": id}, bson.M{"$pull": bson.M{"tagIds": id}})
	return translate(err, "tag")
}

func (r *TagRepo) List(ctx context.Context) ([]domain.Tag, error) {
	cur, err := r.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "nameKey", Value: 1}}))
	if err != nil {
		return nil, translate(err, "tag")
	}
	var docs []tagDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "tag")
	}
	out := make([]domain.Tag, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].domain())
	}
	return out, nil
}

func (r *TagRepo) AddPostCount(ctx context.Context, id string, delta int64) error {
	res, err := r.c.UpdateByID(ctx, id, floorInc("postCount", delta))
	return matched(res, err, "tag")
}

func (r *TagRepo) SetPostCount(ctx context.Context, id string, was, value int64) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": id, "postCount": was}, bson.M{"$set": bson.M{"postCount": max(value, 0)}})
	return swapped(ctx, r.c, res, err, "tag", id)
}
