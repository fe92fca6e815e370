package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"quillpress/internal/domain"
)

type postDoc struct {
	ID              string     `bson:"_id"`
	Title           string     `bson:"title"`
	Content         string     `bson:"content"`
	Slug            string     `bson:"slug"`
	Excerpt         string     `bson:"excerpt"`
	ExcerptExplicit bool       `bson:"excerptExplicit"`
	ReadingTime     int        `bson:"readingTime"`
	AuthorID        string     `bson:"authorId"`
	TagIDs          []string   `bson:"tagIds"`
	Status          string     `bson:"status"`
	PublishedAt     *time.Time `bson:"publishedAt,omitempty"`
	CoverImage      string     `bson:"coverImage,omitempty"`
	ViewCount       int64      `bson:"viewCount"`
	LikeCount       int64      `bson:"likeCount"`
	CommentCount    int64      `bson:"commentCount"`
	CreatedAt       time.Time  `bson:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt"`
}

func (d *postDoc) domain() *domain.Post {
	tags := d.TagIDs
	if tags == nil {
		tags = []string{}
	}
	return &domain.Post{
		ID: d.ID, Title: d.Title, Content: d.Content, Slug: d.Slug,
		Excerpt: d.Excerpt, ExcerptExplicit: d.ExcerptExplicit, ReadingTime: d.ReadingTime,
		AuthorID: d.AuthorID, TagIDs: tags, Status: domain.PostStatus(d.Status),
		PublishedAt: d.PublishedAt, CoverImage: d.CoverImage,
		ViewCount: d.ViewCount, LikeCount: d.LikeCount, CommentCount: d.CommentCount,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

// counterKeys 领域计数名到文档字段
var counterKeys = map[domain.PostCounter]string{
	domain.CounterViews:    "viewCount",
	domain.CounterLikes:    "likeCount",
	domain.CounterComments: "commentCount",
}

type PostRepo struct {
	s *Store
	c *mongo.Collection
}

var _ domain.PostRepository = (*PostRepo)(nil)

func (r *PostRepo) Insert(ctx context.Context, p *domain.Post) error {
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	p.ViewCount, p.LikeCount, p.CommentCount = 0, 0, 0
	if p.TagIDs == nil {
		p.TagIDs = []string{}
	}
	d := postDoc{
		ID: p.ID, Title: p.Title, Content: p.Content, Slug: p.Slug,
		Excerpt: p.Excerpt, ExcerptExplicit: p.ExcerptExplicit, ReadingTime: p.ReadingTime,
		AuthorID: p.AuthorID, TagIDs: p.TagIDs, Status: string(p.Status),
		PublishedAt: p.PublishedAt, CoverImage: p.CoverImage,
		CreatedAt: now, UpdatedAt: now,
	}
	_, err := r.c.InsertOne(ctx, d)
	return dupField(err, "post", "slug")
}

func (r *PostRepo) findOne(ctx context.Context, filter bson.M) (*domain.Post, error) {
	var d postDoc
	if err := r.c.FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, translate(err, "post")
	}
	return d.domain(), nil
}

func (r *PostRepo) FindByID(ctx context.Context, id string) (*domain.Post, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *PostRepo) FindBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *PostRepo) SlugsWithPrefix(ctx context.Context, base string) ([]string, error) {
	return pluckSlugs(ctx, r.c, base, "post")
}

// Update 只 $set 内容字段，计数字段由原子增量维护
func (r *PostRepo) Update(ctx context.Context, p *domain.Post) error {
	p.UpdatedAt = r.s.now()
	tags := p.TagIDs
	if tags == nil {
		tags = []string{}
	}
	res, err := r.c.UpdateByID(ctx, p.ID, bson.M{"$set": bson.M{
		"title":           p.Title,
		"content":         p.Content,
		"slug":            p.Slug,
		"excerpt":         p.Excerpt,
		"excerptExplicit": p.ExcerptExplicit,
		"readingTime":     p.ReadingTime,
		"tagIds":          tags,
		"status":          string(p.Status),
		"publishedAt":     p.PublishedAt,
		"coverImage":      p.CoverImage,
		"updatedAt":       p.UpdatedAt,
	}})
	if err != nil {
		return dupField(err, "post", "slug")
	}
	return matched(res, nil, "post")
}

func (r *PostRepo) Delete(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "post")
	}
	if res.DeletedCount == 0 {
		return domain.NotFound("post")
	}
	return nil
}

func (r *PostRepo) List(ctx context.Context, f domain.PostFilter) ([]domain.Post, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.AuthorID != "" {
		filter["authorId"] = f.AuthorID
	}
	if f.TagID != "" {
		filter["tagIds"] = f.TagID
	}
	total, err := r.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translate(err, "post")
	}
	cur, err := r.c.Find(ctx, filter, pageOpts(f.Offset, f.Limit, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, 0, translate(err, "post")
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, translate(err, "post")
	}
	out := make([]domain.Post, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].domain())
	}
	return out, total, nil
}

func (r *PostRepo) AddCounter(ctx context.Context, id string, c domain.PostCounter, delta int64) error {
	key, ok := counterKeys[c]
	if !ok {
		return domain.NewValidationError("counter", "unknown counter "+string(c))
	}
	res, err := r.c.UpdateByID(ctx, id, floorInc(key, delta))
	return matched(res, err, "post")
}

func (r *PostRepo) SetCounter(ctx context.Context, id string, c domain.PostCounter, was, value int64) error {
	key, ok := counterKeys[c]
	if !ok {
		return domain.NewValidationError("counter", "unknown counter "+string(c))
	}
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": id, key: was}, bson.M{"$set": bson.M{key: max(value, 0)}})
	return swapped(ctx, r.c, res, err, "post", id)
}

func (r *PostRepo) CountWithTag(ctx context.Context, tagID string) (int64, error) {
	n, err := r.c.CountDocuments(ctx, bson.M{"tagIds": tagID})
	return n, translate(err, "post")
}
