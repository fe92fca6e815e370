package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quillpress/internal/domain"
)

type commentDoc struct {
	ID        string    `bson:"_id"`
	PostID    string    `bson:"postId"`
	AuthorID  string    `bson:"authorId"`
	ParentID  *string   `bson:"parentId"`
	Content   string    `bson:"content"`
	Status    string    `bson:"status"`
	LikeCount int64     `bson:"likeCount"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d *commentDoc) domain() *domain.Comment {
	return &domain.Comment{
		ID: d.ID, PostID: d.PostID, AuthorID: d.AuthorID, ParentID: d.ParentID,
		Content: d.Content, Status: domain.CommentStatus(d.Status), LikeCount: d.LikeCount,
		Replies: []string{}, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

var byCreated = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

type CommentRepo struct {
	s *Store
	c *mongo.Collection
}

var _ domain.CommentRepository = (*CommentRepo)(nil)

func (r *CommentRepo) exists(ctx context.Context, coll *mongo.Collection, filter bson.M) (bool, error) {
	n, err := coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}

// parentsAlive 文章与父评论（如有）都还在
func (r *CommentRepo) parentsAlive(ctx context.Context, c *domain.Comment) error {
	ok, err := r.exists(ctx, r.s.db.Collection("posts"), bson.M{"_id": c.PostID})
	if err != nil {
		return translate(err, "post")
	}
	if !ok {
		return domain.NotFound("post")
	}
	if c.ParentID == nil {
		return nil
	}
	ok, err = r.exists(ctx, r.c, bson.M{"_id": *c.ParentID, "postId": c.PostID})
	if err != nil {
		return translate(err, "comment")
	}
	if !ok {
		return domain.NotFound("parent comment")
	}
	return nil
}

// Create 没有多文档事务：先检查，插入，再复查；复查发现父节点已被删则撤回插入
func (r *CommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	if err := r.parentsAlive(ctx, c); err != nil {
		return err
	}
	now := r.s.now()
	c.CreatedAt, c.UpdatedAt, c.Replies = now, now, []string{}
	d := commentDoc{
		ID: c.ID, PostID: c.PostID, AuthorID: c.AuthorID, ParentID: c.ParentID,
		Content: c.Content, Status: string(c.Status), CreatedAt: now, UpdatedAt: now,
	}
	if _, err := r.c.InsertOne(ctx, d); err != nil {
		return translate(err, "comment")
	}
	if err := r.parentsAlive(ctx, c); err != nil {
		_, _ = r.c.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": c.ID})
		return err
	}
	return nil
}

func (r *CommentRepo) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]domain.Comment, error) {
	cur, err := r.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, translate(err, "comment")
	}
	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "comment")
	}
	return r.withReplies(ctx, docs)
}

func (r *CommentRepo) withReplies(ctx context.Context, docs []commentDoc) ([]domain.Comment, error) {
	out := make([]domain.Comment, 0, len(docs))
	if len(docs) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	cur, err := r.c.Find(ctx, bson.M{"parentId": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1, "parentId": 1}).SetSort(byCreated))
	if err != nil {
		return nil, translate(err, "comment")
	}
	var kids []commentDoc
	if err := cur.All(ctx, &kids); err != nil {
		return nil, translate(err, "comment")
	}
	replies := make(map[string][]string, len(docs))
	for _, k := range kids {
		replies[*k.ParentID] = append(replies[*k.ParentID], k.ID)
	}
	for i := range docs {
		c := docs[i].domain()
		if ids := replies[c.ID]; ids != nil {
			c.Replies = ids
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *CommentRepo) FindByID(ctx context.Context, id string) (*domain.Comment, error) {
	var d commentDoc
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, translate(err, "comment")
	}
	out, err := r.withReplies(ctx, []commentDoc{d})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (r *CommentRepo) ListByPost(ctx context.Context, postID string, statuses []domain.CommentStatus) ([]domain.Comment, error) {
	filter := bson.M{"postId": postID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	return r.find(ctx, filter, options.Find().SetSort(byCreated))
}

func (r *CommentRepo) Children(ctx context.Context, parentID string) ([]domain.Comment, error) {
	return r.find(ctx, bson.M{"parentId": parentID}, options.Find().SetSort(byCreated))
}

func (r *CommentRepo) ListByStatus(ctx context.Context, status domain.CommentStatus, offset, limit int) ([]domain.Comment, int64, error) {
	filter := bson.M{"status": string(status)}
	total, err := r.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translate(err, "comment")
	}
	out, err := r.find(ctx, filter, pageOpts(offset, limit, byCreated))
	return out, total, err
}

// Transition 单文档条件更新即比较并设置
func (r *CommentRepo) Transition(ctx context.Context, id string, from []domain.CommentStatus, to domain.CommentStatus) error {
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": string(to), "updatedAt": r.s.now()}})
	if err != nil {
		return translate(err, "comment")
	}
	if res.MatchedCount > 0 {
		return nil
	}
	ok, err := r.exists(ctx, r.c, bson.M{"_id": id})
	if err != nil {
		return translate(err, "comment")
	}
	if !ok {
		return domain.NotFound("comment")
	}
	return domain.ErrInvalidTransition
}

// DeleteTree 删除根及全部后代；删除后继续清扫父节点已不存在的回复，
// 覆盖 Create 在扫描之后、DeleteMany 之前插入的那一条
func (r *CommentRepo) DeleteTree(ctx context.Context, rootID string) (*domain.Comment, int, error) {
	var d commentDoc
	if err := r.c.FindOne(ctx, bson.M{"_id": rootID}).Decode(&d); err != nil {
		return nil, 0, translate(err, "comment")
	}
	n, err := sweepTree(ctx, rootID, r.childIDs, r.deleteIDs)
	if err != nil {
		return nil, 0, translate(err, "comment")
	}
	if n == 0 {
		return nil, 0, domain.NotFound("comment")
	}
	return d.domain(), int(n), nil
}

func (r *CommentRepo) childIDs(ctx context.Context, parents []string) ([]string, error) {
	cur, err := r.c.Find(ctx, bson.M{"parentId": bson.M{"$in": parents}}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var kids []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &kids); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(kids))
	for _, k := range kids {
		ids = append(ids, k.ID)
	}
	return ids, nil
}

func (r *CommentRepo) deleteIDs(ctx context.Context, ids []string) (int64, error) {
	res, err := r.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

type (
	childrenFunc func(ctx context.Context, parents []string) ([]string, error)
	deleteFunc   func(ctx context.Context, ids []string) (int64, error)
)

// descendants 逐层展开，不含 parents 本身
func descendants(ctx context.Context, parents []string, children childrenFunc) ([]string, error) {
	var all []string
	for frontier := parents; len(frontier) > 0; {
		kids, err := children(ctx, frontier)
		if err != nil {
			return nil, err
		}
		all = append(all, kids...)
		frontier = kids
	}
	return all, nil
}

// sweepTree 每轮删除一批，再找父节点落在这批里的回复，直到一轮找不到为止
func sweepTree(ctx context.Context, rootID string, children childrenFunc, del deleteFunc) (int64, error) {
	kids, err := descendants(ctx, []string{rootID}, children)
	if err != nil {
		return 0, err
	}
	batch := append([]string{rootID}, kids...)
	var total int64
	for len(batch) > 0 {
		n, err := del(ctx, batch)
		if err != nil {
			return total, err
		}
		total += n
		if batch, err = descendants(ctx, batch, children); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *CommentRepo) DeleteByPost(ctx context.Context, postID string) (int64, error) {
	res, err := r.c.DeleteMany(ctx, bson.M{"postId": postID})
	if err != nil {
		return 0, translate(err, "comment")
	}
	return res.DeletedCount, nil
}

func (r *CommentRepo) AddLikes(ctx context.Context, id string, delta int64) error {
	res, err := r.c.UpdateByID(ctx, id, floorInc("likeCount", delta))
	return matched(res, err, "comment")
}

func (r *CommentRepo) CountTopLevel(ctx context.Context, postID string) (int64, error) {
	n, err := r.c.CountDocuments(ctx, bson.M{"postId": postID, "parentId": nil})
	return n, translate(err, "comment")
}
