package mongostore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"quillpress/internal/domain"
)

func dupErr(index string) error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: quillpress.tags index: " + index + " dup key",
	}}}
}

func TestDupField(t *testing.T) {
	var de *domain.DuplicateKeyError

	err := dupField(dupErr("nameKey_1"), "tag", "nameKey", "slug")
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "name", de.Field)

	err = dupField(dupErr("slug_1"), "tag", "nameKey", "slug")
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "slug", de.Field)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	assert.NoError(t, dupField(nil, "tag", "slug"))
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(mongo.ErrNoDocuments, "post"), domain.ErrNotFound)
	assert.ErrorIs(t, translate(context.DeadlineExceeded, "post"), domain.ErrTransient)
	other := errors.New("boom")
	assert.Equal(t, other, translate(other, "post"))
}

func TestFloorInc(t *testing.T) {
	p := floorInc("commentCount", -1)
	require.Len(t, p, 1)
	stage := p[0]
	assert.Equal(t, "$set", stage[0].Key)
	set := stage[0].Value.(bson.D)
	assert.Equal(t, "commentCount", set[0].Key)

	raw, err := bson.Marshal(bson.D{{Key: "u", Value: set}})
	require.NoError(t, err)
	assert.Contains(t, bson.Raw(raw).String(), `"$max"`)
}

func TestSlugFamilyQuotesBase(t *testing.T) {
	f := slugFamily("a.b")
	or := f["$or"].(bson.A)
	re := or[1].(bson.M)["slug"].(bson.M)["$regex"]
	assert.Equal(t, `^a\.b-`, re)
}

func TestUserDocRole(t *testing.T) {
	d := userDoc{ID: "u1", Role: "super_admin", Active: true}
	u := d.domain()
	assert.Equal(t, domain.RoleSuperAdmin, u.Role)
}

// fakeThread 以 id -> parentId 表示评论，供 sweepTree 使用
type fakeThread struct {
	parent  map[string]string
	onFirst func()
}

func (f *fakeThread) children(_ context.Context, parents []string) ([]string, error) {
	var out []string
	for id, p := range f.parent {
		for _, want := range parents {
			if p == want {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (f *fakeThread) delete(_ context.Context, ids []string) (int64, error) {
	if h := f.onFirst; h != nil {
		f.onFirst = nil
		h()
	}
	var n int64
	for _, id := range ids {
		if _, ok := f.parent[id]; ok {
			delete(f.parent, id)
			n++
		}
	}
	return n, nil
}

func TestSweepTree_RemovesReplyInsertedAfterScan(t *testing.T) {
	f := &fakeThread{parent: map[string]string{"root": "", "a": "root", "b": "a", "other": ""}}
	f.onFirst = func() {
		f.parent["late"] = "b"
		f.parent["later"] = "late"
	}
	n, err := sweepTree(context.Background(), "root", f.children, f.delete)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, map[string]string{"other": ""}, f.parent)
}

func TestSweepTree_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := sweepTree(context.Background(), "root",
		func(context.Context, []string) ([]string, error) { return nil, boom },
		func(context.Context, []string) (int64, error) { return 0, nil })
	assert.ErrorIs(t, err, boom)
}
