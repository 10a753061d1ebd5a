package store_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"safespace/store"
)

// fakeDynamo keeps items per table and understands just enough of the
// expressions the adapter sends.
type fakeDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]types.AttributeValue
	order    map[string][]string
	pageSize int
	scans    []*dynamodb.ScanInput
	failScan error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		tables:   make(map[string]map[string]map[string]types.AttributeValue),
		order:    make(map[string][]string),
		pageSize: 2,
	}
}

func keyOf(key map[string]types.AttributeValue) string {
	return key[store.FieldID].(*types.AttributeValueMemberS).Value
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
}

func (f *fakeDynamo) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := f.tables[name]
	if !ok {
		t = make(map[string]map[string]types.AttributeValue)
		f.tables[name] = t
	}
	return t
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(*in.TableName)
	id := keyOf(in.Item)
	if _, exists := t[id]; exists && in.ConditionExpression != nil {
		return nil, conditionFailed()
	}
	t[id] = in.Item
	f.order[*in.TableName] = append(f.order[*in.TableName], id)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.table(*in.TableName)[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.table(*in.TableName)[keyOf(in.Key)]
	if !ok {
		return nil, conditionFailed()
	}
	for _, assignment := range strings.Split(strings.TrimPrefix(*in.UpdateExpression, "SET "), ", ") {
		name, placeholder, _ := strings.Cut(assignment, " = ")
		item[in.ExpressionAttributeNames[name]] = in.ExpressionAttributeValues[placeholder]
	}
	return &dynamodb.UpdateItemOutput{Attributes: item}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(*in.TableName)
	id := keyOf(in.Key)
	if _, ok := t[id]; !ok {
		return nil, conditionFailed()
	}
	delete(t, id)
	f.order[*in.TableName] = slices.DeleteFunc(f.order[*in.TableName], func(s string) bool { return s == id })
	return &dynamodb.DeleteItemOutput{}, nil
}

// Scan ignores the filter expression and pages through every item in
// reverse insertion order.
func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failScan != nil {
		return nil, f.failScan
	}
	f.scans = append(f.scans, in)

	ids := slices.Clone(f.order[*in.TableName])
	slices.Reverse(ids)

	start := 0
	if in.ExclusiveStartKey != nil {
		start = slices.Index(ids, keyOf(in.ExclusiveStartKey)) + 1
	}
	end := min(start+f.pageSize, len(ids))

	out := &dynamodb.ScanOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, f.tables[*in.TableName][id])
	}
	if end < len(ids) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			store.FieldID: &types.AttributeValueMemberS{Value: ids[end-1]},
		}
	}
	return out, nil
}

func TestDynamoCreateGetUpdateDelete(t *testing.T) {
	t.Parallel()
	fake := newFakeDynamo()
	d := store.NewDynamo(fake, "safespace-", zaptest.NewLogger(t))
	ctx := t.Context()

	doc, err := d.Create(ctx, "posts", store.UniqueID, map[string]any{
		"caption": "hello",
		"likes":   []string{"u1"},
	})
	require.NoError(t, err)
	require.Contains(t, fake.tables, "safespace-posts")

	got, err := d.Get(ctx, "posts", doc.ID())
	require.NoError(t, err)
	assert.Equal(t, "hello", got["caption"])
	assert.Equal(t, []any{"u1"}, got["likes"])

	_, err = d.Create(ctx, "posts", doc.ID(), map[string]any{})
	require.ErrorIs(t, err, store.ErrConflict)

	updated, err := d.Update(ctx, "posts", doc.ID(), map[string]any{"caption": "bye", store.FieldID: "other"})
	require.NoError(t, err)
	assert.Equal(t, "bye", updated["caption"])
	assert.Equal(t, doc.ID(), updated.ID())

	_, err = d.Update(ctx, "posts", "missing", map[string]any{"caption": "x"})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, d.Delete(ctx, "posts", doc.ID()))
	require.ErrorIs(t, d.Delete(ctx, "posts", doc.ID()), store.ErrNotFound)

	_, err = d.Get(ctx, "posts", doc.ID())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDynamoListPagesAndFilters(t *testing.T) {
	t.Parallel()
	fake := newFakeDynamo()
	d := store.NewDynamo(fake, "", zaptest.NewLogger(t)).WithClock(tickingClock())
	ctx := t.Context()

	var ids []string
	for _, follower := range []string{"a", "b", "a", "a", "c"} {
		doc, err := d.Create(ctx, "followers", store.UniqueID, map[string]any{
			"followerId":  follower,
			"followingId": "target",
		})
		require.NoError(t, err)
		ids = append(ids, doc.ID())
	}

	list, err := d.List(ctx, "followers", store.Equal("followerId", "a"), store.Limit(2))
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Documents, 2)
	assert.Equal(t, ids[0], list.Documents[0].ID())
	assert.Equal(t, ids[2], list.Documents[1].ID())

	// Every scan page was requested and the equality filter was pushed down
	require.Len(t, fake.scans, 3)
	require.NotNil(t, fake.scans[0].FilterExpression)
	assert.Contains(t, *fake.scans[0].FilterExpression, "attribute_type(#f0, :list)")
	assert.Equal(t, "followerId", fake.scans[0].ExpressionAttributeNames["#f0"])
}

func TestDynamoListUnavailable(t *testing.T) {
	t.Parallel()
	fake := newFakeDynamo()
	fake.failScan = errors.New("connection reset")
	d := store.NewDynamo(fake, "", zaptest.NewLogger(t))

	_, err := d.List(t.Context(), "posts")
	require.ErrorIs(t, err, store.ErrUnavailable)
}
