package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adobe/spacecat-shared-sub005/store"
)

// stubClient records requests and answers from canned outputs.
type stubClient struct {
	gets    []*dynamodb.GetItemInput
	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput
	deletes []*dynamodb.DeleteItemInput
	queries []*dynamodb.QueryInput

	getOut    *dynamodb.GetItemOutput
	updateOut *dynamodb.UpdateItemOutput
	pages     []*dynamodb.QueryOutput
	err       error
}

func (c *stubClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.gets = append(c.gets, in)
	if c.err != nil {
		return nil, c.err
	}
	if c.getOut == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return c.getOut, nil
}

func (c *stubClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.puts = append(c.puts, in)
	return &dynamodb.PutItemOutput{}, c.err
}

func (c *stubClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.updates = append(c.updates, in)
	if c.err != nil {
		return nil, c.err
	}
	if c.updateOut == nil {
		return &dynamodb.UpdateItemOutput{}, nil
	}
	return c.updateOut, nil
}

func (c *stubClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.deletes = append(c.deletes, in)
	return &dynamodb.DeleteItemOutput{}, c.err
}

func (c *stubClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.queries = append(c.queries, in)
	if c.err != nil {
		return nil, c.err
	}
	n := len(c.queries) - 1
	if n >= len(c.pages) {
		return &dynamodb.QueryOutput{}, nil
	}
	return c.pages[n], nil
}

func widgetDef() *store.EntityDef {
	return &store.EntityDef{
		Service: "SpaceCat",
		Entity:  "widget",
		Version: "1",
		Indexes: []store.IndexDef{
			{
				Name: store.PrimaryIndex,
				PK:   store.KeyDef{Field: "pk", Facets: []string{"widgetId"}},
				SK:   store.KeyDef{Field: "sk"},
			},
			{
				Name:      "bySiteId",
				IndexName: "spacecat-data-widget-bySiteId",
				PK:        store.KeyDef{Field: "gsi1pk", Facets: []string{"siteId"}},
				SK:        store.KeyDef{Field: "gsi1sk", Facets: []string{"updatedAt"}},
			},
		},
	}
}

func stringAttr(t *testing.T, item map[string]types.AttributeValue, name string) string {
	t.Helper()
	v, ok := item[name].(*types.AttributeValueMemberS)
	require.Truef(t, ok, "attribute %s is not a string", name)
	return v.Value
}

func valueStrings(values map[string]types.AttributeValue) []string {
	var out []string
	for _, v := range values {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			out = append(out, s.Value)
		}
	}
	return out
}

func TestNew_AppliesDefaults(t *testing.T) {
	s := store.New(&stubClient{}, store.Config{})
	assert.Equal(t, "spacecat-services-data", s.Config().TableName)
	assert.Equal(t, int32(100), s.Config().PageSize)
}

func TestPut_WritesCompositeKeysAndMarkers(t *testing.T) {
	client := &stubClient{}
	s := store.New(client, store.DefaultConfig())

	err := s.Put(context.Background(), widgetDef(), store.Record{
		"widgetId":  "w1",
		"siteId":    "S1",
		"updatedAt": "2024-01-01T00:00:00.000Z",
		"name":      "Widget",
	})
	require.NoError(t, err)
	require.Len(t, client.puts, 1)

	item := client.puts[0].Item
	assert.Equal(t, "$spacecat#widgetid_w1", stringAttr(t, item, "pk"))
	assert.Equal(t, "$widget_1", stringAttr(t, item, "sk"))
	assert.Equal(t, "$spacecat#siteid_s1", stringAttr(t, item, "gsi1pk"))
	assert.Equal(t, "$widget_1#updatedat_2024-01-01t00:00:00.000z", stringAttr(t, item, "gsi1sk"))
	assert.Equal(t, "widget", stringAttr(t, item, store.EntityAttr))
	assert.Equal(t, "1", stringAttr(t, item, store.VersionAttr))
	assert.Equal(t, "Widget", stringAttr(t, item, "name"))
	assert.Contains(t, aws.ToString(client.puts[0].ConditionExpression), "attribute_not_exists")
}

func TestPut_SkipsIncompleteSecondaryIndex(t *testing.T) {
	client := &stubClient{}
	s := store.New(client, store.DefaultConfig())

	err := s.Put(context.Background(), widgetDef(), store.Record{"widgetId": "w1"})
	require.NoError(t, err)

	_, ok := client.puts[0].Item["gsi1pk"]
	assert.False(t, ok, "sparse index key should not be written")
}

func TestPut_MissingPrimaryKey(t *testing.T) {
	s := store.New(&stubClient{}, store.DefaultConfig())

	err := s.Put(context.Background(), widgetDef(), store.Record{"siteId": "s1"})
	assert.ErrorIs(t, err, store.ErrMissingKey)
}

func TestPut_AlreadyExists(t *testing.T) {
	client := &stubClient{err: &types.ConditionalCheckFailedException{}}
	s := store.New(client, store.DefaultConfig())

	err := s.Put(context.Background(), widgetDef(), store.Record{"widgetId": "w1"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestGet_DecodesRecord(t *testing.T) {
	raw, err := attributevalue.MarshalMap(map[string]any{
		"pk":             "$spacecat#widgetid_w1",
		"sk":             "$widget_1",
		"gsi1pk":         "$spacecat#siteid_s1",
		store.EntityAttr: "widget",
		"widgetId":       "w1",
		"count":          3,
	})
	require.NoError(t, err)

	client := &stubClient{getOut: &dynamodb.GetItemOutput{Item: raw}}
	s := store.New(client, store.DefaultConfig())

	rec, err := s.Get(context.Background(), widgetDef(), store.Record{"widgetId": "w1"})
	require.NoError(t, err)
	assert.Equal(t, store.Record{"widgetId": "w1", "count": float64(3)}, rec)
	assert.Equal(t, "$spacecat#widgetid_w1", stringAttr(t, client.gets[0].Key, "pk"))
}

func TestGet_NotFound(t *testing.T) {
	s := store.New(&stubClient{}, store.DefaultConfig())

	_, err := s.Get(context.Background(), widgetDef(), store.Record{"widgetId": "nope"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGet_PropagatesClientError(t *testing.T) {
	boom := errors.New("throttled")
	s := store.New(&stubClient{err: boom}, store.DefaultConfig())

	_, err := s.Get(context.Background(), widgetDef(), store.Record{"widgetId": "w1"})
	assert.ErrorIs(t, err, boom)
}

func TestQuery_DerivesIndexFromKeys(t *testing.T) {
	page1, err := attributevalue.MarshalMap(map[string]any{"widgetId": "w1", "siteId": "s1", "gsi1sk": "x"})
	require.NoError(t, err)
	page2, err := attributevalue.MarshalMap(map[string]any{"widgetId": "w2", "siteId": "s1"})
	require.NoError(t, err)

	client := &stubClient{pages: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{page1}, LastEvaluatedKey: map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "more"}}},
		{Items: []map[string]types.AttributeValue{page2}},
	}}
	s := store.New(client, store.DefaultConfig())

	recs, err := s.Query(context.Background(), widgetDef(), store.Record{"siteId": "s1"}, store.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "w1", recs[0]["widgetId"])
	assert.NotContains(t, recs[0], "gsi1sk")

	in := client.queries[0]
	assert.Equal(t, "spacecat-data-widget-bySiteId", aws.ToString(in.IndexName))
	assert.False(t, aws.ToBool(in.ScanIndexForward), "default order is descending")
	assert.Contains(t, aws.ToString(in.KeyConditionExpression), "begins_with")
	assert.NotNil(t, in.FilterExpression)
	assert.Contains(t, valueStrings(in.ExpressionAttributeValues), "$spacecat#siteid_s1")
	assert.Contains(t, valueStrings(in.ExpressionAttributeValues), "$widget_1")
	assert.Contains(t, valueStrings(in.ExpressionAttributeValues), "widget")
}

func TestQuery_SortPrefixAndLimit(t *testing.T) {
	a, _ := attributevalue.MarshalMap(map[string]any{"widgetId": "a"})
	b, _ := attributevalue.MarshalMap(map[string]any{"widgetId": "b"})
	client := &stubClient{pages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{a, b}}}}
	s := store.New(client, store.DefaultConfig())

	recs, err := s.Query(context.Background(), widgetDef(),
		store.Record{"siteId": "s1", "updatedAt": "2024"},
		store.QueryOptions{Order: store.OrderAsc, Limit: 1, Attributes: []string{"widgetId"}},
	)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	in := client.queries[0]
	assert.True(t, aws.ToBool(in.ScanIndexForward))
	assert.NotNil(t, in.ProjectionExpression)
	assert.Contains(t, valueStrings(in.ExpressionAttributeValues), "$widget_1#updatedat_2024")
}

func TestQuery_Between(t *testing.T) {
	client := &stubClient{}
	s := store.New(client, store.DefaultConfig())

	_, err := s.Query(context.Background(), widgetDef(), store.Record{"siteId": "s1"}, store.QueryOptions{
		Between: &store.Between{Attribute: "updatedAt", Start: "2024-01", End: "2024-02"},
	})
	require.NoError(t, err)

	in := client.queries[0]
	assert.Contains(t, aws.ToString(in.KeyConditionExpression), "BETWEEN")
	values := valueStrings(in.ExpressionAttributeValues)
	assert.Contains(t, values, "$widget_1#updatedat_2024-01")
	assert.Contains(t, values, "$widget_1#updatedat_2024-02")
}

func TestQuery_UnknownIndex(t *testing.T) {
	s := store.New(&stubClient{}, store.DefaultConfig())

	_, err := s.Query(context.Background(), widgetDef(), store.Record{"siteId": "s1"}, store.QueryOptions{Index: "byNothing"})
	assert.ErrorIs(t, err, store.ErrIndexNotFound)

	_, err = s.Query(context.Background(), widgetDef(), store.Record{"color": "red"}, store.QueryOptions{})
	assert.ErrorIs(t, err, store.ErrIndexNotFound)
}

func TestPatch_RebuildsTouchedIndexKeys(t *testing.T) {
	client := &stubClient{updateOut: &dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{
			"updatedAt": &types.AttributeValueMemberS{Value: "2025"},
			"gsi1pk":    &types.AttributeValueMemberS{Value: "$spacecat#siteid_s1"},
		},
	}}
	s := store.New(client, store.DefaultConfig())

	p := store.NewPatch(store.Record{"widgetId": "w1"}).
		Set("updatedAt", "2025").
		Composite(store.Record{"siteId": "s1"})

	out, err := s.Patch(context.Background(), widgetDef(), p)
	require.NoError(t, err)
	assert.Equal(t, store.Record{"updatedAt": "2025"}, out)

	in := client.updates[0]
	assert.Equal(t, "$spacecat#widgetid_w1", stringAttr(t, in.Key, "pk"))
	assert.Equal(t, types.ReturnValueUpdatedNew, in.ReturnValues)
	values := valueStrings(in.ExpressionAttributeValues)
	assert.Contains(t, values, "$spacecat#siteid_s1")
	assert.Contains(t, values, "$widget_1#updatedat_2025")
	assert.Contains(t, aws.ToString(in.ConditionExpression), "attribute_exists")
}

func TestPatch_ComputedAttributes(t *testing.T) {
	client := &stubClient{}
	s := store.New(client, store.DefaultConfig())

	def := widgetDef()
	def.Computed = map[string]func() any{"updatedAt": func() any { return "stamp" }}

	_, err := s.Patch(context.Background(), def, store.NewPatch(store.Record{"widgetId": "w1"}).Set("name", "x"))
	require.NoError(t, err)

	values := valueStrings(client.updates[0].ExpressionAttributeValues)
	assert.Contains(t, values, "stamp")
	assert.Contains(t, values, "x")
	for _, v := range values {
		assert.NotContains(t, v, "$spacecat#siteid", "index without resolvable facets keeps its key")
	}
}

func TestPatch_EmptyIsNoop(t *testing.T) {
	client := &stubClient{}
	s := store.New(client, store.DefaultConfig())

	_, err := s.Patch(context.Background(), widgetDef(), store.NewPatch(store.Record{"widgetId": "w1"}))
	require.NoError(t, err)
	assert.Empty(t, client.updates)
}

func TestPatch_MissingItem(t *testing.T) {
	client := &stubClient{err: &types.ConditionalCheckFailedException{}}
	s := store.New(client, store.DefaultConfig())

	_, err := s.Patch(context.Background(), widgetDef(), store.NewPatch(store.Record{"widgetId": "w1"}).Set("name", "x"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete(t *testing.T) {
	client := &stubClient{}
	s := store.New(client, store.DefaultConfig())

	require.NoError(t, s.Delete(context.Background(), widgetDef(), store.Record{"widgetId": "w1"}))
	require.Len(t, client.deletes, 1)
	assert.Equal(t, "$spacecat#widgetid_w1", stringAttr(t, client.deletes[0].Key, "pk"))
	assert.Equal(t, "$widget_1", stringAttr(t, client.deletes[0].Key, "sk"))

	err := s.Delete(context.Background(), widgetDef(), store.Record{})
	assert.ErrorIs(t, err, store.ErrMissingKey)
}
