package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Store lays entities out in a single DynamoDB table with composite keys.
type Store struct {
	client Client
	config Config
}

// New creates a new Store instance.
func New(client Client, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.config
}

// Get fetches the item whose primary key is composed from key.
func (s *Store) Get(ctx context.Context, def *EntityDef, key Record) (Record, error) {
	k, err := s.primaryKey(def, key)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.TableName),
		Key:            k,
		ConsistentRead: aws.Bool(s.config.ConsistentRead),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	return DecodeItem(def, result.Item)
}

// Query returns the records of def matching keys on one index.
//
// Partition facets must all be present in keys. Sort facets are matched as a
// prefix: composition stops at the first sort facet missing from keys.
func (s *Store) Query(ctx context.Context, def *EntityDef, keys Record, opts QueryOptions) ([]Record, error) {
	idx, err := s.resolveIndex(def, keys, opts.Index)
	if err != nil {
		return nil, err
	}

	pk, ok := composeKey(def.partitionPrefix(), idx.PK, keys)
	if !ok {
		return nil, fmt.Errorf("%w: partition key of index %s", ErrMissingKey, idx.Name)
	}
	skPrefix, _ := composeKey(def.sortPrefix(), idx.SK, keys)

	keyCond := expression.Key(idx.PK.Field).Equal(expression.Value(pk))
	if idx.SK.Field != "" {
		if b := opts.Between; b != nil {
			lo, _ := composeKey(skPrefix, KeyDef{Facets: []string{b.Attribute}}, Record{b.Attribute: b.Start})
			hi, _ := composeKey(skPrefix, KeyDef{Facets: []string{b.Attribute}}, Record{b.Attribute: b.End})
			keyCond = keyCond.And(expression.Key(idx.SK.Field).Between(expression.Value(lo), expression.Value(hi)))
		} else {
			keyCond = keyCond.And(expression.Key(idx.SK.Field).BeginsWith(skPrefix))
		}
	}

	builder := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithFilter(expression.Name(EntityAttr).Equal(expression.Value(def.Entity)))
	if len(opts.Attributes) > 0 {
		names := make([]expression.NameBuilder, len(opts.Attributes))
		for i, a := range opts.Attributes {
			names[i] = expression.Name(a)
		}
		builder = builder.WithProjection(expression.NamesList(names[0], names[1:]...))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(opts.Order == OrderAsc),
		Limit:                     aws.Int32(s.config.PageSize),
	}
	if idx.IndexName != "" {
		input.IndexName = aws.String(idx.IndexName)
	} else {
		input.ConsistentRead = aws.Bool(s.config.ConsistentRead)
	}

	var records []Record
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			rec, err := DecodeItem(def, raw)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
			if opts.Limit > 0 && len(records) == opts.Limit {
				return records, nil
			}
		}
	}

	return records, nil
}

// Put writes a new item. Keys of every index whose facets are all present
// are written alongside; the primary key is mandatory.
func (s *Store) Put(ctx context.Context, def *EntityDef, rec Record) error {
	primary, err := def.Primary()
	if err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	for _, idx := range def.Indexes {
		pk, sk, complete := def.indexKeys(idx, rec)
		if !complete {
			if idx.Name == PrimaryIndex {
				return fmt.Errorf("%w: primary key of %s", ErrMissingKey, def.Entity)
			}
			continue
		}
		setKey(item, idx, pk, sk)
	}
	item[EntityAttr] = &types.AttributeValueMemberS{Value: def.Entity}
	item[VersionAttr] = &types.AttributeValueMemberS{Value: def.Version}

	cond := expression.AttributeNotExists(expression.Name(primary.PK.Field))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build put expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.config.TableName),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Patch applies a partial update and returns the attributes it wrote.
//
// Computed attributes of def are rewritten unless the patch sets them. The
// keys of every secondary index touched by a written attribute are rebuilt
// from the written and composite values; an index whose facets cannot all be
// resolved keeps its previous key.
func (s *Store) Patch(ctx context.Context, def *EntityDef, p *Patch) (Record, error) {
	if p.Empty() {
		return Record{}, nil
	}

	primary, err := def.Primary()
	if err != nil {
		return nil, err
	}
	key, err := s.primaryKey(def, p.Key())
	if err != nil {
		return nil, err
	}

	set := p.Updates()
	for name, compute := range def.Computed {
		if _, ok := set[name]; !ok {
			set[name] = compute()
		}
	}
	values := p.Composites()
	maps.Copy(values, set)

	names := sortedKeys(set)
	update := expression.Set(expression.Name(names[0]), expression.Value(set[names[0]]))
	for _, n := range names[1:] {
		update = update.Set(expression.Name(n), expression.Value(set[n]))
	}

	for _, idx := range def.Indexes {
		if idx.Name == PrimaryIndex || !touches(idx, set) {
			continue
		}
		pk, sk, complete := def.indexKeys(idx, values)
		if !complete {
			continue
		}
		update = update.Set(expression.Name(idx.PK.Field), expression.Value(pk))
		if idx.SK.Field != "" {
			update = update.Set(expression.Name(idx.SK.Field), expression.Value(sk))
		}
	}

	cond := expression.AttributeExists(expression.Name(primary.PK.Field))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build update expression: %w", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.config.TableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return DecodeItem(def, out.Attributes)
}

// Delete removes the item whose primary key is composed from key.
// Deleting an absent item is not an error.
func (s *Store) Delete(ctx context.Context, def *EntityDef, key Record) error {
	k, err := s.primaryKey(def, key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       k,
	})
	return err
}

// DecodeItem converts a raw item into a Record, dropping key fields and markers.
func DecodeItem(def *EntityDef, raw map[string]types.AttributeValue) (Record, error) {
	rec := Record{}
	if err := attributevalue.UnmarshalMap(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	for _, f := range def.keyFields() {
		delete(rec, f)
	}
	delete(rec, EntityAttr)
	delete(rec, VersionAttr)
	return rec, nil
}

// IndexForKeys picks the index serving a lookup by the given key names: the
// first secondary index whose partition facets are all supplied and whose
// facets cover every supplied key, otherwise the primary index under the
// same rule.
func (d *EntityDef) IndexForKeys(keys Record) (IndexDef, bool) {
	var primary *IndexDef
	for i, idx := range d.Indexes {
		if idx.Name == PrimaryIndex {
			primary = &d.Indexes[i]
			continue
		}
		if covers(idx, keys) {
			return idx, true
		}
	}
	if primary != nil && covers(*primary, keys) {
		return *primary, true
	}
	return IndexDef{}, false
}

func (s *Store) resolveIndex(def *EntityDef, keys Record, name string) (IndexDef, error) {
	if name != "" {
		idx, ok := def.Index(name)
		if !ok {
			return IndexDef{}, fmt.Errorf("%w: %s on %s", ErrIndexNotFound, name, def.Entity)
		}
		return idx, nil
	}
	idx, ok := def.IndexForKeys(keys)
	if !ok {
		return IndexDef{}, fmt.Errorf("%w: no index of %s serves keys %v", ErrIndexNotFound, def.Entity, sortedKeys(keys))
	}
	return idx, nil
}

func (s *Store) primaryKey(def *EntityDef, key Record) (map[string]types.AttributeValue, error) {
	primary, err := def.Primary()
	if err != nil {
		return nil, err
	}
	pk, sk, complete := def.indexKeys(primary, key)
	if !complete {
		return nil, fmt.Errorf("%w: primary key of %s", ErrMissingKey, def.Entity)
	}
	k := map[string]types.AttributeValue{}
	setKey(k, primary, pk, sk)
	return k, nil
}

func setKey(item map[string]types.AttributeValue, idx IndexDef, pk, sk string) {
	item[idx.PK.Field] = &types.AttributeValueMemberS{Value: pk}
	if idx.SK.Field != "" {
		item[idx.SK.Field] = &types.AttributeValueMemberS{Value: sk}
	}
}

// covers reports whether keys can address idx.
func covers(idx IndexDef, keys Record) bool {
	if len(keys) == 0 {
		return false
	}
	for _, f := range idx.PK.Facets {
		if _, ok := keys[f]; !ok {
			return false
		}
	}
	for k := range keys {
		if !idx.HasFacet(k) {
			return false
		}
	}
	return true
}

func touches(idx IndexDef, set Record) bool {
	for name := range set {
		if idx.HasFacet(name) {
			return true
		}
	}
	return false
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
