package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DynamoAPI is the subset of the DynamoDB client used by Dynamo.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Dynamo stores each collection in its own table keyed by "$id".
type Dynamo struct {
	client      DynamoAPI
	tablePrefix string
	logger      *zap.Logger
	now         func() time.Time
}

// NewDynamo creates a DynamoDB backed document store. Table names are
// tablePrefix + collection.
func NewDynamo(client DynamoAPI, tablePrefix string, logger *zap.Logger) *Dynamo {
	return &Dynamo{
		client:      client,
		tablePrefix: tablePrefix,
		logger:      logger.Named("dynamo"),
		now:         time.Now,
	}
}

// WithClock replaces the clock used for system timestamps.
func (d *Dynamo) WithClock(now func() time.Time) *Dynamo {
	d.now = now
	return d
}

func (d *Dynamo) table(collection string) *string {
	return aws.String(d.tablePrefix + collection)
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{FieldID: &types.AttributeValueMemberS{Value: id}}
}

// Create puts a new item, failing with ErrConflict if the id is taken.
func (d *Dynamo) Create(ctx context.Context, collection, id string, fields map[string]any) (Document, error) {
	if id == UniqueID || id == "" {
		id = uuid.New().String()
	}

	now := FormatTime(d.now())
	doc := make(Document, len(fields)+3)
	maps.Copy(doc, fields)
	doc[FieldID] = id
	doc[FieldCreatedAt] = now
	doc[FieldUpdatedAt] = now

	item, err := attributevalue.MarshalMap(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s document: %w", collection, err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                d.table(collection),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": FieldID},
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrConflict, collection, id)
		}
		d.logger.Error("Failed to put item",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("%w: put %s/%s: %w", ErrUnavailable, collection, id, err)
	}

	return doc, nil
}

// Get reads one item with a consistent read.
func (d *Dynamo) Get(ctx context.Context, collection, id string) (Document, error) {
	output, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      d.table(collection),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %w", ErrUnavailable, collection, id, err)
	}
	if output.Item == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}

	return unmarshalDocument(output.Item)
}

// List scans the table with the string equality filters pushed down, then
// applies the full query plan to the matches.
func (d *Dynamo) List(ctx context.Context, collection string, queries ...Query) (DocumentList, error) {
	p, err := compile(queries)
	if err != nil {
		return DocumentList{}, err
	}

	input := &dynamodb.ScanInput{
		TableName:      d.table(collection),
		ConsistentRead: aws.Bool(true),
	}
	if expr, names, values := filterExpression(p.filters); expr != "" {
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	var docs []Document
	for {
		output, err := d.client.Scan(ctx, input)
		if err != nil {
			return DocumentList{}, fmt.Errorf("%w: scan %s: %w", ErrUnavailable, collection, err)
		}
		for _, item := range output.Items {
			doc, err := unmarshalDocument(item)
			if err != nil {
				return DocumentList{}, err
			}
			docs = append(docs, doc)
		}
		if len(output.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	// Scan order is arbitrary; creation order is the natural listing order.
	naturalOrder(docs)

	return p.apply(docs)
}

// Update sets the given fields on an existing item and returns the result.
func (d *Dynamo) Update(ctx context.Context, collection, id string, fields map[string]any) (Document, error) {
	names := map[string]string{"#id": FieldID, "#updated": FieldUpdatedAt}
	values := map[string]types.AttributeValue{
		":updated": &types.AttributeValueMemberS{Value: FormatTime(d.now())},
	}
	sets := []string{"#updated = :updated"}

	i := 0
	for field, value := range fields {
		if field == FieldID || field == FieldCreatedAt || field == FieldUpdatedAt {
			continue
		}
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field %q: %w", field, err)
		}
		name, placeholder := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		names[name] = field
		values[placeholder] = av
		sets = append(sets, name+" = "+placeholder)
		i++
	}

	output, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 d.table(collection),
		Key:                       idKey(id),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		d.logger.Error("Failed to update item",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("%w: update %s/%s: %w", ErrUnavailable, collection, id, err)
	}

	return unmarshalDocument(output.Attributes)
}

// Delete removes an existing item.
func (d *Dynamo) Delete(ctx context.Context, collection, id string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                d.table(collection),
		Key:                      idKey(id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": FieldID},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return fmt.Errorf("%w: delete %s/%s: %w", ErrUnavailable, collection, id, err)
	}
	return nil
}

// filterExpression pushes string Equal filters down to the scan. Strings
// compare by equality and lists by membership. Everything else is left to
// the in-process plan.
func filterExpression(filters []Query) (string, map[string]string, map[string]types.AttributeValue) {
	var parts []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	for i, f := range filters {
		s, ok := f.value.(string)
		if f.kind != kindEqual || !ok {
			continue
		}
		name, placeholder := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		names[name] = f.field
		values[placeholder] = &types.AttributeValueMemberS{Value: s}
		parts = append(parts, fmt.Sprintf("(%[1]s = %[2]s OR (attribute_type(%[1]s, :list) AND contains(%[1]s, %[2]s)))", name, placeholder))
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	values[":list"] = &types.AttributeValueMemberS{Value: "L"}
	return strings.Join(parts, " AND "), names, values
}

func naturalOrder(docs []Document) {
	p := plan{orders: []Query{OrderAsc(FieldCreatedAt), OrderAsc(FieldID)}, limit: len(docs)}
	sorted, _ := p.apply(docs)
	copy(docs, sorted.Documents)
}

func unmarshalDocument(item map[string]types.AttributeValue) (Document, error) {
	var doc map[string]any
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return Document(doc), nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
