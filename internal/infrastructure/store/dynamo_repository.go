package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/inventory-control/internal/domain/inventory"
)

// SKUIndex is the global secondary index on the sku attribute.
const SKUIndex = "sku-index"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DynamoAPI is the subset of the DynamoDB client the repository uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoRepository stores one DynamoDB item per inventory item, keyed by id.
// Reservations and moves are embedded as JSON documents.
type DynamoRepository struct {
	client    DynamoAPI
	tableName string
}

// dynamoItem represents the DynamoDB item structure
type dynamoItem struct {
	ID           string `dynamodbav:"id"`
	SKU          string `dynamodbav:"sku"`
	OnHand       int    `dynamodbav:"on_hand"`
	Reserved     int    `dynamodbav:"reserved"`
	UOM          string `dynamodbav:"uom"`
	MinQty       int    `dynamodbav:"min_qty"`
	Batch        string `dynamodbav:"batch,omitempty"`
	Reservations string `dynamodbav:"reservations"`
	Moves        string `dynamodbav:"moves"`
	Version      int    `dynamodbav:"version"`
	CreatedAt    string `dynamodbav:"created_at"`
	UpdatedAt    string `dynamodbav:"updated_at"`
}

func NewDynamoRepository(client DynamoAPI, tableName string) *DynamoRepository {
	return &DynamoRepository{
		client:    client,
		tableName: tableName,
	}
}

// ListAll scans the whole table and orders items by creation time.
func (r *DynamoRepository) ListAll(ctx context.Context) ([]*inventory.Item, error) {
	var records []dynamoItem
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan items: %w", err)
		}
		for _, av := range out.Items {
			var rec dynamoItem
			if err := attributevalue.UnmarshalMap(av, &rec); err != nil {
				return nil, fmt.Errorf("failed to unmarshal item: %w", err)
			}
			records = append(records, rec)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	slices.SortStableFunc(records, func(a, b dynamoItem) int {
		return cmp.Or(cmp.Compare(a.CreatedAt, b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	items := make([]*inventory.Item, 0, len(records))
	for _, rec := range records {
		item, err := fromDynamoItem(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *DynamoRepository) GetByID(ctx context.Context, id string) (*inventory.Item, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var rec dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return fromDynamoItem(rec)
}

func (r *DynamoRepository) GetBySKU(ctx context.Context, sku inventory.SKU) (*inventory.Item, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(SKUIndex),
		KeyConditionExpression: aws.String("sku = :sku"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sku": &types.AttributeValueMemberS{Value: sku.String()},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query sku: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	// GSIs are eventually consistent; re-read the base item by key.
	var key struct {
		ID string `dynamodbav:"id"`
	}
	if err := attributevalue.UnmarshalMap(out.Items[0], &key); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return r.GetByID(ctx, key.ID)
}

// Save writes the whole item with a condition on the stored version.
func (r *DynamoRepository) Save(ctx context.Context, item *inventory.Item) (*inventory.Item, error) {
	snap := item.Snapshot()

	if snap.Version == 0 {
		owner, err := r.GetBySKU(ctx, item.SKU())
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.ID() != snap.ID {
			return nil, &inventory.Error{
				Kind: inventory.KindAlreadyExists,
				Op:   "save",
				Err:  fmt.Errorf("sku %s belongs to item %s", snap.SKU, owner.ID()),
			}
		}
	}

	expected := snap.Version
	snap.Version++
	now := time.Now().UTC()
	rec, err := toDynamoItem(snap, now)
	if err != nil {
		return nil, err
	}
	if expected > 0 {
		created, err := r.createdAt(ctx, snap.ID)
		if err != nil {
			return nil, err
		}
		if created != "" {
			rec.CreatedAt = created
		}
	}

	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}
	if expected == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(id)")
	} else {
		input.ConditionExpression = aws.String("version = :expected")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(expected)},
		}
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, &inventory.Error{
				Kind: inventory.KindConflict,
				Op:   "save",
				Err:  fmt.Errorf("item %s changed since version %d", snap.ID, expected),
			}
		}
		return nil, fmt.Errorf("failed to put item: %w", err)
	}

	return inventory.Restore(snap)
}

func (r *DynamoRepository) createdAt(ctx context.Context, id string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.tableName),
		Key:                  map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ProjectionExpression: aws.String("created_at"),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get item: %w", err)
	}
	if out.Item == nil {
		return "", nil
	}
	var rec struct {
		CreatedAt string `dynamodbav:"created_at"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return "", fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return rec.CreatedAt, nil
}

func toDynamoItem(s inventory.Snapshot, now time.Time) (dynamoItem, error) {
	reservations, err := json.Marshal(s.Reservations)
	if err != nil {
		return dynamoItem{}, fmt.Errorf("failed to marshal reservations: %w", err)
	}
	moves, err := json.Marshal(s.Moves)
	if err != nil {
		return dynamoItem{}, fmt.Errorf("failed to marshal moves: %w", err)
	}

	rec := dynamoItem{
		ID:           s.ID,
		SKU:          s.SKU,
		OnHand:       s.OnHand,
		Reserved:     s.Reserved,
		UOM:          s.UOM,
		MinQty:       s.MinQty,
		Reservations: string(reservations),
		Moves:        string(moves),
		Version:      s.Version,
		CreatedAt:    now.Format(timeLayout),
		UpdatedAt:    now.Format(timeLayout),
	}
	if s.Batch != nil {
		batch, err := json.Marshal(s.Batch)
		if err != nil {
			return dynamoItem{}, fmt.Errorf("failed to marshal batch: %w", err)
		}
		rec.Batch = string(batch)
	}
	return rec, nil
}

func fromDynamoItem(rec dynamoItem) (*inventory.Item, error) {
	s := inventory.Snapshot{
		ID:       rec.ID,
		SKU:      rec.SKU,
		OnHand:   rec.OnHand,
		Reserved: rec.Reserved,
		UOM:      rec.UOM,
		MinQty:   rec.MinQty,
		Version:  rec.Version,
	}
	if rec.Reservations != "" {
		if err := json.Unmarshal([]byte(rec.Reservations), &s.Reservations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reservations: %w", err)
		}
	}
	if rec.Moves != "" {
		if err := json.Unmarshal([]byte(rec.Moves), &s.Moves); err != nil {
			return nil, fmt.Errorf("failed to unmarshal moves: %w", err)
		}
	}
	if rec.Batch != "" {
		var b inventory.Batch
		if err := json.Unmarshal([]byte(rec.Batch), &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
		}
		s.Batch = &b
	}
	return inventory.Restore(s)
}
