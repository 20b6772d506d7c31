package kinesis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/inventory-control/internal/domain/inventory"
)

// EventItemStored is the event type given to stream records of an item that
// was written. Stream images carry state, not the operation that produced it.
const EventItemStored = "ItemStored"

// ConvertFromKinesisRecord converts a Kinesis record (DynamoDB Streams format)
// of the items table into an inventory event.
// DynamoDB Kinesis integration sends records in DynamoDB Streams format.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*inventory.Event, error) {
	var dynamoDBRecord events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &dynamoDBRecord); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	return ConvertFromDynamoDBStreamRecord(dynamoDBRecord)
}

// ConvertFromDynamoDBStreamRecord converts a DynamoDB Stream record to an
// inventory event. Removals return nil.
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*inventory.Event, error) {
	switch record.EventName {
	case "INSERT":
		return convertItemImage(inventory.EventItemCreated, record.Change.NewImage)
	case "MODIFY":
		return convertItemImage(EventItemStored, record.Change.NewImage)
	default:
		return nil, nil
	}
}

// convertItemImage reads the stock levels out of an item image.
func convertItemImage(eventType string, image map[string]events.DynamoDBAttributeValue) (*inventory.Event, error) {
	if image == nil {
		return nil, fmt.Errorf("DynamoDB image is nil")
	}

	event := &inventory.Event{
		Type:          eventType,
		AggregateType: inventory.AggregateType,
	}

	event.ItemID = stringAttr(image, "id")
	event.SKU = stringAttr(image, "sku")
	event.UOM = stringAttr(image, "uom")

	ints := []struct {
		name string
		dst  *int
	}{
		{"on_hand", &event.OnHand},
		{"reserved", &event.Reserved},
		{"min_qty", &event.MinQty},
	}
	for _, f := range ints {
		n, err := intAttr(image, f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = n
	}

	if v := stringAttr(image, "updated_at"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		event.OccurredAt = t
	}
	if _, ok := image["version"]; ok {
		version, err := intAttr(image, "version")
		if err != nil {
			return nil, err
		}
		event.ID = fmt.Sprintf("%s@%d", event.ItemID, version)
	}

	if event.ItemID == "" || event.SKU == "" {
		return nil, fmt.Errorf("missing required fields: id=%s, sku=%s", event.ItemID, event.SKU)
	}

	event.Available = event.OnHand - event.Reserved
	event.LowStock = event.Available < event.MinQty
	return event, nil
}

// The attribute accessors of events.DynamoDBAttributeValue panic on a type
// mismatch, so the type is checked first.
func stringAttr(image map[string]events.DynamoDBAttributeValue, name string) string {
	v, ok := image[name]
	if !ok || v.DataType() != events.DataTypeString {
		return ""
	}
	return v.String()
}

func intAttr(image map[string]events.DynamoDBAttributeValue, name string) (int, error) {
	v, ok := image[name]
	if !ok {
		return 0, fmt.Errorf("missing %s", name)
	}
	if v.DataType() != events.DataTypeNumber {
		return 0, fmt.Errorf("%s is not a number", name)
	}
	n, err := v.Integer()
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return int(n), nil
}

// BatchConvertFromKinesisEvent converts all records from a Kinesis event.
// Returns successfully converted events and any errors encountered.
func BatchConvertFromKinesisEvent(kinesisEvent events.KinesisEvent) ([]*inventory.Event, []error) {
	var eventList []*inventory.Event
	var errs []error

	for _, record := range kinesisEvent.Records {
		event, err := ConvertFromKinesisRecord(record)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", record.EventID, err))
			continue
		}
		if event != nil {
			eventList = append(eventList, event)
		}
	}

	return eventList, errs
}
