// Package stream provides DynamoDB Streams handlers for cascade operations.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/adobe/spacecat-shared-sub005/entity"
	"github.com/adobe/spacecat-shared-sub005/store"
)

// Handler processes DynamoDB stream events for cascading removals.
type Handler struct {
	registry *entity.Registry
	logger   *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(reg *entity.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: reg,
		logger:   logger,
	}
}

// HandleCascadeRemove removes the dependents of entities deleted without a
// cascade, e.g. through Collection.RemoveByIDs.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleCascadeRemove(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != string(events.DynamoDBOperationTypeRemove) {
		return nil
	}

	image := record.Change.OldImage
	entityName := getStringAttr(image, store.EntityAttr)
	if entityName == "" {
		h.logger.Debug("skipping record without entity marker", "eventID", record.EventID)
		return nil
	}

	coll, err := h.registry.CollectionForEntity(entityName)
	if err != nil {
		h.logger.Warn("skipping record of unknown entity",
			"eventID", record.EventID,
			"entity", entityName,
		)
		return nil
	}
	if !h.registry.HasDependents(coll.Schema().CollectionName()) {
		return nil
	}

	rec, err := store.DecodeItem(coll.EntityDef(), ConvertImage(image))
	if err != nil {
		return fmt.Errorf("decode %s image: %w", entityName, err)
	}
	owner := coll.NewModel(rec)

	dependents, err := owner.Dependents(ctx)
	if err != nil {
		return fmt.Errorf("query dependents: %w", err)
	}

	h.logger.Info("processing cascade remove",
		"entity", entityName,
		"id", owner.ID(),
		"dependents", len(dependents),
	)

	var errs []error
	for _, d := range dependents {
		if _, err := d.Remove(ctx); err != nil {
			h.logger.Warn("failed to remove dependent",
				"entity", d.Schema().ModelName(),
				"id", d.ID(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("remove dependents of %s %s: %w", entityName, owner.ID(), err)
	}

	h.logger.Info("cascade remove completed",
		"entity", entityName,
		"id", owner.ID(),
		"dependentsRemoved", len(dependents),
	)
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// ConvertImage converts a DynamoDB stream image to SDK attribute values so it
// can be decoded like a stored item.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, len(image))
	for k, v := range image {
		if av := convertValue(v); av != nil {
			result[k] = av
		}
	}
	return result
}

func convertValue(v events.DynamoDBAttributeValue) types.AttributeValue {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}
	case events.DataTypeMap:
		return &types.AttributeValueMemberM{Value: ConvertImage(v.Map())}
	case events.DataTypeList:
		items := make([]types.AttributeValue, 0, len(v.List()))
		for _, item := range v.List() {
			if av := convertValue(item); av != nil {
				items = append(items, av)
			}
		}
		return &types.AttributeValueMemberL{Value: items}
	}
	return nil
}
