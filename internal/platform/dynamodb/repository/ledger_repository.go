package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	ulid "github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	commonErrors "github.com/hirosato/dues-ledger/internal/domain/errors"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
	"github.com/hirosato/dues-ledger/internal/platform/dynamodb/client"
)

const (
	entrySKPrefix = "ENTRY#"
	entryItemType = "ledger_entry"
)

// DynamoDBLedgerRepository implements the ledger.Store interface.
// Entries live in the account's partition: PK=ACCOUNT#<id>, SK=ENTRY#<ulid>.
type DynamoDBLedgerRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBLedgerRepository creates a new DynamoDBLedgerRepository
func NewDynamoDBLedgerRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBLedgerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamoDBLedgerRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

// EntryDDB is the stored form of a ledger entry. Amounts are kept as decimal strings.
type EntryDDB struct {
	PK          string    `dynamodbav:"PK"`
	SK          string    `dynamodbav:"SK"`
	Type        string    `dynamodbav:"Type"`
	EntryID     string    `dynamodbav:"entryId"`
	AccountID   string    `dynamodbav:"accountId"`
	AccountName string    `dynamodbav:"accountName,omitempty"`
	EntryType   string    `dynamodbav:"entryType"`
	Amount      string    `dynamodbav:"amount"`
	Description string    `dynamodbav:"description"`
	RecordedBy  string    `dynamodbav:"recordedBy,omitempty"`
	OccurredAt  time.Time `dynamodbav:"occurredAt"`
	CreatedAt   time.Time `dynamodbav:"createdAt"`
}

func accountPK(accountID string) string {
	return fmt.Sprintf("ACCOUNT#%s", accountID)
}

func toEntryDDB(e ledger.Entry) EntryDDB {
	return EntryDDB{
		PK:          accountPK(e.AccountID),
		SK:          entrySKPrefix + e.EntryID,
		Type:        entryItemType,
		EntryID:     e.EntryID,
		AccountID:   e.AccountID,
		AccountName: e.AccountName,
		EntryType:   string(e.Type),
		Amount:      e.Amount.String(),
		Description: e.Description,
		RecordedBy:  e.RecordedBy,
		OccurredAt:  e.OccurredAt,
		CreatedAt:   e.CreatedAt,
	}
}

func (item EntryDDB) toEntry() (ledger.Entry, error) {
	amount, err := decimal.NewFromString(item.Amount)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("entry %s: invalid amount %q: %w", item.EntryID, item.Amount, err)
	}
	return ledger.Entry{
		EntryID:     item.EntryID,
		AccountID:   item.AccountID,
		AccountName: item.AccountName,
		Type:        ledger.EntryType(item.EntryType),
		Amount:      amount,
		Description: item.Description,
		RecordedBy:  item.RecordedBy,
		OccurredAt:  item.OccurredAt,
		CreatedAt:   item.CreatedAt,
	}, nil
}

// AppendEntry writes a new entry. The put is conditional so an id collision
// can never overwrite an existing entry.
func (r *DynamoDBLedgerRepository) AppendEntry(ctx context.Context, req *ledger.AppendEntryRequest) (*ledger.Entry, error) {
	now := time.Now().UTC()
	entry := ledger.Entry{
		EntryID:     ulid.Make().String(),
		AccountID:   req.AccountID,
		AccountName: req.AccountName,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		RecordedBy:  req.RecordedBy,
		OccurredAt:  req.OccurredAt.UTC(),
		CreatedAt:   now,
	}
	if req.OccurredAt.IsZero() {
		entry.OccurredAt = now
	}

	item, err := attributevalue.MarshalMap(toEntryDDB(entry))
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to marshal ledger entry", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var condCheckErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckErr) {
			return nil, commonErrors.NewConflictError("ledger entry already exists")
		}
		return nil, commonErrors.NewStorageUnavailableError("failed to append ledger entry", err)
	}

	return &entry, nil
}

// ListEntries reads every entry in the account's partition, following pagination
func (r *DynamoDBLedgerRepository) ListEntries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	keyCondition := expression.Key("PK").Equal(expression.Value(accountPK(accountID))).
		And(expression.Key("SK").BeginsWith(entrySKPrefix))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	}

	entries := make([]ledger.Entry, 0)
	pages := 0
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, commonErrors.NewStorageUnavailableError("failed to query ledger entries", err)
		}
		pages++

		var items []EntryDDB
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal ledger entries", err)
		}
		for _, item := range items {
			e, err := item.toEntry()
			if err != nil {
				return nil, commonErrors.NewInternalError("corrupt ledger entry", err)
			}
			entries = append(entries, e)
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	r.logger.DebugContext(ctx, "ledger entries loaded", "accountId", accountID, "count", len(entries), "pages", pages)
	return entries, nil
}
