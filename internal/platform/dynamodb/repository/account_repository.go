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
	"github.com/shopspring/decimal"

	"github.com/hirosato/dues-ledger/internal/domain/account"
	commonErrors "github.com/hirosato/dues-ledger/internal/domain/errors"
	"github.com/hirosato/dues-ledger/internal/platform/dynamodb/client"
)

const (
	accountSK       = "PROFILE"
	accountItemType = "account"
)

// DynamoDBAccountRepository implements the account.Repository interface.
// The account record shares the partition of its ledger entries.
type DynamoDBAccountRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBAccountRepository creates a new DynamoDBAccountRepository
func NewDynamoDBAccountRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBAccountRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamoDBAccountRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

// AccountDDB is the stored form of an account
type AccountDDB struct {
	PK         string    `dynamodbav:"PK"`
	SK         string    `dynamodbav:"SK"`
	Type       string    `dynamodbav:"Type"`
	AccountID  string    `dynamodbav:"accountId"`
	Name       string    `dynamodbav:"name"`
	DueBalance string    `dynamodbav:"dueBalance"`
	Version    int64     `dynamodbav:"version"`
	CreatedAt  time.Time `dynamodbav:"createdAt"`
	UpdatedAt  time.Time `dynamodbav:"updatedAt"`
}

func (item AccountDDB) toAccount() (*account.Account, error) {
	balance, err := decimal.NewFromString(item.DueBalance)
	if err != nil {
		return nil, fmt.Errorf("account %s: invalid balance %q: %w", item.AccountID, item.DueBalance, err)
	}
	return &account.Account{
		AccountID:  item.AccountID,
		Name:       item.Name,
		DueBalance: balance,
		Version:    item.Version,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}, nil
}

func accountKey(accountID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: accountPK(accountID)},
		"SK": &types.AttributeValueMemberS{Value: accountSK},
	}
}

// CreateAccount stores a new account record
func (r *DynamoDBAccountRepository) CreateAccount(ctx context.Context, acct *account.Account) (*account.Account, error) {
	item, err := attributevalue.MarshalMap(AccountDDB{
		PK:         accountPK(acct.AccountID),
		SK:         accountSK,
		Type:       accountItemType,
		AccountID:  acct.AccountID,
		Name:       acct.Name,
		DueBalance: acct.DueBalance.String(),
		Version:    acct.Version,
		CreatedAt:  acct.CreatedAt,
		UpdatedAt:  acct.UpdatedAt,
	})
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to marshal account", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var condCheckErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckErr) {
			return nil, commonErrors.NewConflictError("account already exists")
		}
		return nil, commonErrors.NewStorageUnavailableError("failed to create account", err)
	}

	out := *acct
	return &out, nil
}

// GetAccount reads the account record
func (r *DynamoDBAccountRepository) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            accountKey(accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, commonErrors.NewStorageUnavailableError("failed to get account", err)
	}
	if len(result.Item) == 0 {
		return nil, commonErrors.NewNotFoundError("account not found")
	}

	var item AccountDDB
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal account", err)
	}
	acct, err := item.toAccount()
	if err != nil {
		return nil, commonErrors.NewInternalError("corrupt account record", err)
	}
	return acct, nil
}

// GetBalance reads the stored due balance
func (r *DynamoDBAccountRepository) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	acct, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.DueBalance, nil
}

// SetBalance writes the balance only if the stored version matches expectedVersion
func (r *DynamoDBAccountRepository) SetBalance(
	ctx context.Context, accountID string, balance decimal.Decimal, expectedVersion int64,
) (*account.Account, error) {
	update := expression.Set(expression.Name("dueBalance"), expression.Value(balance.String())).
		Set(expression.Name("updatedAt"), expression.Value(time.Now().UTC().Format(time.RFC3339Nano))).
		Set(expression.Name("version"), expression.Name("version").Plus(expression.Value(1)))
	condition := expression.AttributeExists(expression.Name("PK")).
		And(expression.Name("version").Equal(expression.Value(expectedVersion)))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       accountKey(accountID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condCheckErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckErr) {
			r.logger.WarnContext(ctx, "balance write rejected", "accountId", accountID, "expectedVersion", expectedVersion)
			if _, getErr := r.GetAccount(ctx, accountID); commonErrors.HasCode(getErr, commonErrors.CodeNotFound) {
				return nil, getErr
			}
			return nil, commonErrors.NewConflictError("account version mismatch")
		}
		return nil, commonErrors.NewStorageUnavailableError("failed to update account balance", err)
	}

	var item AccountDDB
	if err := attributevalue.UnmarshalMap(result.Attributes, &item); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal account", err)
	}
	acct, err := item.toAccount()
	if err != nil {
		return nil, commonErrors.NewInternalError("corrupt account record", err)
	}
	return acct, nil
}

// ListAccountIDs scans the table for account records
func (r *DynamoDBAccountRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	filter := expression.Name("Type").Equal(expression.Value(accountItemType))
	projection := expression.NamesList(expression.Name("accountId"))

	expr, err := expression.NewBuilder().WithFilter(filter).WithProjection(projection).Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(r.table),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var ids []string
	for {
		result, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, commonErrors.NewStorageUnavailableError("failed to scan accounts", err)
		}

		var items []struct {
			AccountID string `dynamodbav:"accountId"`
		}
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal accounts", err)
		}
		for _, item := range items {
			ids = append(ids, item.AccountID)
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return ids, nil
}
