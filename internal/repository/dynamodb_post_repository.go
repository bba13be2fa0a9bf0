package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/klass-lk/postboard/internal/model"
)

// Single-table layout:
//
//	pk=POST          sk=<zero padded id>  post item
//	pk=TITLE#<title> sk=TITLE             title lock holding post_id
//	pk=COUNTER       sk=POST              id sequence
const (
	postPartition    = "POST"
	titlePrefix      = "TITLE#"
	titleSortKey     = "TITLE"
	counterPartition = "COUNTER"
	counterSortKey   = "POST"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the repository.
type DynamoDBAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type dynamoPostItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	model.Post
}

type dynamoTitleItem struct {
	PK     string `dynamodbav:"pk"`
	SK     string `dynamodbav:"sk"`
	PostID int64  `dynamodbav:"post_id"`
}

type DynamoDBPostRepository struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBPostRepository(client DynamoDBAPI, tableName string) *DynamoDBPostRepository {
	return &DynamoDBPostRepository{client: client, tableName: tableName}
}

// EnsureTable creates the table when it does not exist yet.
func (r *DynamoDBPostRepository) EnsureTable(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.tableName),
	})
	if err == nil {
		return nil
	}
	var notFoundEx *types.ResourceNotFoundException
	if !errors.As(err, &notFoundEx) {
		return fmt.Errorf("describe table %s: %w", r.tableName, err)
	}

	log.Printf("DynamoDB table %s does not exist, creating it...", r.tableName)
	_, err = r.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(r.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", r.tableName, err)
	}
	waiter := dynamodb.NewTableExistsWaiter(r.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", r.tableName, err)
	}
	log.Printf("DynamoDB table %s created successfully.", r.tableName)
	return nil
}

func (r *DynamoDBPostRepository) ListAll(ctx context.Context) ([]model.Post, error) {
	posts := []model.Post{}
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: postPartition},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var items []dynamoPostItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			posts = append(posts, item.Post)
		}
	}
	return posts, nil
}

func (r *DynamoDBPostRepository) FindByID(ctx context.Context, id int64) (model.Post, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(postPartition, postSortKey(id)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.Post{}, err
	}
	if out.Item == nil {
		return model.Post{}, ErrNotFound
	}
	var item dynamoPostItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return model.Post{}, err
	}
	return item.Post, nil
}

func (r *DynamoDBPostRepository) Create(ctx context.Context, post *model.Post) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	post.ID = id
	post.CreatedAt = now
	post.UpdatedAt = now

	postPut, err := r.putPost(*post, "attribute_not_exists(pk)")
	if err != nil {
		return err
	}
	titlePut, err := r.putTitle(post.Title, post.ID)
	if err != nil {
		return err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{postPut, titlePut},
	})
	if err != nil {
		post.ID = 0
		return translateTransactionError(err, 1, ErrDuplicateTitle)
	}
	return nil
}

func (r *DynamoDBPostRepository) Update(ctx context.Context, post *model.Post) error {
	existing, err := r.FindByID(ctx, post.ID)
	if err != nil {
		return err
	}
	post.CreatedAt = existing.CreatedAt
	post.UpdatedAt = time.Now().UTC()

	postPut, err := r.putPost(*post, "attribute_exists(pk)")
	if err != nil {
		return err
	}
	items := []types.TransactWriteItem{postPut}
	if existing.Title != post.Title {
		titlePut, err := r.putTitle(post.Title, post.ID)
		if err != nil {
			return err
		}
		items = append(items, titlePut, r.deleteTitle(existing.Title, post.ID))
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if existing.Title != post.Title {
			if dup := translateTransactionError(err, 1, ErrDuplicateTitle); dup == ErrDuplicateTitle {
				return dup
			}
		}
		return translateTransactionError(err, 0, ErrNotFound)
	}
	return nil
}

func (r *DynamoDBPostRepository) Delete(ctx context.Context, id int64) error {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:           aws.String(r.tableName),
				Key:                 key(postPartition, postSortKey(id)),
				ConditionExpression: aws.String("attribute_exists(pk)"),
			}},
			r.deleteTitle(existing.Title, id),
		},
	})
	if err != nil {
		return translateTransactionError(err, 0, ErrNotFound)
	}
	return nil
}

func (r *DynamoDBPostRepository) ExistsByTitle(ctx context.Context, title string, excludeID int64) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(titlePrefix+title, titleSortKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	if out.Item == nil {
		return false, nil
	}
	var lock dynamoTitleItem
	if err := attributevalue.UnmarshalMap(out.Item, &lock); err != nil {
		return false, err
	}
	return lock.PostID != excludeID, nil
}

func (r *DynamoDBPostRepository) nextID(ctx context.Context) (int64, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              key(counterPartition, counterSortKey),
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	var counter struct {
		Seq int64 `dynamodbav:"seq"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &counter); err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (r *DynamoDBPostRepository) putPost(post model.Post, condition string) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(dynamoPostItem{PK: postPartition, SK: postSortKey(post.ID), Post: post})
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String(condition),
	}}, nil
}

func (r *DynamoDBPostRepository) putTitle(title string, postID int64) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(dynamoTitleItem{PK: titlePrefix + title, SK: titleSortKey, PostID: postID})
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	}}, nil
}

// deleteTitle releases a title lock, but only when postID still holds it.
func (r *DynamoDBPostRepository) deleteTitle(title string, postID int64) types.TransactWriteItem {
	return types.TransactWriteItem{Delete: &types.Delete{
		TableName:           aws.String(r.tableName),
		Key:                 key(titlePrefix+title, titleSortKey),
		ConditionExpression: aws.String("post_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberN{Value: strconv.FormatInt(postID, 10)},
		},
	}}
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

// postSortKey pads ids so the lexical sort of sk matches numeric id order.
func postSortKey(id int64) string {
	return fmt.Sprintf("%020d", id)
}

// translateTransactionError maps a conditional check failure on the transact item at index
// to target and returns any other error unchanged.
func translateTransactionError(err error, index int, target error) error {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return err
	}
	if index < len(canceled.CancellationReasons) {
		reason := canceled.CancellationReasons[index]
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return target
		}
	}
	return err
}
