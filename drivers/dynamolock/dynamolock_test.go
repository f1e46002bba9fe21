package dynamolock_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/amrox/zinc/drivers/dynamolock"
)

type fakeClient struct {
	items map[string]map[string]types.AttributeValue
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	domain := in.Item["domain"].(*types.AttributeValueMemberS).Value
	owner := in.Item["owner"].(*types.AttributeValueMemberS).Value

	if existing, ok := f.items[domain]; ok {
		existingOwner := existing["owner"].(*types.AttributeValueMemberS).Value
		expiry, _ := strconv.ParseInt(existing["expiry"].(*types.AttributeValueMemberN).Value, 10, 64)
		if existingOwner != owner && time.Now().Unix() < expiry {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	f.items[domain] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	domain := in.Key["domain"].(*types.AttributeValueMemberS).Value
	owner := in.ExpressionAttributeValues[":owner"].(*types.AttributeValueMemberS).Value

	existing, ok := f.items[domain]
	if !ok {
		return &dynamodb.DeleteItemOutput{}, nil
	}
	existingOwner := existing["owner"].(*types.AttributeValueMemberS).Value
	if existingOwner != owner {
		return nil, &types.ConditionalCheckFailedException{}
	}

	delete(f.items, domain)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	domain := in.Key["domain"].(*types.AttributeValueMemberS).Value
	if item, ok := f.items[domain]; ok {
		return &dynamodb.GetItemOutput{Item: item}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func TestAcquireRelease(t *testing.T) {
	c := &dynamolock.Coordinator{Client: newFakeClient(), Table: "zinc-locks"}

	lock, err := c.GetIndexLock("catalog.bundle", time.Second)
	if err != nil {
		t.Fatalf("could not get lock: %s", err)
	}
	if lock.IsLocked() {
		t.Fatalf("should not be locked yet")
	}
	if err := lock.Acquire(); err != nil {
		t.Fatalf("could not acquire: %s", err)
	}
	if !lock.IsLocked() {
		t.Fatalf("should be locked")
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("could not release: %s", err)
	}
	if lock.IsLocked() {
		t.Fatalf("should not be locked after release")
	}
}

func TestAcquireContention(t *testing.T) {
	fc := newFakeClient()
	c := &dynamolock.Coordinator{Client: fc, Table: "zinc-locks"}

	held, err := c.GetIndexLock("catalog.bundle", time.Second)
	if err != nil {
		t.Fatalf("could not get lock: %s", err)
	}
	if err := held.Acquire(); err != nil {
		t.Fatalf("could not acquire: %s", err)
	}
	defer held.Release()

	contender, err := c.GetIndexLock("catalog.bundle", 300*time.Millisecond)
	if err != nil {
		t.Fatalf("could not get contending lock: %s", err)
	}
	if err := contender.Acquire(); err == nil {
		t.Fatalf("expected timeout error acquiring an already-held lock")
	}
}
