package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
)

func TestSessionStorage_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	storage := NewSessionStorage(db, "test", time.Hour)
	kv := storage.Session("s-1")
	ctx := context.Background()

	mock.ExpectGet("test:session:s-1:orders").SetVal(`[{"orderNumber":1}]`)
	mock.ExpectGet("test:session:s-1:lastOrderNumber").RedisNil()

	value, ok, err := kv.Get(ctx, "orders")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || value != `[{"orderNumber":1}]` {
		t.Fatalf("unexpected value: ok=%v value=%q", ok, value)
	}

	if _, ok, err := kv.Get(ctx, "lastOrderNumber"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSessionStorage_GetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	kv := NewSessionStorage(db, "test", time.Hour).Session("s-1")

	mock.ExpectGet("test:session:s-1:orders").SetErr(errors.New("connection refused"))

	if _, _, err := kv.Get(context.Background(), "orders"); err == nil {
		t.Fatal("expected error from redis")
	}
}

func TestSessionStorage_SetUsesTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	kv := NewSessionStorage(db, "test", 30*time.Minute).Session("s-1")

	mock.ExpectSet("test:session:s-1:lastOrderNumber", "3", 30*time.Minute).SetVal("OK")

	if err := kv.Set(context.Background(), "lastOrderNumber", "3"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSessionStorage_Delete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	kv := NewSessionStorage(db, "", 0).Session("s-1")

	mock.ExpectDel("mealorders:session:s-1:orders", "mealorders:session:s-1:lastOrderNumber").SetVal(2)

	if err := kv.Delete(context.Background(), "orders", "lastOrderNumber"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSessionStorage_Ping(t *testing.T) {
	db, mock := redismock.NewClientMock()
	storage := NewSessionStorage(db, "test", time.Hour)

	mock.ExpectPing().SetVal("PONG")
	if err := storage.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	mock.ExpectPing().SetErr(errors.New("down"))
	if err := storage.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
}

func TestSessionStorage_EmptySessionID(t *testing.T) {
	db, _ := redismock.NewClientMock()
	kv := NewSessionStorage(db, "test", time.Hour).Session("")

	if err := kv.Set(context.Background(), "orders", "[]"); !errors.Is(err, domain.ErrSessionRequired) {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}
}
