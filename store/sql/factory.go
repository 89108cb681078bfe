package sqlstore

import (
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL stores over one bun database.
type RepositoryFactory struct {
	db *bun.DB

	callLogStore         *CallLogStore
	webhookDeliveryStore *WebhookDeliveryStore
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	return newRepositoryFactory(client)
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	return newRepositoryFactory(db)
}

func newRepositoryFactory(candidate any) (*RepositoryFactory, error) {
	db, err := resolveBunDB(candidate)
	if err != nil {
		return nil, err
	}
	callLogStore, err := NewCallLogStore(db)
	if err != nil {
		return nil, err
	}
	webhookDeliveryStore, err := NewWebhookDeliveryStore(db)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{
		db:                   db,
		callLogStore:         callLogStore,
		webhookDeliveryStore: webhookDeliveryStore,
	}, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) CallLogStore() *CallLogStore {
	if f == nil {
		return nil
	}
	return f.callLogStore
}

// CachedCallLogStore wraps the call log store with a read-through cache.
func (f *RepositoryFactory) CachedCallLogStore(cacheService repositorycache.CacheService) (*CachedCallLogStore, error) {
	if f == nil {
		return nil, storeNotConfigured("repository factory")
	}
	return NewCachedCallLogStore(f.callLogStore, cacheService)
}

func (f *RepositoryFactory) WebhookDeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.webhookDeliveryStore
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, storeNotConfigured("persistence client")
	case *bun.DB:
		if typed == nil {
			return nil, storeNotConfigured("bun db")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, storeNotConfigured("bun db")
		}
		return db, nil
	default:
		return nil, storeNotConfigured("bun db")
	}
}
