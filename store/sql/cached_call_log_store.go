package sqlstore

import (
	"context"
	"net/url"
	"strings"

	"github.com/goliatone/go-callverify/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const callLogCacheKeyPrefix = "callverify::call_log::v1"

// CachedCallLogStore serves Get from cache and drops the entry whenever the
// call is recorded.
type CachedCallLogStore struct {
	base  core.CallArchive
	cache repositorycache.CacheService
}

func NewCachedCallLogStore(base core.CallArchive, cacheService repositorycache.CacheService) (*CachedCallLogStore, error) {
	if base == nil {
		return nil, storeNotConfigured("base call archive")
	}
	if cacheService == nil {
		return nil, storeNotConfigured("call log cache service")
	}
	return &CachedCallLogStore{base: base, cache: cacheService}, nil
}

// CallLogCacheKey returns callverify::call_log::v1::<call_id> with the id
// URL-path escaped.
func CallLogCacheKey(callID string) string {
	return callLogCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(callID))
}

func (s *CachedCallLogStore) Record(ctx context.Context, record core.CallRecord) (core.CallRecord, error) {
	stored, err := s.base.Record(ctx, record)
	if err != nil {
		return core.CallRecord{}, err
	}
	if err := s.cache.Delete(ctx, CallLogCacheKey(stored.CallID)); err != nil {
		return core.CallRecord{}, err
	}
	return stored, nil
}

func (s *CachedCallLogStore) Get(ctx context.Context, callID string) (core.CallRecord, error) {
	return repositorycache.GetOrFetch(ctx, s.cache, CallLogCacheKey(callID), func(ctx context.Context) (core.CallRecord, error) {
		return s.base.Get(ctx, callID)
	})
}

func (s *CachedCallLogStore) List(ctx context.Context, filter core.CallRecordFilter) ([]core.CallRecord, error) {
	return s.base.List(ctx, filter)
}
