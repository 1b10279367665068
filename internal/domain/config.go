package domain

// KeyPrefix namespaces every key pastq writes into a shared key-value store.
const KeyPrefix = "pastq:"

// CacheSegment is the key segment under KeyPrefix that holds derived data
// such as the embedding cache. No collection may take it as a name.
const CacheSegment = "cache"

// CacheKeyPrefix is the root of every cache key: "pastq:cache:".
const CacheKeyPrefix = KeyPrefix + CacheSegment + ":"
