package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/blood-service/internal/core/domain"
)

const (
	subscriptionKeyPrefix = "blood:subscription:"
	userSubsKeyPrefix     = "blood:subscriptions:user:"
	inventoryKeyPrefix    = "blood:inventory:"
	inventoryIndexPrefix  = "blood:inventory:key:"
	inventoryIDsKey       = "blood:inventory:ids"
	demandKeyPrefix       = "blood:demand:"
	demandsByCreatedKey   = "blood:demands:by_created"
)

// Inventory records are hashes: "doc" holds the JSON document as first
// inserted, "quantity" and "region_name" hold the mutable fields.
var upsertInventoryScript = redis.NewScript(`
local index = KEYS[1]
local ids = KEYS[2]
local prefix = ARGV[1]
local newID = ARGV[2]
local doc = ARGV[3]
local quantity = ARGV[4]
local hasRegion = ARGV[5] == '1'
local region = ARGV[6]

local id = redis.call('GET', index)
if not id then
	local key = prefix .. newID
	redis.call('SET', index, newID)
	redis.call('HSET', key, 'doc', doc, 'quantity', quantity)
	if hasRegion then
		redis.call('HSET', key, 'region_name', region)
	end
	redis.call('RPUSH', ids, newID)
	return {1, newID}
end

local key = prefix .. id
redis.call('HSET', key, 'quantity', quantity)
if hasRegion then
	redis.call('HSET', key, 'region_name', region)
end
return {0, id}
`)

// RedisAdapter stores records as JSON values with list and sorted-set
// indexes. The inventory upsert runs as a single Lua script.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) InsertSubscription(ctx context.Context, sub domain.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, subscriptionKeyPrefix+sub.ID, data, 0)
		pipe.RPush(ctx, userSubsKeyPrefix+sub.UserID, sub.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *RedisAdapter) ListSubscriptionsByUser(ctx context.Context, userID string, limit int) ([]domain.Subscription, error) {
	ids, err := r.client.LRange(ctx, userSubsKeyPrefix+userID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscription ids: %w", err)
	}

	subs := []domain.Subscription{}
	err = r.loadDocuments(ctx, subscriptionKeyPrefix, ids, func(data string) error {
		var sub domain.Subscription
		if err := json.Unmarshal([]byte(data), &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		subs = append(subs, sub)
		return nil
	})
	return subs, err
}

func (r *RedisAdapter) UpsertInventory(ctx context.Context, rec domain.InventoryRecord) (domain.InventoryRecord, bool, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return domain.InventoryRecord{}, false, fmt.Errorf("encode inventory: %w", err)
	}

	hasRegion, region := "0", ""
	if rec.RegionName != nil {
		hasRegion, region = "1", *rec.RegionName
	}

	keys := []string{inventoryIndexKey(rec.Key()), inventoryIDsKey}
	result, err := upsertInventoryScript.Run(ctx, r.client, keys,
		inventoryKeyPrefix, rec.ID, doc, rec.Quantity, hasRegion, region,
	).Slice()
	if err != nil {
		return domain.InventoryRecord{}, false, fmt.Errorf("upsert inventory: %w", err)
	}
	if len(result) != 2 {
		return domain.InventoryRecord{}, false, fmt.Errorf("upsert inventory: unexpected script result %v", result)
	}

	created, _ := result[0].(int64)
	id, _ := result[1].(string)

	fields, err := r.client.HGetAll(ctx, inventoryKeyPrefix+id).Result()
	if err != nil {
		return domain.InventoryRecord{}, false, fmt.Errorf("load inventory: %w", err)
	}
	stored, err := decodeInventoryHash(fields)
	if err != nil {
		return domain.InventoryRecord{}, false, err
	}
	return stored, created == 1, nil
}

func (r *RedisAdapter) ListInventory(ctx context.Context, limit int) ([]domain.InventoryRecord, error) {
	ids, err := r.client.LRange(ctx, inventoryIDsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list inventory ids: %w", err)
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, inventoryKeyPrefix+id)
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("load inventory: %w", err)
		}
	}

	records := []domain.InventoryRecord{}
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeInventoryHash(fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *RedisAdapter) InsertDemand(ctx context.Context, demand domain.Demand) error {
	data, err := json.Marshal(demand)
	if err != nil {
		return fmt.Errorf("encode demand: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, demandKeyPrefix+demand.ID, data, 0)
		pipe.ZAdd(ctx, demandsByCreatedKey, redis.Z{
			Score:  float64(demand.CreatedAt.UnixMicro()),
			Member: demand.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert demand: %w", err)
	}
	return nil
}

func (r *RedisAdapter) ListDemands(ctx context.Context, limit int) ([]domain.Demand, error) {
	ids, err := r.client.ZRevRange(ctx, demandsByCreatedKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list demand ids: %w", err)
	}

	demands := []domain.Demand{}
	err = r.loadDocuments(ctx, demandKeyPrefix, ids, func(data string) error {
		var d domain.Demand
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return fmt.Errorf("decode demand: %w", err)
		}
		demands = append(demands, d)
		return nil
	})
	return demands, err
}

func (r *RedisAdapter) Close() error {
	return r.client.Close()
}

// loadDocuments fetches JSON documents for ids in order, skipping missing keys.
func (r *RedisAdapter) loadDocuments(ctx context.Context, prefix string, ids []string, fn func(string) error) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = prefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}

	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	return nil
}

func inventoryIndexKey(key domain.InventoryKey) string {
	return inventoryIndexPrefix + strconv.Quote(key.BloodType) + ":" + strconv.Quote(key.Location)
}

func decodeInventoryHash(fields map[string]string) (domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	if err := json.Unmarshal([]byte(fields["doc"]), &rec); err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("decode inventory: %w", err)
	}

	quantity, err := strconv.Atoi(fields["quantity"])
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("decode inventory quantity: %w", err)
	}
	rec.Quantity = quantity

	if region, ok := fields["region_name"]; ok {
		rec.RegionName = &region
	}
	return rec, nil
}
