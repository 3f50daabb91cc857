package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	outcomeExecuted   = "executed"
	outcomeReplayed   = "replayed"
	outcomeInProgress = "in_progress"
	outcomeBypassed   = "store_unavailable"
)

// releaseLock удаляет блокировку, только если она все еще наша
var releaseLock = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Response сохраненный ответ операции
type Response struct {
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
	// Replayed ответ взят из кеша, операция не выполнялась
	Replayed bool `json:"-"`
}

// Gate выполняет операцию не более одного раза на пару (scope, key).
// Пока операция идет, ключ заблокирован; успешный или конфликтный ответ
// хранится resultTTL и возвращается повторным запросам без выполнения.
// При недоступном Redis операция выполняется без защиты.
type Gate struct {
	client    *redis.Client
	prefix    string
	lockTTL   time.Duration
	resultTTL time.Duration
	metrics   Metrics
	logger    Logger
}

// NewGate создает гейт. metrics может быть nil.
func NewGate(client *redis.Client, prefix string, lockTTL, resultTTL time.Duration, metrics Metrics, logger Logger) *Gate {
	return &Gate{
		client:    client,
		prefix:    prefix,
		lockTTL:   lockTTL,
		resultTTL: resultTTL,
		metrics:   metrics,
		logger:    logger,
	}
}

// Execute выполняет op под ключом key в пространстве scope
func (g *Gate) Execute(ctx context.Context, scope, key string, op Operation) (Response, error) {
	if key == "" {
		return Response{}, ErrKeyRequired
	}

	hash := keyHash(scope, key)
	respKey := g.prefix + ":resp:" + hash
	lockKey := g.prefix + ":lock:" + hash

	cached, found, err := g.load(ctx, respKey)
	if err != nil {
		return g.bypass(ctx, scope, "read cached response", err, op)
	}
	if found {
		g.count(outcomeReplayed)
		g.logger.Info("Idempotency: replaying response scope=%s status=%d", scope, cached.Status)
		return cached, nil
	}

	token := uuid.NewString()
	acquired, err := g.client.SetNX(ctx, lockKey, token, g.lockTTL).Result()
	if err != nil {
		return g.bypass(ctx, scope, "acquire lock", err, op)
	}
	if !acquired {
		// предыдущий запрос мог завершиться между чтением и блокировкой
		if cached, found, err := g.load(ctx, respKey); err == nil && found {
			g.count(outcomeReplayed)
			return cached, nil
		}
		g.count(outcomeInProgress)
		g.logger.Warn("Idempotency: request in progress scope=%s", scope)
		return Response{}, ErrRequestInProgress
	}
	defer g.release(ctx, lockKey, token)

	resp, err := op(ctx)
	if err != nil {
		return Response{}, err
	}
	g.count(outcomeExecuted)

	if cacheable(resp.Status) {
		g.store(ctx, respKey, resp)
	}
	return resp, nil
}

func (g *Gate) load(ctx context.Context, respKey string) (Response, bool, error) {
	raw, err := g.client.Get(ctx, respKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Response{}, false, nil
	}
	if err != nil {
		return Response{}, false, err
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, false, fmt.Errorf("decode cached response: %w", err)
	}
	resp.Replayed = true
	return resp, true, nil
}

func (g *Gate) store(ctx context.Context, respKey string, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		g.logger.Error("Idempotency: failed to encode response: %v", err)
		return
	}
	if err := g.client.Set(context.WithoutCancel(ctx), respKey, payload, g.resultTTL).Err(); err != nil {
		g.logger.Warn("Idempotency: failed to store response: %v", err)
	}
}

func (g *Gate) release(ctx context.Context, lockKey, token string) {
	if err := releaseLock.Run(context.WithoutCancel(ctx), g.client, []string{lockKey}, token).Err(); err != nil {
		g.logger.Warn("Idempotency: failed to release lock: %v", err)
	}
}

func (g *Gate) bypass(ctx context.Context, scope, step string, cause error, op Operation) (Response, error) {
	g.count(outcomeBypassed)
	g.logger.Warn("Idempotency: store unavailable (%s) scope=%s, executing without protection: %v", step, scope, cause)
	return op(ctx)
}

func (g *Gate) count(outcome string) {
	if g.metrics != nil {
		g.metrics.IncIdempotency(outcome)
	}
}

// cacheable успешные ответы и конфликты детерминированы и повторяются как есть
func cacheable(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusConflict
}

func keyHash(scope, key string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + key))
	return hex.EncodeToString(sum[:])
}
