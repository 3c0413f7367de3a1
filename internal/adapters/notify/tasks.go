package notify

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/phenrril/printshop/internal/domain"
)

const (
	TaskOrderNotify = "order.notify"
	DefaultQueue    = "notifications"
)

func NewOrderNotifyTask(n domain.OrderNotification) (*asynq.Task, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderNotify, data), nil
}

func ParseOrderNotifyPayload(task *asynq.Task) (domain.OrderNotification, error) {
	var n domain.OrderNotification
	if err := json.Unmarshal(task.Payload(), &n); err != nil {
		return domain.OrderNotification{}, err
	}
	return n, nil
}

func RedisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	if redisURL == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
