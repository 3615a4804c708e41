package helpers

import (
	"github.com/redis/go-redis/v9"
)

// NewRedisClient initializes a redis client
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Redis key builders shared by the auth flows.

func KeySession(userID string) string     { return "user:session:" + userID }
func KeyVerifyToken(token string) string  { return "email:verify:token:" + token }
func KeyResetToken(token string) string   { return "pwd:reset:token:" + token }
func KeyPhoneOTP(userID string) string    { return "phone:otp:" + userID }
