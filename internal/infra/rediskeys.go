package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "pulsemon"
)

// Ключи для кэша (состояние)
const (
	// RedisKeyHealthPrefix — префикс ключей HealthSummary, по ключу на эндпоинт.
	RedisKeyHealthPrefix = RedisNamespace + ":health:"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanIncidentEvents — канал трансляции событий инцидентов
	// (создание/разрешение) для живых подписчиков Console API.
	RedisChanIncidentEvents = RedisNamespace + ":incidents:events"
)

// GetHealthKey возвращает ключ кэша здоровья для конкретного эндпоинта.
func GetHealthKey(endpointID string) string {
	return fmt.Sprintf("%s%s", RedisKeyHealthPrefix, endpointID)
}
