package database

import (
	"fmt"
	"sync"
	"time"
)

// VercelOptimizer 在无服务器环境下按配置缓存数据库连接
type VercelOptimizer struct {
	connections map[string]DatabaseInterface
	lastUsed    map[string]time.Time
	mu          sync.Mutex
}

var (
	vercelOptimizer *VercelOptimizer
	optimizerOnce   sync.Once
)

// GetVercelOptimizer 获取Vercel优化器单例
func GetVercelOptimizer() *VercelOptimizer {
	optimizerOnce.Do(func() {
		vercelOptimizer = &VercelOptimizer{
			connections: make(map[string]DatabaseInterface),
			lastUsed:    make(map[string]time.Time),
		}

		if IsVercelEnvironment() {
			go vercelOptimizer.backgroundCleanup()
		}
	})
	return vercelOptimizer
}

// GetOptimizedConnection 获取优化的数据库连接
func (vo *VercelOptimizer) GetOptimizedConnection(config DatabaseConfig) DatabaseInterface {
	configKey := generateConfigKey(config)

	vo.mu.Lock()
	defer vo.mu.Unlock()

	if conn, exists := vo.connections[configKey]; exists {
		if err := conn.HealthCheck(); err == nil {
			vo.lastUsed[configKey] = time.Now()
			return conn
		}
		fmt.Printf("❌ Connection unhealthy, removing: key=%s\n", configKey)
		conn.Close()
		delete(vo.connections, configKey)
		delete(vo.lastUsed, configKey)
	}

	fmt.Printf("🔄 Creating new optimized database connection: key=%s\n", configKey)
	conn := NewDatabase(config)

	vo.connections[configKey] = conn
	vo.lastUsed[configKey] = time.Now()

	return conn
}

// generateConfigKey 生成配置的短键，避免在日志中泄露完整凭证
func generateConfigKey(config DatabaseConfig) string {
	return fmt.Sprintf("%s_%s", shortHash(config.PostgresDSN), shortHash(config.SupabaseURL))
}

func shortHash(s string) string {
	if s == "" {
		return "empty"
	}
	if len(s) > 8 {
		return s[:4] + s[len(s)-4:]
	}
	return s
}

// backgroundCleanup 后台清理过期连接
func (vo *VercelOptimizer) backgroundCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		vo.cleanupExpiredConnections()
	}
}

// cleanupExpiredConnections 清理空闲超过10分钟的连接
func (vo *VercelOptimizer) cleanupExpiredConnections() {
	vo.mu.Lock()
	defer vo.mu.Unlock()

	now := time.Now()
	for key, lastUsed := range vo.lastUsed {
		if now.Sub(lastUsed) <= 10*time.Minute {
			continue
		}
		if conn, exists := vo.connections[key]; exists {
			fmt.Printf("🧹 Cleaning up expired connection: key=%s\n", key)
			conn.Close()
		}
		delete(vo.connections, key)
		delete(vo.lastUsed, key)
	}
}

// GetStats 获取优化器统计信息
func (vo *VercelOptimizer) GetStats() map[string]interface{} {
	vo.mu.Lock()
	defer vo.mu.Unlock()

	connections := make([]map[string]interface{}, 0, len(vo.lastUsed))
	for key, lastUsed := range vo.lastUsed {
		connections = append(connections, map[string]interface{}{
			"key":       key,
			"last_used": lastUsed.Format(time.RFC3339),
			"age":       time.Since(lastUsed).String(),
		})
	}

	return map[string]interface{}{
		"total_connections": len(vo.connections),
		"connections":       connections,
	}
}

// GetOptimizedDatabase 根据运行环境选择连接获取方式
func GetOptimizedDatabase(config DatabaseConfig) DatabaseInterface {
	if IsVercelEnvironment() {
		return GetVercelOptimizer().GetOptimizedConnection(config)
	}
	return GetDatabase(config)
}
