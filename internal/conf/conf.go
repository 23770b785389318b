package conf

import "time"

// Bootstrap 启动配置
// 由 kratos config 从 configs/ 下的 YAML 扫描得到
type Bootstrap struct {
	Server   *Server   `json:"server"`
	Data     *Data     `json:"data"`
	Tracking *Tracking `json:"tracking"`
}

// Server 服务端配置
type Server struct {
	Http *HTTP `json:"http"`
	Grpc *GRPC `json:"grpc"`
}

// HTTP HTTP 服务配置
type HTTP struct {
	Network string `json:"network"`
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"` // 如 "1s"
}

// GRPC gRPC 服务配置
type GRPC struct {
	Network string `json:"network"`
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}

// Data 数据层配置
type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
	Rocketmq *Rocketmq `json:"rocketmq"`
}

// Database 数据库配置
type Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

// Redis Redis 配置
type Redis struct {
	Addr         string `json:"addr"`
	Password     string `json:"password"`
	Db           int    `json:"db"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

// Rocketmq RocketMQ 配置
type Rocketmq struct {
	Enabled       bool     `json:"enabled"`
	NameServers   []string `json:"name_servers"`
	GroupName     string   `json:"group_name"`
	SnapshotTopic string   `json:"snapshot_topic"` // 快照导入事件
	ActivityTopic string   `json:"activity_topic"` // 活动日志事件
	RetryTimes    int32    `json:"retry_times"`
}

// Tracking 业务配置
type Tracking struct {
	// ReconcileLockTTL 对账锁过期时间，如 "5s"
	ReconcileLockTTL string `json:"reconcile_lock_ttl"`
	// CacheTTL 计数缓存过期时间，如 "5m"
	CacheTTL string `json:"cache_ttl"`
}

// ParseDuration 解析时长配置，解析失败或为空时返回默认值
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
