package core

import "time"

// RecommendConfig 是推荐请求相关的配置接口，用于提供默认值。
type RecommendConfig interface {
	// DefaultTopK 请求未指定 top_k 时使用的值
	DefaultTopK() int

	// MaxTopK top_k 的上限，超过时截断
	MaxTopK() int

	// DefaultTimeout 单次推荐的超时时间
	DefaultTimeout() time.Duration
}

// DefaultRecommendConfig 是默认的推荐配置实现。
type DefaultRecommendConfig struct{}

func (c *DefaultRecommendConfig) DefaultTopK() int {
	return 5
}

func (c *DefaultRecommendConfig) MaxTopK() int {
	return 100
}

func (c *DefaultRecommendConfig) DefaultTimeout() time.Duration {
	return 2 * time.Second
}
