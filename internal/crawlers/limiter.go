package crawlers

import (
	"context"
	"sync"
	"time"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"golang.org/x/time/rate"
)

// OriginLimiter 按源(scheme://host)限速
// 同一个源的两次请求之间至少间隔interval,不同的源互不影响
type OriginLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

// NewOriginLimiter 创建限速器,interval<=0 表示不限速
func NewOriginLimiter(interval time.Duration) *OriginLimiter {
	return &OriginLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait 阻塞到该URL所在的源允许下一次请求,或ctx结束
func (l *OriginLimiter) Wait(ctx context.Context, rawURL string) error {
	if l == nil || l.interval <= 0 {
		return ctx.Err()
	}
	return l.limiterFor(models.OriginOf(rawURL)).Wait(ctx)
}

// Interval 返回限速间隔
func (l *OriginLimiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

func (l *OriginLimiter) limiterFor(origin string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[origin]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[origin] = limiter
	}
	return limiter
}
