package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"quillpress/internal/domain"
)

// Retrier 给每次存储调用加超时；只对幂等调用在瞬时错误上做有限次退避重试
type Retrier struct {
	Timeout    time.Duration
	MaxRetries uint64
	Initial    time.Duration
	Log        *zap.Logger
}

func NewRetrier(timeout time.Duration, maxRetries int, initial time.Duration, l *zap.Logger) *Retrier {
	if l == nil {
		l = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrier{Timeout: timeout, MaxRetries: uint64(maxRetries), Initial: initial, Log: l}
}

// transient 超时（父 ctx 仍有效）或存储标记的瞬时错误
func transient(parent context.Context, err error) bool {
	if errors.Is(err, domain.ErrTransient) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}

func (r *Retrier) attempt(ctx context.Context, op func(context.Context) error) error {
	if r.Timeout <= 0 {
		return op(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	return op(actx)
}

func (r *Retrier) unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
}

// Do 幂等调用（读、覆盖写、比较并设置、删除）
func (r *Retrier) Do(ctx context.Context, name string, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if r.Initial > 0 {
		b.InitialInterval = r.Initial
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.MaxRetries), ctx)

	var last error
	err := backoff.RetryNotify(func() error {
		err := r.attempt(ctx, op)
		last = err
		if err == nil || !transient(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		r.Log.Warn("store call retry", zap.String("op", name), zap.Error(err), zap.Duration("wait", wait))
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if transient(ctx, last) {
		return r.unavailable(last)
	}
	return err
}

// Once 非幂等调用（插入、增量）只尝试一次，避免超时后重放造成重复写
func (r *Retrier) Once(ctx context.Context, name string, op func(context.Context) error) error {
	err := r.attempt(ctx, op)
	if err != nil && transient(ctx, err) {
		r.Log.Warn("store call failed", zap.String("op", name), zap.Error(err))
		return r.unavailable(err)
	}
	return err
}

// Get 带返回值的幂等调用
func Get[T any](ctx context.Context, r *Retrier, name string, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, name, func(c context.Context) error {
		v, err := op(c)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
