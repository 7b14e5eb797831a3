package providers

import "context"

type interruptKey struct{}

// Detach 返回不会随 parent 取消的上下文，正在进行的请求不会被中断。
// parent 的取消信号仍然附带在上下文中，重试层据此停止发起新的请求。
func Detach(parent context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(parent), interruptKey{}, parent.Done())
}

// InterruptSignal 返回 Detach 时附带的取消信号，没有则返回 nil
func InterruptSignal(ctx context.Context) <-chan struct{} {
	done, _ := ctx.Value(interruptKey{}).(<-chan struct{})
	return done
}

// Interrupted 判断上下文本身或 Detach 前的上下文是否已被取消
func Interrupted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-InterruptSignal(ctx):
		return true
	default:
		return false
	}
}
