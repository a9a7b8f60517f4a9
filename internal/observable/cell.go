// Package observable は購読可能な値セルを提供する。
// セッション、テーマ、一覧画面の状態の共有に使う。
package observable

import "sync"

// Cell は購読可能な値セル。
// 値の更新はアトミックに行われ、購読者への通知は更新を行った呼び出しが
// 戻る前に、更新順どおり同期的に完了する。
//
// 購読者のコールバック内から同じCellを更新してはならない（デッドロックする）。
type Cell[T any] struct {
	publishMu sync.Mutex // 更新と通知を直列化する

	mu     sync.RWMutex
	value  T
	subs   map[uint64]func(T)
	nextID uint64
}

// NewCell は初期値を持つCellを生成する。
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value: initial,
		subs:  make(map[uint64]func(T)),
	}
}

// Get は現在の値のスナップショットを返す。
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set は値を置き換え、全購読者に通知する。
func (c *Cell[T]) Set(v T) {
	c.Update(func(T) (T, bool) { return v, true })
}

// Update は現在値から新しい値を算出して置き換える。
// fnがfalseを返した場合は値を変更せず、通知も行わない。
// 更新した場合はtrueを返す。
func (c *Cell[T]) Update(fn func(current T) (next T, changed bool)) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	next, changed := fn(c.value)
	if !changed {
		c.mu.Unlock()
		return false
	}
	c.value = next
	subs := make([]func(T), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, notify := range subs {
		notify(next)
	}
	return true
}

// Subscribe は値の変更通知を受け取るコールバックを登録する。
// 戻り値の関数を呼ぶと購読を解除する（複数回呼んでも安全）。
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// SubscriberCount は登録中の購読者数を返す。テスト用。
func (c *Cell[T]) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
