package overlay

// Queue 是单页的覆盖框缓冲区，按插入顺序（FIFO）在页尾统一绘制。
// 在元素处理过程中立即绘制会移动后端的写入游标，因此只入队。
type Queue struct {
	boxes []Box
}

// NewQueue 创建空队列
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue 追加一个覆盖框
func (q *Queue) Enqueue(b Box) {
	q.boxes = append(q.boxes, b)
}

// Len 返回队列长度
func (q *Queue) Len() int {
	return len(q.boxes)
}

// Reset 清空队列
func (q *Queue) Reset() {
	q.boxes = q.boxes[:0]
}

// Truncate 丢弃位置 n 之后入队的框
func (q *Queue) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(q.boxes) {
		q.boxes = q.boxes[:n]
	}
}

// Boxes 返回当前内容的副本
func (q *Queue) Boxes() []Box {
	out := make([]Box, len(q.boxes))
	copy(out, q.boxes)
	return out
}

// Drain 按 FIFO 顺序交给 fn 并清空队列。fn 出错时停止，但队列仍被清空。
func (q *Queue) Drain(fn func(Box) error) (int, error) {
	boxes := q.boxes
	q.boxes = nil

	for i, b := range boxes {
		if err := fn(b); err != nil {
			return i, err
		}
	}
	return len(boxes), nil
}
