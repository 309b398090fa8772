package model

// Recorder は取り消し処理を受け付けるジャーナル
type Recorder interface {
	Record(undo func())
}

// SetEntry は map への書き込みを行い、元に戻す処理を登録する
func SetEntry[K comparable, V any](rec Recorder, m map[K]V, key K, value V) {
	prev, existed := m[key]
	m[key] = value
	rec.Record(func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

// DeleteEntry は map から削除し、元に戻す処理を登録する
func DeleteEntry[K comparable, V any](rec Recorder, m map[K]V, key K) {
	prev, existed := m[key]
	if !existed {
		return
	}
	delete(m, key)
	rec.Record(func() {
		m[key] = prev
	})
}

// SetValue はフィールドへの書き込みを行い、元に戻す処理を登録する
func SetValue[T any](rec Recorder, field *T, value T) {
	prev := *field
	*field = value
	rec.Record(func() {
		*field = prev
	})
}
