package ledger

// journal はトランザクション中の変更を取り消すための undo ログ
type journal struct {
	entries []func()
}

func (j *journal) append(undo func()) {
	j.entries = append(j.entries, undo)
}

func (j *journal) snapshot() int {
	return len(j.entries)
}

// revertTo は snapshot 以降の変更を新しい順に取り消す
func (j *journal) revertTo(id int) {
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i]()
	}
	j.entries = j.entries[:id]
}

func (j *journal) reset() {
	j.entries = j.entries[:0]
}
